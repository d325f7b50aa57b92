package user

import (
	"github.com/psiflow/psiflow/internal/types"
)

// User is the slice of the account record this subsystem needs: identity and
// the contact address used to resolve billing-provider customers. Account
// management itself lives elsewhere.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	types.BaseModel
}
