package override

import (
	"time"

	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
)

// Override is a manually granted plan assignment that bypasses the billing
// provider entirely. At most one active override exists per user.
type Override struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	PlanSlug  types.PlanSlug `json:"plan_slug"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	Reason    string         `json:"reason"`
	GrantedBy string         `json:"granted_by"`
	Active    bool           `json:"active"`
	types.BaseModel
}

// Effective reports whether the override currently grants its plan. Expiry
// is advisory: it is consulted at read time, never flipped in storage.
func (o *Override) Effective(now time.Time) bool {
	if o == nil || !o.Active {
		return false
	}
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

// Validate validates the override
func (o *Override) Validate() error {
	if o.UserID == "" {
		return ierr.NewError("user_id is required").Mark(ierr.ErrValidation)
	}
	if !o.PlanSlug.Grantable() {
		return ierr.NewErrorf("plan %q cannot be granted as a courtesy", o.PlanSlug).
			WithHint("Only paid plans can be granted").
			Mark(ierr.ErrValidation)
	}
	return nil
}
