package subscription

import (
	"time"

	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
)

// Assignment records which plan a user currently has. At most one assignment
// per user is active at any time; superseded rows are soft-cancelled and kept
// for audit.
type Assignment struct {
	ID                 string                 `json:"id"`
	UserID             string                 `json:"user_id"`
	PlanSlug           types.PlanSlug         `json:"plan_slug"`
	AssignmentStatus   types.AssignmentStatus `json:"assignment_status"`
	ProviderCustomerID *string                `json:"provider_customer_id,omitempty"`
	TierLabel          *string                `json:"tier_label,omitempty"`
	Subscribed         bool                   `json:"subscribed"`
	StartsAt           time.Time              `json:"starts_at"`
	ExpiresAt          *time.Time             `json:"expires_at,omitempty"`
	CancelAtPeriodEnd  bool                   `json:"cancel_at_period_end"`
	types.BaseModel
}

// Active reports whether this assignment is the user's current one.
func (a *Assignment) Active() bool {
	return a.AssignmentStatus == types.AssignmentStatusActive
}

// Expired reports whether the assignment has an expiry in the past.
func (a *Assignment) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && a.ExpiresAt.Before(now)
}

// Validate validates the assignment
func (a *Assignment) Validate() error {
	if a.UserID == "" {
		return ierr.NewError("user_id is required").Mark(ierr.ErrValidation)
	}
	if !a.PlanSlug.Valid() {
		return ierr.NewErrorf("invalid plan slug %q", a.PlanSlug).Mark(ierr.ErrValidation)
	}
	return nil
}
