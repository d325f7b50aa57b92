package dto

import (
	"time"

	"github.com/psiflow/psiflow/internal/domain/override"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
	"github.com/psiflow/psiflow/internal/validator"
)

const (
	reasonMinLength = 10
	reasonMaxLength = 500
)

// GrantOverrideRequest creates a courtesy override for a user.
type GrantOverrideRequest struct {
	UserID    string     `json:"user_id" validate:"required"`
	PlanSlug  string     `json:"plan_slug" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Reason    string     `json:"reason" validate:"required"`
}

// Validate validates the grant request
func (r *GrantOverrideRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if !types.PlanSlug(r.PlanSlug).Grantable() {
		return ierr.NewErrorf("plan %q cannot be granted", r.PlanSlug).
			WithHint("Plan must be one of the paid plans").
			WithReportableDetails(map[string]any{"allowed": types.PaidPlans}).
			Mark(ierr.ErrValidation)
	}

	if r.ExpiresAt != nil && !r.ExpiresAt.After(time.Now().UTC()) {
		return ierr.NewError("expires_at must be in the future").
			Mark(ierr.ErrValidation)
	}

	if len(r.Reason) < reasonMinLength || len(r.Reason) > reasonMaxLength {
		return ierr.NewErrorf("reason must be between %d and %d characters", reasonMinLength, reasonMaxLength).
			Mark(ierr.ErrValidation)
	}

	return nil
}

// ToOverride converts the request into a domain override.
func (r *GrantOverrideRequest) ToOverride(grantedBy string) *override.Override {
	return &override.Override{
		UserID:    r.UserID,
		PlanSlug:  types.PlanSlug(r.PlanSlug),
		ExpiresAt: r.ExpiresAt,
		Reason:    r.Reason,
		GrantedBy: grantedBy,
	}
}

// OverrideResponse is the API shape of a courtesy override.
type OverrideResponse struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	PlanSlug  string     `json:"plan_slug"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Reason    string     `json:"reason"`
	GrantedBy string     `json:"granted_by"`
	Active    bool       `json:"active"`
	Effective bool       `json:"effective"`
	CreatedAt time.Time  `json:"created_at"`
}

// NewOverrideResponse builds the API shape from the domain override.
func NewOverrideResponse(o *override.Override) *OverrideResponse {
	if o == nil {
		return nil
	}
	return &OverrideResponse{
		ID:        o.ID,
		UserID:    o.UserID,
		PlanSlug:  string(o.PlanSlug),
		ExpiresAt: o.ExpiresAt,
		Reason:    o.Reason,
		GrantedBy: o.GrantedBy,
		Active:    o.Active,
		Effective: o.Effective(time.Now().UTC()),
		CreatedAt: o.CreatedAt,
	}
}
