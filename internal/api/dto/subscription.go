package dto

import (
	"time"

	"github.com/psiflow/psiflow/internal/domain/subscription"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
)

// SubscriptionData exposes the details of the reconciled assignment.
type SubscriptionData struct {
	PlanSlug          string     `json:"plan_slug"`
	TierLabel         string     `json:"tier_label,omitempty"`
	StartsAt          time.Time  `json:"starts_at"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
}

// SubscriptionStatusResponse is returned by the status-check endpoint.
type SubscriptionStatusResponse struct {
	Subscribed         bool              `json:"subscribed"`
	PlanSlug           string            `json:"plan_slug"`
	SubscriptionStatus string            `json:"subscription_status"`
	IsCourtesy         bool              `json:"is_courtesy,omitempty"`
	SubscriptionData   *SubscriptionData `json:"subscription_data,omitempty"`
}

// SyncSubscriptionRequest identifies the user to repair.
type SyncSubscriptionRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// SyncSubscriptionResponse is returned by the force-sync endpoint.
type SyncSubscriptionResponse struct {
	Success    bool       `json:"success"`
	Plan       string     `json:"plan"`
	IsCourtesy bool       `json:"is_courtesy,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// AssignmentHistoryResponse lists a user's assignment history, newest first.
type AssignmentHistoryResponse struct {
	Items []*subscription.Assignment `json:"items"`
	Total int                        `json:"total"`
}

// NewSubscriptionStatusResponse builds a status response from an assignment.
func NewSubscriptionStatusResponse(a *subscription.Assignment) *SubscriptionStatusResponse {
	if a == nil {
		return &SubscriptionStatusResponse{
			PlanSlug:           string(types.PlanFree),
			SubscriptionStatus: string(types.AssignmentStatusCancelled),
		}
	}

	resp := &SubscriptionStatusResponse{
		Subscribed:         a.Subscribed,
		PlanSlug:           string(a.PlanSlug),
		SubscriptionStatus: string(a.AssignmentStatus),
	}
	if a.TierLabel != nil {
		resp.IsCourtesy = *a.TierLabel == types.TierLabelCourtesy
	}
	if a.Subscribed {
		resp.SubscriptionData = &SubscriptionData{
			PlanSlug:          string(a.PlanSlug),
			StartsAt:          a.StartsAt,
			ExpiresAt:         a.ExpiresAt,
			CancelAtPeriodEnd: a.CancelAtPeriodEnd,
		}
		if a.TierLabel != nil {
			resp.SubscriptionData.TierLabel = *a.TierLabel
		}
	}
	return resp
}

// NewSyncSubscriptionResponse builds a sync response from an assignment.
func NewSyncSubscriptionResponse(a *subscription.Assignment) *SyncSubscriptionResponse {
	if a == nil {
		return &SyncSubscriptionResponse{Success: true, Plan: string(types.PlanFree)}
	}
	resp := &SyncSubscriptionResponse{
		Success:   true,
		Plan:      string(a.PlanSlug),
		ExpiresAt: a.ExpiresAt,
	}
	if a.TierLabel != nil {
		resp.IsCourtesy = *a.TierLabel == types.TierLabelCourtesy
	}
	return resp
}

// Validate validates the sync request
func (r *SyncSubscriptionRequest) Validate() error {
	if r.UserID == "" {
		return ierr.NewError("user_id is required").Mark(ierr.ErrValidation)
	}
	return nil
}
