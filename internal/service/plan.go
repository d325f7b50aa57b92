package service

import (
	"github.com/psiflow/psiflow/internal/config"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
)

// planFromPrice resolves an external price reference through the
// authoritative price-to-plan table. An unmapped price is a hard error that
// requires operator intervention; guessing a plan from the charged amount
// risks assigning the wrong tier.
func planFromPrice(cfg config.BillingConfig, priceID string) (types.PlanSlug, error) {
	if priceID == "" {
		return "", ierr.NewError("subscription has no price reference").
			Mark(ierr.ErrInvalidOperation)
	}
	plan, ok := cfg.PlanForPrice(priceID)
	if !ok {
		return "", ierr.NewErrorf("price %q is not mapped to a plan", priceID).
			WithHint("Add the price to the billing price_plans mapping").
			WithReportableDetails(map[string]any{"price_id": priceID}).
			Mark(ierr.ErrInvalidOperation)
	}
	return plan, nil
}
