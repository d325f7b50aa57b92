package types

// PlanSlug identifies a subscription tier. The set is closed: every
// assignment ever written references one of these.
type PlanSlug string

const (
	PlanFree       PlanSlug = "free"
	PlanGestao     PlanSlug = "gestao"
	PlanPsiRegular PlanSlug = "psi_regular"
)

// PaidPlans lists the plans that can be granted by billing or by a
// courtesy override. The free plan is the fallback, never granted.
var PaidPlans = []PlanSlug{PlanGestao, PlanPsiRegular}

func (p PlanSlug) String() string {
	return string(p)
}

// Valid reports whether the slug belongs to the closed set.
func (p PlanSlug) Valid() bool {
	switch p {
	case PlanFree, PlanGestao, PlanPsiRegular:
		return true
	}
	return false
}

// Grantable reports whether the slug may be assigned by an override.
func (p PlanSlug) Grantable() bool {
	for _, plan := range PaidPlans {
		if p == plan {
			return true
		}
	}
	return false
}

// TierLabelCourtesy marks assignments that originate from a manual grant
// rather than from the billing provider.
const TierLabelCourtesy = "courtesy"
