package coupon

import "github.com/xenking/kart-coupons/internal/domain/cart"

// Reason explains why a coupon is not applicable.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonInactive             Reason = "INACTIVE"
	ReasonOutOfValidityWindow  Reason = "OUT_OF_VALIDITY_WINDOW"
	ReasonTierIneligible       Reason = "TIER_INELIGIBLE"
	ReasonNoUsesRemaining      Reason = "NO_USES_REMAINING"
	ReasonCartConditionsNotMet Reason = "CART_CONDITIONS_NOT_MET"
)

// Eligibility is the outcome of the precondition checks for one coupon.
type Eligibility struct {
	Applicable bool
	Reason     Reason
}

// Evaluate runs the eligibility checks in order and stops at the first
// failing one. An error is returned only for an invalid coupon definition.
func Evaluate(c *Coupon, sn *cart.Snapshot, cust Customer) (Eligibility, error) {
	res, err := Assess(c, sn, cust)
	if err != nil {
		return Eligibility{}, err
	}
	return Eligibility{Applicable: res.Applicable, Reason: res.Reason}, nil
}

// precheck covers the checks that do not depend on cart contents.
func precheck(c *Coupon, cust Customer) Reason {
	switch {
	case !c.Active:
		return ReasonInactive
	case !c.ValidAt(cust.Now):
		return ReasonOutOfValidityWindow
	case !c.AllowsTier(cust.Tier):
		return ReasonTierIneligible
	}
	if uses, ok := cust.ExclusiveUses[c.ID]; ok && uses <= 0 {
		return ReasonNoUsesRemaining
	}
	return ReasonNone
}
