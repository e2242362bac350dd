package coupon

import (
	"cmp"
	"slices"

	"github.com/xenking/kart-coupons/internal/domain/cart"
)

// Rank evaluates every coupon against the cart and orders the results by
// discount descending, then coupon id ascending. An invalid definition
// aborts the whole ranking.
func Rank(sn *cart.Snapshot, coupons []Coupon, cust Customer) ([]Result, error) {
	results := make([]Result, 0, len(coupons))
	for i := range coupons {
		res, err := Assess(&coupons[i], sn, cust)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	slices.SortStableFunc(results, compareResults)
	return results, nil
}

func compareResults(a, b Result) int {
	if c := b.Discount.Cmp(a.Discount); c != 0 {
		return c
	}
	return cmp.Compare(a.CouponID, b.CouponID)
}

// Applicable keeps the applicable results, preserving their order.
func Applicable(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Applicable {
			out = append(out, r)
		}
	}
	return out
}

// Best returns the first applicable result of a ranked sequence.
func Best(results []Result) (Result, bool) {
	for _, r := range results {
		if r.Applicable {
			return r, true
		}
	}
	return Result{}, false
}
