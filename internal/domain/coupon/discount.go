package coupon

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-coupons/internal/domain/cart"
	"github.com/xenking/kart-coupons/internal/domain/money"
)

// LineDiscount is the unrounded share of a discount attributed to one
// product. Units is the number of discounted units, or the whole line
// quantity for percentage variants.
type LineDiscount struct {
	ProductID string
	Units     int
	Amount    decimal.Decimal
}

// Discount is a computed discount: the rounded total and its breakdown.
type Discount struct {
	Amount decimal.Decimal
	Lines  []LineDiscount
}

// Result is the evaluation of one coupon against one cart.
type Result struct {
	CouponID   string
	CouponType Type
	Applicable bool
	Reason     Reason
	Discount   decimal.Decimal
	Lines      []LineDiscount
}

// Calculate computes the discount c yields for the cart, ignoring the
// customer preconditions. A coupon whose cart conditions are not met
// yields a zero discount.
func Calculate(c *Coupon, sn *cart.Snapshot) (Discount, error) {
	if err := c.Validate(); err != nil {
		return Discount{}, err
	}

	switch r := c.Rules.(type) {
	case CartWide:
		return calcCartWide(r, sn), nil
	case ProductWise:
		return calcProductWise(r, sn), nil
	case BuyXGetY:
		return calcBuyXGetY(r, sn), nil
	default:
		return Discount{}, errors.Errorf("unsupported rules %T", r)
	}
}

// Assess performs the full evaluation of c: definition validation, the
// customer preconditions and the discount calculation.
func Assess(c *Coupon, sn *cart.Snapshot, cust Customer) (Result, error) {
	if err := c.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{
		CouponID:   c.ID,
		CouponType: c.Type(),
		Discount:   money.Zero,
	}
	if reason := precheck(c, cust); reason != ReasonNone {
		res.Reason = reason
		return res, nil
	}

	disc, err := Calculate(c, sn)
	if err != nil {
		return Result{}, err
	}
	if !disc.Amount.IsPositive() {
		res.Reason = ReasonCartConditionsNotMet
		return res, nil
	}

	res.Applicable = true
	res.Discount = disc.Amount
	res.Lines = disc.Lines
	return res, nil
}

func calcCartWide(r CartWide, sn *cart.Snapshot) Discount {
	total := sn.Total()
	if total.IsZero() || total.LessThan(r.Threshold) {
		return Discount{Amount: money.Zero}
	}

	raw := money.Percent(total, r.DiscountPercentage)
	capped := r.MaxDiscount != nil && raw.GreaterThan(*r.MaxDiscount)

	var lines []LineDiscount
	for _, li := range sn.Items() {
		share := money.Percent(li.Subtotal(), r.DiscountPercentage)
		if !share.IsPositive() {
			continue
		}
		lines = append(lines, LineDiscount{
			ProductID: li.ProductID,
			Units:     li.Quantity,
			Amount:    share,
		})
	}
	if capped {
		spreadCap(lines, raw, money.Round(*r.MaxDiscount))
		raw = *r.MaxDiscount
	}
	return finish(raw, total, lines)
}

// spreadCap scales line shares summing to raw down to target. Shares are
// floored to the currency unit and the last line takes the remainder, so
// the shares add up to target exactly.
func spreadCap(lines []LineDiscount, raw, target decimal.Decimal) {
	if len(lines) == 0 || !raw.IsPositive() {
		return
	}
	rest := target
	for i := range lines[:len(lines)-1] {
		share := lines[i].Amount.Mul(target).DivRound(raw, 16).RoundFloor(money.Places)
		lines[i].Amount = share
		rest = rest.Sub(share)
	}
	lines[len(lines)-1].Amount = rest
}

func calcProductWise(r ProductWise, sn *cart.Snapshot) Discount {
	eligible := productSet(r.ProductIDs)
	minQty := r.minQuantity()

	raw, base := money.Zero, money.Zero
	var lines []LineDiscount
	for _, li := range sn.Items() {
		if _, ok := eligible[li.ProductID]; !ok || li.Quantity < minQty {
			continue
		}
		sub := li.Subtotal()
		amount := money.Percent(sub, r.DiscountPercentage)
		base = base.Add(sub)
		raw = raw.Add(amount)
		if amount.IsPositive() {
			lines = append(lines, LineDiscount{
				ProductID: li.ProductID,
				Units:     li.Quantity,
				Amount:    amount,
			})
		}
	}
	return finish(raw, base, lines)
}

func calcBuyXGetY(r BuyXGetY, sn *cart.Snapshot) Discount {
	items := sn.Items()

	buySet := productSet(r.BuyProducts)
	bought := 0
	for _, li := range items {
		if _, ok := buySet[li.ProductID]; ok {
			bought = addQuantity(bought, li.Quantity)
		}
	}

	getSet := productSet(r.GetProducts)
	var getLines []cart.LineItem
	base := money.Zero
	available := 0
	for _, li := range items {
		if _, ok := getSet[li.ProductID]; ok && li.Quantity > 0 {
			getLines = append(getLines, li)
			base = base.Add(li.Subtotal())
			available = addQuantity(available, li.Quantity)
		}
	}

	sets := bought / r.BuyQuantity
	if r.RepetitionLimit > 0 {
		sets = min(sets, r.RepetitionLimit)
	}
	// Only units present in the cart can be discounted.
	free := available
	if sets <= available/r.GetQuantity {
		free = sets * r.GetQuantity
	}
	slices.SortFunc(getLines, func(a, b cart.LineItem) int {
		if c := a.UnitPrice.Cmp(b.UnitPrice); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})

	raw := money.Zero
	var lines []LineDiscount
	for _, li := range getLines {
		if free == 0 {
			break
		}
		units := min(free, li.Quantity)
		free -= units
		amount := money.Percent(money.Line(units, li.UnitPrice), r.DiscountPercentage)
		raw = raw.Add(amount)
		if amount.IsPositive() {
			lines = append(lines, LineDiscount{
				ProductID: li.ProductID,
				Units:     units,
				Amount:    amount,
			})
		}
	}
	return finish(raw, base, lines)
}

// addQuantity adds two non-negative quantities, saturating at math.MaxInt.
func addQuantity(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

// finish asserts the calculator post-condition and rounds the total once.
// A violation is a bug in a calculator, not a recoverable condition.
func finish(raw, base decimal.Decimal, lines []LineDiscount) Discount {
	if raw.IsNegative() || raw.GreaterThan(base) {
		panic(fmt.Sprintf("coupon: discount %s outside [0, %s]", raw, base))
	}
	amount := money.Round(raw)
	if amount.GreaterThan(base) {
		amount = base.RoundFloor(money.Places)
	}
	return Discount{Amount: amount, Lines: lines}
}
