package coupon

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/kart-coupons/internal/domain/money"
)

// Rules is the variant payload of a coupon. The set of implementations is
// closed: CartWide, ProductWise and BuyXGetY.
type Rules interface {
	Type() Type
	rules()
}

// CartWide discounts DiscountPercentage of the cart total once the total
// reaches Threshold, capped at MaxDiscount when set.
type CartWide struct {
	Threshold          decimal.Decimal
	DiscountPercentage decimal.Decimal
	MaxDiscount        *decimal.Decimal
}

// ProductWise discounts DiscountPercentage of every listed product whose
// line quantity reaches MinQuantity.
type ProductWise struct {
	ProductIDs         []string
	DiscountPercentage decimal.Decimal
	// MinQuantity applies to each line item on its own. Zero means 1.
	MinQuantity int
}

// BuyXGetY discounts GetQuantity units of GetProducts for every BuyQuantity
// units of BuyProducts, at most RepetitionLimit times.
type BuyXGetY struct {
	BuyProducts        []string
	BuyQuantity        int
	GetProducts        []string
	GetQuantity        int
	DiscountPercentage decimal.Decimal
	// RepetitionLimit caps how often the offer applies. Zero means unlimited.
	RepetitionLimit int
}

func (CartWide) Type() Type    { return TypeCartWise }
func (ProductWise) Type() Type { return TypeProductWise }
func (BuyXGetY) Type() Type    { return TypeBxGy }

func (CartWide) rules()    {}
func (ProductWise) rules() {}
func (BuyXGetY) rules()    {}

func (r ProductWise) minQuantity() int {
	if r.MinQuantity == 0 {
		return 1
	}
	return r.MinQuantity
}

// Validate checks the structural invariants of c and returns a
// *DefinitionError for the first violation found.
func (c *Coupon) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return c.invalid("coupon_id", "must not be empty")
	}
	if c.ValidUntil != nil && c.ValidUntil.Before(c.ValidFrom) {
		return c.invalid("valid_until", "must not precede valid_from")
	}
	for _, t := range c.EligibleTiers {
		if !t.Valid() {
			return c.invalid("eligible_tiers", fmt.Sprintf("unknown tier %q", t))
		}
	}

	switch r := c.Rules.(type) {
	case nil:
		return c.invalid("details", "missing")
	case CartWide:
		return c.validateCartWide(r)
	case ProductWise:
		return c.validateProductWise(r)
	case BuyXGetY:
		return c.validateBuyXGetY(r)
	default:
		return c.invalid("details", fmt.Sprintf("unsupported rules %T", r))
	}
}

func (c *Coupon) validateCartWide(r CartWide) error {
	if r.Threshold.IsNegative() {
		return c.invalid("threshold", "must not be negative")
	}
	if err := c.validatePercentage(r.DiscountPercentage); err != nil {
		return err
	}
	if r.MaxDiscount != nil && r.MaxDiscount.IsNegative() {
		return c.invalid("max_discount", "must not be negative")
	}
	return nil
}

func (c *Coupon) validateProductWise(r ProductWise) error {
	if err := c.validateProducts("product_ids", r.ProductIDs); err != nil {
		return err
	}
	if err := c.validatePercentage(r.DiscountPercentage); err != nil {
		return err
	}
	if r.MinQuantity < 0 {
		return c.invalid("min_quantity", "must be at least 1")
	}
	return nil
}

func (c *Coupon) validateBuyXGetY(r BuyXGetY) error {
	if err := c.validateProducts("buy_products", r.BuyProducts); err != nil {
		return err
	}
	if r.BuyQuantity < 1 {
		return c.invalid("buy_quantity", "must be at least 1")
	}
	if err := c.validateProducts("get_products", r.GetProducts); err != nil {
		return err
	}
	if r.GetQuantity < 1 {
		return c.invalid("get_quantity", "must be at least 1")
	}
	if err := c.validatePercentage(r.DiscountPercentage); err != nil {
		return err
	}
	if r.RepetitionLimit < 0 {
		return c.invalid("repetition_limit", "must be at least 1")
	}
	return nil
}

func (c *Coupon) validatePercentage(pct decimal.Decimal) error {
	if !money.IsPercentage(pct) {
		return c.invalid("discount_percentage", fmt.Sprintf("%s outside [0, 100]", pct))
	}
	return nil
}

func (c *Coupon) validateProducts(field string, ids []string) error {
	if len(ids) == 0 {
		return c.invalid(field, "must not be empty")
	}
	if slices.Contains(ids, "") {
		return c.invalid(field, "must not contain an empty product id")
	}
	return nil
}

func (c *Coupon) invalid(field, reason string) error {
	return &DefinitionError{CouponID: c.ID, Field: field, Reason: reason}
}

// productSet builds a membership set from product ids.
func productSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
