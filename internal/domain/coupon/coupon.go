package coupon

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/go-faster/errors"
)

// Type enumerates the supported coupon variants.
type Type string

const (
	// TypeCartWise discounts a percentage of the whole cart above a threshold.
	TypeCartWise Type = "cart-wise"
	// TypeProductWise discounts a percentage of selected products.
	TypeProductWise Type = "product-wise"
	// TypeBxGy discounts "get" products for every set of "buy" products.
	TypeBxGy Type = "bxgy"
)

// Tier is a customer loyalty tier.
type Tier string

const (
	TierBasic    Tier = "Basic"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
)

// Tiers lists every known tier in ascending order.
var Tiers = []Tier{TierBasic, TierSilver, TierGold, TierPlatinum}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return slices.Contains(Tiers, t)
}

var (
	// ErrInvalidDefinition is matched by every *DefinitionError.
	ErrInvalidDefinition = errors.New("invalid coupon definition")
	// ErrNotFound is returned when a coupon id does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrAlreadyExists is returned when creating a coupon whose id is taken.
	ErrAlreadyExists = errors.New("coupon already exists")
)

// DefinitionError describes a violated structural invariant of a coupon.
type DefinitionError struct {
	CouponID string
	Field    string
	Reason   string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("invalid coupon %q: %s: %s", e.CouponID, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidDefinition) hold for any DefinitionError.
func (e *DefinitionError) Is(target error) bool {
	return target == ErrInvalidDefinition
}

// Coupon is a promotional coupon: shared metadata plus exactly one variant
// payload in Rules.
type Coupon struct {
	ID          string
	Active      bool
	ValidFrom   time.Time
	ValidUntil  *time.Time
	Description string
	// EligibleTiers restricts the coupon to the listed tiers. Empty means
	// every tier.
	EligibleTiers []Tier
	Rules         Rules
}

// Type returns the variant tag derived from the payload.
func (c *Coupon) Type() Type {
	if c.Rules == nil {
		return ""
	}
	return c.Rules.Type()
}

// ValidAt reports whether t lies in [ValidFrom, ValidUntil]. A nil
// ValidUntil leaves the window open.
func (c *Coupon) ValidAt(t time.Time) bool {
	if t.Before(c.ValidFrom) {
		return false
	}
	return c.ValidUntil == nil || !t.After(*c.ValidUntil)
}

// AllowsTier reports whether a customer of tier t may use the coupon.
func (c *Coupon) AllowsTier(t Tier) bool {
	return len(c.EligibleTiers) == 0 || slices.Contains(c.EligibleTiers, t)
}

// Customer is the customer context a coupon is evaluated for.
type Customer struct {
	Tier Tier
	// ExclusiveUses maps customer-exclusive coupon ids to the uses left.
	// A coupon missing from the map is not exclusive to this customer.
	ExclusiveUses map[string]int
	// Now is the evaluation instant. It is injected, never read from the
	// clock by the engine.
	Now time.Time
}

// Repository provides persistence of coupon definitions.
type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	Get(ctx context.Context, id string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id string) error
}
