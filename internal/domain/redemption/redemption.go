// Package redemption applies coupons to customer carts and keeps the
// history of applied coupons.
package redemption

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-coupons/internal/domain/cart"
	"github.com/xenking/kart-coupons/internal/domain/coupon"
	"github.com/xenking/kart-coupons/internal/domain/customer"
)

var (
	// ErrEmptyCart is returned when applying a coupon to an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrNoApplicableCoupon is returned when no coupon applies to the cart.
	ErrNoApplicableCoupon = errors.New("no applicable coupon")
)

// IneligibleError reports a coupon that cannot be applied, with the reason
// the evaluation produced.
type IneligibleError struct {
	CouponID string
	Reason   coupon.Reason
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("coupon %q not applicable: %s", e.CouponID, e.Reason)
}

// Application is a coupon applied to a customer's cart.
type Application struct {
	ID            uuid.UUID
	CustomerID    string
	CouponID      string
	CouponType    coupon.Type
	Discount      decimal.Decimal
	OriginalTotal decimal.Decimal
	FinalTotal    decimal.Decimal
	AppliedAt     time.Time
	// Exclusive is set when the coupon consumed one of the customer's
	// exclusive uses.
	Exclusive bool
}

// Receipt is the outcome of ApplyCoupon.
type Receipt struct {
	Application
	Items []cart.LineItem
	Lines []coupon.LineDiscount
}

// CartProvider loads the cart of a customer.
type CartProvider interface {
	Snapshot(ctx context.Context, customerID string) (*cart.Snapshot, error)
}

// CustomerProvider loads a customer with tier and exclusive uses.
type CustomerProvider interface {
	Get(ctx context.Context, id string) (*customer.Customer, error)
}

// CouponRepository loads coupon definitions.
type CouponRepository interface {
	List(ctx context.Context) ([]coupon.Coupon, error)
	Get(ctx context.Context, id string) (*coupon.Coupon, error)
}

// Ledger stores applications.
type Ledger interface {
	// Record stores a in the customer's history. For exclusive coupons it
	// decrements the remaining uses in the same transaction and fails with
	// an *IneligibleError when none are left.
	Record(ctx context.Context, a *Application) error
	// History returns the customer's applications, most recent first.
	History(ctx context.Context, customerID string) ([]Application, error)
}
