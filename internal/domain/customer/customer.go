// Package customer manages customers and their shopping carts.
package customer

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-coupons/internal/domain/cart"
	"github.com/xenking/kart-coupons/internal/domain/coupon"
)

var (
	// ErrNotFound is returned when a customer id does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrItemNotInCart is returned when updating or removing a product the
	// cart does not hold.
	ErrItemNotInCart = errors.New("product not found in cart")
)

// InvalidQuantityError indicates a non-positive quantity for a cart item.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s, got %d", e.ProductID, e.Quantity)
}

// Customer is a shopper with a loyalty tier and coupons reserved for them.
type Customer struct {
	ID   string
	Name string
	Tier coupon.Tier
	// ExclusiveUses maps exclusive coupon ids to the uses remaining.
	ExclusiveUses map[string]int
}

// Context returns the evaluation context of the customer at now.
func (c *Customer) Context(now time.Time) coupon.Customer {
	return coupon.Customer{
		Tier:          c.Tier,
		ExclusiveUses: maps.Clone(c.ExclusiveUses),
		Now:           now,
	}
}

// Repository persists customers and their carts.
type Repository interface {
	Get(ctx context.Context, id string) (*Customer, error)
	Upsert(ctx context.Context, c *Customer) error
	Snapshot(ctx context.Context, id string) (*cart.Snapshot, error)
	// UpsertItem inserts the line or replaces an existing line for the
	// same product.
	UpsertItem(ctx context.Context, id string, item cart.LineItem) error
	UpdateQuantity(ctx context.Context, id, productID string, quantity int) error
	RemoveItem(ctx context.Context, id, productID string) error
}
