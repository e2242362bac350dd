package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item. Cart lines take their unit price from it at
// the time the item is added.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
}

// Validate checks that the product can be stored in the catalog.
func (p *Product) Validate() error {
	switch {
	case p.ID == "":
		return errors.New("product id required")
	case p.Name == "":
		return errors.Errorf("product %q: name required", p.ID)
	case p.Price.IsNegative():
		return errors.Errorf("product %q: price must not be negative", p.ID)
	}
	return nil
}

// Repository defines operations on the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Upsert(ctx context.Context, p *Product) error
}
