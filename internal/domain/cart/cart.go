// Package cart provides the immutable cart snapshot the coupon engine
// evaluates against.
package cart

import (
	"slices"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-coupons/internal/domain/money"
)

var (
	// ErrEmptyProductID is returned for a line item without a product id.
	ErrEmptyProductID = errors.New("product id required")
	// ErrDuplicateProduct is returned when two line items share a product id.
	ErrDuplicateProduct = errors.New("duplicate product in cart")
	// ErrNegativeQuantity is returned for a line item with quantity below zero.
	ErrNegativeQuantity = errors.New("quantity must not be negative")
	// ErrNegativePrice is returned for a line item with a unit price below zero.
	ErrNegativePrice = errors.New("unit price must not be negative")
)

// LineItem is a single product entry of a cart.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns Quantity × UnitPrice.
func (li LineItem) Subtotal() decimal.Decimal {
	return money.Line(li.Quantity, li.UnitPrice)
}

// Snapshot is a read-only view of a cart, ordered by product id.
//
// The zero value and a nil *Snapshot are both valid empty carts.
type Snapshot struct {
	items []LineItem
}

// New validates items and returns a snapshot holding a sorted copy of them.
func New(items []LineItem) (*Snapshot, error) {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b LineItem) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})

	for i, item := range sorted {
		switch {
		case item.ProductID == "":
			return nil, ErrEmptyProductID
		case item.Quantity < 0:
			return nil, errors.Wrapf(ErrNegativeQuantity, "product %q", item.ProductID)
		case item.UnitPrice.IsNegative():
			return nil, errors.Wrapf(ErrNegativePrice, "product %q", item.ProductID)
		case i > 0 && sorted[i-1].ProductID == item.ProductID:
			return nil, errors.Wrapf(ErrDuplicateProduct, "product %q", item.ProductID)
		}
	}

	return &Snapshot{items: sorted}, nil
}

// MustNew is like New but panics on invalid items. Intended for tests and
// static fixtures.
func MustNew(items ...LineItem) *Snapshot {
	s, err := New(items)
	if err != nil {
		panic(err)
	}
	return s
}

// Items returns a copy of the line items ordered by product id.
func (s *Snapshot) Items() []LineItem {
	if s == nil {
		return nil
	}
	return slices.Clone(s.items)
}

// Len returns the number of line items.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// IsEmpty reports whether the cart has no line items.
func (s *Snapshot) IsEmpty() bool {
	return s.Len() == 0
}

// Get returns the line item for productID.
func (s *Snapshot) Get(productID string) (LineItem, bool) {
	if s == nil {
		return LineItem{}, false
	}
	i, ok := slices.BinarySearchFunc(s.items, productID, func(item LineItem, id string) int {
		return strings.Compare(item.ProductID, id)
	})
	if !ok {
		return LineItem{}, false
	}
	return s.items[i], true
}

// Total returns the sum of all line subtotals. It is recomputed on every
// call and never cached.
func (s *Snapshot) Total() decimal.Decimal {
	total := money.Zero
	if s == nil {
		return total
	}
	for _, item := range s.items {
		total = total.Add(item.Subtotal())
	}
	return total
}
