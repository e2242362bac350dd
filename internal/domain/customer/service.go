package customer

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-coupons/internal/domain/cart"
	"github.com/xenking/kart-coupons/internal/domain/product"
)

// Service encapsulates cart management.
type Service struct {
	customers Repository
	products  product.Repository
}

// NewService creates a cart Service.
func NewService(customers Repository, products product.Repository) *Service {
	return &Service{customers: customers, products: products}
}

// Cart returns the current cart of a customer.
func (s *Service) Cart(ctx context.Context, customerID string) (*cart.Snapshot, error) {
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	sn, err := s.customers.Snapshot(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return sn, nil
}

// AddToCart puts quantity units of a catalog product into the cart at the
// current catalog price. Adding a product already in the cart replaces its
// line.
func (s *Service) AddToCart(ctx context.Context, customerID, productID string, quantity int) (*cart.Snapshot, error) {
	if quantity <= 0 {
		return nil, &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	item := cart.LineItem{ProductID: p.ID, Quantity: quantity, UnitPrice: p.Price}
	if err := s.customers.UpsertItem(ctx, customerID, item); err != nil {
		return nil, errors.Wrap(err, "upsert cart item")
	}
	return s.Cart(ctx, customerID)
}

// UpdateCartItem sets the quantity of a product already in the cart.
func (s *Service) UpdateCartItem(ctx context.Context, customerID, productID string, quantity int) (*cart.Snapshot, error) {
	if quantity <= 0 {
		return nil, &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	if err := s.customers.UpdateQuantity(ctx, customerID, productID, quantity); err != nil {
		return nil, err
	}
	return s.Cart(ctx, customerID)
}

// RemoveFromCart drops a product from the cart.
func (s *Service) RemoveFromCart(ctx context.Context, customerID, productID string) (*cart.Snapshot, error) {
	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	if err := s.customers.RemoveItem(ctx, customerID, productID); err != nil {
		return nil, err
	}
	return s.Cart(ctx, customerID)
}
