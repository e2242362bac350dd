package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-coupons/internal/domain/cart"
	"github.com/xenking/kart-coupons/internal/domain/coupon"
	"github.com/xenking/kart-coupons/internal/domain/customer"
)

const (
	getCustomerSQL = `SELECT id, name, tier FROM customers WHERE id = $1`

	listExclusiveUsesSQL = `SELECT coupon_id, uses_remaining
		FROM customer_exclusive_coupons WHERE customer_id = $1`

	upsertCustomerSQL = `INSERT INTO customers (id, name, tier) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, tier = EXCLUDED.tier`

	clearExclusiveUsesSQL = `DELETE FROM customer_exclusive_coupons WHERE customer_id = $1`

	insertExclusiveUsesSQL = `INSERT INTO customer_exclusive_coupons (customer_id, coupon_id, uses_remaining)
		VALUES ($1, $2, $3)`

	listCartItemsSQL = `SELECT product_id, quantity, unit_price
		FROM cart_items WHERE customer_id = $1 ORDER BY product_id`

	upsertCartItemSQL = `INSERT INTO cart_items (customer_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_id, product_id) DO UPDATE
		SET quantity = EXCLUDED.quantity, unit_price = EXCLUDED.unit_price`

	updateCartQuantitySQL = `UPDATE cart_items SET quantity = $3
		WHERE customer_id = $1 AND product_id = $2`

	deleteCartItemSQL = `DELETE FROM cart_items WHERE customer_id = $1 AND product_id = $2`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given
// pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// Get returns the customer with their exclusive coupon uses.
func (r *CustomerRepository) Get(ctx context.Context, id string) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, getCustomerSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get customer %q", id)
	}
	c, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (customer.Customer, error) {
		var (
			c    customer.Customer
			tier string
		)
		err := row.Scan(&c.ID, &c.Name, &tier)
		c.Tier = coupon.Tier(tier)
		return c, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get customer %q", id)
	}

	rows, err = r.pool.Query(ctx, listExclusiveUsesSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "list exclusive coupons of %q", id)
	}
	c.ExclusiveUses = map[string]int{}
	var (
		couponID string
		uses     int
	)
	if _, err := pgx.ForEachRow(rows, []any{&couponID, &uses}, func() error {
		c.ExclusiveUses[couponID] = uses
		return nil
	}); err != nil {
		return nil, errors.Wrapf(err, "list exclusive coupons of %q", id)
	}
	return &c, nil
}

// Upsert stores the customer and replaces their exclusive coupon uses.
func (r *CustomerRepository) Upsert(ctx context.Context, c *customer.Customer) error {
	if !c.Tier.Valid() {
		return errors.Errorf("customer %q: unknown tier %q", c.ID, c.Tier)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer rollback(ctx, tx)

	if _, err := tx.Exec(ctx, upsertCustomerSQL, c.ID, c.Name, string(c.Tier)); err != nil {
		return errors.Wrapf(err, "upsert customer %q", c.ID)
	}
	if _, err := tx.Exec(ctx, clearExclusiveUsesSQL, c.ID); err != nil {
		return errors.Wrapf(err, "clear exclusive coupons of %q", c.ID)
	}
	for couponID, uses := range c.ExclusiveUses {
		if _, err := tx.Exec(ctx, insertExclusiveUsesSQL, c.ID, couponID, uses); err != nil {
			return errors.Wrapf(err, "insert exclusive coupon %q", couponID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Snapshot returns the customer's cart.
func (r *CustomerRepository) Snapshot(ctx context.Context, id string) (*cart.Snapshot, error) {
	rows, err := r.pool.Query(ctx, listCartItemsSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "list cart of %q", id)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.LineItem, error) {
		var li cart.LineItem
		err := row.Scan(&li.ProductID, &li.Quantity, &li.UnitPrice)
		return li, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list cart of %q", id)
	}
	return cart.New(items)
}

// UpsertItem inserts a cart line or replaces the line for the same product.
func (r *CustomerRepository) UpsertItem(ctx context.Context, id string, item cart.LineItem) error {
	if _, err := r.pool.Exec(ctx, upsertCartItemSQL,
		id, item.ProductID, item.Quantity, item.UnitPrice,
	); err != nil {
		return errors.Wrapf(err, "upsert cart item %q", item.ProductID)
	}
	return nil
}

// UpdateQuantity sets the quantity of an existing cart line.
func (r *CustomerRepository) UpdateQuantity(ctx context.Context, id, productID string, quantity int) error {
	tag, err := r.pool.Exec(ctx, updateCartQuantitySQL, id, productID, quantity)
	if err != nil {
		return errors.Wrapf(err, "update cart item %q", productID)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrItemNotInCart
	}
	return nil
}

// RemoveItem deletes a cart line.
func (r *CustomerRepository) RemoveItem(ctx context.Context, id, productID string) error {
	tag, err := r.pool.Exec(ctx, deleteCartItemSQL, id, productID)
	if err != nil {
		return errors.Wrapf(err, "remove cart item %q", productID)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrItemNotInCart
	}
	return nil
}
