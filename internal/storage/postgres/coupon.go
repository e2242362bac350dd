package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-coupons/internal/domain/coupon"
	"github.com/xenking/kart-coupons/internal/wire"
)

const (
	couponColumns = `id, type, details, active, valid_from, valid_until, eligible_tiers, description`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY id`

	getCouponSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	insertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	upsertCouponSQL = insertCouponSQL + `
		ON CONFLICT (id) DO UPDATE
		SET type = EXCLUDED.type, details = EXCLUDED.details, active = EXCLUDED.active,
			valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
			eligible_tiers = EXCLUDED.eligible_tiers, description = EXCLUDED.description,
			updated_at = now()`

	updateCouponSQL = `UPDATE coupons
		SET type = $2, details = $3, active = $4, valid_from = $5, valid_until = $6,
			eligible_tiers = $7, description = $8, updated_at = now()
		WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL. The
// variant payload is stored as JSONB in the details column.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Create inserts a new coupon. Returns coupon.ErrAlreadyExists when the ID
// is taken.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	args, err := couponArgs(c)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, insertCouponSQL, args...); err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(coupon.ErrAlreadyExists, "coupon %q", c.ID)
		}
		return errors.Wrapf(err, "create coupon %q", c.ID)
	}
	return nil
}

// Upsert inserts c or replaces the stored coupon with the same ID.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	args, err := couponArgs(c)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, upsertCouponSQL, args...); err != nil {
		return errors.Wrapf(err, "upsert coupon %q", c.ID)
	}
	return nil
}

// Get returns the coupon with the given ID.
func (r *CouponRepository) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get coupon %q", id)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get coupon %q", id)
	}
	return &c, nil
}

// List returns all coupons ordered by ID.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	cs, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return cs, nil
}

// Update replaces a stored coupon. Returns coupon.ErrNotFound when the ID
// does not exist.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	args, err := couponArgs(c)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, updateCouponSQL, args...)
	if err != nil {
		return errors.Wrapf(err, "update coupon %q", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes a coupon. Returns coupon.ErrNotFound when the ID does not
// exist.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete coupon %q", id)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func couponArgs(c *coupon.Coupon) ([]any, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	tiers := make([]string, 0, len(c.EligibleTiers))
	for _, t := range c.EligibleTiers {
		tiers = append(tiers, string(t))
	}
	return []any{
		c.ID,
		string(c.Type()),
		wire.MarshalRules(c.Rules),
		c.Active,
		c.ValidFrom,
		c.ValidUntil,
		tiers,
		c.Description,
	}, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c       coupon.Coupon
		typ     string
		details []byte
		tiers   []string
	)
	if err := row.Scan(
		&c.ID, &typ, &details, &c.Active, &c.ValidFrom, &c.ValidUntil, &tiers, &c.Description,
	); err != nil {
		return c, err
	}

	rules, err := wire.DecodeRules(c.ID, coupon.Type(typ), details)
	if err != nil {
		return c, errors.Wrapf(err, "decode details of coupon %q", c.ID)
	}
	c.Rules = rules

	c.ValidFrom = c.ValidFrom.UTC()
	if c.ValidUntil != nil {
		until := c.ValidUntil.UTC()
		c.ValidUntil = &until
	}
	for _, t := range tiers {
		c.EligibleTiers = append(c.EligibleTiers, coupon.Tier(t))
	}
	return c, nil
}
