package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-coupons/internal/domain/coupon"
	"github.com/xenking/kart-coupons/internal/domain/redemption"
)

const (
	lockExclusiveUsesSQL = `SELECT uses_remaining FROM customer_exclusive_coupons
		WHERE customer_id = $1 AND coupon_id = $2
		FOR UPDATE`

	decrementExclusiveUsesSQL = `UPDATE customer_exclusive_coupons
		SET uses_remaining = uses_remaining - 1
		WHERE customer_id = $1 AND coupon_id = $2`

	insertHistorySQL = `INSERT INTO coupon_history
		(id, customer_id, coupon_id, coupon_type, discount, original_total, final_total, exclusive, applied_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	listHistorySQL = `SELECT id, customer_id, coupon_id, coupon_type, discount, original_total, final_total, exclusive, applied_at
		FROM coupon_history WHERE customer_id = $1
		ORDER BY applied_at DESC, id`
)

var _ redemption.Ledger = (*HistoryRepository)(nil)

// HistoryRepository implements redemption.Ledger backed by PostgreSQL.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository returns a HistoryRepository that uses the given pool.
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Record appends a to the coupon history. For exclusive applications the
// customer's row is locked and decremented in the same transaction, so two
// concurrent applies cannot both spend the last use.
func (r *HistoryRepository) Record(ctx context.Context, a *redemption.Application) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer rollback(ctx, tx)

	if a.Exclusive {
		var uses int
		err := tx.QueryRow(ctx, lockExclusiveUsesSQL, a.CustomerID, a.CouponID).Scan(&uses)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return errors.Wrap(err, "lock exclusive uses")
		}
		if errors.Is(err, pgx.ErrNoRows) || uses <= 0 {
			return &redemption.IneligibleError{CouponID: a.CouponID, Reason: coupon.ReasonNoUsesRemaining}
		}
		if _, err := tx.Exec(ctx, decrementExclusiveUsesSQL, a.CustomerID, a.CouponID); err != nil {
			return errors.Wrap(err, "decrement exclusive uses")
		}
	}

	if _, err := tx.Exec(ctx, insertHistorySQL,
		a.ID, a.CustomerID, a.CouponID, string(a.CouponType),
		a.Discount, a.OriginalTotal, a.FinalTotal, a.Exclusive, a.AppliedAt,
	); err != nil {
		return errors.Wrap(err, "insert history")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// History returns the customer's applications, most recent first.
func (r *HistoryRepository) History(ctx context.Context, customerID string) ([]redemption.Application, error) {
	rows, err := r.pool.Query(ctx, listHistorySQL, customerID)
	if err != nil {
		return nil, errors.Wrapf(err, "list history of %q", customerID)
	}
	apps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (redemption.Application, error) {
		var (
			a   redemption.Application
			typ string
		)
		err := row.Scan(
			&a.ID, &a.CustomerID, &a.CouponID, &typ,
			&a.Discount, &a.OriginalTotal, &a.FinalTotal, &a.Exclusive, &a.AppliedAt,
		)
		a.CouponType = coupon.Type(typ)
		a.AppliedAt = a.AppliedAt.UTC()
		return a, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list history of %q", customerID)
	}
	return apps, nil
}
