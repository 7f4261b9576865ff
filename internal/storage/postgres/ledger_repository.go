package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imagedrop/storefront/internal/domain"
)

// LedgerRepository is the durable audit trail, one row per order.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) Append(ctx context.Context, entry domain.LedgerEntry) error {
	const stmt = `
INSERT INTO ledger_entries (order_id, ts, location_id, product_tier, amount, address, status, images_delivered)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, stmt,
		entry.OrderID,
		entry.Timestamp,
		entry.LocationID,
		entry.ProductTier,
		entry.Amount,
		entry.Address,
		entry.Status,
		entry.ImagesDelivered,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderExists
		}
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Update(ctx context.Context, orderID string, status domain.OrderStatus, imagesDelivered int, at time.Time) error {
	const stmt = `
UPDATE ledger_entries SET status = $2, images_delivered = $3, ts = $4
WHERE order_id = $1`

	tag, err := r.pool.Exec(ctx, stmt, orderID, status, imagesDelivered, at)
	if err != nil {
		return fmt.Errorf("update ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *LedgerRepository) List(ctx context.Context) ([]domain.LedgerEntry, error) {
	const query = `
SELECT order_id, ts, location_id, product_tier, amount, address, status, images_delivered
FROM ledger_entries
ORDER BY ts DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var status string
		if err := rows.Scan(
			&e.OrderID,
			&e.Timestamp,
			&e.LocationID,
			&e.ProductTier,
			&e.Amount,
			&e.Address,
			&status,
			&e.ImagesDelivered,
		); err != nil {
			return nil, err
		}
		e.Status = domain.OrderStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}
