package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imagedrop/storefront/internal/domain"
)

// InventoryRepository is the durable image inventory. Reserve relies
// on row locks so concurrent orders serialize on the same bucket.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

const imageColumns = `id, filename, location_id, product_tier, blob_ref, size, uploaded_at, status, delivered_at, order_id`

func (r *InventoryRepository) ListAvailable(ctx context.Context, locationID, tier string) ([]domain.Image, error) {
	query := `
SELECT ` + imageColumns + `
FROM images
WHERE location_id = $1 AND product_tier = $2 AND status = 'available'
ORDER BY uploaded_at, id`

	rows, err := r.query(ctx, query, locationID, tier)
	if err != nil {
		return nil, fmt.Errorf("list available: %w", err)
	}
	defer rows.Close()
	return scanImages(rows)
}

func (r *InventoryRepository) ListAll(ctx context.Context) ([]domain.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images ORDER BY uploaded_at, id`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all: %w", err)
	}
	defer rows.Close()
	return scanImages(rows)
}

// Reserve locks the first count available rows of the bucket and marks
// them delivered in one transaction. Fewer than count available rows
// aborts the transaction untouched.
func (r *InventoryRepository) Reserve(ctx context.Context, locationID, tier string, count int) ([]domain.Image, error) {
	if count <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	var out []domain.Image
	err := withTx(ctx, r.pool, func(txCtx context.Context) error {
		query := `
SELECT id
FROM images
WHERE location_id = $1 AND product_tier = $2 AND status = 'available'
ORDER BY uploaded_at, id
LIMIT $3
FOR UPDATE`

		rows, err := r.query(txCtx, query, locationID, tier, count)
		if err != nil {
			return fmt.Errorf("lock available: %w", err)
		}
		ids, err := scanIDs(rows)
		if err != nil {
			return err
		}
		if len(ids) < count {
			return domain.ErrInsufficientInventory
		}

		update := `
UPDATE images SET status = 'delivered'
WHERE id = ANY($1)
RETURNING ` + imageColumns

		updated, err := r.query(txCtx, update, ids)
		if err != nil {
			return fmt.Errorf("mark reserved: %w", err)
		}
		out, err = scanImages(updated)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *InventoryRepository) AttachOrder(ctx context.Context, imageIDs []string, orderID string, at time.Time) error {
	const stmt = `UPDATE images SET order_id = $2, delivered_at = $3 WHERE id = ANY($1)`

	tag, err := r.exec(ctx, stmt, imageIDs, orderID, at)
	if err != nil {
		return fmt.Errorf("attach order: %w", err)
	}
	if int(tag.RowsAffected()) != len(imageIDs) {
		return domain.ErrImageNotFound
	}
	return nil
}

func (r *InventoryRepository) Insert(ctx context.Context, images []domain.Image) error {
	const stmt = `
INSERT INTO images (id, filename, location_id, product_tier, blob_ref, size, uploaded_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	return withTx(ctx, r.pool, func(txCtx context.Context) error {
		for _, img := range images {
			if _, err := r.exec(txCtx, stmt,
				img.ID,
				img.Filename,
				img.LocationID,
				img.ProductTier,
				img.BlobRef,
				img.Size,
				img.UploadedAt,
				img.Status,
			); err != nil {
				return fmt.Errorf("insert image: %w", err)
			}
		}
		return nil
	})
}

func (r *InventoryRepository) MarkDelivered(ctx context.Context, imageIDs []string, at time.Time) (int, error) {
	const stmt = `
UPDATE images SET status = 'delivered', delivered_at = $2
WHERE id = ANY($1) AND status = 'available'`

	tag, err := r.exec(ctx, stmt, imageIDs, at)
	if err != nil {
		return 0, fmt.Errorf("mark delivered: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *InventoryRepository) Delete(ctx context.Context, imageID string) error {
	if _, err := r.exec(ctx, `DELETE FROM images WHERE id = $1`, imageID); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}

func (r *InventoryRepository) Counts(ctx context.Context) (available, delivered int, err error) {
	const query = `
SELECT
	COUNT(*) FILTER (WHERE status = 'available'),
	COUNT(*) FILTER (WHERE status = 'delivered')
FROM images`

	if err := r.queryRow(ctx, query).Scan(&available, &delivered); err != nil {
		return 0, 0, fmt.Errorf("count images: %w", err)
	}
	return available, delivered, nil
}

func (r *InventoryRepository) Get(ctx context.Context, imageID string) (domain.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`

	img, err := scanImage(r.queryRow(ctx, query, imageID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Image{}, domain.ErrImageNotFound
		}
		return domain.Image{}, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

func scanImages(rows pgx.Rows) ([]domain.Image, error) {
	defer rows.Close()
	var out []domain.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func scanImage(row pgx.Row) (domain.Image, error) {
	var img domain.Image
	var status string
	var orderID *string
	err := row.Scan(
		&img.ID,
		&img.Filename,
		&img.LocationID,
		&img.ProductTier,
		&img.BlobRef,
		&img.Size,
		&img.UploadedAt,
		&status,
		&img.DeliveredAt,
		&orderID,
	)
	if err != nil {
		return domain.Image{}, err
	}
	img.Status = domain.ImageStatus(status)
	if orderID != nil {
		img.OrderID = *orderID
	}
	return img, nil
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *InventoryRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *InventoryRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *InventoryRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
