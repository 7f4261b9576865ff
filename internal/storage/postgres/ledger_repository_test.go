package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/imagedrop/storefront/internal/domain"
	"github.com/imagedrop/storefront/internal/testutil"
)

func TestLedgerRepository_Integration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	repo := NewLedgerRepository(pool)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	entry := func(orderID string, ts time.Time) domain.LedgerEntry {
		return domain.LedgerEntry{
			OrderID:     orderID,
			Timestamp:   ts,
			LocationID:  "Kentron",
			ProductTier: "0.5G",
			Amount:      26,
			Address:     "addr-" + orderID,
			Status:      domain.OrderStatusPending,
		}
	}

	t.Run("append and list newest first", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		if err := repo.Append(ctx, entry("o1", now)); err != nil {
			t.Fatalf("append o1: %v", err)
		}
		if err := repo.Append(ctx, entry("o2", now.Add(time.Minute))); err != nil {
			t.Fatalf("append o2: %v", err)
		}

		got, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 2 || got[0].OrderID != "o2" || got[1].OrderID != "o1" {
			t.Fatalf("expected [o2 o1], got %+v", got)
		}
	})

	t.Run("duplicate order id", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		if err := repo.Append(ctx, entry("o1", now)); err != nil {
			t.Fatalf("append: %v", err)
		}
		if err := repo.Append(ctx, entry("o1", now)); err != domain.ErrOrderExists {
			t.Fatalf("expected ErrOrderExists, got %v", err)
		}
	})

	t.Run("update status in place", func(t *testing.T) {
		testutil.TruncateAll(t, ctx, pool)

		if err := repo.Append(ctx, entry("o1", now)); err != nil {
			t.Fatalf("append: %v", err)
		}
		later := now.Add(5 * time.Minute)
		if err := repo.Update(ctx, "o1", domain.OrderStatusVerified, 1, later); err != nil {
			t.Fatalf("update: %v", err)
		}

		got, _ := repo.List(ctx)
		if got[0].Status != domain.OrderStatusVerified || got[0].ImagesDelivered != 1 {
			t.Fatalf("expected verified entry, got %+v", got[0])
		}

		if err := repo.Update(ctx, "missing", domain.OrderStatusFailed, 0, later); err != domain.ErrOrderNotFound {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})
}
