package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/imagedrop/storefront/internal/clock"
	"github.com/imagedrop/storefront/internal/domain"
	"github.com/imagedrop/storefront/internal/storage/memory"
)

var testCatalog = domain.Catalog{
	Locations: []domain.Location{{ID: "Kentron", Name: "Kentron"}, {ID: "Komitas", Name: "Komitas"}},
	Tiers:     []domain.ProductTier{{Code: "0.5G", UnitPrice: 26}, {Code: "1.0G", UnitPrice: 35}},
}

type fakeAddressGen struct {
	addr string
	err  error
}

func (g *fakeAddressGen) NewAddress(_ context.Context, _ string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.addr, nil
}

type failingLedger struct {
	memory.LedgerStore
	appendErr error
}

func (l *failingLedger) Append(ctx context.Context, entry domain.LedgerEntry) error {
	if l.appendErr != nil {
		return l.appendErr
	}
	return l.LedgerStore.Append(ctx, entry)
}

func newOrderService(now time.Time) (*OrderService, *memory.OrderStore, *memory.LedgerStore) {
	orders := memory.NewOrderStore()
	ledger := memory.NewLedgerStore()
	svc := NewOrderService(orders, ledger, &fakeAddressGen{addr: "Xaddr"}, clock.NewFixed(now), testCatalog, zerolog.Nop())
	return svc, orders, ledger
}

func TestOrderService_Create(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("creates pending order with deadline and ledger entry", func(t *testing.T) {
		t.Parallel()
		svc, _, ledger := newOrderService(now)

		order, err := svc.Create(ctx, CreateOrderInput{LocationID: "Kentron", ProductTier: "0.5G"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if order.ID == "" {
			t.Fatalf("expected generated order id")
		}
		if order.Status != domain.OrderStatusPending {
			t.Fatalf("expected pending, got %s", order.Status)
		}
		if order.ExpectedAmount != 26 {
			t.Fatalf("expected tier price 26, got %v", order.ExpectedAmount)
		}
		if order.PaymentAddress != "Xaddr" {
			t.Fatalf("expected allocated address, got %q", order.PaymentAddress)
		}
		if !order.ExpiresAt.Equal(now.Add(15 * time.Minute)) {
			t.Fatalf("expected expiry at %v, got %v", now.Add(15*time.Minute), order.ExpiresAt)
		}

		entries, _ := ledger.List(ctx)
		if len(entries) != 1 || entries[0].OrderID != order.ID || entries[0].Status != domain.OrderStatusPending {
			t.Fatalf("expected pending ledger entry, got %+v", entries)
		}
	})

	t.Run("honors custom ttl and client order id", func(t *testing.T) {
		t.Parallel()
		orders := memory.NewOrderStore()
		svc := NewOrderService(orders, memory.NewLedgerStore(), &fakeAddressGen{addr: "Xaddr"}, clock.NewFixed(now), testCatalog, zerolog.Nop(), WithOrderTTL(time.Hour))

		order, err := svc.Create(ctx, CreateOrderInput{OrderID: "Kentron-0.5G-777", LocationID: "Kentron", ProductTier: "0.5G", Amount: 30})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if order.ID != "Kentron-0.5G-777" {
			t.Fatalf("expected client id kept, got %s", order.ID)
		}
		if order.ExpectedAmount != 30 {
			t.Fatalf("expected amount override 30, got %v", order.ExpectedAmount)
		}
		if !order.ExpiresAt.Equal(now.Add(time.Hour)) {
			t.Fatalf("expected one hour ttl, got %v", order.ExpiresAt)
		}
	})

	t.Run("rejects unknown location", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newOrderService(now)

		if _, err := svc.Create(ctx, CreateOrderInput{LocationID: "Nowhere", ProductTier: "0.5G"}); err != domain.ErrLocationNotFound {
			t.Fatalf("expected ErrLocationNotFound, got %v", err)
		}
	})

	t.Run("rejects unknown tier", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newOrderService(now)

		if _, err := svc.Create(ctx, CreateOrderInput{LocationID: "Kentron", ProductTier: "9G"}); err != domain.ErrProductNotFound {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
	})

	t.Run("rejects negative amount", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newOrderService(now)

		if _, err := svc.Create(ctx, CreateOrderInput{LocationID: "Kentron", ProductTier: "0.5G", Amount: -1}); err != domain.ErrInvalidAmount {
			t.Fatalf("expected ErrInvalidAmount, got %v", err)
		}
	})

	t.Run("duplicate order id", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newOrderService(now)

		in := CreateOrderInput{OrderID: "dup", LocationID: "Kentron", ProductTier: "0.5G"}
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatalf("first create: %v", err)
		}
		if _, err := svc.Create(ctx, in); err != domain.ErrOrderExists {
			t.Fatalf("expected ErrOrderExists, got %v", err)
		}
	})

	t.Run("rolls back the order when the ledger append fails", func(t *testing.T) {
		t.Parallel()
		orders := memory.NewOrderStore()
		ledger := &failingLedger{appendErr: errors.New("disk full")}
		svc := NewOrderService(orders, ledger, &fakeAddressGen{addr: "Xaddr"}, clock.NewFixed(now), testCatalog, zerolog.Nop())

		if _, err := svc.Create(ctx, CreateOrderInput{OrderID: "o1", LocationID: "Kentron", ProductTier: "0.5G"}); err == nil {
			t.Fatalf("expected error")
		}
		if _, err := orders.Get(ctx, "o1"); err != domain.ErrOrderNotFound {
			t.Fatalf("expected order rolled back, got %v", err)
		}
	})
}

func TestOrderService_Cancel(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("expiry removes the session and records expired", func(t *testing.T) {
		t.Parallel()
		svc, orders, ledger := newOrderService(now)
		order, _ := svc.Create(ctx, CreateOrderInput{OrderID: "o1", LocationID: "Kentron", ProductTier: "0.5G"})

		if err := svc.Cancel(ctx, order.ID, CancelExpired); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := orders.Get(ctx, order.ID); err != domain.ErrOrderNotFound {
			t.Fatalf("expected session removed, got %v", err)
		}
		entries, _ := ledger.List(ctx)
		if entries[0].Status != domain.OrderStatusExpired {
			t.Fatalf("expected expired in ledger, got %s", entries[0].Status)
		}
	})

	t.Run("lookup failure records failed", func(t *testing.T) {
		t.Parallel()
		svc, _, ledger := newOrderService(now)
		order, _ := svc.Create(ctx, CreateOrderInput{OrderID: "o1", LocationID: "Kentron", ProductTier: "0.5G"})

		if err := svc.Cancel(ctx, order.ID, CancelLookupFailed); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		entries, _ := ledger.List(ctx)
		if entries[0].Status != domain.OrderStatusFailed {
			t.Fatalf("expected failed in ledger, got %s", entries[0].Status)
		}
	})

	t.Run("cancelling a verified order is a no-op", func(t *testing.T) {
		t.Parallel()
		svc, orders, _ := newOrderService(now)
		order, _ := svc.Create(ctx, CreateOrderInput{OrderID: "o1", LocationID: "Kentron", ProductTier: "0.5G"})
		if _, err := svc.MarkVerified(ctx, order.ID, []string{"img-1"}); err != nil {
			t.Fatalf("verify: %v", err)
		}

		if err := svc.Cancel(ctx, order.ID, CancelExpired); err != nil {
			t.Fatalf("expected no-op, got %v", err)
		}
		got, err := orders.Get(ctx, order.ID)
		if err != nil {
			t.Fatalf("expected verified order kept, got %v", err)
		}
		if got.Status != domain.OrderStatusVerified {
			t.Fatalf("expected verified, got %s", got.Status)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newOrderService(now)
		if err := svc.Cancel(ctx, "missing", CancelExpired); err != domain.ErrOrderNotFound {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})
}

func TestOrderService_MarkVerified(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	svc, _, ledger := newOrderService(now)
	order, _ := svc.Create(ctx, CreateOrderInput{OrderID: "o1", LocationID: "Kentron", ProductTier: "0.5G"})

	got, err := svc.MarkVerified(ctx, order.ID, []string{"img-1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Status != domain.OrderStatusVerified {
		t.Fatalf("expected verified, got %s", got.Status)
	}

	entries, _ := ledger.List(ctx)
	if entries[0].Status != domain.OrderStatusVerified || entries[0].ImagesDelivered != 1 {
		t.Fatalf("expected verified ledger entry with 1 image, got %+v", entries[0])
	}

	if _, err := svc.MarkVerified(ctx, order.ID, []string{"img-1"}); err != nil {
		t.Fatalf("repeat verify: %v", err)
	}
	if _, err := svc.MarkVerified(ctx, order.ID, []string{"img-2"}); err != domain.ErrAlreadyDelivered {
		t.Fatalf("expected ErrAlreadyDelivered, got %v", err)
	}
}

func TestOrderService_MarkChecking(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	svc, orders, ledger := newOrderService(now)
	order, _ := svc.Create(ctx, CreateOrderInput{OrderID: "o1", LocationID: "Kentron", ProductTier: "0.5G"})

	svc.MarkChecking(ctx, order.ID)

	got, _ := orders.Get(ctx, order.ID)
	if got.Status != domain.OrderStatusChecking {
		t.Fatalf("expected checking, got %s", got.Status)
	}
	entries, _ := ledger.List(ctx)
	if entries[0].Status != domain.OrderStatusChecking {
		t.Fatalf("expected checking in ledger, got %s", entries[0].Status)
	}

	// Safe on unknown and terminal orders.
	svc.MarkChecking(ctx, "missing")
	if _, err := svc.MarkVerified(ctx, order.ID, []string{"img-1"}); err != nil {
		t.Fatalf("verify: %v", err)
	}
	svc.MarkChecking(ctx, order.ID)
	got, _ = orders.Get(ctx, order.ID)
	if got.Status != domain.OrderStatusVerified {
		t.Fatalf("expected verified untouched, got %s", got.Status)
	}
}
