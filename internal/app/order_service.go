package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/imagedrop/storefront/internal/clock"
	"github.com/imagedrop/storefront/internal/domain"
)

// OrderRepository tracks active order sessions. Status changes go
// through Transition/SetVerified so the forward-only state machine is
// enforced at the single mutation point.
type OrderRepository interface {
	Create(ctx context.Context, order domain.Order) error
	Get(ctx context.Context, orderID string) (domain.Order, error)
	FindByAddress(ctx context.Context, address string, amount, tolerance float64) (domain.Order, error)
	Transition(ctx context.Context, orderID string, to domain.OrderStatus) (domain.Order, error)
	SetVerified(ctx context.Context, orderID string, imageIDs []string) (domain.Order, bool, error)
	Delete(ctx context.Context, orderID string) error
}

// LedgerRepository is the append-only audit trail, one entry per order.
type LedgerRepository interface {
	Append(ctx context.Context, entry domain.LedgerEntry) error
	Update(ctx context.Context, orderID string, status domain.OrderStatus, imagesDelivered int, at time.Time) error
	List(ctx context.Context) ([]domain.LedgerEntry, error)
}

// AddressGenerator allocates a fresh payment address for an order.
type AddressGenerator interface {
	NewAddress(ctx context.Context, orderID string) (string, error)
}

type OrderService struct {
	orders   OrderRepository
	ledger   LedgerRepository
	addrs    AddressGenerator
	clock    clock.Clock
	catalog  domain.Catalog
	orderTTL time.Duration
	logger   zerolog.Logger
}

const defaultOrderTTL = 15 * time.Minute

type OrderServiceOption func(*OrderService)

// WithOrderTTL overrides the default payment deadline for new orders.
func WithOrderTTL(d time.Duration) OrderServiceOption {
	return func(s *OrderService) {
		if d > 0 {
			s.orderTTL = d
		}
	}
}

func NewOrderService(orders OrderRepository, ledger LedgerRepository, addrs AddressGenerator, clk clock.Clock, catalog domain.Catalog, logger zerolog.Logger, opts ...OrderServiceOption) *OrderService {
	svc := &OrderService{
		orders:   orders,
		ledger:   ledger,
		addrs:    addrs,
		clock:    clk,
		catalog:  catalog,
		orderTTL: defaultOrderTTL,
		logger:   logger.With().Str("component", "orders").Logger(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CreateOrderInput struct {
	// OrderID is optional; the buyer client may supply its own id.
	OrderID     string
	LocationID  string
	ProductTier string
	// Amount overrides the tier's unit price when non-zero.
	Amount float64
}

// Create allocates a payment address, sets the expiry deadline and
// appends the pending ledger entry.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if !s.catalog.HasLocation(in.LocationID) {
		return domain.Order{}, domain.ErrLocationNotFound
	}
	tier, ok := s.catalog.TierByCode(in.ProductTier)
	if !ok {
		return domain.Order{}, domain.ErrProductNotFound
	}

	amount := tier.UnitPrice
	if in.Amount != 0 {
		if in.Amount < 0 {
			return domain.Order{}, domain.ErrInvalidAmount
		}
		amount = in.Amount
	}

	orderID := in.OrderID
	if orderID == "" {
		orderID = newID()
	}

	address, err := s.addrs.NewAddress(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("allocate address: %w", err)
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:             orderID,
		LocationID:     in.LocationID,
		ProductTier:    in.ProductTier,
		PaymentAddress: address,
		ExpectedAmount: amount,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.orderTTL),
		Status:         domain.OrderStatusPending,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return domain.Order{}, err
	}
	if err := s.ledger.Append(ctx, domain.LedgerEntry{
		OrderID:     order.ID,
		Timestamp:   now,
		LocationID:  order.LocationID,
		ProductTier: order.ProductTier,
		Amount:      order.ExpectedAmount,
		Address:     order.PaymentAddress,
		Status:      order.Status,
	}); err != nil {
		_ = s.orders.Delete(ctx, order.ID)
		return domain.Order{}, fmt.Errorf("append ledger: %w", err)
	}

	s.logger.Info().
		Str("order", order.ID).
		Str("location", order.LocationID).
		Str("tier", order.ProductTier).
		Float64("amount", order.ExpectedAmount).
		Time("expires_at", order.ExpiresAt).
		Msg("order created")
	return order, nil
}

func (s *OrderService) Get(ctx context.Context, orderID string) (domain.Order, error) {
	return s.orders.Get(ctx, orderID)
}

func (s *OrderService) FindByAddress(ctx context.Context, address string, amount, tolerance float64) (domain.Order, error) {
	return s.orders.FindByAddress(ctx, address, amount, tolerance)
}

// MarkChecking records that a balance lookup has started for the order.
// Best effort; a terminal order is left alone.
func (s *OrderService) MarkChecking(ctx context.Context, orderID string) {
	if _, err := s.orders.Transition(ctx, orderID, domain.OrderStatusChecking); err != nil {
		return
	}
	_ = s.ledger.Update(ctx, orderID, domain.OrderStatusChecking, 0, s.clock.Now())
}

type CancelReason string

const (
	CancelExpired       CancelReason = "expired"
	CancelUserAbandoned CancelReason = "abandoned"
	CancelLookupFailed  CancelReason = "lookup_failed"
)

// Cancel moves the order to its terminal failure status and removes it
// from active tracking. Already-terminal orders are a no-op.
func (s *OrderService) Cancel(ctx context.Context, orderID string, reason CancelReason) error {
	to := domain.OrderStatusFailed
	if reason == CancelExpired {
		to = domain.OrderStatusExpired
	}

	order, err := s.orders.Transition(ctx, orderID, to)
	if err != nil {
		if err == domain.ErrOrderTerminal {
			return nil
		}
		return err
	}
	if err := s.ledger.Update(ctx, orderID, order.Status, 0, s.clock.Now()); err != nil {
		s.logger.Warn().Err(err).Str("order", orderID).Msg("ledger update failed on cancel")
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return err
	}

	s.logger.Info().Str("order", orderID).Str("reason", string(reason)).Msg("order cancelled")
	return nil
}

// MarkVerified stores the delivered image set on the order. Idempotent
// for the same set; a different set after verification returns
// ErrAlreadyDelivered.
func (s *OrderService) MarkVerified(ctx context.Context, orderID string, imageIDs []string) (domain.Order, error) {
	order, changed, err := s.orders.SetVerified(ctx, orderID, imageIDs)
	if err != nil {
		return domain.Order{}, err
	}
	if changed {
		if err := s.ledger.Update(ctx, orderID, domain.OrderStatusVerified, len(imageIDs), s.clock.Now()); err != nil {
			s.logger.Warn().Err(err).Str("order", orderID).Msg("ledger update failed on verify")
		}
	}
	return order, nil
}

// Ledger lists all audit entries, newest first.
func (s *OrderService) Ledger(ctx context.Context) ([]domain.LedgerEntry, error) {
	return s.ledger.List(ctx)
}
