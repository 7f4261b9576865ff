package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/imagedrop/storefront/internal/clock"
	"github.com/imagedrop/storefront/internal/domain"
	"github.com/imagedrop/storefront/internal/metrics"
)

// DeliveryService hands reserved images to a confirmed order: reserve,
// attach, mark verified, update the ledger. Reservation happens at most
// once per order even when poll ticks and webhooks overlap.
type DeliveryService struct {
	inventory  InventoryRepository
	orders     *OrderService
	clock      clock.Clock
	imageCount int
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

const defaultImageCount = 1

type DeliveryServiceOption func(*DeliveryService)

// WithImageCount overrides how many images a confirmed order receives.
func WithImageCount(n int) DeliveryServiceOption {
	return func(s *DeliveryService) {
		if n > 0 {
			s.imageCount = n
		}
	}
}

func NewDeliveryService(inventory InventoryRepository, orders *OrderService, clk clock.Clock, m *metrics.Metrics, logger zerolog.Logger, opts ...DeliveryServiceOption) *DeliveryService {
	svc := &DeliveryService{
		inventory:  inventory,
		orders:     orders,
		clock:      clk,
		imageCount: defaultImageCount,
		metrics:    m,
		logger:     logger.With().Str("component", "delivery").Logger(),
		inflight:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Deliver is called after the payment for the order was confirmed. It
// is idempotent: repeating the call for a verified order returns the
// images already handed out. ErrInsufficientInventory leaves the order
// open; the payment is confirmed but nothing was handed out.
func (s *DeliveryService) Deliver(ctx context.Context, orderID, txid string) ([]domain.Image, error) {
	if !s.begin(orderID) {
		// Another tick or webhook is mid-delivery for this order.
		return nil, domain.ErrAlreadyDelivered
	}
	defer s.end(orderID)

	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.OrderStatusVerified:
		return s.deliveredImages(ctx, order)
	case domain.OrderStatusExpired:
		return nil, domain.ErrOrderExpired
	case domain.OrderStatusFailed:
		return nil, domain.ErrOrderTerminal
	}

	images, err := s.inventory.Reserve(ctx, order.LocationID, order.ProductTier, s.imageCount)
	if err != nil {
		if err == domain.ErrInsufficientInventory {
			s.logger.Warn().
				Str("order", orderID).
				Str("location", order.LocationID).
				Str("tier", order.ProductTier).
				Msg("payment confirmed but bucket is empty")
			return nil, err
		}
		return nil, fmt.Errorf("reserve images: %w", err)
	}

	ids := make([]string, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.ID)
	}
	if err := s.inventory.AttachOrder(ctx, ids, orderID, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("attach order: %w", err)
	}
	if _, err := s.orders.MarkVerified(ctx, orderID, ids); err != nil {
		// The reservation stands; refusing here would hand the same
		// image to a second order.
		s.logger.Error().Err(err).Str("order", orderID).Msg("mark verified failed after reservation")
		return nil, err
	}

	s.metrics.PaymentsConfirmed.Inc()
	s.metrics.ImagesDelivered.Add(float64(len(images)))
	s.logger.Info().
		Str("order", orderID).
		Str("txid", txid).
		Int("images", len(images)).
		Msg("payment confirmed, images delivered")
	return images, nil
}

func (s *DeliveryService) deliveredImages(ctx context.Context, order domain.Order) ([]domain.Image, error) {
	out := make([]domain.Image, 0, len(order.DeliveredImageIDs))
	for _, id := range order.DeliveredImageIDs {
		img, err := s.inventory.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

func (s *DeliveryService) begin(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[orderID]; busy {
		return false
	}
	s.inflight[orderID] = struct{}{}
	return true
}

func (s *DeliveryService) end(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, orderID)
}
