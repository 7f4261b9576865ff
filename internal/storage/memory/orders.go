package memory

import (
	"context"
	"math"
	"sync"

	"github.com/imagedrop/storefront/internal/domain"
)

// OrderStore tracks active order sessions in process memory. All status
// mutations go through Transition/SetVerified so the forward-only state
// machine holds under concurrent poll ticks and webhooks.
type OrderStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*domain.Order)}
}

func (s *OrderStore) Create(_ context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.ID]; ok {
		return domain.ErrOrderExists
	}
	o := order
	s.orders[order.ID] = &o
	return nil
}

func (s *OrderStore) Get(_ context.Context, orderID string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

// FindByAddress matches the webhook reconciliation key: payment address
// plus expected amount within tolerance.
func (s *OrderStore) FindByAddress(_ context.Context, address string, amount, tolerance float64) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.PaymentAddress == address && math.Abs(o.ExpectedAmount-amount) < tolerance {
			return copyOrder(o), nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

// Transition moves the order to the given status. Moving to the status
// the order already has is a no-op; leaving a terminal status is an
// error.
func (s *OrderStore) Transition(_ context.Context, orderID string, to domain.OrderStatus) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if o.Status == to {
		return copyOrder(o), nil
	}
	if !o.Status.CanTransition(to) {
		return domain.Order{}, domain.ErrOrderTerminal
	}
	o.Status = to
	return copyOrder(o), nil
}

// SetVerified transitions to verified and records the delivered image
// set. Repeating the call with the same set is a no-op; a different set
// after verification is an invariant violation.
func (s *OrderStore) SetVerified(_ context.Context, orderID string, imageIDs []string) (domain.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return domain.Order{}, false, domain.ErrOrderNotFound
	}
	if o.Status == domain.OrderStatusVerified {
		if sameIDs(o.DeliveredImageIDs, imageIDs) {
			return copyOrder(o), false, nil
		}
		return domain.Order{}, false, domain.ErrAlreadyDelivered
	}
	if !o.Status.CanTransition(domain.OrderStatusVerified) {
		return domain.Order{}, false, domain.ErrOrderTerminal
	}
	o.Status = domain.OrderStatusVerified
	o.DeliveredImageIDs = append([]string(nil), imageIDs...)
	return copyOrder(o), true, nil
}

// Delete garbage-collects a session from active tracking. Absent ids
// are a no-op.
func (s *OrderStore) Delete(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, orderID)
	return nil
}

func copyOrder(o *domain.Order) domain.Order {
	out := *o
	out.DeliveredImageIDs = append([]string(nil), o.DeliveredImageIDs...)
	return out
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		seen[id]--
		if seen[id] < 0 {
			return false
		}
	}
	return true
}
