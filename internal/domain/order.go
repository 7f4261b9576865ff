package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusChecking OrderStatus = "checking"
	OrderStatusVerified OrderStatus = "verified"
	OrderStatusFailed   OrderStatus = "failed"
	OrderStatusExpired  OrderStatus = "expired"
)

// Terminal reports whether no further transitions are allowed.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusVerified, OrderStatusFailed, OrderStatusExpired:
		return true
	}
	return false
}

// CanTransition enforces the forward-only state machine:
// pending -> checking -> verified, or pending|checking -> failed|expired.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	switch to {
	case OrderStatusChecking:
		return s == OrderStatusPending
	case OrderStatusVerified, OrderStatusFailed, OrderStatusExpired:
		return s == OrderStatusPending || s == OrderStatusChecking
	}
	return false
}

// Order is one buyer's in-progress purchase session.
type Order struct {
	ID                string
	LocationID        string
	ProductTier       string
	PaymentAddress    string
	ExpectedAmount    float64
	CreatedAt         time.Time
	ExpiresAt         time.Time
	Status            OrderStatus
	DeliveredImageIDs []string
}
