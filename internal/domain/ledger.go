package domain

import "time"

// LedgerEntry is the append-only audit record for one order. The row is
// mutated in place as the order's status changes but never removed.
type LedgerEntry struct {
	OrderID         string
	Timestamp       time.Time
	LocationID      string
	ProductTier     string
	Amount          float64
	Address         string
	Status          OrderStatus
	ImagesDelivered int
}
