package memory

import (
	"context"
	"sync"
	"time"

	"github.com/imagedrop/storefront/internal/domain"
)

// LedgerStore keeps the append-only audit trail in process memory,
// newest first.
type LedgerStore struct {
	mu      sync.Mutex
	entries []domain.LedgerEntry
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{}
}

func (s *LedgerStore) Append(_ context.Context, entry domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.OrderID == entry.OrderID {
			return domain.ErrOrderExists
		}
	}
	s.entries = append([]domain.LedgerEntry{entry}, s.entries...)
	return nil
}

// Update mutates the order's entry in place as its status changes.
func (s *LedgerStore) Update(_ context.Context, orderID string, status domain.OrderStatus, imagesDelivered int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].OrderID == orderID {
			s.entries[i].Status = status
			s.entries[i].ImagesDelivered = imagesDelivered
			s.entries[i].Timestamp = at
			return nil
		}
	}
	return domain.ErrOrderNotFound
}

func (s *LedgerStore) List(_ context.Context) ([]domain.LedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LedgerEntry(nil), s.entries...), nil
}
