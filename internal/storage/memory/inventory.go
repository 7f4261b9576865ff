package memory

import (
	"context"
	"sync"
	"time"

	"github.com/imagedrop/storefront/internal/domain"
)

// InventoryStore keeps uploaded images in process memory, insertion
// ordered. Reserve is the single mutation point concurrent orders
// serialize through.
type InventoryStore struct {
	mu     sync.Mutex
	images []domain.Image
}

func NewInventoryStore() *InventoryStore {
	return &InventoryStore{}
}

func (s *InventoryStore) ListAvailable(_ context.Context, locationID, tier string) ([]domain.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Image
	for _, img := range s.images {
		if img.Status == domain.ImageStatusAvailable && img.LocationID == locationID && img.ProductTier == tier {
			out = append(out, img)
		}
	}
	return out, nil
}

func (s *InventoryStore) ListAll(_ context.Context) ([]domain.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Image(nil), s.images...), nil
}

// Reserve atomically marks the first count available images of the
// bucket as delivered. All-or-nothing: fewer than count available means
// no mutation at all.
func (s *InventoryStore) Reserve(_ context.Context, locationID, tier string, count int) ([]domain.Image, error) {
	if count <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var idx []int
	for i, img := range s.images {
		if img.Status == domain.ImageStatusAvailable && img.LocationID == locationID && img.ProductTier == tier {
			idx = append(idx, i)
			if len(idx) == count {
				break
			}
		}
	}
	if len(idx) < count {
		return nil, domain.ErrInsufficientInventory
	}

	out := make([]domain.Image, 0, count)
	for _, i := range idx {
		s.images[i].Status = domain.ImageStatusDelivered
		out = append(out, s.images[i])
	}
	return out, nil
}

// AttachOrder stamps previously reserved images with their owning order
// and the delivery timestamp.
func (s *InventoryStore) AttachOrder(_ context.Context, imageIDs []string, orderID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range imageIDs {
		found := false
		for i := range s.images {
			if s.images[i].ID == id {
				s.images[i].OrderID = orderID
				t := at
				s.images[i].DeliveredAt = &t
				found = true
				break
			}
		}
		if !found {
			return domain.ErrImageNotFound
		}
	}
	return nil
}

func (s *InventoryStore) Insert(_ context.Context, images []domain.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, images...)
	return nil
}

// MarkDelivered flags the given images as delivered without an owning
// order (admin bulk action). Unknown ids are skipped.
func (s *InventoryStore) MarkDelivered(_ context.Context, imageIDs []string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for _, id := range imageIDs {
		for i := range s.images {
			if s.images[i].ID == id && s.images[i].Status == domain.ImageStatusAvailable {
				s.images[i].Status = domain.ImageStatusDelivered
				t := at
				s.images[i].DeliveredAt = &t
				marked++
			}
		}
	}
	return marked, nil
}

// Delete removes an image entirely. Absent ids are a no-op.
func (s *InventoryStore) Delete(_ context.Context, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.images {
		if s.images[i].ID == imageID {
			s.images = append(s.images[:i], s.images[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *InventoryStore) Counts(_ context.Context) (available, delivered int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, img := range s.images {
		switch img.Status {
		case domain.ImageStatusAvailable:
			available++
		case domain.ImageStatusDelivered:
			delivered++
		}
	}
	return available, delivered, nil
}

func (s *InventoryStore) Get(_ context.Context, imageID string) (domain.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, img := range s.images {
		if img.ID == imageID {
			return img, nil
		}
	}
	return domain.Image{}, domain.ErrImageNotFound
}
