package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/imagedrop/storefront/internal/blob"
	"github.com/imagedrop/storefront/internal/clock"
	"github.com/imagedrop/storefront/internal/domain"
)

// InventoryRepository is the mutation API for the image inventory.
// Reserve must be atomic with respect to concurrent Reserve calls on
// the same bucket and must mutate nothing when it fails.
type InventoryRepository interface {
	ListAvailable(ctx context.Context, locationID, tier string) ([]domain.Image, error)
	ListAll(ctx context.Context) ([]domain.Image, error)
	Reserve(ctx context.Context, locationID, tier string, count int) ([]domain.Image, error)
	AttachOrder(ctx context.Context, imageIDs []string, orderID string, at time.Time) error
	Insert(ctx context.Context, images []domain.Image) error
	MarkDelivered(ctx context.Context, imageIDs []string, at time.Time) (int, error)
	Delete(ctx context.Context, imageID string) error
	Counts(ctx context.Context) (available, delivered int, err error)
	Get(ctx context.Context, imageID string) (domain.Image, error)
}

type InventoryService struct {
	repo   InventoryRepository
	blobs  blob.Store
	clock  clock.Clock
	logger zerolog.Logger
}

func NewInventoryService(repo InventoryRepository, blobs blob.Store, clk clock.Clock, logger zerolog.Logger) *InventoryService {
	return &InventoryService{
		repo:   repo,
		blobs:  blobs,
		clock:  clk,
		logger: logger.With().Str("component", "inventory").Logger(),
	}
}

// UploadFile is one file from the admin multipart form.
type UploadFile struct {
	Name   string
	Reader io.Reader
}

// Upload stores the blobs and appends new available images to the
// bucket. Empty files are skipped, matching the admin form behavior.
func (s *InventoryService) Upload(ctx context.Context, locationID, tier string, files []UploadFile) ([]domain.Image, error) {
	if locationID == "" || tier == "" {
		return nil, domain.ErrInvalidID
	}

	now := s.clock.Now()
	uploaded := make([]domain.Image, 0, len(files))
	for _, f := range files {
		ref, size, err := s.blobs.Put(ctx, f.Name, f.Reader)
		if err != nil {
			return nil, fmt.Errorf("store blob %q: %w", f.Name, err)
		}
		if size == 0 {
			_ = s.blobs.Remove(ctx, ref)
			continue
		}
		uploaded = append(uploaded, domain.Image{
			ID:          newID(),
			Filename:    f.Name,
			LocationID:  locationID,
			ProductTier: tier,
			BlobRef:     ref,
			Size:        size,
			UploadedAt:  now,
			Status:      domain.ImageStatusAvailable,
		})
	}
	if len(uploaded) == 0 {
		return nil, nil
	}

	if err := s.repo.Insert(ctx, uploaded); err != nil {
		for _, img := range uploaded {
			_ = s.blobs.Remove(ctx, img.BlobRef)
		}
		return nil, fmt.Errorf("insert images: %w", err)
	}

	s.logger.Info().
		Str("location", locationID).
		Str("tier", tier).
		Int("count", len(uploaded)).
		Msg("images uploaded")
	return uploaded, nil
}

func (s *InventoryService) ListAvailable(ctx context.Context, locationID, tier string) ([]domain.Image, error) {
	return s.repo.ListAvailable(ctx, locationID, tier)
}

// Overview is the admin inventory report: available images plus the
// delivered total.
type Overview struct {
	Images    []domain.Image
	Total     int
	Delivered int
}

func (s *InventoryService) Overview(ctx context.Context) (Overview, error) {
	images, err := s.repo.ListAll(ctx)
	if err != nil {
		return Overview{}, err
	}
	available := make([]domain.Image, 0, len(images))
	delivered := 0
	for _, img := range images {
		switch img.Status {
		case domain.ImageStatusAvailable:
			available = append(available, img)
		case domain.ImageStatusDelivered:
			delivered++
		}
	}
	return Overview{Images: available, Total: len(available), Delivered: delivered}, nil
}

// MarkDelivered is the admin bulk action behind DELETE /inventory.
func (s *InventoryService) MarkDelivered(ctx context.Context, imageIDs []string) (int, error) {
	return s.repo.MarkDelivered(ctx, imageIDs, s.clock.Now())
}

// Delete removes an image and its blob entirely. Absent ids are a
// no-op.
func (s *InventoryService) Delete(ctx context.Context, imageID string) error {
	img, err := s.repo.Get(ctx, imageID)
	if err != nil {
		if err == domain.ErrImageNotFound {
			return nil
		}
		return err
	}
	if err := s.repo.Delete(ctx, imageID); err != nil {
		return err
	}
	if err := s.blobs.Remove(ctx, img.BlobRef); err != nil {
		s.logger.Warn().Err(err).Str("image", imageID).Msg("failed to remove blob")
	}
	return nil
}

// OpenImage returns the blob contents for a stored image.
func (s *InventoryService) OpenImage(ctx context.Context, imageID string) (domain.Image, io.ReadCloser, error) {
	img, err := s.repo.Get(ctx, imageID)
	if err != nil {
		return domain.Image{}, nil, err
	}
	rc, err := s.blobs.Open(ctx, img.BlobRef)
	if err != nil {
		return domain.Image{}, nil, fmt.Errorf("open blob: %w", err)
	}
	return img, rc, nil
}
