package domain

import "time"

type ImageStatus string

const (
	ImageStatusAvailable ImageStatus = "available"
	ImageStatusDelivered ImageStatus = "delivered"
)

// Image is one uploaded product image. It lives in exactly one bucket
// and is delivered to at most one order.
type Image struct {
	ID          string
	Filename    string
	LocationID  string
	ProductTier string
	BlobRef     string
	Size        int64
	UploadedAt  time.Time
	Status      ImageStatus
	DeliveredAt *time.Time
	OrderID     string
}