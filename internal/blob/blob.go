package blob

import (
	"context"
	"io"
)

// Store persists uploaded image bytes. The returned ref is what the
// inventory records as BlobRef.
type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (ref string, size int64, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Remove(ctx context.Context, ref string) error
}
