package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FSStore writes blobs to a flat directory, one file per blob. The ref
// is the generated file name, never a caller-controlled path.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) Put(_ context.Context, name string, r io.Reader) (string, int64, error) {
	ref := uuid.NewString() + sanitizeExt(name)
	path := filepath.Join(s.root, ref)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("create blob: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write blob: %w", err)
	}
	return ref, n, nil
}

func (s *FSStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	if ref != filepath.Base(ref) {
		return nil, os.ErrNotExist
	}
	return os.Open(filepath.Join(s.root, ref))
}

func (s *FSStore) Remove(_ context.Context, ref string) error {
	if ref != filepath.Base(ref) {
		return os.ErrNotExist
	}
	err := os.Remove(filepath.Join(s.root, ref))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '.' {
			return ""
		}
	}
	return ext
}
