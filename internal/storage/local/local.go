package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/XxvipoxX/ChaosAWS/internal/storage"
)

// Storage implements storage.Storage on the local filesystem under a root
// directory, which is also served at the media URL.
type Storage struct {
	root string
}

// New creates a disk storage rooted at root, creating it if needed.
func New(root string) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media root %s: %w", root, err)
	}
	return &Storage{root: root}, nil
}

// Root returns the media root directory.
func (s *Storage) Root() string {
	return s.root
}

// path resolves key inside root, rejecting keys that escape it.
func (s *Storage) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Upload writes the file to a temporary name and renames it into place.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := s.path(input.Key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, input.Data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write upload %s: %w", input.Key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close upload %s: %w", input.Key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("store upload %s: %w", input.Key, err)
	}
	return nil
}

// Delete removes the file if it exists.
func (s *Storage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
