package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/XxvipoxX/ChaosAWS/internal/storage"
)

// File is a stored upload.
type File struct {
	Key         string
	ContentType string
	Data        []byte
}

// Storage implements storage.Storage using an in-memory map. It is intended
// for tests and single-process development.
type Storage struct {
	mu    sync.RWMutex
	files map[string]*File
}

// New creates a new in-memory storage instance.
func New() *Storage {
	return &Storage{files: make(map[string]*File)}
}

// Upload reads the file into memory.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, input.Data); err != nil {
		return fmt.Errorf("read upload %s: %w", input.Key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[input.Key] = &File{Key: input.Key, ContentType: input.ContentType, Data: buf.Bytes()}
	return nil
}

// Delete drops the file.
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	return nil
}

// Get returns a stored file.
func (s *Storage) Get(key string) (*File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[key]
	return f, ok
}

// Len returns the number of stored files.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
