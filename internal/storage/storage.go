package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Storage defines the interface for uploaded avatar files.
type Storage interface {
	// Upload stores a file under input.Key.
	Upload(ctx context.Context, input *UploadInput) error

	// Delete removes a file by its key. A missing file is not an error.
	Delete(ctx context.Context, key string) error
}

// UploadInput holds the parameters for uploading a file.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Data        io.Reader
}

// AvatarKey returns a fresh storage key for an account's uploaded picture,
// keeping the lower-cased extension of filename.
func AvatarKey(accountID, filename string) string {
	return path.Join("profile_pictures", accountID, uuid.NewString()+strings.ToLower(path.Ext(filename)))
}
