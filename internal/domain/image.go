package domain

import (
	"context"
)

// Accepted product image content types.
var ImageContentTypes = map[string]string{
	"image/png":  "png",
	"image/jpg":  "jpg",
	"image/jpeg": "jpg",
}

// Upload is an image received with a product form.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FileStore abstracts raw file byte storage.
// Delete returns ErrNotFound when the key is already absent.
type FileStore interface {
	Save(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}
