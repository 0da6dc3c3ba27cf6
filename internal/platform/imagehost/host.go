// Package imagehost stores compressed catalog images and returns the public URL that
// catalogs reference.
package imagehost

import (
	"context"
	"errors"
	"fmt"

	"github.com/showcase/api/internal/platform/storage"
)

// ErrUploadFailed is returned when the backing host cannot be reached or rejects the upload.
var ErrUploadFailed = errors.New("imagehost: upload failed")

// Image is a ready-to-store image.
type Image struct {
	UserID      string
	ImageID     string
	Purpose     storage.ImagePurpose
	ContentType string
	Data        []byte
}

// Host persists images.
type Host interface {
	Put(ctx context.Context, img Image) (string, error)
}

// ObjectUploader is the subset of storage.Uploader used by the GCS host.
type ObjectUploader interface {
	Upload(ctx context.Context, object, contentType string, data []byte) (string, error)
}

// GCSHost stores images in the configured Cloud Storage bucket.
type GCSHost struct {
	uploader ObjectUploader
	prefix   string
}

// NewGCSHost constructs a host writing objects under prefix.
func NewGCSHost(uploader ObjectUploader, prefix string) (*GCSHost, error) {
	if uploader == nil {
		return nil, errors.New("imagehost: uploader is required")
	}
	return &GCSHost{uploader: uploader, prefix: prefix}, nil
}

// Put uploads the image and returns its public URL.
func (h *GCSHost) Put(ctx context.Context, img Image) (string, error) {
	object, err := storage.BuildObjectPath(img.Purpose, storage.PathParams{
		Prefix:  h.prefix,
		UserID:  img.UserID,
		ImageID: img.ImageID,
	})
	if err != nil {
		return "", err
	}
	url, err := h.uploader.Upload(ctx, object, img.ContentType, img.Data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return url, nil
}
