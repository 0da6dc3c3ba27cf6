package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
)

const defaultCacheControl = "public, max-age=31536000, immutable"

// Uploader writes publicly readable image objects to a Cloud Storage bucket.
type Uploader struct {
	client        *gcs.Client
	bucket        string
	publicBaseURL string
	cacheControl  string
}

// UploaderOption customises an Uploader.
type UploaderOption func(*Uploader)

// WithCacheControl overrides the Cache-Control metadata stored on uploaded objects.
func WithCacheControl(value string) UploaderOption {
	return func(u *Uploader) {
		if v := strings.TrimSpace(value); v != "" {
			u.cacheControl = v
		}
	}
}

// NewUploader constructs an Uploader. publicBaseURL is joined with the object name to
// form the URL stored on catalogs.
func NewUploader(client *gcs.Client, bucket, publicBaseURL string, opts ...UploaderOption) (*Uploader, error) {
	if client == nil {
		return nil, errors.New("storage uploader: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage uploader: bucket is required")
	}
	base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if base == "" {
		base = "https://storage.googleapis.com/" + bucket
	}
	u := &Uploader{
		client:        client,
		bucket:        bucket,
		publicBaseURL: base,
		cacheControl:  defaultCacheControl,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u, nil
}

// Upload stores data at object and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, object, contentType string, data []byte) (string, error) {
	if u == nil || u.client == nil {
		return "", errors.New("storage uploader: not initialised")
	}
	object = strings.TrimLeft(strings.TrimSpace(object), "/")
	if object == "" {
		return "", errors.New("storage uploader: object name is required")
	}

	w := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = u.cacheControl
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("storage uploader: write %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage uploader: finalize %s: %w", object, err)
	}
	return u.PublicURL(object), nil
}

// PublicURL returns the URL an object is served from.
func (u *Uploader) PublicURL(object string) string {
	segments := strings.Split(object, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return u.publicBaseURL + "/" + strings.Join(segments, "/")
}

// Ping checks that the bucket is reachable with the configured credentials.
func (u *Uploader) Ping(ctx context.Context) error {
	if u == nil || u.client == nil {
		return errors.New("storage uploader: not initialised")
	}
	_, err := u.client.Bucket(u.bucket).Attrs(ctx)
	return err
}
