package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/showcase/api/internal/platform/imagehost"
	"github.com/showcase/api/internal/platform/media"
	"github.com/showcase/api/internal/platform/storage"
)

// DefaultMaxUploadBytes bounds the raw upload before compression.
const DefaultMaxUploadBytes int64 = 10 << 20

var (
	// ErrImageInvalid indicates the upload is not a decodable image or is too large.
	ErrImageInvalid = errors.New("image: invalid upload")
	// ErrImageUpload indicates the image host could not store the image.
	ErrImageUpload = errors.New("image server connection failed")
)

// ImageServiceDeps wires dependencies for the image service implementation.
type ImageServiceDeps struct {
	Host           imagehost.Host
	MaxWidth       int
	Quality        int
	MaxUploadBytes int64
	Clock          func() time.Time
	IDGenerator    func() string
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type imageService struct {
	host     imagehost.Host
	opts     media.Options
	maxBytes int64
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

var _ ImageService = (*imageService)(nil)

// NewImageService constructs an ImageService.
func NewImageService(deps ImageServiceDeps) (ImageService, error) {
	if deps.Host == nil {
		return nil, errors.New("image service: host is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	maxBytes := deps.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &imageService{
		host:     deps.Host,
		opts:     media.Options{MaxWidth: deps.MaxWidth, Quality: deps.Quality},
		maxBytes: maxBytes,
		now:      func() time.Time { return clock().UTC() },
		newID:    idGen,
		logger:   logger,
	}, nil
}

// Upload compresses the image and stores it. Every host failure surfaces as ErrImageUpload.
func (s *imageService) Upload(ctx context.Context, cmd ImageUploadCommand) (UploadedImage, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return UploadedImage{}, fmt.Errorf("%w: user id is required", ErrImageInvalid)
	}
	if cmd.Body == nil {
		return UploadedImage{}, fmt.Errorf("%w: image is required", ErrImageInvalid)
	}
	purpose := cmd.Purpose
	if purpose == "" {
		purpose = storage.PurposeItemImage
	}

	raw, err := io.ReadAll(io.LimitReader(cmd.Body, s.maxBytes+1))
	if err != nil {
		return UploadedImage{}, fmt.Errorf("%w: read image: %v", ErrImageInvalid, err)
	}
	if int64(len(raw)) > s.maxBytes {
		return UploadedImage{}, fmt.Errorf("%w: image exceeds %d bytes", ErrImageInvalid, s.maxBytes)
	}
	if len(raw) == 0 {
		return UploadedImage{}, fmt.Errorf("%w: image is empty", ErrImageInvalid)
	}

	started := s.now()
	compressed, err := media.Compress(bytes.NewReader(raw), s.opts)
	if err != nil {
		return UploadedImage{}, fmt.Errorf("%w: %v", ErrImageInvalid, err)
	}

	url, err := s.host.Put(ctx, imagehost.Image{
		UserID:      userID,
		ImageID:     strings.ToLower(s.newID()),
		Purpose:     purpose,
		ContentType: media.ContentTypeJPEG,
		Data:        compressed.Data,
	})
	if err != nil {
		s.logger(ctx, "image.upload_failed", map[string]any{
			"purpose": string(purpose),
			"bytes":   len(compressed.Data),
			"error":   err.Error(),
		})
		return UploadedImage{}, fmt.Errorf("%w: %v", ErrImageUpload, err)
	}

	s.logger(ctx, "image.uploaded", map[string]any{
		"purpose":       string(purpose),
		"originalBytes": len(raw),
		"bytes":         len(compressed.Data),
		"width":         compressed.Width,
		"height":        compressed.Height,
		"elapsedMs":     s.now().Sub(started).Milliseconds(),
	})
	return UploadedImage{
		URL:    url,
		Width:  compressed.Width,
		Height: compressed.Height,
		Bytes:  len(compressed.Data),
	}, nil
}
