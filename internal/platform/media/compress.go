package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/disintegration/imaging"

	// Register decoders for formats phones commonly upload.
	_ "image/gif"
	_ "image/png"
)

const (
	// DefaultMaxWidth is the widest an uploaded image is stored.
	DefaultMaxWidth = 800
	// DefaultJPEGQuality balances size against legibility of menu photos.
	DefaultJPEGQuality = 80
	// ContentTypeJPEG is the content type of every compressed image.
	ContentTypeJPEG = "image/jpeg"
)

// ErrUnsupportedImage is returned when the input cannot be decoded as an image.
var ErrUnsupportedImage = errors.New("media: unsupported or corrupt image")

// Options control compression.
type Options struct {
	MaxWidth int
	Quality  int
}

func (o Options) withDefaults() Options {
	if o.MaxWidth <= 0 {
		o.MaxWidth = DefaultMaxWidth
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultJPEGQuality
	}
	return o
}

// Result is a compressed JPEG and its final dimensions.
type Result struct {
	Data   []byte
	Width  int
	Height int
}

// Compress decodes r, honours EXIF orientation, scales down to MaxWidth keeping the aspect
// ratio and re-encodes as JPEG. Narrower images keep their size. Transparent regions are
// flattened onto white.
func Compress(r io.Reader, opts Options) (Result, error) {
	opts = opts.withDefaults()

	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > opts.MaxWidth {
		img = imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)
		bounds = img.Bounds()
	}

	flat := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(opts.Quality)); err != nil {
		return Result{}, fmt.Errorf("media: encode jpeg: %w", err)
	}
	return Result{Data: buf.Bytes(), Width: bounds.Dx(), Height: bounds.Dy()}, nil
}
