// Package qrcode renders PNG QR codes pointing at public catalog URLs.
package qrcode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/disintegration/imaging"
)

const (
	DefaultSize = 512
	MinSize     = 128
	MaxSize     = 2048
	ContentType = "image/png"
)

// Options control rendering.
type Options struct {
	Size       int
	Foreground string
	// Logo, when set, is decoded and centred over the code. Error correction is raised
	// so the covered modules stay recoverable.
	Logo []byte
}

// ErrContentRequired is returned when encoding an empty payload.
var ErrContentRequired = errors.New("qrcode: content is required")

// ClampSize keeps a requested pixel size within the supported range.
func ClampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	default:
		return size
	}
}

// Render encodes content as a square PNG.
func Render(content string, opts Options) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrContentRequired
	}
	size := ClampSize(opts.Size)
	fg, err := ParseHexColor(opts.Foreground)
	if err != nil {
		fg = color.NRGBA{A: 0xff}
	}

	level := qr.M
	if len(opts.Logo) > 0 {
		level = qr.H
	}
	code, err := qr.Encode(content, level, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode: %w", err)
	}

	margin := size / 16
	inner := size - 2*margin
	if inner < code.Bounds().Dx() {
		inner = code.Bounds().Dx()
	}
	scaled, err := barcode.Scale(code, inner, inner)
	if err != nil {
		return nil, fmt.Errorf("qrcode: scale: %w", err)
	}

	canvas := imaging.New(size, size, color.White)
	tinted := tint(scaled, fg)
	canvas = imaging.PasteCenter(canvas, tinted)

	if len(opts.Logo) > 0 {
		withLogo, err := overlayLogo(canvas, opts.Logo)
		if err != nil {
			return nil, err
		}
		canvas = withLogo
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("qrcode: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func tint(src image.Image, fg color.Color) *image.NRGBA {
	b := src.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			gray := color.GrayModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			if gray.Y < 128 {
				out.Set(x, y, fg)
			}
		}
	}
	return out
}

// overlayLogo centres the logo on a white pad covering at most a fifth of the code width.
func overlayLogo(canvas *image.NRGBA, data []byte) (*image.NRGBA, error) {
	logo, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("qrcode: decode logo: %w", err)
	}
	side := canvas.Bounds().Dx() / 5
	logo = imaging.Fit(logo, side, side, imaging.Lanczos)

	pad := side / 8
	backing := imaging.New(logo.Bounds().Dx()+2*pad, logo.Bounds().Dy()+2*pad, color.White)
	backing = imaging.PasteCenter(backing, logo)
	return imaging.PasteCenter(canvas, backing), nil
}

// ParseHexColor parses #RGB or #RRGGBB.
func ParseHexColor(value string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("qrcode: invalid colour %q", value)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("qrcode: invalid colour %q", value)
	}
	return color.NRGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, nil
}
