package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngFixture(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestCompressScalesWideImagesKeepingAspectRatio(t *testing.T) {
	res, err := Compress(bytes.NewReader(pngFixture(t, 1600, 1200, color.NRGBA{R: 200, A: 255})), Options{})
	require.NoError(t, err)

	assert.Equal(t, 800, res.Width)
	assert.Equal(t, 600, res.Height)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)
}

func TestCompressKeepsNarrowImages(t *testing.T) {
	res, err := Compress(bytes.NewReader(pngFixture(t, 320, 100, color.NRGBA{G: 120, A: 255})), Options{MaxWidth: 800, Quality: 60})
	require.NoError(t, err)
	assert.Equal(t, 320, res.Width)
	assert.Equal(t, 100, res.Height)
}

func TestCompressFlattensTransparency(t *testing.T) {
	res, err := Compress(bytes.NewReader(pngFixture(t, 10, 10, color.NRGBA{})), Options{})
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	r, g, b, _ := img.At(5, 5).RGBA()
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestCompressRejectsNonImages(t *testing.T) {
	_, err := Compress(strings.NewReader("definitely not a picture"), Options{})
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}
