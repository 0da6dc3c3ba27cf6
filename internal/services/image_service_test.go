package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/showcase/api/internal/platform/imagehost"
	"github.com/showcase/api/internal/platform/storage"
)

type fakeImageHost struct {
	puts []imagehost.Image
	err  error
}

func (h *fakeImageHost) Put(_ context.Context, img imagehost.Image) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	h.puts = append(h.puts, img)
	return "https://img.example.com/" + img.UserID + "/" + img.ImageID + ".jpg", nil
}

func pngFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageServiceCompressesAndStores(t *testing.T) {
	host := &fakeImageHost{}
	svc, err := NewImageService(ImageServiceDeps{Host: host, IDGenerator: sequentialIDs("IMG")})
	require.NoError(t, err)

	uploaded, err := svc.Upload(context.Background(), ImageUploadCommand{
		UserID:  "owner-1",
		Purpose: storage.PurposeLogo,
		Body:    bytes.NewReader(pngFixture(t, 1600, 400)),
	})
	require.NoError(t, err)

	assert.Equal(t, 800, uploaded.Width)
	assert.Equal(t, 200, uploaded.Height)
	assert.Equal(t, "https://img.example.com/owner-1/img00000001.jpg", uploaded.URL)
	require.Len(t, host.puts, 1)
	assert.Equal(t, "image/jpeg", host.puts[0].ContentType)
	assert.Equal(t, storage.PurposeLogo, host.puts[0].Purpose)
	assert.Equal(t, uploaded.Bytes, len(host.puts[0].Data))
	assert.Equal(t, []byte{0xff, 0xd8}, host.puts[0].Data[:2], "stored as JPEG")
}

func TestImageServiceDefaultsToItemPurpose(t *testing.T) {
	host := &fakeImageHost{}
	svc, err := NewImageService(ImageServiceDeps{Host: host})
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), ImageUploadCommand{UserID: "owner-1", Body: bytes.NewReader(pngFixture(t, 20, 20))})
	require.NoError(t, err)
	require.Len(t, host.puts, 1)
	assert.Equal(t, storage.PurposeItemImage, host.puts[0].Purpose)
}

func TestImageServiceHostFailureIsUploadError(t *testing.T) {
	logs := &logRecorder{}
	svc, err := NewImageService(ImageServiceDeps{Host: &fakeImageHost{err: errors.New("dial tcp: refused")}, Logger: logs.log})
	require.NoError(t, err)

	_, err = svc.Upload(context.Background(), ImageUploadCommand{UserID: "owner-1", Body: bytes.NewReader(pngFixture(t, 10, 10))})
	require.ErrorIs(t, err, ErrImageUpload)
	assert.Contains(t, err.Error(), "image server connection failed")
	assert.True(t, logs.has("image.upload_failed"))
}

func TestImageServiceRejectsBadInput(t *testing.T) {
	host := &fakeImageHost{}
	svc, err := NewImageService(ImageServiceDeps{Host: host, MaxUploadBytes: 64})
	require.NoError(t, err)
	ctx := context.Background()

	cases := []ImageUploadCommand{
		{Body: strings.NewReader("x")},
		{UserID: "owner-1"},
		{UserID: "owner-1", Body: strings.NewReader("")},
		{UserID: "owner-1", Body: strings.NewReader("definitely not an image")},
		{UserID: "owner-1", Body: bytes.NewReader(pngFixture(t, 64, 64))},
	}
	for i, cmd := range cases {
		_, err := svc.Upload(ctx, cmd)
		assert.ErrorIs(t, err, ErrImageInvalid, "case %d", i)
	}
	assert.Empty(t, host.puts)
}
