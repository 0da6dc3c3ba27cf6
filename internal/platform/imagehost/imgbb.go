package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultImgBBEndpoint is the public ImgBB upload API.
const DefaultImgBBEndpoint = "https://api.imgbb.com/1/upload"

// ImgBBHost uploads images to the ImgBB hosting API.
type ImgBBHost struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// ImgBBOption customises an ImgBBHost.
type ImgBBOption func(*ImgBBHost)

// WithHTTPClient overrides the HTTP client. The default client is instrumented with otelhttp.
func WithHTTPClient(client *http.Client) ImgBBOption {
	return func(h *ImgBBHost) {
		if client != nil {
			h.client = client
		}
	}
}

// NewImgBBHost constructs an ImgBB host.
func NewImgBBHost(endpoint, apiKey string, timeout time.Duration, opts ...ImgBBOption) (*ImgBBHost, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("imagehost: imgbb api key is required")
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = DefaultImgBBEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	h := &ImgBBHost{
		endpoint: endpoint,
		apiKey:   apiKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

type imgbbResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		URL        string `json:"url"`
		DisplayURL string `json:"display_url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Put uploads the image as the multipart "image" field and returns data.url.
// A single attempt is made; the caller decides whether to try again.
func (h *ImgBBHost) Put(ctx context.Context, img Image) (string, error) {
	body, contentType, err := multipartImage(img)
	if err != nil {
		return "", err
	}

	target, err := url.Parse(h.endpoint)
	if err != nil {
		return "", fmt.Errorf("imagehost: invalid endpoint: %w", err)
	}
	q := target.Query()
	q.Set("key", h.apiKey)
	target.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUploadFailed, err)
	}

	var parsed imgbbResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("%w: imgbb status %d", ErrUploadFailed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !parsed.Success || parsed.Data.URL == "" {
		msg := parsed.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("%w: imgbb rejected upload: %s", ErrUploadFailed, msg)
	}
	return parsed.Data.URL, nil
}

func multipartImage(img Image) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	name := img.ImageID
	if name == "" {
		name = "image"
	}
	part, err := mw.CreateFormFile("image", name+".jpg")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("name", name); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
