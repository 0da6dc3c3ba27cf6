package secrets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const imgbbResource = "projects/test/secrets/imgbb-api-key/versions/latest"

func TestResolveCachesUntilExpiry(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.values[imgbbResource] = "key-v1"

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	fetcher, err := NewFetcher(ctx,
		WithClient(client),
		WithProject("test"),
		WithCacheTTL(time.Minute),
		WithFallbackFile(""),
		WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	defer fetcher.Close()

	got, err := fetcher.Resolve(ctx, "secret://imgbb-api-key")
	require.NoError(t, err)
	assert.Equal(t, "key-v1", got)

	client.set(imgbbResource, "key-v2")
	got, err = fetcher.Resolve(ctx, "secret://imgbb-api-key")
	require.NoError(t, err)
	assert.Equal(t, "key-v1", got, "served from cache")
	assert.Equal(t, 1, client.callCount(imgbbResource))

	now = now.Add(2 * time.Minute)
	got, err = fetcher.ResolveSecret(ctx, "secret://imgbb-api-key")
	require.NoError(t, err)
	assert.Equal(t, "key-v2", got, "rotated value picked up after ttl")
}

func TestResolvePinnedVersionAndProject(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.values["projects/shared/secrets/web-api-key/versions/3"] = "pinned"

	fetcher, err := NewFetcher(ctx, WithClient(client), WithProject("test"), WithFallbackFile(""))
	require.NoError(t, err)

	got, err := fetcher.Resolve(ctx, "sm://web-api-key?version=3&project=shared")
	require.NoError(t, err)
	assert.Equal(t, "pinned", got)
}

func TestResolveFallsBackWhenRemoteDenied(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	require.NoError(t, os.WriteFile(path, []byte("secret://imgbb-api-key=local-key\nweb-api-key=\"local-web\"\n"), 0o600))

	client := newFakeSecretClient()
	client.errors[imgbbResource] = status.Error(codes.PermissionDenied, "denied")

	fetcher, err := NewFetcher(ctx, WithClient(client), WithProject("test"), WithFallbackFile(path))
	require.NoError(t, err)

	got, err := fetcher.Resolve(ctx, "secret://imgbb-api-key")
	require.NoError(t, err)
	assert.Equal(t, "local-key", got)

	got, err = fetcher.Resolve(ctx, "secret://web-api-key")
	require.NoError(t, err)
	assert.Equal(t, "local-web", got)
}

func TestParseFallbackAcceptsHyphenatedKeys(t *testing.T) {
	input := strings.Join([]string{
		"# local overrides",
		"",
		"secret://imgbb-api-key=abc=123",
		"export firebase-web-key='quoted value'",
		"sm://pubsub-topic = catalog-events",
		"not a pair",
		"=orphan",
	}, "\n")

	values := parseFallback(strings.NewReader(input))

	assert.Equal(t, map[string]string{
		"imgbb-api-key":    "abc=123",
		"firebase-web-key": "quoted value",
		"pubsub-topic":     "catalog-events",
	}, values)
}

func TestResolveSurfacesNonFallbackErrors(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.errors[imgbbResource] = status.Error(codes.InvalidArgument, "bad name")

	fetcher, err := NewFetcher(ctx, WithClient(client), WithProject("test"), WithFallbackFile(""))
	require.NoError(t, err)

	_, err = fetcher.Resolve(ctx, "secret://imgbb-api-key")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestResolveWithoutProjectUsesFallbackOnly(t *testing.T) {
	ctx := context.Background()
	fetcher, err := NewFetcher(ctx, WithFallbackFile(filepath.Join(t.TempDir(), "missing")))
	require.NoError(t, err)

	_, err = fetcher.Resolve(ctx, "secret://imgbb-api-key")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRejectsInvalidReferences(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(), WithFallbackFile(""))
	require.NoError(t, err)

	for _, ref := range []string{"", "imgbb-api-key", "https://example.com/x", "secret://", "secret://a/b"} {
		_, err := fetcher.Resolve(context.Background(), ref)
		assert.ErrorIs(t, err, ErrInvalidReference, ref)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.values[imgbbResource] = "key-v1"

	fetcher, err := NewFetcher(ctx, WithClient(client), WithProject("test"), WithFallbackFile(""))
	require.NoError(t, err)

	_, err = fetcher.Resolve(ctx, "secret://imgbb-api-key")
	require.NoError(t, err)
	fetcher.Invalidate("secret://imgbb-api-key")
	_, err = fetcher.Resolve(ctx, "secret://imgbb-api-key")
	require.NoError(t, err)
	assert.Equal(t, 2, client.callCount(imgbbResource))
}

type fakeSecretClient struct {
	mu      sync.Mutex
	values  map[string]string
	errors  map[string]error
	counter map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{
		values:  make(map[string]string),
		errors:  make(map[string]error),
		counter: make(map[string]int),
	}
}

func (f *fakeSecretClient) set(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = value
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetName()
	f.counter[name]++
	if err := f.errors[name]; err != nil {
		return nil, err
	}
	if value, ok := f.values[name]; ok {
		return &secretmanagerpb.AccessSecretVersionResponse{
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
		}, nil
	}
	return nil, status.Error(codes.NotFound, "not found")
}

func (f *fakeSecretClient) Close() error { return nil }

func (f *fakeSecretClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counter[name]
}
