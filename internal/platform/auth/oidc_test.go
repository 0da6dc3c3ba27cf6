package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Printf(string, ...any) {}

func TestJWKSCache_KeyCachesKeys(t *testing.T) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	jwk := jose.JSONWebKey{
		Key:       &key.PublicKey,
		KeyID:     "key1",
		Algorithm: jwt.SigningMethodRS256.Alg(),
		Use:       "sig",
	}

	var mu sync.Mutex
	var requests int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "max-age=3600")
		if err := json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}}); err != nil {
			t.Fatalf("encode jwks: %v", err)
		}
	}))
	t.Cleanup(server.Close)

	cache := NewJWKSCache(server.URL,
		WithJWKSLogger(noopLogger{}),
		WithJWKSClock(func() time.Time { return time.Unix(1_000_000, 0) }),
	)

	ctx := context.Background()
	got, err := cache.Key(ctx, "key1")
	if err != nil {
		t.Fatalf("cache.Key: %v", err)
	}

	if _, ok := got.(*rsa.PublicKey); !ok {
		t.Fatalf("expected *rsa.PublicKey, got %T", got)
	}

	if got, err = cache.Key(ctx, "key1"); err != nil {
		t.Fatalf("cache.Key second call: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if requests != 1 {
		t.Fatalf("expected single JWKS fetch, got %d", requests)
	}
}

func TestRequirePushToken_Success(t *testing.T) {
	validator, token := setupOIDCTest(t, func(claims jwt.MapClaims) {
		claims["aud"] = []string{"https://api.example.com/internal/pubsub/catalog-events"}
	})

	middleware := validator.RequirePushToken(PushPolicy{
		Audiences:       []string{"https://other.example.com", "https://api.example.com/internal/pubsub/catalog-events"},
		Issuers:         []string{"https://accounts.google.com"},
		ServiceAccounts: []string{"push@showcase.iam.gserviceaccount.com"},
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/pubsub/catalog-events", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := ServiceIdentityFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "push@showcase.iam.gserviceaccount.com", identity.Email)
		assert.Equal(t, "https://api.example.com/internal/pubsub/catalog-events", identity.Audience)
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRequirePushToken_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(jwt.MapClaims)
		policy PushPolicy
		status int
	}{
		{
			name:   "audience mismatch",
			policy: PushPolicy{Audiences: []string{"https://service.internal"}},
			status: http.StatusUnauthorized,
		},
		{
			name:   "issuer mismatch",
			mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" },
			policy: PushPolicy{Audiences: []string{"https://example.com"}, Issuers: []string{"https://accounts.google.com"}},
			status: http.StatusUnauthorized,
		},
		{
			name:   "sender not allowed",
			policy: PushPolicy{Audiences: []string{"https://example.com"}, ServiceAccounts: []string{"other@example.com"}},
			status: http.StatusForbidden,
		},
		{
			name:   "email unverified",
			mutate: func(c jwt.MapClaims) { c["email_verified"] = false },
			policy: PushPolicy{Audiences: []string{"https://example.com"}, ServiceAccounts: []string{"push@showcase.iam.gserviceaccount.com"}},
			status: http.StatusForbidden,
		},
		{
			name:   "audience not configured",
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validator, token := setupOIDCTest(t, tc.mutate)

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/internal/pubsub/catalog-events", nil)
			req.Header.Set("Authorization", "Bearer "+token)

			validator.RequirePushToken(tc.policy)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				t.Fatalf("handler should not be called")
			})).ServeHTTP(rr, req)

			assert.Equal(t, tc.status, rr.Code)
		})
	}
}

func TestRequirePushToken_MissingToken(t *testing.T) {
	validator, _ := setupOIDCTest(t, nil)

	rr := httptest.NewRecorder()
	validator.RequirePushToken(PushPolicy{Audiences: []string{"https://example.com"}})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not be called")
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequirePushToken_JWKSUnavailable(t *testing.T) {
	validator, token := setupOIDCTest(t, nil)
	validator.cache.url = "http://127.0.0.1:65535/invalid"

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/internal/pubsub/catalog-events", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	validator.RequirePushToken(PushPolicy{Audiences: []string{"https://example.com"}})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("handler should not be called")
	})).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func setupOIDCTest(t *testing.T, mutateClaims func(jwt.MapClaims)) (*OIDCValidator, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwk := jose.JSONWebKey{
		Key:       &key.PublicKey,
		KeyID:     "svc-key",
		Algorithm: jwt.SigningMethodRS256.Alg(),
		Use:       "sig",
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "max-age=600")
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{jwk}})
	}))
	t.Cleanup(server.Close)

	now := time.Unix(1_700_000_000, 0)
	originalTimeFunc := jwt.TimeFunc
	jwt.TimeFunc = func() time.Time { return now }
	t.Cleanup(func() { jwt.TimeFunc = originalTimeFunc })

	validator := NewOIDCValidator(NewJWKSCache(server.URL,
		WithJWKSLogger(noopLogger{}),
		WithJWKSClock(func() time.Time { return now }),
	), WithOIDCLogger(noopLogger{}))

	claims := jwt.MapClaims{
		"aud":            []string{"https://example.com"},
		"iss":            "https://accounts.google.com",
		"sub":            "109876543210",
		"email":          "push@showcase.iam.gserviceaccount.com",
		"email_verified": true,
		"exp":            float64(now.Add(time.Hour).Unix()),
		"iat":            float64(now.Unix()),
	}
	if mutateClaims != nil {
		mutateClaims(claims)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "svc-key"
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	return validator, signed
}
