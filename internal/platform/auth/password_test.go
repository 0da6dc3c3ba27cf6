package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newPasswordSignInForTest(t *testing.T, handler http.HandlerFunc) *PasswordSignIn {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewPasswordSignIn(context.Background(), "test-key",
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	client.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return client
}

func TestPasswordSignInReturnsSession(t *testing.T) {
	var received map[string]any
	client := newPasswordSignInForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "verifyPassword"), r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"localId":"uid-1","email":"owner@cafe.test","idToken":"id-token","refreshToken":"refresh","expiresIn":"3600"}`))
	})

	session, err := client.SignIn(context.Background(), "owner@cafe.test", "s3cret!")
	require.NoError(t, err)

	assert.Equal(t, "owner@cafe.test", received["email"])
	assert.Equal(t, true, received["returnSecureToken"])
	assert.Equal(t, "uid-1", session.UID)
	assert.Equal(t, "id-token", session.IDToken)
	assert.Equal(t, "refresh", session.RefreshToken)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), session.ExpiresAt)
}

func TestPasswordSignInClassifiesErrors(t *testing.T) {
	cases := map[string]error{
		"INVALID_PASSWORD": ErrInvalidCredentials,
		"EMAIL_NOT_FOUND":  ErrInvalidCredentials,
		"USER_DISABLED":    ErrAccountDisabled,
	}
	for message, want := range cases {
		t.Run(message, func(t *testing.T) {
			client := newPasswordSignInForTest(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":{"code":400,"message":"` + message + `"}}`))
			})
			_, err := client.SignIn(context.Background(), "owner@cafe.test", "wrong")
			assert.ErrorIs(t, err, want)
		})
	}
}

func TestNewPasswordSignInRequiresKey(t *testing.T) {
	_, err := NewPasswordSignIn(context.Background(), " ")
	assert.Error(t, err)
}
