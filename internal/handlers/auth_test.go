package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/showcase/api/internal/services"
)

func newAuthTestRouter(accounts services.AccountService) chi.Router {
	router := chi.NewRouter()
	NewAuthHandlers(nil, accounts).Routes(router)
	return router
}

func TestAuthHandlersSignUp(t *testing.T) {
	accounts := &stubAccountService{}
	router := newAuthTestRouter(accounts)

	body := `{"email":"owner@example.com","password":"s3cret!","businessName":"Cafe Luna","businessType":"restaurant"}`
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body)))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp signUpResponse
	decodeBody(t, rr, &resp)
	if !resp.Success || resp.UID != "uid-new" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(accounts.signUps) != 1 || accounts.signUps[0].BusinessName != "Cafe Luna" || accounts.signUps[0].BusinessType != "restaurant" {
		t.Fatalf("unexpected sign-up command: %+v", accounts.signUps)
	}
}

func TestAuthHandlersSignUpValidation(t *testing.T) {
	accounts := &stubAccountService{}
	router := newAuthTestRouter(accounts)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(`{"email":"owner@example.com","password":"x"}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if len(accounts.signUps) != 0 {
		t.Fatalf("service must not be called without a business name")
	}
}

func TestAuthHandlersSignUpErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{services.ErrAccountEmailTaken, http.StatusConflict},
		{fmt.Errorf("%w: password is too weak", services.ErrAccountInvalidInput), http.StatusBadRequest},
		{services.ErrAccountUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		router := newAuthTestRouter(&stubAccountService{signUpErr: tc.err})
		body := `{"email":"owner@example.com","password":"s3cret!","businessName":"Cafe Luna"}`
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body)))
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
	}
}

func TestAuthHandlersSignIn(t *testing.T) {
	accounts := &stubAccountService{session: services.AccountSession{
		UID:          "u1",
		IDToken:      "id-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}}
	router := newAuthTestRouter(accounts)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/signin", strings.NewReader(`{"email":"owner@example.com","password":"s3cret!"}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("tokens must not be cached")
	}
	var resp signInResponse
	decodeBody(t, rr, &resp)
	if resp.UID != "u1" || resp.IDToken != "id-token" || resp.Email != "owner@example.com" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.ExpiresAt != "2026-05-01T10:00:00Z" {
		t.Fatalf("unexpected expiry %q", resp.ExpiresAt)
	}
}

func TestAuthHandlersSignInRejected(t *testing.T) {
	router := newAuthTestRouter(&stubAccountService{signInErr: services.ErrAccountAuthFailed})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/signin", strings.NewReader(`{"email":"owner@example.com","password":"wrong"}`)))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var payload map[string]any
	decodeBody(t, rr, &payload)
	if payload["error"] != "invalid_credentials" {
		t.Fatalf("unexpected code %v", payload["error"])
	}
}

func TestAuthHandlersSignOut(t *testing.T) {
	accounts := &stubAccountService{}
	router := newAuthTestRouter(accounts)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/signout", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asUser(httptest.NewRequest(http.MethodPost, "/signout", nil), "u1"))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if len(accounts.signedOut) != 1 || accounts.signedOut[0] != "u1" {
		t.Fatalf("unexpected sign-outs: %v", accounts.signedOut)
	}
}
