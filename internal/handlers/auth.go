package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/showcase/api/internal/platform/auth"
	"github.com/showcase/api/internal/platform/httpx"
	"github.com/showcase/api/internal/services"
)

const maxAuthBodySize = 16 * 1024

// AuthHandlers exposes sign-up, sign-in and sign-out for business accounts.
type AuthHandlers struct {
	authn    *auth.Authenticator
	accounts services.AccountService
}

// NewAuthHandlers constructs account handlers. authn guards sign-out only.
func NewAuthHandlers(authn *auth.Authenticator, accounts services.AccountService) *AuthHandlers {
	return &AuthHandlers{authn: authn, accounts: accounts}
}

// Routes wires the /auth endpoints onto the provided router.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/signup", h.signUp)
	r.Post("/signin", h.signIn)
	r.Group(func(protected chi.Router) {
		if h.authn != nil {
			protected.Use(h.authn.RequireFirebaseAuth())
		}
		protected.Post("/signout", h.signOut)
	})
}

type signUpRequest struct {
	Email        string `json:"email" validate:"required,max=320"`
	Password     string `json:"password" validate:"required,max=128"`
	BusinessName string `json:"businessName" validate:"required,max=200"`
	BusinessType string `json:"businessType,omitempty" validate:"omitempty,max=100"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,max=32"`
}

type signUpResponse struct {
	Success bool   `json:"success"`
	UID     string `json:"uid"`
}

type signInRequest struct {
	Email    string `json:"email" validate:"required,max=320"`
	Password string `json:"password" validate:"required,max=128"`
}

type signInResponse struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    string `json:"expiresAt"`
}

func (h *AuthHandlers) signUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		writeUnavailable(ctx, w, "account")
		return
	}

	var req signUpRequest
	if err := httpx.DecodeJSON(r, &req, maxAuthBodySize); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}

	uid, err := h.accounts.SignUp(ctx, services.SignUpCommand{
		Email:        req.Email,
		Password:     req.Password,
		BusinessName: req.BusinessName,
		BusinessType: req.BusinessType,
		Phone:        req.Phone,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, signUpResponse{Success: true, UID: uid})
}

func (h *AuthHandlers) signIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		writeUnavailable(ctx, w, "account")
		return
	}

	var req signInRequest
	if err := httpx.DecodeJSON(r, &req, maxAuthBodySize); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}

	session, err := h.accounts.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, signInResponse{
		UID:          session.UID,
		Email:        session.Email,
		IDToken:      session.IDToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    formatTimestamp(session.ExpiresAt),
	})
}

func (h *AuthHandlers) signOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		writeUnavailable(ctx, w, "account")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.accounts.SignOut(ctx, identity.UID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
