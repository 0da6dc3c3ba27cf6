package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/showcase/api/internal/platform/auth"
	"github.com/showcase/api/internal/platform/httpx"
	"github.com/showcase/api/internal/services"
)

const (
	defaultStreamKeepAlive = 25 * time.Second
	maxCatalogBodySize     = 1 << 20
	maxImageBodySize       = 12 << 20
)

// MeHandlers exposes the authenticated account's catalogs, images and insights.
type MeHandlers struct {
	authn      *auth.Authenticator
	accounts   services.AccountService
	catalogs   services.CatalogService
	engagement services.EngagementService
	shares     services.ShareService
	images     services.ImageService
	analytics  services.AnalyticsService
	activity   services.ActivityService

	keepAlive    time.Duration
	maxImageSize int64
}

// MeOption customises MeHandlers.
type MeOption func(*MeHandlers)

// WithMeAccountService injects the account service used by GET /me.
func WithMeAccountService(svc services.AccountService) MeOption {
	return func(h *MeHandlers) { h.accounts = svc }
}

// WithMeCatalogService injects the catalog service.
func WithMeCatalogService(svc services.CatalogService) MeOption {
	return func(h *MeHandlers) { h.catalogs = svc }
}

// WithMeEngagementService injects the counter service used for share tracking.
func WithMeEngagementService(svc services.EngagementService) MeOption {
	return func(h *MeHandlers) { h.engagement = svc }
}

// WithMeShareService injects the share link and QR service.
func WithMeShareService(svc services.ShareService) MeOption {
	return func(h *MeHandlers) { h.shares = svc }
}

// WithMeImageService injects the image upload service.
func WithMeImageService(svc services.ImageService) MeOption {
	return func(h *MeHandlers) { h.images = svc }
}

// WithMeAnalyticsService injects the analytics service.
func WithMeAnalyticsService(svc services.AnalyticsService) MeOption {
	return func(h *MeHandlers) { h.analytics = svc }
}

// WithMeActivityService injects the activity feed service.
func WithMeActivityService(svc services.ActivityService) MeOption {
	return func(h *MeHandlers) { h.activity = svc }
}

// WithMeStreamKeepAlive sets the comment interval written on idle catalog streams.
func WithMeStreamKeepAlive(d time.Duration) MeOption {
	return func(h *MeHandlers) {
		if d > 0 {
			h.keepAlive = d
		}
	}
}

// WithMeMaxImageSize bounds multipart image uploads.
func WithMeMaxImageSize(limit int64) MeOption {
	return func(h *MeHandlers) {
		if limit > 0 {
			h.maxImageSize = limit
		}
	}
}

// NewMeHandlers constructs handlers enforcing Firebase authentication before any service call.
func NewMeHandlers(authn *auth.Authenticator, opts ...MeOption) *MeHandlers {
	h := &MeHandlers{
		authn:        authn,
		keepAlive:    defaultStreamKeepAlive,
		maxImageSize: maxImageBodySize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /me endpoints onto the provided router.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getAccount)
	r.Route("/catalogs", h.catalogRoutes)
	r.Post("/images", h.uploadImage)
	r.Get("/analytics", h.getAnalytics)
	r.Get("/activity", h.listActivity)
}

type accountPayload struct {
	UID          string `json:"uid"`
	Email        string `json:"email,omitempty"`
	Provider     string `json:"provider,omitempty"`
	BusinessName string `json:"businessName"`
	BusinessType string `json:"businessType,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Plan         string `json:"plan"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

func (h *MeHandlers) getAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.accounts == nil {
		writeUnavailable(ctx, w, "account")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	profile, err := h.accounts.CurrentAccount(ctx, services.AccountIdentity{
		UID:         identity.UID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	email := profile.Email
	if email == "" {
		email = identity.Email
	}
	httpx.WriteJSON(w, http.StatusOK, accountPayload{
		UID:          identity.UID,
		Email:        email,
		Provider:     identity.Provider,
		BusinessName: profile.BusinessName,
		BusinessType: profile.BusinessType,
		Phone:        profile.Phone,
		Plan:         string(profile.Plan),
		CreatedAt:    formatTimestamp(profile.CreatedAt),
	})
}
