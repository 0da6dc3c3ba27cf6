package handlers

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/showcase/api/internal/domain"
	"github.com/showcase/api/internal/platform/httpx"
	"github.com/showcase/api/internal/services"
)

const (
	publicCatalogCacheControl = "public, max-age=60"
	defaultEventLimit         = 120
	defaultEventWindow        = time.Minute
)

// PublicHandlers serves published catalogs to anonymous viewers.
type PublicHandlers struct {
	catalogs   services.CatalogService
	engagement services.EngagementService
	limiter    rateLimiter
}

// PublicOption customises construction of PublicHandlers.
type PublicOption func(*PublicHandlers)

// WithPublicCatalogService injects the catalog service dependency.
func WithPublicCatalogService(svc services.CatalogService) PublicOption {
	return func(h *PublicHandlers) {
		h.catalogs = svc
	}
}

// WithPublicEngagementService injects the counter service used by viewer events.
func WithPublicEngagementService(svc services.EngagementService) PublicOption {
	return func(h *PublicHandlers) {
		h.engagement = svc
	}
}

// WithPublicEventRateLimit caps viewer events per client and catalog within window.
// A non-positive limit disables limiting.
func WithPublicEventRateLimit(limit int, window time.Duration, clock func() time.Time) PublicOption {
	return func(h *PublicHandlers) {
		h.limiter = newSimpleRateLimiter(limit, window, clock)
	}
}

// NewPublicHandlers constructs handlers for public catalog endpoints.
func NewPublicHandlers(opts ...PublicOption) *PublicHandlers {
	h := &PublicHandlers{
		limiter: newSimpleRateLimiter(defaultEventLimit, defaultEventWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers public catalog endpoints against the provided router.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	scoped := r.With(scopeCatalog)
	scoped.Get("/catalogs/{slug}", h.getCatalog)
	scoped.Post("/catalogs/{slug}/events", h.recordEvent)
}

type publicCatalogPayload struct {
	ID             string                 `json:"id"`
	Slug           string                 `json:"slug"`
	BusinessName   string                 `json:"businessName"`
	Description    string                 `json:"description,omitempty"`
	LogoURL        string                 `json:"logoUrl,omitempty"`
	WhatsappNumber string                 `json:"whatsappNumber,omitempty"`
	PhoneNumber    string                 `json:"phoneNumber,omitempty"`
	Address        string                 `json:"address,omitempty"`
	Template       string                 `json:"template"`
	Theme          resolvedThemePayload   `json:"theme"`
	Items          []itemPayload          `json:"items"`
	Categories     []categoryGroupPayload `json:"categories"`
	LastUpdated    int64                  `json:"lastUpdated,omitempty"`
}

type engagementEventRequest struct {
	Type string `json:"type" validate:"required,max=32"`
}

func (h *PublicHandlers) getCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalogs == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}

	catalog, err := h.catalogs.GetPublicCatalog(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	theme := domain.ResolveTheme(catalog)
	w.Header().Set("Cache-Control", publicCatalogCacheControl)
	httpx.WriteJSON(w, http.StatusOK, publicCatalogPayload{
		ID:             catalog.ID,
		Slug:           catalog.Slug,
		BusinessName:   catalog.BusinessName,
		Description:    catalog.Description,
		LogoURL:        theme.LogoURL,
		WhatsappNumber: catalog.WhatsappNumber,
		PhoneNumber:    catalog.PhoneNumber,
		Address:        catalog.Address,
		Template:       string(theme.Template),
		Theme:          newResolvedThemePayload(theme),
		Items:          newItemPayloads(catalog.Items),
		Categories:     newCategoryGroupPayloads(domain.GroupByCategory(catalog.Items)),
		LastUpdated:    epochMillis(catalog.LastUpdated),
	})
}

func (h *PublicHandlers) recordEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.engagement == nil {
		writeUnavailable(ctx, w, "engagement")
		return
	}

	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if h.limiter != nil && !h.limiter.Allow(clientKey(r)+"|"+slug) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many events, slow down", http.StatusTooManyRequests))
		return
	}

	var req engagementEventRequest
	if err := httpx.DecodeJSON(r, &req, 4*1024); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}
	event, err := domain.ParseEngagementEvent(req.Type)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}

	if err := h.engagement.RecordEngagement(ctx, slug, event); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// clientKey identifies the caller for rate limiting. RemoteAddr has already been
// rewritten by the RealIP middleware when a proxy header is present.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
