package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/showcase/api/internal/platform/auth"
	"github.com/showcase/api/internal/platform/httpx"
	"github.com/showcase/api/internal/platform/requestctx"
	"github.com/showcase/api/internal/services"
)

// writeServiceError maps service sentinels onto the JSON error envelope. The wrapped
// message is surfaced because services put the user-facing detail after the sentinel.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	message := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("deadline_exceeded", "request timed out", http.StatusGatewayTimeout))
	case errors.Is(err, context.Canceled):
		httpx.WriteError(ctx, w, httpx.NewError("request_cancelled", "request cancelled", 499))

	case errors.Is(err, services.ErrCatalogInvalidInput),
		errors.Is(err, services.ErrAccountInvalidInput),
		errors.Is(err, services.ErrImageInvalid),
		errors.Is(err, services.ErrActivityInvalidEvent):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_not_found", "catalog not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "catalog belongs to another account", http.StatusForbidden))
	case errors.Is(err, services.ErrCatalogConflict):
		httpx.WriteError(ctx, w, httpx.NewError("slug_taken", message, http.StatusConflict))
	case errors.Is(err, services.ErrShareUnpublished):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unpublished", "catalog has no public link yet", http.StatusConflict))

	case errors.Is(err, services.ErrAccountAuthFailed):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "email or password is incorrect", http.StatusUnauthorized))
	case errors.Is(err, services.ErrAccountDisabled):
		httpx.WriteError(ctx, w, httpx.NewError("account_disabled", "account is disabled", http.StatusForbidden))
	case errors.Is(err, services.ErrAccountEmailTaken):
		httpx.WriteError(ctx, w, httpx.NewError("email_taken", "email is already registered", http.StatusConflict))

	case errors.Is(err, services.ErrImageUpload):
		httpx.WriteError(ctx, w, httpx.NewError("upload_failed", message, http.StatusBadGateway))

	case errors.Is(err, services.ErrCatalogUnavailable),
		errors.Is(err, services.ErrAccountUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("store_unavailable", "data store is unavailable, try again", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}

func writeUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_unavailable", name+" service is unavailable", http.StatusServiceUnavailable))
}

// requireIdentity returns the authenticated caller or writes a 401.
func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

// scopeCatalog records the routed catalog so service logs carry it. It must be
// mounted with r.With so the route params are already matched.
func scopeCatalog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ref := requestctx.CatalogRef{
			ID:   chi.URLParam(r, "catalogID"),
			Slug: chi.URLParam(r, "slug"),
		}
		next.ServeHTTP(w, r.WithContext(requestctx.WithCatalog(r.Context(), ref)))
	})
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

// epochMillis renders catalog timestamps the way they are stored.
func epochMillis(ts time.Time) int64 {
	if ts.IsZero() {
		return 0
	}
	return ts.UnixMilli()
}
