package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/showcase/api/internal/domain"
	"github.com/showcase/api/internal/platform/httpx"
	"github.com/showcase/api/internal/services"
)

type shareLinksPayload struct {
	URL      string `json:"url"`
	Whatsapp string `json:"whatsapp"`
	Facebook string `json:"facebook"`
	Twitter  string `json:"twitter"`
}

type recordShareRequest struct {
	Channel string `json:"channel" validate:"required"`
}

func attributionFromQuery(values url.Values) domain.Attribution {
	return domain.Attribution{
		UTMSource: strings.TrimSpace(values.Get("utm_source")),
		UTMMedium: strings.TrimSpace(values.Get("utm_medium")),
		Ref:       strings.TrimSpace(values.Get("ref")),
	}
}

func (h *MeHandlers) getShareLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shares == nil {
		writeUnavailable(ctx, w, "share")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	links, err := h.shares.ShareLinks(ctx, identity.UID, chi.URLParam(r, "catalogID"), attributionFromQuery(r.URL.Query()))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, shareLinksPayload{
		URL:      links.URL,
		Whatsapp: links.Whatsapp,
		Facebook: links.Facebook,
		Twitter:  links.Twitter,
	})
}

func (h *MeHandlers) recordShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.engagement == nil {
		writeUnavailable(ctx, w, "engagement")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req recordShareRequest
	if err := httpx.DecodeJSON(r, &req, httpx.DefaultMaxBodyBytes); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}
	channel, err := domain.ParseShareChannel(req.Channel)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}

	if err := h.engagement.RecordShare(ctx, identity.UID, chi.URLParam(r, "catalogID"), channel); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MeHandlers) getQRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.shares == nil {
		writeUnavailable(ctx, w, "share")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	size := 0
	if raw := strings.TrimSpace(query.Get("size")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "size must be a positive integer"))
			return
		}
		size = parsed
	}
	withLogo, err := parseOptionalBool(query.Get("logo"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "logo must be a boolean"))
		return
	}

	code, err := h.shares.RenderQRCode(ctx, services.QRCodeCommand{
		ActorID:     identity.UID,
		CatalogID:   chi.URLParam(r, "catalogID"),
		Size:        size,
		Attribution: attributionFromQuery(query),
		WithLogo:    withLogo,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "image/png")
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", code.FileName))
	header.Set("Content-Length", strconv.Itoa(len(code.PNG)))
	header.Set("Cache-Control", "no-store")
	header.Set("X-Catalog-Url", code.URL)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(code.PNG)
}
