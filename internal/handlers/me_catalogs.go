package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/showcase/api/internal/domain"
	"github.com/showcase/api/internal/platform/httpx"
	"github.com/showcase/api/internal/platform/pagination"
	"github.com/showcase/api/internal/services"
)

const (
	defaultCatalogPageSize = 20
	maxCatalogPageSize     = 100
)

type catalogListResponse struct {
	Catalogs      []catalogPayload `json:"catalogs"`
	NextPageToken string           `json:"nextPageToken,omitempty"`
}

type catalogSnapshotPayload struct {
	Catalogs []catalogPayload `json:"catalogs"`
	ReadTime string           `json:"readTime,omitempty"`
}

type moveItemRequest struct {
	Direction string `json:"direction" validate:"required"`
}

func (h *MeHandlers) catalogRoutes(r chi.Router) {
	r.Get("/", h.listCatalogs)
	r.Post("/", h.createCatalog)
	r.Get("/stream", h.streamCatalogs)

	scoped := r.With(scopeCatalog)
	scoped.Get("/{catalogID}", h.getCatalog)
	scoped.Put("/{catalogID}", h.replaceCatalog)
	scoped.Delete("/{catalogID}", h.deleteCatalog)
	scoped.Post("/{catalogID}:publish", h.publishCatalog)
	scoped.Post("/{catalogID}:unpublish", h.unpublishCatalog)
	scoped.Post("/{catalogID}/items/{index}:move", h.moveItem)
	scoped.Get("/{catalogID}/theme", h.getTheme)
	scoped.Get("/{catalogID}/theme.css", h.getThemeCSS)
	scoped.Get("/{catalogID}/share", h.getShareLinks)
	scoped.Post("/{catalogID}/shares", h.recordShare)
	scoped.Get("/{catalogID}/qr.png", h.getQRCode)
}

func (h *MeHandlers) listCatalogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalogs == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{DefaultPageSize: defaultCatalogPageSize, MaxPageSize: maxCatalogPageSize})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}
	activeOnly, err := parseOptionalBool(r.URL.Query().Get("active"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "active must be a boolean"))
		return
	}

	page, err := h.catalogs.ListCatalogs(ctx, services.CatalogListFilter{
		UserID:     identity.UID,
		Pagination: services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken},
		ActiveOnly: activeOnly,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, catalogListResponse{
		Catalogs:      newCatalogPayloads(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

// streamCatalogs pushes the full catalog list as server-sent events whenever it
// changes. The first event carries the current state.
func (h *MeHandlers) streamCatalogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalogs == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	snapshots, err := h.catalogs.SubscribeCatalogs(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	rc := http.NewResponseController(w)
	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case snap, open := <-snapshots:
			if !open {
				return
			}
			if snap.Err != nil {
				_ = writeEvent(w, "error", map[string]string{"error": streamErrorCode(snap.Err), "message": "catalog stream interrupted"})
				_ = rc.Flush()
				return
			}
			payload := catalogSnapshotPayload{
				Catalogs: newCatalogPayloads(snap.Catalogs),
				ReadTime: formatTimestamp(snap.ReadTime),
			}
			if err := writeEvent(w, "snapshot", payload); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w io.Writer, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}

func streamErrorCode(err error) string {
	if errors.Is(err, services.ErrCatalogUnavailable) {
		return "store_unavailable"
	}
	return "stream_failed"
}

func (h *MeHandlers) getCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalogs == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	catalog, err := h.catalogs.GetCatalog(ctx, identity.UID, chi.URLParam(r, "catalogID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newCatalogPayload(catalog))
}

func (h *MeHandlers) createCatalog(w http.ResponseWriter, r *http.Request) {
	h.saveCatalog(w, r, "")
}

func (h *MeHandlers) replaceCatalog(w http.ResponseWriter, r *http.Request) {
	catalogID := strings.TrimSpace(chi.URLParam(r, "catalogID"))
	if catalogID == "" {
		httpx.WriteError(r.Context(), w, httpx.BadRequest("invalid_request", "catalog id is required"))
		return
	}
	h.saveCatalog(w, r, catalogID)
}

// saveCatalog applies the full-replace contract for both create and update.
func (h *MeHandlers) saveCatalog(w http.ResponseWriter, r *http.Request, catalogID string) {
	ctx := r.Context()
	if h.catalogs == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req catalogRequest
	if err := httpx.DecodeJSON(r, &req, maxCatalogBodySize); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}

	saved, err := h.catalogs.SaveCatalog(ctx, services.SaveCatalogCommand{
		ActorID:        identity.UID,
		CatalogID:      catalogID,
		Slug:           req.Slug,
		BusinessName:   req.BusinessName,
		Description:    req.Description,
		LogoURL:        req.LogoURL,
		WhatsappNumber: req.WhatsappNumber,
		PhoneNumber:    req.PhoneNumber,
		Address:        req.Address,
		Template:       req.Template,
		Theme:          req.Theme.toDomain(),
		Items:          req.items(),
		IsActive:       req.IsActive,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if catalogID == "" {
		status = http.StatusCreated
		w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+saved.ID)
	}
	httpx.WriteJSON(w, status, newCatalogPayload(saved))
}

func (h *MeHandlers) deleteCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalogs == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.catalogs.DeleteCatalog(ctx, identity.UID, chi.URLParam(r, "catalogID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *MeHandlers) publishCatalog(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *MeHandlers) unpublishCatalog(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *MeHandlers) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	ctx := r.Context()
	if h.catalogs == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	catalogID := chi.URLParam(r, "catalogID")
	var (
		catalog domain.Catalog
		err     error
	)
	if active {
		catalog, err = h.catalogs.PublishCatalog(ctx, identity.UID, catalogID)
	} else {
		catalog, err = h.catalogs.UnpublishCatalog(ctx, identity.UID, catalogID)
	}
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newCatalogPayload(catalog))
}

func (h *MeHandlers) moveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalogs == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "item index must be an integer"))
		return
	}
	var req moveItemRequest
	if err := httpx.DecodeJSON(r, &req, httpx.DefaultMaxBodyBytes); err != nil {
		httpx.WriteDecodeError(w, r, err)
		return
	}
	direction, err := domain.ParseMoveDirection(req.Direction)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}

	catalog, err := h.catalogs.MoveItem(ctx, services.MoveItemCommand{
		ActorID:   identity.UID,
		CatalogID: chi.URLParam(r, "catalogID"),
		Index:     index,
		Direction: direction,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newCatalogPayload(catalog))
}

func (h *MeHandlers) getTheme(w http.ResponseWriter, r *http.Request) {
	catalog, ok := h.ownedCatalog(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newResolvedThemePayload(domain.ResolveTheme(catalog)))
}

func (h *MeHandlers) getThemeCSS(w http.ResponseWriter, r *http.Request) {
	catalog, ok := h.ownedCatalog(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, domain.ResolveTheme(catalog).CSSVariables())
}

func (h *MeHandlers) ownedCatalog(w http.ResponseWriter, r *http.Request) (domain.Catalog, bool) {
	ctx := r.Context()
	if h.catalogs == nil {
		writeUnavailable(ctx, w, "catalog")
		return domain.Catalog{}, false
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return domain.Catalog{}, false
	}
	catalog, err := h.catalogs.GetCatalog(ctx, identity.UID, chi.URLParam(r, "catalogID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return domain.Catalog{}, false
	}
	return catalog, true
}

func parseOptionalBool(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
