package handlers

import (
	"net/http"
	"strings"

	"github.com/showcase/api/internal/platform/httpx"
	"github.com/showcase/api/internal/platform/pagination"
	"github.com/showcase/api/internal/services"
)

const (
	defaultActivityPageSize = 20
	maxActivityPageSize     = 100
	maxAnalyticsCatalogs    = 50
)

type analyticsPayload struct {
	CatalogCount    int          `json:"catalogCount"`
	Views           int64        `json:"views"`
	ItemClicks      int64        `json:"itemClicks"`
	CTAClicks       int64        `json:"ctaClicks"`
	DirectionClicks int64        `json:"directionClicks"`
	Shares          sharePayload `json:"shares"`
	TotalShares     int64        `json:"totalShares"`
	ConversionRate  float64      `json:"conversionRate"`
}

type activityEntryPayload struct {
	ID           string `json:"id"`
	CatalogID    string `json:"catalogId"`
	Type         string `json:"type"`
	Slug         string `json:"slug,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
	OccurredAt   string `json:"occurredAt"`
}

type activityListResponse struct {
	Entries       []activityEntryPayload `json:"entries"`
	NextPageToken string                 `json:"nextPageToken,omitempty"`
}

// getAnalytics totals every owned catalog, or only the repeated catalogId parameters.
func (h *MeHandlers) getAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.analytics == nil {
		writeUnavailable(ctx, w, "analytics")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var catalogIDs []string
	for _, raw := range r.URL.Query()["catalogId"] {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				catalogIDs = append(catalogIDs, id)
			}
		}
	}
	if len(catalogIDs) > maxAnalyticsCatalogs {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "too many catalogId values"))
		return
	}

	summary, err := h.analytics.Summarize(ctx, identity.UID, catalogIDs)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, analyticsPayload{
		CatalogCount:    summary.CatalogCount,
		Views:           summary.Views,
		ItemClicks:      summary.ItemClicks,
		CTAClicks:       summary.CTAClicks,
		DirectionClicks: summary.DirectionClicks,
		Shares: sharePayload{
			Whatsapp: summary.Shares.Whatsapp,
			Facebook: summary.Shares.Facebook,
			Twitter:  summary.Shares.Twitter,
			Copy:     summary.Shares.Copy,
		},
		TotalShares:    summary.Shares.Total(),
		ConversionRate: summary.ConversionRate,
	})
}

func (h *MeHandlers) listActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.activity == nil {
		writeUnavailable(ctx, w, "activity")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{DefaultPageSize: defaultActivityPageSize, MaxPageSize: maxActivityPageSize})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}

	page, err := h.activity.List(ctx, identity.UID, services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	entries := make([]activityEntryPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		entries = append(entries, activityEntryPayload{
			ID:           entry.ID,
			CatalogID:    entry.CatalogID,
			Type:         string(entry.Type),
			Slug:         entry.Slug,
			BusinessName: entry.BusinessName,
			OccurredAt:   formatTimestamp(entry.OccurredAt),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, activityListResponse{Entries: entries, NextPageToken: page.NextPageToken})
}
