package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/showcase/api/internal/domain"
	"github.com/showcase/api/internal/services"
)

func TestPublicHandlersGetCatalog(t *testing.T) {
	catalog := ownedCatalogFixture()
	catalog.EngagementStats = domain.EngagementStats{Views: 99}
	catalog.LastUpdated = time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)
	svc := &stubCatalogService{public: catalog}

	router := chi.NewRouter()
	NewPublicHandlers(WithPublicCatalogService(svc)).Routes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalogs/cafe-luna", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if cc := rr.Header().Get("Cache-Control"); cc != "public, max-age=60" {
		t.Fatalf("unexpected cache control %q", cc)
	}
	body := rr.Body.String()
	for _, hidden := range []string{"userId", "engagementStats", "shareStats"} {
		if strings.Contains(body, hidden) {
			t.Fatalf("public payload leaks %s: %s", hidden, body)
		}
	}

	var payload publicCatalogPayload
	decodeBody(t, rr, &payload)
	if payload.Slug != "cafe-luna" || payload.Theme.PrimaryColor != "#112233" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if len(payload.Categories) != 2 || payload.Categories[0].Category != "Drinks" || len(payload.Categories[0].Items) != 2 {
		t.Fatalf("unexpected categories: %+v", payload.Categories)
	}
	if payload.Categories[1].Category != "Bakery" {
		t.Fatalf("categories must keep first-seen order: %+v", payload.Categories)
	}
	if payload.LastUpdated != 1772447400000 {
		t.Fatalf("expected lastUpdated in epoch millis, got %d", payload.LastUpdated)
	}
}

func TestPublicHandlersGetCatalogNotFound(t *testing.T) {
	svc := &stubCatalogService{publicErr: services.ErrCatalogNotFound}

	router := chi.NewRouter()
	NewPublicHandlers(WithPublicCatalogService(svc)).Routes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/catalogs/missing", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestPublicHandlersRecordEvent(t *testing.T) {
	engagement := &stubEngagementService{}

	router := chi.NewRouter()
	NewPublicHandlers(WithPublicEngagementService(engagement)).Routes(router)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/catalogs/cafe-luna/events", strings.NewReader(`{"type":"views"}`)))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(engagement.calls) != 1 || engagement.calls[0].slug != "cafe-luna" || engagement.calls[0].event != domain.EngagementView {
		t.Fatalf("unexpected calls: %+v", engagement.calls)
	}
	if engagement.calls[0].scope.Slug != "cafe-luna" {
		t.Fatalf("expected routed slug on the request context, got %+v", engagement.calls[0].scope)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/catalogs/cafe-luna/events", strings.NewReader(`{"type":"purchase"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown event, got %d", rr.Code)
	}
}

func TestPublicHandlersRecordEventRateLimited(t *testing.T) {
	engagement := &stubEngagementService{}
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	router := chi.NewRouter()
	NewPublicHandlers(
		WithPublicEngagementService(engagement),
		WithPublicEventRateLimit(2, time.Minute, clock),
	).Routes(router)

	send := func(slug string) int {
		req := httptest.NewRequest(http.MethodPost, "/catalogs/"+slug+"/events", strings.NewReader(`{"type":"itemClick"}`))
		req.RemoteAddr = "203.0.113.7:4321"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("cafe-luna"); code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, code)
		}
	}
	if code := send("cafe-luna"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	if code := send("other-shop"); code != http.StatusNoContent {
		t.Fatalf("limit is per catalog, got %d", code)
	}

	now = now.Add(time.Minute)
	if code := send("cafe-luna"); code != http.StatusNoContent {
		t.Fatalf("expected window reset, got %d", code)
	}
	if len(engagement.calls) != 4 {
		t.Fatalf("expected 4 recorded events, got %d", len(engagement.calls))
	}
}
