package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/showcase/api/internal/domain"
)

type loggedEvent struct {
	name   string
	fields map[string]any
}

func newInternalTestRouter(activity *stubActivityService, logs *[]loggedEvent) chi.Router {
	router := chi.NewRouter()
	NewInternalHandlers(
		WithInternalActivityService(activity),
		WithInternalLogger(func(_ context.Context, event string, fields map[string]any) {
			*logs = append(*logs, loggedEvent{name: event, fields: fields})
		}),
	).Routes(router)
	return router
}

func pushBody(data string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(data))
	return fmt.Sprintf(`{"message":{"data":%q,"attributes":{"eventType":"catalog.published","catalogId":"cat-1"},"messageId":"msg-42","message_id":"msg-42","publishTime":"2026-04-02T08:00:00Z"},"subscription":"projects/p/subscriptions/catalog-events","deliveryAttempt":1}`, encoded)
}

func TestInternalHandlersRecordsPushedEvent(t *testing.T) {
	activity := &stubActivityService{}
	var logs []loggedEvent
	router := newInternalTestRouter(activity, &logs)

	body := pushBody(`{"type":"catalog.published","catalogId":"cat-1","userId":"u1","slug":"cafe-luna"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pubsub/catalog-events", strings.NewReader(body)))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(activity.recorded) != 1 {
		t.Fatalf("expected one recorded event, got %d", len(activity.recorded))
	}
	event := activity.recorded[0]
	if event.ID != "msg-42" {
		t.Fatalf("expected message id fallback, got %q", event.ID)
	}
	if !event.OccurredAt.Equal(time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected publish time fallback, got %s", event.OccurredAt)
	}
	if event.Type != domain.CatalogEventPublished || event.UserID != "u1" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if len(logs) != 1 || logs[0].name != "pubsub.catalog_event_recorded" || logs[0].fields["catalogId"] != "cat-1" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestInternalHandlersAcknowledgesUndecodableEvents(t *testing.T) {
	activity := &stubActivityService{}
	var logs []loggedEvent
	router := newInternalTestRouter(activity, &logs)

	body := pushBody(`{"type":"catalog.exploded","catalogId":"cat-1","userId":"u1"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pubsub/catalog-events", strings.NewReader(body)))

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if len(activity.recorded) != 0 {
		t.Fatalf("nothing should be recorded")
	}
	if len(logs) != 1 || logs[0].name != "pubsub.catalog_event_dropped" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestInternalHandlersStoreFailureRequestsRedelivery(t *testing.T) {
	activity := &stubActivityService{err: errors.New("firestore: unavailable")}
	var logs []loggedEvent
	router := newInternalTestRouter(activity, &logs)

	body := pushBody(`{"id":"evt-1","type":"catalog.updated","catalogId":"cat-1","userId":"u1"}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pubsub/catalog-events", strings.NewReader(body)))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if len(logs) != 1 || logs[0].name != "pubsub.catalog_event_failed" {
		t.Fatalf("unexpected logs: %+v", logs)
	}
}

func TestInternalHandlersRejectsMalformedEnvelope(t *testing.T) {
	var logs []loggedEvent
	router := newInternalTestRouter(&stubActivityService{}, &logs)

	for _, body := range []string{``, `not-json`, `{"message":{"messageId":"m"}}`} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/pubsub/catalog-events", strings.NewReader(body)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", body, rr.Code)
		}
	}
}
