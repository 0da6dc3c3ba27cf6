package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/showcase/api/internal/platform/auth"
	"github.com/showcase/api/internal/platform/httpx"
	"github.com/showcase/api/internal/platform/jobs"
	"github.com/showcase/api/internal/platform/textutil"
	"github.com/showcase/api/internal/services"
)

const maxPushBodySize = 1 << 20

// InternalHandlers receives Pub/Sub push deliveries. OIDC verification is applied by
// the router's internal middleware chain.
type InternalHandlers struct {
	activity services.ActivityService
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// InternalOption customises InternalHandlers.
type InternalOption func(*InternalHandlers)

// WithInternalActivityService injects the activity feed service.
func WithInternalActivityService(svc services.ActivityService) InternalOption {
	return func(h *InternalHandlers) {
		h.activity = svc
	}
}

// WithInternalLogger sets the structured event logger.
func WithInternalLogger(logger func(ctx context.Context, event string, fields map[string]any)) InternalOption {
	return func(h *InternalHandlers) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewInternalHandlers constructs the push endpoints.
func NewInternalHandlers(opts ...InternalOption) *InternalHandlers {
	h := &InternalHandlers{
		logger: func(context.Context, string, map[string]any) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/pubsub/catalog-events", h.receiveCatalogEvent)
}

type pushEnvelope struct {
	Message struct {
		Data        []byte            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime time.Time         `json:"publishTime"`
	} `json:"message"`
	Subscription    string `json:"subscription"`
	DeliveryAttempt int    `json:"deliveryAttempt,omitempty"`
}

// decodePushEnvelope tolerates unknown fields: Pub/Sub adds snake_case duplicates and
// delivery metadata that vary by subscription settings.
func decodePushEnvelope(r *http.Request) (pushEnvelope, error) {
	var envelope pushEnvelope
	if r.Body == nil {
		return envelope, httpx.ErrEmptyBody
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxPushBodySize+1))
	if err != nil {
		return envelope, err
	}
	if len(data) > maxPushBodySize {
		return envelope, httpx.ErrBodyTooLarge
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return envelope, fmt.Errorf("invalid push envelope: %w", err)
	}
	if len(envelope.Message.Data) == 0 {
		return envelope, errors.New("push message has no data")
	}
	return envelope, nil
}

// receiveCatalogEvent acknowledges messages that can never be processed so Pub/Sub does
// not redeliver them, and returns 503 for store failures so delivery is attempted again.
func (h *InternalHandlers) receiveCatalogEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.activity == nil {
		writeUnavailable(ctx, w, "activity")
		return
	}

	envelope, err := decodePushEnvelope(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_push", err.Error()))
		return
	}

	attrs := textutil.NormalizeAttributes(envelope.Message.Attributes, jobs.AttrCatalogID, jobs.AttrEventType)
	fields := map[string]any{
		"messageId":    envelope.Message.MessageID,
		"subscription": envelope.Subscription,
		"attempt":      envelope.DeliveryAttempt,
		"catalogId":    attrs[jobs.AttrCatalogID],
		"eventType":    attrs[jobs.AttrEventType],
	}
	if sender, ok := auth.ServiceIdentityFromContext(ctx); ok && sender != nil {
		fields["sender"] = sender.Email
	}

	event, err := jobs.DecodeCatalogEvent(envelope.Message.Data)
	if err != nil {
		fields["error"] = err.Error()
		h.logger(ctx, "pubsub.catalog_event_dropped", fields)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if strings.TrimSpace(event.ID) == "" {
		event.ID = envelope.Message.MessageID
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = envelope.Message.PublishTime
	}

	if err := h.activity.Record(ctx, event); err != nil {
		fields["error"] = err.Error()
		if errors.Is(err, services.ErrActivityInvalidEvent) {
			h.logger(ctx, "pubsub.catalog_event_dropped", fields)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger(ctx, "pubsub.catalog_event_failed", fields)
		httpx.WriteError(ctx, w, httpx.NewError("store_unavailable", "activity could not be recorded", http.StatusServiceUnavailable))
		return
	}

	h.logger(ctx, "pubsub.catalog_event_recorded", fields)
	w.WriteHeader(http.StatusNoContent)
}
