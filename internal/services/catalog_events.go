package services

import (
	"context"
	"time"

	domain "github.com/showcase/api/internal/domain"
)

const eventPublishTimeout = 5 * time.Second

// eventEmitter publishes catalog events on a best-effort basis. A failed publish is logged
// and never fails the mutation that produced it.
type eventEmitter struct {
	publisher CatalogEventPublisher
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

func newEventEmitter(publisher CatalogEventPublisher, now func() time.Time, newID func() string, logger func(context.Context, string, map[string]any)) *eventEmitter {
	return &eventEmitter{publisher: publisher, now: now, newID: newID, logger: logger}
}

func (e *eventEmitter) emit(ctx context.Context, eventType domain.CatalogEventType, catalog Catalog) {
	if e == nil || e.publisher == nil {
		return
	}
	event := CatalogEvent{
		ID:           e.newID(),
		Type:         eventType,
		CatalogID:    catalog.ID,
		UserID:       catalog.UserID,
		Slug:         catalog.Slug,
		BusinessName: catalog.BusinessName,
		OccurredAt:   e.now(),
	}

	// The request may be cancelled as soon as the response is written.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()
	if _, err := e.publisher.PublishCatalogEvent(pubCtx, event); err != nil {
		e.logger(ctx, "catalog.event_publish_failed", map[string]any{
			"catalogId": catalog.ID,
			"eventType": string(eventType),
			"error":     err.Error(),
		})
	}
}
