package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/showcase/api/internal/domain"
	"github.com/showcase/api/internal/repositories"
)

// ErrActivityInvalidEvent indicates a pushed event could not be recorded.
var ErrActivityInvalidEvent = errors.New("activity: invalid event")

// ActivityServiceDeps wires dependencies for the activity feed service.
type ActivityServiceDeps struct {
	Activity repositories.ActivityRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type activityService struct {
	repo   repositories.ActivityRepository
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

var _ ActivityService = (*activityService)(nil)

// NewActivityService constructs an ActivityService.
func NewActivityService(deps ActivityServiceDeps) (ActivityService, error) {
	if deps.Activity == nil {
		return nil, errors.New("activity service: activity repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &activityService{
		repo:   deps.Activity,
		now:    func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// Record stores the event once. Redelivery of the same event id is a no-op.
func (s *activityService) Record(ctx context.Context, event CatalogEvent) error {
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.UserID) == "" || strings.TrimSpace(event.CatalogID) == "" {
		return fmt.Errorf("%w: id, userId and catalogId are required", ErrActivityInvalidEvent)
	}
	if !event.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrActivityInvalidEvent, event.Type)
	}
	now := s.now()
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}

	entry := domain.ActivityEntry{
		ID:           event.ID,
		UserID:       event.UserID,
		CatalogID:    event.CatalogID,
		Type:         event.Type,
		Slug:         event.Slug,
		BusinessName: event.BusinessName,
		OccurredAt:   occurred.UTC(),
		RecordedAt:   now,
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger(ctx, "activity.append_failed", map[string]any{"eventId": event.ID, "error": err.Error()})
		return fmt.Errorf("activity: append: %w", err)
	}
	return nil
}

func (s *activityService) List(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[ActivityEntry], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[ActivityEntry]{}, fmt.Errorf("%w: user id is required", ErrCatalogInvalidInput)
	}
	page, err := s.repo.ListByUser(ctx, userID, pager)
	if err != nil {
		return domain.CursorPage[ActivityEntry]{}, fmt.Errorf("activity: list: %w", err)
	}
	return page, nil
}
