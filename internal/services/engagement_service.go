package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/showcase/api/internal/domain"
	"github.com/showcase/api/internal/repositories"
)

// EngagementServiceDeps wires dependencies for counter increments.
type EngagementServiceDeps struct {
	Catalogs repositories.CatalogRepository
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type engagementService struct {
	repo   repositories.CatalogRepository
	logger func(context.Context, string, map[string]any)
}

var _ EngagementService = (*engagementService)(nil)

// NewEngagementService constructs an EngagementService.
func NewEngagementService(deps EngagementServiceDeps) (EngagementService, error) {
	if deps.Catalogs == nil {
		return nil, errors.New("engagement service: catalog repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &engagementService{
		repo:   deps.Catalogs,
		logger: logger,
	}, nil
}

// IncrementStat issues exactly one atomic increment. A counter missing from the stored
// document starts at zero.
func (s *engagementService) IncrementStat(ctx context.Context, catalogID string, path domain.StatPath, delta int64) error {
	catalogID = strings.TrimSpace(catalogID)
	if catalogID == "" {
		return fmt.Errorf("%w: catalog id is required", ErrCatalogInvalidInput)
	}
	if delta <= 0 {
		return fmt.Errorf("%w: counters only grow", ErrCatalogInvalidInput)
	}
	if strings.TrimSpace(path.Field) == "" {
		return fmt.Errorf("%w: stat field is required", ErrCatalogInvalidInput)
	}
	switch path.Group {
	case domain.StatGroupEngagement, domain.StatGroupShare:
	default:
		return fmt.Errorf("%w: unknown stat group %q", ErrCatalogInvalidInput, path.Group)
	}

	if err := s.repo.IncrementStat(ctx, catalogID, path, delta); err != nil {
		s.logger(ctx, "catalog.stat_increment_failed", map[string]any{
			"catalogId": catalogID,
			"path":      path.String(),
			"error":     err.Error(),
		})
		return mapCatalogRepoError(err)
	}
	return nil
}

// RecordEngagement counts a viewer interaction on an active catalog.
func (s *engagementService) RecordEngagement(ctx context.Context, slug string, raw domain.EngagementEvent) error {
	event, err := domain.ParseEngagementEvent(string(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}
	slug = strings.TrimSpace(slug)
	if !domain.ValidSlug(slug) {
		return ErrCatalogNotFound
	}
	catalog, err := s.repo.FindActiveBySlug(ctx, slug)
	if err != nil {
		return mapCatalogRepoError(err)
	}
	return s.IncrementStat(ctx, catalog.ID, event.StatPath(), 1)
}

// RecordShare counts a share action taken by the catalog owner.
func (s *engagementService) RecordShare(ctx context.Context, actorID, catalogID string, raw domain.ShareChannel) error {
	channel, err := domain.ParseShareChannel(string(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}
	actorID = strings.TrimSpace(actorID)
	catalogID = strings.TrimSpace(catalogID)
	if actorID == "" || catalogID == "" {
		return fmt.Errorf("%w: actor and catalog id are required", ErrCatalogInvalidInput)
	}
	catalog, err := s.repo.FindByID(ctx, catalogID)
	if err != nil {
		return mapCatalogRepoError(err)
	}
	if catalog.UserID != actorID {
		return ErrCatalogForbidden
	}
	return s.IncrementStat(ctx, catalog.ID, channel.StatPath(), 1)
}
