package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/showcase/api/internal/domain"
	"github.com/showcase/api/internal/repositories"
)

const analyticsPageSize = 100

// AnalyticsServiceDeps wires dependencies for the analytics service.
type AnalyticsServiceDeps struct {
	Catalogs repositories.CatalogRepository
}

type analyticsService struct {
	repo repositories.CatalogRepository
}

var _ AnalyticsService = (*analyticsService)(nil)

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(deps AnalyticsServiceDeps) (AnalyticsService, error) {
	if deps.Catalogs == nil {
		return nil, errors.New("analytics service: catalog repository is required")
	}
	return &analyticsService{repo: deps.Catalogs}, nil
}

// Summarize totals the selected catalogs, or every catalog of the account when catalogIDs
// is empty. Selecting a catalog owned by someone else is forbidden.
func (s *analyticsService) Summarize(ctx context.Context, actorID string, catalogIDs []string) (AnalyticsSummary, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return AnalyticsSummary{}, fmt.Errorf("%w: actor id is required", ErrCatalogInvalidInput)
	}

	var catalogs []Catalog
	if ids := uniqueIDs(catalogIDs); len(ids) > 0 {
		for _, id := range ids {
			catalog, err := s.repo.FindByID(ctx, id)
			if err != nil {
				return AnalyticsSummary{}, mapCatalogRepoError(err)
			}
			if catalog.UserID != actorID {
				return AnalyticsSummary{}, ErrCatalogForbidden
			}
			catalogs = append(catalogs, catalog)
		}
		return domain.Summarize(catalogs), nil
	}

	token := ""
	for {
		page, err := s.repo.ListByUser(ctx, actorID, repositories.CatalogListFilter{
			Pagination: domain.Pagination{PageSize: analyticsPageSize, PageToken: token},
		})
		if err != nil {
			return AnalyticsSummary{}, mapCatalogRepoError(err)
		}
		catalogs = append(catalogs, page.Items...)
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	return domain.Summarize(catalogs), nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
