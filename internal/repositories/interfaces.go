package repositories

import (
	"context"
	"errors"
	"time"

	domain "github.com/showcase/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Catalogs() CatalogRepository
	Businesses() BusinessRepository
	Activity() ActivityRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ErrSlugTaken is wrapped (as a conflict) when another active catalog already uses the slug.
var ErrSlugTaken = errors.New("repositories: slug already used by an active catalog")

// CatalogRepository persists catalogs. Counter maps are written only by IncrementStat;
// Insert seeds them at zero and every other write leaves them untouched.
type CatalogRepository interface {
	// Insert stores a new catalog and returns it with its generated ID. When the
	// catalog is active its slug is checked against other active catalogs in the same
	// transaction.
	Insert(ctx context.Context, catalog domain.Catalog) (domain.Catalog, error)
	// Replace overwrites every editable field of an existing catalog. CreatedAt, UserID
	// and the counter maps keep their stored values.
	Replace(ctx context.Context, catalog domain.Catalog) (domain.Catalog, error)
	// SetActive flips the published flag, optionally assigning a slug in the same write.
	SetActive(ctx context.Context, id string, change ActivationChange) (domain.Catalog, error)
	FindByID(ctx context.Context, id string) (domain.Catalog, error)
	FindActiveBySlug(ctx context.Context, slug string) (domain.Catalog, error)
	ListByUser(ctx context.Context, userID string, filter CatalogListFilter) (domain.CursorPage[domain.Catalog], error)
	SubscribeByUser(ctx context.Context, userID string) (<-chan CatalogSnapshot, error)
	IncrementStat(ctx context.Context, id string, path domain.StatPath, delta int64) error
	Delete(ctx context.Context, id string) error
}

// ActivationChange describes a publish or unpublish write.
type ActivationChange struct {
	Active      bool
	Slug        string
	LastUpdated time.Time
}

// CatalogListFilter pages through an account's catalogs, most recently updated first.
type CatalogListFilter struct {
	Pagination domain.Pagination
	ActiveOnly bool
}

// CatalogSnapshot is one delivery of a live catalog list. Err is set on the final
// delivery when the listener fails.
type CatalogSnapshot struct {
	Catalogs []domain.Catalog
	ReadTime time.Time
	Err      error
}

// BusinessRepository stores one business profile per account, keyed by account id.
type BusinessRepository interface {
	// Create fails with a conflict when the profile already exists.
	Create(ctx context.Context, profile domain.BusinessProfile) error
	FindByID(ctx context.Context, userID string) (domain.BusinessProfile, error)
	Delete(ctx context.Context, userID string) error
}

// ActivityRepository records catalog events per account.
type ActivityRepository interface {
	// Append is idempotent on entry ID so redelivered events are stored once.
	Append(ctx context.Context, entry domain.ActivityEntry) error
	ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.ActivityEntry], error)
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
