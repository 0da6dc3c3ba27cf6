package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Catalog is the root aggregate: one business's published collection of items,
// addressable publicly by its slug.
type Catalog struct {
	ID              string
	UserID          string
	Slug            string
	BusinessName    string
	Description     string
	LogoURL         string
	WhatsappNumber  string
	PhoneNumber     string
	Address         string
	Template        Template
	Theme           CatalogThemeConfig
	Items           []CatalogItem
	IsActive        bool
	CreatedAt       time.Time
	LastUpdated     time.Time
	EngagementStats EngagementStats
	ShareStats      ShareStats
}

// CatalogItem is a single product or menu entry. It has no identity outside its catalog.
type CatalogItem struct {
	ID          string
	Name        string
	Description string
	Price       string
	Category    string
	ImageURL    string
	IsAvailable bool
	Notes       string
}

// EngagementStats counts viewer interactions. Values only ever grow and are written
// exclusively through atomic increments.
type EngagementStats struct {
	Views           int64
	ItemClicks      int64
	CallClicks      int64
	WhatsappClicks  int64
	DirectionClicks int64
}

// ShareStats counts outbound distribution actions per channel.
type ShareStats struct {
	Whatsapp int64
	Facebook int64
	Twitter  int64
	Copy     int64
}

// Plan names the subscription tier of a business account.
type Plan string

// PlanFree is assigned to every new business account.
const PlanFree Plan = "free"

// BusinessProfile is the per-account document stored alongside the identity record.
type BusinessProfile struct {
	ID           string
	BusinessName string
	BusinessType string
	Phone        string
	Email        string
	Plan         Plan
	CreatedAt    time.Time
}

// CatalogEventType enumerates change notifications emitted for catalogs.
type CatalogEventType string

const (
	CatalogEventCreated     CatalogEventType = "catalog.created"
	CatalogEventUpdated     CatalogEventType = "catalog.updated"
	CatalogEventPublished   CatalogEventType = "catalog.published"
	CatalogEventUnpublished CatalogEventType = "catalog.unpublished"
	CatalogEventDeleted     CatalogEventType = "catalog.deleted"
)

// Valid reports whether t is one of the known event types.
func (t CatalogEventType) Valid() bool {
	switch t {
	case CatalogEventCreated, CatalogEventUpdated, CatalogEventPublished, CatalogEventUnpublished, CatalogEventDeleted:
		return true
	}
	return false
}

// CatalogEvent describes a catalog mutation for downstream consumers.
type CatalogEvent struct {
	ID           string
	Type         CatalogEventType
	CatalogID    string
	UserID       string
	Slug         string
	BusinessName string
	OccurredAt   time.Time
}

// ActivityEntry is a persisted, per-account record of a catalog event.
type ActivityEntry struct {
	ID           string
	UserID       string
	CatalogID    string
	Type         CatalogEventType
	Slug         string
	BusinessName string
	OccurredAt   time.Time
	RecordedAt   time.Time
}

// Health statuses reported by dependency probes.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
