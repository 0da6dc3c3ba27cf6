package services

import (
	"context"
	"io"
	"time"

	domain "github.com/showcase/api/internal/domain"
	"github.com/showcase/api/internal/platform/storage"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Catalog            = domain.Catalog
	CatalogItem        = domain.CatalogItem
	CatalogThemeConfig = domain.CatalogThemeConfig
	ResolvedTheme      = domain.ResolvedTheme
	BusinessProfile    = domain.BusinessProfile
	CatalogEvent       = domain.CatalogEvent
	ActivityEntry      = domain.ActivityEntry
	AnalyticsSummary   = domain.AnalyticsSummary
	ShareLinks         = domain.ShareLinks
	Attribution        = domain.Attribution
	SystemHealthReport = domain.SystemHealthReport
)

// CatalogService owns the catalog save contract, ownership checks and the public lookup.
type CatalogService interface {
	SaveCatalog(ctx context.Context, cmd SaveCatalogCommand) (Catalog, error)
	GetCatalog(ctx context.Context, actorID, catalogID string) (Catalog, error)
	ListCatalogs(ctx context.Context, filter CatalogListFilter) (domain.CursorPage[Catalog], error)
	SubscribeCatalogs(ctx context.Context, userID string) (<-chan CatalogListSnapshot, error)
	DeleteCatalog(ctx context.Context, actorID, catalogID string) error
	PublishCatalog(ctx context.Context, actorID, catalogID string) (Catalog, error)
	UnpublishCatalog(ctx context.Context, actorID, catalogID string) (Catalog, error)
	MoveItem(ctx context.Context, cmd MoveItemCommand) (Catalog, error)
	GetPublicCatalog(ctx context.Context, slug string) (Catalog, error)
}

// EngagementService applies counter increments. Increments never go through a save.
type EngagementService interface {
	IncrementStat(ctx context.Context, catalogID string, path domain.StatPath, delta int64) error
	RecordEngagement(ctx context.Context, slug string, event domain.EngagementEvent) error
	RecordShare(ctx context.Context, actorID, catalogID string, channel domain.ShareChannel) error
}

// AccountService registers, authenticates and signs out business accounts.
type AccountService interface {
	SignUp(ctx context.Context, cmd SignUpCommand) (string, error)
	SignIn(ctx context.Context, email, password string) (AccountSession, error)
	SignOut(ctx context.Context, userID string) error
	CurrentAccount(ctx context.Context, identity AccountIdentity) (BusinessProfile, error)
}

// ImageService compresses uploaded images and stores them with the configured host.
type ImageService interface {
	Upload(ctx context.Context, cmd ImageUploadCommand) (UploadedImage, error)
}

// ShareService builds public links, share intents and QR codes for a catalog.
type ShareService interface {
	ShareLinks(ctx context.Context, actorID, catalogID string, attribution Attribution) (ShareLinks, error)
	RenderQRCode(ctx context.Context, cmd QRCodeCommand) (QRCode, error)
}

// AnalyticsService totals catalog counters for the dashboard.
type AnalyticsService interface {
	Summarize(ctx context.Context, actorID string, catalogIDs []string) (AnalyticsSummary, error)
}

// ActivityService records catalog events into the per-account feed.
type ActivityService interface {
	Record(ctx context.Context, event CatalogEvent) error
	List(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[ActivityEntry], error)
}

// SystemService aggregates utility endpoints.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// CatalogEventPublisher emits catalog change notifications.
type CatalogEventPublisher interface {
	PublishCatalogEvent(ctx context.Context, event CatalogEvent) (string, error)
}

// SaveCatalogCommand carries the full desired shape of a catalog. An empty CatalogID
// creates a new catalog.
type SaveCatalogCommand struct {
	ActorID        string
	CatalogID      string
	Slug           string
	BusinessName   string
	Description    string
	LogoURL        string
	WhatsappNumber string
	PhoneNumber    string
	Address        string
	Template       string
	Theme          CatalogThemeConfig
	Items          []CatalogItem
	// IsActive is optional: nil keeps the stored flag on update and means active on create.
	IsActive *bool
}

// CatalogListFilter pages through an account's catalogs.
type CatalogListFilter struct {
	UserID     string
	Pagination Pagination
	ActiveOnly bool
}

// CatalogListSnapshot is one full view of an account's catalogs.
type CatalogListSnapshot struct {
	Catalogs []Catalog
	ReadTime time.Time
	Err      error
}

// MoveItemCommand swaps one item with its neighbour.
type MoveItemCommand struct {
	ActorID   string
	CatalogID string
	Index     int
	Direction domain.MoveDirection
}

// SignUpCommand registers an email/password account and its business profile.
type SignUpCommand struct {
	Email        string
	Password     string
	BusinessName string
	BusinessType string
	Phone        string
}

// AccountSession is returned by a successful sign-in.
type AccountSession struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// AccountIdentity is the authenticated caller as seen by the account service.
type AccountIdentity struct {
	UID         string
	Email       string
	DisplayName string
}

// ImageUploadCommand is a raw image as received from the client.
type ImageUploadCommand struct {
	UserID  string
	Purpose storage.ImagePurpose
	Body    io.Reader
}

// UploadedImage describes the stored, compressed image.
type UploadedImage struct {
	URL    string
	Width  int
	Height int
	Bytes  int
}

// QRCodeCommand requests a QR code for a catalog's public link.
type QRCodeCommand struct {
	ActorID     string
	CatalogID   string
	Size        int
	Attribution Attribution
	WithLogo    bool
}

// QRCode is a rendered PNG and the link it encodes.
type QRCode struct {
	PNG      []byte
	URL      string
	FileName string
}
