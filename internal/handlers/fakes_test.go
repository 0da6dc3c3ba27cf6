package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/showcase/api/internal/domain"
	"github.com/showcase/api/internal/platform/auth"
	"github.com/showcase/api/internal/platform/requestctx"
	"github.com/showcase/api/internal/services"
)

type stubCatalogService struct {
	saved      []services.SaveCatalogCommand
	saveResult services.Catalog
	saveErr    error

	catalogs map[string]services.Catalog
	getErr   error

	listFilter services.CatalogListFilter
	listPage   domain.CursorPage[services.Catalog]

	snapshots []services.CatalogListSnapshot

	deleted   []string
	moved     []services.MoveItemCommand
	published []string

	public    services.Catalog
	publicErr error
}

func (s *stubCatalogService) SaveCatalog(_ context.Context, cmd services.SaveCatalogCommand) (services.Catalog, error) {
	s.saved = append(s.saved, cmd)
	if s.saveErr != nil {
		return services.Catalog{}, s.saveErr
	}
	return s.saveResult, nil
}

func (s *stubCatalogService) GetCatalog(_ context.Context, actorID, catalogID string) (services.Catalog, error) {
	if s.getErr != nil {
		return services.Catalog{}, s.getErr
	}
	catalog, ok := s.catalogs[catalogID]
	if !ok {
		return services.Catalog{}, services.ErrCatalogNotFound
	}
	if catalog.UserID != actorID {
		return services.Catalog{}, services.ErrCatalogForbidden
	}
	return catalog, nil
}

func (s *stubCatalogService) ListCatalogs(_ context.Context, filter services.CatalogListFilter) (domain.CursorPage[services.Catalog], error) {
	s.listFilter = filter
	return s.listPage, nil
}

func (s *stubCatalogService) SubscribeCatalogs(_ context.Context, _ string) (<-chan services.CatalogListSnapshot, error) {
	out := make(chan services.CatalogListSnapshot, len(s.snapshots))
	for _, snap := range s.snapshots {
		out <- snap
	}
	close(out)
	return out, nil
}

func (s *stubCatalogService) DeleteCatalog(ctx context.Context, actorID, catalogID string) error {
	if _, err := s.GetCatalog(ctx, actorID, catalogID); err != nil {
		return err
	}
	s.deleted = append(s.deleted, catalogID)
	return nil
}

func (s *stubCatalogService) PublishCatalog(ctx context.Context, actorID, catalogID string) (services.Catalog, error) {
	catalog, err := s.GetCatalog(ctx, actorID, catalogID)
	if err != nil {
		return services.Catalog{}, err
	}
	s.published = append(s.published, catalogID)
	catalog.IsActive = true
	return catalog, nil
}

func (s *stubCatalogService) UnpublishCatalog(ctx context.Context, actorID, catalogID string) (services.Catalog, error) {
	catalog, err := s.GetCatalog(ctx, actorID, catalogID)
	if err != nil {
		return services.Catalog{}, err
	}
	catalog.IsActive = false
	return catalog, nil
}

func (s *stubCatalogService) MoveItem(ctx context.Context, cmd services.MoveItemCommand) (services.Catalog, error) {
	s.moved = append(s.moved, cmd)
	catalog, err := s.GetCatalog(ctx, cmd.ActorID, cmd.CatalogID)
	if err != nil {
		return services.Catalog{}, err
	}
	catalog.Items, _ = domain.MoveItem(catalog.Items, cmd.Index, cmd.Direction)
	return catalog, nil
}

func (s *stubCatalogService) GetPublicCatalog(_ context.Context, _ string) (services.Catalog, error) {
	if s.publicErr != nil {
		return services.Catalog{}, s.publicErr
	}
	return s.public, nil
}

type engagementCall struct {
	actorID   string
	catalogID string
	slug      string
	event     domain.EngagementEvent
	channel   domain.ShareChannel
	scope     requestctx.CatalogRef
}

type stubEngagementService struct {
	calls []engagementCall
	err   error
}

func (s *stubEngagementService) IncrementStat(context.Context, string, domain.StatPath, int64) error {
	return s.err
}

func (s *stubEngagementService) RecordEngagement(ctx context.Context, slug string, event domain.EngagementEvent) error {
	scope, _ := requestctx.Catalog(ctx)
	s.calls = append(s.calls, engagementCall{slug: slug, event: event, scope: scope})
	return s.err
}

func (s *stubEngagementService) RecordShare(ctx context.Context, actorID, catalogID string, channel domain.ShareChannel) error {
	scope, _ := requestctx.Catalog(ctx)
	s.calls = append(s.calls, engagementCall{actorID: actorID, catalogID: catalogID, channel: channel, scope: scope})
	return s.err
}

type stubAccountService struct {
	signUps   []services.SignUpCommand
	signUpErr error
	session   services.AccountSession
	signInErr error
	signedOut []string
	profile   services.BusinessProfile
	identity  services.AccountIdentity
}

func (s *stubAccountService) SignUp(_ context.Context, cmd services.SignUpCommand) (string, error) {
	s.signUps = append(s.signUps, cmd)
	if s.signUpErr != nil {
		return "", s.signUpErr
	}
	return "uid-new", nil
}

func (s *stubAccountService) SignIn(_ context.Context, email, _ string) (services.AccountSession, error) {
	if s.signInErr != nil {
		return services.AccountSession{}, s.signInErr
	}
	session := s.session
	session.Email = email
	return session, nil
}

func (s *stubAccountService) SignOut(_ context.Context, userID string) error {
	s.signedOut = append(s.signedOut, userID)
	return nil
}

func (s *stubAccountService) CurrentAccount(_ context.Context, identity services.AccountIdentity) (services.BusinessProfile, error) {
	s.identity = identity
	return s.profile, nil
}

type stubShareService struct {
	links       services.ShareLinks
	attribution services.Attribution
	qr          services.QRCode
	qrCmd       services.QRCodeCommand
	err         error
}

func (s *stubShareService) ShareLinks(_ context.Context, _, _ string, attribution services.Attribution) (services.ShareLinks, error) {
	s.attribution = attribution
	return s.links, s.err
}

func (s *stubShareService) RenderQRCode(_ context.Context, cmd services.QRCodeCommand) (services.QRCode, error) {
	s.qrCmd = cmd
	return s.qr, s.err
}

type stubImageService struct {
	cmd  services.ImageUploadCommand
	body []byte
	err  error
}

func (s *stubImageService) Upload(_ context.Context, cmd services.ImageUploadCommand) (services.UploadedImage, error) {
	s.cmd = cmd
	s.body, _ = io.ReadAll(cmd.Body)
	if s.err != nil {
		return services.UploadedImage{}, s.err
	}
	return services.UploadedImage{URL: "https://img.example.com/a.jpg", Width: 800, Height: 600, Bytes: len(s.body)}, nil
}

type stubAnalyticsService struct {
	ids     []string
	summary services.AnalyticsSummary
	err     error
}

func (s *stubAnalyticsService) Summarize(_ context.Context, _ string, catalogIDs []string) (services.AnalyticsSummary, error) {
	s.ids = catalogIDs
	return s.summary, s.err
}

type stubActivityService struct {
	recorded []services.CatalogEvent
	err      error
	page     domain.CursorPage[services.ActivityEntry]
}

func (s *stubActivityService) Record(_ context.Context, event services.CatalogEvent) error {
	if s.err != nil {
		return s.err
	}
	s.recorded = append(s.recorded, event)
	return nil
}

func (s *stubActivityService) List(context.Context, string, services.Pagination) (domain.CursorPage[services.ActivityEntry], error) {
	return s.page, nil
}

func asUser(req *http.Request, uid string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Email: uid + "@example.com"}))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

var (
	_ services.CatalogService    = (*stubCatalogService)(nil)
	_ services.EngagementService = (*stubEngagementService)(nil)
	_ services.AccountService    = (*stubAccountService)(nil)
	_ services.ShareService      = (*stubShareService)(nil)
	_ services.ImageService      = (*stubImageService)(nil)
	_ services.AnalyticsService  = (*stubAnalyticsService)(nil)
	_ services.ActivityService   = (*stubActivityService)(nil)
)
