package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/showcase/api/internal/domain"
	"github.com/showcase/api/internal/platform/qrcode"
	"github.com/showcase/api/internal/repositories"
)

// ErrShareUnpublished indicates the catalog has no public link yet.
var ErrShareUnpublished = errors.New("share: catalog has no slug")

// LogoFetcher downloads the catalog logo for embedding into QR codes.
type LogoFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ShareServiceDeps wires dependencies for the share service implementation.
type ShareServiceDeps struct {
	Catalogs     repositories.CatalogRepository
	PublicOrigin string
	Logos        LogoFetcher
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type shareService struct {
	repo   repositories.CatalogRepository
	origin string
	logos  LogoFetcher
	logger func(context.Context, string, map[string]any)
}

var _ ShareService = (*shareService)(nil)

// NewShareService constructs a ShareService. Logos may be nil, in which case QR codes are
// rendered without a logo.
func NewShareService(deps ShareServiceDeps) (ShareService, error) {
	if deps.Catalogs == nil {
		return nil, errors.New("share service: catalog repository is required")
	}
	origin := strings.TrimRight(strings.TrimSpace(deps.PublicOrigin), "/")
	if origin == "" {
		return nil, errors.New("share service: public origin is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &shareService{
		repo:   deps.Catalogs,
		origin: origin,
		logos:  deps.Logos,
		logger: logger,
	}, nil
}

func (s *shareService) ShareLinks(ctx context.Context, actorID, catalogID string, attribution Attribution) (ShareLinks, error) {
	catalog, err := s.ownedCatalog(ctx, actorID, catalogID)
	if err != nil {
		return ShareLinks{}, err
	}
	publicURL := domain.PublicCatalogURL(s.origin, catalog.Slug, attribution)
	return domain.BuildShareLinks(catalog.BusinessName, publicURL), nil
}

// RenderQRCode encodes the public link in the resolved primary colour. A logo that cannot be
// fetched or decoded is dropped rather than failing the render.
func (s *shareService) RenderQRCode(ctx context.Context, cmd QRCodeCommand) (QRCode, error) {
	catalog, err := s.ownedCatalog(ctx, cmd.ActorID, cmd.CatalogID)
	if err != nil {
		return QRCode{}, err
	}
	theme := domain.ResolveTheme(catalog)
	publicURL := domain.PublicCatalogURL(s.origin, catalog.Slug, cmd.Attribution)

	opts := qrcode.Options{
		Size:       qrcode.ClampSize(cmd.Size),
		Foreground: theme.PrimaryColor,
	}
	if cmd.WithLogo && theme.ShowLogo && s.logos != nil {
		logo, err := s.logos.Fetch(ctx, theme.LogoURL)
		if err != nil {
			s.logger(ctx, "share.qr_logo_unavailable", map[string]any{"catalogId": catalog.ID, "error": err.Error()})
		} else {
			opts.Logo = logo
		}
	}

	png, err := qrcode.Render(publicURL, opts)
	if err != nil && opts.Logo != nil {
		s.logger(ctx, "share.qr_logo_rejected", map[string]any{"catalogId": catalog.ID, "error": err.Error()})
		opts.Logo = nil
		png, err = qrcode.Render(publicURL, opts)
	}
	if err != nil {
		return QRCode{}, fmt.Errorf("render qr code: %w", err)
	}
	return QRCode{
		PNG:      png,
		URL:      publicURL,
		FileName: catalog.Slug + "-qr.png",
	}, nil
}

func (s *shareService) ownedCatalog(ctx context.Context, actorID, catalogID string) (Catalog, error) {
	actorID = strings.TrimSpace(actorID)
	catalogID = strings.TrimSpace(catalogID)
	if actorID == "" || catalogID == "" {
		return Catalog{}, fmt.Errorf("%w: actor and catalog id are required", ErrCatalogInvalidInput)
	}
	catalog, err := s.repo.FindByID(ctx, catalogID)
	if err != nil {
		return Catalog{}, mapCatalogRepoError(err)
	}
	if catalog.UserID != actorID {
		return Catalog{}, ErrCatalogForbidden
	}
	if strings.TrimSpace(catalog.Slug) == "" {
		return Catalog{}, ErrShareUnpublished
	}
	return catalog, nil
}
