package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/showcase/api/internal/platform/config"
	"github.com/showcase/api/internal/platform/imagehost"
	"github.com/showcase/api/internal/repositories"
	"github.com/showcase/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Catalogs   services.CatalogService
	Engagement services.EngagementService
	Accounts   services.AccountService
	Images     services.ImageService
	Shares     services.ShareService
	Analytics  services.AnalyticsService
	Activity   services.ActivityService
	System     services.SystemService
}

// Adapters carries the platform clients that services need beyond the repositories.
// Nil members disable the services that depend on them.
type Adapters struct {
	Directory services.AccountDirectory
	Passwords services.PasswordAuthenticator
	ImageHost imagehost.Host
	Logos     services.LogoFetcher
	Events    services.CatalogEventPublisher
	Build     services.BuildInfo
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring passes the Firestore
// registry, while tests can supply in-memory registries.
func NewContainer(cfg config.Config, reg repositories.Registry, adapters Adapters) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(cfg, reg, adapters)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

// NewULID returns a lexically sortable identifier.
func NewULID() string {
	return ulid.Make().String()
}

func buildServices(cfg config.Config, reg repositories.Registry, adapters Adapters) (Services, error) {
	var svc Services

	clock := adapters.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := adapters.Logger

	if catalogRepo := reg.Catalogs(); catalogRepo != nil {
		catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
			Catalogs:    catalogRepo,
			Events:      adapters.Events,
			Clock:       clock,
			IDGenerator: NewULID,
			Logger:      logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build catalog service: %w", err)
		}
		svc.Catalogs = catalogSvc

		engagementSvc, err := services.NewEngagementService(services.EngagementServiceDeps{
			Catalogs: catalogRepo,
			Logger:   logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build engagement service: %w", err)
		}
		svc.Engagement = engagementSvc

		analyticsSvc, err := services.NewAnalyticsService(services.AnalyticsServiceDeps{
			Catalogs: catalogRepo,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build analytics service: %w", err)
		}
		svc.Analytics = analyticsSvc
	}

	if catalogRepo := reg.Catalogs(); catalogRepo != nil && cfg.Public.ViewerOrigin != "" {
		shareSvc, err := services.NewShareService(services.ShareServiceDeps{
			Catalogs:     catalogRepo,
			PublicOrigin: cfg.Public.ViewerOrigin,
			Logos:        adapters.Logos,
			Logger:       logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build share service: %w", err)
		}
		svc.Shares = shareSvc
	}

	if businessRepo := reg.Businesses(); businessRepo != nil && adapters.Directory != nil {
		accountSvc, err := services.NewAccountService(services.AccountServiceDeps{
			Directory:  adapters.Directory,
			Passwords:  adapters.Passwords,
			Businesses: businessRepo,
			Clock:      clock,
			Logger:     logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build account service: %w", err)
		}
		svc.Accounts = accountSvc
	}

	if activityRepo := reg.Activity(); activityRepo != nil {
		activitySvc, err := services.NewActivityService(services.ActivityServiceDeps{
			Activity: activityRepo,
			Clock:    clock,
			Logger:   logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build activity service: %w", err)
		}
		svc.Activity = activitySvc
	}

	if adapters.ImageHost != nil {
		imageSvc, err := services.NewImageService(services.ImageServiceDeps{
			Host:           adapters.ImageHost,
			MaxWidth:       cfg.ImageHost.MaxWidth,
			Quality:        cfg.ImageHost.JPEGQuality,
			MaxUploadBytes: cfg.ImageHost.MaxUploadBytes,
			Clock:          clock,
			IDGenerator:    NewULID,
			Logger:         logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build image service: %w", err)
		}
		svc.Images = imageSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		build := adapters.Build
		if build.StartedAt.IsZero() {
			build.StartedAt = clock().UTC()
		}
		if build.Environment == "" {
			build.Environment = cfg.Security.Environment
		}
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            clock,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
