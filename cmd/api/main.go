package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/showcase/api/internal/di"
	"github.com/showcase/api/internal/handlers"
	"github.com/showcase/api/internal/platform/auth"
	"github.com/showcase/api/internal/platform/config"
	pfirestore "github.com/showcase/api/internal/platform/firestore"
	"github.com/showcase/api/internal/platform/idempotency"
	"github.com/showcase/api/internal/platform/imagehost"
	"github.com/showcase/api/internal/platform/jobs"
	"github.com/showcase/api/internal/platform/media"
	"github.com/showcase/api/internal/platform/observability"
	"github.com/showcase/api/internal/platform/secrets"
	platformstorage "github.com/showcase/api/internal/platform/storage"
	"github.com/showcase/api/internal/repositories"
	firestoreRepo "github.com/showcase/api/internal/repositories/firestore"
	"github.com/showcase/api/internal/services"
)

const (
	publicEventLimit  = 120
	publicEventWindow = time.Minute
	logoFetchTimeout  = 5 * time.Second
	multipartOverhead = 1 << 20
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.ResolveSecret)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	imageHost, uploader, closeStorage := newImageHost(ctx, logger.Named("images"), cfg)
	defer closeStorage()

	eventPublisher, closePubSub := newCatalogEventPublisher(ctx, logger.Named("pubsub"), cfg)
	defer closePubSub()

	healthRepo, err := newHealthRepository(firestoreProvider, uploader, eventPublisher, fetcher)
	if err != nil {
		logger.Warn("health: dependency checks unavailable", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithUserGetter(firebaseVerifier))

	adapters := di.Adapters{
		Directory: firebaseVerifier,
		Logos:     media.NewFetcher(nil, logoFetchTimeout, 0),
		Build:     buildInfo,
		Clock:     time.Now,
		Logger:    observability.EventLogger(logger.Named("services")),
	}
	if passwords := newPasswordSignIn(ctx, logger.Named("auth"), cfg); passwords != nil {
		adapters.Passwords = passwords
	}
	if imageHost != nil {
		adapters.ImageHost = imageHost
	}
	if eventPublisher != nil {
		adapters.Events = eventPublisher
	}

	container, err := di.NewContainer(cfg, registry, adapters)
	if err != nil {
		logger.Fatal("failed to build services", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()
	svc := container.Services
	if svc.Shares == nil {
		logger.Warn("share links disabled; API_PUBLIC_VIEWER_ORIGIN is not set")
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithMethods(http.MethodPost),
		idempotency.WithMaxBodySize(cfg.ImageHost.MaxUploadBytes+multipartOverhead),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	var cleanupTicker *time.Ticker
	if cfg.Idempotency.CleanupInterval > 0 {
		cleanupTicker = time.NewTicker(cfg.Idempotency.CleanupInterval)
		cleanupWG.Add(1)
		go func() {
			defer cleanupWG.Done()
			cleanupLogger := logger.Named("idempotency")
			for {
				select {
				case <-cleanupTicker.C:
					runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
					removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
					cancel()
					if err != nil {
						cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
						continue
					}
					if removed > 0 {
						cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
					}
				case <-cleanupCtx.Done():
					return
				}
			}
		}()
	}

	authHandlers := handlers.NewAuthHandlers(authenticator, svc.Accounts)
	meHandlers := handlers.NewMeHandlers(authenticator,
		handlers.WithMeAccountService(svc.Accounts),
		handlers.WithMeCatalogService(svc.Catalogs),
		handlers.WithMeEngagementService(svc.Engagement),
		handlers.WithMeShareService(svc.Shares),
		handlers.WithMeImageService(svc.Images),
		handlers.WithMeAnalyticsService(svc.Analytics),
		handlers.WithMeActivityService(svc.Activity),
		handlers.WithMeMaxImageSize(cfg.ImageHost.MaxUploadBytes),
	)
	publicHandlers := handlers.NewPublicHandlers(
		handlers.WithPublicCatalogService(svc.Catalogs),
		handlers.WithPublicEngagementService(svc.Engagement),
		handlers.WithPublicEventRateLimit(publicEventLimit, publicEventWindow, time.Now),
	)
	internalHandlers := handlers.NewInternalHandlers(
		handlers.WithInternalActivityService(svc.Activity),
		handlers.WithInternalLogger(observability.EventLogger(logger.Named("internal"))),
	)
	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(svc.System),
	)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
		idempotencyMiddleware,
	}

	var opts []handlers.Option
	opts = append(opts, handlers.WithMiddlewares(middlewares...))
	opts = append(opts, handlers.WithRequestTimeout(cfg.Server.WriteTimeout))
	opts = append(opts, handlers.WithHealthHandlers(healthHandlers))
	opts = append(opts, handlers.WithAuthRoutes(authHandlers.Routes))
	opts = append(opts, handlers.WithPublicRoutes(publicHandlers.Routes))
	opts = append(opts, handlers.WithMeRoutes(meHandlers.Routes))
	opts = append(opts, handlers.WithInternalRoutes(internalHandlers.Routes))
	if oidcMiddleware := buildPushMiddleware(logger.Named("auth"), cfg); oidcMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidcMiddleware))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// No WriteTimeout: the catalog stream is long-lived. Other routes get
		// cfg.Server.WriteTimeout from the router.
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("showcase api listening",
			zap.String("version", buildInfo.Version),
			zap.String("environment", buildInfo.Environment),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	if cleanupTicker != nil {
		cleanupTicker.Stop()
	}
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

// newImageHost returns nil when uploads are not configured. The uploader is returned
// separately so readiness can probe the bucket.
func newImageHost(ctx context.Context, logger *zap.Logger, cfg config.Config) (imagehost.Host, *platformstorage.Uploader, func()) {
	noop := func() {}
	switch cfg.ImageHost.Provider {
	case config.ImageHostImgBB:
		host, err := imagehost.NewImgBBHost(cfg.ImageHost.ImgBBEndpoint, cfg.ImageHost.ImgBBAPIKey, cfg.ImageHost.Timeout)
		if err != nil {
			logger.Fatal("failed to initialise imgbb host", zap.Error(err))
		}
		return host, nil, noop
	case config.ImageHostGCS, "":
		if strings.TrimSpace(cfg.Storage.ImagesBucket) == "" {
			logger.Warn("image uploads disabled; API_STORAGE_IMAGES_BUCKET is not set")
			return nil, nil, noop
		}
		client, err := cloudstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("failed to initialise storage client", zap.Error(err))
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("storage close error", zap.Error(err))
			}
		}
		uploader, err := platformstorage.NewUploader(client, cfg.Storage.ImagesBucket, cfg.Storage.PublicBaseURL,
			platformstorage.WithCacheControl("public, max-age=31536000, immutable"),
		)
		if err != nil {
			logger.Fatal("failed to initialise storage uploader", zap.Error(err))
		}
		host, err := imagehost.NewGCSHost(uploader, cfg.Storage.ImagePrefix)
		if err != nil {
			logger.Fatal("failed to initialise gcs image host", zap.Error(err))
		}
		return host, uploader, closeFn
	default:
		logger.Fatal("unknown image host provider", zap.String("provider", cfg.ImageHost.Provider))
		return nil, nil, noop
	}
}

func newCatalogEventPublisher(ctx context.Context, logger *zap.Logger, cfg config.Config) (*jobs.PubSubCatalogEventPublisher, func()) {
	noop := func() {}
	projectID := strings.TrimSpace(cfg.PubSub.ProjectID)
	if projectID == "" {
		projectID = strings.TrimSpace(cfg.Firebase.ProjectID)
	}
	topicName := strings.TrimSpace(cfg.PubSub.CatalogEventsTopic)
	if projectID == "" || topicName == "" {
		logger.Warn("catalog events disabled; pubsub project or topic missing")
		return nil, noop
	}

	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	topic := client.Topic(topicName)
	topic.EnableMessageOrdering = true

	publisher, err := jobs.NewPubSubCatalogEventPublisher(topic)
	if err != nil {
		logger.Fatal("failed to initialise catalog event publisher", zap.Error(err))
	}
	return publisher, func() {
		topic.Stop()
		if err := client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
}

func newPasswordSignIn(ctx context.Context, logger *zap.Logger, cfg config.Config) *auth.PasswordSignIn {
	if strings.TrimSpace(cfg.Firebase.WebAPIKey) == "" {
		logger.Warn("password sign-in disabled; firebase web api key is not set")
		return nil
	}
	passwords, err := auth.NewPasswordSignIn(ctx, cfg.Firebase.WebAPIKey)
	if err != nil {
		logger.Fatal("failed to initialise password sign-in", zap.Error(err))
	}
	return passwords
}

func newHealthRepository(provider *pfirestore.Provider, uploader *platformstorage.Uploader, publisher *jobs.PubSubCatalogEventPublisher, fetcher *secrets.Fetcher) (repositories.HealthRepository, error) {
	checks := make([]repositories.DependencyCheck, 0, 4)
	if provider != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:     "firestore",
			Critical: true,
			Timeout:  1500 * time.Millisecond,
			Check:    provider.Ping,
		})
	}
	if uploader != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "storage",
			Timeout: 1500 * time.Millisecond,
			Check:   uploader.Ping,
		})
	}
	if publisher != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "pubsub",
			Timeout: 1500 * time.Millisecond,
			Check:   publisher.Ping,
		})
	}
	if fetcher != nil {
		const secretHealthReference = "secret://system-healthz"
		checks = append(checks, repositories.DependencyCheck{
			Name:    "secretManager",
			Timeout: time.Second,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil || errors.Is(err, secrets.ErrNotFound) {
					return nil
				}
				if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	return repositories.NewDependencyHealthRepository(checks)
}

func buildPushMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}

	adapter := observability.NewPrintfAdapter(logger)
	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, auth.WithJWKSLogger(adapter))
	validator := auth.NewOIDCValidator(cache, auth.WithOIDCLogger(adapter))

	audiences := pushAudiences(cfg.Security.OIDC)
	if len(audiences) == 0 {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	if len(cfg.Security.OIDC.Issuers) == 0 {
		logger.Warn("auth: OIDC issuers not configured; internal routes will reject requests")
	}

	return validator.RequirePushToken(auth.PushPolicy{
		Audiences:       audiences,
		Issuers:         cfg.Security.OIDC.Issuers,
		ServiceAccounts: cfg.Security.OIDC.ServiceAccounts,
	})
}

func pushAudiences(cfg config.OIDCConfig) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		if _, ok := seen[value]; ok {
			return
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	add(cfg.Audience)
	keys := make([]string, 0, len(cfg.Audiences))
	for key := range cfg.Audiences {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		add(cfg.Audiences[key])
	}
	return out
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.TrimSpace(env[key])
	}

	project := lookup("API_SECRET_PROJECT_ID")
	if project == "" {
		project = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if project != "" {
		opts = append(opts, secrets.WithProject(project))
	}
	if ttl, err := time.ParseDuration(lookup("API_SECRET_CACHE_TTL")); err == nil && ttl > 0 {
		opts = append(opts, secrets.WithCacheTTL(ttl))
	}

	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lets local runs start without the web API key; sign-in is then
// disabled.
func requiredSecretNames(env map[string]string) []string {
	lookup := func(key string) string {
		if env == nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(env[key]))
	}
	var required []string
	if environment := lookup("API_SECURITY_ENVIRONMENT"); environment != "" && environment != "local" {
		required = append(required, "Firebase.WebAPIKey")
	}
	if lookup("API_IMAGE_HOST_PROVIDER") == config.ImageHostImgBB {
		required = append(required, "ImageHost.ImgBBAPIKey")
	}
	return required
}
