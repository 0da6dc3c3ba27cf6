package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_FIREBASE_PROJECT_ID":   "showcase-dev",
		"API_STORAGE_IMAGES_BUCKET": "showcase-images-dev",
		"API_PUBLIC_VIEWER_ORIGIN":  "https://showcase.example.com/",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "showcase-dev", cfg.Firestore.ProjectID, "firestore project defaults to firebase project")
	assert.Equal(t, "showcase-dev", cfg.PubSub.ProjectID)
	assert.Equal(t, defaultCatalogEventsTopic, cfg.PubSub.CatalogEventsTopic)
	assert.Equal(t, "https://showcase.example.com", cfg.Public.ViewerOrigin, "trailing slash trimmed")
	assert.Equal(t, ImageHostGCS, cfg.ImageHost.Provider)
	assert.Equal(t, 800, cfg.ImageHost.MaxWidth)
	assert.Equal(t, 80, cfg.ImageHost.JPEGQuality)
	assert.Equal(t, "https://storage.googleapis.com/showcase-images-dev", cfg.Storage.PublicBaseURL)
	assert.Equal(t, defaultStorageImagePrefix, cfg.Storage.ImagePrefix)
	assert.Equal(t, "local", cfg.Security.Environment)
	assert.Equal(t, defaultOIDCJWKSURL, cfg.Security.OIDC.JWKSURL)
	assert.Len(t, cfg.Security.OIDC.Issuers, 2)
	assert.Equal(t, defaultIdempotencyHeader, cfg.Idempotency.Header)
	assert.Equal(t, defaultIdempotencyTTL, cfg.Idempotency.TTL)
	assert.Equal(t, defaultIdempotencyInterval, cfg.Idempotency.CleanupInterval)
	assert.Equal(t, defaultIdempotencyBatchSize, cfg.Idempotency.CleanupBatchSize)
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                    "9090",
		"API_SERVER_IDLE_TIMEOUT":            "2m",
		"API_FIREBASE_PROJECT_ID":            "showcase-prod",
		"API_FIREBASE_WEB_API_KEY":           "secret://firebase/web-key",
		"API_FIRESTORE_PROJECT_ID":           "showcase-data",
		"API_PUBSUB_CATALOG_EVENTS_TOPIC":    "catalogs",
		"API_PUBLIC_VIEWER_ORIGIN":           "https://menu.example.com",
		"API_IMAGE_HOST_PROVIDER":            "ImgBB",
		"API_IMAGE_HOST_IMGBB_API_KEY":       "sm://imgbb/key",
		"API_IMAGE_MAX_WIDTH":                "1024",
		"API_IMAGE_JPEG_QUALITY":             "70",
		"API_SECURITY_ENVIRONMENT":           "PROD",
		"API_SECURITY_OIDC_AUDIENCES":        "prod=https://api.example.com,stg=https://stg.example.com",
		"API_SECURITY_OIDC_SERVICE_ACCOUNTS": "push@showcase.iam.gserviceaccount.com",
		"API_IDEMPOTENCY_HEADER":             "X-Idem-Key",
		"API_IDEMPOTENCY_TTL":                "48h",
	}
	secrets := map[string]string{
		"secret://firebase/web-key": "web-key",
		"secret://imgbb/key":        "imgbb-key",
	}
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", errors.New("not found")
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.IdleTimeout)
	assert.Equal(t, "showcase-data", cfg.Firestore.ProjectID)
	assert.Equal(t, "web-key", cfg.Firebase.WebAPIKey)
	assert.Equal(t, ImageHostImgBB, cfg.ImageHost.Provider)
	assert.Equal(t, "imgbb-key", cfg.ImageHost.ImgBBAPIKey, "legacy sm:// scheme resolves")
	assert.Equal(t, 1024, cfg.ImageHost.MaxWidth)
	assert.Equal(t, 70, cfg.ImageHost.JPEGQuality)
	assert.Equal(t, "catalogs", cfg.PubSub.CatalogEventsTopic)
	assert.Equal(t, "prod", cfg.Security.Environment)
	assert.Equal(t, "https://api.example.com", cfg.Security.OIDC.Audience, "audience picked by environment")
	assert.Equal(t, []string{"push@showcase.iam.gserviceaccount.com"}, cfg.Security.OIDC.ServiceAccounts)
	assert.Equal(t, "X-Idem-Key", cfg.Idempotency.Header)
	assert.Equal(t, 48*time.Hour, cfg.Idempotency.TTL)
	assert.Empty(t, cfg.Storage.PublicBaseURL, "no bucket configured for imgbb host")
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\n# comment\nexport API_FIREBASE_PROJECT_ID=\"showcase-dot\"\nAPI_STORAGE_IMAGES_BUCKET=images-dot\nAPI_PUBLIC_VIEWER_ORIGIN=http://localhost:3000\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o644))

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "showcase-dot", cfg.Firebase.ProjectID)
	assert.Equal(t, "http://localhost:3000", cfg.Public.ViewerOrigin)
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	require.Error(t, err)

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Fields(), "Firebase.ProjectID")
	assert.Contains(t, validation.Fields(), "Public.ViewerOrigin")
	assert.Contains(t, validation.Fields(), "Storage.ImagesBucket")
}

func TestLoadRejectsInvalidImageSettings(t *testing.T) {
	env := baseEnv()
	env["API_IMAGE_HOST_PROVIDER"] = "s3"
	env["API_IMAGE_JPEG_QUALITY"] = "120"
	env["API_PUBLIC_VIEWER_ORIGIN"] = "not a url"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.ElementsMatch(t, []string{"Public.ViewerOrigin", "ImageHost.Provider", "ImageHost.JPEGQuality"}, validation.Fields())
}

func TestLoadSecretResolverError(t *testing.T) {
	env := baseEnv()
	env["API_FIREBASE_WEB_API_KEY"] = "secret://missing"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))

	var secretErr *SecretError
	require.ErrorAs(t, err, &secretErr)
	assert.Equal(t, "secret://missing", secretErr.Ref)
	assert.ErrorIs(t, err, errSecretResolverNotConfigured)
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
	}))
	require.NoError(t, err)

	assert.Equal(t, "override-project", values["API_FIREBASE_PROJECT_ID"])
	assert.Equal(t, ".dot.local", values["API_SECRET_FALLBACK_FILE"])
	assert.Equal(t, "prod=project-prod", values["API_SECRET_PROJECT_IDS"])
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Firebase.WebAPIKey"),
	)

	var missing *MissingSecretsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{redactSecretName("Firebase.WebAPIKey")}, missing.RedactedNames())
	assert.NotContains(t, missing.Error(), "Firebase.WebAPIKey")
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	defer func() {
		rec := recover()
		require.NotNil(t, rec, "expected panic when required secrets missing")
		missing, ok := rec.(*MissingSecretsError)
		require.True(t, ok, "expected MissingSecretsError panic, got %T", rec)
		assert.Equal(t, []string{"Firebase.WebAPIKey"}, missing.Names())
	}()

	_, _ = Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Firebase.WebAPIKey"),
		WithPanicOnMissingSecrets(),
	)
}
