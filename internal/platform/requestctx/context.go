package requestctx

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerContextKey  contextKey = "github.com/showcase/api/internal/platform/requestctx/logger"
	traceContextKey   contextKey = "github.com/showcase/api/internal/platform/requestctx/trace"
	catalogContextKey contextKey = "github.com/showcase/api/internal/platform/requestctx/catalog"
)

var noopLogger = zap.NewNop()

// TraceInfo captures trace metadata propagated through request context.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// WithLogger stores the logger in context for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// Logger retrieves the zap logger from context or returns a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return noopLogger
	}
	if logger, ok := ctx.Value(loggerContextKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger exposes the shared noop logger instance used across the package.
func NoopLogger() *zap.Logger { return noopLogger }

// WithTrace stores the trace metadata on the context for downstream usage.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceContextKey, info)
}

// Trace retrieves the trace metadata from context when available.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceContextKey).(TraceInfo)
	if !ok {
		return TraceInfo{}, false
	}
	return info, true
}

// TraceID extracts the trace identifier from context when present.
func TraceID(ctx context.Context) string {
	info, ok := Trace(ctx)
	if !ok {
		return ""
	}
	return info.TraceID
}

// CatalogRef identifies the catalog a request addresses, by owner route id or public slug.
type CatalogRef struct {
	ID   string
	Slug string
}

// IsZero reports whether neither the id nor the slug is known.
func (r CatalogRef) IsZero() bool {
	return r.ID == "" && r.Slug == ""
}

// WithCatalog records the addressed catalog. Blank references leave ctx untouched; a
// partial reference is merged into one already present.
func WithCatalog(ctx context.Context, ref CatalogRef) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ref.ID = strings.TrimSpace(ref.ID)
	ref.Slug = strings.ToLower(strings.TrimSpace(ref.Slug))
	if ref.IsZero() {
		return ctx
	}
	if current, ok := Catalog(ctx); ok {
		if ref.ID == "" {
			ref.ID = current.ID
		}
		if ref.Slug == "" {
			ref.Slug = current.Slug
		}
	}
	return context.WithValue(ctx, catalogContextKey, ref)
}

// Catalog returns the catalog recorded by WithCatalog.
func Catalog(ctx context.Context) (CatalogRef, bool) {
	if ctx == nil {
		return CatalogRef{}, false
	}
	ref, ok := ctx.Value(catalogContextKey).(CatalogRef)
	if !ok || ref.IsZero() {
		return CatalogRef{}, false
	}
	return ref, true
}
