package crawler

import (
	"context"

	"go.uber.org/zap"
)

type ContextKey string

const ScrapeIDKey ContextKey = "scrape_id"

// WithScrapeID tags ctx with the id of one scrape.
func WithScrapeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ScrapeIDKey, id)
}

// GetContextLogger adds the scrape id, if any, to baseLogger.
func GetContextLogger(ctx context.Context, baseLogger *zap.Logger) *zap.Logger {
	if id, ok := ctx.Value(ScrapeIDKey).(string); ok {
		return baseLogger.With(zap.String(string(ScrapeIDKey), id))
	}
	return baseLogger
}
