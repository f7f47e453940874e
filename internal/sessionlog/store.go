package sessionlog

import (
	"context"

	"firegate/internal/domain"
)

// Store persists pulled category logs keyed by request and category.
// Save is an upsert so a retried pull replaces an earlier failure.
type Store interface {
	Save(ctx context.Context, log *CategoryLog) error

	// Get returns every stored category for a request, keyed by category.
	// A request with no pulls yet returns an empty map, not an error.
	Get(ctx context.Context, requestID string) (map[domain.LogCategory]*CategoryLog, error)
}
