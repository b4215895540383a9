package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/auratask/core/internal/domain/entities"
)

// KeyRepository manages the pooled analyzer credentials and the
// aggregated usage analytics behind the admin surface.
type KeyRepository interface {
	ListKeys(ctx context.Context) ([]entities.APIKey, error)
	CreateKey(ctx context.Context, label, key string) (*entities.APIKey, error)
	SetKeyEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	DeleteKey(ctx context.Context, id uuid.UUID) error

	// TouchKey bumps the usage counter for a key drawn from the pool.
	TouchKey(ctx context.Context, key string) error

	// UsageStats aggregates per-day activity over the trailing window.
	UsageStats(ctx context.Context, days int) ([]entities.UsageStat, error)
}
