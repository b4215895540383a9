package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/infrastructure/config"
	"github.com/auratask/core/internal/infrastructure/logger"
)

func newTestPool(repo *stubKeyRepo) *KeyPool {
	return NewKeyPool(config.AnalyzerConfig{
		KeyRatePerMin: 600,
		KeyBurst:      10,
	}, repo, logger.Nop())
}

func TestAcquireRotatesAcrossKeys(t *testing.T) {
	repo := &stubKeyRepo{keys: []entities.APIKey{
		enabledKey("alpha"),
		enabledKey("beta"),
	}}
	pool := newTestPool(repo)
	ctx := context.Background()

	first, err := pool.Acquire(ctx)
	require.NoError(t, err)
	second, err := pool.Acquire(ctx)
	require.NoError(t, err)
	third, err := pool.Acquire(ctx)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, first, third)
}

func TestAcquireSkipsDisabledKeys(t *testing.T) {
	repo := &stubKeyRepo{keys: []entities.APIKey{
		{Key: "off", Enabled: false},
		enabledKey("on"),
	}}
	pool := newTestPool(repo)

	for i := 0; i < 3; i++ {
		key, err := pool.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "on", key)
	}
}

func TestAcquireEmptyPool(t *testing.T) {
	pool := newTestPool(&stubKeyRepo{})
	_, err := pool.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrNoKeys)
}

func TestAcquireFailsWhenFirstLoadFails(t *testing.T) {
	repo := &stubKeyRepo{listErr: errors.New("db down")}
	pool := newTestPool(repo)
	_, err := pool.Acquire(context.Background())
	assert.Error(t, err)
}

func TestAcquireServesCachedKeysWhenRefreshFails(t *testing.T) {
	repo := &stubKeyRepo{keys: []entities.APIKey{enabledKey("cached")}}
	pool := newTestPool(repo)

	key, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, "cached", key)

	// Force the next Acquire to attempt a refresh and fail it.
	repo.mu.Lock()
	repo.listErr = errors.New("db down")
	repo.mu.Unlock()
	pool.mu.Lock()
	pool.refreshed = time.Time{}
	pool.mu.Unlock()

	key, err = pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached", key)
}

func TestAcquireRecordsUsage(t *testing.T) {
	repo := &stubKeyRepo{keys: []entities.APIKey{enabledKey("counted")}}
	pool := newTestPool(repo)

	_, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, []string{"counted"}, repo.touched)
}

func TestAcquireRespectsCancellationWhenSaturated(t *testing.T) {
	repo := &stubKeyRepo{keys: []entities.APIKey{enabledKey("slow")}}
	// One request per minute, no burst headroom after the first draw.
	pool := NewKeyPool(config.AnalyzerConfig{KeyRatePerMin: 1, KeyBurst: 1}, repo, logger.Nop())

	_, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	assert.Error(t, err)
}
