package analyzer

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/auratask/core/internal/infrastructure/config"
	"github.com/auratask/core/internal/infrastructure/logger"
	"github.com/auratask/core/internal/ports"
)

// ErrNoKeys is returned when the admin pool holds no enabled keys.
var ErrNoKeys = errors.New("analyzer key pool is empty")

// refreshInterval bounds how stale the in-memory key list may get after
// an admin edits the pool.
const refreshInterval = time.Minute

// KeyPool rotates over the enabled admin keys, each behind its own rate
// limiter, so one hot key never starves the others.
type KeyPool struct {
	repo   ports.KeyRepository
	logger *logger.Logger
	perMin int
	burst  int

	mu        sync.Mutex
	keys      []pooledKey
	next      int
	refreshed time.Time
}

type pooledKey struct {
	key     string
	limiter *rate.Limiter
}

// NewKeyPool creates the pool. Keys are loaded lazily on first Acquire.
func NewKeyPool(cfg config.AnalyzerConfig, repo ports.KeyRepository, log *logger.Logger) *KeyPool {
	return &KeyPool{
		repo:   repo,
		logger: log,
		perMin: cfg.KeyRatePerMin,
		burst:  cfg.KeyBurst,
	}
}

// Acquire returns the next key whose limiter has budget, blocking until
// one frees up or ctx is cancelled.
func (p *KeyPool) Acquire(ctx context.Context) (string, error) {
	p.mu.Lock()
	if err := p.refreshLocked(ctx); err != nil {
		p.mu.Unlock()
		return "", err
	}
	if len(p.keys) == 0 {
		p.mu.Unlock()
		return "", ErrNoKeys
	}

	// Prefer a key that can serve immediately.
	for range p.keys {
		candidate := &p.keys[p.next]
		p.next = (p.next + 1) % len(p.keys)
		if candidate.limiter.Allow() {
			key := candidate.key
			p.mu.Unlock()
			p.noteUse(key)
			return key, nil
		}
	}

	// Every key is saturated; wait on the next one in rotation.
	candidate := &p.keys[p.next]
	p.next = (p.next + 1) % len(p.keys)
	p.mu.Unlock()

	if err := candidate.limiter.Wait(ctx); err != nil {
		return "", err
	}
	p.noteUse(candidate.key)
	return candidate.key, nil
}

// refreshLocked reloads the key list when stale, keeping limiter state
// for keys that survive the reload.
func (p *KeyPool) refreshLocked(ctx context.Context) error {
	if time.Since(p.refreshed) < refreshInterval && p.keys != nil {
		return nil
	}

	rows, err := p.repo.ListKeys(ctx)
	if err != nil {
		if p.keys != nil {
			// Serve the cached set rather than failing the request.
			p.logger.WithError(err).Warnw("Key pool refresh failed, serving cached keys")
			return nil
		}
		return err
	}

	existing := make(map[string]*rate.Limiter, len(p.keys))
	for _, k := range p.keys {
		existing[k.key] = k.limiter
	}

	fresh := make([]pooledKey, 0, len(rows))
	for _, row := range rows {
		if !row.Enabled {
			continue
		}
		limiter, ok := existing[row.Key]
		if !ok {
			limiter = rate.NewLimiter(rate.Limit(float64(p.perMin)/60.0), p.burst)
		}
		fresh = append(fresh, pooledKey{key: row.Key, limiter: limiter})
	}
	p.keys = fresh
	if p.next >= len(p.keys) {
		p.next = 0
	}
	p.refreshed = time.Now()
	return nil
}

func (p *KeyPool) noteUse(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.repo.TouchKey(ctx, key); err != nil {
		p.logger.WithError(err).Debugw("Key usage count not recorded")
	}
}
