package http

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/auratask/core/internal/application/store"
	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/infrastructure/logger"
	"github.com/auratask/core/internal/ports"
)

// TokenAuthority mints and verifies session tokens.
type TokenAuthority interface {
	IssueToken(ctx context.Context, user *entities.User) (string, error)
	VerifyToken(token string) (uuid.UUID, error)
}

// Sessions owns one live store per authenticated identity. Stores are
// created lazily on first request and subscribe to the realtime feed so
// concurrent clients of the same identity converge.
type Sessions struct {
	gateway  ports.Gateway
	analyzer ports.Analyzer
	local    ports.LocalStore
	logger   *logger.Logger

	mu      sync.Mutex
	stores  map[uuid.UUID]*store.Store
	cancels map[uuid.UUID]context.CancelFunc
}

// NewSessions creates the session registry.
func NewSessions(gateway ports.Gateway, analyzer ports.Analyzer, local ports.LocalStore, log *logger.Logger) *Sessions {
	return &Sessions{
		gateway:  gateway,
		analyzer: analyzer,
		local:    local,
		logger:   log,
		stores:   make(map[uuid.UUID]*store.Store),
		cancels:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// Get returns the store for the identity, creating and hydrating it on
// first use.
func (m *Sessions) Get(ctx context.Context, userID uuid.UUID) (*store.Store, error) {
	m.mu.Lock()
	if s, ok := m.stores[userID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	user, err := m.gateway.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	s := store.New(m.gateway, m.analyzer, m.local, m.logger)
	if err := s.InitAs(ctx, user); err != nil {
		return nil, err
	}
	// The feed outlives the request; it stops when the session is dropped.
	feedCtx, cancel := context.WithCancel(context.Background())
	if err := s.Listen(feedCtx); err != nil {
		m.logger.WithError(err).WithUserID(userID.String()).Warnw("Realtime feed unavailable for session")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.stores[userID]; ok {
		cancel()
		return existing, nil
	}
	m.stores[userID] = s
	m.cancels[userID] = cancel
	return s, nil
}

// Drop removes a session, stopping its realtime feed. Used on sign-out
// and after guest migration retires the guest identity.
func (m *Sessions) Drop(userID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[userID]; ok {
		cancel()
		delete(m.cancels, userID)
	}
	delete(m.stores, userID)
}
