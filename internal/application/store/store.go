// Package store implements the client-side state container for AuraTask:
// the single source of truth for task, group, tag and settings data, the
// optimistic mutation protocol against the backend gateway, realtime
// reconciliation, and the completion reward pipeline.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/infrastructure/logger"
	"github.com/auratask/core/internal/ports"
)

// Store holds all client state and mediates every mutation through the
// optimistic-update protocol: apply locally, persist, merge the canonical
// row on success, rollback by refetching the whole collection on failure.
//
// All collaborators are injected; tests substitute fakes.
type Store struct {
	mu       sync.Mutex
	gateway  ports.Gateway
	analyzer ports.Analyzer
	local    ports.LocalStore
	logger   *logger.Logger

	identity *entities.User
	tasks    []entities.Task
	groups   []entities.TaskGroup
	tags     []entities.Tag
	settings entities.UserSettings
	unlocked map[uuid.UUID]bool

	ui      UIState
	notices Notices
}

// New creates a store with its collaborators. Call Init before use.
func New(gateway ports.Gateway, analyzer ports.Analyzer, local ports.LocalStore, log *logger.Logger) *Store {
	return &Store{
		gateway:  gateway,
		analyzer: analyzer,
		local:    local,
		logger:   log,
		unlocked: make(map[uuid.UUID]bool),
	}
}

// Init resolves the active identity and populates state. A remembered guest
// id is reused; otherwise an anonymous identity is created and remembered.
func (s *Store) Init(ctx context.Context) error {
	guestID, ok, err := s.local.GuestID()
	if err != nil {
		return fmt.Errorf("read local guest id: %w", err)
	}

	var user *entities.User
	if ok {
		user, err = s.gateway.GetUser(ctx, guestID)
		if err != nil {
			s.logger.Warnw("Remembered guest not found, creating a new one", "guest_id", guestID)
			user = nil
		}
	}
	if user == nil {
		user, err = s.gateway.SignInAnonymously(ctx)
		if err != nil {
			return fmt.Errorf("anonymous sign-in: %w", err)
		}
		if err := s.local.SetGuestID(user.ID); err != nil {
			s.logger.WithError(err).Warnw("Failed to persist guest id")
		}
	}

	s.mu.Lock()
	s.identity = user
	s.mu.Unlock()

	s.loadUIPrefs()

	if err := s.Refresh(ctx); err != nil {
		return err
	}

	s.logger.Infow("Store initialized", "user_id", user.ID, "anonymous", user.IsAnonymous)
	return nil
}

// InitAs populates state for an already-authenticated identity.
func (s *Store) InitAs(ctx context.Context, user *entities.User) error {
	s.mu.Lock()
	s.identity = user
	s.mu.Unlock()
	return s.Refresh(ctx)
}

// Refresh repopulates every collection from the gateway. It is both the
// initial-population path and the rollback path after a failed mutation.
func (s *Store) Refresh(ctx context.Context) error {
	owner, err := s.requireIdentity()
	if err != nil {
		return err
	}

	tasks, err := s.gateway.ListTasks(ctx, owner)
	if err != nil {
		return fmt.Errorf("%w: refetch tasks: %v", entities.ErrPersistence, err)
	}
	groups, err := s.gateway.ListGroups(ctx, owner)
	if err != nil {
		return fmt.Errorf("%w: refetch groups: %v", entities.ErrPersistence, err)
	}
	tags, err := s.gateway.ListTags(ctx, owner)
	if err != nil {
		return fmt.Errorf("%w: refetch tags: %v", entities.ErrPersistence, err)
	}
	settings, err := s.gateway.GetSettings(ctx, owner)
	if err != nil {
		return fmt.Errorf("%w: refetch settings: %v", entities.ErrPersistence, err)
	}
	unlockedRows, err := s.gateway.ListUnlocked(ctx, owner)
	if err != nil {
		return fmt.Errorf("%w: refetch achievements: %v", entities.ErrPersistence, err)
	}

	unlocked := make(map[uuid.UUID]bool, len(unlockedRows))
	for _, ua := range unlockedRows {
		unlocked[ua.AchievementID] = true
	}

	s.mu.Lock()
	s.tasks = tasks
	sortTasks(s.tasks)
	s.groups = groups
	sortGroups(s.groups)
	s.tags = tags
	s.settings = *settings
	s.unlocked = unlocked
	s.mu.Unlock()

	return nil
}

// Identity returns the active identity, or nil before Init.
func (s *Store) Identity() *entities.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// Tasks returns a snapshot of the task collection in display order.
func (s *Store) Tasks() []entities.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Groups returns a snapshot of the group collection in display order.
func (s *Store) Groups() []entities.TaskGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.TaskGroup, len(s.groups))
	copy(out, s.groups)
	return out
}

// Tags returns a snapshot of the tag collection.
func (s *Store) Tags() []entities.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.Tag, len(s.tags))
	copy(out, s.tags)
	return out
}

// Settings returns the current settings snapshot.
func (s *Store) Settings() entities.UserSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// TaskByID returns a copy of a task, if present.
func (s *Store) TaskByID(id uuid.UUID) (entities.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return entities.Task{}, false
}

// requireIdentity refuses mutations without an identity, before any I/O.
func (s *Store) requireIdentity() (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return uuid.Nil, entities.ErrUnauthenticated
	}
	return s.identity.ID, nil
}

// rollback recovers from a failed mutation by refetching the authoritative
// collections. Any other concurrently-applied optimistic change is
// discarded with them; consistency over precision.
func (s *Store) rollback(ctx context.Context, op string, cause error) {
	s.logger.WithError(cause).Errorw("Mutation failed, refetching", "op", op)
	s.pushErrorToast(fmt.Sprintf("%s failed", op))
	if err := s.Refresh(ctx); err != nil {
		s.logger.WithError(err).Errorw("Rollback refetch failed", "op", op)
	}
}

func sortTasks(tasks []entities.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].OrderIndex < tasks[j].OrderIndex
	})
}

func sortGroups(groups []entities.TaskGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].OrderIndex < groups[j].OrderIndex
	})
}
