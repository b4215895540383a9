package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/auratask/core/internal/domain/entities"
)

// MigrateToUser transitions the active guest identity to an authenticated
// one. The backend re-owns the guest's rows under the new id; the locally
// remembered guest id is cleared and the store refetches everything under
// the new identity. Migration failure is logged, not retried: the user
// continues with whatever the backend already holds for them.
func (s *Store) MigrateToUser(ctx context.Context, user *entities.User) error {
	s.mu.Lock()
	current := s.identity
	s.mu.Unlock()

	if current != nil && current.IsAnonymous && current.ID != user.ID {
		if err := s.gateway.MigrateGuest(ctx, current.ID, user.ID); err != nil {
			s.logger.WithError(err).Errorw("Guest migration failed",
				"guest_id", current.ID, "user_id", user.ID)
		} else {
			s.logger.Infow("Guest data migrated", "guest_id", current.ID, "user_id", user.ID)
		}
	}

	if err := s.local.ClearGuestID(); err != nil {
		s.logger.WithError(err).Warnw("Failed to clear remembered guest id")
	}

	s.mu.Lock()
	s.identity = user
	s.mu.Unlock()

	if err := s.Refresh(ctx); err != nil {
		return fmt.Errorf("refetch after migration: %w", err)
	}
	return nil
}

// SignOut ends the session and drops all in-memory state.
func (s *Store) SignOut(ctx context.Context) error {
	owner, err := s.requireIdentity()
	if err != nil {
		return err
	}
	if err := s.gateway.SignOut(ctx, owner); err != nil {
		return fmt.Errorf("%w: sign out: %v", entities.ErrPersistence, err)
	}

	s.mu.Lock()
	s.identity = nil
	s.tasks = nil
	s.groups = nil
	s.tags = nil
	s.settings = entities.UserSettings{}
	s.unlocked = make(map[uuid.UUID]bool)
	s.mu.Unlock()

	s.logger.Infow("Signed out", "user_id", owner)
	return nil
}
