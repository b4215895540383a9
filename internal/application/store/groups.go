package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/ports"
)

// AddGroup creates a group with the placeholder emoji. When auto features
// are on, an emoji is assigned asynchronously after creation.
func (s *Store) AddGroup(ctx context.Context, name string) (*entities.TaskGroup, error) {
	if err := entities.ValidateGroupName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}
	owner, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}

	group := entities.TaskGroup{
		ID:        uuid.New(),
		UserID:    owner,
		Name:      strings.TrimSpace(name),
		Emoji:     entities.DefaultGroupEmoji,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	// Groups use bare list position as their key, unlike tasks.
	group.OrderIndex = int64(len(s.groups))
	s.groups = append(s.groups, group)
	s.mu.Unlock()

	canonical, err := s.gateway.InsertGroup(ctx, &group)
	if err != nil {
		s.rollback(ctx, "add group", err)
		return nil, fmt.Errorf("%w: insert group: %v", entities.ErrPersistence, err)
	}
	s.mergeGroup(canonical)
	s.pushSuccessToast("Group added")

	s.maybeAssignGroupEmoji(canonical.ID, canonical.Name)
	return canonical, nil
}

// RenameGroup updates the group name and re-runs emoji assignment.
func (s *Store) RenameGroup(ctx context.Context, id uuid.UUID, name string) error {
	if err := entities.ValidateGroupName(name); err != nil {
		return fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}
	if _, err := s.requireIdentity(); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(name)

	s.mu.Lock()
	idx := s.groupIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return entities.ErrGroupNotFound
	}
	s.groups[idx].Name = trimmed
	s.mu.Unlock()

	canonical, err := s.gateway.UpdateGroup(ctx, id, ports.GroupPatch{Name: &trimmed})
	if err != nil {
		s.rollback(ctx, "rename group", err)
		return fmt.Errorf("%w: rename group: %v", entities.ErrPersistence, err)
	}
	s.mergeGroup(canonical)

	s.maybeAssignGroupEmoji(id, trimmed)
	return nil
}

// DeleteGroup nulls the group reference on every task that holds it,
// optimistically, then deletes the group. The tasks survive.
func (s *Store) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.groupIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return entities.ErrGroupNotFound
	}
	s.groups = append(s.groups[:idx], s.groups[idx+1:]...)
	for i := range s.tasks {
		if s.tasks[i].GroupID != nil && *s.tasks[i].GroupID == id {
			s.tasks[i].GroupID = nil
		}
	}
	s.mu.Unlock()

	if err := s.gateway.ClearGroupRef(ctx, id); err != nil {
		s.rollback(ctx, "delete group", err)
		return fmt.Errorf("%w: clear group refs: %v", entities.ErrPersistence, err)
	}
	if err := s.gateway.DeleteGroup(ctx, id); err != nil {
		s.rollback(ctx, "delete group", err)
		return fmt.Errorf("%w: delete group: %v", entities.ErrPersistence, err)
	}
	s.pushSuccessToast("Group deleted")
	s.logger.Infow("Group deleted", "group_id", id)
	return nil
}

// ReorderGroups rewrites the flat group order using list positions as keys.
func (s *Store) ReorderGroups(ctx context.Context, ids []uuid.UUID) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}

	updates := make([]ports.OrderUpdate, 0, len(ids))

	s.mu.Lock()
	for i, id := range ids {
		idx := s.groupIndex(id)
		if idx < 0 {
			continue
		}
		s.groups[idx].OrderIndex = int64(i)
		updates = append(updates, ports.OrderUpdate{ID: id, OrderIndex: int64(i)})
	}
	sortGroups(s.groups)
	s.mu.Unlock()

	if err := s.gateway.BatchUpdateGroupOrder(ctx, updates); err != nil {
		s.rollback(ctx, "reorder groups", err)
		return fmt.Errorf("%w: reorder groups: %v", entities.ErrPersistence, err)
	}
	return nil
}

// maybeAssignGroupEmoji asks the analyzer for an emoji in the background
// when auto-ranking is enabled. Best effort; failures are only logged.
func (s *Store) maybeAssignGroupEmoji(id uuid.UUID, name string) {
	if !s.Settings().AutoRanking {
		return
	}
	go func() {
		ctx := context.Background()
		emoji, err := s.analyzer.SuggestEmoji(ctx, name)
		if err != nil || emoji == "" {
			if err != nil {
				s.logger.WithError(err).Debugw("Group emoji suggestion failed", "group_id", id)
			}
			return
		}
		canonical, err := s.gateway.UpdateGroup(ctx, id, ports.GroupPatch{Emoji: &emoji})
		if err != nil {
			s.logger.WithError(err).Debugw("Group emoji update failed", "group_id", id)
			return
		}
		s.mergeGroup(canonical)
	}()
}

func (s *Store) mergeGroup(row *entities.TaskGroup) {
	if row == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.groupIndex(row.ID)
	if idx >= 0 {
		s.groups[idx] = *row
	} else {
		s.groups = append(s.groups, *row)
	}
	sortGroups(s.groups)
}

// groupIndex must be called with the lock held.
func (s *Store) groupIndex(id uuid.UUID) int {
	for i := range s.groups {
		if s.groups[i].ID == id {
			return i
		}
	}
	return -1
}
