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

// AddTag creates a tag in the fixed color palette.
func (s *Store) AddTag(ctx context.Context, name string, color entities.TagColor) (*entities.Tag, error) {
	if err := entities.ValidateTitle(name); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}
	if !color.IsValid() {
		return nil, fmt.Errorf("%w: unknown tag color %q", entities.ErrValidation, color)
	}
	owner, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}

	tag := entities.Tag{
		ID:        uuid.New(),
		UserID:    owner,
		Name:      strings.TrimSpace(name),
		Color:     color,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.tags = append(s.tags, tag)
	s.mu.Unlock()

	canonical, err := s.gateway.InsertTag(ctx, &tag)
	if err != nil {
		s.rollback(ctx, "add tag", err)
		return nil, fmt.Errorf("%w: insert tag: %v", entities.ErrPersistence, err)
	}
	s.mergeTag(canonical)
	return canonical, nil
}

// UpdateTag merges the given fields into the tag everywhere it appears.
func (s *Store) UpdateTag(ctx context.Context, id uuid.UUID, patch ports.TagPatch) error {
	if patch.Name != nil {
		if err := entities.ValidateTitle(*patch.Name); err != nil {
			return fmt.Errorf("%w: %v", entities.ErrValidation, err)
		}
	}
	if patch.Color != nil && !patch.Color.IsValid() {
		return fmt.Errorf("%w: unknown tag color %q", entities.ErrValidation, *patch.Color)
	}
	if _, err := s.requireIdentity(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.tagIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return entities.ErrTagNotFound
	}
	if patch.Name != nil {
		s.tags[idx].Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Color != nil {
		s.tags[idx].Color = *patch.Color
	}
	updatedCopy := s.tags[idx]
	for i := range s.tasks {
		for j := range s.tasks[i].Tags {
			if s.tasks[i].Tags[j].ID == id {
				s.tasks[i].Tags[j] = updatedCopy
			}
		}
	}
	s.mu.Unlock()

	canonical, err := s.gateway.UpdateTag(ctx, id, patch)
	if err != nil {
		s.rollback(ctx, "update tag", err)
		return fmt.Errorf("%w: update tag: %v", entities.ErrPersistence, err)
	}
	s.mergeTag(canonical)
	return nil
}

// DeleteTag removes the tag from every task's tag list locally, then
// deletes it; the join rows cascade on the backend.
func (s *Store) DeleteTag(ctx context.Context, id uuid.UUID) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.tagIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return entities.ErrTagNotFound
	}
	s.tags = append(s.tags[:idx], s.tags[idx+1:]...)
	for i := range s.tasks {
		tags := s.tasks[i].Tags
		for j := range tags {
			if tags[j].ID == id {
				s.tasks[i].Tags = append(tags[:j], tags[j+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if err := s.gateway.DeleteTag(ctx, id); err != nil {
		s.rollback(ctx, "delete tag", err)
		return fmt.Errorf("%w: delete tag: %v", entities.ErrPersistence, err)
	}
	s.pushSuccessToast("Tag deleted")
	return nil
}

// TagTask attaches a tag to a task.
func (s *Store) TagTask(ctx context.Context, taskID, tagID uuid.UUID) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}

	s.mu.Lock()
	tIdx := s.taskIndex(taskID)
	gIdx := s.tagIndex(tagID)
	if tIdx < 0 || gIdx < 0 {
		s.mu.Unlock()
		if tIdx < 0 {
			return entities.ErrTaskNotFound
		}
		return entities.ErrTagNotFound
	}
	if !s.tasks[tIdx].HasTag(tagID) {
		s.tasks[tIdx].Tags = append(s.tasks[tIdx].Tags, s.tags[gIdx])
	}
	s.mu.Unlock()

	if err := s.gateway.AttachTag(ctx, taskID, tagID); err != nil {
		s.rollback(ctx, "tag task", err)
		return fmt.Errorf("%w: attach tag: %v", entities.ErrPersistence, err)
	}
	return nil
}

// UntagTask detaches a tag from a task.
func (s *Store) UntagTask(ctx context.Context, taskID, tagID uuid.UUID) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}

	s.mu.Lock()
	tIdx := s.taskIndex(taskID)
	if tIdx < 0 {
		s.mu.Unlock()
		return entities.ErrTaskNotFound
	}
	tags := s.tasks[tIdx].Tags
	for j := range tags {
		if tags[j].ID == tagID {
			s.tasks[tIdx].Tags = append(tags[:j], tags[j+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if err := s.gateway.DetachTag(ctx, taskID, tagID); err != nil {
		s.rollback(ctx, "untag task", err)
		return fmt.Errorf("%w: detach tag: %v", entities.ErrPersistence, err)
	}
	return nil
}

func (s *Store) mergeTag(row *entities.Tag) {
	if row == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.tagIndex(row.ID)
	if idx >= 0 {
		s.tags[idx] = *row
	} else {
		s.tags = append(s.tags, *row)
	}
}

// tagIndex must be called with the lock held.
func (s *Store) tagIndex(id uuid.UUID) int {
	for i := range s.tags {
		if s.tags[i].ID == id {
			return i
		}
	}
	return -1
}
