package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/ordering"
	"github.com/auratask/core/internal/ports"
)

// SubtaskCompletionPoints is the fixed client-side award for completing a
// subtask. Task completion defers points to the backend routine instead.
const SubtaskCompletionPoints = 5

// AddSubtask appends a subtask under its parent task.
func (s *Store) AddSubtask(ctx context.Context, taskID uuid.UUID, title string) (*entities.Subtask, error) {
	if err := entities.ValidateTitle(title); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}
	if _, err := s.requireIdentity(); err != nil {
		return nil, err
	}

	sub := entities.Subtask{
		ID:        uuid.New(),
		TaskID:    taskID,
		Title:     strings.TrimSpace(title),
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	idx := s.taskIndex(taskID)
	if idx < 0 {
		s.mu.Unlock()
		return nil, entities.ErrTaskNotFound
	}
	var existing []int64
	for _, st := range s.tasks[idx].Subtasks {
		existing = append(existing, st.OrderIndex)
	}
	sub.OrderIndex = ordering.Append(existing)
	s.tasks[idx].Subtasks = append(s.tasks[idx].Subtasks, sub)
	s.mu.Unlock()

	canonical, err := s.gateway.InsertSubtask(ctx, &sub)
	if err != nil {
		s.rollback(ctx, "add subtask", err)
		return nil, fmt.Errorf("%w: insert subtask: %v", entities.ErrPersistence, err)
	}
	s.mergeSubtask(canonical)
	s.pushSuccessToast("Subtask added")
	return canonical, nil
}

// UpdateSubtask merges the given fields into the nested subtask.
func (s *Store) UpdateSubtask(ctx context.Context, taskID, subtaskID uuid.UUID, patch ports.SubtaskPatch) error {
	if patch.Title != nil {
		if err := entities.ValidateTitle(*patch.Title); err != nil {
			return fmt.Errorf("%w: %v", entities.ErrValidation, err)
		}
		trimmed := strings.TrimSpace(*patch.Title)
		patch.Title = &trimmed
	}
	if _, err := s.requireIdentity(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.applySubtaskPatch(taskID, subtaskID, patch) {
		s.mu.Unlock()
		return entities.ErrSubtaskNotFound
	}
	s.mu.Unlock()

	canonical, err := s.gateway.UpdateSubtask(ctx, subtaskID, patch)
	if err != nil {
		s.rollback(ctx, "update subtask", err)
		return fmt.Errorf("%w: update subtask: %v", entities.ErrPersistence, err)
	}
	s.mergeSubtask(canonical)
	return nil
}

// DeleteSubtask removes the subtask locally and issues the delete.
func (s *Store) DeleteSubtask(ctx context.Context, taskID, subtaskID uuid.UUID) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.taskIndex(taskID)
	if idx < 0 {
		s.mu.Unlock()
		return entities.ErrTaskNotFound
	}
	subs := s.tasks[idx].Subtasks
	for i := range subs {
		if subs[i].ID == subtaskID {
			s.tasks[idx].Subtasks = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if err := s.gateway.DeleteSubtask(ctx, subtaskID); err != nil {
		s.rollback(ctx, "delete subtask", err)
		return fmt.Errorf("%w: delete subtask: %v", entities.ErrPersistence, err)
	}
	return nil
}

// ToggleSubtaskComplete flips a subtask's completion flag. Completing one
// awards a fixed number of aura points immediately, client-side, through a
// settings upsert. This is asymmetric with task completion on purpose: the
// small award is not worth a backend round-trip before the UI updates.
func (s *Store) ToggleSubtaskComplete(ctx context.Context, taskID, subtaskID uuid.UUID) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.taskIndex(taskID)
	if idx < 0 {
		s.mu.Unlock()
		return entities.ErrTaskNotFound
	}
	var nowCompleted bool
	found := false
	subs := s.tasks[idx].Subtasks
	for i := range subs {
		if subs[i].ID == subtaskID {
			subs[i].IsCompleted = !subs[i].IsCompleted
			nowCompleted = subs[i].IsCompleted
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return entities.ErrSubtaskNotFound
	}
	var newTotal int
	if nowCompleted {
		s.settings.AuraPoints += SubtaskCompletionPoints
		newTotal = s.settings.AuraPoints
	}
	s.mu.Unlock()

	canonical, err := s.gateway.UpdateSubtask(ctx, subtaskID, ports.SubtaskPatch{IsCompleted: &nowCompleted})
	if err != nil {
		s.rollback(ctx, "toggle subtask", err)
		return fmt.Errorf("%w: toggle subtask: %v", entities.ErrPersistence, err)
	}
	s.mergeSubtask(canonical)

	if nowCompleted {
		owner, _ := s.requireIdentity()
		settings, err := s.gateway.UpsertSettings(ctx, owner, ports.SettingsPatch{AuraPoints: &newTotal})
		if err != nil {
			// Points stay applied locally; the next refetch reconciles.
			s.logger.WithError(err).Warnw("Failed to persist subtask point award", "subtask_id", subtaskID)
			return nil
		}
		s.mu.Lock()
		s.settings = *settings
		s.mu.Unlock()
	}
	return nil
}

// mergeSubtask replaces or appends the canonical subtask under its parent.
func (s *Store) mergeSubtask(row *entities.Subtask) {
	if row == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.taskIndex(row.TaskID)
	if idx < 0 {
		return
	}
	subs := s.tasks[idx].Subtasks
	for i := range subs {
		if subs[i].ID == row.ID {
			subs[i] = *row
			return
		}
	}
	s.tasks[idx].Subtasks = append(subs, *row)
}

// applySubtaskPatch must be called with the lock held.
func (s *Store) applySubtaskPatch(taskID, subtaskID uuid.UUID, p ports.SubtaskPatch) bool {
	idx := s.taskIndex(taskID)
	if idx < 0 {
		return false
	}
	subs := s.tasks[idx].Subtasks
	for i := range subs {
		if subs[i].ID != subtaskID {
			continue
		}
		if p.Title != nil {
			subs[i].Title = *p.Title
		}
		if p.IsCompleted != nil {
			subs[i].IsCompleted = *p.IsCompleted
		}
		if p.OrderIndex != nil {
			subs[i].OrderIndex = *p.OrderIndex
		}
		return true
	}
	return false
}
