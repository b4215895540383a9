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

// TaskDraft is the user-entered input for a new task.
type TaskDraft struct {
	Title            string
	Description      *string
	GroupID          *uuid.UUID
	DueDate          *time.Time
	EnableAIRanking  bool
	EnableAISubtasks bool
}

// AddTask validates the draft, optionally enriches it via the analyzer,
// applies it optimistically and persists it. The new task is appended at
// the end of its (group, open) partition with a gapped order key.
func (s *Store) AddTask(ctx context.Context, draft TaskDraft) (*entities.Task, error) {
	if err := entities.ValidateTitle(draft.Title); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrValidation, err)
	}
	owner, err := s.requireIdentity()
	if err != nil {
		return nil, err
	}

	task := entities.Task{
		ID:               uuid.New(),
		UserID:           owner,
		GroupID:          draft.GroupID,
		Title:            strings.TrimSpace(draft.Title),
		Description:      draft.Description,
		DueDate:          draft.DueDate,
		EnableAIRanking:  draft.EnableAIRanking,
		EnableAISubtasks: draft.EnableAISubtasks,
		Tags:             []entities.Tag{},
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	// Enrichment happens before persistence so the stored row already
	// carries scores and emoji. Failure degrades, never aborts.
	var generated []string
	if draft.EnableAIRanking || draft.EnableAISubtasks {
		enrichment, err := s.analyzer.Analyze(ctx, ports.AnalyzeRequest{
			Title:           task.Title,
			Description:     derefOrEmpty(task.Description),
			EnableAIRanking: draft.EnableAIRanking,
			EnableSubtasks:  draft.EnableAISubtasks,
			APIKey:          derefOrEmpty(s.Settings().AnalyzerAPIKey),
		})
		if err != nil {
			s.logger.WithError(err).Warnw("Task enrichment failed, proceeding without AI fields", "title", task.Title)
		} else {
			generated = enrichment.Subtasks
			mergeEnrichment(&task, enrichment)
		}
	}

	// Optimistic append, visible before the gateway call is issued.
	s.mu.Lock()
	task.OrderIndex = ordering.Append(s.partitionIndexes(task.GroupID, false))
	s.tasks = append(s.tasks, task)
	sortTasks(s.tasks)
	s.mu.Unlock()

	canonical, err := s.gateway.InsertTask(ctx, &task)
	if err != nil {
		s.rollback(ctx, "add task", err)
		return nil, fmt.Errorf("%w: insert task: %v", entities.ErrPersistence, err)
	}
	s.mergeTask(canonical)

	for i, title := range generated {
		sub := entities.Subtask{
			ID:         uuid.New(),
			TaskID:     canonical.ID,
			Title:      title,
			OrderIndex: int64(i+1) * ordering.Gap,
			CreatedAt:  time.Now(),
		}
		row, err := s.gateway.InsertSubtask(ctx, &sub)
		if err != nil {
			s.logger.WithError(err).Warnw("Failed to persist generated subtask", "task_id", canonical.ID, "title", title)
			continue
		}
		s.mergeSubtask(row)
	}

	s.pushSuccessToast("Task added")
	s.logger.Infow("Task created", "task_id", canonical.ID, "title", canonical.Title)

	created, _ := s.TaskByID(canonical.ID)
	return &created, nil
}

// UpdateTask merges the given fields locally and persists only them.
// Fields absent from the patch are never overwritten.
func (s *Store) UpdateTask(ctx context.Context, id uuid.UUID, patch ports.TaskPatch) error {
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
	idx := s.taskIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return entities.ErrTaskNotFound
	}
	applyTaskPatch(&s.tasks[idx], patch)
	sortTasks(s.tasks)
	s.mu.Unlock()

	canonical, err := s.gateway.UpdateTask(ctx, id, patch)
	if err != nil {
		s.rollback(ctx, "update task", err)
		return fmt.Errorf("%w: update task: %v", entities.ErrPersistence, err)
	}
	s.mergeTask(canonical)
	s.pushSuccessToast("Task updated")
	return nil
}

// DeleteTask removes the task locally and issues the delete.
func (s *Store) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.taskIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return entities.ErrTaskNotFound
	}
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	s.mu.Unlock()

	if err := s.gateway.DeleteTask(ctx, id); err != nil {
		s.rollback(ctx, "delete task", err)
		return fmt.Errorf("%w: delete task: %v", entities.ErrPersistence, err)
	}
	s.pushSuccessToast("Task deleted")
	s.logger.Infow("Task deleted", "task_id", id)
	return nil
}

// ToggleTaskComplete flips the completion flag. Completing a task invokes
// the backend completion routine, which owns points, leveling, streaks and
// achievement unlocks; its returned settings are merged back here.
func (s *Store) ToggleTaskComplete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.taskIndex(id)
	if idx < 0 {
		s.mu.Unlock()
		return entities.ErrTaskNotFound
	}
	s.tasks[idx].IsCompleted = !s.tasks[idx].IsCompleted
	nowCompleted := s.tasks[idx].IsCompleted
	prevLevel := s.settings.Level
	s.mu.Unlock()

	if !nowCompleted {
		completed := false
		canonical, err := s.gateway.UpdateTask(ctx, id, ports.TaskPatch{IsCompleted: &completed})
		if err != nil {
			s.rollback(ctx, "reopen task", err)
			return fmt.Errorf("%w: reopen task: %v", entities.ErrPersistence, err)
		}
		s.mergeTask(canonical)
		return nil
	}

	updated, err := s.gateway.CompleteTask(ctx, id)
	if err != nil {
		// The optimistic flag stays; the next refetch restores true state.
		// The award call is never retried, so points cannot double.
		s.pushErrorToast("complete task failed")
		s.logger.WithError(err).Errorw("Completion routine failed", "task_id", id)
		return fmt.Errorf("%w: complete task: %v", entities.ErrPersistence, err)
	}

	s.mu.Lock()
	s.settings = *updated
	s.mu.Unlock()

	if updated.Level > prevLevel {
		s.pushLevelUp(updated.Level)
	}
	s.checkNewUnlocks(ctx)

	s.logger.Infow("Task completed", "task_id", id, "aura_points", updated.AuraPoints, "level", updated.Level)
	return nil
}

// ReorderTasks re-spaces the whole visible sequence after a drag ends:
// every task in ids gets (position+1)*Gap, optimistically, then the batch
// is persisted.
func (s *Store) ReorderTasks(ctx context.Context, ids []uuid.UUID) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}

	keys := ordering.Respace(len(ids))
	updates := make([]ports.OrderUpdate, 0, len(ids))

	s.mu.Lock()
	for i, id := range ids {
		idx := s.taskIndex(id)
		if idx < 0 {
			continue
		}
		s.tasks[idx].OrderIndex = keys[i]
		updates = append(updates, ports.OrderUpdate{ID: id, OrderIndex: keys[i]})
	}
	sortTasks(s.tasks)
	s.mu.Unlock()

	if err := s.gateway.BatchUpdateOrder(ctx, updates); err != nil {
		s.rollback(ctx, "reorder tasks", err)
		return fmt.Errorf("%w: reorder tasks: %v", entities.ErrPersistence, err)
	}
	return nil
}

// MoveTaskToGroup reassigns the group reference and places the task at the
// end of the destination group's open-task order.
func (s *Store) MoveTaskToGroup(ctx context.Context, taskID uuid.UUID, groupID *uuid.UUID) error {
	if _, err := s.requireIdentity(); err != nil {
		return err
	}

	s.mu.Lock()
	idx := s.taskIndex(taskID)
	if idx < 0 {
		s.mu.Unlock()
		return entities.ErrTaskNotFound
	}
	order := ordering.Append(s.partitionIndexes(groupID, false))
	s.tasks[idx].GroupID = groupID
	s.tasks[idx].OrderIndex = order
	sortTasks(s.tasks)
	s.mu.Unlock()

	patch := ports.TaskPatch{GroupID: &groupID, OrderIndex: &order}
	canonical, err := s.gateway.UpdateTask(ctx, taskID, patch)
	if err != nil {
		s.rollback(ctx, "move task", err)
		return fmt.Errorf("%w: move task: %v", entities.ErrPersistence, err)
	}
	s.mergeTask(canonical)
	return nil
}

// mergeTask replaces the local row with the server-canonical one, keeping
// locally-known subtasks and tags when the canonical row has none loaded.
func (s *Store) mergeTask(row *entities.Task) {
	if row == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.taskIndex(row.ID)
	merged := *row
	if idx >= 0 {
		if merged.Subtasks == nil {
			merged.Subtasks = s.tasks[idx].Subtasks
		}
		if merged.Tags == nil {
			merged.Tags = s.tasks[idx].Tags
		}
		s.tasks[idx] = merged
	} else {
		if merged.Tags == nil {
			merged.Tags = []entities.Tag{}
		}
		s.tasks = append(s.tasks, merged)
	}
	sortTasks(s.tasks)
}

// taskIndex must be called with the lock held.
func (s *Store) taskIndex(id uuid.UUID) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// partitionIndexes must be called with the lock held. It collects order
// keys within one (group, completion-status) partition.
func (s *Store) partitionIndexes(groupID *uuid.UUID, completed bool) []int64 {
	var out []int64
	for i := range s.tasks {
		if s.tasks[i].IsCompleted != completed {
			continue
		}
		if !sameGroup(s.tasks[i].GroupID, groupID) {
			continue
		}
		out = append(out, s.tasks[i].OrderIndex)
	}
	return out
}

func sameGroup(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func applyTaskPatch(t *entities.Task, p ports.TaskPatch) {
	if p.GroupID != nil {
		t.GroupID = *p.GroupID
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = p.Description
	}
	if p.IsCompleted != nil {
		t.IsCompleted = *p.IsCompleted
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.AISpeedScore != nil {
		t.AISpeedScore = p.AISpeedScore
	}
	if p.AIImportanceScore != nil {
		t.AIImportanceScore = p.AIImportanceScore
	}
	if p.SpeedTag != nil {
		t.SpeedTag = p.SpeedTag
	}
	if p.ImportanceTag != nil {
		t.ImportanceTag = p.ImportanceTag
	}
	if p.Emoji != nil {
		t.Emoji = p.Emoji
	}
	if p.AIGenerated != nil {
		t.AIGenerated = *p.AIGenerated
	}
	if p.OrderIndex != nil {
		t.OrderIndex = *p.OrderIndex
	}
	t.UpdatedAt = time.Now()
}

func mergeEnrichment(t *entities.Task, e *ports.Enrichment) {
	if e == nil {
		return
	}
	if e.SpeedScore != nil && entities.ValidateScore(*e.SpeedScore) == nil {
		t.AISpeedScore = e.SpeedScore
	}
	if e.ImportanceScore != nil && entities.ValidateScore(*e.ImportanceScore) == nil {
		t.AIImportanceScore = e.ImportanceScore
	}
	if e.SpeedTag != nil {
		t.SpeedTag = e.SpeedTag
	}
	if e.ImportanceTag != nil {
		t.ImportanceTag = e.ImportanceTag
	}
	if e.Emoji != nil {
		t.Emoji = e.Emoji
	}
	t.AIGenerated = e.AIGenerated
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
