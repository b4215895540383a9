package store

import (
	"strings"

	"github.com/google/uuid"

	"github.com/auratask/core/internal/domain/entities"
)

// Modal identifies which modal, if any, is open.
type Modal string

const (
	ModalNone        Modal = ""
	ModalNewTask     Modal = "new_task"
	ModalEditTask    Modal = "edit_task"
	ModalSettings    Modal = "settings"
	ModalAchievement Modal = "achievements"
)

// UIState is the presentation-facing selection state: active filters, the
// open modal and the current editing target. It never leaves the device.
type UIState struct {
	ActiveGroupID *uuid.UUID
	ShowCompleted bool
	SearchQuery   string
	OpenModal     Modal
	EditingTaskID *uuid.UUID
}

// UI returns a snapshot of the selection state.
func (s *Store) UI() UIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ui
}

// SetActiveGroup filters the task list to one group, or all when nil.
func (s *Store) SetActiveGroup(id *uuid.UUID) {
	s.mu.Lock()
	s.ui.ActiveGroupID = id
	s.mu.Unlock()
}

// SetShowCompleted toggles the archived view and remembers the choice.
func (s *Store) SetShowCompleted(show bool) {
	s.mu.Lock()
	s.ui.ShowCompleted = show
	s.mu.Unlock()
	value := "false"
	if show {
		value = "true"
	}
	if err := s.local.SetPref("show_completed", value); err != nil {
		s.logger.WithError(err).Debugw("Failed to persist show_completed preference")
	}
}

// SetSearchQuery updates the free-text filter.
func (s *Store) SetSearchQuery(q string) {
	s.mu.Lock()
	s.ui.SearchQuery = q
	s.mu.Unlock()
}

// OpenModal opens a modal, closing any other.
func (s *Store) OpenModal(m Modal) {
	s.mu.Lock()
	s.ui.OpenModal = m
	s.mu.Unlock()
}

// CloseModal closes the open modal and clears the editing target.
func (s *Store) CloseModal() {
	s.mu.Lock()
	s.ui.OpenModal = ModalNone
	s.ui.EditingTaskID = nil
	s.mu.Unlock()
}

// SetEditingTask marks a task as the editing target and opens the editor.
func (s *Store) SetEditingTask(id uuid.UUID) {
	s.mu.Lock()
	s.ui.EditingTaskID = &id
	s.ui.OpenModal = ModalEditTask
	s.mu.Unlock()
}

// loadUIPrefs restores persisted UI preferences at initialization.
func (s *Store) loadUIPrefs() {
	if v, ok, err := s.local.GetPref("show_completed"); err == nil && ok {
		s.mu.Lock()
		s.ui.ShowCompleted = v == "true"
		s.mu.Unlock()
	}
}

// VisibleTasks applies the active filters to the task collection.
func (s *Store) VisibleTasks() []entities.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entities.Task
	for _, t := range s.tasks {
		if t.IsCompleted != s.ui.ShowCompleted {
			continue
		}
		if s.ui.ActiveGroupID != nil && !sameGroup(t.GroupID, s.ui.ActiveGroupID) {
			continue
		}
		if s.ui.SearchQuery != "" && !strings.Contains(
			strings.ToLower(t.Title), strings.ToLower(s.ui.SearchQuery)) {
			continue
		}
		out = append(out, t)
	}
	return out
}
