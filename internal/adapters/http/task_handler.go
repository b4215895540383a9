package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/auratask/core/internal/application/store"
	"github.com/auratask/core/internal/infrastructure/logger"
	"github.com/auratask/core/internal/ports"
)

// TaskHandler handles task and subtask requests.
type TaskHandler struct {
	sessions *Sessions
	logger   *logger.Logger
}

// NewTaskHandler creates the task handler.
func NewTaskHandler(sessions *Sessions, log *logger.Logger) *TaskHandler {
	return &TaskHandler{sessions: sessions, logger: log}
}

func (h *TaskHandler) session(c echo.Context) (*store.Store, error) {
	s, err := h.sessions.Get(c.Request().Context(), identityFromContext(c))
	if err != nil {
		return nil, mapError(err)
	}
	return s, nil
}

// State returns the caller's full task state in one payload.
func (h *TaskHandler) State(c echo.Context) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StateResponse{
		Tasks:    s.Tasks(),
		Groups:   s.Groups(),
		Tags:     s.Tags(),
		Settings: s.Settings(),
	})
}

// CreateTask adds a task, running analyzer enrichment when enabled.
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s, err := h.session(c)
	if err != nil {
		return err
	}
	task, err := s.AddTask(c.Request().Context(), store.TaskDraft{
		Title:            req.Title,
		Description:      req.Description,
		GroupID:          req.GroupID,
		DueDate:          req.DueDate,
		EnableAIRanking:  req.EnableAIRanking,
		EnableAISubtasks: req.EnableAISubtasks,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, task)
}

// GetTask returns one task with its subtasks and tags.
func (h *TaskHandler) GetTask(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	s, err := h.session(c)
	if err != nil {
		return err
	}
	task, ok := s.TaskByID(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	}
	return c.JSON(http.StatusOK, task)
}

// UpdateTask applies a partial edit to a task.
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.UpdateTask(c.Request().Context(), id, req.toPatch()); err != nil {
		return mapError(err)
	}
	task, _ := s.TaskByID(id)
	return c.JSON(http.StatusOK, task)
}

// DeleteTask removes a task and its subtasks.
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.DeleteTask(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ToggleTask flips completion. Completing runs the server-side reward
// routine; the response carries the notices raised by it.
func (h *TaskHandler) ToggleTask(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.ToggleTaskComplete(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	task, _ := s.TaskByID(id)
	return c.JSON(http.StatusOK, echo.Map{
		"task":     task,
		"settings": s.Settings(),
		"notices":  s.Notices(),
	})
}

// ReorderTasks re-spaces the given tasks in list order.
func (h *TaskHandler) ReorderTasks(c echo.Context) error {
	var req ReorderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.ReorderTasks(c.Request().Context(), req.IDs); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s.Tasks())
}

// MoveTask moves a task to another group, appending at the end.
func (h *TaskHandler) MoveTask(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req MoveTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.MoveTaskToGroup(c.Request().Context(), id, req.GroupID); err != nil {
		return mapError(err)
	}
	task, _ := s.TaskByID(id)
	return c.JSON(http.StatusOK, task)
}

// CreateSubtask appends a subtask under a task.
func (h *TaskHandler) CreateSubtask(c echo.Context) error {
	taskID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req CreateSubtaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s, err := h.session(c)
	if err != nil {
		return err
	}
	subtask, err := s.AddSubtask(c.Request().Context(), taskID, req.Title)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, subtask)
}

// UpdateSubtask renames a subtask.
func (h *TaskHandler) UpdateSubtask(c echo.Context) error {
	taskID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	subtaskID, err := parseIDParam(c, "subtaskId")
	if err != nil {
		return err
	}
	var req UpdateSubtaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.UpdateSubtask(c.Request().Context(), taskID, subtaskID,
		ports.SubtaskPatch{Title: req.Title}); err != nil {
		return mapError(err)
	}
	task, _ := s.TaskByID(taskID)
	return c.JSON(http.StatusOK, task)
}

// DeleteSubtask removes a subtask.
func (h *TaskHandler) DeleteSubtask(c echo.Context) error {
	taskID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	subtaskID, err := parseIDParam(c, "subtaskId")
	if err != nil {
		return err
	}
	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.DeleteSubtask(c.Request().Context(), taskID, subtaskID); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ToggleSubtask flips subtask completion, awarding the small fixed
// point bonus on completion.
func (h *TaskHandler) ToggleSubtask(c echo.Context) error {
	taskID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	subtaskID, err := parseIDParam(c, "subtaskId")
	if err != nil {
		return err
	}
	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := s.ToggleSubtaskComplete(c.Request().Context(), taskID, subtaskID); err != nil {
		return mapError(err)
	}
	task, _ := s.TaskByID(taskID)
	return c.JSON(http.StatusOK, echo.Map{
		"task":     task,
		"settings": s.Settings(),
	})
}
