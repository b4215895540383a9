// Package http exposes the task store over an echo REST surface. Each
// authenticated identity gets its own store session; handlers translate
// between JSON payloads and store operations.
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/ports"
)

// Request types

type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type MigrateRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type CreateTaskRequest struct {
	Title            string     `json:"title" validate:"required"`
	Description      *string    `json:"description"`
	GroupID          *uuid.UUID `json:"group_id"`
	DueDate          *time.Time `json:"due_date"`
	EnableAIRanking  bool       `json:"enable_ai_ranking"`
	EnableAISubtasks bool       `json:"enable_ai_subtasks"`
}

// UpdateTaskRequest distinguishes absent fields from explicit nulls for
// group_id and due_date with a double pointer on the patch side.
type UpdateTaskRequest struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	GroupID       *uuid.UUID `json:"group_id"`
	ClearGroup    bool       `json:"clear_group"`
	DueDate       *time.Time `json:"due_date"`
	ClearDueDate  bool       `json:"clear_due_date"`
	Emoji         *string    `json:"emoji"`
	SpeedTag      *string    `json:"speed_tag"`
	ImportanceTag *string    `json:"importance_tag"`
}

func (r UpdateTaskRequest) toPatch() ports.TaskPatch {
	patch := ports.TaskPatch{
		Title:         r.Title,
		Description:   r.Description,
		Emoji:         r.Emoji,
		SpeedTag:      r.SpeedTag,
		ImportanceTag: r.ImportanceTag,
	}
	if r.ClearGroup {
		var null *uuid.UUID
		patch.GroupID = &null
	} else if r.GroupID != nil {
		patch.GroupID = &r.GroupID
	}
	if r.ClearDueDate {
		var null *time.Time
		patch.DueDate = &null
	} else if r.DueDate != nil {
		patch.DueDate = &r.DueDate
	}
	return patch
}

type ReorderRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1"`
}

type MoveTaskRequest struct {
	GroupID *uuid.UUID `json:"group_id"`
}

type CreateSubtaskRequest struct {
	Title string `json:"title" validate:"required"`
}

type UpdateSubtaskRequest struct {
	Title *string `json:"title"`
}

type CreateGroupRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

type RenameGroupRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

type CreateTagRequest struct {
	Name  string            `json:"name" validate:"required"`
	Color entities.TagColor `json:"color" validate:"required"`
}

type UpdateTagRequest struct {
	Name  *string            `json:"name"`
	Color *entities.TagColor `json:"color"`
}

type UpdateSettingsRequest struct {
	Username         *string         `json:"username"`
	AnalyzerAPIKey   *string         `json:"analyzer_api_key"`
	SpeedWeight      *int            `json:"speed_weight" validate:"omitempty,min=0,max=100"`
	ImportanceWeight *int            `json:"importance_weight" validate:"omitempty,min=0,max=100"`
	Theme            *entities.Theme `json:"theme"`
	HapticFeedback   *bool           `json:"haptic_feedback"`
	AutoRanking      *bool           `json:"auto_ranking"`
	AutoSubtasks     *bool           `json:"auto_subtasks"`
}

func (r UpdateSettingsRequest) toPatch() ports.SettingsPatch {
	return ports.SettingsPatch{
		Username:         r.Username,
		AnalyzerAPIKey:   r.AnalyzerAPIKey,
		SpeedWeight:      r.SpeedWeight,
		ImportanceWeight: r.ImportanceWeight,
		Theme:            r.Theme,
		HapticFeedback:   r.HapticFeedback,
		AutoRanking:      r.AutoRanking,
		AutoSubtasks:     r.AutoSubtasks,
	}
}

type CreateKeyRequest struct {
	Label string `json:"label" validate:"required"`
	Key   string `json:"key" validate:"required"`
}

type ToggleKeyRequest struct {
	Enabled bool `json:"enabled"`
}

// Response types

type AuthResponse struct {
	User  *entities.User `json:"user"`
	Token string         `json:"token"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type StateResponse struct {
	Tasks    []entities.Task       `json:"tasks"`
	Groups   []entities.TaskGroup  `json:"groups"`
	Tags     []entities.Tag        `json:"tags"`
	Settings entities.UserSettings `json:"settings"`
}

type AchievementsResponse struct {
	Achievements []entities.Achievement     `json:"achievements"`
	Unlocked     []entities.UserAchievement `json:"unlocked"`
}

// mapError translates the domain error taxonomy to HTTP status codes.
func mapError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, entities.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, entities.ErrTaskNotFound),
		errors.Is(err, entities.ErrSubtaskNotFound),
		errors.Is(err, entities.ErrGroupNotFound),
		errors.Is(err, entities.ErrTagNotFound),
		errors.Is(err, entities.ErrSettingsNotFound),
		errors.Is(err, entities.ErrAchievementNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrEnrichment):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// IdentityContextKey is set by the auth middleware after token checks.
const IdentityContextKey = "identity_id"

func identityFromContext(c echo.Context) uuid.UUID {
	if id, ok := c.Get(IdentityContextKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func parseIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
