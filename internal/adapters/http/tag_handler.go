package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/auratask/core/internal/infrastructure/logger"
	"github.com/auratask/core/internal/ports"
)

// TagHandler handles tag requests, including task assignments.
type TagHandler struct {
	sessions *Sessions
	logger   *logger.Logger
}

// NewTagHandler creates the tag handler.
func NewTagHandler(sessions *Sessions, log *logger.Logger) *TagHandler {
	return &TagHandler{sessions: sessions, logger: log}
}

// ListTags returns the caller's tags.
func (h *TagHandler) ListTags(c echo.Context) error {
	s, err := h.sessions.Get(c.Request().Context(), identityFromContext(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s.Tags())
}

// CreateTag adds a tag with one of the preset colors.
func (h *TagHandler) CreateTag(c echo.Context) error {
	var req CreateTagRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s, err := h.sessions.Get(c.Request().Context(), identityFromContext(c))
	if err != nil {
		return mapError(err)
	}
	tag, err := s.AddTag(c.Request().Context(), req.Name, req.Color)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, tag)
}

// UpdateTag renames or recolors a tag everywhere it appears.
func (h *TagHandler) UpdateTag(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req UpdateTagRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	s, err := h.sessions.Get(c.Request().Context(), identityFromContext(c))
	if err != nil {
		return mapError(err)
	}
	if err := s.UpdateTag(c.Request().Context(), id,
		ports.TagPatch{Name: req.Name, Color: req.Color}); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Tag updated"})
}

// DeleteTag removes a tag from the system and from every task.
func (h *TagHandler) DeleteTag(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	s, err := h.sessions.Get(c.Request().Context(), identityFromContext(c))
	if err != nil {
		return mapError(err)
	}
	if err := s.DeleteTag(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// TagTask attaches a tag to a task.
func (h *TagHandler) TagTask(c echo.Context) error {
	taskID, err := parseIDParam(c, "taskId")
	if err != nil {
		return err
	}
	tagID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	s, err := h.sessions.Get(c.Request().Context(), identityFromContext(c))
	if err != nil {
		return mapError(err)
	}
	if err := s.TagTask(c.Request().Context(), taskID, tagID); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Tag attached"})
}

// UntagTask detaches a tag from a task.
func (h *TagHandler) UntagTask(c echo.Context) error {
	taskID, err := parseIDParam(c, "taskId")
	if err != nil {
		return err
	}
	tagID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	s, err := h.sessions.Get(c.Request().Context(), identityFromContext(c))
	if err != nil {
		return mapError(err)
	}
	if err := s.UntagTask(c.Request().Context(), taskID, tagID); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Tag detached"})
}
