package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/auratask/core/internal/infrastructure/logger"
)

// GroupHandler handles task group requests.
type GroupHandler struct {
	sessions *Sessions
	logger   *logger.Logger
}

// NewGroupHandler creates the group handler.
func NewGroupHandler(sessions *Sessions, log *logger.Logger) *GroupHandler {
	return &GroupHandler{sessions: sessions, logger: log}
}

// ListGroups returns the caller's groups in display order.
func (h *GroupHandler) ListGroups(c echo.Context) error {
	s, err := h.sessions.Get(c.Request().Context(), identityFromContext(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s.Groups())
}

// CreateGroup adds a group at the end of the list.
func (h *GroupHandler) CreateGroup(c echo.Context) error {
	var req CreateGroupRequest
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
	group, err := s.AddGroup(c.Request().Context(), req.Name)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, group)
}

// RenameGroup changes a group's name.
func (h *GroupHandler) RenameGroup(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req RenameGroupRequest
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
	if err := s.RenameGroup(c.Request().Context(), id, req.Name); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Group renamed"})
}

// DeleteGroup removes a group; its tasks become ungrouped.
func (h *GroupHandler) DeleteGroup(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	s, err := h.sessions.Get(c.Request().Context(), identityFromContext(c))
	if err != nil {
		return mapError(err)
	}
	if err := s.DeleteGroup(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ReorderGroups rewrites group positions in list order.
func (h *GroupHandler) ReorderGroups(c echo.Context) error {
	var req ReorderRequest
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
	if err := s.ReorderGroups(c.Request().Context(), req.IDs); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s.Groups())
}
