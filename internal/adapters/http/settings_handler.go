package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/auratask/core/internal/infrastructure/logger"
	"github.com/auratask/core/internal/ports"
)

// SettingsHandler handles settings and achievement reads.
type SettingsHandler struct {
	sessions     *Sessions
	achievements ports.AchievementStore
	logger       *logger.Logger
}

// NewSettingsHandler creates the settings handler.
func NewSettingsHandler(sessions *Sessions, achievements ports.AchievementStore, log *logger.Logger) *SettingsHandler {
	return &SettingsHandler{sessions: sessions, achievements: achievements, logger: log}
}

// GetSettings returns the caller's settings row.
func (h *SettingsHandler) GetSettings(c echo.Context) error {
	s, err := h.sessions.Get(c.Request().Context(), identityFromContext(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s.Settings())
}

// UpdateSettings applies a partial settings edit.
func (h *SettingsHandler) UpdateSettings(c echo.Context) error {
	var req UpdateSettingsRequest
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
	if err := s.UpdateSettings(c.Request().Context(), req.toPatch()); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, s.Settings())
}

// ListAchievements returns the catalog and the caller's unlocks.
func (h *SettingsHandler) ListAchievements(c echo.Context) error {
	ctx := c.Request().Context()

	catalog, err := h.achievements.ListAchievements(ctx)
	if err != nil {
		return mapError(err)
	}
	unlocked, err := h.achievements.ListUnlocked(ctx, identityFromContext(c))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, AchievementsResponse{
		Achievements: catalog,
		Unlocked:     unlocked,
	})
}
