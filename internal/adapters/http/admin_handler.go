package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/auratask/core/internal/infrastructure/logger"
	"github.com/auratask/core/internal/ports"
)

// AdminHandler manages the analyzer key pool and usage analytics.
// Routes using it sit behind the admin token middleware.
type AdminHandler struct {
	keys   ports.KeyRepository
	logger *logger.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(keys ports.KeyRepository, log *logger.Logger) *AdminHandler {
	return &AdminHandler{keys: keys, logger: log}
}

// ListKeys returns every pooled analyzer key.
func (h *AdminHandler) ListKeys(c echo.Context) error {
	keys, err := h.keys.ListKeys(c.Request().Context())
	if err != nil {
		h.logger.WithError(err).Errorw("List keys failed")
		return mapError(err)
	}
	return c.JSON(http.StatusOK, keys)
}

// CreateKey adds a credential to the pool.
func (h *AdminHandler) CreateKey(c echo.Context) error {
	var req CreateKeyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	key, err := h.keys.CreateKey(c.Request().Context(), req.Label, req.Key)
	if err != nil {
		h.logger.WithError(err).Errorw("Create key failed")
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, key)
}

// ToggleKey enables or disables a pooled key.
func (h *AdminHandler) ToggleKey(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	var req ToggleKeyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := h.keys.SetKeyEnabled(c.Request().Context(), id, req.Enabled); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Key updated"})
}

// DeleteKey removes a credential from the pool.
func (h *AdminHandler) DeleteKey(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	if err := h.keys.DeleteKey(c.Request().Context(), id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UsageStats returns per-day activity over the trailing window.
// Defaults to 30 days; ?days=N overrides up to 365.
func (h *AdminHandler) UsageStats(c echo.Context) error {
	days := 30
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid days parameter")
		}
		days = parsed
	}

	stats, err := h.keys.UsageStats(c.Request().Context(), days)
	if err != nil {
		h.logger.WithError(err).Errorw("Usage stats failed")
		return mapError(err)
	}
	return c.JSON(http.StatusOK, stats)
}
