package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/auratask/core/internal/infrastructure/logger"
	"github.com/auratask/core/internal/ports"
)

// AuthHandler handles identity lifecycle requests.
type AuthHandler struct {
	auth     ports.Auth
	tokens   TokenAuthority
	sessions *Sessions
	logger   *logger.Logger
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(auth ports.Auth, tokens TokenAuthority, sessions *Sessions, log *logger.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, tokens: tokens, sessions: sessions, logger: log}
}

// SignInAnonymously creates a guest identity and returns its token.
func (h *AuthHandler) SignInAnonymously(c echo.Context) error {
	user, err := h.auth.SignInAnonymously(c.Request().Context())
	if err != nil {
		h.logger.WithError(err).Errorw("Anonymous sign-in failed")
		return mapError(err)
	}
	token, err := h.tokens.IssueToken(c.Request().Context(), user)
	if err != nil {
		h.logger.WithError(err).Errorw("Token issue failed", "user_id", user.ID)
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, AuthResponse{User: user, Token: token})
}

// SignUp registers an email/password account.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req SignUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.auth.SignUp(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		h.logger.WithError(err).Errorw("Sign-up failed", "email", req.Email)
		return mapError(err)
	}
	token, err := h.tokens.IssueToken(c.Request().Context(), user)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, AuthResponse{User: user, Token: token})
}

// SignIn authenticates an email/password account.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req SignInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.auth.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		h.logger.WithError(err).Warnw("Sign-in failed", "email", req.Email)
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}
	token, err := h.tokens.IssueToken(c.Request().Context(), user)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, AuthResponse{User: user, Token: token})
}

// SignOut revokes the caller's sessions and drops the live store.
func (h *AuthHandler) SignOut(c echo.Context) error {
	userID := identityFromContext(c)

	if err := h.auth.SignOut(c.Request().Context(), userID); err != nil {
		h.logger.WithError(err).Errorw("Sign-out failed", "user_id", userID)
		return mapError(err)
	}
	h.sessions.Drop(userID)
	return c.JSON(http.StatusOK, MessageResponse{Message: "Signed out"})
}

// Migrate upgrades the calling guest to a registered account and moves
// all guest-owned rows under the new identity.
func (h *AuthHandler) Migrate(c echo.Context) error {
	guestID := identityFromContext(c)

	var req MigrateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	guestStore, err := h.sessions.Get(ctx, guestID)
	if err != nil {
		return mapError(err)
	}

	user, err := h.auth.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WithError(err).Errorw("Migration sign-up failed", "guest_id", guestID)
		return mapError(err)
	}

	if err := guestStore.MigrateToUser(ctx, user); err != nil {
		h.logger.WithError(err).Errorw("Guest migration failed", "guest_id", guestID, "user_id", user.ID)
		return mapError(err)
	}
	h.sessions.Drop(guestID)

	token, err := h.tokens.IssueToken(ctx, user)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, AuthResponse{User: user, Token: token})
}
