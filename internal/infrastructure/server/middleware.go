package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	httpHandlers "github.com/auratask/core/internal/adapters/http"
)

// authMiddleware validates session tokens and puts the identity id on
// the request context.
func (s *Server) authMiddleware(tokens httpHandlers.TokenAuthority) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			userID, err := tokens.VerifyToken(tokenString)
			if err != nil {
				s.logger.Warnw("Invalid token", "error", err, "ip", c.RealIP())
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.Set(httpHandlers.IdentityContextKey, userID)
			return next(c)
		}
	}
}

// adminMiddleware gates the key pool and analytics routes behind the
// static admin token. A blank configured token disables the surface.
func (s *Server) adminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			configured := s.config.Security.AdminToken
			if configured == "" {
				return echo.NewHTTPError(http.StatusForbidden, "Admin surface disabled")
			}

			provided := c.Request().Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) != 1 {
				s.logger.Warnw("Admin token rejected", "ip", c.RealIP())
				return echo.NewHTTPError(http.StatusForbidden, "Invalid admin token")
			}
			return next(c)
		}
	}
}
