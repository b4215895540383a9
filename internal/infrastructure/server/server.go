package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/auratask/core/internal/adapters/analyzer"
	"github.com/auratask/core/internal/adapters/gateway/postgres"
	httpHandlers "github.com/auratask/core/internal/adapters/http"
	"github.com/auratask/core/internal/adapters/localdb"
	"github.com/auratask/core/internal/infrastructure/config"
	"github.com/auratask/core/internal/infrastructure/database"
	"github.com/auratask/core/internal/infrastructure/logger"
)

// Server represents the HTTP server
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger *logger.Logger
	db     *database.DB
	local  *localdb.Store
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance
func New(cfg *config.Config, db *database.DB, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()

	e.Validator = &CustomValidator{validator: validator.New()}
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	// Wire the gateway, analyzer and local store
	gateway := postgres.New(db, cfg.JWT, appLogger.WithComponent("gateway"))
	analyzerLogger := appLogger.WithComponent("analyzer")
	keyPool := analyzer.NewKeyPool(cfg.Analyzer, gateway, analyzerLogger)
	analyzerClient := analyzer.NewClient(cfg.Analyzer, keyPool, analyzerLogger)

	local, err := localdb.Open(cfg.LocalStore.Path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	sessions := httpHandlers.NewSessions(gateway, analyzerClient, local, appLogger.WithComponent("store"))

	// Initialize handlers
	authHandler := httpHandlers.NewAuthHandler(gateway, gateway, sessions, appLogger)
	taskHandler := httpHandlers.NewTaskHandler(sessions, appLogger)
	groupHandler := httpHandlers.NewGroupHandler(sessions, appLogger)
	tagHandler := httpHandlers.NewTagHandler(sessions, appLogger)
	settingsHandler := httpHandlers.NewSettingsHandler(sessions, gateway, appLogger)
	adminHandler := httpHandlers.NewAdminHandler(gateway, appLogger)

	server := &Server{
		echo:   e,
		config: cfg,
		logger: appLogger,
		db:     db,
		local:  local,
	}

	server.setupMiddleware()
	server.setupRoutes(authHandler, taskHandler, groupHandler, tagHandler, settingsHandler, adminHandler, gateway)

	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}

	return server, nil
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			fields := []interface{}{
				"method", values.Method,
				"uri", values.URI,
				"status", values.Status,
				"latency_ms", float64(values.Latency.Nanoseconds()) / 1000000,
				"remote_ip", values.RemoteIP,
				"user_agent", values.UserAgent,
			}

			if values.Error != nil {
				fields = append(fields, "error", values.Error.Error())
				s.logger.Errorw("HTTP request failed", fields...)
			} else {
				s.logger.Infow("HTTP request", fields...)
			}

			return nil
		},
	}))

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.PATCH, echo.POST, echo.DELETE},
	}))

	s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(s.config.Security.RateLimitRequests), Burst: s.config.Security.RateLimitRequests, ExpiresIn: s.config.Security.RateLimitWindow},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, map[string]string{"message": "rate limit exceeded"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"message": "rate limit exceeded"})
		},
	}))

	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
	}))

	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(
	authHandler *httpHandlers.AuthHandler,
	taskHandler *httpHandlers.TaskHandler,
	groupHandler *httpHandlers.GroupHandler,
	tagHandler *httpHandlers.TagHandler,
	settingsHandler *httpHandlers.SettingsHandler,
	adminHandler *httpHandlers.AdminHandler,
	tokens httpHandlers.TokenAuthority,
) {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	v1 := s.echo.Group("/api/v1")
	authRequired := s.authMiddleware(tokens)

	// Auth routes
	authGroup := v1.Group("/auth")
	authGroup.POST("/anonymous", authHandler.SignInAnonymously)
	authGroup.POST("/signup", authHandler.SignUp)
	authGroup.POST("/signin", authHandler.SignIn)
	authGroup.POST("/signout", authHandler.SignOut, authRequired)
	authGroup.POST("/migrate", authHandler.Migrate, authRequired)

	// Full state snapshot
	v1.GET("/state", taskHandler.State, authRequired)

	// Task routes
	taskGroup := v1.Group("/tasks", authRequired)
	taskGroup.POST("", taskHandler.CreateTask)
	taskGroup.POST("/reorder", taskHandler.ReorderTasks)
	taskGroup.GET("/:id", taskHandler.GetTask)
	taskGroup.PATCH("/:id", taskHandler.UpdateTask)
	taskGroup.DELETE("/:id", taskHandler.DeleteTask)
	taskGroup.POST("/:id/toggle", taskHandler.ToggleTask)
	taskGroup.POST("/:id/move", taskHandler.MoveTask)
	taskGroup.POST("/:id/subtasks", taskHandler.CreateSubtask)
	taskGroup.PATCH("/:id/subtasks/:subtaskId", taskHandler.UpdateSubtask)
	taskGroup.DELETE("/:id/subtasks/:subtaskId", taskHandler.DeleteSubtask)
	taskGroup.POST("/:id/subtasks/:subtaskId/toggle", taskHandler.ToggleSubtask)

	// Group routes
	groupGroup := v1.Group("/groups", authRequired)
	groupGroup.GET("", groupHandler.ListGroups)
	groupGroup.POST("", groupHandler.CreateGroup)
	groupGroup.POST("/reorder", groupHandler.ReorderGroups)
	groupGroup.PATCH("/:id", groupHandler.RenameGroup)
	groupGroup.DELETE("/:id", groupHandler.DeleteGroup)

	// Tag routes
	tagGroup := v1.Group("/tags", authRequired)
	tagGroup.GET("", tagHandler.ListTags)
	tagGroup.POST("", tagHandler.CreateTag)
	tagGroup.PATCH("/:id", tagHandler.UpdateTag)
	tagGroup.DELETE("/:id", tagHandler.DeleteTag)
	tagGroup.POST("/:id/tasks/:taskId", tagHandler.TagTask)
	tagGroup.DELETE("/:id/tasks/:taskId", tagHandler.UntagTask)

	// Settings and achievements
	v1.GET("/settings", settingsHandler.GetSettings, authRequired)
	v1.PATCH("/settings", settingsHandler.UpdateSettings, authRequired)
	v1.GET("/achievements", settingsHandler.ListAchievements, authRequired)

	// Admin routes
	adminGroup := v1.Group("/admin", s.adminMiddleware())
	adminGroup.GET("/keys", adminHandler.ListKeys)
	adminGroup.POST("/keys", adminHandler.CreateKey)
	adminGroup.PATCH("/keys/:id", adminHandler.ToggleKey)
	adminGroup.DELETE("/keys/:id", adminHandler.DeleteKey)
	adminGroup.GET("/usage", adminHandler.UsageStats)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	registry.MustRegister(requestsTotal, requestDuration)

	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start)
			status := c.Response().Status

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(duration.Seconds())

			return err
		}
	})

	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) readinessCheck(c echo.Context) error {
	if err := s.db.HealthCheck(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")
	if err := s.local.Close(); err != nil {
		s.logger.WithError(err).Warnw("Local store close failed")
	}
	return s.echo.Shutdown(ctx)
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		var httpErr *echo.HTTPError
		var validationErrs validator.ValidationErrors
		switch {
		case errors.As(err, &httpErr):
			code = httpErr.Code
			msg = httpErr.Message
			if httpErr.Internal != nil {
				err = fmt.Errorf("%v, %v", err, httpErr.Internal)
			}
		case errors.As(err, &validationErrs):
			code = http.StatusBadRequest
			msg = map[string]string{"message": "validation failed", "details": validationErrs.Error()}
		default:
			msg = map[string]string{"message": http.StatusText(code)}
		}

		if code == http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		if !c.Response().Committed {
			if c.Request().Method == echo.HEAD {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err)
			}
		}
	}
}
