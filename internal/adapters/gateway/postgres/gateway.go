// Package postgres implements the backend gateway over PostgreSQL: CRUD
// with owner filters, the completion routine, guest migration and the
// LISTEN/NOTIFY realtime change feed.
package postgres

import (
	"github.com/auratask/core/internal/infrastructure/config"
	"github.com/auratask/core/internal/infrastructure/database"
	"github.com/auratask/core/internal/infrastructure/logger"
)

// Gateway implements ports.Gateway.
type Gateway struct {
	db     *database.DB
	jwtCfg config.JWTConfig
	logger *logger.Logger
	feed   hub
}

// New creates the postgres-backed gateway.
func New(db *database.DB, jwtCfg config.JWTConfig, log *logger.Logger) *Gateway {
	return &Gateway{db: db, jwtCfg: jwtCfg, logger: log}
}
