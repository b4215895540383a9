package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/auratask/core/internal/domain/entities"
)

const keyColumns = `id, label, key, enabled, used_count, created_at`

// ListKeys returns every pooled analyzer key, enabled or not.
func (g *Gateway) ListKeys(ctx context.Context) ([]entities.APIKey, error) {
	query := `SELECT ` + keyColumns + ` FROM api_keys ORDER BY created_at`

	keys := []entities.APIKey{}
	if err := g.db.DB.SelectContext(ctx, &keys, query); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}

// CreateKey adds a credential to the pool, enabled by default.
func (g *Gateway) CreateKey(ctx context.Context, label, key string) (*entities.APIKey, error) {
	query := `INSERT INTO api_keys (id, label, key, enabled)
		VALUES ($1, $2, $3, TRUE) RETURNING ` + keyColumns

	var row entities.APIKey
	if err := g.db.DB.GetContext(ctx, &row, query, uuid.New(), label, key); err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	g.logger.Infow("Analyzer key added to pool", "key_id", row.ID, "label", label)
	return &row, nil
}

// SetKeyEnabled toggles a pooled key without deleting its usage history.
func (g *Gateway) SetKeyEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	res, err := g.db.DB.ExecContext(ctx,
		`UPDATE api_keys SET enabled = $1 WHERE id = $2`, enabled, id)
	if err != nil {
		return fmt.Errorf("toggle api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteKey removes a credential from the pool.
func (g *Gateway) DeleteKey(ctx context.Context, id uuid.UUID) error {
	res, err := g.db.DB.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TouchKey bumps the usage counter for a key drawn from the pool.
func (g *Gateway) TouchKey(ctx context.Context, key string) error {
	if _, err := g.db.DB.ExecContext(ctx,
		`UPDATE api_keys SET used_count = used_count + 1 WHERE key = $1`, key); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

// UsageStats aggregates per-day task and analyzer activity over the
// trailing window for the admin dashboard.
func (g *Gateway) UsageStats(ctx context.Context, days int) ([]entities.UsageStat, error) {
	query := `
		WITH days AS (
			SELECT generate_series(
				date_trunc('day', now()) - ($1 - 1) * interval '1 day',
				date_trunc('day', now()),
				interval '1 day') AS day
		)
		SELECT
			d.day,
			COUNT(t.id) FILTER (WHERE t.created_at >= d.day AND t.created_at < d.day + interval '1 day') AS tasks_created,
			COUNT(t.id) FILTER (WHERE t.is_completed AND t.updated_at >= d.day AND t.updated_at < d.day + interval '1 day') AS tasks_completed,
			COUNT(t.id) FILTER (WHERE t.ai_generated AND t.created_at >= d.day AND t.created_at < d.day + interval '1 day') AS analyzer_calls,
			COUNT(DISTINCT t.user_id) FILTER (WHERE t.updated_at >= d.day AND t.updated_at < d.day + interval '1 day') AS active_users
		FROM days d
		LEFT JOIN tasks t ON TRUE
		GROUP BY d.day
		ORDER BY d.day`

	stats := []entities.UsageStat{}
	if err := g.db.DB.SelectContext(ctx, &stats, query, days); err != nil {
		return nil, fmt.Errorf("usage stats: %w", err)
	}
	return stats, nil
}
