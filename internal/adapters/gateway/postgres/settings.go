package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/ports"
)

const settingsColumns = `id, username, analyzer_api_key, aura_points, level, speed_weight,
	importance_weight, theme, haptic_feedback, auto_ranking, auto_subtasks,
	streak, last_completed_at, created_at`

func (g *Gateway) GetSettings(ctx context.Context, ownerID uuid.UUID) (*entities.UserSettings, error) {
	query := `SELECT ` + settingsColumns + ` FROM user_settings WHERE id = $1`

	var row entities.UserSettings
	err := g.db.DB.GetContext(ctx, &row, query, ownerID)
	if err != nil {
		if err == sql.ErrNoRows {
			// The row is created lazily on first write; return defaults.
			return &entities.UserSettings{
				ID:               ownerID,
				Level:            1,
				SpeedWeight:      50,
				ImportanceWeight: 50,
				Theme:            entities.ThemeDefault,
				HapticFeedback:   true,
			}, nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &row, nil
}

// UpsertSettings writes only the fields present in the patch, creating the
// row with defaults on first write. Conflict target is the owner id.
func (g *Gateway) UpsertSettings(ctx context.Context, ownerID uuid.UUID, patch ports.SettingsPatch) (*entities.UserSettings, error) {
	sets := []string{}
	args := []interface{}{ownerID}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Username != nil {
		add("username", patch.Username)
	}
	if patch.AnalyzerAPIKey != nil {
		add("analyzer_api_key", patch.AnalyzerAPIKey)
	}
	if patch.AuraPoints != nil {
		add("aura_points", *patch.AuraPoints)
	}
	if patch.SpeedWeight != nil {
		add("speed_weight", *patch.SpeedWeight)
	}
	if patch.ImportanceWeight != nil {
		add("importance_weight", *patch.ImportanceWeight)
	}
	if patch.Theme != nil {
		add("theme", *patch.Theme)
	}
	if patch.HapticFeedback != nil {
		add("haptic_feedback", *patch.HapticFeedback)
	}
	if patch.AutoRanking != nil {
		add("auto_ranking", *patch.AutoRanking)
	}
	if patch.AutoSubtasks != nil {
		add("auto_subtasks", *patch.AutoSubtasks)
	}

	// Create the row lazily, then apply only the patched fields.
	var row entities.UserSettings
	err := g.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_settings (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, ownerID); err != nil {
			return fmt.Errorf("ensure settings row: %w", err)
		}
		query := `SELECT ` + settingsColumns + ` FROM user_settings WHERE id = $1`
		if len(sets) > 0 {
			query = fmt.Sprintf(`UPDATE user_settings SET %s WHERE id = $1 RETURNING %s`,
				strings.Join(sets, ", "), settingsColumns)
		}
		if err := tx.GetContext(ctx, &row, query, args...); err != nil {
			return fmt.Errorf("apply settings patch: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}
