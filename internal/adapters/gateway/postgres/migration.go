package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// MigrateGuest re-owns every row of the guest identity under the
// authenticated one, then retires the guest user. One transaction: either
// all data moves or none does.
func (g *Gateway) MigrateGuest(ctx context.Context, guestID, userID uuid.UUID) error {
	err := g.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		for _, table := range []string{"tasks", "task_groups", "tags"} {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s SET user_id = $1 WHERE user_id = $2`, table),
				userID, guestID); err != nil {
				return fmt.Errorf("re-own %s: %w", table, err)
			}
		}

		// Settings merge: the guest row only wins where the user has none.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_settings (id, username, analyzer_api_key, aura_points, level,
				speed_weight, importance_weight, theme, haptic_feedback,
				auto_ranking, auto_subtasks, streak, last_completed_at)
			SELECT $1, username, analyzer_api_key, aura_points, level,
				speed_weight, importance_weight, theme, haptic_feedback,
				auto_ranking, auto_subtasks, streak, last_completed_at
			FROM user_settings WHERE id = $2
			ON CONFLICT (id) DO NOTHING`, userID, guestID); err != nil {
			return fmt.Errorf("migrate settings: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_achievements (user_id, achievement_id, unlocked_at)
			SELECT $1, achievement_id, unlocked_at FROM user_achievements WHERE user_id = $2
			ON CONFLICT (user_id, achievement_id) DO NOTHING`, userID, guestID); err != nil {
			return fmt.Errorf("migrate achievements: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM user_achievements WHERE user_id = $1`, guestID); err != nil {
			return fmt.Errorf("drop guest achievements: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM user_settings WHERE id = $1`, guestID); err != nil {
			return fmt.Errorf("drop guest settings: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET deleted_at = now() WHERE id = $1 AND is_anonymous`, guestID); err != nil {
			return fmt.Errorf("retire guest user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	g.logger.Infow("Guest data migrated", "guest_id", guestID, "user_id", userID)
	return nil
}
