package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/auratask/core/internal/domain/entities"
)

// Point award and leveling rules. These are backend-owned; clients only
// see the resulting settings row.
const (
	taskCompletionBasePoints = 10
	pointsPerLevel           = 1000
)

// Achievement codes checked by the completion routine.
const (
	achFirstTask    = "first_task"
	achTenTasks     = "ten_tasks"
	achHundredTasks = "hundred_tasks"
	achLevelFive    = "level_five"
	achWeekStreak   = "week_streak"
)

// CompleteTask is the server-side completion routine: it marks the task
// complete, awards points weighted by the AI importance score, recomputes
// the level and streak, and unlocks any achievements whose condition now
// holds. Unlocks are at-most-once; their reward points are additive.
func (g *Gateway) CompleteTask(ctx context.Context, taskID uuid.UUID) (*entities.UserSettings, error) {
	var settings entities.UserSettings

	err := g.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var task entities.Task
		err := tx.GetContext(ctx, &task, `
			UPDATE tasks SET is_completed = TRUE, updated_at = now()
			WHERE id = $1
			RETURNING `+taskColumns, taskID)
		if err != nil {
			return fmt.Errorf("mark task complete: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_settings (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, task.UserID); err != nil {
			return fmt.Errorf("ensure settings row: %w", err)
		}

		var current entities.UserSettings
		if err := tx.GetContext(ctx, &current,
			`SELECT `+settingsColumns+` FROM user_settings WHERE id = $1 FOR UPDATE`, task.UserID); err != nil {
			return fmt.Errorf("lock settings row: %w", err)
		}

		award := taskCompletionBasePoints
		if task.AIImportanceScore != nil {
			award += *task.AIImportanceScore
		}
		points := current.AuraPoints + award
		streak := nextStreak(current.Streak, current.LastCompletedAt, time.Now())

		var completedCount int
		if err := tx.GetContext(ctx, &completedCount,
			`SELECT COUNT(*) FROM tasks WHERE user_id = $1 AND is_completed`, task.UserID); err != nil {
			return fmt.Errorf("count completed tasks: %w", err)
		}

		level := 1 + points/pointsPerLevel

		var codes []string
		if completedCount >= 1 {
			codes = append(codes, achFirstTask)
		}
		if completedCount >= 10 {
			codes = append(codes, achTenTasks)
		}
		if completedCount >= 100 {
			codes = append(codes, achHundredTasks)
		}
		if level >= 5 {
			codes = append(codes, achLevelFive)
		}
		if streak >= 7 {
			codes = append(codes, achWeekStreak)
		}

		for _, code := range codes {
			var reward int
			err := tx.GetContext(ctx, &reward, `
				INSERT INTO user_achievements (user_id, achievement_id)
				SELECT $1, id FROM achievements WHERE code = $2
				ON CONFLICT (user_id, achievement_id) DO NOTHING
				RETURNING (SELECT reward_points FROM achievements WHERE code = $2)`,
				task.UserID, code)
			if errors.Is(err, sql.ErrNoRows) {
				// The unlock already existed; the conflict swallowed the row.
				continue
			}
			if err != nil {
				return fmt.Errorf("unlock achievement %s: %w", code, err)
			}
			points += reward
		}

		// Reward points may have pushed the level again.
		level = 1 + points/pointsPerLevel

		err = tx.GetContext(ctx, &settings, `
			UPDATE user_settings
			SET aura_points = $2, level = $3, streak = $4, last_completed_at = now()
			WHERE id = $1
			RETURNING `+settingsColumns, task.UserID, points, level, streak)
		if err != nil {
			return fmt.Errorf("update settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// nextStreak extends the streak when the previous completion was yesterday,
// keeps it for a same-day completion, and resets it otherwise.
func nextStreak(current int, last *time.Time, now time.Time) int {
	if last == nil {
		return 1
	}
	lastDay := last.Truncate(24 * time.Hour)
	today := now.Truncate(24 * time.Hour)
	switch today.Sub(lastDay) {
	case 0:
		if current == 0 {
			return 1
		}
		return current
	case 24 * time.Hour:
		return current + 1
	default:
		return 1
	}
}
