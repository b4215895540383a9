package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/auratask/core/internal/domain/entities"
)

func (g *Gateway) ListAchievements(ctx context.Context) ([]entities.Achievement, error) {
	query := `SELECT id, code, name, description, reward_points, created_at
		FROM achievements ORDER BY reward_points`

	var rows []entities.Achievement
	if err := g.db.DB.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return rows, nil
}

func (g *Gateway) ListUnlocked(ctx context.Context, ownerID uuid.UUID) ([]entities.UserAchievement, error) {
	query := `SELECT user_id, achievement_id, unlocked_at
		FROM user_achievements WHERE user_id = $1 ORDER BY unlocked_at`

	var rows []entities.UserAchievement
	if err := g.db.DB.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("list unlocked achievements: %w", err)
	}
	return rows, nil
}
