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

const groupColumns = `id, user_id, name, emoji, order_index, created_at`

func (g *Gateway) InsertGroup(ctx context.Context, group *entities.TaskGroup) (*entities.TaskGroup, error) {
	query := `
		INSERT INTO task_groups (id, user_id, name, emoji, order_index)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + groupColumns

	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}

	var row entities.TaskGroup
	err := g.db.DB.GetContext(ctx, &row, query,
		group.ID, group.UserID, group.Name, group.Emoji, group.OrderIndex)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	return &row, nil
}

func (g *Gateway) UpdateGroup(ctx context.Context, id uuid.UUID, patch ports.GroupPatch) (*entities.TaskGroup, error) {
	sets := []string{}
	args := []interface{}{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Emoji != nil {
		add("emoji", *patch.Emoji)
	}
	if patch.OrderIndex != nil {
		add("order_index", *patch.OrderIndex)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("update group: empty patch")
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE task_groups SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), groupColumns)

	var row entities.TaskGroup
	err := g.db.DB.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrGroupNotFound
		}
		return nil, fmt.Errorf("update group: %w", err)
	}
	return &row, nil
}

func (g *Gateway) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	res, err := g.db.DB.ExecContext(ctx, `DELETE FROM task_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entities.ErrGroupNotFound
	}
	return nil
}

func (g *Gateway) ListGroups(ctx context.Context, ownerID uuid.UUID) ([]entities.TaskGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM task_groups WHERE user_id = $1 ORDER BY order_index`

	var groups []entities.TaskGroup
	if err := g.db.DB.SelectContext(ctx, &groups, query, ownerID); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	if groups == nil {
		groups = []entities.TaskGroup{}
	}
	return groups, nil
}

func (g *Gateway) BatchUpdateGroupOrder(ctx context.Context, updates []ports.OrderUpdate) error {
	return g.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		for _, u := range updates {
			if _, err := tx.ExecContext(ctx,
				`UPDATE task_groups SET order_index = $1 WHERE id = $2`,
				u.OrderIndex, u.ID); err != nil {
				return fmt.Errorf("update group order: %w", err)
			}
		}
		return nil
	})
}
