package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/auratask/core/internal/domain/entities"
	"github.com/auratask/core/internal/ports"
)

const subtaskColumns = `id, task_id, title, is_completed, order_index, created_at`

func (g *Gateway) InsertSubtask(ctx context.Context, subtask *entities.Subtask) (*entities.Subtask, error) {
	query := `
		INSERT INTO subtasks (id, task_id, title, is_completed, order_index)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + subtaskColumns

	if subtask.ID == uuid.Nil {
		subtask.ID = uuid.New()
	}

	var row entities.Subtask
	err := g.db.DB.GetContext(ctx, &row, query,
		subtask.ID, subtask.TaskID, subtask.Title, subtask.IsCompleted, subtask.OrderIndex)
	if err != nil {
		return nil, fmt.Errorf("insert subtask: %w", err)
	}
	return &row, nil
}

func (g *Gateway) UpdateSubtask(ctx context.Context, id uuid.UUID, patch ports.SubtaskPatch) (*entities.Subtask, error) {
	sets := []string{}
	args := []interface{}{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.IsCompleted != nil {
		add("is_completed", *patch.IsCompleted)
	}
	if patch.OrderIndex != nil {
		add("order_index", *patch.OrderIndex)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("update subtask: empty patch")
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE subtasks SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), subtaskColumns)

	var row entities.Subtask
	err := g.db.DB.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrSubtaskNotFound
		}
		return nil, fmt.Errorf("update subtask: %w", err)
	}
	return &row, nil
}

func (g *Gateway) DeleteSubtask(ctx context.Context, id uuid.UUID) error {
	res, err := g.db.DB.ExecContext(ctx, `DELETE FROM subtasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entities.ErrSubtaskNotFound
	}
	return nil
}
