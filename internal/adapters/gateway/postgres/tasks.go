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

const taskColumns = `id, user_id, group_id, title, description, is_completed, due_date,
	ai_speed_score, ai_importance_score, speed_tag, importance_tag, emoji,
	ai_generated, enable_ai_ranking, enable_ai_subtasks, order_index, created_at, updated_at`

func (g *Gateway) InsertTask(ctx context.Context, task *entities.Task) (*entities.Task, error) {
	query := `
		INSERT INTO tasks (id, user_id, group_id, title, description, is_completed, due_date,
			ai_speed_score, ai_importance_score, speed_tag, importance_tag, emoji,
			ai_generated, enable_ai_ranking, enable_ai_subtasks, order_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + taskColumns

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}

	var row entities.Task
	err := g.db.DB.GetContext(ctx, &row, query,
		task.ID, task.UserID, task.GroupID, task.Title, task.Description,
		task.IsCompleted, task.DueDate, task.AISpeedScore, task.AIImportanceScore,
		task.SpeedTag, task.ImportanceTag, task.Emoji, task.AIGenerated,
		task.EnableAIRanking, task.EnableAISubtasks, task.OrderIndex,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	row.Tags = []entities.Tag{}
	return &row, nil
}

func (g *Gateway) UpdateTask(ctx context.Context, id uuid.UUID, patch ports.TaskPatch) (*entities.Task, error) {
	sets := []string{"updated_at = now()"}
	args := []interface{}{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.GroupID != nil {
		add("group_id", *patch.GroupID)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Description != nil {
		add("description", patch.Description)
	}
	if patch.IsCompleted != nil {
		add("is_completed", *patch.IsCompleted)
	}
	if patch.DueDate != nil {
		add("due_date", *patch.DueDate)
	}
	if patch.AISpeedScore != nil {
		add("ai_speed_score", patch.AISpeedScore)
	}
	if patch.AIImportanceScore != nil {
		add("ai_importance_score", patch.AIImportanceScore)
	}
	if patch.SpeedTag != nil {
		add("speed_tag", patch.SpeedTag)
	}
	if patch.ImportanceTag != nil {
		add("importance_tag", patch.ImportanceTag)
	}
	if patch.Emoji != nil {
		add("emoji", patch.Emoji)
	}
	if patch.AIGenerated != nil {
		add("ai_generated", *patch.AIGenerated)
	}
	if patch.OrderIndex != nil {
		add("order_index", *patch.OrderIndex)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), taskColumns)

	var row entities.Task
	err := g.db.DB.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrTaskNotFound
		}
		return nil, fmt.Errorf("update task: %w", err)
	}
	return &row, nil
}

func (g *Gateway) DeleteTask(ctx context.Context, id uuid.UUID) error {
	res, err := g.db.DB.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entities.ErrTaskNotFound
	}
	return nil
}

func (g *Gateway) ListTasks(ctx context.Context, ownerID uuid.UUID) ([]entities.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 ORDER BY order_index`

	var tasks []entities.Task
	if err := g.db.DB.SelectContext(ctx, &tasks, query, ownerID); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return []entities.Task{}, nil
	}

	ids := make([]uuid.UUID, len(tasks))
	byID := make(map[uuid.UUID]*entities.Task, len(tasks))
	for i := range tasks {
		tasks[i].Subtasks = nil
		tasks[i].Tags = []entities.Tag{}
		ids[i] = tasks[i].ID
		byID[tasks[i].ID] = &tasks[i]
	}

	subQuery, subArgs, err := sqlx.In(
		`SELECT id, task_id, title, is_completed, order_index, created_at
		 FROM subtasks WHERE task_id IN (?) ORDER BY order_index`, ids)
	if err != nil {
		return nil, fmt.Errorf("build subtask query: %w", err)
	}
	var subs []entities.Subtask
	if err := g.db.DB.SelectContext(ctx, &subs, g.db.DB.Rebind(subQuery), subArgs...); err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	for _, sub := range subs {
		if parent, ok := byID[sub.TaskID]; ok {
			parent.Subtasks = append(parent.Subtasks, sub)
		}
	}

	tagQuery, tagArgs, err := sqlx.In(`
		SELECT tt.task_id AS task_id, t.id AS id, t.user_id AS user_id,
			t.name AS name, t.color AS color, t.created_at AS created_at
		FROM task_tags tt JOIN tags t ON t.id = tt.tag_id
		WHERE tt.task_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build tag query: %w", err)
	}
	var tagRows []struct {
		TaskID uuid.UUID `db:"task_id"`
		entities.Tag
	}
	if err := g.db.DB.SelectContext(ctx, &tagRows, g.db.DB.Rebind(tagQuery), tagArgs...); err != nil {
		return nil, fmt.Errorf("list task tags: %w", err)
	}
	for _, tr := range tagRows {
		if parent, ok := byID[tr.TaskID]; ok {
			parent.Tags = append(parent.Tags, tr.Tag)
		}
	}

	return tasks, nil
}

func (g *Gateway) BatchUpdateOrder(ctx context.Context, updates []ports.OrderUpdate) error {
	return g.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		for _, u := range updates {
			if _, err := tx.ExecContext(ctx,
				`UPDATE tasks SET order_index = $1, updated_at = now() WHERE id = $2`,
				u.OrderIndex, u.ID); err != nil {
				return fmt.Errorf("update task order: %w", err)
			}
		}
		return nil
	})
}

func (g *Gateway) ClearGroupRef(ctx context.Context, groupID uuid.UUID) error {
	if _, err := g.db.DB.ExecContext(ctx,
		`UPDATE tasks SET group_id = NULL, updated_at = now() WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("clear group refs: %w", err)
	}
	return nil
}
