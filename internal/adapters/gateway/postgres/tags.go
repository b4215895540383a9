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

const tagColumns = `id, user_id, name, color, created_at`

func (g *Gateway) InsertTag(ctx context.Context, tag *entities.Tag) (*entities.Tag, error) {
	query := `
		INSERT INTO tags (id, user_id, name, color)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + tagColumns

	if tag.ID == uuid.Nil {
		tag.ID = uuid.New()
	}

	var row entities.Tag
	err := g.db.DB.GetContext(ctx, &row, query, tag.ID, tag.UserID, tag.Name, tag.Color)
	if err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}
	return &row, nil
}

func (g *Gateway) UpdateTag(ctx context.Context, id uuid.UUID, patch ports.TagPatch) (*entities.Tag, error) {
	sets := []string{}
	args := []interface{}{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Color != nil {
		add("color", *patch.Color)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("update tag: empty patch")
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE tags SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), tagColumns)

	var row entities.Tag
	err := g.db.DB.GetContext(ctx, &row, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, entities.ErrTagNotFound
		}
		return nil, fmt.Errorf("update tag: %w", err)
	}
	return &row, nil
}

func (g *Gateway) DeleteTag(ctx context.Context, id uuid.UUID) error {
	// task_tags rows cascade via FK.
	res, err := g.db.DB.ExecContext(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return entities.ErrTagNotFound
	}
	return nil
}

func (g *Gateway) ListTags(ctx context.Context, ownerID uuid.UUID) ([]entities.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM tags WHERE user_id = $1 ORDER BY created_at`

	var tags []entities.Tag
	if err := g.db.DB.SelectContext(ctx, &tags, query, ownerID); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	if tags == nil {
		tags = []entities.Tag{}
	}
	return tags, nil
}

func (g *Gateway) AttachTag(ctx context.Context, taskID, tagID uuid.UUID) error {
	if _, err := g.db.DB.ExecContext(ctx,
		`INSERT INTO task_tags (task_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		taskID, tagID); err != nil {
		return fmt.Errorf("attach tag: %w", err)
	}
	return nil
}

func (g *Gateway) DetachTag(ctx context.Context, taskID, tagID uuid.UUID) error {
	if _, err := g.db.DB.ExecContext(ctx,
		`DELETE FROM task_tags WHERE task_id = $1 AND tag_id = $2`, taskID, tagID); err != nil {
		return fmt.Errorf("detach tag: %w", err)
	}
	return nil
}
