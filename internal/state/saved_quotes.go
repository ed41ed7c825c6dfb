package state

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// SaveProjectQuote stores a named quote for project.
func (db *DB) SaveProjectQuote(ctx context.Context, project, content string) (models.SavedQuote, error) {
	q := models.SavedQuote{Project: project, Content: content, CreatedAt: time.Now().UTC()}
	result, err := db.Exec(ctx, `
		INSERT INTO saved_quotes (project, content, created_at) VALUES (?, ?, ?)
	`, project, content, formatTime(q.CreatedAt))
	if err != nil {
		return models.SavedQuote{}, fmt.Errorf("save project quote: %w", err)
	}
	q.ID, err = result.LastInsertId()
	if err != nil {
		return models.SavedQuote{}, fmt.Errorf("get insert id: %w", err)
	}
	return q, nil
}

// ListProjectQuotes returns quotes for project, or every quote when project
// is empty, newest first.
func (db *DB) ListProjectQuotes(ctx context.Context, project string) ([]models.SavedQuote, error) {
	query := `SELECT id, project, content, created_at FROM saved_quotes`
	var args []any
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY id DESC`

	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list project quotes: %w", err)
	}
	defer rows.Close()

	var out []models.SavedQuote
	for rows.Next() {
		var q models.SavedQuote
		var created string
		if err := rows.Scan(&q.ID, &q.Project, &q.Content, &created); err != nil {
			return nil, fmt.Errorf("scan project quote: %w", err)
		}
		q.CreatedAt, _ = parseTime(created)
		out = append(out, q)
	}
	return out, rows.Err()
}
