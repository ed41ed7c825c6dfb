package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// SaveQuote stores a result under its subtask text. The first stored result
// for a text wins; later saves are ignored.
func (db *DB) SaveQuote(ctx context.Context, r models.TaskResult) error {
	if r.Subtask == "" {
		return errors.New("save quote: empty subtask")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}
	created := r.CompletedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = db.Exec(ctx, `
		INSERT OR IGNORE INTO quotes (subtask, tool_name, success, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.Subtask, r.ToolName, r.Success, string(payload), formatTime(created))
	if err != nil {
		return fmt.Errorf("save quote: %w", err)
	}
	return nil
}

// GetQuote returns the stored result for subtask. Payloads come back as
// decoded JSON values.
func (db *DB) GetQuote(ctx context.Context, subtask string) (models.TaskResult, bool, error) {
	var payload string
	err := db.QueryRow(ctx, `SELECT payload FROM quotes WHERE subtask = ?`, subtask).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TaskResult{}, false, nil
	}
	if err != nil {
		return models.TaskResult{}, false, fmt.Errorf("get quote: %w", err)
	}
	var r models.TaskResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return models.TaskResult{}, false, fmt.Errorf("decode quote: %w", err)
	}
	return r, true, nil
}

// ListQuotes returns every stored result, oldest first.
func (db *DB) ListQuotes(ctx context.Context) ([]models.TaskResult, error) {
	rows, err := db.Query(ctx, `SELECT payload FROM quotes ORDER BY created_at, subtask`)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []models.TaskResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		var r models.TaskResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode quote: %w", err)
		}
		quotes = append(quotes, r)
	}
	return quotes, rows.Err()
}

// PurgeQuotes deletes quotes older than the specified duration.
// Returns the number of quotes deleted.
func (db *DB) PurgeQuotes(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))

	result, err := db.Exec(ctx, `DELETE FROM quotes WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge quotes: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}
