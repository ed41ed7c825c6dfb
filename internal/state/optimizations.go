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

// SaveOptimization stores an optimization result. Results without an ID
// are rejected.
func (db *DB) SaveOptimization(ctx context.Context, r models.OptimizationResult) error {
	if r.ID == "" {
		return errors.New("save optimization: empty id")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode optimization: %w", err)
	}
	_, err = db.Exec(ctx, `
		INSERT OR REPLACE INTO optimizations (id, budget, total_cost, status, strategy, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Budget.String(), r.TotalCost.String(), string(r.Status), string(r.Strategy), string(payload), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save optimization: %w", err)
	}
	return nil
}

// GetOptimization retrieves an optimization result by ID.
func (db *DB) GetOptimization(ctx context.Context, id string) (models.OptimizationResult, bool, error) {
	var payload string
	err := db.QueryRow(ctx, `SELECT payload FROM optimizations WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.OptimizationResult{}, false, nil
	}
	if err != nil {
		return models.OptimizationResult{}, false, fmt.Errorf("get optimization: %w", err)
	}
	var r models.OptimizationResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return models.OptimizationResult{}, false, fmt.Errorf("decode optimization: %w", err)
	}
	return r, true, nil
}

// ListOptimizations returns the most recent results, newest first. A
// non-positive limit returns all of them.
func (db *DB) ListOptimizations(ctx context.Context, limit int) ([]models.OptimizationResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(ctx, `
		SELECT payload FROM optimizations ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list optimizations: %w", err)
	}
	defer rows.Close()

	var out []models.OptimizationResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan optimization: %w", err)
		}
		var r models.OptimizationResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode optimization: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
