package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/quoteflow/internal/cache"
	"github.com/ShayCichocki/quoteflow/internal/tools"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// QuoteStore persists memoized subtask results keyed by subtask text.
type QuoteStore interface {
	SaveQuote(ctx context.Context, result models.TaskResult) error
	GetQuote(ctx context.Context, subtask string) (models.TaskResult, bool, error)
	ListQuotes(ctx context.Context) ([]models.TaskResult, error)
	PurgeQuotes(ctx context.Context, olderThan time.Duration) (int64, error)
}

// OptimizationStore persists optimizer results.
type OptimizationStore interface {
	SaveOptimization(ctx context.Context, result models.OptimizationResult) error
	GetOptimization(ctx context.Context, id string) (models.OptimizationResult, bool, error)
	ListOptimizations(ctx context.Context, limit int) ([]models.OptimizationResult, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// StateStore composes every persistence concern backed by one database.
type StateStore interface {
	io.Closer
	Migrator
	QuoteStore
	OptimizationStore
	tools.ProjectQuoteStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore              = (*DB)(nil)
	_ QuoteStore              = (*DB)(nil)
	_ OptimizationStore       = (*DB)(nil)
	_ tools.ProjectQuoteStore = (*DB)(nil)
	_ cache.Store             = (*DB)(nil)
)
