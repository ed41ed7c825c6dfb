// Package executor runs a plan of pricing subtasks group by group, fanning
// out within each dependency group and memoizing results by subtask text.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/quoteflow/internal/cache"
	"github.com/ShayCichocki/quoteflow/internal/grouper"
	"github.com/ShayCichocki/quoteflow/internal/logging"
	"github.com/ShayCichocki/quoteflow/internal/metrics"
	"github.com/ShayCichocki/quoteflow/internal/optimizer"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// DefaultRecentWindow is how many prior results the interpreter sees.
const DefaultRecentWindow = 3

const tracerName = "github.com/ShayCichocki/quoteflow/internal/executor"

var (
	// ErrMissingInterpreter is returned by New without an Interpreter.
	ErrMissingInterpreter = errors.New("executor requires an interpreter")
	// ErrMissingInvoker is returned by New without an Invoker.
	ErrMissingInvoker = errors.New("executor requires a tool invoker")
	// ErrRunAborted wraps the context error when a run stops early.
	ErrRunAborted = errors.New("run aborted")
)

// ToolCall is an interpreted subtask.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Interpreter maps a subtask to a tool call.
type Interpreter interface {
	Interpret(ctx context.Context, text string, shared map[string]any, recent []models.TaskResult) (ToolCall, error)
}

// Invoker executes named tools.
type Invoker interface {
	Has(name string) bool
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// Optimizer handles budget-proposal tool calls.
type Optimizer interface {
	Optimize(ctx context.Context, req optimizer.Request) (models.OptimizationResult, error)
}

// QuoteSink receives successful results produced by a run.
type QuoteSink interface {
	SaveQuote(ctx context.Context, result models.TaskResult) error
}

// OptimizationSink receives optimization results produced by a run.
type OptimizationSink interface {
	SaveOptimization(ctx context.Context, result models.OptimizationResult) error
}

// RequiredConfig contains the collaborators an Executor cannot run without.
type RequiredConfig struct {
	// Interpreter turns subtask text into tool calls.
	Interpreter Interpreter
	// Invoker executes tool calls.
	Invoker Invoker
}

// Option configures an Executor. Use With* functions to create Options.
type Option func(*Executor)

// WithCache shares a cache across runs. Without it each run gets a fresh
// turn-scoped cache.
func WithCache(c *cache.QuoteCache) Option {
	return func(e *Executor) { e.cache = c }
}

// WithClassifier sets the dependency classifier used for grouping.
func WithClassifier(c grouper.Classifier) Option {
	return func(e *Executor) { e.classifier = c }
}

// WithOptimizer handles propose_options_for_budget calls in-process.
func WithOptimizer(o Optimizer) Option {
	return func(e *Executor) { e.optimizer = o }
}

// WithRoomCategories sets the categories used when a budget proposal gives
// only a room size.
func WithRoomCategories(c optimizer.RoomCategories) Option {
	return func(e *Executor) { e.room = c }
}

// WithMaxParallel bounds concurrent subtasks within a group. Zero means
// unbounded.
func WithMaxParallel(n int) Option {
	return func(e *Executor) { e.maxParallel = n }
}

// WithRecentWindow sets how many prior results the interpreter sees.
func WithRecentWindow(n int) Option {
	return func(e *Executor) { e.recentWindow = n }
}

// WithRunTimeout bounds a whole run.
func WithRunTimeout(d time.Duration) Option {
	return func(e *Executor) { e.runTimeout = d }
}

// WithSubtaskTimeout bounds each subtask.
func WithSubtaskTimeout(d time.Duration) Option {
	return func(e *Executor) { e.subtaskTimeout = d }
}

// WithQuoteSink persists successful results after each group.
func WithQuoteSink(s QuoteSink) Option {
	return func(e *Executor) { e.quoteSink = s }
}

// WithOptimizationSink persists optimization results after each group.
func WithOptimizationSink(s OptimizationSink) Option {
	return func(e *Executor) { e.optimizationSink = s }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithMetrics records run, group and subtask metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithTracer sets the tracer. The default comes from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// Executor runs plans. It is safe for concurrent use; concurrent runs that
// share a cache never execute the same subtask text twice.
type Executor struct {
	interpreter Interpreter
	invoker     Invoker

	cache            *cache.QuoteCache
	classifier       grouper.Classifier
	optimizer        Optimizer
	room             optimizer.RoomCategories
	maxParallel      int
	recentWindow     int
	runTimeout       time.Duration
	subtaskTimeout   time.Duration
	quoteSink        QuoteSink
	optimizationSink OptimizationSink
	logger           logrus.FieldLogger
	metrics          *metrics.Metrics
	tracer           trace.Tracer
	progress         ProgressFunc
}

// New creates an Executor.
func New(cfg RequiredConfig, opts ...Option) (*Executor, error) {
	if cfg.Interpreter == nil {
		return nil, ErrMissingInterpreter
	}
	if cfg.Invoker == nil {
		return nil, ErrMissingInvoker
	}

	e := &Executor{
		interpreter:  cfg.Interpreter,
		invoker:      cfg.Invoker,
		room:         optimizer.DefaultRoomCategories,
		recentWindow: DefaultRecentWindow,
		logger:       logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.classifier == nil {
		e.classifier = grouper.DefaultClassifier()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	if e.recentWindow < 0 {
		e.recentWindow = 0
	}
	return e, nil
}

// Cache returns the shared cache, or nil when each run uses its own.
func (e *Executor) Cache() *cache.QuoteCache {
	return e.cache
}
