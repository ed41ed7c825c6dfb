// Package optimizer picks catalog variants for a set of surfaces so the total
// cost lands as close to a budget as possible without exceeding it.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ShayCichocki/quoteflow/internal/catalog"
	"github.com/ShayCichocki/quoteflow/internal/logging"
	"github.com/ShayCichocki/quoteflow/internal/metrics"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// DefaultMaxCombinations is the largest search space enumerated exhaustively.
const DefaultMaxCombinations = 100_000

// ctxCheckInterval is how many combinations are evaluated between ctx checks.
const ctxCheckInterval = 4096

// Request is one optimization call.
type Request struct {
	Surfaces []models.Surface `json:"surfaces" mapstructure:"surfaces"`
	Budget   decimal.Decimal  `json:"budget" mapstructure:"budget"`
}

// Optimizer is stateless across calls and safe for concurrent use.
type Optimizer struct {
	catalog         catalog.Catalog
	maxCombinations int
	metrics         *metrics.Metrics
	logger          logrus.FieldLogger
	newID           func() string
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithMaxCombinations sets the exhaustive search threshold. Above it the
// greedy search is used.
func WithMaxCombinations(n int) Option {
	return func(o *Optimizer) {
		if n > 0 {
			o.maxCombinations = n
		}
	}
}

// WithMetrics records optimizations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Optimizer) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Optimizer) { o.logger = l }
}

// WithIDGenerator overrides result ids.
func WithIDGenerator(fn func() string) Option {
	return func(o *Optimizer) { o.newID = fn }
}

// New creates an Optimizer reading from c.
func New(c catalog.Catalog, opts ...Option) *Optimizer {
	o := &Optimizer{
		catalog:         c,
		maxCombinations: DefaultMaxCombinations,
		logger:          logging.Default(),
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// problem is a resolved request: one candidate list per surface with costs
// already multiplied by area.
type problem struct {
	ix       *Index
	surfaces []models.Surface
	ranges   []span
	costs    [][]decimal.Decimal
	budget   decimal.Decimal
}

// Optimize searches for the assignment closest to the budget without going
// over. If every combination is over budget the globally cheapest one is
// returned with status over-budget.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (models.OptimizationResult, error) {
	start := time.Now()

	p, err := o.resolve(req)
	if err != nil {
		return models.OptimizationResult{}, err
	}

	var (
		picks    []int
		count    int
		strategy models.SearchStrategy
	)
	if combos, ok := p.combinations(o.maxCombinations); ok {
		strategy = models.StrategyExhaustive
		picks, count, err = p.exhaustive(ctx)
		o.logger.WithFields(logrus.Fields{"surfaces": len(p.surfaces), "combinations": combos}).Debug("exhaustive search")
	} else {
		strategy = models.StrategyGreedy
		picks, count, err = p.greedy(ctx)
		o.logger.WithFields(logrus.Fields{"surfaces": len(p.surfaces), "threshold": o.maxCombinations}).Info("search space above threshold, using greedy search")
	}
	if err != nil {
		return models.OptimizationResult{}, err
	}

	result := p.result(picks)
	result.ID = o.newID()
	result.Combinations = count
	result.Strategy = strategy

	o.metrics.RecordOptimization(string(strategy), string(result.Status), count, time.Since(start))
	o.logger.WithFields(logrus.Fields{
		"total":  result.TotalCost.String(),
		"budget": result.Budget.String(),
		"status": result.Status,
	}).Debug("optimization finished")

	return result, nil
}

func (o *Optimizer) resolve(req Request) (*problem, error) {
	if len(req.Surfaces) == 0 {
		return nil, ErrNoSurfaces
	}
	if !req.Budget.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBudget, req.Budget)
	}

	p := &problem{
		ix:       NewIndex(catalog.SnapshotOf(o.catalog)),
		surfaces: req.Surfaces,
		ranges:   make([]span, len(req.Surfaces)),
		costs:    make([][]decimal.Decimal, len(req.Surfaces)),
		budget:   req.Budget,
	}

	for i, s := range req.Surfaces {
		if s.Area < 0 || math.IsNaN(s.Area) || math.IsInf(s.Area, 0) {
			return nil, fmt.Errorf("%w: surface %q has area %v", ErrInvalidSurface, s.Position, s.Area)
		}
		path := s.Path()
		if s.HasGap() {
			return nil, &SurfaceError{Kind: models.ErrorKindCatalogPathNotFound, Surface: s, Path: path, Err: ErrConstraintGap}
		}
		if len(path) == 0 {
			return nil, &SurfaceError{Kind: models.ErrorKindCatalogPathNotFound, Surface: s}
		}

		r, err := p.ix.Resolve(path)
		if err != nil {
			if errors.Is(err, catalog.ErrPathNotFound) {
				return nil, &SurfaceError{Kind: models.ErrorKindCatalogPathNotFound, Surface: s, Path: path, Err: err}
			}
			return nil, err
		}
		if r.len() == 0 {
			return nil, &SurfaceError{Kind: models.ErrorKindNoFeasibleCombination, Surface: s, Path: path}
		}

		area := decimal.NewFromFloat(s.Area)
		costs := make([]decimal.Decimal, r.len())
		for k := range costs {
			costs[k] = p.ix.UnitTotal(r.lo + k).Mul(area)
		}
		p.ranges[i] = r
		p.costs[i] = costs
	}

	if skipped := p.ix.Skipped(); skipped > 0 {
		o.logger.WithField("skipped", skipped).Debug("skipped variants without material price")
	}
	return p, nil
}

// combinations returns the search space size, or false if it exceeds limit.
func (p *problem) combinations(limit int) (int, bool) {
	total := 1
	for _, c := range p.costs {
		if total > limit/len(c) {
			return 0, false
		}
		total *= len(c)
	}
	return total, total <= limit
}

func (p *problem) result(picks []int) models.OptimizationResult {
	res := models.OptimizationResult{
		Assignments: make([]models.SurfaceCost, len(picks)),
		TotalCost:   decimal.Zero,
		Budget:      p.budget,
	}
	for s, k := range picks {
		cost := p.costs[s][k]
		res.Assignments[s] = models.SurfaceCost{
			Surface: p.surfaces[s],
			Variant: p.ix.Variant(p.ranges[s].lo + k),
			Cost:    cost,
		}
		res.TotalCost = res.TotalCost.Add(cost)
	}
	res.Status = models.BudgetWithin
	if res.TotalCost.GreaterThan(p.budget) {
		res.Status = models.BudgetOver
	}
	return res
}
