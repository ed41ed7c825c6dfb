package models

import "github.com/shopspring/decimal"

// BudgetStatus reports whether a combination fits the budget.
type BudgetStatus string

const (
	// BudgetWithin means the total cost is at or below the budget.
	BudgetWithin BudgetStatus = "within_budget"
	// BudgetOver means no combination fit and the cheapest one was returned.
	BudgetOver BudgetStatus = "over_budget"
)

// Valid returns true if the status is a known value.
func (s BudgetStatus) Valid() bool {
	switch s {
	case BudgetWithin, BudgetOver:
		return true
	default:
		return false
	}
}

// String returns a human-readable representation of the budget status.
func (s BudgetStatus) String() string {
	switch s {
	case BudgetWithin:
		return "within budget"
	case BudgetOver:
		return "over budget"
	default:
		return "unknown"
	}
}

// SearchStrategy names the search used to produce an OptimizationResult.
type SearchStrategy string

const (
	// StrategyExhaustive enumerates every combination.
	StrategyExhaustive SearchStrategy = "exhaustive"
	// StrategyGreedy is the fallback for search spaces above the safety threshold.
	StrategyGreedy SearchStrategy = "greedy"
)

// SurfaceCost is one surface's assignment and its cost.
type SurfaceCost struct {
	Surface Surface         `json:"surface"`
	Variant CatalogVariant  `json:"variant"`
	Cost    decimal.Decimal `json:"cost"`
}

// OptimizationResult is the winning assignment for a set of surfaces.
type OptimizationResult struct {
	// ID identifies the result when it is persisted.
	ID string `json:"id,omitempty"`
	// Assignments holds one entry per surface, in input order.
	Assignments []SurfaceCost `json:"assignments"`
	// TotalCost is the sum of all assignment costs.
	TotalCost decimal.Decimal `json:"total_cost"`
	// Budget is the ceiling the search was asked to respect.
	Budget decimal.Decimal `json:"budget"`
	// Status reports whether TotalCost fits Budget.
	Status BudgetStatus `json:"status"`
	// Combinations is the number of combinations evaluated.
	Combinations int `json:"combinations"`
	// Strategy is the search that produced the result.
	Strategy SearchStrategy `json:"strategy"`
}

// Remaining returns budget minus total cost. Negative when over budget.
func (r OptimizationResult) Remaining() decimal.Decimal {
	return r.Budget.Sub(r.TotalCost)
}
