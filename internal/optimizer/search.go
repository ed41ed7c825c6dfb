package optimizer

import (
	"context"

	"github.com/shopspring/decimal"
)

// exhaustive enumerates every combination with an odometer: surfaces in input
// order, the last surface varying fastest, candidates in lexicographic path
// order. The first combination reaching the best distance wins, so ties go to
// the lexicographically smallest tuple of paths.
func (p *problem) exhaustive(ctx context.Context) ([]int, int, error) {
	n := len(p.costs)
	idx := make([]int, n)

	// prefix[s] is the cost of surfaces 0..s under the current picks.
	prefix := make([]decimal.Decimal, n)
	refill := func(from int) {
		for s := from; s < n; s++ {
			prev := decimal.Zero
			if s > 0 {
				prev = prefix[s-1]
			}
			prefix[s] = prev.Add(p.costs[s][idx[s]])
		}
	}
	refill(0)

	var (
		bestWithin    []int
		bestDistance  decimal.Decimal
		cheapest      []int
		cheapestTotal decimal.Decimal
		count         int
	)

	for {
		total := prefix[n-1]
		count++

		if !total.GreaterThan(p.budget) {
			distance := p.budget.Sub(total)
			if bestWithin == nil || distance.LessThan(bestDistance) {
				bestWithin = append(bestWithin[:0:0], idx...)
				bestDistance = distance
			}
		}
		if cheapest == nil || total.LessThan(cheapestTotal) {
			cheapest = append(cheapest[:0:0], idx...)
			cheapestTotal = total
		}

		if count%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, count, err
			}
		}

		pos := n - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(p.costs[pos]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
		refill(pos)
	}

	if bestWithin != nil {
		return bestWithin, count, nil
	}
	return cheapest, count, nil
}

// greedy starts from the cheapest candidate per surface, which is the global
// cheapest combination, then repeatedly applies the single-surface swap that
// raises the total the most while staying within budget.
func (p *problem) greedy(ctx context.Context) ([]int, int, error) {
	n := len(p.costs)
	idx := make([]int, n)
	total := decimal.Zero
	count := 0

	for s, costs := range p.costs {
		for k := 1; k < len(costs); k++ {
			if costs[k].LessThan(costs[idx[s]]) {
				idx[s] = k
			}
		}
		total = total.Add(costs[idx[s]])
	}
	count++

	if total.GreaterThan(p.budget) {
		return idx, count, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, count, err
		}

		bestS, bestK := -1, -1
		bestTotal := total
		for s, costs := range p.costs {
			base := total.Sub(costs[idx[s]])
			for k, c := range costs {
				candidate := base.Add(c)
				count++
				if candidate.GreaterThan(p.budget) || !candidate.GreaterThan(bestTotal) {
					continue
				}
				bestS, bestK, bestTotal = s, k, candidate
			}
		}
		if bestS < 0 {
			return idx, count, nil
		}
		idx[bestS] = bestK
		total = bestTotal
	}
}
