package optimizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/quoteflow/internal/catalog"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// span is a half-open range of arena slots.
type span struct {
	lo, hi int
}

func (s span) len() int { return s.hi - s.lo }

// Index is an arena of priced catalog leaves. Each resolved prefix occupies a
// contiguous range of the arena, stored in lexicographic path order, with the
// unit total computed once per slot.
type Index struct {
	cat      catalog.Catalog
	variants []models.CatalogVariant
	totals   []decimal.Decimal
	ranges   map[string]span
	skipped  int
}

// NewIndex creates an empty index over c. Use a snapshot for consistent reads.
func NewIndex(c catalog.Catalog) *Index {
	return &Index{cat: c, ranges: make(map[string]span)}
}

// Skipped returns how many incomplete leaves were left out so far.
func (ix *Index) Skipped() int {
	return ix.skipped
}

// Variant returns the variant at arena slot i.
func (ix *Index) Variant(i int) models.CatalogVariant {
	return ix.variants[i]
}

// UnitTotal returns the memoized unit total at arena slot i.
func (ix *Index) UnitTotal(i int) decimal.Decimal {
	return ix.totals[i]
}

// Resolve returns the arena range holding every complete leaf under prefix.
// If prefix names a leaf the range holds just that leaf. The range may be
// empty when every leaf under prefix is incomplete.
func (ix *Index) Resolve(prefix []string) (span, error) {
	key := strings.Join(prefix, "\x00")
	if s, ok := ix.ranges[key]; ok {
		return s, nil
	}

	root, err := ix.cat.Lookup(prefix)
	if err != nil {
		if errors.Is(err, catalog.ErrPathNotFound) {
			return span{}, err
		}
		return span{}, fmt.Errorf("catalog lookup %q: %w", strings.Join(prefix, models.PathSeparator), err)
	}

	s := span{lo: len(ix.variants)}

	// Children are pushed in reverse so leaves pop in lexicographic order.
	stack := []catalog.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if n.IsLeaf() {
			ix.add(*n.Leaf)
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			childPath := append(append([]string(nil), n.Path...), n.Children[i])
			child, err := ix.cat.Lookup(childPath)
			if err != nil {
				return span{}, fmt.Errorf("catalog lookup %q: %w", strings.Join(childPath, models.PathSeparator), err)
			}
			stack = append(stack, child)
		}
	}

	s.hi = len(ix.variants)
	ix.ranges[key] = s
	return s, nil
}

func (ix *Index) add(v models.CatalogVariant) {
	if !v.Complete {
		ix.skipped++
		return
	}
	ix.variants = append(ix.variants, v)
	ix.totals = append(ix.totals, v.UnitTotal())
}
