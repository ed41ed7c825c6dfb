package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// Tree is an immutable in-memory catalog.
type Tree struct {
	root   *treeNode
	leaves int
}

type treeNode struct {
	name     string
	children map[string]*treeNode
	sorted   []string
	leaf     *leafData
}

type leafData struct {
	variant  models.CatalogVariant
	hasLabor bool
}

func newTreeNode(name string) *treeNode {
	return &treeNode{name: name, children: make(map[string]*treeNode)}
}

// LeafPrice is the raw price data for one variant.
type LeafPrice struct {
	Path []string
	// Material is nil when the source has no material price.
	Material *decimal.Decimal
	// Labor is nil when the source has no labor price.
	Labor *decimal.Decimal
}

// Build creates a tree from leaf prices. A path that is both a leaf and an
// ancestor of another leaf is rejected.
func Build(prices []LeafPrice) (*Tree, error) {
	t := &Tree{root: newTreeNode("")}
	for _, p := range prices {
		if err := t.insert(p); err != nil {
			return nil, err
		}
	}
	t.finish(t.root)
	return t, nil
}

func (t *Tree) insert(p LeafPrice) error {
	if len(p.Path) == 0 {
		return fmt.Errorf("%w: empty leaf path", ErrInvalidCatalog)
	}
	n := t.root
	for i, name := range p.Path {
		if name == "" {
			return fmt.Errorf("%w: empty segment in %q", ErrInvalidCatalog, strings.Join(p.Path, models.PathSeparator))
		}
		if n.leaf != nil {
			return fmt.Errorf("%w: %q is a variant and cannot have children", ErrInvalidCatalog, strings.Join(p.Path[:i], models.PathSeparator))
		}
		child, ok := n.children[name]
		if !ok {
			child = newTreeNode(name)
			n.children[name] = child
		}
		n = child
	}
	if len(n.children) > 0 {
		return fmt.Errorf("%w: %q has children and cannot be a variant", ErrInvalidCatalog, strings.Join(p.Path, models.PathSeparator))
	}
	if n.leaf != nil {
		return fmt.Errorf("%w: duplicate variant %q", ErrInvalidCatalog, strings.Join(p.Path, models.PathSeparator))
	}

	v := models.CatalogVariant{
		Path:     append([]string(nil), p.Path...),
		Complete: p.Material != nil,
	}
	if p.Material != nil {
		v.UnitMaterial = *p.Material
	}
	if p.Labor != nil {
		v.UnitLabor = *p.Labor
	}
	n.leaf = &leafData{variant: v, hasLabor: p.Labor != nil}
	t.leaves++
	return nil
}

// finish caches sorted child names. Called once after all inserts.
func (t *Tree) finish(root *treeNode) {
	stack := []*treeNode{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n.sorted = make([]string, 0, len(n.children))
		for name, child := range n.children {
			n.sorted = append(n.sorted, name)
			stack = append(stack, child)
		}
		sort.Strings(n.sorted)
	}
}

func (t *Tree) find(path []string) (*treeNode, error) {
	n := t.root
	for _, name := range path {
		child, ok := n.children[name]
		if !ok {
			return nil, &PathError{Path: append([]string(nil), path...), Missing: name}
		}
		n = child
	}
	return n, nil
}

// Lookup implements Catalog. An empty path returns the root.
func (t *Tree) Lookup(path []string) (Node, error) {
	n, err := t.find(path)
	if err != nil {
		return Node{}, err
	}
	node := Node{
		Path:     append([]string(nil), path...),
		Children: append([]string(nil), n.sorted...),
	}
	if n.leaf != nil {
		v := n.leaf.variant
		v.Path = append([]string(nil), v.Path...)
		node.Leaf = &v
	}
	return node, nil
}

// Snapshot implements Snapshotter. A Tree never changes.
func (t *Tree) Snapshot() Catalog {
	return t
}

// Len returns the number of variants.
func (t *Tree) Len() int {
	return t.leaves
}

// Categories returns the top-level names in order.
func (t *Tree) Categories() []string {
	return append([]string(nil), t.root.sorted...)
}

// Children returns the child names under path in order.
func (t *Tree) Children(path []string) ([]string, error) {
	n, err := t.find(path)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), n.sorted...), nil
}

// Variants returns every variant under path, including incomplete ones, in
// lexicographic path order.
func (t *Tree) Variants(path []string) ([]models.CatalogVariant, error) {
	n, err := t.find(path)
	if err != nil {
		return nil, err
	}
	var out []models.CatalogVariant
	t.walk(n, func(l *leafData) {
		out = append(out, l.variant)
	})
	return out, nil
}

// walk visits leaves under n in lexicographic order.
func (t *Tree) walk(n *treeNode, visit func(*leafData)) {
	stack := []*treeNode{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.leaf != nil {
			visit(cur.leaf)
			continue
		}
		for i := len(cur.sorted) - 1; i >= 0; i-- {
			stack = append(stack, cur.children[cur.sorted[i]])
		}
	}
}

// Search returns variants whose variant or subtype name contains query,
// case-insensitively.
func (t *Tree) Search(query string) []models.CatalogVariant {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []models.CatalogVariant
	t.walk(t.root, func(l *leafData) {
		p := l.variant.Path
		start := len(p) - 2
		if start < 0 {
			start = 0
		}
		for _, name := range p[start:] {
			if strings.Contains(strings.ToLower(name), q) {
				out = append(out, l.variant)
				return
			}
		}
	})
	return out
}

// PriceRange is the min and max unit prices under a node. Fields are invalid
// when no variant under the node carries that price.
type PriceRange struct {
	Path        []string            `json:"path"`
	MaterialMin decimal.NullDecimal `json:"material_min"`
	MaterialMax decimal.NullDecimal `json:"material_max"`
	LaborMin    decimal.NullDecimal `json:"labor_min"`
	LaborMax    decimal.NullDecimal `json:"labor_max"`
	CombinedMin decimal.NullDecimal `json:"combined_min"`
	CombinedMax decimal.NullDecimal `json:"combined_max"`
	Variants    int                 `json:"variants"`
}

// PriceRange computes price ranges for every variant under path. A missing
// price counts as zero in the combined range when the other price is present.
func (t *Tree) PriceRange(path []string) (PriceRange, error) {
	n, err := t.find(path)
	if err != nil {
		return PriceRange{}, err
	}
	r := PriceRange{Path: append([]string(nil), path...)}
	t.walk(n, func(l *leafData) {
		r.Variants++
		v := l.variant
		if v.Complete {
			extend(&r.MaterialMin, &r.MaterialMax, v.UnitMaterial)
		}
		if l.hasLabor {
			extend(&r.LaborMin, &r.LaborMax, v.UnitLabor)
		}
		if v.Complete || l.hasLabor {
			extend(&r.CombinedMin, &r.CombinedMax, v.UnitTotal())
		}
	})
	return r, nil
}

func extend(lo, hi *decimal.NullDecimal, d decimal.Decimal) {
	if !lo.Valid || d.LessThan(lo.Decimal) {
		*lo = decimal.NewNullDecimal(d)
	}
	if !hi.Valid || d.GreaterThan(hi.Decimal) {
		*hi = decimal.NewNullDecimal(d)
	}
}
