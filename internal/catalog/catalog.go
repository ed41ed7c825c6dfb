// Package catalog provides read-only access to the hierarchical price list.
//
// A catalog is a tree of named nodes: category > material type > subtype >
// variant. Leaves carry per-square-meter material and labor prices.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

var (
	// ErrPathNotFound is returned when a path does not name a node.
	ErrPathNotFound = errors.New("catalog path not found")
	// ErrInvalidCatalog is returned when catalog data cannot be turned into a tree.
	ErrInvalidCatalog = errors.New("invalid catalog")
)

// Node is one catalog node as seen through Lookup.
type Node struct {
	// Path is the node's full path from the root. Empty for the root.
	Path []string
	// Children are the child names in lexicographic order.
	Children []string
	// Leaf is set when the node is a priced variant.
	Leaf *models.CatalogVariant
}

// IsLeaf reports whether the node is a variant.
func (n Node) IsLeaf() bool {
	return n.Leaf != nil
}

// Catalog looks up nodes by path. Implementations must be safe for concurrent
// reads.
type Catalog interface {
	Lookup(path []string) (Node, error)
}

// Snapshotter is implemented by catalogs that can change over time. Snapshot
// returns a view that stays fixed for as long as the caller holds it.
type Snapshotter interface {
	Snapshot() Catalog
}

// SnapshotOf returns a fixed view of c.
func SnapshotOf(c Catalog) Catalog {
	if s, ok := c.(Snapshotter); ok {
		return s.Snapshot()
	}
	return c
}

// PathError reports a lookup failure for a specific path.
type PathError struct {
	Path []string
	// Missing is the first segment that did not match.
	Missing string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s: %q (no %q)", ErrPathNotFound, strings.Join(e.Path, models.PathSeparator), e.Missing)
}

// Unwrap returns ErrPathNotFound.
func (e *PathError) Unwrap() error {
	return ErrPathNotFound
}
