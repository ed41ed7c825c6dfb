package optimizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

var (
	// ErrNoSurfaces is returned for a request without surfaces.
	ErrNoSurfaces = errors.New("no surfaces to optimize")
	// ErrInvalidBudget is returned for a budget that is not positive.
	ErrInvalidBudget = errors.New("budget must be positive")
	// ErrInvalidSurface is returned for a surface with an unusable area.
	ErrInvalidSurface = errors.New("invalid surface")
	// ErrCatalogPathNotFound means a surface constraint matched no catalog node.
	ErrCatalogPathNotFound = errors.New("catalog path not found")
	// ErrConstraintGap means a surface sets a level below an empty one.
	ErrConstraintGap = errors.New("constraint skips a catalog level")
	// ErrNoFeasibleCombination means a surface resolved to no priced variants.
	ErrNoFeasibleCombination = errors.New("no feasible combination")
)

// SurfaceError is a per-surface resolution failure.
type SurfaceError struct {
	Kind    models.ErrorKind
	Surface models.Surface
	Path    []string
	// Err is the underlying catalog error, if any.
	Err error
}

func (e *SurfaceError) sentinel() error {
	if e.Kind == models.ErrorKindNoFeasibleCombination {
		return ErrNoFeasibleCombination
	}
	return ErrCatalogPathNotFound
}

func (e *SurfaceError) Error() string {
	return fmt.Sprintf("surface %q: %s: %q", e.Surface.Position, e.sentinel(), strings.Join(e.Path, models.PathSeparator))
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *SurfaceError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

// ErrorKind maps an Optimize error to the TaskResult error kind reported for it.
func ErrorKind(err error) models.ErrorKind {
	var se *SurfaceError
	switch {
	case errors.As(err, &se):
		return se.Kind
	case errors.Is(err, context.DeadlineExceeded):
		return models.ErrorKindTimeout
	case errors.Is(err, context.Canceled):
		return models.ErrorKindCanceled
	default:
		return models.ErrorKindToolExecution
	}
}
