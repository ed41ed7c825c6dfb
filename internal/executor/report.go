package executor

import (
	"fmt"
	"time"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// Summary counts outcomes of a run.
type Summary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	CacheHits int `json:"cache_hits"`
}

// Report is the outcome of one run.
type Report struct {
	RunID string `json:"run_id"`
	// Results holds one entry per plan subtask, in plan order.
	Results []models.TaskResult `json:"results"`
	// Cached is aligned with Results and marks results reused from the cache.
	Cached []bool `json:"cached"`
	// Groups is the dependency grouping the run followed.
	Groups []models.Group `json:"groups"`
	// Context maps step_<id> to each step's payload and step_<id>_subtask
	// to its text.
	Context map[string]any `json:"context"`
	// Optimizations holds every budget proposal produced or reused by the run.
	Optimizations []models.OptimizationResult `json:"optimizations,omitempty"`
	Summary       Summary                     `json:"summary"`
	Duration      time.Duration               `json:"duration"`
}

// StepError describes one failed subtask.
type StepError struct {
	Index   int
	StepID  string
	Subtask string
	Err     *models.TaskError
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) %q: %s", e.Index+1, e.StepID, e.Subtask, e.Err.Error())
}

// Unwrap returns the task error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Errors returns a StepError for every failed result, in plan order.
func (r *Report) Errors() []error {
	var errs []error
	for i, res := range r.Results {
		if res.Success || res.Error == nil {
			continue
		}
		errs = append(errs, &StepError{Index: i, StepID: res.StepID, Subtask: res.Subtask, Err: res.Error})
	}
	return errs
}

func (r *Report) summarize() {
	r.Summary = Summary{}
	for i, res := range r.Results {
		if res.Success {
			r.Summary.Succeeded++
		} else {
			r.Summary.Failed++
		}
		if r.Cached[i] {
			r.Summary.CacheHits++
		}
	}
}

// StepID returns the synthetic id for position k of group g: group_<g> for
// single-subtask groups and group_<g>_step_<k> otherwise.
func StepID(g, k, size int) string {
	if size == 1 {
		return fmt.Sprintf("group_%d", g)
	}
	return fmt.Sprintf("group_%d_step_%d", g, k)
}

// ContextKey returns the shared context key for a step's payload.
func ContextKey(stepID string) string {
	return "step_" + stepID
}

// SubtaskContextKey returns the shared context key for a step's text.
func SubtaskContextKey(stepID string) string {
	return "step_" + stepID + "_subtask"
}
