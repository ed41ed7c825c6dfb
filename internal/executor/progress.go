package executor

import "github.com/ShayCichocki/quoteflow/pkg/models"

// EventKind identifies a progress event.
type EventKind string

const (
	EventRunStarted   EventKind = "run_started"
	EventStepStarted  EventKind = "step_started"
	EventStepFinished EventKind = "step_finished"
	EventRunFinished  EventKind = "run_finished"
)

// Event reports run progress to a ProgressFunc.
type Event struct {
	Kind  EventKind
	RunID string

	// Groups is set on EventRunStarted.
	Groups []models.Group

	// Step fields are set on step events.
	Group   int
	Index   int
	StepID  string
	Subtask string
	// Result and Cached are set on EventStepFinished.
	Result *models.TaskResult
	Cached bool

	// Summary is set on EventRunFinished.
	Summary *Summary
}

// ProgressFunc receives run events. It is called from worker goroutines and
// must be safe for concurrent use. It should not block.
type ProgressFunc func(Event)

// WithProgress sets a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Executor) { e.progress = fn }
}

func (e *Executor) emit(ev Event) {
	if e.progress != nil {
		e.progress(ev)
	}
}
