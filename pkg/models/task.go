package models

import "time"

// Subtask is one natural-language unit of work inside a Plan.
type Subtask struct {
	// Index is the zero-based position of the subtask within its plan.
	Index int `json:"index"`
	// Text is the raw subtask description. It doubles as the memoization key.
	Text string `json:"text"`
}

// Plan is the ordered list of subtasks for one turn.
type Plan []Subtask

// NewPlan builds a Plan from subtask texts, assigning indices in order.
func NewPlan(texts []string) Plan {
	plan := make(Plan, len(texts))
	for i, text := range texts {
		plan[i] = Subtask{Index: i, Text: text}
	}
	return plan
}

// Texts returns the subtask texts in plan order.
func (p Plan) Texts() []string {
	texts := make([]string, len(p))
	for i, st := range p {
		texts[i] = st.Text
	}
	return texts
}

// Group is an ordered run of plan indices that may execute concurrently.
type Group []int

// ErrorKind classifies why a subtask or optimization failed.
type ErrorKind string

const (
	// ErrorKindInterpretation means the subtask could not be mapped to a tool call.
	ErrorKindInterpretation ErrorKind = "interpretation"
	// ErrorKindUnknownTool means the interpreter named a tool nobody provides.
	ErrorKindUnknownTool ErrorKind = "unknown_tool"
	// ErrorKindToolExecution wraps a failure reported by the tool itself.
	ErrorKindToolExecution ErrorKind = "tool_execution"
	// ErrorKindCatalogPathNotFound means a surface constraint matched nothing in the catalog.
	ErrorKindCatalogPathNotFound ErrorKind = "catalog_path_not_found"
	// ErrorKindNoFeasibleCombination means a resolved surface has no priced variants.
	ErrorKindNoFeasibleCombination ErrorKind = "no_feasible_combination"
	// ErrorKindTimeout means the subtask or the run deadline expired first.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindCanceled means the run was canceled before the subtask resolved.
	ErrorKindCanceled ErrorKind = "canceled"
)

// Valid returns true if the kind is a known value.
func (k ErrorKind) Valid() bool {
	switch k {
	case ErrorKindInterpretation, ErrorKindUnknownTool, ErrorKindToolExecution,
		ErrorKindCatalogPathNotFound, ErrorKindNoFeasibleCombination,
		ErrorKindTimeout, ErrorKindCanceled:
		return true
	default:
		return false
	}
}

// Transient returns true for kinds caused by the run's deadline or cancellation
// rather than by the subtask itself.
func (k ErrorKind) Transient() bool {
	return k == ErrorKindTimeout || k == ErrorKindCanceled
}

// TaskError is the machine-readable failure captured inside a TaskResult.
type TaskError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// TaskResult is the outcome of executing one subtask.
type TaskResult struct {
	// Subtask is the raw subtask text this result belongs to.
	Subtask string `json:"subtask"`
	// StepID is the synthetic id assigned when the result was produced.
	StepID string `json:"step_id,omitempty"`
	// ToolName is the tool the subtask was mapped to, if interpretation succeeded.
	ToolName string `json:"tool_name,omitempty"`
	// Args are the tool arguments produced by the interpreter.
	Args map[string]any `json:"args,omitempty"`
	// Success reports whether the tool returned a payload.
	Success bool `json:"success"`
	// Payload is the tool result when Success is true.
	Payload any `json:"payload,omitempty"`
	// Error describes the failure when Success is false.
	Error *TaskError `json:"error,omitempty"`
	// CompletedAt is when the result was produced.
	CompletedAt time.Time `json:"completed_at"`
}

// Failed builds a failed TaskResult for the given subtask text.
func Failed(subtask string, kind ErrorKind, message string) TaskResult {
	return TaskResult{
		Subtask:     subtask,
		Success:     false,
		Error:       &TaskError{Kind: kind, Message: message},
		CompletedAt: time.Now(),
	}
}

// Cacheable returns true if the result may be memoized. Timeouts and
// cancellations are left out so a later run can retry them.
func (r TaskResult) Cacheable() bool {
	return r.Error == nil || !r.Error.Kind.Transient()
}
