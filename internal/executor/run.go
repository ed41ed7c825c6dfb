package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/quoteflow/internal/cache"
	"github.com/ShayCichocki/quoteflow/internal/grouper"
	"github.com/ShayCichocki/quoteflow/internal/logging"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// outcome is one settled subtask within a group.
type outcome struct {
	result models.TaskResult
	cached bool
}

// Run executes plan. Groups run strictly in order; subtasks inside a group
// run concurrently. Subtask failures are recorded in the report and never
// stop siblings.
//
// If ctx is canceled or the run timeout expires, in-flight subtasks are
// abandoned, no further group starts, and every unfinished subtask gets a
// timeout or canceled result. The partial report is returned together with
// an error wrapping ErrRunAborted and the context error.
func (e *Executor) Run(ctx context.Context, plan models.Plan) (*Report, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := e.logger.WithField(logging.FieldRunID, runID)

	if e.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.runTimeout)
		defer cancel()
	}

	ctx, span := e.startRunSpan(ctx, runID, len(plan))

	qc := e.cache
	if qc == nil {
		qc = cache.NewTurn(cache.WithMetrics(e.metrics), cache.WithLogger(log))
	}

	rep := &Report{
		RunID:   runID,
		Results: make([]models.TaskResult, len(plan)),
		Cached:  make([]bool, len(plan)),
		Groups:  grouper.GroupPlan(plan, e.classifier),
		Context: make(map[string]any),
	}
	done := make([]bool, len(plan))

	log.WithFields(logrus.Fields{"subtasks": len(plan), "groups": len(rep.Groups)}).Info("run started")
	e.emit(Event{Kind: EventRunStarted, RunID: runID, Groups: rep.Groups})

	for g, group := range rep.Groups {
		if ctx.Err() != nil {
			break
		}
		e.runGroup(ctx, log, qc, plan, g, group, rep, done, runID)
	}

	var runErr error
	if err := ctx.Err(); err != nil {
		runErr = fmt.Errorf("%w: %w", ErrRunAborted, err)
		kind := contextErrorKind(err)
		for i, st := range plan {
			if !done[i] {
				rep.Results[i] = models.Failed(st.Text, kind, "not started: "+err.Error())
			}
		}
	}

	rep.summarize()
	rep.Duration = time.Since(start)

	outcomeLabel := "completed"
	if runErr != nil {
		outcomeLabel = string(contextErrorKind(ctx.Err()))
	}
	e.metrics.RecordRun(outcomeLabel, rep.Duration)
	e.endRunSpan(span, rep, runErr)
	e.emit(Event{Kind: EventRunFinished, RunID: runID, Summary: &rep.Summary})

	log.WithFields(logrus.Fields{
		"succeeded":  rep.Summary.Succeeded,
		"failed":     rep.Summary.Failed,
		"cache_hits": rep.Summary.CacheHits,
		"duration":   rep.Duration.String(),
	}).Info("run finished")

	return rep, runErr
}

// runGroup executes one group and folds its outcomes into rep once every
// member has settled.
func (e *Executor) runGroup(ctx context.Context, log logrus.FieldLogger, qc *cache.QuoteCache, plan models.Plan, g int, group models.Group, rep *Report, done []bool, runID string) {
	ctx, span := e.startGroupSpan(ctx, g, len(group))
	defer span.End()

	glog := log.WithField(logging.FieldGroup, g)
	glog.WithField("size", len(group)).Debug("group started")
	e.metrics.RecordGroup(len(group))

	// Every member sees the same view of earlier groups.
	shared := make(map[string]any, len(rep.Context))
	for k, v := range rep.Context {
		shared[k] = v
	}
	recent := e.recent(rep, done)

	outcomes := make([]outcome, len(group))
	var eg errgroup.Group
	if e.maxParallel > 0 {
		eg.SetLimit(e.maxParallel)
	}
	for k, idx := range group {
		stepID := StepID(g, k, len(group))
		eg.Go(func() error {
			ev := Event{RunID: runID, Group: g, Index: idx, StepID: stepID, Subtask: plan[idx].Text}
			ev.Kind = EventStepStarted
			e.emit(ev)

			o := e.runSubtask(ctx, glog, qc, plan[idx], stepID, shared, recent)
			outcomes[k] = o

			ev.Kind, ev.Result, ev.Cached = EventStepFinished, &o.result, o.cached
			e.emit(ev)
			return nil
		})
	}
	_ = eg.Wait()

	for k, idx := range group {
		o := outcomes[k]
		stepID := StepID(g, k, len(group))

		rep.Results[idx] = o.result
		rep.Cached[idx] = o.cached
		done[idx] = true

		if o.result.Success {
			rep.Context[ContextKey(stepID)] = o.result.Payload
		} else {
			rep.Context[ContextKey(stepID)] = o.result.Error
		}
		rep.Context[SubtaskContextKey(stepID)] = plan[idx].Text

		if opt, ok := o.result.Payload.(models.OptimizationResult); ok && o.result.Success {
			rep.Optimizations = append(rep.Optimizations, opt)
			if !o.cached {
				e.persistOptimization(ctx, glog, opt)
			}
		}
		if o.result.Success && !o.cached {
			e.persistQuote(ctx, glog, o.result)
		}
	}
}

// recent returns the last recentWindow finished results in plan order.
func (e *Executor) recent(rep *Report, done []bool) []models.TaskResult {
	if e.recentWindow == 0 {
		return nil
	}
	var out []models.TaskResult
	for i := len(done) - 1; i >= 0 && len(out) < e.recentWindow; i-- {
		if done[i] {
			out = append(out, rep.Results[i])
		}
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

func (e *Executor) persistQuote(ctx context.Context, log logrus.FieldLogger, r models.TaskResult) {
	if e.quoteSink == nil {
		return
	}
	// Persist even if the run was canceled after the result settled.
	if err := e.quoteSink.SaveQuote(context.WithoutCancel(ctx), r); err != nil {
		log.WithError(err).WithField(logging.FieldStepID, r.StepID).Warn("save quote failed")
	}
}

func (e *Executor) persistOptimization(ctx context.Context, log logrus.FieldLogger, r models.OptimizationResult) {
	if e.optimizationSink == nil {
		return
	}
	if err := e.optimizationSink.SaveOptimization(context.WithoutCancel(ctx), r); err != nil {
		log.WithError(err).WithField("optimization_id", r.ID).Warn("save optimization failed")
	}
}
