package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ShayCichocki/quoteflow/internal/cache"
	"github.com/ShayCichocki/quoteflow/internal/logging"
	"github.com/ShayCichocki/quoteflow/internal/optimizer"
	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// runSubtask resolves one subtask through the cache. A hit performs no
// interpreter or tool call.
func (e *Executor) runSubtask(ctx context.Context, log logrus.FieldLogger, qc *cache.QuoteCache, st models.Subtask, stepID string, shared map[string]any, recent []models.TaskResult) outcome {
	ctx, span := e.startSubtaskSpan(ctx, stepID, st.Index)
	slog := log.WithField(logging.FieldStepID, stepID)
	start := time.Now()

	if err := ctx.Err(); err != nil {
		r := abandoned(st.Text, stepID, err)
		e.endSubtaskSpan(span, r, false)
		return outcome{result: r}
	}

	result, cached, err := qc.GetOrCompute(ctx, st.Text, func(ctx context.Context) (models.TaskResult, error) {
		return e.execute(ctx, st.Text, stepID, shared, recent), nil
	})
	if err != nil {
		// execute never fails; keep the result well-formed regardless.
		result = models.Failed(st.Text, models.ErrorKindToolExecution, err.Error())
		result.StepID = stepID
	}

	elapsed := time.Since(start)
	if !cached {
		kind := ""
		if result.Error != nil {
			kind = string(result.Error.Kind)
		}
		e.metrics.RecordSubtask(result.ToolName, result.Success, kind, elapsed)
	}

	fields := logrus.Fields{
		logging.FieldTool: result.ToolName,
		"cached":          cached,
		"success":         result.Success,
		"duration":        elapsed.String(),
	}
	if result.Error != nil {
		slog.WithFields(fields).WithField("error_kind", result.Error.Kind).Warn(result.Error.Message)
	} else {
		slog.WithFields(fields).Debug("subtask finished")
	}

	e.endSubtaskSpan(span, result, cached)
	return outcome{result: result, cached: cached}
}

// execute runs interpret and invoke under the subtask timeout. If ctx ends
// first the call is abandoned and a timeout or canceled result is returned.
func (e *Executor) execute(ctx context.Context, text, stepID string, shared map[string]any, recent []models.TaskResult) models.TaskResult {
	if e.subtaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.subtaskTimeout)
		defer cancel()
	}

	resultCh := make(chan models.TaskResult, 1)
	go func() {
		resultCh <- e.call(ctx, text, stepID, shared, recent)
	}()

	select {
	case r := <-resultCh:
		return r
	case <-ctx.Done():
		return abandoned(text, stepID, ctx.Err())
	}
}

// call performs the interpreter and tool calls for one subtask.
func (e *Executor) call(ctx context.Context, text, stepID string, shared map[string]any, recent []models.TaskResult) models.TaskResult {
	tc, err := e.interpreter.Interpret(ctx, text, shared, recent)
	if err != nil {
		if ctx.Err() != nil {
			return abandoned(text, stepID, ctx.Err())
		}
		return stamp(models.Failed(text, models.ErrorKindInterpretation, err.Error()), stepID, tc)
	}
	if tc.Name == "" {
		return stamp(models.Failed(text, models.ErrorKindInterpretation, "no tool selected"), stepID, tc)
	}

	if tc.Name == optimizer.ToolName && e.optimizer != nil {
		return e.optimize(ctx, text, stepID, tc)
	}

	if !e.invoker.Has(tc.Name) {
		return stamp(models.Failed(text, models.ErrorKindUnknownTool, fmt.Sprintf("tool %q does not exist", tc.Name)), stepID, tc)
	}

	payload, err := e.invoker.Invoke(ctx, tc.Name, tc.Args)
	if err != nil {
		if ctx.Err() != nil {
			return abandoned(text, stepID, ctx.Err())
		}
		return stamp(models.Failed(text, models.ErrorKindToolExecution, err.Error()), stepID, tc)
	}

	return stamp(models.TaskResult{
		Subtask:     text,
		Success:     true,
		Payload:     payload,
		CompletedAt: time.Now(),
	}, stepID, tc)
}

// optimize handles a budget proposal in-process.
func (e *Executor) optimize(ctx context.Context, text, stepID string, tc ToolCall) models.TaskResult {
	req, err := optimizer.ParseRequest(tc.Args, e.room)
	if err != nil {
		return stamp(models.Failed(text, models.ErrorKindToolExecution, err.Error()), stepID, tc)
	}

	res, err := e.optimizer.Optimize(ctx, req)
	if err != nil {
		kind := optimizer.ErrorKind(err)
		if kind.Transient() {
			return abandoned(text, stepID, ctx.Err())
		}
		return stamp(models.Failed(text, kind, err.Error()), stepID, tc)
	}

	return stamp(models.TaskResult{
		Subtask:     text,
		Success:     true,
		Payload:     res,
		CompletedAt: time.Now(),
	}, stepID, tc)
}

func stamp(r models.TaskResult, stepID string, tc ToolCall) models.TaskResult {
	r.StepID = stepID
	r.ToolName = tc.Name
	r.Args = tc.Args
	return r
}

// abandoned builds the result for work cut short by ctx.
func abandoned(text, stepID string, err error) models.TaskResult {
	if err == nil {
		err = context.Canceled
	}
	r := models.Failed(text, contextErrorKind(err), err.Error())
	r.StepID = stepID
	return r
}

func contextErrorKind(err error) models.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorKindTimeout
	}
	return models.ErrorKindCanceled
}
