package executor

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ShayCichocki/quoteflow/pkg/models"
)

// startRunSpan starts a span for a whole run.
func (e *Executor) startRunSpan(ctx context.Context, runID string, planSize int) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "quoteflow.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("plan.size", planSize),
	))
}

// endRunSpan ends the run span with summary info.
func (e *Executor) endRunSpan(span trace.Span, rep *Report, err error) {
	span.SetAttributes(
		attribute.Int("run.groups", len(rep.Groups)),
		attribute.Int("run.succeeded", rep.Summary.Succeeded),
		attribute.Int("run.failed", rep.Summary.Failed),
		attribute.Int("run.cache_hits", rep.Summary.CacheHits),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// startGroupSpan starts a span for one dependency group.
func (e *Executor) startGroupSpan(ctx context.Context, g, size int) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "quoteflow.group", trace.WithAttributes(
		attribute.Int("group.index", g),
		attribute.Int("group.size", size),
	))
}

// startSubtaskSpan starts a span for one subtask.
func (e *Executor) startSubtaskSpan(ctx context.Context, stepID string, index int) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "quoteflow.subtask", trace.WithAttributes(
		attribute.String("step.id", stepID),
		attribute.Int("step.index", index),
	))
}

// endSubtaskSpan ends a subtask span with its outcome.
func (e *Executor) endSubtaskSpan(span trace.Span, result models.TaskResult, cached bool) {
	span.SetAttributes(
		attribute.String("tool.name", result.ToolName),
		attribute.Bool("step.success", result.Success),
		attribute.Bool("step.cached", cached),
	)
	if result.Error != nil {
		span.SetAttributes(attribute.String("step.error_kind", string(result.Error.Kind)))
		span.SetStatus(codes.Error, result.Error.Message)
	}
	span.End()
}
