// Package observability provides optional OpenTelemetry metrics for the
// pipeline. All recorders are no-ops unless explicitly enabled, so the core
// has no hard runtime dependency on a metrics backend.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records pipeline metrics. Use NewMetrics for OTel-backed
// recording or NoopMetrics when disabled.
type MetricsRecorder interface {
	// RecordStageAttempt records one execution attempt of a stage operation.
	RecordStageAttempt(ctx context.Context, stage string, attempt int, err error)

	// RecordCheckpointHit records a stage short-circuited by a checkpoint.
	RecordCheckpointHit(ctx context.Context, stage string)

	// RecordCall records a completed LLM call with its cost and token count.
	RecordCall(ctx context.Context, task, provider, model string, costUSD float64, totalTokens int)
}

// NoopMetrics discards all measurements.
type NoopMetrics struct{}

// RecordStageAttempt implements MetricsRecorder.
func (NoopMetrics) RecordStageAttempt(context.Context, string, int, error) {}

// RecordCheckpointHit implements MetricsRecorder.
func (NoopMetrics) RecordCheckpointHit(context.Context, string) {}

// RecordCall implements MetricsRecorder.
func (NoopMetrics) RecordCall(context.Context, string, string, string, float64, int) {}

type otelMetrics struct {
	stageAttempts  metric.Int64Counter
	stageErrors    metric.Int64Counter
	checkpointHits metric.Int64Counter
	llmCalls       metric.Int64Counter
	llmCost        metric.Float64Counter
	llmTokens      metric.Int64Counter
}

// NewMetrics creates an OTel-backed recorder using the global meter provider.
func NewMetrics() (MetricsRecorder, error) {
	meter := otel.Meter("rivalis")

	stageAttempts, err := meter.Int64Counter("rivalis.stage.attempts",
		metric.WithDescription("Number of stage execution attempts"),
	)
	if err != nil {
		return nil, err
	}

	stageErrors, err := meter.Int64Counter("rivalis.stage.errors",
		metric.WithDescription("Number of failed stage attempts"),
	)
	if err != nil {
		return nil, err
	}

	checkpointHits, err := meter.Int64Counter("rivalis.checkpoint.hits",
		metric.WithDescription("Number of stage executions skipped via checkpoint"),
	)
	if err != nil {
		return nil, err
	}

	llmCalls, err := meter.Int64Counter("rivalis.llm.calls",
		metric.WithDescription("Number of completed LLM calls"),
	)
	if err != nil {
		return nil, err
	}

	llmCost, err := meter.Float64Counter("rivalis.llm.cost_usd",
		metric.WithDescription("Cumulative LLM cost in USD"),
		metric.WithUnit("{USD}"),
	)
	if err != nil {
		return nil, err
	}

	llmTokens, err := meter.Int64Counter("rivalis.llm.tokens",
		metric.WithDescription("Cumulative LLM tokens consumed"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		stageAttempts:  stageAttempts,
		stageErrors:    stageErrors,
		checkpointHits: checkpointHits,
		llmCalls:       llmCalls,
		llmCost:        llmCost,
		llmTokens:      llmTokens,
	}, nil
}

// RecordStageAttempt implements MetricsRecorder.
func (m *otelMetrics) RecordStageAttempt(ctx context.Context, stage string, attempt int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.Int("attempt", attempt),
	)
	m.stageAttempts.Add(ctx, 1, attrs)
	if err != nil {
		m.stageErrors.Add(ctx, 1, attrs)
	}
}

// RecordCheckpointHit implements MetricsRecorder.
func (m *otelMetrics) RecordCheckpointHit(ctx context.Context, stage string) {
	m.checkpointHits.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordCall implements MetricsRecorder.
func (m *otelMetrics) RecordCall(ctx context.Context, task, provider, model string, costUSD float64, totalTokens int) {
	attrs := metric.WithAttributes(
		attribute.String("task", task),
		attribute.String("provider", provider),
		attribute.String("model", model),
	)
	m.llmCalls.Add(ctx, 1, attrs)
	m.llmCost.Add(ctx, costUSD, attrs)
	m.llmTokens.Add(ctx, int64(totalTokens), attrs)
}
