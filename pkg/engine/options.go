package engine

import (
	"github.com/fluxorio/slotengine/pkg/core"
	"github.com/fluxorio/slotengine/pkg/core/failfast"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an Engine at construction
type Option func(*Engine)

// WithLogger sets the logger receiving scheduling and task events.
// Default: core.NewDefaultLogger().
func WithLogger(logger core.Logger) Option {
	failfast.NotNil(logger, "logger")
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics sink. Default: no-op.
func WithMetrics(metrics Metrics) Option {
	failfast.NotNil(metrics, "metrics")
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithTracerProvider sets the provider used to trace task runs.
// Default: the global otel provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	failfast.NotNil(tp, "tracer provider")
	return func(e *Engine) {
		e.tracer = tp.Tracer(tracerName)
	}
}

// TaskOption configures a single submission
type TaskOption func(*taskOptions)

type taskOptions struct {
	name string
}

// WithName labels the task in logs, errors and spans
func WithName(name string) TaskOption {
	return func(o *taskOptions) {
		o.name = name
	}
}
