package resource

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Option configures a Scheduler.
type Option func(*options)

type options struct {
	name    string
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	lazy    bool
	deps    []any
	hasDeps bool
}

func defaultOptions() options {
	return options{
		name:   "resource",
		logger: slog.Default(),
	}
}

// WithName labels the scheduler in logs, metrics and spans.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records generations, outcomes and stale discards in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer starts one span per generation.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// Lazy skips the initial Start in New.
func Lazy() Option {
	return func(o *options) {
		o.lazy = true
	}
}

// WithDeps records the initial dependency keys, so that a later Deps call
// with the same keys does not refire.
func WithDeps(keys ...any) Option {
	return func(o *options) {
		o.deps = append([]any(nil), keys...)
		o.hasDeps = true
	}
}

// RefetchOption configures a single Refetch.
type RefetchOption func(*refetchOptions)

type refetchOptions struct {
	retain bool
}

// RetainCurrent keeps the previous data visible while the new generation
// loads (stale-while-revalidate).
func RetainCurrent() RefetchOption {
	return func(o *refetchOptions) {
		o.retain = true
	}
}

// Retain is RetainCurrent when retain is true and a no-op otherwise.
func Retain(retain bool) RefetchOption {
	return func(o *refetchOptions) {
		o.retain = retain
	}
}
