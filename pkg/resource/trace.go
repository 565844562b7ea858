package resource

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used with otel.Tracer.
const TracerName = "github.com/vango-dev/stakeview/pkg/resource"

func startSpan(ctx context.Context, tracer trace.Tracer, name string, gen Generation) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return tracer.Start(ctx, "resource.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("resource.name", name),
			attribute.Int64("resource.generation", int64(gen)),
		),
	)
}

func endSpan(span trace.Span, err error, stale bool) {
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.Bool("resource.stale", stale))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
