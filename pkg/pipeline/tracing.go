package pipeline

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "meetsync.pipeline"

// Span attribute keys
const (
	attrRunID       = "run_id"
	attrMeetingUUID = "meeting_uuid"
	attrTopic       = "topic"
	attrOutcome     = "outcome"
)

// tracer wraps the otel tracer for pipeline spans. With no tracer provider
// configured the default no-op provider makes all of this free.
type tracer struct {
	t trace.Tracer
}

func newTracer() *tracer {
	return &tracer{t: otel.Tracer(tracerName)}
}

func (t *tracer) startRun(ctx context.Context, runID string) (context.Context, trace.Span) {
	return t.t.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String(attrRunID, runID)))
}

func (t *tracer) startMeeting(ctx context.Context, uuid, topic string) (context.Context, trace.Span) {
	return t.t.Start(ctx, "pipeline.meeting",
		trace.WithAttributes(
			attribute.String(attrMeetingUUID, uuid),
			attribute.String(attrTopic, topic),
		))
}

func endSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String(attrOutcome, outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
