package statemachine

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/amp-labs/sequence/statemachine"

// startTickSpan creates the root span for one tick.
// Uses the global tracer provider installed by the telemetry package.
// The caller is responsible for calling endTickSpan.
//
//nolint:spancheck // Span lifecycle managed by caller
func startTickSpan(ctx context.Context, machine, machineID, state string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "sequence.tick")
	span.SetAttributes(
		attribute.String("machine", sanitizeMachine(machine)),
		attribute.String("machine_id", machineID),
		attribute.String("state.from", state),
	)

	return ctx, span
}

// addFiringEvent records a rule firing on the tick span.
func addFiringEvent(span trace.Span, record FiringRecord) {
	span.AddEvent("rule.fired", trace.WithAttributes(
		attribute.Int("rule.index", record.RuleIndex),
		attribute.String("rule.kind", record.Kind.String()),
		attribute.String("rule.description", record.Description),
		attribute.String("state.from", record.From),
		attribute.String("state.to", record.To),
	))
}

func endTickSpan(span trace.Span, state string, err error) {
	span.SetAttributes(attribute.String("state.to", state))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "completed")
	}

	span.End()
}
