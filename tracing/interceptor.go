// Package tracing wires OpenTelemetry spans and invocation-ID
// correlation around a command's remote callback: a Context attribute
// stamped once per invocation and carried through every attempt's span.
package tracing

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	command "github.com/JohnPlummer/jp-go-command"
)

// invocationIDKey is the Context attribute name used to correlate every
// attempt of one Execute call.
const invocationIDKey = "invocationId"

// StampInvocationID wraps cb so the first attempt of a command execution
// assigns a UUID into the shared Context under invocationIDKey; every
// later attempt (and the tracing wrapper below, if composed after this
// one) observes the same value.
func StampInvocationID[T any](cb command.RemoteCallback[T]) command.RemoteCallback[T] {
	return func(ctx context.Context, cmdCtx *command.Context, baseURI string) (T, error) {
		if cmdCtx.Get(invocationIDKey) == nil {
			cmdCtx.Set(invocationIDKey, uuid.New().String())
		}
		return cb(ctx, cmdCtx, baseURI)
	}
}

// WithSpan wraps cb so every attempt runs inside its own OpenTelemetry
// span, named "<command>.attempt", tagged with the resolved base URI and
// invocation ID (if StampInvocationID has already run), and marked as an
// error span when the attempt fails.
func WithSpan[T any](tracerName string, cb command.RemoteCallback[T]) command.RemoteCallback[T] {
	tracer := otel.Tracer(tracerName)
	return func(ctx context.Context, cmdCtx *command.Context, baseURI string) (T, error) {
		attrs := []attribute.KeyValue{
			attribute.String("command.name", cmdCtx.CommandName()),
			attribute.String("command.baseUri", baseURI),
		}
		if id, ok := cmdCtx.Get(invocationIDKey).(string); ok {
			attrs = append(attrs, attribute.String("command.invocationId", id))
		}

		spanCtx, span := tracer.Start(ctx, cmdCtx.CommandName()+".attempt", trace.WithAttributes(attrs...))
		defer span.End()

		result, err := cb(spanCtx, cmdCtx, baseURI)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result, err
	}
}

// InvocationID reads the invocation ID stamped by StampInvocationID, or
// "" if none has been stamped yet.
func InvocationID(cmdCtx *command.Context) string {
	id, _ := cmdCtx.Get(invocationIDKey).(string)
	return id
}
