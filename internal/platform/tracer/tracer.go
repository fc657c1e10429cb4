// Package tracer provides a lightweight tracing abstraction for the registry.
//
// The registry emits spans around the authorization gate and each resumption
// without importing OpenTelemetry outside this package.
//
// Implementations:
//   - NoopTracer: for tests
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording any error that occurred.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans for distributed tracing.
// Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span with the given name and attributes.
	// The returned context carries the span; the span must be ended.
	//
	// Example:
	//   ctx, span := tr.Start(ctx, tracer.SpanGateRequest,
	//       tracer.String(tracer.AttrDID, did.String()),
	//   )
	//   defer span.End(nil)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names used by the registry.
const (
	SpanGateRequest  = "registry.gate.request"
	SpanGateDispatch = "registry.gate.dispatch"
	SpanResume       = "registry.resume"
	SpanCommit       = "registry.commit"
)

// Attribute keys used by the registry.
const (
	AttrDID       = "registry.did"
	AttrVCID      = "registry.vc_id"
	AttrRequestID = "registry.request_id"
	AttrOperation = "registry.operation"
	AttrAuthority = "registry.authority"
	AttrVerdict   = "registry.verdict"
	AttrOutcome   = "registry.outcome"
)

// Event names used by the registry.
const (
	EventContinuationStored = "continuation.stored"
	EventContinuationTaken  = "continuation.taken"
)
