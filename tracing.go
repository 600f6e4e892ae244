// Tracing support for assistant runs, tool dispatches and vision calls.
package pricelens

import (
	"context"
)

// Tracer defines the interface for tracing assistant operations.
type Tracer interface {
	// StartTrace creates a new trace context for one ask.
	// Returns a context with the trace attached and a function to end it.
	StartTrace(ctx context.Context, name string, opts ...TraceOption) (context.Context, func())

	// StartSpan creates a new span within the current trace.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, func())

	// Flush ensures all pending traces are sent.
	Flush(ctx context.Context) error
}

// TraceOption configures trace creation.
type TraceOption func(*TraceConfig)

// SpanOption configures span creation.
type SpanOption func(*SpanConfig)

// TraceConfig holds configuration for a trace.
type TraceConfig struct {
	// SessionID groups related traces (one conversation session).
	SessionID string
	// Input is the initial input for the trace.
	Input any
	// Metadata stores arbitrary key-value data.
	Metadata map[string]any
}

// SpanConfig holds configuration for a span.
type SpanConfig struct {
	// Type specifies the span type (span, generation, tool).
	Type SpanType
	// Input is the input data for this operation.
	Input any
	// Metadata stores arbitrary key-value data.
	Metadata map[string]any
}

// SpanType represents the kind of operation a span covers.
type SpanType string

const (
	// SpanTypeSpan is a generic span for non-LLM operations.
	SpanTypeSpan SpanType = "span"
	// SpanTypeGeneration tracks LLM calls.
	SpanTypeGeneration SpanType = "generation"
	// SpanTypeTool tracks tool dispatches.
	SpanTypeTool SpanType = "tool"
)

// WithTraceSessionID tags the trace with the conversation session id.
func WithTraceSessionID(sessionID string) TraceOption {
	return func(c *TraceConfig) {
		c.SessionID = sessionID
	}
}

// WithTraceInput records the trace's initial input.
func WithTraceInput(input any) TraceOption {
	return func(c *TraceConfig) {
		c.Input = input
	}
}

// WithTraceMetadata merges metadata into the trace.
func WithTraceMetadata(metadata map[string]any) TraceOption {
	return func(c *TraceConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]any)
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// WithSpanType sets the span type.
func WithSpanType(t SpanType) SpanOption {
	return func(c *SpanConfig) {
		c.Type = t
	}
}

// WithSpanInput records the span's input.
func WithSpanInput(input any) SpanOption {
	return func(c *SpanConfig) {
		c.Input = input
	}
}

// NoOpTracer is a Tracer that does nothing. Used when tracing is disabled.
type NoOpTracer struct{}

func (n *NoOpTracer) StartTrace(ctx context.Context, name string, opts ...TraceOption) (context.Context, func()) {
	return ctx, func() {}
}

func (n *NoOpTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, func()) {
	return ctx, func() {}
}

func (n *NoOpTracer) Flush(ctx context.Context) error {
	return nil
}
