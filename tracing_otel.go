// OpenTelemetry tracing implementation exporting over OTLP/HTTP.
package pricelens

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/pricelens/pricelens"

// OTelConfig holds configuration for OTLP trace export.
type OTelConfig struct {
	// Endpoint is the collector base URL (e.g. "https://otel.example.com").
	Endpoint string
	// Headers are added to every export request (auth etc.).
	Headers map[string]string
	// ServiceName identifies the application in traces.
	ServiceName string
	// ServiceVersion tracks the application version.
	ServiceVersion string
	// Environment specifies the deployment environment.
	Environment string
}

// OTelTracer implements the Tracer interface on the OpenTelemetry SDK.
type OTelTracer struct {
	tracer         trace.Tracer
	tracerProvider *sdktrace.TracerProvider
}

// NewOTelTracer creates a tracer exporting to an OTLP/HTTP collector.
func NewOTelTracer(ctx context.Context, cfg OTelConfig) (*OTelTracer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("pricelens: OTel Endpoint is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pricelens"
	}

	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
	}
	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
	}
	if strings.HasPrefix(cfg.Endpoint, "http://") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("pricelens: create OTLP exporter: %w", err)
	}

	res := resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return &OTelTracer{
		tracer:         tp.Tracer(tracerName),
		tracerProvider: tp,
	}, nil
}

// StartTrace creates the root span for one ask.
func (t *OTelTracer) StartTrace(ctx context.Context, name string, opts ...TraceOption) (context.Context, func()) {
	cfg := &TraceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	spanCtx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))

	if cfg.SessionID != "" {
		span.SetAttributes(attribute.String("session.id", cfg.SessionID))
	}
	if cfg.Input != nil {
		span.SetAttributes(attribute.String("gen_ai.prompt", jsonAttr(cfg.Input)))
	}
	for k, v := range cfg.Metadata {
		span.SetAttributes(attribute.String("metadata."+k, jsonAttr(v)))
	}

	return spanCtx, func() { span.End() }
}

// StartSpan creates a child span within the current trace.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, func()) {
	cfg := &SpanConfig{Type: SpanTypeSpan}
	for _, opt := range opts {
		opt(cfg)
	}

	spanCtx, span := t.tracer.Start(ctx, name)

	span.SetAttributes(attribute.String("span.type", string(cfg.Type)))
	if cfg.Input != nil {
		span.SetAttributes(attribute.String("span.input", jsonAttr(cfg.Input)))
	}
	for k, v := range cfg.Metadata {
		span.SetAttributes(attribute.String("metadata."+k, jsonAttr(v)))
	}

	return spanCtx, func() { span.End() }
}

// Flush forces export of all finished spans.
func (t *OTelTracer) Flush(ctx context.Context) error {
	return t.tracerProvider.ForceFlush(ctx)
}

// Shutdown flushes and stops the tracer provider.
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	return t.tracerProvider.Shutdown(ctx)
}

func jsonAttr(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}
