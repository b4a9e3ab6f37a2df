// Package tracing wires up an OpenTelemetry tracer that writes spans to
// stdout — good enough to see RPC dispatch and per-chunk download attempts
// without standing up a collector.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Setup installs a stdout-exporting tracer provider as the global one and
// returns a shutdown func to flush and release it.
func Setup(serviceName string) (shutdown func(context.Context) error, err error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns a named tracer, for components that want to start their
// own spans (trackersvc's RPC dispatch, download's per-chunk attempts).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
