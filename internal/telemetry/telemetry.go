// Package telemetry wires OpenTelemetry tracing for the dashboard.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/joelkehle/hcp-insights"

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Setup installs a global tracer provider. With an OTLP endpoint, spans are
// batched to it over HTTP. Extra options are appended, which lets callers add
// their own span processors.
func Setup(ctx context.Context, serviceName, otlpEndpoint string, opts ...sdktrace.TracerProviderOption) (ShutdownFunc, error) {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = "hcp-insights"
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if endpoint := strings.TrimSpace(otlpEndpoint); endpoint != "" {
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
	} else if len(opts) == 0 {
		return func(context.Context) error { return nil }, nil
	}

	tp := sdktrace.NewTracerProvider(append(tpOpts, opts...)...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the module tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
