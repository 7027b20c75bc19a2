package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"kalys/internal/config"
	"kalys/internal/logger"
)

// Init installs an OTLP/HTTP tracer provider when tracing is enabled and
// returns its shutdown function. Disabled tracing, or an exporter that
// cannot be created, leaves the global no-op provider in place.
func Init(ctx context.Context, cfg config.TracingConfig, log logger.ILogger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !cfg.Enabled {
		log.Debug("tracer", "tracing disabled", nil)
		return noop
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Warn("tracer", "failed to create OTLP exporter, tracing disabled", map[string]interface{}{"error": err})
		return noop
	}

	name := cfg.ServiceName
	if name == "" {
		name = "kalys"
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(name),
		)),
	)
	otel.SetTracerProvider(tp)
	log.Info("tracer", "OpenTelemetry tracer initialized", map[string]interface{}{"endpoint": cfg.Endpoint})
	return tp.Shutdown
}
