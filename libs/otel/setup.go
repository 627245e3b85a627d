package otelx

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/md-rashed-zaman/serviceboard/libs/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config selects the exporter. Tracing is off when Endpoint is empty; spans
// are still created so propagation keeps working.
type Config struct {
	ServiceName string
	Version     string
	Environment string
	Endpoint    string // OTLP gRPC host:port
	SampleRatio float64
}

// ConfigFrom reads OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_SAMPLING_RATIO,
// SERVICE_VERSION and DEPLOY_ENV.
func ConfigFrom(src *config.Source, serviceName string) (Config, error) {
	cfg := Config{
		ServiceName: serviceName,
		Version:     src.String("SERVICE_VERSION", "dev"),
		Environment: src.String("DEPLOY_ENV", "local"),
		Endpoint:    src.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		SampleRatio: 1,
	}
	if raw := src.String("OTEL_SAMPLING_RATIO", ""); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > 1 {
			return Config{}, errors.New("OTEL_SAMPLING_RATIO must be a number between 0 and 1")
		}
		cfg.SampleRatio = f
	}
	return cfg, nil
}

// Setup installs the propagators and, when an endpoint is set, a batching
// tracer provider. The returned func flushes and stops it.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	if cfg.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithTimeout(3*time.Second),
	)
	if err != nil {
		return nil, err
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
