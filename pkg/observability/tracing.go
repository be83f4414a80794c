// Package observability configures OpenTelemetry tracing for resbridge.
//
// Until Initialize is called the global no-op provider is in effect, so
// StartSpan is always safe to call.
package observability

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/resbridge"

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled        bool          `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `yaml:"service_name" json:"service_name" mapstructure:"service_name"`
	ServiceVersion string        `yaml:"service_version" json:"service_version" mapstructure:"service_version"`
	Environment    string        `yaml:"environment" json:"environment" mapstructure:"environment"`
	SamplingRate   float64       `yaml:"sampling_rate" json:"sampling_rate" mapstructure:"sampling_rate"`
	ExporterType   string        `yaml:"exporter" json:"exporter" mapstructure:"exporter"` // "stdout", "stderr" or "none"
	BatchTimeout   time.Duration `yaml:"batch_timeout" json:"batch_timeout" mapstructure:"batch_timeout"`
}

// DefaultTracingConfig returns tracing disabled with sensible values for when it is turned on.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName:    "resbridge",
		ServiceVersion: "dev",
		Environment:    "development",
		SamplingRate:   1.0,
		ExporterType:   "stdout",
		BatchTimeout:   5 * time.Second,
	}
}

// Initialize installs a global tracer provider. A disabled config leaves the
// no-op provider in place.
func Initialize(config TracingConfig) error {
	if !config.Enabled {
		return nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	if config.SamplingRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else if config.SamplingRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}
	switch config.ExporterType {
	case "none":
	case "stdout", "stderr", "":
		exp := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if config.ExporterType == "stderr" {
			exp = append(exp, stdouttrace.WithWriter(os.Stderr))
		}
		exporter, err := stdouttrace.New(exp...)
		if err != nil {
			return fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(config.BatchTimeout)))
	default:
		return fmt.Errorf("unknown trace exporter %q", config.ExporterType)
	}

	Install(sdktrace.NewTracerProvider(opts...))
	return nil
}

// Install makes tp the global tracer provider. Tests use it with a span recorder.
func Install(tp *sdktrace.TracerProvider) {
	mu.Lock()
	provider = tp
	mu.Unlock()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Shutdown flushes and stops the installed provider, if any.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider = nil
	mu.Unlock()
	if tp == nil {
		return nil
	}
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer: %w", err)
	}
	return nil
}

// Tracer returns the resbridge tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan starts a span named "<connector>.<operation>".
func StartSpan(ctx context.Context, connector, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("connector.name", connector),
		attribute.String("connector.operation", operation),
	)
	return Tracer().Start(ctx, connector+"."+operation, trace.WithAttributes(attrs...))
}

// EndSpan records err, if any, and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
