package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/maritime-simulator/internal/config"
	"github.com/signalsfoundry/maritime-simulator/internal/logging"
)

// Span exporters understood by InitTracing.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

const (
	defaultServiceName  = "maritime-control"
	defaultOTLPEndpoint = "localhost:4317"
	serviceNamespace    = "maritime-sim"
)

// ErrInvalidTracingConfig is returned by InitTracing for unusable settings.
var ErrInvalidTracingConfig = errors.New("invalid tracing config")

// TracingConfig governs span export for the control server and the run
// controller's lifecycle spans. The zero value disables tracing.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string
	Endpoint    string
	SampleRatio float64

	// Output receives stdout-exporter spans; nil means os.Stderr so spans
	// do not interleave with snapshot output.
	Output io.Writer
}

// TracingConfigFromEnv reads SIM_TRACING_ENABLED, SIM_TRACING_EXPORTER,
// SIM_TRACING_SERVICE_NAME, SIM_TRACING_SAMPLE_RATIO and SIM_OTLP_ENDPOINT.
// Malformed values are reported and replaced by their defaults.
func TracingConfigFromEnv() (TracingConfig, error) {
	enabled, enabledErr := config.Bool("SIM_TRACING_ENABLED", false)
	ratio, ratioErr := config.Float64("SIM_TRACING_SAMPLE_RATIO", 1)
	if ratioErr == nil && (ratio < 0 || ratio > 1) {
		ratioErr = fmt.Errorf("%w: SIM_TRACING_SAMPLE_RATIO %v outside [0,1]", ErrInvalidTracingConfig, ratio)
		ratio = 1
	}
	cfg := TracingConfig{
		Enabled:     enabled,
		ServiceName: config.String("SIM_TRACING_SERVICE_NAME", defaultServiceName),
		Exporter:    strings.ToLower(config.String("SIM_TRACING_EXPORTER", ExporterStdout)),
		Endpoint:    config.String("SIM_OTLP_ENDPOINT", ""),
		SampleRatio: ratio,
	}
	return cfg, errors.Join(enabledErr, ratioErr)
}

// Validate reports settings InitTracing cannot honour.
func (c TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch strings.ToLower(c.Exporter) {
	case "", ExporterStdout, ExporterOTLP, "otlpgrpc":
	default:
		return fmt.Errorf("%w: unsupported exporter %q", ErrInvalidTracingConfig, c.Exporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("%w: sample ratio %v outside [0,1]", ErrInvalidTracingConfig, c.SampleRatio)
	}
	return nil
}

func (c TracingConfig) sampler() sdktrace.Sampler {
	if c.SampleRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
}

// InitTracing installs the global tracer provider and propagators. When
// tracing is disabled a noop provider is installed so spans cost nothing.
// The returned function flushes and stops the provider.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	service := cfg.ServiceName
	if service == "" {
		service = defaultServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", service),
		attribute.String("service.namespace", serviceNamespace),
		attribute.String("service.instance.id", uuid.NewString()),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(cfg.sampler()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", exporterName(cfg.Exporter)),
		logging.String("service_name", service),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func exporterName(s string) string {
	switch strings.ToLower(s) {
	case "", ExporterStdout:
		return ExporterStdout
	default:
		return ExporterOTLP
	}
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	if exporterName(cfg.Exporter) == ExporterStdout {
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		return stdouttrace.New(
			stdouttrace.WithWriter(out),
			stdouttrace.WithoutTimestamps(),
		)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOTLPEndpoint
	}
	return otlptrace.New(ctx, otlptracegrpc.NewClient(
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	))
}

// ShutdownWithTimeout runs shutdown with a five second budget and logs,
// rather than returns, any failure.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
