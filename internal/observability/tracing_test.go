package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/signalsfoundry/maritime-simulator/internal/config"
	"github.com/signalsfoundry/maritime-simulator/internal/logging"
)

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("SIM_TRACING_ENABLED", "TRUE")
	t.Setenv("SIM_TRACING_EXPORTER", "OTLP")
	t.Setenv("SIM_TRACING_SERVICE_NAME", "")
	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("SIM_OTLP_ENDPOINT", "collector:4317")

	cfg, err := TracingConfigFromEnv()
	if err != nil {
		t.Fatalf("TracingConfigFromEnv: %v", err)
	}
	if !cfg.Enabled || cfg.Exporter != ExporterOTLP || cfg.ServiceName != defaultServiceName || cfg.SampleRatio != 0.25 || cfg.Endpoint != "collector:4317" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestTracingConfigFromEnvReportsBadValues(t *testing.T) {
	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "7")
	cfg, err := TracingConfigFromEnv()
	if !errors.Is(err, ErrInvalidTracingConfig) || cfg.SampleRatio != 1 {
		t.Fatalf("out-of-range ratio = %v, %v, want default 1 and ErrInvalidTracingConfig", cfg.SampleRatio, err)
	}

	t.Setenv("SIM_TRACING_SAMPLE_RATIO", "")
	t.Setenv("SIM_TRACING_ENABLED", "on")
	cfg, err = TracingConfigFromEnv()
	if !errors.Is(err, config.ErrInvalidValue) || cfg.Enabled {
		t.Fatalf("malformed enabled flag = %v, %v, want disabled and ErrInvalidValue", cfg.Enabled, err)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestInitTracingValidates(t *testing.T) {
	for _, cfg := range []TracingConfig{
		{Enabled: true, Exporter: "zipkin"},
		{Enabled: true, Exporter: ExporterStdout, SampleRatio: 1.5},
	} {
		if _, err := InitTracing(context.Background(), cfg, nil); !errors.Is(err, ErrInvalidTracingConfig) {
			t.Fatalf("InitTracing(%+v) err = %v, want ErrInvalidTracingConfig", cfg, err)
		}
	}
}

func TestStdoutExporterWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		Exporter:    ExporterStdout,
		ServiceName: "tracing-test",
		SampleRatio: 1,
		Output:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitTracing(context.Background(), TracingConfig{}, nil)
	})

	_, span := otel.Tracer("test").Start(context.Background(), "run.step")
	span.End()
	ShutdownWithTimeout(context.Background(), shutdown, nil)

	out := buf.String()
	if !strings.Contains(out, `"run.step"`) || !strings.Contains(out, "tracing-test") {
		t.Fatalf("exported span missing name or service:\n%s", out)
	}
}
