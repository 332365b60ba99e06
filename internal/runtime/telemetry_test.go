package runtime

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/loqalabs/loqa-karaoke/internal/config"
)

func TestSetupTelemetryInstallsTracer(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.TraceExporter = "none"
	tel, err := setupTelemetry(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("setup telemetry: %v", err)
	}
	t.Cleanup(func() {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		_ = tel.Shutdown(context.Background())
	})
	if tel.metrics == nil {
		t.Fatal("expected prometheus handler")
	}

	_, span := otel.Tracer("test").Start(context.Background(), "karaoke.handle")
	defer span.End()
	if !span.SpanContext().IsValid() || !span.IsRecording() {
		t.Fatal("expected a sampled span from the global provider")
	}
}

func TestSpanExporterSelection(t *testing.T) {
	cases := []struct {
		exporter string
		endpoint string
		want     string
	}{
		{"auto", "", "stdout"},
		{"auto", "collector:4317", "otlp"},
		{"stdout", "collector:4317", "stdout"},
		{"none", "collector:4317", "none"},
	}
	for _, tc := range cases {
		cfg := config.Default().Telemetry
		cfg.TraceExporter = tc.exporter
		cfg.OTLPEndpoint = tc.endpoint
		exp, got, err := newSpanExporter(context.Background(), cfg)
		if err != nil {
			t.Fatalf("%s/%s: %v", tc.exporter, tc.endpoint, err)
		}
		if got != tc.want {
			t.Fatalf("%s/%s: expected %s exporter, got %s", tc.exporter, tc.endpoint, tc.want, got)
		}
		if (exp == nil) != (tc.want == "none") {
			t.Fatalf("%s/%s: unexpected exporter %v", tc.exporter, tc.endpoint, exp)
		}
		if exp != nil {
			_ = exp.Shutdown(context.Background())
		}
	}
}
