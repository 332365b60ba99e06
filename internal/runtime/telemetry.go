package runtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"github.com/loqalabs/loqa-karaoke/internal/config"
)

// telemetry owns the process-wide tracer and meter providers. The karaoke
// engine picks them up through the otel globals.
type telemetry struct {
	tracer  *sdktrace.TracerProvider
	meter   *sdkmetric.MeterProvider
	metrics http.Handler
}

func setupTelemetry(ctx context.Context, cfg config.Config, logger *slog.Logger) (*telemetry, error) {
	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tracer, err := newTracerProvider(ctx, cfg.Telemetry, res, logger)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tracer)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	meter, handler := newMeterProvider(res, logger)
	otel.SetMeterProvider(meter)

	return &telemetry{tracer: tracer, meter: meter, metrics: handler}, nil
}

// Shutdown flushes pending spans and stops both providers.
func (t *telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.meter.Shutdown(ctx), t.tracer.Shutdown(ctx))
}

func newResource(ctx context.Context, cfg config.Config) (*resource.Resource, error) {
	corpus := cfg.Karaoke.CorpusPath
	if corpus == "" {
		corpus = "builtin"
	}
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.RuntimeName),
			semconv.ServiceNamespace("loqa"),
			semconv.DeploymentEnvironmentName(cfg.Environment),
			attribute.String("karaoke.corpus", corpus),
			attribute.Bool("karaoke.gateway", cfg.Gateway.Enabled),
		),
	)
}

// newTracerProvider samples by trace_sample_ratio, honouring the parent's
// decision. With trace_exporter "none" spans are still created so event
// timelines carry trace ids, but nothing is exported.
func newTracerProvider(ctx context.Context, cfg config.TelemetryConfig, res *resource.Resource, logger *slog.Logger) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.TraceSampleRatio))),
	}
	exporter, name, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	logger.Info("telemetry initialized",
		slog.String("exporter", name),
		slog.Float64("sample_ratio", cfg.TraceSampleRatio))
	return sdktrace.NewTracerProvider(opts...), nil
}

func newSpanExporter(ctx context.Context, cfg config.TelemetryConfig) (sdktrace.SpanExporter, string, error) {
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	kind := cfg.TraceExporter
	if kind == "" || kind == "auto" {
		kind = "stdout"
		if endpoint != "" {
			kind = "otlp"
		}
	}
	switch kind {
	case "none":
		return nil, kind, nil
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		return exp, kind, err
	default:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		return exp, kind, err
	}
}

// newMeterProvider exports through Prometheus. If the exporter cannot be
// registered metrics are still recorded but /metrics is not served.
func newMeterProvider(res *resource.Resource, logger *slog.Logger) (*sdkmetric.MeterProvider, http.Handler) {
	exporter, err := prometheus.New()
	if err != nil {
		logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
		return sdkmetric.NewMeterProvider(sdkmetric.WithResource(res)), nil
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	), promhttp.Handler()
}
