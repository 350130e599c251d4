package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Exporter names accepted by Config.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Instrument names shared with the packages that record them.
const (
	DispatchesMetric = "fittrack.observer.dispatches"
	PublishedMetric  = "fittrack.events.published"
	DBLatencyMetric  = "db.sql.latency"
)

// dbLatencyBuckets are in milliseconds; local SQLite calls rarely exceed a few.
var dbLatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000}

// Config holds OpenTelemetry provider configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string // "development" or "production"
	Exporter       string // "none", "stdout" or "otlp"
	Insecure       bool   // plain HTTP for OTLP
}

// Providers holds the providers built by Setup. With the "none" exporter
// both are no-ops and Shutdown does nothing.
type Providers struct {
	MeterProvider otelmetric.MeterProvider

	shutdown []func(context.Context) error
}

// Shutdown flushes and stops the providers, tracer first.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Views shapes the service's metrics: the observer and publish counters keep
// only their documented attributes, and SQL latency uses millisecond buckets.
func Views() []metric.View {
	return []metric.View{
		metric.NewView(
			metric.Instrument{Name: DispatchesMetric},
			metric.Stream{AttributeFilter: attribute.NewAllowKeysFilter("observer", "outcome")},
		),
		metric.NewView(
			metric.Instrument{Name: PublishedMetric},
			metric.Stream{AttributeFilter: attribute.NewAllowKeysFilter("event.type", "delivery", "outcome")},
		),
		metric.NewView(
			metric.Instrument{Name: DBLatencyMetric},
			metric.Stream{Aggregation: metric.AggregationExplicitBucketHistogram{Boundaries: dbLatencyBuckets}},
		),
	}
}

// NewMeterProvider builds a meter provider with Views applied and one reader
// per argument.
func NewMeterProvider(res *resource.Resource, readers ...metric.Reader) *metric.MeterProvider {
	opts := []metric.Option{metric.WithView(Views()...)}
	if res != nil {
		opts = append(opts, metric.WithResource(res))
	}
	for _, r := range readers {
		opts = append(opts, metric.WithReader(r))
	}
	return metric.NewMeterProvider(opts...)
}

// Setup builds the tracer and meter providers for cfg.Exporter and registers
// them globally. Shutdown must be called on exit to flush pending telemetry.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	if cfg.Exporter == ExporterNone {
		return &Providers{MeterProvider: noop.NewMeterProvider()}, nil
	}

	spans, metrics, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	tp := trace.NewTracerProvider(trace.WithResource(res), trace.WithBatcher(spans))
	mp := NewMeterProvider(res, metric.NewPeriodicReader(metrics))

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Providers{
		MeterProvider: mp,
		shutdown: []func(context.Context) error{
			func(ctx context.Context) error {
				if err := tp.Shutdown(ctx); err != nil {
					return fmt.Errorf("tracer shutdown: %w", err)
				}
				return nil
			},
			func(ctx context.Context) error {
				if err := mp.Shutdown(ctx); err != nil {
					return fmt.Errorf("meter shutdown: %w", err)
				}
				return nil
			},
		},
	}, nil
}

// newExporters creates the span and metric exporters for cfg.Exporter.
func newExporters(ctx context.Context, cfg Config) (trace.SpanExporter, metric.Exporter, error) {
	switch cfg.Exporter {
	case ExporterOTLP:
		var (
			traceOpts  []otlptracehttp.Option
			metricOpts []otlpmetrichttp.Option
		)
		if cfg.Insecure {
			traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
			metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
		}
		spans, err := otlptracehttp.New(ctx, traceOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("creating otlp span exporter: %w", err)
		}
		metrics, err := otlpmetrichttp.New(ctx, metricOpts...)
		if err != nil {
			_ = spans.Shutdown(ctx)
			return nil, nil, fmt.Errorf("creating otlp metric exporter: %w", err)
		}
		return spans, metrics, nil

	case ExporterStdout:
		spans, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, fmt.Errorf("creating stdout span exporter: %w", err)
		}
		metrics, err := stdoutmetric.New()
		if err != nil {
			return nil, nil, fmt.Errorf("creating stdout metric exporter: %w", err)
		}
		return spans, metrics, nil

	default:
		return nil, nil, fmt.Errorf("unsupported exporter: %q (use %q, %q or %q)",
			cfg.Exporter, ExporterNone, ExporterStdout, ExporterOTLP)
	}
}
