package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

// TracingPublisher wraps a domain.EventPublisher with a producer span per
// event and a fittrack.events.published counter by type, delivery mode and
// outcome.
type TracingPublisher struct {
	next      domain.EventPublisher
	delivery  string
	tracer    trace.Tracer
	published metric.Int64Counter
}

// Compile-time check: TracingPublisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*TracingPublisher)(nil)

// NewTracingPublisher decorates next. delivery names how events leave the
// process ("inline" or "queue"). A nil mp uses the global meter provider.
func NewTracingPublisher(next domain.EventPublisher, delivery string, mp metric.MeterProvider) *TracingPublisher {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	// A failed instrument falls back to a no-op counter inside the SDK.
	published, _ := mp.Meter(tracerName).Int64Counter(PublishedMetric,
		metric.WithDescription("Domain events handed to the publisher, by outcome."),
	)
	return &TracingPublisher{
		next:      next,
		delivery:  delivery,
		tracer:    otel.Tracer(tracerName),
		published: published,
	}
}

func (p *TracingPublisher) Publish(ctx context.Context, event domain.Event) error {
	ctx, span := p.tracer.Start(ctx, "publish "+string(event.Type),
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("event.id", event.ID),
			attribute.String("event.type", string(event.Type)),
			attribute.String("client.id", event.ClientID),
			attribute.String("delivery", p.delivery),
		),
	)
	defer span.End()

	if kind := event.Kind(); kind != "" {
		span.SetAttributes(attribute.String("exchange.kind", string(kind)))
	}

	err := p.next.Publish(ctx, event)
	recordError(span, err)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if p.published != nil {
		p.published.Add(ctx, 1, metric.WithAttributes(
			attribute.String("event.type", string(event.Type)),
			attribute.String("delivery", p.delivery),
			attribute.String("outcome", outcome),
		))
	}
	return err
}
