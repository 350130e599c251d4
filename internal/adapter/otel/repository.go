package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

const tracerName = "github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/otel"

// TracingExchangeRepository wraps a domain.ExchangeRepository with
// OpenTelemetry tracing. Each method creates a span with semantic attributes
// and records errors.
type TracingExchangeRepository struct {
	next   domain.ExchangeRepository
	tracer trace.Tracer
}

// Compile-time check: TracingExchangeRepository implements domain.ExchangeRepository.
var _ domain.ExchangeRepository = (*TracingExchangeRepository)(nil)

// NewTracingExchangeRepository creates a tracing decorator around the given repository.
func NewTracingExchangeRepository(next domain.ExchangeRepository) *TracingExchangeRepository {
	return &TracingExchangeRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingExchangeRepository) Create(ctx context.Context, req domain.ExchangeRequest) error {
	ctx, span := r.tracer.Start(ctx, "ExchangeRepository.Create",
		trace.WithAttributes(
			attribute.String("exchange.id", req.ID),
			attribute.String("exchange.kind", string(req.Kind)),
			attribute.String("client.id", req.ClientID),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, req)
	recordError(span, err)
	return err
}

func (r *TracingExchangeRepository) GetByID(ctx context.Context, id string) (domain.ExchangeRequest, error) {
	ctx, span := r.tracer.Start(ctx, "ExchangeRepository.GetByID",
		trace.WithAttributes(attribute.String("exchange.id", id)),
	)
	defer span.End()

	req, err := r.next.GetByID(ctx, id)
	recordError(span, err)
	return req, err
}

func (r *TracingExchangeRepository) List(ctx context.Context, filter domain.ExchangeFilter) ([]domain.ExchangeRequest, error) {
	ctx, span := r.tracer.Start(ctx, "ExchangeRepository.List",
		trace.WithAttributes(
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	if filter.ClientID != "" {
		span.SetAttributes(attribute.String("filter.client_id", filter.ClientID))
	}
	if filter.Status != nil {
		span.SetAttributes(attribute.String("filter.status", string(*filter.Status)))
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = string(k)
		}
		span.SetAttributes(attribute.StringSlice("filter.kinds", kinds))
	}

	requests, err := r.next.List(ctx, filter)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int("result.count", len(requests)))
	}
	return requests, err
}

func (r *TracingExchangeRepository) CountPending(ctx context.Context, clientID string, kind domain.ExchangeKind) (int, error) {
	ctx, span := r.tracer.Start(ctx, "ExchangeRepository.CountPending",
		trace.WithAttributes(
			attribute.String("client.id", clientID),
			attribute.String("exchange.kind", string(kind)),
		),
	)
	defer span.End()

	n, err := r.next.CountPending(ctx, clientID, kind)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int("result.count", n))
	}
	return n, err
}

func (r *TracingExchangeRepository) Decide(ctx context.Context, req domain.ExchangeRequest) error {
	ctx, span := r.tracer.Start(ctx, "ExchangeRepository.Decide",
		trace.WithAttributes(
			attribute.String("exchange.id", req.ID),
			attribute.String("exchange.status", string(req.Status)),
			attribute.String("exchange.decided_by", req.DecidedBy),
		),
	)
	defer span.End()

	err := r.next.Decide(ctx, req)
	recordError(span, err)
	return err
}

func (r *TracingExchangeRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	ctx, span := r.tracer.Start(ctx, "ExchangeRepository.SoftDelete",
		trace.WithAttributes(attribute.String("exchange.id", id)),
	)
	defer span.End()

	err := r.next.SoftDelete(ctx, id, at)
	recordError(span, err)
	return err
}

func recordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
