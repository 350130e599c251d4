package otel_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	adapter "github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/otel"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

// --- Test tracer setup ---

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return exporter
}

// --- Mock repository ---

type mockRepo struct {
	requests map[string]domain.ExchangeRequest
}

func newMockRepo() *mockRepo {
	return &mockRepo{requests: make(map[string]domain.ExchangeRequest)}
}

func (m *mockRepo) Create(_ context.Context, r domain.ExchangeRequest) error {
	m.requests[r.ID] = r
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (domain.ExchangeRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return domain.ExchangeRequest{}, &domain.NotFoundError{Resource: "exchange request", ID: id}
	}
	return r, nil
}

func (m *mockRepo) List(_ context.Context, _ domain.ExchangeFilter) ([]domain.ExchangeRequest, error) {
	out := make([]domain.ExchangeRequest, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRepo) CountPending(_ context.Context, clientID string, kind domain.ExchangeKind) (int, error) {
	var n int
	for _, r := range m.requests {
		if r.ClientID == clientID && r.Kind == kind && r.Pending() {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) Decide(_ context.Context, r domain.ExchangeRequest) error {
	stored, ok := m.requests[r.ID]
	if !ok {
		return &domain.NotFoundError{Resource: "exchange request", ID: r.ID}
	}
	if !stored.Pending() {
		return &domain.InvalidStateError{Action: domain.ActionApprove, Current: stored.Status}
	}
	m.requests[r.ID] = r
	return nil
}

func (m *mockRepo) SoftDelete(_ context.Context, id string, _ time.Time) error {
	delete(m.requests, id)
	return nil
}

func pendingRequest(id string) domain.ExchangeRequest {
	return domain.ExchangeRequest{
		ID: id, Kind: domain.KindExercise, ClientID: "client-ana",
		OriginalItemID: "squat", SuggestedItem: "bike", Reason: "ombro",
		Status: domain.StatusPending, RequestedAt: time.Now().UTC(),
	}
}

// --- Tests ---

func TestTracingExchangeRepository_Create_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	repo := adapter.NewTracingExchangeRepository(newMockRepo())

	if err := repo.Create(context.Background(), pendingRequest("x-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "ExchangeRepository.Create" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "ExchangeRepository.Create")
	}

	assertAttribute(t, spans[0], "exchange.id", "x-1")
	assertAttribute(t, spans[0], "exchange.kind", "exercise")
	assertAttribute(t, spans[0], "client.id", "client-ana")
}

func TestTracingExchangeRepository_GetByID_RecordsError(t *testing.T) {
	exporter := setupTestTracer(t)
	repo := adapter.NewTracingExchangeRepository(newMockRepo())

	_, err := repo.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want %v", spans[0].Status.Code, codes.Error)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected error event on span")
	}
}

func TestTracingExchangeRepository_List_RecordsResultCount(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingExchangeRepository(inner)
	inner.requests["x-1"] = pendingRequest("x-1")
	inner.requests["x-2"] = pendingRequest("x-2")

	status := domain.StatusPending
	requests, err := repo.List(context.Background(), domain.ExchangeFilter{
		Kinds:  []domain.ExchangeKind{domain.KindExercise},
		Status: &status,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(requests) != 2 {
		t.Errorf("got %d requests, want 2", len(requests))
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}

	assertAttribute(t, spans[0], "result.count", "2")
	assertAttribute(t, spans[0], "filter.status", "pending")
	assertAttribute(t, spans[0], "filter.kinds", `["exercise"]`)
}

func TestTracingExchangeRepository_Decide_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingExchangeRepository(inner)
	inner.requests["x-1"] = pendingRequest("x-1")

	decided := inner.requests["x-1"].Decided(domain.StatusApproved, "acc-trainer", "", time.Now())
	if err := repo.Decide(context.Background(), decided); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := repo.Decide(context.Background(), decided)
	var ise *domain.InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("second Decide: expected *InvalidStateError, got %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2", len(spans))
	}
	if spans[0].Name != "ExchangeRepository.Decide" {
		t.Errorf("span name = %q, want %q", spans[0].Name, "ExchangeRepository.Decide")
	}
	assertAttribute(t, spans[0], "exchange.status", "approved")
	assertAttribute(t, spans[0], "exchange.decided_by", "acc-trainer")
	if spans[1].Status.Code != codes.Error {
		t.Errorf("second span status = %v, want %v", spans[1].Status.Code, codes.Error)
	}
}

func TestTracingExchangeRepository_CountPending_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	inner := newMockRepo()
	repo := adapter.NewTracingExchangeRepository(inner)
	inner.requests["x-1"] = pendingRequest("x-1")

	n, err := repo.CountPending(context.Background(), "client-ana", domain.KindExercise)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("CountPending = %d, want 1", n)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "result.count", "1")
}

func TestTracingExchangeRepository_SoftDelete_RecordsSpan(t *testing.T) {
	exporter := setupTestTracer(t)
	repo := adapter.NewTracingExchangeRepository(newMockRepo())

	if err := repo.SoftDelete(context.Background(), "x-9", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	assertAttribute(t, spans[0], "exchange.id", "x-9")
}

// assertAttribute checks that a span has an attribute with the given key and string value.
func assertAttribute(t *testing.T, span tracetest.SpanStub, key, want string) {
	t.Helper()
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			got := attr.Value.Emit()
			if got != want {
				t.Errorf("attribute %q = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %q not found on span %q", key, span.Name)
}
