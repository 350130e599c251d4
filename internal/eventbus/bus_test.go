package eventbus_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/eventbus"
)

type recorder struct {
	id  string
	err error

	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) ObserverID() string { return r.id }

func (r *recorder) OnEvent(_ context.Context, e domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newBus(opts ...eventbus.Option) *eventbus.Bus {
	return eventbus.New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

func approvedEvent() domain.Event {
	return domain.Event{ID: "evt-1", Type: domain.EventExchangeApproved, ClientID: "c-1"}
}

func TestNotify_FailingObserverDoesNotStopOthers(t *testing.T) {
	// Arrange
	bus := newBus()
	failing := &recorder{id: "failing", err: errors.New("smtp down")}
	healthy := &recorder{id: "healthy"}
	bus.Attach(failing)
	bus.Attach(healthy)

	// Act
	report := bus.Notify(context.Background(), approvedEvent())

	// Assert
	assert.Equal(t, 1, healthy.count())
	assert.Equal(t, []string{"healthy"}, report.Delivered)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "failing", report.Failures[0].ObserverID)
	assert.ErrorContains(t, report.Err(), "smtp down")
}

func TestAttach_Idempotent(t *testing.T) {
	bus := newBus()
	obs := &recorder{id: "history"}

	bus.Attach(obs)
	bus.Attach(obs)
	bus.Notify(context.Background(), approvedEvent())

	assert.Equal(t, 1, obs.count())
}

func TestDetach_UnknownObserverIsNoop(t *testing.T) {
	bus := newBus()
	attached := &recorder{id: "attached"}
	bus.Attach(attached)

	assert.NotPanics(t, func() { bus.Detach(&recorder{id: "stranger"}) })

	bus.Detach(attached)
	bus.Notify(context.Background(), approvedEvent())
	assert.Equal(t, 0, attached.count())
}

func TestNotify_SubscriptionOrder(t *testing.T) {
	bus := newBus()
	var (
		mu    sync.Mutex
		order []string
	)
	for _, id := range []string{"first", "second", "third"} {
		bus.Attach(eventbus.ObserverFunc{ID: id, Fn: func(context.Context, domain.Event) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, id)
			return nil
		}})
	}

	bus.Notify(context.Background(), approvedEvent())

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestSubscribe_FiltersByType(t *testing.T) {
	bus := newBus()
	workouts := &recorder{id: "workouts"}
	bus.Subscribe(domain.EventWorkoutAssigned, workouts)
	bus.Subscribe(domain.EventWorkoutAssigned, workouts)

	bus.Notify(context.Background(), approvedEvent())
	bus.Notify(context.Background(), domain.Event{ID: "evt-2", Type: domain.EventWorkoutAssigned})

	assert.Equal(t, 1, workouts.count())
	assert.Equal(t, []string{"workouts"}, bus.Observers(domain.EventWorkoutAssigned))
	assert.Empty(t, bus.Observers(domain.EventDietAssigned))
}

func TestUnsubscribe(t *testing.T) {
	bus := newBus()
	all := &recorder{id: "all"}
	bus.Attach(all)

	bus.Unsubscribe(domain.EventExchangeApproved, all)

	assert.Empty(t, bus.Observers(domain.EventExchangeApproved))
	assert.Equal(t, []string{"all"}, bus.Observers(domain.EventExchangeRejected))

	single := &recorder{id: "single"}
	bus.Subscribe(domain.EventDietAssigned, single)
	bus.Unsubscribe(domain.EventDietAssigned, single)
	assert.Equal(t, []string{"all"}, bus.Observers(domain.EventDietAssigned))
}

func TestNotify_PanickingObserverIsIsolated(t *testing.T) {
	bus := newBus()
	after := &recorder{id: "after"}
	bus.Attach(eventbus.ObserverFunc{ID: "panics", Fn: func(context.Context, domain.Event) error {
		panic("nil map")
	}})
	bus.Attach(after)

	report := bus.Notify(context.Background(), approvedEvent())

	assert.Equal(t, 1, after.count())
	require.Len(t, report.Failures, 1)
	assert.ErrorContains(t, report.Failures[0].Err, "nil map")
}

func TestNotify_SlowObserverIsAbandoned(t *testing.T) {
	bus := newBus(eventbus.WithObserverTimeout(20 * time.Millisecond))
	release := make(chan struct{})
	defer close(release)
	bus.Attach(eventbus.ObserverFunc{ID: "stuck", Fn: func(ctx context.Context, _ domain.Event) error {
		<-release
		return nil
	}})
	fast := &recorder{id: "fast"}
	bus.Attach(fast)

	start := time.Now()
	report := bus.Notify(context.Background(), approvedEvent())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, fast.count())
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0].Err, context.DeadlineExceeded)
}

func TestPublish_NeverFails(t *testing.T) {
	bus := newBus()
	bus.Attach(&recorder{id: "failing", err: errors.New("boom")})

	assert.NoError(t, bus.Publish(context.Background(), approvedEvent()))
	assert.Error(t, bus.Dispatch(context.Background(), approvedEvent()))
}

func TestNotify_RecordsDispatchMetric(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	bus := newBus(eventbus.WithMeterProvider(mp))
	bus.Attach(&recorder{id: "ok"})
	bus.Attach(&recorder{id: "bad", err: errors.New("boom")})

	bus.Notify(context.Background(), approvedEvent())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2)
}
