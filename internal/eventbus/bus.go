// Package eventbus dispatches committed domain events to side-effect observers.
//
// A Bus is built once at startup and passed to whatever publishes or consumes
// events. Every observer runs in isolation: a panic, an error or a timeout in
// one observer is recorded in the dispatch Report and never reaches the
// publisher or the remaining observers.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

const meterName = "github.com/lucasdaniellopes/fittrack-monorepo/internal/eventbus"

// DefaultObserverTimeout bounds a single observer invocation.
const DefaultObserverTimeout = 5 * time.Second

// Observer reacts to published events. Implementations must be safe to run
// more than once for the same event.
type Observer interface {
	ObserverID() string
	OnEvent(ctx context.Context, event domain.Event) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc struct {
	ID string
	Fn func(ctx context.Context, event domain.Event) error
}

func (f ObserverFunc) ObserverID() string { return f.ID }

func (f ObserverFunc) OnEvent(ctx context.Context, event domain.Event) error {
	return f.Fn(ctx, event)
}

// ObserverFailure records one observer that did not complete.
type ObserverFailure struct {
	ObserverID string
	Err        error
}

// Report summarizes one dispatch.
type Report struct {
	EventID   string
	EventType domain.EventType
	Delivered []string
	Failures  []ObserverFailure
}

// Err joins the failures, or returns nil when every observer succeeded.
func (r Report) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("observer %q: %w", f.ObserverID, f.Err))
	}
	return errors.Join(errs...)
}

type subscription struct {
	observer Observer
	// all subscribes to every event type; otherwise only to types.
	all   bool
	types []domain.EventType
}

func (s subscription) wants(t domain.EventType) bool {
	return s.all || slices.Contains(s.types, t)
}

// Option configures a Bus.
type Option func(*Bus)

// WithObserverTimeout overrides DefaultObserverTimeout.
func WithObserverTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(b *Bus) {
		b.meterProvider = mp
	}
}

// Bus is an in-process publish/subscribe hub.
type Bus struct {
	mu            sync.RWMutex
	subs          []subscription
	timeout       time.Duration
	logger        *slog.Logger
	meterProvider metric.MeterProvider
	dispatches    metric.Int64Counter
}

// Compile-time check: Bus implements domain.EventPublisher.
var _ domain.EventPublisher = (*Bus)(nil)

// New creates an empty bus.
func New(logger *slog.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		timeout: DefaultObserverTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.meterProvider == nil {
		b.meterProvider = otel.GetMeterProvider()
	}

	counter, err := b.meterProvider.Meter(meterName).Int64Counter(
		"fittrack.observer.dispatches",
		metric.WithDescription("Observer invocations by outcome."),
	)
	if err != nil {
		logger.Warn("creating dispatch counter", "error", err)
	}
	b.dispatches = counter
	return b
}

// Attach subscribes o to the given event types, or to every type when none
// are given. Attaching an observer that is already attached has no effect.
func (b *Bus) Attach(o Observer, types ...domain.EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.indexOf(o.ObserverID()) >= 0 {
		return
	}
	b.subs = append(b.subs, subscription{
		observer: o,
		all:      len(types) == 0,
		types:    slices.Clone(types),
	})
}

// Detach removes o from every subscription. Unknown observers are ignored.
func (b *Bus) Detach(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := b.indexOf(o.ObserverID()); i >= 0 {
		b.subs = slices.Delete(b.subs, i, i+1)
	}
}

// Subscribe adds a single event type to o's subscription, attaching o if needed.
func (b *Bus) Subscribe(t domain.EventType, o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(o.ObserverID())
	if i < 0 {
		b.subs = append(b.subs, subscription{observer: o, types: []domain.EventType{t}})
		return
	}
	if !b.subs[i].wants(t) {
		b.subs[i].types = append(b.subs[i].types, t)
	}
}

// Unsubscribe removes a single event type from o's subscription. An observer
// left without any type is detached. An observer attached to every type is
// narrowed to all the other known types.
func (b *Bus) Unsubscribe(t domain.EventType, o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := b.indexOf(o.ObserverID())
	if i < 0 {
		return
	}
	sub := &b.subs[i]
	if sub.all {
		sub.all = false
		sub.types = slices.Clone(domain.EventTypes)
	}
	sub.types = slices.DeleteFunc(sub.types, func(x domain.EventType) bool { return x == t })
	if len(sub.types) == 0 {
		b.subs = slices.Delete(b.subs, i, i+1)
	}
}

// Observers returns the IDs of the observers subscribed to t, in dispatch order.
func (b *Bus) Observers(t domain.EventType) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var ids []string
	for _, s := range b.subs {
		if s.wants(t) {
			ids = append(ids, s.observer.ObserverID())
		}
	}
	return ids
}

func (b *Bus) indexOf(id string) int {
	return slices.IndexFunc(b.subs, func(s subscription) bool {
		return s.observer.ObserverID() == id
	})
}

// Notify dispatches event to its subscribers in subscription order and
// reports the outcome of each. Failures are logged here.
func (b *Bus) Notify(ctx context.Context, event domain.Event) Report {
	b.mu.RLock()
	targets := make([]Observer, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(event.Type) {
			targets = append(targets, s.observer)
		}
	}
	b.mu.RUnlock()

	report := Report{EventID: event.ID, EventType: event.Type}
	for _, o := range targets {
		id := o.ObserverID()
		if err := b.invoke(ctx, o, event); err != nil {
			report.Failures = append(report.Failures, ObserverFailure{ObserverID: id, Err: err})
			b.record(ctx, id, "failed")
			b.logger.ErrorContext(ctx, "observer failed",
				"observer", id,
				"event_id", event.ID,
				"event_type", string(event.Type),
				"error", err,
			)
			continue
		}
		report.Delivered = append(report.Delivered, id)
		b.record(ctx, id, "delivered")
	}
	return report
}

// Publish implements domain.EventPublisher for in-process delivery. Observer
// failures are already logged by Notify and never fail the publisher.
func (b *Bus) Publish(ctx context.Context, event domain.Event) error {
	b.Notify(ctx, event)
	return nil
}

// Dispatch delivers event and returns the joined observer failures, so a
// queue worker can retry the delivery.
func (b *Bus) Dispatch(ctx context.Context, event domain.Event) error {
	return b.Notify(ctx, event).Err()
}

// invoke runs one observer with a deadline. A late observer is abandoned:
// its goroutine finishes in the background and its result is dropped.
func (b *Bus) invoke(ctx context.Context, o Observer, event domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- o.OnEvent(ctx, event)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("gave up after %s: %w", b.timeout, ctx.Err())
	}
}

func (b *Bus) record(ctx context.Context, observerID, outcome string) {
	if b.dispatches == nil {
		return
	}
	b.dispatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("observer", observerID),
		attribute.String("outcome", outcome),
	))
}
