package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

// Dispatcher delivers an event to the observers and reports their failures.
// eventbus.Bus satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.Event) error
}

// Replenisher starts new quota windows for clients whose window elapsed.
type Replenisher interface {
	ReplenishQuotas(ctx context.Context) (int, error)
}

// ReplenisherFunc adapts a function to Replenisher.
type ReplenisherFunc func(ctx context.Context) (int, error)

func (f ReplenisherFunc) ReplenishQuotas(ctx context.Context) (int, error) { return f(ctx) }

// EventWorker processes domain event jobs from the River queue. A failed
// observer fails the job, so River retries the whole delivery; observers
// are idempotent per event id.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]

	dispatcher Dispatcher
	logger     *slog.Logger
}

// Work processes a single event job.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	event, err := job.Args.Event()
	if err != nil {
		// A payload that cannot be decoded never will be.
		return river.JobCancel(err)
	}

	w.logger.InfoContext(ctx, "processing event",
		"event_id", event.ID,
		"event_type", string(event.Type),
		"client_id", event.ClientID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return w.dispatcher.Dispatch(ctx, event)
}

// QuotaReplenishArgs triggers a quota replenishment sweep.
type QuotaReplenishArgs struct{}

// Kind returns the unique job type identifier used by River's job routing.
func (QuotaReplenishArgs) Kind() string { return "quota.replenish" }

// QuotaWorker runs the periodic replenishment sweep.
type QuotaWorker struct {
	river.WorkerDefaults[QuotaReplenishArgs]

	replenisher Replenisher
	logger      *slog.Logger
}

// Work processes a single sweep.
func (w *QuotaWorker) Work(ctx context.Context, job *river.Job[QuotaReplenishArgs]) error {
	n, err := w.replenisher.ReplenishQuotas(ctx)
	if err != nil {
		return err
	}
	w.logger.DebugContext(ctx, "quota sweep finished", "replenished", n, "job_id", job.ID)
	return nil
}
