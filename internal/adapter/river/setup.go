package river

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
)

// DefaultReplenishInterval is how often the quota sweep runs.
const DefaultReplenishInterval = time.Hour

// Options wires the workers to the application.
type Options struct {
	Dispatcher Dispatcher
	// Replenisher is optional; without it no periodic sweep is scheduled.
	Replenisher       Replenisher
	ReplenishInterval time.Duration
	MaxWorkers        int
	Logger            *slog.Logger
}

// Setup creates a River client with the event and quota workers registered
// and runs River's internal migrations. The caller must call client.Start()
// to begin processing jobs and client.Stop() for graceful shutdown.
func Setup(ctx context.Context, db *sql.DB, opts Options) (*Client, error) {
	if opts.Dispatcher == nil {
		return nil, errors.New("river setup: dispatcher is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 2
	}
	if opts.ReplenishInterval <= 0 {
		opts.ReplenishInterval = DefaultReplenishInterval
	}

	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}
	driver := riversqlite.New(db)

	workers := river.NewWorkers()
	river.AddWorker(workers, &EventWorker{dispatcher: opts.Dispatcher, logger: opts.Logger})

	var periodic []*river.PeriodicJob
	if opts.Replenisher != nil {
		river.AddWorker(workers, &QuotaWorker{replenisher: opts.Replenisher, logger: opts.Logger})
		periodic = append(periodic, river.NewPeriodicJob(
			river.PeriodicInterval(opts.ReplenishInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return QuotaReplenishArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		))
	}

	client, err := river.NewClient(driver, &river.Config{
		Logger: opts.Logger,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: opts.MaxWorkers},
		},
		PeriodicJobs: periodic,
		Workers:      workers,
	})
	if err != nil {
		return nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, nil
}

// Migrate creates or upgrades River's own tables (river_job, river_leader,
// ...). They are versioned separately from the application's goose
// migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	migrator, err := rivermigrate.New(riversqlite.New(db), nil)
	if err != nil {
		return fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("running river migrations: %w", err)
	}
	return nil
}
