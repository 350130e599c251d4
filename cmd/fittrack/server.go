package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/auth"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/fsm"
	handler "github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/http"
	otelad "github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/otel"
	redisad "github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/redis"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/river"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/sqlite"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/app"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/config"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/eventbus"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/observer"
)

// storesOf binds every repository port to store. exchanges may be a
// decorator around store.
func storesOf(store *sqlite.Store, exchanges domain.ExchangeRepository) app.Stores {
	return app.Stores{
		Tx:            store,
		Exchanges:     exchanges,
		Accounts:      store,
		Companions:    store,
		Clients:       store,
		Plans:         store,
		Training:      store,
		History:       store,
		Notifications: store,
	}
}

// application is the wired service: adapters, application services and
// the HTTP router.
type application struct {
	router http.Handler
	queue  *river.Client
	// cleanup runs in reverse order of acquisition.
	cleanup []func(context.Context) error
}

func (a *application) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// build wires the full stack from cfg.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *application, err error) {
	a := &application{}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	// --- Telemetry ---
	providers, err := otelad.Setup(ctx, otelad.Config{
		ServiceName:    "fittrack",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		Exporter:       cfg.Telemetry.Exporter,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.cleanup = append(a.cleanup, providers.Shutdown)

	// --- Adapters (out) ---
	db, err := otelad.OpenDB(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	store, err := sqlite.NewFromDB(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("database: %w", err)
	}
	a.cleanup = append(a.cleanup, func(context.Context) error { return store.Close() })

	bus := eventbus.New(logger,
		eventbus.WithObserverTimeout(cfg.Events.ObserverTimeout),
		eventbus.WithMeterProvider(providers.MeterProvider),
	)
	var sink observer.Sink
	if cfg.Redis.Addr != "" {
		client, err := redisad.NewClient(ctx, redisad.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		a.cleanup = append(a.cleanup, func(context.Context) error { return client.Close() })
		sink = redisad.NewSink(client, cfg.Redis.Stream)
	}
	observer.Register(bus, observer.Repositories{History: store, Clients: store, Notifications: store}, sink)

	stores := storesOf(store, otelad.NewTracingExchangeRepository(store))
	access := app.NewAccessRegistry()

	// Inline mode dispatches on the bus after commit. Queue mode enqueues a
	// River job; the worker dispatches on the same bus.
	var (
		publisher domain.EventPublisher = bus
		training  *app.TrainingService
	)
	if cfg.Events.Mode == config.EventsQueue {
		a.queue, err = river.Setup(ctx, store.DB(), river.Options{
			Dispatcher: bus,
			Replenisher: river.ReplenisherFunc(func(ctx context.Context) (int, error) {
				return training.ReplenishQuotas(ctx)
			}),
			ReplenishInterval: cfg.Events.ReplenishInterval,
			MaxWorkers:        cfg.Events.Workers,
			Logger:            logger,
		})
		if err != nil {
			return nil, fmt.Errorf("queue: %w", err)
		}
		publisher = river.NewPublisher(a.queue)
	}
	publisher = otelad.NewTracingPublisher(publisher, cfg.Events.Mode, providers.MeterProvider)

	// --- Application ---
	training = app.NewTrainingService(stores, publisher, access, logger)
	services := handler.Services{
		Accounts:  app.NewAccountService(stores, access, logger),
		Exchanges: app.NewExchangeService(stores, publisher, fsm.New(), access, app.QuotaPolicy{ConsumeOnReject: cfg.Quota.ConsumeOnReject}, logger),
		Training:  training,
	}

	tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TTL)
	if err != nil {
		return nil, fmt.Errorf("auth: %w (set auth.secret or FITTRACK_AUTH_SECRET)", err)
	}

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware("fittrack", otelchi.WithChiRoutes(router)))
	router.Use(requestLogger(logger))
	router.Use(tokens.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	api := humachi.New(router, huma.DefaultConfig("fittrack", version))
	handler.Register(api, services)
	a.router = router

	return a, nil
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// run serves the API until ctx is cancelled, then shuts down gracefully.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			logger.Error("cleanup", "error", err)
		}
	}()

	if a.queue != nil {
		if err := a.queue.Start(ctx); err != nil {
			return fmt.Errorf("starting queue: %w", err)
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fittrack listening", "addr", cfg.HTTP.Addr, "events", cfg.Events.Mode)
		logger.Info("API docs available", "url", "http://localhost"+cfg.HTTP.Addr+"/docs")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			logger.Error("queue shutdown", "error", err)
		}
	}

	logger.Info("stopped")
	return nil
}
