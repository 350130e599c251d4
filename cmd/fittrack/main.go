package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/auth"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/river"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/sqlite"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/app"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/config"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/logging"
)

const version = "0.1.0"

type cli struct {
	Config  string           `help:"Config file, or directory holding config.yaml." default:"." type:"path"`
	Version kong.VersionFlag `help:"Print the version and exit."`

	Serve       serveCmd       `cmd:"" default:"1" help:"Run the HTTP API (default)."`
	Migrate     migrateCmd     `cmd:"" help:"Apply database migrations and exit."`
	Token       tokenCmd       `cmd:"" help:"Mint a development bearer token for an account."`
	CreateAdmin createAdminCmd `cmd:"" name:"createadmin" help:"Create a staff admin account."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var c cli
	kctx := kong.Parse(&c,
		kong.Name("fittrack"),
		kong.Description("Workout and diet exchange request service."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	cfg, err := config.Load(c.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	if err := kctx.Run(&cfg, logger); err != nil {
		logger.Error("command failed", "command", kctx.Command(), "error", err)
		stop()
		closer.Close()
		os.Exit(1)
	}
}

type serveCmd struct{}

func (serveCmd) Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	return run(ctx, *cfg, logger)
}

type migrateCmd struct{}

func (migrateCmd) Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := river.Migrate(ctx, store.DB()); err != nil {
		return err
	}
	logger.Info("migrations applied", "database", cfg.Database.Path)
	return nil
}

type tokenCmd struct {
	Account string        `required:"" help:"Account ID to use as the token subject."`
	TTL     time.Duration `help:"Token lifetime; defaults to auth.ttl."`
}

func (c tokenCmd) Run(cfg *config.Config) error {
	ttl := cfg.Auth.TTL
	if c.TTL > 0 {
		ttl = c.TTL
	}
	tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, ttl)
	if err != nil {
		return err
	}
	raw, err := tokens.Issue(c.Account, time.Now())
	if err != nil {
		return err
	}
	fmt.Println(raw)
	return nil
}

type createAdminCmd struct {
	Username  string `required:"" help:"Login name."`
	Email     string `help:"Contact e-mail."`
	FirstName string `help:"First name."`
	LastName  string `help:"Last name."`
}

func (c createAdminCmd) Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	accounts := app.NewAccountService(storesOf(store, store), app.NewAccessRegistry(), logger)
	reg, err := accounts.Bootstrap(ctx, app.RegisterInput{
		Username:  c.Username,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	})
	if err != nil {
		return err
	}
	fmt.Println(reg.Account.ID)
	return nil
}
