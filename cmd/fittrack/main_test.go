package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/auth"
	handler "github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/http"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/config"
)

func testConfig(t *testing.T, mode string) config.Config {
	t.Helper()
	t.Setenv("FITTRACK_DATABASE_PATH", t.TempDir()+"/test.db")
	t.Setenv("FITTRACK_AUTH_SECRET", "smoke-secret")
	t.Setenv("FITTRACK_EVENTS_MODE", mode)

	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	return resp
}

// TestSmoke wires the full stack like serve and verifies it responds.
func TestSmoke(t *testing.T) {
	cfg := testConfig(t, config.EventsInline)

	a, err := build(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	if a.queue != nil {
		t.Error("inline mode should not create a queue")
	}

	srv := httptest.NewServer(a.router)
	t.Cleanup(srv.Close)

	resp := get(t, srv.URL+"/healthz", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// Self sign-up, then read the account back with a minted token.
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/api/v1/accounts",
		strings.NewReader(`{"username":"ana"}`))
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	var account handler.AccountResponse
	if err := json.NewDecoder(resp.Body).Decode(&account); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TTL)
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	token, err := tokens.Issue(account.ID, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	resp = get(t, srv.URL+"/api/v1/me", token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var me handler.AccountResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me.Role != "client" {
		t.Errorf("Role = %q, want %q", me.Role, "client")
	}
}

func TestBuild_QueueMode(t *testing.T) {
	cfg := testConfig(t, config.EventsQueue)

	a, err := build(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	if a.queue == nil {
		t.Fatal("queue mode should create a River client")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.queue.Start(ctx); err != nil {
		t.Fatalf("starting queue: %v", err)
	}
	if err := a.queue.Stop(ctx); err != nil {
		t.Errorf("stopping queue: %v", err)
	}
}

func TestBuild_RequiresSecret(t *testing.T) {
	cfg := testConfig(t, config.EventsInline)
	cfg.Auth.Secret = ""

	if _, err := build(context.Background(), cfg, discardLogger()); err == nil {
		t.Fatal("expected error without auth secret")
	}
}
