package fsm_test

import (
	"context"
	"errors"
	"testing"

	adapter "github.com/lucasdaniellopes/fittrack-monorepo/internal/adapter/fsm"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

func TestValidator_AllTransitions(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	for _, tr := range domain.Transitions {
		dst, err := v.Apply(ctx, tr.Src, tr.Action)
		if err != nil {
			t.Errorf("Apply(%q, %q) unexpected error: %v", tr.Src, tr.Action, err)
			continue
		}
		if dst != tr.Dst {
			t.Errorf("Apply(%q, %q) = %q, want %q", tr.Src, tr.Action, dst, tr.Dst)
		}
	}
}

func TestValidator_TerminalStatesRejectEveryAction(t *testing.T) {
	v := adapter.New()
	ctx := context.Background()

	for _, status := range []domain.ExchangeStatus{domain.StatusApproved, domain.StatusRejected} {
		for _, action := range []domain.Action{domain.ActionApprove, domain.ActionReject} {
			_, err := v.Apply(ctx, status, action)
			var stateErr *domain.InvalidStateError
			if !errors.As(err, &stateErr) {
				t.Fatalf("Apply(%q, %q): expected InvalidStateError, got %v", status, action, err)
			}
			if stateErr.Action != action {
				t.Errorf("action = %q, want %q", stateErr.Action, action)
			}
			if stateErr.Current != status {
				t.Errorf("current = %q, want %q", stateErr.Current, status)
			}
		}
	}
}

func TestValidator_UnknownAction(t *testing.T) {
	v := adapter.New()

	_, err := v.Apply(context.Background(), domain.StatusPending, domain.Action("escalate"))
	var stateErr *domain.InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}
