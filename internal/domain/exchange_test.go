package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

func TestNewExchangeRequest(t *testing.T) {
	before := time.Now().UTC()
	req, err := domain.NewExchangeRequest("id-1", domain.KindExercise, "client-1", "ex-1", "ex-2", "", "ombro")
	after := time.Now().UTC()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Status != domain.StatusPending {
		t.Errorf("Status = %q, want %q", req.Status, domain.StatusPending)
	}
	if req.RespondedAt != nil {
		t.Errorf("RespondedAt = %v, want nil", req.RespondedAt)
	}
	if req.DecidedBy != "" {
		t.Errorf("DecidedBy = %q, want empty", req.DecidedBy)
	}
	if req.RequestedAt.Before(before) || req.RequestedAt.After(after) {
		t.Errorf("RequestedAt = %v, want between %v and %v", req.RequestedAt, before, after)
	}
}

func TestNewExchangeRequest_Validation(t *testing.T) {
	cases := []struct {
		name        string
		original    string
		replacement string
		suggestion  string
		reason      string
		field       string
	}{
		{"blank reason", "ex-1", "ex-2", "", "   ", "reason"},
		{"missing original", "", "ex-2", "", "ombro", "original_item_id"},
		{"no replacement or suggestion", "ex-1", "", " ", "ombro", "replacement_item_id"},
		{"replacement equals original", "ex-1", "ex-1", "", "ombro", "replacement_item_id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.NewExchangeRequest("id", domain.KindMeal, "c", tc.original, tc.replacement, tc.suggestion, tc.reason)
			var vErr *domain.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tc.field {
				t.Errorf("Field = %q, want %q", vErr.Field, tc.field)
			}
		})
	}
}

func TestNewExchangeRequest_SuggestionOnly(t *testing.T) {
	req, err := domain.NewExchangeRequest("id", domain.KindMeal, "c", "meal-1", "", " tapioca ", "lactose")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.SuggestedItem != "tapioca" {
		t.Errorf("SuggestedItem = %q, want %q", req.SuggestedItem, "tapioca")
	}
}

func TestExchangeRequest_Decided(t *testing.T) {
	req, _ := domain.NewExchangeRequest("id", domain.KindExercise, "c", "ex-1", "ex-2", "", "ombro")
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	decided := req.Decided(domain.StatusRejected, "trainer-1", "  keep it  ", at)

	if decided.Status != domain.StatusRejected {
		t.Errorf("Status = %q, want %q", decided.Status, domain.StatusRejected)
	}
	if decided.DecidedBy != "trainer-1" {
		t.Errorf("DecidedBy = %q, want %q", decided.DecidedBy, "trainer-1")
	}
	if decided.RespondedAt == nil || !decided.RespondedAt.Equal(at) {
		t.Errorf("RespondedAt = %v, want %v", decided.RespondedAt, at)
	}
	if decided.ResponseNotes != "keep it" {
		t.Errorf("ResponseNotes = %q, want %q", decided.ResponseNotes, "keep it")
	}
	if !req.Pending() {
		t.Error("original value must stay pending")
	}
}

func TestTransitions_OnlyFromPending(t *testing.T) {
	for _, tr := range domain.Transitions {
		if tr.Src != domain.StatusPending {
			t.Errorf("transition %q leaves %q, only pending may transition", tr.Action, tr.Src)
		}
		if !tr.Dst.Terminal() {
			t.Errorf("transition %q ends in %q, want a terminal status", tr.Action, tr.Dst)
		}
	}
}

func TestTransitions_AllActionsHaveEntries(t *testing.T) {
	for _, action := range []domain.Action{domain.ActionApprove, domain.ActionReject} {
		found := false
		for _, tr := range domain.Transitions {
			if tr.Action == action {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("action %q has no transition defined", action)
		}
	}
}

func TestParseExchangeKind(t *testing.T) {
	if k, err := domain.ParseExchangeKind(" Meal "); err != nil || k != domain.KindMeal {
		t.Errorf("ParseExchangeKind(Meal) = %q, %v", k, err)
	}
	var vErr *domain.ValidationError
	if _, err := domain.ParseExchangeKind("cardio"); !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}
