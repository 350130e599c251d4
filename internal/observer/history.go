// Package observer holds the side-effect handlers attached to the event bus.
// Observers only write derived rows or denormalized fields, never the entity
// that triggered the event, and every write is keyed so redelivery is harmless.
package observer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

// History writes one history entry per event.
type History struct {
	repo domain.HistoryRepository
}

// NewHistory creates the history observer.
func NewHistory(repo domain.HistoryRepository) *History {
	return &History{repo: repo}
}

func (h *History) ObserverID() string { return "history" }

func (h *History) OnEvent(ctx context.Context, e domain.Event) error {
	entry := domain.HistoryEntry{
		ID:        uuid.NewString(),
		EventID:   e.ID,
		ClientID:  e.ClientID,
		CreatedAt: e.OccurredAt,
	}

	switch e.Type {
	case domain.EventWorkoutAssigned:
		if e.Workout == nil {
			return fmt.Errorf("event %s carries no workout", e.ID)
		}
		entry.Kind = domain.HistoryWorkout
		entry.SubjectID = e.Workout.ID
		entry.Notes = e.Workout.Name
	case domain.EventDietAssigned:
		if e.Diet == nil {
			return fmt.Errorf("event %s carries no diet", e.ID)
		}
		entry.Kind = domain.HistoryDiet
		entry.SubjectID = e.Diet.ID
		entry.Notes = e.Diet.Name
	case domain.EventExchangeApproved, domain.EventExchangeRejected:
		if e.Exchange == nil {
			return fmt.Errorf("event %s carries no exchange request", e.ID)
		}
		entry.Kind = domain.HistoryExchange
		entry.SubjectID = e.Exchange.ID
		entry.Notes = fmt.Sprintf("%s exchange %s", e.Exchange.Kind, e.Exchange.Status)
		if e.Reason != "" {
			entry.Notes += ": " + e.Reason
		}
	default:
		return nil
	}

	if err := h.repo.RecordHistory(ctx, entry); err != nil {
		return fmt.Errorf("recording history: %w", err)
	}
	return nil
}
