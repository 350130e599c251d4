package observer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

// Sink pushes a stored notification to an external channel.
type Sink interface {
	Push(ctx context.Context, n domain.Notification) error
}

// Notification stores a user-facing message for the client and forwards it
// to the optional sink.
type Notification struct {
	repo domain.NotificationRepository
	sink Sink
}

// NewNotification creates the notification observer. sink may be nil.
func NewNotification(repo domain.NotificationRepository, sink Sink) *Notification {
	return &Notification{repo: repo, sink: sink}
}

func (n *Notification) ObserverID() string { return "notification" }

func (n *Notification) OnEvent(ctx context.Context, e domain.Event) error {
	message := Message(e)
	if message == "" || e.ClientID == "" {
		return nil
	}

	note := domain.Notification{
		ID:          uuid.NewString(),
		EventID:     e.ID,
		RecipientID: e.ClientID,
		Kind:        e.Type,
		Message:     message,
		CreatedAt:   e.OccurredAt,
	}
	if err := n.repo.CreateNotification(ctx, note); err != nil {
		return fmt.Errorf("storing notification: %w", err)
	}

	if n.sink != nil {
		if err := n.sink.Push(ctx, note); err != nil {
			return fmt.Errorf("pushing notification: %w", err)
		}
	}
	return nil
}

// Message renders the text shown to the client for e, or "" for events that
// do not notify anyone.
func Message(e domain.Event) string {
	switch e.Type {
	case domain.EventExchangeApproved:
		if e.Exchange == nil {
			return ""
		}
		return fmt.Sprintf("Your %s exchange request was approved.", e.Exchange.Kind)
	case domain.EventExchangeRejected:
		if e.Exchange == nil {
			return ""
		}
		return fmt.Sprintf("Your %s exchange request was rejected: %s", e.Exchange.Kind, e.Reason)
	case domain.EventWorkoutAssigned:
		if e.Workout == nil {
			return ""
		}
		return fmt.Sprintf("New workout assigned: %q.", e.Workout.Name)
	case domain.EventDietAssigned:
		if e.Diet == nil {
			return ""
		}
		return fmt.Sprintf("New diet assigned: %q.", e.Diet.Name)
	}
	return ""
}
