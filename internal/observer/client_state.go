package observer

import (
	"context"
	"fmt"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

var activities = map[domain.EventType]domain.Activity{
	domain.EventWorkoutAssigned:  domain.ActivityWorkout,
	domain.EventDietAssigned:     domain.ActivityDiet,
	domain.EventExchangeApproved: domain.ActivityExchange,
	domain.EventExchangeRejected: domain.ActivityExchange,
}

// ClientState keeps the client's "last assigned" and "last exchange" dates current.
type ClientState struct {
	clients domain.ClientRepository
}

// NewClientState creates the client state observer.
func NewClientState(clients domain.ClientRepository) *ClientState {
	return &ClientState{clients: clients}
}

func (c *ClientState) ObserverID() string { return "client_state" }

func (c *ClientState) OnEvent(ctx context.Context, e domain.Event) error {
	activity, ok := activities[e.Type]
	if !ok || e.ClientID == "" {
		return nil
	}
	if err := c.clients.TouchActivity(ctx, e.ClientID, activity, e.OccurredAt); err != nil {
		return fmt.Errorf("updating client %s: %w", activity, err)
	}
	return nil
}
