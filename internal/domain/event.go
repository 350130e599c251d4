package domain

import "time"

// EventType names a published domain event. Observers branch on it.
type EventType string

const (
	EventExchangeApproved EventType = "exchange_approved"
	EventExchangeRejected EventType = "exchange_rejected"
	EventWorkoutAssigned  EventType = "workout_assigned"
	EventDietAssigned     EventType = "diet_assigned"
)

// EventTypes lists every event type in publication order of the lifecycle.
var EventTypes = []EventType{
	EventExchangeApproved,
	EventExchangeRejected,
	EventWorkoutAssigned,
	EventDietAssigned,
}

// Event is a snapshot of a committed state change. It carries everything
// observers need so that queued delivery never has to re-read the source row.
type Event struct {
	ID         string
	Type       EventType
	OccurredAt time.Time
	ClientID   string
	ActorID    string

	// Exchange is set for exchange_approved and exchange_rejected.
	Exchange *ExchangeRequest
	// Reason holds the rejection notes.
	Reason string

	Workout *Workout
	Diet    *Diet
}

// Kind returns the exchange kind for exchange events.
func (e Event) Kind() ExchangeKind {
	if e.Exchange == nil {
		return ""
	}
	return e.Exchange.Kind
}

// NewExchangeEvent builds the event announcing a decided exchange request.
func NewExchangeEvent(id string, req ExchangeRequest) Event {
	typ := EventExchangeApproved
	var reason string
	if req.Status == StatusRejected {
		typ = EventExchangeRejected
		reason = req.ResponseNotes
	}
	occurred := time.Now().UTC()
	if req.RespondedAt != nil {
		occurred = *req.RespondedAt
	}
	return Event{
		ID:         id,
		Type:       typ,
		OccurredAt: occurred,
		ClientID:   req.ClientID,
		ActorID:    req.DecidedBy,
		Exchange:   &req,
		Reason:     reason,
	}
}

// NewWorkoutEvent builds the workout_assigned event.
func NewWorkoutEvent(id string, w Workout) Event {
	return Event{
		ID:         id,
		Type:       EventWorkoutAssigned,
		OccurredAt: w.CreatedAt,
		ClientID:   w.ClientID,
		ActorID:    w.AssignedBy,
		Workout:    &w,
	}
}

// NewDietEvent builds the diet_assigned event.
func NewDietEvent(id string, d Diet) Event {
	return Event{
		ID:         id,
		Type:       EventDietAssigned,
		OccurredAt: d.CreatedAt,
		ClientID:   d.ClientID,
		ActorID:    d.AssignedBy,
		Diet:       &d,
	}
}
