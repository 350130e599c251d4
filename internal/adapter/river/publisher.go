package river

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/riverqueue/river"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// EventJobArgs carries a committed domain event to the queue. River stores
// it as JSON in its job table. Payload is the full event snapshot, so the
// worker never needs to query the database to rebuild it.
type EventJobArgs struct {
	EventID  string          `json:"event_id"`
	Type     string          `json:"type"`
	ClientID string          `json:"client_id"`
	Payload  json.RawMessage `json:"payload"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EventJobArgs) Kind() string { return "event.published" }

// Event decodes the snapshot carried by the job.
func (a EventJobArgs) Event() (domain.Event, error) {
	var event domain.Event
	if err := codec.Unmarshal(a.Payload, &event); err != nil {
		return domain.Event{}, fmt.Errorf("decoding event %s: %w", a.EventID, err)
	}
	return event, nil
}

// NewEventJobArgs encodes event into job arguments.
func NewEventJobArgs(event domain.Event) (EventJobArgs, error) {
	payload, err := codec.Marshal(event)
	if err != nil {
		return EventJobArgs{}, fmt.Errorf("encoding event %s: %w", event.ID, err)
	}
	return EventJobArgs{
		EventID:  event.ID,
		Type:     string(event.Type),
		ClientID: event.ClientID,
		Payload:  payload,
	}, nil
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
// Observers then run in the worker, with River retrying failed deliveries.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a domain event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	args, err := NewEventJobArgs(event)
	if err != nil {
		return err
	}
	if _, err := p.client.Insert(ctx, args, nil); err != nil {
		return fmt.Errorf("enqueuing event job: %w", err)
	}
	return nil
}
