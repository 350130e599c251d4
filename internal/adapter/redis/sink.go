// Package redis pushes stored notifications onto a Redis stream so that
// delivery channels (push, e-mail, websockets) can consume them.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
	"github.com/lucasdaniellopes/fittrack-monorepo/internal/observer"
)

// DefaultStream is the stream notifications are appended to.
const DefaultStream = "fittrack:notifications"

// defaultMaxLen caps the stream length (approximate trimming).
const defaultMaxLen = 10000

// Config holds the connection parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// streamWriter is the part of the Redis client the sink uses.
type streamWriter interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Sink appends notifications to a Redis stream.
type Sink struct {
	client streamWriter
	stream string
}

var _ observer.Sink = (*Sink)(nil)

// NewClient creates a Redis client and checks the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewSink creates a sink writing to stream, or DefaultStream when empty.
func NewSink(client streamWriter, stream string) *Sink {
	if stream == "" {
		stream = DefaultStream
	}
	return &Sink{client: client, stream: stream}
}

// Push appends n to the stream.
func (s *Sink) Push(ctx context.Context, n domain.Notification) error {
	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: defaultMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":           n.ID,
			"event_id":     n.EventID,
			"recipient_id": n.RecipientID,
			"kind":         string(n.Kind),
			"message":      n.Message,
			"created_at":   n.CreatedAt.UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("appending to stream %s: %w", s.stream, err)
	}
	return nil
}
