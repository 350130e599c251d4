package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasdaniellopes/fittrack-monorepo/internal/domain"
)

type fakeStream struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	return redis.NewStringResult("1-0", f.err)
}

func notification() domain.Notification {
	return domain.Notification{
		ID:          "n-1",
		EventID:     "evt-1",
		RecipientID: "client-ana",
		Kind:        domain.EventExchangeApproved,
		Message:     "Your exercise exchange request was approved.",
		CreatedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSink_Push(t *testing.T) {
	stream := &fakeStream{}
	sink := NewSink(stream, "")

	require.NoError(t, sink.Push(context.Background(), notification()))

	require.Len(t, stream.args, 1)
	args := stream.args[0]
	assert.Equal(t, DefaultStream, args.Stream)
	assert.True(t, args.Approx)
	values, ok := args.Values.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "client-ana", values["recipient_id"])
	assert.Equal(t, "exchange_approved", values["kind"])
	assert.Equal(t, "2026-03-01T10:00:00Z", values["created_at"])
}

func TestSink_PushError(t *testing.T) {
	sink := NewSink(&fakeStream{err: errors.New("connection refused")}, "custom")

	err := sink.Push(context.Background(), notification())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom")
}
