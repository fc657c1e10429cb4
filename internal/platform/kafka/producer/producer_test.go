package producer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
}

func TestToRecordOrdersHeaders(t *testing.T) {
	record := toRecord(&Message{
		Topic: "vcregistry.authority.requests",
		Key:   []byte("req-1"),
		Value: []byte(`{"request_id":"req-1"}`),
		Headers: map[string]string{
			"outbox_id":      "o-1",
			"event_type":     "authorization.requested",
			"aggregate_type": "authorization_request",
		},
	})

	require.Len(t, record.Headers, 3)
	assert.Equal(t, "aggregate_type", record.Headers[0].Key)
	assert.Equal(t, "event_type", record.Headers[1].Key)
	assert.Equal(t, "outbox_id", record.Headers[2].Key)
	assert.Equal(t, "authorization_request", string(record.Headers[0].Value))
	assert.Equal(t, "req-1", string(record.Key))
}

// The client dials lazily, so an unreachable seed broker is enough to
// exercise the closed state.
func TestProduceAfterClose(t *testing.T) {
	p, err := New(DefaultConfig([]string{"127.0.0.1:1"}), nil)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err = p.Produce(context.Background(), &Message{Topic: "t", Value: []byte("x")})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, p.Check(context.Background()), ErrClosed)
}
