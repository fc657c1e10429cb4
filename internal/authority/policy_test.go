package authority

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contract "vcregistry/contracts/authority"
	"vcregistry/internal/platform/kafka/consumer"
	"vcregistry/internal/platform/kafka/producer"
	id "vcregistry/pkg/domain"
)

const (
	alice = "0x00000000000000000000000000000000000000a1"
	bob   = "0x00000000000000000000000000000000000000b0"
	self  = "0x00000000000000000000000000000000000000ff"
)

func mustAddress(t *testing.T, s string) id.Address {
	t.Helper()
	a, err := id.ParseAddress(s)
	require.NoError(t, err)
	return a
}

func TestParsePolicy(t *testing.T) {
	t.Run("parses entries and controllers", func(t *testing.T) {
		p, err := ParsePolicy(" did:x:1=" + alice + "|" + bob + " ; did:x:2=" + bob)
		require.NoError(t, err)

		assert.True(t, p.Allows("did:x:1", mustAddress(t, alice)))
		assert.True(t, p.Allows("did:x:1", mustAddress(t, bob)))
		assert.False(t, p.Allows("did:x:2", mustAddress(t, alice)))
		assert.Equal(t, []id.DID{"did:x:1", "did:x:2"}, p.DIDs())
	})

	t.Run("empty policy denies everything", func(t *testing.T) {
		p, err := ParsePolicy("")
		require.NoError(t, err)
		assert.False(t, p.Allows("did:x:1", mustAddress(t, alice)))
		assert.Empty(t, p.DIDs())
	})

	t.Run("rejects malformed entries", func(t *testing.T) {
		for _, raw := range []string{
			"did:x:1",
			"=" + alice,
			"did:x:1=",
			"did:x:1=0x1234",
		} {
			_, err := ParsePolicy(raw)
			assert.Error(t, err, raw)
		}
	})
}

func TestAuthorityDecide(t *testing.T) {
	p := NewPolicy()
	p.Allow("did:x:1", mustAddress(t, alice))
	a := New(mustAddress(t, self), p, nil)

	assert.True(t, a.Decide(mustAddress(t, self), "did:x:1", mustAddress(t, alice)))
	assert.False(t, a.Decide(mustAddress(t, self), "did:x:1", mustAddress(t, bob)))
	assert.False(t, a.Decide(mustAddress(t, bob), "did:x:1", mustAddress(t, alice)), "addressed elsewhere")
	assert.False(t, a.Decide(mustAddress(t, self), "did:x:2", mustAddress(t, alice)))

	v := a.Answer(contract.Request{RequestID: "r1", Authority: self, DID: "did:x:1", Caller: "garbage"})
	assert.Equal(t, contract.Verdict{RequestID: "r1"}, v)
}

type captureProducer struct {
	msgs []*producer.Message
	err  error
}

func (p *captureProducer) Produce(_ context.Context, msg *producer.Message) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestResponderHandle(t *testing.T) {
	p := NewPolicy()
	p.Allow("did:x:1", mustAddress(t, alice))
	a := New(mustAddress(t, self), p, nil)

	request := func(caller string) *consumer.Message {
		payload, err := json.Marshal(contract.Request{
			RequestID: "req-1",
			Authority: self,
			DID:       "did:x:1",
			Caller:    caller,
			Operation: contract.OperationUploadCredential,
		})
		require.NoError(t, err)
		return &consumer.Message{Value: payload}
	}

	t.Run("publishes the verdict keyed by request id", func(t *testing.T) {
		prod := &captureProducer{}
		r := NewResponder(a, prod, "verdicts", nil)

		require.NoError(t, r.Handle(context.Background(), request(alice)))
		require.NoError(t, r.Handle(context.Background(), request(bob)))
		require.Len(t, prod.msgs, 2)

		assert.Equal(t, "verdicts", prod.msgs[0].Topic)
		assert.Equal(t, []byte("req-1"), prod.msgs[0].Key)
		assert.Equal(t, contract.EventTypeVerdict, prod.msgs[0].Headers["event_type"])

		first, err := contract.DecodeVerdict(prod.msgs[0].Value)
		require.NoError(t, err)
		assert.True(t, first.Success)
		second, err := contract.DecodeVerdict(prod.msgs[1].Value)
		require.NoError(t, err)
		assert.False(t, second.Success)
	})

	t.Run("skips malformed requests", func(t *testing.T) {
		prod := &captureProducer{}
		r := NewResponder(a, prod, "verdicts", nil)
		require.NoError(t, r.Handle(context.Background(), &consumer.Message{Value: []byte("{")}))
		assert.Empty(t, prod.msgs)
	})

	t.Run("returns publish failures for retry", func(t *testing.T) {
		r := NewResponder(a, &captureProducer{err: errors.New("broker down")}, "verdicts", nil)
		assert.Error(t, r.Handle(context.Background(), request(alice)))
	})
}
