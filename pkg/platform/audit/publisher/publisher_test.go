package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vcregistry/pkg/domain"
	audit "vcregistry/pkg/platform/audit"
	"vcregistry/pkg/platform/audit/store/memory"
)

type failingStore struct {
	err error
}

func (s *failingStore) Append(context.Context, audit.Event) error { return s.err }

func (s *failingStore) ListByDID(context.Context, id.DID) ([]audit.Event, error) { return nil, nil }

func (s *failingStore) ListRecent(context.Context, int) ([]audit.Event, error) { return nil, nil }

// blockingStore holds every Append until release is closed.
type blockingStore struct {
	*memory.InMemoryStore
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, e audit.Event) error {
	<-s.release
	return s.InMemoryStore.Append(ctx, e)
}

func TestPublisher_EmitStoresEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Action: string(audit.EventCredentialUploaded),
		DID:    "did:x:1",
		VCID:   "7",
	}))

	events, err := store.ListByDID(context.Background(), "did:x:1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "7", events[0].VCID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, pub.Emit(context.Background(), audit.Event{DID: "did:x:1", Timestamp: at}))

	events, err := store.ListByDID(context.Background(), "did:x:1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, at, events[0].Timestamp)
}

func TestPublisher_SyncEmitReturnsStoreError(t *testing.T) {
	storeErr := errors.New("append failed")
	pub := NewPublisher(&failingStore{err: storeErr})

	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventRevocationSet)})
	require.ErrorIs(t, err, storeErr)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(8))

	for range 3 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{DID: "did:x:2"}))
	}
	pub.Close()
	pub.Close()

	events, err := store.ListByDID(context.Background(), "did:x:2")
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

// With the drain goroutine stuck and the buffer full, the third event is
// written through on the caller's goroutine rather than dropped.
func TestPublisher_FullBufferWritesThrough(t *testing.T) {
	store := &blockingStore{InMemoryStore: memory.NewInMemoryStore(), release: make(chan struct{})}
	pub := NewPublisher(store, WithAsyncBuffer(1))

	require.NoError(t, pub.Emit(context.Background(), audit.Event{DID: "did:x:3"}))
	require.Eventually(t, func() bool { return len(pub.events) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{DID: "did:x:3"}))

	done := make(chan error, 1)
	go func() { done <- pub.Emit(context.Background(), audit.Event{DID: "did:x:3"}) }()

	select {
	case <-done:
		t.Fatal("write-through should wait for the store")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	require.NoError(t, <-done)
	pub.Close()

	events, err := store.ListByDID(context.Background(), "did:x:3")
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestPublisher_EmitAfterCloseWritesThrough(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(4))
	pub.Close()

	require.NoError(t, pub.Emit(context.Background(), audit.Event{DID: "did:x:4"}))

	events, err := store.ListByDID(context.Background(), "did:x:4")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
