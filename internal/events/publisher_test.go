package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portrait/internal/events"
	"portrait/internal/events/store/memory"
	"portrait/pkg/requestcontext"
)

func TestStorePublisher_SyncMode(t *testing.T) {
	store := memory.New()
	pub := events.NewStorePublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), events.Event{Type: events.TypeDelegateToggled})
	require.NoError(t, err)

	recorded := store.List()
	require.Len(t, recorded, 1)
	assert.Equal(t, events.TypeDelegateToggled, recorded[0].Type)
	assert.NotZero(t, recorded[0].ID, "publisher must assign an event ID")
	assert.False(t, recorded[0].Timestamp.IsZero(), "publisher must stamp the event")
}

func TestStorePublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.New()
	pub := events.NewStorePublisher(store, events.WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), events.Event{Type: events.TypeRoleToggled})
		require.NoError(t, err)
	}

	pub.Close()
	assert.Len(t, store.List(), 10, "all buffered events should be drained on close")
}

func TestStorePublisher_EnrichesFromContext(t *testing.T) {
	store := memory.New()
	pub := events.NewStorePublisher(store)
	defer pub.Close()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")
	ctx = requestcontext.WithTime(ctx, at)
	ctx = requestcontext.WithClientPlatform(ctx, "Firefox/140 (Linux)")

	require.NoError(t, pub.Emit(ctx, events.Event{Type: events.TypeIdentityRegistered}))

	recorded := store.List()
	require.Len(t, recorded, 1)
	assert.Equal(t, "req-42", recorded[0].RequestID)
	assert.Equal(t, at, recorded[0].Timestamp)
	assert.Equal(t, "Firefox/140 (Linux)", recorded[0].Client)
}
