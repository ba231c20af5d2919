package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
)

func newPresence(t *testing.T) (*PresenceService, *registry.Hub, *recordingNotifier) {
	t.Helper()
	hub := registry.NewHub()
	t.Cleanup(hub.Shutdown)
	rec := &recordingNotifier{}
	typing := NewTypingTracker(rec, time.Minute, discard)
	t.Cleanup(typing.Close)
	return NewPresenceService(hub, typing, discard, "test"), hub, rec
}

func TestPresence_ConnectHandshakePrecedesSnapshot(t *testing.T) {
	svc, _, _ := newPresence(t)
	a := uuid.New()

	conn, err := svc.Connect(context.Background(), a, registry.ConnectMetadata{})
	require.NoError(t, err)

	evs := drain(conn)
	require.Len(t, evs, 2)
	assert.Equal(t, event.Connected, evs[0].GetKind())
	payload := evs[0].GetPayload().(*model.ConnectedPayload)
	assert.True(t, payload.Ok)
	assert.Equal(t, conn.GetID().String(), payload.ConnectionID)
	assert.Equal(t, "test", payload.ServerVersion)

	assert.Equal(t, event.OnlineUsers, evs[1].GetKind())
	assert.Equal(t, []uuid.UUID{a}, evs[1].GetPayload().(*model.OnlineUsersPayload).UserIDs)
	assert.True(t, svc.IsOnline(a))
}

func TestPresence_NewConnectionSupersedesOld(t *testing.T) {
	svc, _, _ := newPresence(t)
	ctx := context.Background()
	a := uuid.New()

	first, err := svc.Connect(ctx, a, registry.ConnectMetadata{})
	require.NoError(t, err)
	second, err := svc.Connect(ctx, a, registry.ConnectMetadata{})
	require.NoError(t, err)

	select {
	case <-first.Done():
	default:
		t.Fatal("superseded connection must be closed")
	}

	// The old transport disconnecting late does not take the user offline.
	svc.Disconnect(a, first.GetID())
	assert.True(t, svc.IsOnline(a))
	assert.Equal(t, 1, svc.Stats().OnlineUsers)

	svc.Disconnect(a, second.GetID())
	assert.False(t, svc.IsOnline(a))
	assert.Empty(t, svc.Online())
}

func TestPresence_DisconnectClearsTyping(t *testing.T) {
	svc, hub, rec := newPresence(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	conn, err := svc.Connect(ctx, a, registry.ConnectMetadata{})
	require.NoError(t, err)
	require.NoError(t, svc.typing.Typing(a, b))

	svc.Disconnect(a, conn.GetID())
	assert.False(t, hub.IsConnected(a))
	assert.Equal(t, 1, rec.count(event.StopTyping))

	// A second disconnect of the same handle is a no-op.
	svc.Disconnect(a, conn.GetID())
	assert.Equal(t, 1, rec.count(event.StopTyping))
}

func TestPresence_ConnectRequiresUser(t *testing.T) {
	svc, _, _ := newPresence(t)
	_, err := svc.Connect(context.Background(), uuid.Nil, registry.ConnectMetadata{})
	assert.ErrorIs(t, err, model.ErrValidation)
}
