package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"github.com/webitel/im-presence-service/internal/service"
	"github.com/webitel/im-presence-service/internal/store/memory"
)

var discard = slog.New(slog.DiscardHandler)

type nopExporter struct{}

func (nopExporter) Publish(context.Context, event.Exportable) error { return nil }

type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type testServer struct {
	url   string
	store *memory.Store
	hub   *registry.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	st := memory.New()
	hub := registry.NewHub()
	notifier := service.NewDispatcher(hub, discard)
	typing := service.NewTypingTracker(notifier, time.Minute, discard)
	profiles, err := service.NewProfileCache(st, 16)
	require.NoError(t, err)

	presence := service.NewPresenceService(hub, typing, discard, "test")
	delivery := service.NewDeliveryService(st, hub, notifier, nopExporter{}, discard, service.DeliveryOptions{RequireContact: true})
	contacts := service.NewContactService(st, profiles, notifier, nopExporter{}, discard)

	h := NewWSHandler(discard, presence, NewRouter(discard, typing, delivery, contacts), Options{
		WriteTimeout: time.Second,
		PongTimeout:  10 * time.Second,
		PingInterval: time.Minute,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
		typing.Close()
	})

	return &testServer{
		url:   "ws" + strings.TrimPrefix(srv.URL, "http"),
		store: st,
		hub:   hub,
	}
}

func (s *testServer) dial(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	c, resp, err := websocket.DefaultDialer.Dial(s.url+"?"+UserIDParam+"="+userID.String(), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// await reads frames until one of the given kind arrives.
func await(t *testing.T, c *websocket.Conn, kind event.Kind) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var f frame
		require.NoError(t, c.ReadJSON(&f))
		if f.Event == string(kind) {
			return f
		}
	}
}

func send(t *testing.T, c *websocket.Conn, ev string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, c.WriteJSON(InboundFrame{Event: ev, Payload: raw}))
}

func TestWS_HandshakeAndPresence(t *testing.T) {
	srv := newTestServer(t)
	a, b := uuid.New(), uuid.New()

	ca := srv.dial(t, a)
	connected := await(t, ca, event.Connected)
	assert.Contains(t, string(connected.Payload), `"ok":true`)
	await(t, ca, event.OnlineUsers)

	srv.dial(t, b)

	online := await(t, ca, event.OnlineUsers)
	var ids []string
	require.NoError(t, json.Unmarshal(online.Payload, &ids))
	assert.ElementsMatch(t, []string{a.String(), b.String()}, ids)
}

func TestWS_TypingIsForwarded(t *testing.T) {
	srv := newTestServer(t)
	a, b := uuid.New(), uuid.New()

	ca := srv.dial(t, a)
	await(t, ca, event.Connected)
	cb := srv.dial(t, b)
	await(t, cb, event.Connected)

	send(t, ca, EventTyping, TypingRequest{SenderID: a, ReceiverID: b})

	got := await(t, cb, event.Typing)
	assert.Contains(t, string(got.Payload), a.String())
}

func TestWS_ImpersonationAnsweredWithError(t *testing.T) {
	srv := newTestServer(t)
	a, b := uuid.New(), uuid.New()

	ca := srv.dial(t, a)
	await(t, ca, event.Connected)

	send(t, ca, EventUserOnline, UserOnlineRequest{UserID: b})

	got := await(t, ca, event.Failure)
	var payload struct {
		Event string `json:"event"`
		Code  string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, EventUserOnline, payload.Event)
	assert.Equal(t, model.CodeForbidden, payload.Code)
}

func TestWS_UnknownAndMalformedFrames(t *testing.T) {
	srv := newTestServer(t)
	a := uuid.New()

	ca := srv.dial(t, a)
	await(t, ca, event.Connected)

	send(t, ca, "teleport", map[string]string{})
	got := await(t, ca, event.Failure)
	assert.Contains(t, string(got.Payload), model.CodeValidation)

	require.NoError(t, ca.WriteMessage(websocket.TextMessage, []byte("{not json")))
	got = await(t, ca, event.Failure)
	assert.Contains(t, string(got.Payload), model.CodeValidation)

	// The connection survives bad frames.
	send(t, ca, EventUserOnline, UserOnlineRequest{UserID: a})
	assert.True(t, srv.hub.IsConnected(a))
}

func TestWS_ContactRequestFlow(t *testing.T) {
	srv := newTestServer(t)
	a, b := uuid.New(), uuid.New()
	srv.store.PutUser(&model.User{ID: a, FullName: "Alice"})
	srv.store.PutUser(&model.User{ID: b, FullName: "Bob"})

	ca := srv.dial(t, a)
	await(t, ca, event.Connected)
	cb := srv.dial(t, b)
	await(t, cb, event.Connected)

	send(t, ca, EventContactRequest, ContactRequest{SenderID: a, ReceiverID: b, SenderName: "Alice"})
	req := await(t, cb, event.ContactRequestReceived)
	assert.Contains(t, string(req.Payload), "Alice")

	send(t, cb, EventContactAccept, ContactAcceptRequest{SenderID: a, ReceiverID: b})
	accepted := await(t, ca, event.ContactAccepted)
	assert.Contains(t, string(accepted.Payload), "Bob")
}

func TestWS_ChatOpenedSendsReadReceipt(t *testing.T) {
	srv := newTestServer(t)
	a, b := uuid.New(), uuid.New()
	ctx := context.Background()
	for range 2 {
		require.NoError(t, srv.store.CreateMessage(ctx, model.NewMessage(a, b, "hi", "", model.StatusDelivered, 1)))
	}

	ca := srv.dial(t, a)
	await(t, ca, event.Connected)
	cb := srv.dial(t, b)
	await(t, cb, event.Connected)

	send(t, cb, EventChatOpened, ChatOpenedRequest{ReaderID: b, SenderID: a})

	got := await(t, ca, event.MessagesRead)
	var receipt struct {
		SenderID string `json:"senderId"`
		ReaderID string `json:"readerId"`
		Count    int64  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(got.Payload, &receipt))
	assert.Equal(t, a.String(), receipt.SenderID)
	assert.Equal(t, b.String(), receipt.ReaderID)
	assert.EqualValues(t, 2, receipt.Count)
}

func TestWS_UserOnlineSignalsDelivery(t *testing.T) {
	srv := newTestServer(t)
	a, b := uuid.New(), uuid.New()
	require.NoError(t, srv.store.CreateMessage(context.Background(), model.NewMessage(a, b, "while away", "", model.StatusSent, 1)))

	ca := srv.dial(t, a)
	await(t, ca, event.Connected)
	cb := srv.dial(t, b)
	await(t, cb, event.Connected)

	send(t, cb, EventUserOnline, UserOnlineRequest{UserID: b})

	got := await(t, ca, event.MessagesDelivered)
	var delivered struct {
		ReceiverID string `json:"receiverId"`
		Count      int64  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(got.Payload, &delivered))
	assert.Equal(t, b.String(), delivered.ReceiverID)
	assert.EqualValues(t, 1, delivered.Count)
}

func TestWS_RequesterCannotAcceptOwnRequest(t *testing.T) {
	srv := newTestServer(t)
	a, b := uuid.New(), uuid.New()
	require.NoError(t, srv.store.CreateConnection(context.Background(), model.NewConnection(a, b, 1)))

	ca := srv.dial(t, a)
	await(t, ca, event.Connected)

	send(t, ca, EventContactAccept, ContactAcceptRequest{SenderID: a, ReceiverID: b})

	got := await(t, ca, event.Failure)
	assert.Contains(t, string(got.Payload), model.CodeForbidden)
}

func TestWS_SupersededSocketIsClosed(t *testing.T) {
	srv := newTestServer(t)
	a := uuid.New()

	first := srv.dial(t, a)
	await(t, first, event.Connected)

	second := srv.dial(t, a)
	await(t, second, event.Connected)

	await(t, first, event.Disconnected)
	_, _, err := first.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	assert.True(t, srv.hub.IsConnected(a))
}

func TestWS_MissingUserIDRejected(t *testing.T) {
	srv := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(srv.url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
