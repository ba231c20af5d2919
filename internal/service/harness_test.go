package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"github.com/webitel/im-presence-service/internal/store/memory"
)

var discard = slog.New(slog.DiscardHandler)

type recordingExporter struct {
	mu     sync.Mutex
	events []event.Exportable
	err    error
}

func (r *recordingExporter) Publish(_ context.Context, ev event.Exportable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingExporter) keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]string, len(r.events))
	for i, ev := range r.events {
		res[i] = ev.GetRoutingKey()
	}
	return res
}

type harness struct {
	t        *testing.T
	store    *memory.Store
	hub      *registry.Hub
	exporter *recordingExporter
	delivery *DeliveryService
	contacts *ContactService
	profiles *ProfileCache
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	st := memory.New()
	hub := registry.NewHub()
	t.Cleanup(hub.Shutdown)

	profiles, err := NewProfileCache(st, 128)
	require.NoError(t, err)

	exp := &recordingExporter{}
	notifier := NewDispatcher(hub, discard)

	return &harness{
		t:        t,
		store:    st,
		hub:      hub,
		exporter: exp,
		profiles: profiles,
		delivery: NewDeliveryService(st, hub, notifier, exp, discard, DeliveryOptions{
			RequireContact: true,
			Tombstone:      "deleted",
		}),
		contacts: NewContactService(st, profiles, notifier, exp, discard),
	}
}

func (h *harness) user(name string) uuid.UUID {
	id := uuid.New()
	h.store.PutUser(&model.User{ID: id, FullName: name, Email: name + "@example.com", PasswordHash: "secret"})
	return id
}

// connect registers a live connection and discards the presence snapshots it
// received so far.
func (h *harness) connect(userID uuid.UUID) registry.Connector {
	conn := h.hub.NewConnector(context.Background(), userID, registry.ConnectMetadata{})
	h.hub.Register(conn)
	h.t.Cleanup(conn.Close)
	drain(conn)
	return conn
}

func (h *harness) befriend(a, b uuid.UUID) {
	c := model.NewConnection(a, b, 1)
	c.Status = model.ConnectionAccepted
	require.NoError(h.t, h.store.CreateConnection(context.Background(), c))
}

func drain(conn registry.Connector) []event.Eventer {
	var res []event.Eventer
	for {
		select {
		case ev := <-conn.Recv():
			res = append(res, ev)
		default:
			return res
		}
	}
}

func ofKind(evs []event.Eventer, kind event.Kind) []event.Eventer {
	var res []event.Eventer
	for _, ev := range evs {
		if ev.GetKind() == kind {
			res = append(res, ev)
		}
	}
	return res
}

var errBus = errors.New("bus unavailable")
