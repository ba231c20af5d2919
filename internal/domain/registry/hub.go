/*
Package registry is the process-local Presence Registry.

Key Architectural Concepts:
  - Last Connection Wins: every online user owns exactly one live Connector.
    Registering a new one silently supersedes the previous handle; the old
    transport is expected to terminate on its own.
  - Read-Heavy Access: lookups happen on every notification while mutations
    only happen on connect/disconnect, so the table is a sync.Map.
  - Converging Snapshots: every effective register/unregister pushes the full
    online set to all registered connections. Broadcasts are serialised so the
    last snapshot delivered always reflects the state after the last mutation.
  - Volatile by Construction: nothing here survives a restart, and nothing needs to.
*/
package registry

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
)

// Hubber defines the gateway for user session management and event routing.
type Hubber interface {
	NewConnector(ctx context.Context, userID uuid.UUID, meta ConnectMetadata) Connector
	Register(conn Connector) (superseded Connector)
	Unregister(userID, connID uuid.UUID) bool
	Lookup(userID uuid.UUID) (Connector, bool)
	IsConnected(userID uuid.UUID) bool
	AllOnline() []uuid.UUID
	Broadcast(ev event.Eventer) bool
	Stats() model.HubStats
	Shutdown()
}

type hubConfig struct {
	sendBuffer  int
	sendTimeout time.Duration
}

// Hub implements a [SINGLE_HANDLE_REGISTRY] keyed by user identity.
type Hub struct {
	// sessions stores Map[uuid.UUID]Connector. Optimized for [READ_HEAVY] workloads.
	sessions sync.Map
	online   atomic.Int64

	// announceMu serialises snapshot broadcasts.
	announceMu sync.Mutex

	config    hubConfig
	logger    *slog.Logger
	startedAt time.Time
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		config: hubConfig{
			sendBuffer:  256,
			sendTimeout: 500 * time.Millisecond,
		},
		logger:    slog.New(slog.DiscardHandler),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewConnector builds a connector sized by the hub configuration. It is not
// registered until Register is called.
func (h *Hub) NewConnector(ctx context.Context, userID uuid.UUID, meta ConnectMetadata) Connector {
	return NewConnector(ctx, userID, meta, h.config.sendBuffer, h.config.sendTimeout)
}

func (h *Hub) Lookup(userID uuid.UUID) (Connector, bool) {
	val, ok := h.sessions.Load(userID)
	if !ok {
		return nil, false
	}
	conn, ok := val.(Connector)
	return conn, ok
}

func (h *Hub) IsConnected(userID uuid.UUID) bool {
	_, ok := h.sessions.Load(userID)
	return ok
}

// AllOnline returns the online set in a stable order.
func (h *Hub) AllOnline() []uuid.UUID {
	res := make([]uuid.UUID, 0, h.online.Load())
	h.sessions.Range(func(key, _ any) bool {
		res = append(res, key.(uuid.UUID))
		return true
	})
	slices.SortFunc(res, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})
	return res
}

// Broadcast routes the event to the connection of ev.GetUserID().
// Returns false on miss or overflow; callers treat both as a silent drop.
func (h *Hub) Broadcast(ev event.Eventer) bool {
	conn, ok := h.Lookup(ev.GetUserID())
	if !ok {
		return false
	}
	return conn.Send(ev)
}

// Register installs conn as the user's only handle and announces the new online set.
func (h *Hub) Register(conn Connector) Connector {
	prev, loaded := h.sessions.Swap(conn.GetUserID(), conn)
	if !loaded {
		h.online.Add(1)
	}

	h.logger.Debug("PRESENCE_REGISTERED",
		"user_id", conn.GetUserID(),
		"conn_id", conn.GetID(),
		"superseded", loaded,
	)

	h.announce()

	if loaded {
		if old, ok := prev.(Connector); ok {
			return old
		}
	}
	return nil
}

// Unregister removes the user's entry only if connID is still the current
// handle. A superseded connection that disconnects late is a no-op.
func (h *Hub) Unregister(userID, connID uuid.UUID) bool {
	val, ok := h.sessions.Load(userID)
	if !ok {
		return false
	}
	if conn, ok := val.(Connector); !ok || conn.GetID() != connID {
		return false
	}
	if !h.sessions.CompareAndDelete(userID, val) {
		return false
	}
	h.online.Add(-1)

	h.logger.Debug("PRESENCE_UNREGISTERED", "user_id", userID, "conn_id", connID)

	h.announce()
	return true
}

// announce pushes the full online set to every registered connection.
// One [BROADCAST] event is shared by all recipients so it is marshaled once.
func (h *Hub) announce() {
	h.announceMu.Lock()
	defer h.announceMu.Unlock()

	ev := event.NewSystemEvent(uuid.Nil, event.OnlineUsers, event.PriorityLow,
		&model.OnlineUsersPayload{UserIDs: h.AllOnline()})

	h.sessions.Range(func(_, val any) bool {
		if conn, ok := val.(Connector); ok {
			conn.Send(ev)
		}
		return true
	})
}

func (h *Hub) Stats() model.HubStats {
	return model.HubStats{
		OnlineUsers: int(h.online.Load()),
		Uptime:      time.Since(h.startedAt),
	}
}

// Shutdown closes every connection. Presence is not announced: everyone is leaving.
func (h *Hub) Shutdown() {
	h.sessions.Range(func(key, val any) bool {
		if conn, ok := val.(Connector); ok {
			conn.Close()
		}
		h.sessions.Delete(key)
		return true
	})
	h.online.Store(0)
}
