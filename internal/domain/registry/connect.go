package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/event"
)

var _ Connector = (*session)(nil)

// Connector is the presence handle of one live transport session. The hub
// only ever talks to it through this interface.
type Connector interface {
	GetID() uuid.UUID
	GetUserID() uuid.UUID
	Metadata() ConnectMetadata
	// Send enqueues ev for the transport writer. False means the event was dropped.
	Send(ev event.Eventer) bool
	Recv() <-chan event.Eventer
	Done() <-chan struct{}
	Dropped() uint64
	Close()
}

// ConnectMetadata describes the client side of a session for logs.
type ConnectMetadata struct {
	RemoteIP  string
	UserAgent string
}

type session struct {
	id       uuid.UUID
	userID   uuid.UUID
	metadata ConnectMetadata

	// outbox is never closed: notifiers may still hold the handle after Close,
	// the writer watches Done instead.
	outbox      chan event.Eventer
	sendTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	dropped atomic.Uint64
}

// NewConnector creates the outbound queue of one live transport session.
func NewConnector(ctx context.Context, userID uuid.UUID, meta ConnectMetadata, bufferSize int, sendTimeout time.Duration) Connector {
	sctx, cancel := context.WithCancel(ctx)
	return &session{
		id:          uuid.New(),
		userID:      userID,
		metadata:    meta,
		outbox:      make(chan event.Eventer, bufferSize),
		sendTimeout: sendTimeout,
		ctx:         sctx,
		cancel:      cancel,
	}
}

func (s *session) GetID() uuid.UUID           { return s.id }
func (s *session) GetUserID() uuid.UUID       { return s.userID }
func (s *session) Metadata() ConnectMetadata  { return s.metadata }
func (s *session) Recv() <-chan event.Eventer { return s.outbox }
func (s *session) Done() <-chan struct{}      { return s.ctx.Done() }
func (s *session) Dropped() uint64            { return s.dropped.Load() }

// Send never blocks longer than sendTimeout.
func (s *session) Send(ev event.Eventer) bool {
	if s.ctx.Err() != nil {
		return false
	}

	select {
	case s.outbox <- ev:
		return true
	default:
	}

	// [OUTBOX_FULL] presence snapshots are superseded by the next one, shed them.
	if ev.GetPriority() <= event.PriorityLow {
		s.dropped.Add(1)
		return false
	}
	if s.waitForRoom(ev) {
		return true
	}
	s.dropped.Add(1)
	return false
}

func (s *session) waitForRoom(ev event.Eventer) bool {
	timer := time.NewTimer(s.sendTimeout)
	defer timer.Stop()

	select {
	case s.outbox <- ev:
		return true
	case <-s.ctx.Done():
		return false
	case <-timer.C:
		return s.evictFor(ev)
	}
}

// evictFor trades the oldest queued event for ev when the queued one matters less.
func (s *session) evictFor(ev event.Eventer) bool {
	var head event.Eventer
	select {
	case head = <-s.outbox:
	default:
		return false
	}

	if head.GetPriority() < ev.GetPriority() {
		select {
		case s.outbox <- ev:
			s.dropped.Add(1)
			return true
		default:
			// writer raced us and the slot is gone; ev is lost, head was already lost.
			s.dropped.Add(1)
			return false
		}
	}

	select {
	case s.outbox <- head:
	default:
		s.dropped.Add(1)
	}
	return false
}

// Close is idempotent. The hub (shutdown, supersede) and the transport
// (teardown) may both call it.
func (s *session) Close() {
	s.once.Do(s.cancel)
}
