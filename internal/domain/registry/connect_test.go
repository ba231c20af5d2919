package registry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/webitel/im-presence-service/internal/domain/event"
)

func newTestConnector(buffer int) Connector {
	return NewConnector(context.Background(), uuid.New(), ConnectMetadata{}, buffer, 10*time.Millisecond)
}

func TestConnect_LowPriorityShedWhenFull(t *testing.T) {
	c := newTestConnector(1)
	t.Cleanup(c.Close)

	assert.True(t, c.Send(event.NewSystemEvent(c.GetUserID(), event.OnlineUsers, event.PriorityLow, nil)))
	assert.False(t, c.Send(event.NewSystemEvent(c.GetUserID(), event.OnlineUsers, event.PriorityLow, nil)))
	assert.EqualValues(t, 1, c.Dropped())
}

func TestConnect_HighPriorityEvictsLowerOne(t *testing.T) {
	c := newTestConnector(1)
	t.Cleanup(c.Close)

	c.Send(event.NewSystemEvent(c.GetUserID(), event.OnlineUsers, event.PriorityLow, nil))
	assert.True(t, c.Send(event.NewSystemEvent(c.GetUserID(), event.NewMessage, event.PriorityHigh, nil)))

	ev := <-c.Recv()
	assert.Equal(t, event.NewMessage, ev.GetKind())
	assert.EqualValues(t, 1, c.Dropped())
}

func TestConnect_EqualPriorityIsNotEvicted(t *testing.T) {
	c := newTestConnector(1)
	t.Cleanup(c.Close)

	first := event.NewSystemEvent(c.GetUserID(), event.Typing, event.PriorityNormal, nil)
	c.Send(first)
	assert.False(t, c.Send(event.NewSystemEvent(c.GetUserID(), event.Typing, event.PriorityNormal, nil)))

	ev := <-c.Recv()
	assert.Equal(t, first.GetID(), ev.GetID())
}

func TestConnect_SendAfterClose(t *testing.T) {
	c := newTestConnector(4)
	c.Close()
	c.Close()

	assert.False(t, c.Send(event.NewSystemEvent(c.GetUserID(), event.Typing, event.PriorityHigh, nil)))
	select {
	case <-c.Done():
	default:
		t.Fatal("done not signalled")
	}
}
