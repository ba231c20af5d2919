package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/im-presence-service/internal/domain/event"
)

// Metadata keys set on every exported message.
const (
	MetaRoutingKey = "routing_key"
	MetaSource     = "source"
)

// EventDispatcher publishes exportable domain events to the bus.
// This keeps services agnostic of the transport implementation.
type EventDispatcher struct {
	publisher message.Publisher
}

func NewEventDispatcher(pub message.Publisher) *EventDispatcher {
	return &EventDispatcher{publisher: pub}
}

func (d *EventDispatcher) Publish(ctx context.Context, ev event.Exportable) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}
	topic := ev.GetRoutingKey()
	if topic == "" {
		// Not ready for export.
		return nil
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetaRoutingKey, topic)
	msg.Metadata.Set(MetaSource, "im-presence-service")
	msg.SetContext(ctx)

	if err := d.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("event dispatcher: failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

// Nop is used when event export is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, event.Exportable) error { return nil }
