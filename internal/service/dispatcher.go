package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/registry"
)

// Notifier is the Fan-Out Dispatcher contract.
//
// [AT_MOST_ONCE] Delivery is best-effort: if the user has no live connection
// (or its queue sheds the event) the notification is dropped. There is no
// retry and no queue; clients reconcile on reconnect or by re-fetching.
type Notifier interface {
	Notify(userID uuid.UUID, kind event.Kind, payload any) bool
	NotifyEvent(ev event.Eventer) bool
}

// Exporter publishes durable state transitions to the message bus.
type Exporter interface {
	Publish(ctx context.Context, ev event.Exportable) error
}

type Dispatcher struct {
	hub    registry.Hubber
	logger *slog.Logger
}

func NewDispatcher(hub registry.Hubber, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{hub: hub, logger: logger}
}

// Notify wraps payload into a realtime event addressed to userID.
func (d *Dispatcher) Notify(userID uuid.UUID, kind event.Kind, payload any) bool {
	return d.NotifyEvent(event.NewSystemEvent(userID, kind, event.PriorityNormal, payload))
}

func (d *Dispatcher) NotifyEvent(ev event.Eventer) bool {
	ok := d.hub.Broadcast(ev)
	if !ok {
		// [SILENT_DROP] expected and frequent, never an error
		d.logger.Debug("NOTIFY_DROPPED", "user_id", ev.GetUserID(), "event", ev.GetKind())
	}
	return ok
}

// exportBestEffort publishes ev and only logs failures; a bus outage never
// fails the write that produced the event.
func exportBestEffort(ctx context.Context, exp Exporter, logger *slog.Logger, ev event.Exportable) {
	if exp == nil || ev == nil {
		return
	}
	if err := exp.Publish(ctx, ev); err != nil {
		logger.Warn("EVENT_EXPORT_FAILED", "routing_key", ev.GetRoutingKey(), "err", err)
	}
}
