package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/service"
)

// Router is the Event Ingress Router: a dispatch table from inbound event
// name to handler. It holds no business logic.
type Router struct {
	routes map[string]HandlerFunc
	logger *slog.Logger
}

func NewRouter(logger *slog.Logger, typer service.Typer, deliverer service.Deliverer, contacts service.Contacter) *Router {
	h := &inboundHandlers{typer: typer, deliverer: deliverer, contacts: contacts}

	return &Router{
		logger: logger,
		routes: map[string]HandlerFunc{
			EventTyping:         Bind(h.OnTyping),
			EventStopTyping:     Bind(h.OnStopTyping),
			EventChatOpened:     Bind(h.OnChatOpened),
			EventContactRequest: Bind(h.OnContactRequest),
			EventContactAccept:  Bind(h.OnContactAccept),
			EventUserOnline:     Bind(h.OnUserOnline),
		},
	}
}

// Dispatch runs the handler of frame.Event. Failures are answered with an
// error frame on the originating connection only.
func (r *Router) Dispatch(ctx context.Context, s *Session, frame *InboundFrame) {
	fn, ok := r.routes[frame.Event]
	if !ok {
		r.reject(s, frame.Event, fmt.Errorf("unknown event %q: %w", frame.Event, model.ErrValidation))
		return
	}

	err := fn(ctx, s, frame.Payload)
	if err == nil {
		return
	}

	var pe *panicError
	if errors.As(err, &pe) {
		r.logger.Error("PANIC_RECOVERED",
			"err", pe.value,
			"stack", string(pe.stack),
			"event", frame.Event,
			"user_id", s.UserID,
		)
	}
	r.reject(s, frame.Event, err)
}

func (r *Router) reject(s *Session, inbound string, err error) {
	r.logger.Debug("INBOUND_REJECTED", "event", inbound, "user_id", s.UserID, "code", model.Code(err), "err", err)

	s.Conn.Send(event.NewSystemEvent(s.UserID, event.Failure, event.PriorityHigh, &model.ErrorPayload{
		Event:   inbound,
		Code:    model.Code(err),
		Message: err.Error(),
	}))
}

type inboundHandlers struct {
	typer     service.Typer
	deliverer service.Deliverer
	contacts  service.Contacter
}

func (h *inboundHandlers) OnTyping(_ context.Context, s *Session, p *TypingRequest) error {
	if err := actAs(s, p.SenderID); err != nil {
		return err
	}
	return h.typer.Typing(p.SenderID, p.ReceiverID)
}

func (h *inboundHandlers) OnStopTyping(_ context.Context, s *Session, p *TypingRequest) error {
	if err := actAs(s, p.SenderID); err != nil {
		return err
	}
	return h.typer.StopTyping(p.SenderID, p.ReceiverID)
}

func (h *inboundHandlers) OnChatOpened(ctx context.Context, s *Session, p *ChatOpenedRequest) error {
	if err := actAs(s, p.ReaderID); err != nil {
		return err
	}
	_, err := h.deliverer.MarkRead(ctx, p.ReaderID, p.SenderID)
	return err
}

func (h *inboundHandlers) OnContactRequest(ctx context.Context, s *Session, p *ContactRequest) error {
	if err := actAs(s, p.SenderID); err != nil {
		return err
	}
	_, err := h.contacts.Request(ctx, p.SenderID, p.ReceiverID)
	return err
}

func (h *inboundHandlers) OnContactAccept(ctx context.Context, s *Session, p *ContactAcceptRequest) error {
	// The socket owner accepts as the receiver of the original request.
	if err := actAs(s, p.ReceiverID); err != nil {
		return err
	}
	_, err := h.contacts.Accept(ctx, p.ReceiverID, p.SenderID)
	return err
}

func (h *inboundHandlers) OnUserOnline(ctx context.Context, s *Session, p *UserOnlineRequest) error {
	if err := actAs(s, p.UserID); err != nil {
		return err
	}
	_, err := h.deliverer.MarkDelivered(ctx, p.UserID)
	return err
}

// decodeFrame parses the envelope of one inbound text frame.
func decodeFrame(data []byte) (*InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %v: %w", err, model.ErrValidation)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("frame has no event: %w", model.ErrValidation)
	}
	return &f, nil
}
