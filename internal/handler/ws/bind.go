package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
)

// Session is the authenticated side of one live socket.
type Session struct {
	UserID uuid.UUID
	Conn   registry.Connector
}

// HandlerFunc handles one raw inbound payload.
type HandlerFunc func(ctx context.Context, s *Session, raw json.RawMessage) error

// DomainHandler defines the functional signature for typed inbound handlers.
type DomainHandler[T any] func(ctx context.Context, s *Session, payload *T) error

// validator is implemented by payloads that carry required identity fields.
type validator interface {
	Validate() error
}

// [INFRASTRUCTURE_BRIDGE]
// Bind connects the socket to domain logic, handling decoding, validation and
// panic recovery so one bad frame never kills the connection worker.
func Bind[T any](fn DomainHandler[T]) HandlerFunc {
	return func(ctx context.Context, s *Session, raw json.RawMessage) (err error) {
		// [PANIC_RECOVERY]
		defer func() {
			if r := recover(); r != nil {
				err = &panicError{value: r, stack: debug.Stack()}
			}
		}()

		// [DECODING]
		payload := new(T)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, payload); err != nil {
				return fmt.Errorf("decode payload: %v: %w", err, model.ErrValidation)
			}
		}

		// [VALIDATION]
		if v, ok := any(payload).(validator); ok {
			if err := v.Validate(); err != nil {
				return err
			}
		}

		return fn(ctx, s, payload)
	}
}

type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string { return fmt.Sprintf("handler panic: %v", e.value) }
