package registry

import (
	"log/slog"
	"time"
)

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithSendBuffer sets the [BACKPRESSURE] threshold: the capacity of each
// connection's outbound queue.
func WithSendBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.config.sendBuffer = size
		}
	}
}

// WithSendTimeout bounds how long a producer waits on a saturated queue
// before shedding.
func WithSendTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.config.sendTimeout = d
		}
	}
}

// WithLogger attaches a logger for registry lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
