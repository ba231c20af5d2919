package ws

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/webitel/im-presence-service/config"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	wsmarshaller "github.com/webitel/im-presence-service/internal/handler/marshaller/ws"
	"github.com/webitel/im-presence-service/internal/service"
)

// UserIDParam carries the connecting identity, set by the session collaborator.
const UserIDParam = "userId"

type Options struct {
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageBytes int64
	AllowedOrigins  []string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		WriteTimeout:    cfg.WS.WriteTimeout,
		PongTimeout:     cfg.WS.PongTimeout,
		PingInterval:    cfg.WS.PingInterval,
		MaxMessageBytes: cfg.WS.MaxMessageBytes,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
	}
}

type WSHandler struct {
	logger   *slog.Logger
	presence service.Presencer
	router   *Router
	upgrader websocket.Upgrader
	opts     Options
}

func NewWSHandler(logger *slog.Logger, presence service.Presencer, router *Router, opts Options) *WSHandler {
	h := &WSHandler{
		logger:   logger,
		presence: presence,
		router:   router,
		opts:     opts,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(h.opts.AllowedOrigins, r.Header.Get("Origin"))
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. EXTRACT USER ID
	userID, err := uuid.Parse(r.URL.Query().Get(UserIDParam))
	if err != nil || userID == uuid.Nil {
		http.Error(w, "userId query parameter is required", http.StatusBadRequest)
		return
	}

	// 2. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}

	// 3. REGISTER PRESENCE. The connector outlives the request context only
	// until this function returns.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	conn, err := h.presence.Connect(ctx, userID, registry.ConnectMetadata{
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logger.Error("ws connect rejected", "user_id", userID, "err", err)
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, model.Code(err)),
			time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}

	l := h.logger.With("user_id", userID, "conn_id", conn.GetID())
	l.Info("ws opened")

	// 4. PUMPS: one writer goroutine, the reader runs here.
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(ws, conn, l)
	}()

	h.readPump(ctx, ws, &Session{UserID: userID, Conn: conn}, l)

	// [RESOURCE_RECLAMATION] presence first so a superseding connection is
	// never removed by this one.
	h.presence.Disconnect(userID, conn.GetID())
	conn.Close()
	<-done

	l.Info("ws closed", "dropped", conn.Dropped())
}

func (h *WSHandler) readPump(ctx context.Context, ws *websocket.Conn, s *Session, l *slog.Logger) {
	if h.opts.MaxMessageBytes > 0 {
		ws.SetReadLimit(h.opts.MaxMessageBytes)
	}
	h.extendReadDeadline(ws)
	ws.SetPongHandler(func(string) error {
		h.extendReadDeadline(ws)
		return nil
	})

	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				l.Debug("ws read failed", "err", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		h.extendReadDeadline(ws)

		frame, err := decodeFrame(data)
		if err != nil {
			h.router.reject(s, "", err)
			continue
		}
		h.router.Dispatch(ctx, s, frame)
	}
}

func (h *WSHandler) extendReadDeadline(ws *websocket.Conn) {
	if h.opts.PongTimeout > 0 {
		_ = ws.SetReadDeadline(time.Now().Add(h.opts.PongTimeout))
	}
}

// writePump is the only writer of the socket. It exits when the connector is
// done (disconnect, supersede, shutdown) or the socket fails, and always
// closes the socket so the reader unblocks.
func (h *WSHandler) writePump(ws *websocket.Conn, conn registry.Connector, l *slog.Logger) {
	defer ws.Close()

	interval := h.opts.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-conn.Done():
			// [TERMINATION_SENTINEL] best-effort goodbye before the close frame.
			h.write(ws, event.NewSystemEvent(conn.GetUserID(), event.Disconnected, event.PriorityHigh, &model.DisconnectedPayload{
				Reason: "session_closed_by_server",
			}))
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return

		case ev := <-conn.Recv():
			if err := h.write(ws, ev); err != nil {
				l.Warn("ws send failed", "err", err, "event", ev.GetKind())
				conn.Close()
				return
			}

		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeTimeout())); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (h *WSHandler) write(ws *websocket.Conn, ev event.Eventer) error {
	data, err := wsmarshaller.MarshallDeliveryEvent(ev)
	if err != nil {
		// A frame we cannot encode is dropped; the socket stays healthy.
		h.logger.Error("failed to marshal ws event", "err", err, "event", ev.GetKind())
		return nil
	}
	_ = ws.SetWriteDeadline(time.Now().Add(h.writeTimeout()))
	return ws.WriteMessage(websocket.TextMessage, data)
}

func (h *WSHandler) writeTimeout() time.Duration {
	if h.opts.WriteTimeout > 0 {
		return h.opts.WriteTimeout
	}
	return 10 * time.Second
}
