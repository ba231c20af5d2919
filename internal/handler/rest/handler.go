package rest

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	httpsrv "github.com/webitel/im-presence-service/infra/server/http"
	"github.com/webitel/im-presence-service/internal/domain/model"
	wsmarshaller "github.com/webitel/im-presence-service/internal/handler/marshaller/ws"
	"github.com/webitel/im-presence-service/internal/service"
)

// Handler is the request/response surface. It exposes the same operations as
// the realtime surface for clients that reconcile by re-fetching.
type Handler struct {
	presence  service.Presencer
	deliverer service.Deliverer
	contacts  service.Contacter
	profiles  service.ProfileResolver
}

func NewHandler(presence service.Presencer, deliverer service.Deliverer, contacts service.Contacter, profiles service.ProfileResolver) *Handler {
	return &Handler{
		presence:  presence,
		deliverer: deliverer,
		contacts:  contacts,
		profiles:  profiles,
	}
}

func (h *Handler) Mount(r chi.Router) {
	r.Get("/status", h.Status)

	r.Route("/api", func(r chi.Router) {
		r.Use(httpsrv.Identity)

		r.Get("/users", h.ListUsers)
		r.Get("/presence", h.Presence)

		r.Get("/messages/{id}", h.History)
		r.Post("/messages/{id}", h.Send)
		r.Put("/messages/{id}", h.Edit)
		r.Delete("/messages/{id}", h.Delete)
		r.Post("/messages/{id}/read", h.MarkRead)

		r.Post("/connections/send", h.RequestConnection)
		r.Post("/connections/accept", h.AcceptConnection)
		r.Get("/connections/accepted", h.AcceptedConnections)
		r.Get("/connections/pending", h.PendingConnections)
	})
}

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

type editRequest struct {
	Text string `json:"text"`
}

type connectionRequest struct {
	ReceiverID uuid.UUID `json:"receiverId"`
}

type acceptRequest struct {
	SenderID uuid.UUID `json:"senderId"`
}

type statusResponse struct {
	OnlineUsers   int   `json:"onlineUsers"`
	UptimeSeconds int64 `json:"uptimeSeconds"`
}

type sweepResponse struct {
	Count int64 `json:"count"`
}

type requestResponse struct {
	Connection   *wsmarshaller.WSConnection `json:"connection"`
	AutoAccepted bool                       `json:"autoAccepted"`
}

func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	st := h.presence.Stats()
	writeJSON(w, http.StatusOK, &statusResponse{
		OnlineUsers:   st.OnlineUsers,
		UptimeSeconds: int64(st.Uptime.Seconds()),
	})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller := callerID(r)
	users, err := h.profiles.Directory(r.Context(), caller)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wsmarshaller.MapProfiles(users))
}

func (h *Handler) Presence(w http.ResponseWriter, _ *http.Request) {
	online := h.presence.Online()
	ids := make([]string, len(online))
	for i, id := range online {
		ids[i] = id.String()
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	peerID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := h.deliverer.History(r.Context(), callerID(r), peerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wsmarshaller.MapMessages(msgs))
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	receiverID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req sendRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	msg, err := h.deliverer.Send(r.Context(), callerID(r), receiverID, service.SendInput{
		Text:       req.Text,
		Attachment: req.Image,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wsmarshaller.MapMessage(msg))
}

func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	messageID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req editRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	msg, err := h.deliverer.Edit(r.Context(), callerID(r), messageID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wsmarshaller.MapMessage(msg))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	messageID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	msg, err := h.deliverer.Delete(r.Context(), callerID(r), messageID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wsmarshaller.MapMessage(msg))
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	senderID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	n, err := h.deliverer.MarkRead(r.Context(), callerID(r), senderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &sweepResponse{Count: n})
}

func (h *Handler) RequestConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.contacts.Request(r.Context(), callerID(r), req.ReceiverID)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if res.AutoAccepted {
		status = http.StatusOK
	}
	writeJSON(w, status, &requestResponse{
		Connection:   wsmarshaller.MapConnection(res.Connection),
		AutoAccepted: res.AutoAccepted,
	})
}

func (h *Handler) AcceptConnection(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	conn, err := h.contacts.Accept(r.Context(), callerID(r), req.SenderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wsmarshaller.MapConnection(conn))
}

func (h *Handler) AcceptedConnections(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.contacts.Accepted(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wsmarshaller.MapProfiles(contacts))
}

func (h *Handler) PendingConnections(w http.ResponseWriter, r *http.Request) {
	pending, err := h.contacts.PendingIncoming(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wsmarshaller.MapPendingRequests(pending))
}

// callerID is guaranteed by the Identity middleware.
func callerID(r *http.Request) uuid.UUID {
	id, _ := httpsrv.UserIDFrom(r.Context())
	return id
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s in path: %w", name, model.ErrValidation)
	}
	return id, nil
}
