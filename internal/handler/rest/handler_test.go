package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	httpsrv "github.com/webitel/im-presence-service/infra/server/http"
	"github.com/webitel/im-presence-service/internal/domain/event"
	"github.com/webitel/im-presence-service/internal/domain/model"
	"github.com/webitel/im-presence-service/internal/domain/registry"
	"github.com/webitel/im-presence-service/internal/service"
	"github.com/webitel/im-presence-service/internal/store/memory"
)

var discard = slog.New(slog.DiscardHandler)

type nopExporter struct{}

func (nopExporter) Publish(context.Context, event.Exportable) error { return nil }

type fixture struct {
	router http.Handler
	store  *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memory.New()
	hub := registry.NewHub()
	t.Cleanup(hub.Shutdown)
	notifier := service.NewDispatcher(hub, discard)
	typing := service.NewTypingTracker(notifier, time.Minute, discard)
	t.Cleanup(typing.Close)
	profiles, err := service.NewProfileCache(st, 16)
	require.NoError(t, err)

	h := NewHandler(
		service.NewPresenceService(hub, typing, discard, "test"),
		service.NewDeliveryService(st, hub, notifier, nopExporter{}, discard, service.DeliveryOptions{RequireContact: true}),
		service.NewContactService(st, profiles, notifier, nopExporter{}, discard),
		profiles,
	)
	r := chi.NewRouter()
	h.Mount(r)
	return &fixture{router: r, store: st}
}

func (f *fixture) user(name string) uuid.UUID {
	id := uuid.New()
	f.store.PutUser(&model.User{ID: id, FullName: name, PasswordHash: "secret"})
	return id
}

func (f *fixture) do(t *testing.T, as uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if as != uuid.Nil {
		req.Header.Set(httpsrv.UserIDHeader, as.String())
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHandler_RequiresIdentity(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, uuid.Nil, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, uuid.Nil, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandler_ContactAndMessageFlow(t *testing.T) {
	f := newFixture(t)
	a, b := f.user("alice"), f.user("bob")

	// Not connected yet.
	rec := f.do(t, a, http.MethodPost, "/api/messages/"+b.String(), map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, a, http.MethodPost, "/api/connections/send", map[string]string{"receiverId": b.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(t, b, http.MethodGet, "/api/connections/pending", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")

	rec = f.do(t, b, http.MethodPost, "/api/connections/accept", map[string]string{"senderId": a.String()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, a, http.MethodGet, "/api/connections/accepted", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	contacts := decode[[]map[string]any](t, rec)
	require.Len(t, contacts, 1)
	assert.Equal(t, "bob", contacts[0]["fullName"])

	rec = f.do(t, a, http.MethodPost, "/api/messages/"+b.String(), map[string]string{"text": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	msg := decode[map[string]any](t, rec)
	assert.Equal(t, "sent", msg["status"])
	msgID := msg["_id"].(string)

	rec = f.do(t, a, http.MethodPut, "/api/messages/"+msgID, map[string]string{"text": "hello"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, b, http.MethodPost, "/api/messages/"+a.String()+"/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["count"])

	rec = f.do(t, a, http.MethodDelete, "/api/messages/"+msgID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, model.CodeInvalidState, decode[map[string]any](t, rec)["code"])

	rec = f.do(t, b, http.MethodGet, "/api/messages/"+a.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]map[string]any](t, rec)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0]["text"])
	assert.Equal(t, "read", history[0]["status"])
}

func TestHandler_MutualRequestAutoAccepts(t *testing.T) {
	f := newFixture(t)
	a, b := f.user("alice"), f.user("bob")

	rec := f.do(t, a, http.MethodPost, "/api/connections/send", map[string]string{"receiverId": b.String()})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, b, http.MethodPost, "/api/connections/send", map[string]string{"receiverId": a.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["autoAccepted"])

	rec = f.do(t, b, http.MethodPost, "/api/connections/send", map[string]string{"receiverId": a.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_DirectoryHidesPasswords(t *testing.T) {
	f := newFixture(t)
	a := f.user("alice")
	f.user("bob")

	rec := f.do(t, a, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
	assert.NotContains(t, rec.Body.String(), "alice")
	assert.Contains(t, rec.Body.String(), "bob")
}

func TestHandler_BadInput(t *testing.T) {
	f := newFixture(t)
	a := f.user("alice")

	rec := f.do(t, a, http.MethodGet, "/api/messages/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/connections/send", bytes.NewBufferString("{"))
	req.Header.Set(httpsrv.UserIDHeader, a.String())
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		model.ErrNotFound:                              http.StatusNotFound,
		model.ErrNotConnected:                          http.StatusForbidden,
		model.ErrAlreadyRequested:                      http.StatusConflict,
		model.ErrSelfConnection:                        http.StatusBadRequest,
		fmt.Errorf("x: %w", model.ErrStoreUnavailable): http.StatusServiceUnavailable,
		errors.New("boom"):                             http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusOf(err), "%v", err)
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("dial tcp 10.0.0.1: refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")
}
