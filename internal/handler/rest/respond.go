package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/webitel/im-presence-service/internal/domain/model"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusOf maps the error taxonomy onto HTTP.
func StatusOf(err error) int {
	switch model.Code(err) {
	case model.CodeNotFound:
		return http.StatusNotFound
	case model.CodeForbidden:
		return http.StatusForbidden
	case model.CodeInvalidState:
		return http.StatusConflict
	case model.CodeValidation:
		return http.StatusBadRequest
	case model.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs.
		msg = "internal error"
	}
	writeJSON(w, status, &errorBody{Code: model.Code(err), Message: msg})
}

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body too large: %w", model.ErrValidation)
		}
		return fmt.Errorf("decode body: %v: %w", err, model.ErrValidation)
	}
	return nil
}
