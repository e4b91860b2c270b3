package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hanko-field/order-admin/internal/platform/requestctx"
)

const (
	maxCodeLen    = 80
	maxMessageLen = 512
)

// Error is the JSON error envelope: a stable machine code, a message in the negotiated locale,
// the HTTP status and optional details.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

// NewError builds an Error. A zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clean(code, maxCodeLen),
		Message: clean(message, maxMessageLen),
		Status:  status,
	}
}

// Error implements error so middlewares can return an Error as a value.
func (e Error) Error() string {
	return e.Code + ": " + e.Message
}

// WithDetails returns a copy carrying details under the "details" key.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

type errorBody struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Status    int            `json:"status"`
	RequestID string         `json:"request_id,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// WriteError writes err as JSON, stamped with the request and trace ids found in ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, errorBody{
		Error:     err.Code,
		Message:   err.Message,
		Status:    status,
		RequestID: clean(middleware.GetReqID(ctx), maxCodeLen),
		TraceID:   clean(requestctx.TraceID(ctx), 64),
		Details:   err.Details,
	})
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// clean flattens line breaks and truncates to limit bytes without splitting a rune.
func clean(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(value))
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
