package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gearloop/assetloan/internal/apperr"
)

// Envelope is the stable response shape returned by every endpoint: only
// success and the presence of data/error/details vary between a success and
// a failure response (§8 RT).
type Envelope struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Error   *ErrorBody          `json:"error,omitempty"`
	Details []apperr.FieldError `json:"details,omitempty"`
}

// ErrorBody carries the error kind and a client-safe message. Internal
// errors never expose their underlying cause here; that detail is logged
// only.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Respond writes a successful JSON response.
func Respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

// RespondNoContent writes a 204 with no body.
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RespondError writes a failure envelope for a known error kind, mapping it
// to its HTTP status in the one place that performs that mapping (§7).
func RespondError(w http.ResponseWriter, kind apperr.Kind, message string) {
	writeJSON(w, kindStatus(kind), Envelope{Success: false, Error: &ErrorBody{Kind: string(kind), Message: message}})
}

// RespondValidationError writes a 422 response with field-level validation
// errors.
func RespondValidationError(w http.ResponseWriter, details []apperr.FieldError) {
	writeJSON(w, kindStatus(apperr.KindValidation), Envelope{
		Success: false,
		Error:   &ErrorBody{Kind: string(apperr.KindValidation), Message: "one or more fields failed validation"},
		Details: details,
	})
}

// kindStatus maps an apperr.Kind to its HTTP status, the single place in
// the codebase that performs this mapping (§7).
func kindStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError maps err to its HTTP status and writes the failure envelope.
// Non-apperr errors are logged with full detail and surfaced to the client
// as an opaque "internal error" (§7: internal errors are 500, opaque
// message, full stack logged; nothing else leaks a cause).
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		status := kindStatus(appErr.Kind)
		if status >= http.StatusInternalServerError {
			logger.Error("internal error", "error", err)
			writeJSON(w, status, Envelope{Success: false, Error: &ErrorBody{Kind: string(appErr.Kind), Message: "internal error"}})
			return
		}
		writeJSON(w, status, Envelope{
			Success: false,
			Error:   &ErrorBody{Kind: string(appErr.Kind), Message: appErr.Message},
			Details: appErr.Details,
		})
		return
	}

	logger.Error("unhandled error", "error", err)
	writeJSON(w, http.StatusInternalServerError, Envelope{
		Success: false,
		Error:   &ErrorBody{Kind: string(apperr.KindInternal), Message: "internal error"},
	})
}

func writeJSON(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
