package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prysmalight/prysma-core/internal/light"
)

// Error represents a structured error response.
type Error struct {
	Status  int               `json:"status"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details []light.Violation `json:"details,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeUnauthorized   = "unauthorised"
	ErrCodeForbidden      = "forbidden"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeTimeout        = "timeout"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeServiceError maps a light.Service error onto a response. Only
// unexpected errors are logged; their text is not sent to the client.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *light.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, Error{
			Status:  http.StatusUnprocessableEntity,
			Code:    ErrCodeValidation,
			Message: "validation failed",
			Details: verr.Violations,
		})
	case errors.Is(err, light.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "light not found")
	case errors.Is(err, light.ErrConflict):
		writeError(w, http.StatusConflict, ErrCodeConflict, "light already exists")
	case errors.Is(err, light.ErrInvalidArgument):
		writeBadRequest(w, err.Error())
	case errors.Is(err, light.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, light.ErrCommandTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeTimeout, "light did not acknowledge the command")
	default:
		s.logger.Error("light request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "internal server error")
	}
}
