package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ignite/leadintel/internal/pkg/logger"
)

// maxBodyBytes bounds request bodies read by Decode.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSON writes a JSON response with the given status code. The data is
// serialized and Content-Type is set automatically.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("httputil: JSON encode failed", "error", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Error writes a JSON error response without a machine-readable code.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// ErrorWithCode writes a JSON error response carrying a stable error code
// clients can switch on.
func ErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusBadRequest, "bad_request", message)
}

// Unauthorized writes a 401 error.
func Unauthorized(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusUnauthorized, "unauthorized", message)
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusNotFound, "not_found", message)
}

// Conflict writes a 409 error.
func Conflict(w http.ResponseWriter, message string) {
	ErrorWithCode(w, http.StatusConflict, "conflict", message)
}

// InternalError writes a 500 error. Logs the real error but returns the
// given public message to the client (never leak internals).
func InternalError(w http.ResponseWriter, err error, public string) {
	logger.Error("httputil: internal error", "error", err)
	if public == "" {
		public = "internal server error"
	}
	ErrorWithCode(w, http.StatusInternalServerError, "internal", public)
}

// Decode reads JSON from the request body into dst. Unknown fields are
// rejected and an empty body decodes to the zero value.
// Returns false and writes a 400 response if parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// QueryInt parses an integer query parameter. Missing or malformed values
// yield def; values above max are clamped to max when max > 0.
func QueryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
