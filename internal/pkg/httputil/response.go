// Package httputil holds the JSON response envelope shared by all API
// handlers.
package httputil

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// JSON writes a JSON response with the given status code. Content-Type is
// set automatically; encode failures are logged, not surfaced.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[httputil] JSON encode error: %v", err)
	}
}

// OK writes a 200 response with the given data.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Error writes a JSON error response. Use for client errors (4xx).
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, message)
}

// BadGateway writes a 502 error. Used when the SIOMA upstream fails; the
// real error is logged, the client gets the message as-is.
func BadGateway(w http.ResponseWriter, message string, err error) {
	log.Printf("[httputil] upstream error: %v", err)
	Error(w, http.StatusBadGateway, message)
}

// InternalError writes a 500 error. Logs the real error but returns a
// generic message to the client (never leak internals).
func InternalError(w http.ResponseWriter, err error) {
	log.Printf("[httputil] internal error: %v", err)
	Error(w, http.StatusInternalServerError, "internal server error")
}

// Decode reads JSON from the request body into dst.
// Returns false and writes a 400 response if parsing fails.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}
