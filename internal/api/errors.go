package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"gitlab.bluewillows.net/root/netwarden/pkg/upstream"
)

// ErrorCode classifies API error responses.
type ErrorCode string

const (
	ErrCodeInvalidRequest ErrorCode = "invalid_request"
	ErrCodeNotFound       ErrorCode = "not_found"
	ErrCodeUnauthorized   ErrorCode = "upstream_auth"
	ErrCodeUpstreamError  ErrorCode = "upstream_error"
	ErrCodeInternalError  ErrorCode = "internal_error"
)

// APIError is the structured error payload.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorResponse wraps an APIError for JSON responses.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// WriteError writes a structured error response.
func WriteError(w http.ResponseWriter, statusCode int, code ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: APIError{Code: code, Message: message}})
}

// WriteInvalidRequest writes a 400 Bad Request error.
func WriteInvalidRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, message)
}

// WriteNotFound writes a 404 Not Found error.
func WriteNotFound(w http.ResponseWriter, resource string) {
	WriteError(w, http.StatusNotFound, ErrCodeNotFound, resource+" not found")
}

// WriteInternalError writes a 500 Internal Server Error.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// writeUpstreamError maps an engine error onto an HTTP response: bad input is
// the caller's fault, missing names are 404, credential trouble is 401, and
// everything else is the upstream's fault.
func writeUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, upstream.ErrInvalidOperation):
		WriteInvalidRequest(w, err.Error())
	case errors.Is(err, upstream.ErrUnknownResource):
		WriteError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, upstream.ErrNoCredentials), errors.Is(err, upstream.ErrAuthentication):
		WriteError(w, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
	default:
		WriteError(w, http.StatusBadGateway, ErrCodeUpstreamError, err.Error())
	}
}
