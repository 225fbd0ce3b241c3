package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"fitstack/auth/internal/identity/service"
)

// Error is the structured error response body.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeUnavailable  = "service_unavailable"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Status: status, Code: code, Message: message})
}

// writeServiceError maps service sentinel errors to HTTP responses. Every
// credential or token failure collapses into the same 401 body; the specific
// cause was already logged where it happened.
func writeServiceError(w http.ResponseWriter, err error) {
	var rle *service.RateLimitedError
	if errors.As(err, &rle) {
		w.Header().Set("Retry-After", strconv.Itoa(int(rle.Result.RetryAfter.Seconds()+1)))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rle.Result.ResetTime.Unix(), 10))
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "too many requests")
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrTokenRevoked),
		errors.Is(err, service.ErrTokenMalformed):
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication failed")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "forbidden")
	case errors.Is(err, service.ErrTooManyRequests):
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "too many requests")
	case errors.Is(err, service.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "temporarily unavailable")
	case errors.Is(err, service.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}
