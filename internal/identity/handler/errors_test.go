package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fitstack/auth/internal/identity/service"
	"fitstack/auth/internal/ratelimit"
)

func TestWriteServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"expired token", service.ErrTokenExpired, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"revoked token", service.ErrTokenRevoked, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"malformed token", service.ErrTokenMalformed, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
		{"rate limited", service.ErrTooManyRequests, http.StatusTooManyRequests, ErrCodeRateLimited},
		{"unavailable", service.ErrServiceUnavailable, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"weak password", service.ErrWeakPassword, http.StatusBadRequest, ErrCodeValidation},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tc.err)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var body Error
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tc.wantCode)
			}
		})
	}
}

func TestCredentialFailuresShareOneBody(t *testing.T) {
	bodies := map[string]bool{}
	for _, err := range []error{
		service.ErrInvalidCredentials,
		service.ErrTokenExpired,
		service.ErrTokenRevoked,
		service.ErrTokenMalformed,
	} {
		rec := httptest.NewRecorder()
		writeServiceError(rec, err)
		bodies[rec.Body.String()] = true
	}
	if len(bodies) != 1 {
		t.Errorf("got %d distinct 401 bodies, want 1", len(bodies))
	}
}

func TestWriteServiceErrorRateLimitHeaders(t *testing.T) {
	reset := time.Now().Add(42 * time.Second)
	err := &service.RateLimitedError{Result: ratelimit.Result{
		Allowed:    false,
		RetryAfter: 42 * time.Second,
		ResetTime:  reset,
	}}

	rec := httptest.NewRecorder()
	writeServiceError(rec, err)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "43" {
		t.Errorf("Retry-After = %q, want %q", got, "43")
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("X-RateLimit-Reset header missing")
	}
}
