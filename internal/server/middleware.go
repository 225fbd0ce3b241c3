package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"fitstack/auth/internal/ratelimit"
	"fitstack/auth/internal/security"
	sessiondomain "fitstack/auth/internal/session/domain"
)

const bearerPrefix = "bearer "

// SessionChecker verifies that the session behind a token's jti is still
// live and records activity on it.
type SessionChecker interface {
	GetLive(ctx context.Context, id string) (*sessiondomain.Session, error)
	Touch(ctx context.Context, id string) error
}

// Auth returns middleware that validates the Bearer access token and checks
// that the session named by its jti is still live. A logged-out session kills
// its access tokens immediately, before their expiry. On success the identity
// is placed in the request context and the session is touched.
func Auth(tokens *security.TokenProvider, sessions SessionChecker, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				unauthorized(w)
				return
			}
			claims, err := tokens.ValidateAccess(token)
			if err != nil {
				unauthorized(w)
				return
			}
			sess, err := sessions.GetLive(r.Context(), claims.SessionID())
			if err != nil {
				logger.Error("session lookup failed", zap.Error(err))
				serviceUnavailable(w)
				return
			}
			if sess == nil {
				unauthorized(w)
				return
			}
			if err := sessions.Touch(r.Context(), sess.ID); err != nil {
				logger.Warn("session touch failed", zap.String("session_id", sess.ID), zap.Error(err))
			}
			ctx := WithIdentity(r.Context(), claims.Subject, claims.Email, sess.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit returns middleware that applies the given limiter config keyed
// by client IP. Rejected requests get 429 with Retry-After; every response
// carries the X-RateLimit-* headers.
func RateLimit(limiter *ratelimit.Limiter, cfg ratelimit.Config, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := limiter.Check(r.Context(), ClientIP(r), cfg)
			if err != nil {
				// A broken counter store must not take the API down.
				logger.Warn("rate limit check failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetTime.Unix(), 10))
			if !res.Allowed {
				h.Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds()+1)))
				writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger returns middleware that logs one line per request with
// method, path, status, duration and request id.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("ip", ClientIP(r)),
			)
		})
	}
}

// ClientIP returns the client address for rate limiting and audit. It trusts
// X-Forwarded-For only for its first hop; deployments without a proxy fall
// back to the socket address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		if ip := strings.TrimSpace(xff); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func unauthorized(w http.ResponseWriter) {
	writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization")
}

func serviceUnavailable(w http.ResponseWriter) {
	writeJSONError(w, http.StatusServiceUnavailable, "service_unavailable", "temporarily unavailable")
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"code":    code,
		"message": message,
	})
}
