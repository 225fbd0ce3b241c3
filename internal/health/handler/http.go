package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger checks database connectivity, typically *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker verifies the in-process policy engine.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves liveness and readiness for load balancers and Kubernetes.
type Handler struct {
	db     Pinger
	policy PolicyChecker
	logger *zap.Logger
}

// NewHandler returns a health handler. db and policy may be nil; nil checks
// are skipped.
func NewHandler(db Pinger, policy PolicyChecker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{db: db, policy: policy, logger: logger}
}

// Live always reports ok while the process is serving.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports ok only when all dependencies answer.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warn("db health check failed", zap.Error(err))
			checks["database"] = "unavailable"
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if h.policy != nil {
		if err := h.policy.HealthCheck(ctx); err != nil {
			h.logger.Warn("policy engine health check failed", zap.Error(err))
			checks["policy_engine"] = "unavailable"
			healthy = false
		} else {
			checks["policy_engine"] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeStatus(w, status, map[string]any{"status": statusWord(healthy), "checks": checks})
}

func statusWord(healthy bool) string {
	if healthy {
		return "ok"
	}
	return "degraded"
}

func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
