package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service's instruments. It also implements the auth
// service's FailureCounter so login failures show up as a counter without
// extra plumbing.
type Metrics struct {
	logins        metric.Int64Counter
	loginFailures metric.Int64Counter
	httpRequests  metric.Int64Counter
	httpDuration  metric.Float64Histogram
}

// NewMetrics registers the instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("fitstack.auth")

	logins, err := meter.Int64Counter("auth.logins",
		metric.WithDescription("Successful logins"))
	if err != nil {
		return nil, err
	}
	loginFailures, err := meter.Int64Counter("auth.login_failures",
		metric.WithDescription("Failed login attempts"))
	if err != nil {
		return nil, err
	}
	httpRequests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("HTTP requests served"))
	if err != nil {
		return nil, err
	}
	httpDuration, err := meter.Float64Histogram("http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		logins:        logins,
		loginFailures: loginFailures,
		httpRequests:  httpRequests,
		httpDuration:  httpDuration,
	}, nil
}

// RecordLogin counts one successful login.
func (m *Metrics) RecordLogin(ctx context.Context) {
	m.logins.Add(ctx, 1)
}

// RecordFailure counts one failed login attempt. The email is deliberately
// not recorded; it would be a high-cardinality attribute and PII.
func (m *Metrics) RecordFailure(ctx context.Context, email, ip string) {
	m.loginFailures.Add(ctx, 1)
}

// HTTPMiddleware records request counts and durations by method and status.
func (m *Metrics) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			attrs := metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.status", strconv.Itoa(ww.Status())),
			)
			m.httpRequests.Add(r.Context(), 1, attrs)
			m.httpDuration.Record(r.Context(), time.Since(start).Seconds(), attrs)
		})
	}
}
