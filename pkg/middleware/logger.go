package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oriontel/dialer-router/internal/metrics"
	"github.com/rs/zerolog"
)

// statusRecorder captures the status code written by the wrapped handler,
// defaulting to 200 when WriteHeader is never called explicitly.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logger logs one structured entry per request with method, path and
// status, and records the router_http_requests_total /
// router_http_request_duration_seconds metrics keyed by route pattern and
// status code.
func Logger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Msg("request completed")

			route := routePattern(r)
			metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
		})
	}
}

// routePattern returns the matched chi route pattern (e.g. "/agents/{agentId}")
// so metrics stay low-cardinality; it falls back to the raw path when chi
// hasn't resolved a pattern yet (no match, or mounted ahead of chi's router).
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
