package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/agrismart-api/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger logs one line per request and records the HTTP metrics,
// labelled by the matched route pattern rather than the raw path.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			latency := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			path := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					path = pattern
				}
			}

			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", status),
				slog.Duration("latency", latency),
				slog.String("peer_ip", peerIP(r)),
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
			)

			code := strconv.Itoa(status)
			metrics.RequestCount.WithLabelValues(r.Method, path, code).Inc()
			metrics.RequestDuration.WithLabelValues(r.Method, path, code).Observe(latency.Seconds())
		})
	}
}
