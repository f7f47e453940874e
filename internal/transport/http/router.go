// Package httptransport assembles the HTTP surface: middleware chain,
// module handlers, health, and metrics.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firegate/internal/platform/metrics"
	"firegate/internal/platform/middleware"
	"firegate/pkg/platform/httputil"
)

// Registrar is implemented by module handlers that mount their routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports readiness of one dependency.
type HealthChecker func() error

// NewRouter builds the full router. checkers run on /healthz; a nil map
// is fine for development mode.
func NewRouter(logger *slog.Logger, m *metrics.Metrics, checkers map[string]HealthChecker, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Actor)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Latency(m))
	r.Use(middleware.Timeout(30 * time.Second))

	for _, h := range handlers {
		h.Register(r)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checkers {
			if err := check(); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			} else {
				body[name] = "ok"
			}
		}
		httputil.WriteJSON(w, status, body)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
