// internal/server/router.go
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"policy-monitor/internal/common/logger"
	"policy-monitor/internal/common/metrics"
)

// RequestRecorder feeds the otel side of the metrics pipeline. May be
// nil in tests.
type RequestRecorder interface {
	RecordRequest(ctx context.Context, route, status string)
	RecordDuration(ctx context.Context, route string, duration time.Duration)
}

// NewRouter wires every route onto a stdlib mux. Method and path
// wildcards come from the 1.22 ServeMux patterns, so no routing
// framework is needed.
func NewRouter(h *Handlers, obs RequestRecorder, log logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/serial-numbers/available/{policyType}", h.availableSerial)
	mux.HandleFunc("GET /api/serial-numbers", h.serialHistory)
	mux.HandleFunc("POST /api/monitoring/submit", h.submit)
	mux.HandleFunc("GET /api/monitoring/all", h.listAll)
	mux.HandleFunc("GET /api/submissions/details/{serialNumber}", h.details)
	mux.HandleFunc("POST /api/form-submissions", h.attachDocuments)
	mux.HandleFunc("GET /api/form-submissions", h.listWithForms)
	mux.HandleFunc("PATCH /api/form-submissions/{id}/status", h.setStatus)
	mux.HandleFunc("POST /api/submissions/{id}/pay", h.recordPayment)
	mux.HandleFunc("GET /api/submissions/{id}/payments", h.paymentHistory)
	mux.HandleFunc("GET /api/customers", h.listCustomers)
	mux.HandleFunc("GET /api/customers/{id}", h.getCustomer)
	mux.HandleFunc("GET /api/health", h.health)
	mux.Handle("GET /metrics", promhttp.Handler())

	return instrument(mux, obs, log)
}

// statusRecorder captures the response code for metrics and access logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func instrument(next http.Handler, obs RequestRecorder, log logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		status := strconv.Itoa(rec.status)
		metrics.RequestDuration.WithLabelValues(r.URL.Path, r.Method, status).
			Observe(elapsed.Seconds())
		if obs != nil {
			obs.RecordRequest(r.Context(), r.URL.Path, status)
			obs.RecordDuration(r.Context(), r.URL.Path, elapsed)
		}
		log.Debug("request handled", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": elapsed.String(),
		})
	})
}
