// internal/server/server.go
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"policy-monitor/internal/common/config"
	"policy-monitor/internal/common/logger"
)

// Server wraps the HTTP listener with the configured timeouts.
type Server struct {
	httpServer *http.Server
	logger     logger.Logger
}

func New(cfg config.ServerConfig, handler http.Handler, log logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      withDeadline(handler, msOrDefault(cfg.RequestTimeout, 10*time.Second)),
			ReadTimeout:  msOrDefault(cfg.ReadTimeout, 15*time.Second),
			WriteTimeout: msOrDefault(cfg.WriteTimeout, 60*time.Second),
			IdleTimeout:  2 * time.Minute,
		},
		logger: log,
	}
}

// withDeadline caps every downstream call (database, storage, mail
// preview) at one per-request budget.
func withDeadline(next http.Handler, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Info("http server listening", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down", nil)
	return s.httpServer.Shutdown(ctx)
}

func msOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
