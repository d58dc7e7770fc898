package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server represents the HTTP control server.
type Server struct {
	httpServer  *http.Server
	updater     UpdaterPort
	registry    RegistryPort
	telemetry   TelemetryPort
	audit       AuditPort
	log         *zap.Logger
	startTime   time.Time
	readTimeout time.Duration
	idleTimeout time.Duration
}

// NewServer creates a new control server. telemetry and audit may be
// nil.
func NewServer(updater UpdaterPort, reg RegistryPort, telemetry TelemetryPort, auditLog AuditPort, readTimeout, idleTimeout time.Duration, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		updater:     updater,
		registry:    reg,
		telemetry:   telemetry,
		audit:       auditLog,
		log:         log,
		startTime:   time.Now(),
		readTimeout: readTimeout,
		idleTimeout: idleTimeout,
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: s.readTimeout,
		// No write timeout: the OTA ack is flushed early and the
		// pipeline then runs inline for the remainder of the request.
		IdleTimeout: s.idleTimeout,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
