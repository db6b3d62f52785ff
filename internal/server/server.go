// Package server wires the reference chat server: storage, handlers, middleware
// and the HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/chatsync/internal/server/handlers"
	"github.com/iudanet/chatsync/internal/server/middleware"
	"github.com/iudanet/chatsync/internal/server/storage/sqlite"
)

// Config параметры сервера
type Config struct {
	Addr            string
	DBPath          string
	Version         string
	RatePerSecond   float64 // 0 отключает ограничение частоты
	RateBurst       int
	ReactionHold    time.Duration // задержка применения реакции, расширяет окно 409
	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает параметры по умолчанию
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		DBPath:          "chatsync-server.db",
		Version:         "dev",
		RatePerSecond:   20,
		RateBurst:       40,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the reference chat server.
type Server struct {
	logger   *slog.Logger
	storage  *sqlite.Storage
	session  *handlers.SessionHandler
	limiter  *middleware.RateLimiter
	registry *prometheus.Registry
	handler  http.Handler
	cfg      Config
}

// New opens the database and builds the HTTP handler.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	st, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	s, err := NewWithStorage(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return s, nil
}

// NewWithStorage builds the server on top of an open storage. Close closes it.
func NewWithStorage(cfg Config, st *sqlite.Storage, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register go collector: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register http metrics: %w", err)
	}

	s := &Server{
		logger:   logger,
		storage:  st,
		session:  handlers.NewSessionHandler(logger),
		registry: registry,
		cfg:      cfg,
	}

	health := handlers.NewHealthHandler(logger, st, cfg.Version)
	messages := handlers.NewMessageHandler(logger, st, st)
	reactions := handlers.NewReactionHandler(logger, st, cfg.ReactionHold)
	participants := handlers.NewParticipantHandler(logger, st)

	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, httpMetrics.Instrument(pattern, h))
	}

	route("GET /api/v1/health", health.Health)
	route("GET /api/v1/session", s.session.Get)
	route("POST /api/v1/session/rotate", s.session.HandleRotate)
	route("GET /api/v1/messages", messages.List)
	route("POST /api/v1/messages", messages.Create)
	route("PATCH /api/v1/messages/{id}", messages.Edit)
	route("DELETE /api/v1/messages/{id}", messages.Delete)
	route("POST /api/v1/messages/{id}/reactions", reactions.Add)
	route("GET /api/v1/participants", participants.List)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Порядок: logging -> recovery -> participant -> rate limit -> mux.
	// Recovery внутри logging, чтобы упавший запрос попал в лог со статусом 500.
	var h http.Handler = mux
	if cfg.RatePerSecond > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RatePerSecond, cfg.RateBurst, logger)
		h = middleware.RateLimitMiddleware(s.limiter, logger)(h)
	}
	h = middleware.ParticipantMiddleware(logger)(h)
	h = middleware.RecoveryMiddleware(logger)(h)
	h = middleware.LoggingWithSkip(logger, []string{"/api/v1/health", "/metrics"})(h)
	s.handler = h

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Storage returns the underlying storage.
func (s *Server) Storage() *sqlite.Storage {
	return s.storage
}

// RotateSession выпускает новую сессию, как POST /api/v1/session/rotate
func (s *Server) RotateSession() string {
	return s.session.Rotate()
}

// Run serves HTTP on cfg.Addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", s.cfg.Addr, "version", s.cfg.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return <-errCh
}

// Close releases the rate limiter and the database.
func (s *Server) Close() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return s.storage.Close()
}
