// Package web provides the HTTP surface of the outlet sync service: batch
// submission, health and metrics.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/outletsync/internal/config"
	"github.com/JonMunkholm/outletsync/internal/core"
	"github.com/JonMunkholm/outletsync/internal/metrics"
	appmw "github.com/JonMunkholm/outletsync/internal/web/middleware"
)

// Processor runs outlet batches. Satisfied by *core.Engine.
type Processor interface {
	Process(ctx context.Context, req core.Request) (*core.Result, error)
}

// Server is the HTTP server for batch submission.
type Server struct {
	engine  Processor
	cfg     *config.Config
	metrics *metrics.Metrics
	limiter *BatchLimiter
	rate    *rateLimiter
	router  *chi.Mux
	server  *http.Server
}

// NewServer wires routes and middleware. m may be nil, which disables the
// metrics endpoint and request instrumentation.
func NewServer(engine Processor, cfg *config.Config, m *metrics.Metrics) *Server {
	s := &Server{
		engine:  engine,
		cfg:     cfg,
		metrics: m,
		limiter: NewBatchLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		router:  chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.rate = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		go s.rate.run()
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(appmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(appmw.Logger)
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	s.router.Use(securityHeaders)
	if s.rate != nil {
		s.router.Use(s.rate.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	if s.metrics != nil && s.cfg.Metrics.Enabled {
		s.router.Method(http.MethodGet, s.cfg.Metrics.Path, s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(appmw.APIKeyAuth(s.cfg.Security))
		r.Post("/batches", s.handleSubmitBatch)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running batches.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rate != nil {
		s.rate.Close()
	}
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	if drainErr := s.limiter.WaitForDrain(ctx); drainErr != nil && err == nil {
		err = drainErr
	}
	return err
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Limiter returns the batch concurrency limiter.
func (s *Server) Limiter() *BatchLimiter {
	return s.limiter
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
