// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package server exposes the chat, upload, document and health endpoints
// over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// DefaultMaxUploadBytes is the largest accepted upload.
const DefaultMaxUploadBytes int64 = 10 << 20

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr     string
	CORSOrigins    []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
	TrustedProxies []string
	RateLimit      RateLimitConfig
	Version        string
	Logger         *slog.Logger
}

// Server wraps a chi router with a huma API and an HTTP listener.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	logger   *slog.Logger
	services atomic.Pointer[Services]

	done      chan struct{}
	closeOnce sync.Once
}

// New builds the router and registers every route. Routes answer 503 until
// SetServices supplies their dependencies.
func New(cfg Config) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, aegiserr.New(aegiserr.CodeServerConfigInvalid, "listen address is required")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 180 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}

	srv := &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		done:   make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(cfg.TrustedProxies) > 0 {
		trusted, err := parseTrustedProxies(cfg.TrustedProxies)
		if err != nil {
			return nil, err
		}
		r.Use(trustedProxyRealIP(trusted, cfg.Logger))
	}
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimit, cfg.Logger, srv.done))

	humaConfig := huma.DefaultConfig("Aegis HR", cfg.Version)
	humaConfig.Info.Description = "Multi-agent HR assistant: resume screening, policy answers and onboarding plans."
	srv.router = r
	srv.api = humachi.New(r, humaConfig)

	srv.registerRoutes()
	srv.registerUploadRoute()

	return srv, nil
}

// SetServices installs the route dependencies. It may be called while the
// server is already serving.
func (s *Server) SetServices(svc *Services) {
	s.services.Store(svc)
}

func (s *Server) svc() *Services {
	if svc := s.services.Load(); svc != nil {
		return svc
	}
	return &Services{}
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API.
func (s *Server) API() huma.API {
	return s.api
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return aegiserr.Wrapf(err, aegiserr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer func() { _ = s.Close() }()

	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return aegiserr.Wrap(err, aegiserr.CodeServerStartFailure, "serving")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeServerShutdownFailure, "shutting down")
	}
	return <-errCh
}

// Close stops background work owned by the server.
func (s *Server) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:8501"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
