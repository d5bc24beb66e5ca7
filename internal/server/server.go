// Package server exposes a user's files over HTTP for `vfm serve`.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"vfm-go/internal/vault"
	"vfm-go/internal/vfm"
)

// Server routes requests to the vfm managers.
type Server struct {
	router   *chi.Mux
	services *vfm.Services
	urls     *vault.URLRegistry
	logger   *slog.Logger
}

// New creates a Server. urls is the registry local object URLs are minted
// from; /objects serves them.
func New(services *vfm.Services, urls *vault.URLRegistry, logger *slog.Logger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		services: services,
		urls:     urls,
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

// GET    /healthz
// GET    /api/me
// GET    /api/contents            ?folder=&sort=&search=&type=
// GET    /api/recent              ?sort=&search=&limit=
// GET    /api/usage
// GET    /api/shared
// GET    /api/files/{fileID}
// POST   /api/files/{fileID}/url
// GET    /objects/{token}
// DELETE /objects/{token}
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(requestLogger(s.logger))

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/me", s.handleMe)
		r.Get("/contents", s.handleContents)
		r.Get("/recent", s.handleRecent)
		r.Get("/usage", s.handleUsage)
		r.Get("/shared", s.handleShared)
		r.Get("/files/{fileID}", s.handleFileContent)
		r.Post("/files/{fileID}/url", s.handleFileURL)
	})

	// Object URLs are capabilities: holding the token is the permission.
	s.router.Get("/objects/{token}", s.handleObject)
	s.router.Delete("/objects/{token}", s.handleReleaseObject)
}

// ServeHTTP lets the Server be used as an http.Handler, e.g. in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start listens on addr until SIGINT or SIGTERM, then drains in-flight
// requests before returning.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
