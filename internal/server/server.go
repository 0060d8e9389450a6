// Package server provides the HTTP server and routing for the
// assignment engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/territory-assign/internal/events"
	"github.com/aristath/territory-assign/internal/modules/assignment"
	"github.com/aristath/territory-assign/internal/reliability"
)

// Config holds server configuration.
type Config struct {
	Log          zerolog.Logger
	Orchestrator *assignment.Orchestrator
	Events       *events.Manager
	Backup       *reliability.Service // optional; nil disables report archiving
	Port         int
	DevMode      bool
}

// Server is the HTTP surface over one Orchestrator.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	events *events.Manager

	handlers *Handlers
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		events: cfg.Events,
	}
	s.handlers = NewHandlers(cfg.Orchestrator, cfg.Backup, s.log)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/version", s.handleVersion)

		progressHandler := NewProgressStreamHandler(s.events, s.log)
		r.Get("/assignments/stream", progressHandler.ServeHTTP)

		r.Route("/assignments", func(r chi.Router) {
			r.Post("/generate", s.handlers.HandleGenerate)
			r.Post("/execute", s.handlers.HandleExecute)
			r.Post("/backfill/toggle", s.handlers.HandleBackfillToggle)
			r.Get("/status", s.handlers.HandleStatus)
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// KnownBuildIDs returns every buildID seen so far by this server's
// handlers, for wiring into background jobs that need to enumerate
// active builds.
func (s *Server) KnownBuildIDs() []string {
	return s.handlers.KnownBuildIDs()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
