// Package server exposes the schema version of the wishare database over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/thebtf/wishare/internal/db"
	"github.com/thebtf/wishare/internal/maintenance"
	"github.com/thebtf/wishare/internal/migration"
	_ "github.com/thebtf/wishare/internal/server/docs" // registers the swagger document
	"github.com/thebtf/wishare/pkg/models"
	"golang.org/x/sync/singleflight"
)

// DefaultHTTPTimeout bounds every request, including the database round trips.
const DefaultHTTPTimeout = 30 * time.Second

// StatusReader reports the migration status. *migration.Manager implements it.
type StatusReader interface {
	Status(ctx context.Context) (*migration.Status, error)
}

// HistoryReader lists applied scripts. *gorm.HistoryStore implements it.
type HistoryReader interface {
	History(ctx context.Context, limit int) ([]models.SchemaVersion, error)
}

// SchemaCheckReader exposes the periodic schema check results.
// *maintenance.Service implements it.
type SchemaCheckReader interface {
	Stats() maintenance.Stats
}

// Options configures a Server.
type Options struct {
	History     HistoryReader     // nil disables /api/schema/history
	SchemaCheck SchemaCheckReader // optional, reported by /api/health
	Driver      string            // reported by /api/health
	Addr        string
	Development bool // serves Swagger UI under /swagger
}

// Server is the HTTP API.
type Server struct {
	router      *chi.Mux
	httpServer  *http.Server
	status      StatusReader
	history     HistoryReader
	exec        db.Executor
	log         zerolog.Logger
	statusGroup singleflight.Group
	opts        Options
}

// New creates a Server. exec runs the health check query.
func New(status StatusReader, exec db.Executor, log zerolog.Logger, opts Options) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		status:  status,
		history: opts.History,
		exec:    exec,
		log:     log.With().Str("component", "http").Logger(),
		opts:    opts,
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.opts.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.router.Use(RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
	s.router.Use(SecurityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/api/ping", s.handlePing)
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/schema", s.handleSchema)
	s.router.Get("/api/schema/history", s.handleSchemaHistory)

	if s.opts.Development {
		s.router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	}
}
