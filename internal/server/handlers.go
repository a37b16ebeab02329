package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/thebtf/wishare/internal/db"
	"github.com/thebtf/wishare/internal/maintenance"
	"github.com/thebtf/wishare/internal/migration"
)

// maxHistoryLimit caps the limit query parameter of /api/schema/history.
const maxHistoryLimit = 1000

// Health is the /api/health response.
type Health struct {
	SchemaCheck *maintenance.Stats `json:"schema_check,omitempty"`
	Status      string             `json:"status"`
	Driver      string             `json:"driver,omitempty"`
	History     string             `json:"history,omitempty"` // ok, or the history store ping error
	Error       string             `json:"error,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with proper error handling.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// handlePing answers "Pong" without touching the database.
func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Pong"))
}

// pinger is implemented by history stores that hold their own pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// handleHealth runs a trivial query through the executor. A failing history
// store is reported but does not make the service unavailable.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := Health{Status: "ok", Driver: s.opts.Driver}
	if s.opts.SchemaCheck != nil {
		st := s.opts.SchemaCheck.Stats()
		h.SchemaCheck = &st
	}
	if p, ok := s.history.(pinger); ok {
		h.History = "ok"
		if err := p.Ping(r.Context()); err != nil {
			h.History = err.Error()
		}
	}
	if _, err := s.exec.ExecuteScalar(r.Context(), db.NewQuery("SELECT 1")); err != nil {
		h.Status = "unavailable"
		h.Error = err.Error()
		s.writeJSON(w, http.StatusServiceUnavailable, h)
		return
	}
	s.writeJSON(w, http.StatusOK, h)
}

// handleSchema reports current and expected versions. Concurrent requests
// share one round trip to the database, so the shared call is detached from
// the request that happened to start it.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	v, err, _ := s.statusGroup.Do("status", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), DefaultHTTPTimeout)
		defer cancel()
		return s.status.Status(ctx)
	})
	if err != nil {
		status := http.StatusInternalServerError
		if db.IsTransient(err) {
			status = http.StatusServiceUnavailable
		}
		s.log.Error().Err(err).Msg("Failed to read schema status")
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, v.(*migration.Status))
}

// handleSchemaHistory lists applied scripts, newest first.
func (s *Server) handleSchemaHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotImplemented, errors.New("schema history requires a PostgreSQL driver"))
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			s.writeError(w, http.StatusBadRequest, errors.New("limit must be between 1 and 1000"))
			return
		}
		limit = n
	}

	rows, err := s.history.History(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to read schema history")
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}
