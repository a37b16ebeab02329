package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thebtf/wishare/internal/db"
	"github.com/thebtf/wishare/internal/maintenance"
	"github.com/thebtf/wishare/internal/migration"
	"github.com/thebtf/wishare/pkg/models"
)

type stubStatus struct {
	st  *migration.Status
	err error
}

func (s stubStatus) Status(context.Context) (*migration.Status, error) {
	return s.st, s.err
}

type stubHistory struct {
	rows  []models.SchemaVersion
	limit int
}

func (s *stubHistory) History(_ context.Context, limit int) ([]models.SchemaVersion, error) {
	s.limit = limit
	return s.rows, nil
}

type stubExec struct {
	err error
}

func (s stubExec) ExecuteScalar(context.Context, *db.Query) (any, error) { return int64(1), s.err }
func (s stubExec) ExecuteNonQuery(context.Context, *db.Query) (int64, error) {
	return 0, errors.New("not used")
}

func newTestServer(status StatusReader, exec db.Executor, opts Options) *Server {
	return New(status, exec, zerolog.Nop(), opts)
}

func do(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPing(t *testing.T) {
	s := newTestServer(stubStatus{}, stubExec{}, Options{})

	rec := do(t, s, "/api/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Pong", rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(stubStatus{}, stubExec{}, Options{Driver: "sqlite"}), "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var h Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, Health{Status: "ok", Driver: "sqlite"}, h)

	rec = do(t, newTestServer(stubStatus{}, stubExec{err: errors.New("connection refused")}, Options{}), "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "unavailable", h.Status)
	assert.Contains(t, h.Error, "connection refused")
}

type pingingHistory struct {
	stubHistory
	err error
}

func (p *pingingHistory) Ping(context.Context) error { return p.err }

func TestHealth_HistoryPing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"reachable", nil, "ok"},
		{"unreachable", errors.New("dial tcp: connection refused"), "dial tcp: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(stubStatus{}, stubExec{}, Options{History: &pingingHistory{err: tt.err}})
			rec := do(t, s, "/api/health")
			require.Equal(t, http.StatusOK, rec.Code)

			var h Health
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
			assert.Equal(t, "ok", h.Status)
			assert.Equal(t, tt.want, h.History)
		})
	}
}

type stubChecks struct{}

func (stubChecks) Stats() maintenance.Stats {
	return maintenance.Stats{Runs: 4, Failures: 1, UpToDate: true}
}

func TestHealth_SchemaCheck(t *testing.T) {
	rec := do(t, newTestServer(stubStatus{}, stubExec{}, Options{SchemaCheck: stubChecks{}}), "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var h Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	require.NotNil(t, h.SchemaCheck)
	assert.Equal(t, int64(4), h.SchemaCheck.Runs)
	assert.True(t, h.SchemaCheck.UpToDate)
}

func TestSchema(t *testing.T) {
	st := &migration.Status{
		Pending:         []migration.Script{{Name: "0002_add_index.sql", Version: 2}},
		CurrentVersion:  1,
		ExpectedVersion: 2,
		Initialized:     true,
	}
	rec := do(t, newTestServer(stubStatus{st: st}, stubExec{}, Options{}), "/api/schema")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got migration.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, *st, got)
}

func TestSchema_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"no scripts", migration.ErrNoScripts, http.StatusInternalServerError},
		{"empty table", migration.ErrEmptyVersionTable, http.StatusInternalServerError},
		{"transient", &db.ConnectivityError{Class: db.ClassTransient, Err: errors.New("refused")}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestServer(stubStatus{err: tt.err}, stubExec{}, Options{}), "/api/schema")
			assert.Equal(t, tt.code, rec.Code)

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body.Error)
		})
	}
}

// blockingStatus holds every Status call until release is closed, failing
// early only when its own context ends.
type blockingStatus struct {
	st      *migration.Status
	entered chan struct{}
	release chan struct{}
}

func (s blockingStatus) Status(ctx context.Context) (*migration.Status, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	select {
	case <-s.release:
		return s.st, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSchema_SharedCallSurvivesFirstClientCancel(t *testing.T) {
	status := blockingStatus{
		st:      &migration.Status{CurrentVersion: 2, ExpectedVersion: 2, UpToDate: true, Initialized: true},
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := newTestServer(status, stubExec{}, Options{})

	ctx1, cancel1 := context.WithCancel(context.Background())
	defer cancel1()

	serve := func(ctx context.Context) <-chan *httptest.ResponseRecorder {
		out := make(chan *httptest.ResponseRecorder, 1)
		go func() {
			req := httptest.NewRequest(http.MethodGet, "/api/schema", nil).WithContext(ctx)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			out <- rec
		}()
		return out
	}

	first := serve(ctx1)
	select {
	case <-status.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never reached Status")
	}

	second := serve(context.Background())
	time.Sleep(50 * time.Millisecond)
	cancel1()
	time.Sleep(20 * time.Millisecond)
	close(status.release)

	for _, ch := range []<-chan *httptest.ResponseRecorder{second, first} {
		select {
		case rec := <-ch:
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var got migration.Status
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, 2, got.CurrentVersion)
		case <-time.After(2 * time.Second):
			t.Fatal("request did not complete")
		}
	}
}

func TestSchemaHistory(t *testing.T) {
	hist := &stubHistory{rows: []models.SchemaVersion{
		{Version: 1, FileName: "0001_add_users.sql", UpdateDate: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)},
		{Version: 0, FileName: "0000_init.sql", UpdateDate: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)},
	}}
	s := newTestServer(stubStatus{}, stubExec{}, Options{History: hist})

	rec := do(t, s, "/api/schema/history?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, hist.limit)

	var rows []models.SchemaVersion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Equal(t, hist.rows, rows)

	rec = do(t, s, "/api/schema/history?limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, "/api/schema/history?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSchemaHistory_Unavailable(t *testing.T) {
	rec := do(t, newTestServer(stubStatus{}, stubExec{}, Options{}), "/api/schema/history")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestSwagger_OnlyInDevelopment(t *testing.T) {
	rec := do(t, newTestServer(stubStatus{}, stubExec{}, Options{}), "/swagger/doc.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, newTestServer(stubStatus{}, stubExec{}, Options{Development: true}), "/swagger/doc.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/schema/history")
}

func TestRequestID_KeepsClientValue(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc123", seen)
	assert.Equal(t, "abc123", rec.Header().Get("X-Request-ID"))
	assert.Empty(t, GetRequestID(context.Background()))
}
