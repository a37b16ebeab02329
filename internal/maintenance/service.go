// Package maintenance runs the periodic schema version check of the wishare
// service, so that a database migrated or downgraded behind the service's
// back is reported while it is running.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thebtf/wishare/internal/migration"
)

// MinInterval is the shortest accepted check interval.
const MinInterval = time.Minute

// Checker reports whether the database is at the expected schema version.
// *migration.Manager implements it.
type Checker interface {
	CheckDatabaseVersion(ctx context.Context) (bool, error)
}

// Stats describes the checks run so far.
type Stats struct {
	LastRun      time.Time     `json:"last_run"`
	LastError    string        `json:"last_error,omitempty"`
	LastDuration time.Duration `json:"last_duration_ns"`
	Runs         int64         `json:"runs"`
	Failures     int64         `json:"failures"`
	UpToDate     bool          `json:"up_to_date"`
}

// Service checks the schema version on a fixed interval.
type Service struct {
	log      zerolog.Logger
	checker  Checker
	stopCh   chan struct{}
	doneCh   chan struct{}
	stats    Stats
	interval time.Duration
	mu       sync.Mutex
	started  bool // Start runs at most once
	running  bool
	stopped  bool
}

// NewService creates a new maintenance service. An interval of zero disables
// the scheduler; positive intervals below MinInterval are raised to it.
func NewService(checker Checker, interval time.Duration, log zerolog.Logger) *Service {
	if interval > 0 {
		interval = max(interval, MinInterval)
	}
	return &Service{
		checker:  checker,
		interval: interval,
		log:      log.With().Str("component", "maintenance").Logger(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the check loop until ctx is done or Stop is called. It blocks.
// Later calls return immediately.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.doneCh)
	}()

	if s.interval <= 0 {
		s.log.Info().Msg("Periodic schema check disabled, not starting scheduler")
		return
	}

	s.log.Info().Dur("interval", s.interval).Msg("Starting schema check scheduler")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Maintenance shutting down due to context cancellation")
			return
		case <-s.stopCh:
			s.log.Info().Msg("Maintenance shutting down due to stop signal")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop signals the service to stop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
}

// Wait waits for Start to return.
func (s *Service) Wait() {
	<-s.doneCh
}

// RunOnce performs one schema check and records its outcome.
func (s *Service) RunOnce(ctx context.Context) {
	start := time.Now()
	upToDate, err := s.checker.CheckDatabaseVersion(ctx)
	took := time.Since(start)

	s.mu.Lock()
	s.stats.Runs++
	s.stats.LastRun = start
	s.stats.LastDuration = took
	s.stats.UpToDate = upToDate
	s.stats.LastError = ""
	if err != nil {
		s.stats.Failures++
		s.stats.LastError = err.Error()
	}
	s.mu.Unlock()

	switch {
	case err != nil:
		s.log.Error().Err(err).Dur("took", took).Msg("Periodic schema check failed")
	case !upToDate:
		s.log.Warn().Dur("took", took).Msg("Periodic schema check: database is not up to date")
	default:
		s.log.Debug().Dur("took", took).Msg("Periodic schema check complete")
	}
}

// Stats returns a snapshot of the check statistics.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

var _ Checker = (*migration.Manager)(nil)
