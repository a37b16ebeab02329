// Package watcher notifies the service when the migration script directory
// changes, so a redeployed script set is noticed without a restart.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is used when no debounce is configured.
const DefaultDebounce = 500 * time.Millisecond

// ChangeFunc receives the base names of the scripts that changed since the
// previous call. It runs on the watcher goroutine.
type ChangeFunc func(ctx context.Context, names []string)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the directory must stay quiet before onChange runs.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher monitors a script directory for added, modified, renamed and
// removed .sql files.
type Watcher struct {
	log      zerolog.Logger
	onChange ChangeFunc
	pending  map[string]time.Time // name -> last event time
	cancel   context.CancelFunc
	fsw      *fsnotify.Watcher
	dir      string
	wg       sync.WaitGroup
	debounce time.Duration
	mu       sync.Mutex
	stopOnce sync.Once
}

// New creates a Watcher for dir. Call Start to begin watching.
func New(dir string, onChange ChangeFunc, log zerolog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		onChange: onChange,
		log:      log.With().Str("component", "script_watcher").Str("dir", dir).Logger(),
		debounce: DefaultDebounce,
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. The watcher stops when ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("script watcher: create fsnotify: %w", err)
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("script watcher: watch %s: %w", w.dir, err)
	}
	w.fsw = fsw

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)

	w.log.Info().Dur("debounce", w.debounce).Msg("Watching migration scripts")
	return nil
}

// Stop terminates the watcher and waits for the loop to exit. It is safe to
// call Stop more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		w.wg.Wait()
		if w.fsw != nil {
			err = w.fsw.Close()
		}
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !isScript(name) {
				continue
			}
			w.mu.Lock()
			w.pending[name] = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("Script watcher error")

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// flush reports pending names once the directory has been quiet for the
// debounce interval. A burst of changes is delivered as one call.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	now := time.Now()
	for _, t := range w.pending {
		if now.Sub(t) < w.debounce {
			w.mu.Unlock()
			return
		}
	}
	names := make([]string, 0, len(w.pending))
	for name := range w.pending {
		names = append(names, name)
	}
	clear(w.pending)
	w.mu.Unlock()

	slices.Sort(names)
	w.log.Info().Strs("scripts", names).Msg("Migration scripts changed")
	w.onChange(ctx, names)
}

func isScript(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".sql")
}
