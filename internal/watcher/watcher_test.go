package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) onChange(_ context.Context, names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, names)
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func startWatcher(t *testing.T, dir string, rec *recorder) *Watcher {
	t.Helper()
	w := New(dir, rec.onChange, zerolog.Nop(), WithDebounce(50*time.Millisecond))
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func TestWatcher_BatchesScriptChanges(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_add_users.sql"), []byte("SELECT 1"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0000_init.sql"), []byte("SELECT 1"), 0o600))

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 3*time.Second, 20*time.Millisecond)

	var seen []string
	for _, call := range rec.snapshot() {
		seen = append(seen, call...)
	}
	assert.Contains(t, seen, "0000_init.sql")
	assert.Contains(t, seen, "0001_add_users.sql")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0o600))

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "absent"), (&recorder{}).onChange, zerolog.Nop())
	assert.Error(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := startWatcher(t, t.TempDir(), &recorder{})
	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestIsScript(t *testing.T) {
	assert.True(t, isScript("0001_add_users.sql"))
	assert.True(t, isScript("0001_add_users.SQL"))
	assert.False(t, isScript("0001_add_users.sql.swp"))
	assert.False(t, isScript("notes.txt"))
}
