package migration

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"
	"github.com/thebtf/wishare/internal/db"
)

// fakeDB is an in-memory stand-in for the query executor. It understands the
// two statements the manager issues for bookkeeping and records every other
// statement as an executed script body.
type fakeDB struct {
	// failNonQuery, when set, is consulted before every non-query call.
	failNonQuery func(q *db.Query) error
	// onBody runs after a body has been "executed".
	onBody func(body string)

	scalarErr error
	scalar    any // overrides MAX(version) when useScalar is set
	bodies    []string
	inserts   []*db.Query
	versions  []int

	scalarCalls int
	mu          sync.Mutex
	tableExists bool
	useScalar   bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{}
}

// withVersion creates the version table holding versions 0..v.
func (f *fakeDB) withVersion(v int) *fakeDB {
	f.tableExists = true
	for i := 0; i <= v; i++ {
		f.versions = append(f.versions, i)
	}
	return f
}

func (f *fakeDB) ExecuteScalar(ctx context.Context, q *db.Query) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scalarCalls++

	if f.scalarErr != nil {
		return nil, f.scalarErr
	}
	if f.useScalar {
		return f.scalar, nil
	}
	if q.Text != currentVersionQuery {
		return nil, errors.New("unexpected scalar query: " + q.Text)
	}
	if !f.tableExists {
		return nil, notFoundErr()
	}
	if len(f.versions) == 0 {
		return nil, nil
	}
	maxVersion := f.versions[0]
	for _, v := range f.versions {
		maxVersion = max(maxVersion, v)
	}
	return int64(maxVersion), nil
}

func (f *fakeDB) ExecuteNonQuery(ctx context.Context, q *db.Query) (int64, error) {
	if f.failNonQuery != nil {
		if err := f.failNonQuery(q); err != nil {
			return 0, err
		}
	}

	f.mu.Lock()
	if q.Text == insertVersionQuery {
		defer f.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		f.tableExists = true
		f.inserts = append(f.inserts, q)
		f.versions = append(f.versions, q.Params()[0].Value.(int))
		return 1, nil
	}
	f.bodies = append(f.bodies, q.Text)
	f.tableExists = true
	onBody := f.onBody
	f.mu.Unlock()

	if onBody != nil {
		onBody(q.Text)
	}
	return 0, nil
}

func (f *fakeDB) nonQueryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies) + len(f.inserts)
}

func notFoundErr() error {
	return &db.ConnectivityError{
		Op:     "scalar",
		Driver: "fake",
		Class:  db.ClassNotFound,
		Code:   "42P01",
		Err:    errors.New(`relation "schema_version" does not exist`),
	}
}

// scriptFS builds a script directory where each script's body is "script <name>".
func scriptFS(names ...string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for _, n := range names {
		fsys[n] = &fstest.MapFile{Data: []byte("script " + n)}
	}
	return fsys
}

// logBuffer captures JSON log lines for assertions.
type logBuffer struct {
	bytes.Buffer
}

func (b *logBuffer) logger() zerolog.Logger {
	return zerolog.New(&b.Buffer).Level(zerolog.DebugLevel)
}

// count returns how many lines carry level and contain message.
func (b *logBuffer) count(level, message string) int {
	n := 0
	for _, line := range strings.Split(b.String(), "\n") {
		if strings.Contains(line, `"level":"`+level+`"`) && strings.Contains(line, message) {
			n++
		}
	}
	return n
}

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, fsys fstest.MapFS, fake *fakeDB, logs *logBuffer) *Manager {
	t.Helper()
	return NewManager(NewFSSource(fsys, "."), fake, logs.logger(), WithClock(func() time.Time { return fixedNow }))
}
