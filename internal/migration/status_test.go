package migration

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name        string
		files       []string
		recorded    int // -1 leaves the database uninitialized
		wantPending []int
		wantCurrent int
		initialized bool
		upToDate    bool
		ahead       bool
	}{
		{
			name:        "uninitialized",
			files:       []string{"0000_init.sql", "0001_add_users.sql"},
			recorded:    -1,
			wantPending: []int{0, 1},
			wantCurrent: -1,
		},
		{
			name:        "behind",
			files:       []string{"0000_init.sql", "0001_add_users.sql", "0002_add_index.sql"},
			recorded:    0,
			wantPending: []int{1, 2},
			wantCurrent: 0,
			initialized: true,
		},
		{
			name:        "current",
			files:       []string{"0000_init.sql", "0001_add_users.sql"},
			recorded:    1,
			wantPending: []int{},
			wantCurrent: 1,
			initialized: true,
			upToDate:    true,
		},
		{
			name:        "ahead",
			files:       []string{"0000_init.sql"},
			recorded:    3,
			wantPending: []int{},
			wantCurrent: 3,
			initialized: true,
			ahead:       true,
		},
		{
			name:        "duplicates listed once",
			files:       []string{"0000_init.sql", "0001_add_roles.sql", "0001_add_users.sql"},
			recorded:    0,
			wantPending: []int{1},
			wantCurrent: 0,
			initialized: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeDB()
			if tt.recorded >= 0 {
				fake.withVersion(tt.recorded)
			}
			mgr := newTestManager(t, scriptFS(tt.files...), fake, &logBuffer{})

			st, err := mgr.Status(context.Background())
			require.NoError(t, err)

			pending := make([]int, 0, len(st.Pending))
			for _, s := range st.Pending {
				pending = append(pending, s.Version)
			}
			assert.Equal(t, tt.wantPending, pending)
			assert.Equal(t, tt.wantCurrent, st.CurrentVersion)
			assert.Equal(t, tt.initialized, st.Initialized)
			assert.Equal(t, tt.upToDate, st.UpToDate)
			assert.Equal(t, tt.ahead, st.Ahead)
			assert.Zero(t, fake.nonQueryCount())
		})
	}
}

func TestStatus_NoScripts(t *testing.T) {
	mgr := newTestManager(t, fstest.MapFS{}, newFakeDB(), &logBuffer{})

	_, err := mgr.Status(context.Background())
	assert.ErrorIs(t, err, ErrNoScripts)
}

func TestBootstrap(t *testing.T) {
	files := []string{"0000_init.sql", "0001_add_users.sql"}

	t.Run("up to date does nothing", func(t *testing.T) {
		fake := newFakeDB().withVersion(1)
		mgr := newTestManager(t, scriptFS(files...), fake, &logBuffer{})

		require.NoError(t, mgr.Bootstrap(context.Background(), true))
		assert.Zero(t, fake.nonQueryCount())
	})

	t.Run("behind without auto update", func(t *testing.T) {
		fake := newFakeDB().withVersion(0)
		mgr := newTestManager(t, scriptFS(files...), fake, &logBuffer{})

		err := mgr.Bootstrap(context.Background(), false)
		assert.ErrorIs(t, err, ErrNotUpToDate)
		assert.Zero(t, fake.nonQueryCount())
	})

	t.Run("uninitialized with auto update", func(t *testing.T) {
		fake := newFakeDB()
		logs := &logBuffer{}
		mgr := newTestManager(t, scriptFS(files...), fake, logs)

		require.NoError(t, mgr.Bootstrap(context.Background(), true))
		assert.Equal(t, []int{0, 1}, fake.versions)
		assert.Equal(t, 1, logs.count("warn", "Database uninitialized."))
		assert.Equal(t, 2, logs.count("info", "Database is up to date."))
	})

	t.Run("ahead fails", func(t *testing.T) {
		fake := newFakeDB().withVersion(4)
		mgr := newTestManager(t, scriptFS(files...), fake, &logBuffer{})

		err := mgr.Bootstrap(context.Background(), true)
		assert.ErrorIs(t, err, ErrDatabaseAhead)
	})

	t.Run("gap fails", func(t *testing.T) {
		fake := newFakeDB().withVersion(0)
		mgr := newTestManager(t, scriptFS("0000_init.sql", "0002_add_index.sql"), fake, &logBuffer{})

		err := mgr.Bootstrap(context.Background(), true)
		assert.ErrorIs(t, err, ErrMissingScript)
	})
}
