package migration

import (
	"context"
	"fmt"
)

// Status is a snapshot of the database version against the script inventory.
type Status struct {
	Pending         []Script `json:"pending"`
	CurrentVersion  int      `json:"current_version"` // -1 when uninitialized
	ExpectedVersion int      `json:"expected_version"`
	Initialized     bool     `json:"initialized"`
	UpToDate        bool     `json:"up_to_date"`
	Ahead           bool     `json:"ahead"`
}

// Status reports the current and expected versions and the scripts that
// UpdateDatabase would apply. Unlike CheckDatabaseVersion it does not fail
// on a database that is ahead; Ahead is set instead.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	current, ok, err := m.TryGetCurrentSchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		current = uninitializedVersion
	}

	scripts, err := m.Scripts()
	if err != nil {
		return nil, err
	}
	if len(scripts) == 0 {
		return nil, ErrNoScripts
	}
	expected := scripts[len(scripts)-1].Version

	st := &Status{
		Pending:         []Script{},
		CurrentVersion:  current,
		ExpectedVersion: expected,
		Initialized:     ok,
		UpToDate:        ok && current == expected,
		Ahead:           ok && current > expected,
	}
	last := current
	for _, s := range scripts {
		if s.Version > last {
			st.Pending = append(st.Pending, s)
			last = s.Version
		}
	}
	return st, nil
}

// Bootstrap is the startup check: it returns nil when the database is at the
// expected version. A database that is behind is updated when autoUpdate is
// set, otherwise ErrNotUpToDate is returned.
func (m *Manager) Bootstrap(ctx context.Context, autoUpdate bool) error {
	upToDate, err := m.CheckDatabaseVersion(ctx)
	if err != nil {
		return err
	}
	if upToDate {
		return nil
	}
	if !autoUpdate {
		return ErrNotUpToDate
	}

	if err := m.UpdateDatabase(ctx); err != nil {
		return err
	}

	upToDate, err = m.CheckDatabaseVersion(ctx)
	if err != nil {
		return err
	}
	if !upToDate {
		return fmt.Errorf("%w: version still behind after update", ErrNotUpToDate)
	}
	return nil
}
