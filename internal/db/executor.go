package db

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// QueryExecutor executes one Query per call against a Provider.
// It opens a fresh connection for every call and holds no state between calls.
type QueryExecutor struct {
	provider Provider
	log      zerolog.Logger
}

// NewQueryExecutor creates an executor for provider.
func NewQueryExecutor(provider Provider, log zerolog.Logger) *QueryExecutor {
	return &QueryExecutor{
		provider: provider,
		log:      log.With().Str("component", "query_executor").Str("driver", provider.Name()).Logger(),
	}
}

// ExecuteScalar runs q and returns the first column of the first row.
// A NULL value or an empty result yields nil.
func (e *QueryExecutor) ExecuteScalar(ctx context.Context, q *Query) (any, error) {
	var out any
	err := e.execute(ctx, q, func(cmd Command) error {
		v, err := cmd.Scalar(ctx)
		if err != nil {
			return e.wrap("scalar", err)
		}
		out = v
		return nil
	})
	return out, err
}

// ExecuteNonQuery runs q and returns the number of affected rows.
func (e *QueryExecutor) ExecuteNonQuery(ctx context.Context, q *Query) (int64, error) {
	var n int64
	err := e.execute(ctx, q, func(cmd Command) error {
		affected, err := cmd.Exec(ctx)
		if err != nil {
			return e.wrap("exec", err)
		}
		n = affected
		return nil
	})
	return n, err
}

func (e *QueryExecutor) execute(ctx context.Context, q *Query, run func(Command) error) error {
	if q == nil {
		return errors.New("query is nil")
	}
	start := time.Now()

	conn, err := e.provider.Open(ctx)
	if err != nil {
		return e.wrap("open", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			e.log.Debug().Err(cerr).Msg("Failed to close connection")
		}
	}()

	cmd, err := e.createCommand(conn, q)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := cmd.Close(); cerr != nil {
			e.log.Debug().Err(cerr).Msg("Failed to close command")
		}
	}()

	if err := run(cmd); err != nil {
		return err
	}

	e.log.Debug().
		Int("params", q.Len()).
		Dur("took", time.Since(start)).
		Msg("Statement executed")
	return nil
}

// createCommand builds the command and binds every parameter. If binding
// fails the half-built command is closed before the error is returned.
func (e *QueryExecutor) createCommand(conn Connection, q *Query) (Command, error) {
	cmd, err := conn.CreateCommand(q.Text)
	if err != nil {
		return nil, e.wrap("create_command", err)
	}
	for _, p := range q.Params() {
		if err := cmd.Bind(p.Name, p.Value); err != nil {
			_ = cmd.Close()
			return nil, e.wrap("bind", err)
		}
	}
	return cmd, nil
}

func (e *QueryExecutor) wrap(op string, err error) error {
	var ce *ConnectivityError
	if errors.As(err, &ce) {
		return err
	}
	return &ConnectivityError{
		Op:     op,
		Driver: e.provider.Name(),
		Class:  e.provider.Classify(err),
		Code:   e.provider.Code(err),
		Err:    err,
	}
}
