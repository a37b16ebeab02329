// Package pgx provides the native PostgreSQL query provider built on
// github.com/jackc/pgx/v5. Each Open dials a dedicated pgx.Conn.
package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/thebtf/wishare/internal/db"
)

// SQLSTATE codes the provider cares about.
const (
	codeUndefinedTable        = "42P01"
	classConnection           = "08"
	classOperatorIntervention = "57"
)

// Provider is a db.Provider that dials PostgreSQL with pgx.
type Provider struct {
	config *pgx.ConnConfig
}

// NewProvider parses dsn and returns a provider. No connection is made.
func NewProvider(dsn string) (*Provider, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	return &Provider{config: cfg}, nil
}

// Open dials a new connection.
func (p *Provider) Open(ctx context.Context) (db.Connection, error) {
	conn, err := pgx.ConnectConfig(ctx, p.config.Copy())
	if err != nil {
		return nil, err
	}
	return &connection{conn: conn}, nil
}

// Classify implements db.Provider.
func (p *Provider) Classify(err error) db.ErrorClass {
	return Classify(err)
}

// Code implements db.Provider.
func (p *Provider) Code(err error) string {
	return Code(err)
}

// Name implements db.Provider.
func (p *Provider) Name() string {
	return "pgx"
}

// Classify maps pgx errors to db error classes.
func Classify(err error) db.ErrorClass {
	if err == nil {
		return db.ClassOther
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUndefinedTable:
			return db.ClassNotFound
		case strings.HasPrefix(pgErr.Code, classConnection),
			strings.HasPrefix(pgErr.Code, classOperatorIntervention):
			return db.ClassTransient
		}
		return db.ClassOther
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return db.ClassTransient
	}
	return db.ClassOther
}

// Code returns the SQLSTATE carried by err, if any.
func Code(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

type connection struct {
	conn *pgx.Conn
}

func (c *connection) CreateCommand(text string) (db.Command, error) {
	if text == "" {
		return nil, errors.New("command text is empty")
	}
	return &command{conn: c.conn, text: text, args: pgx.NamedArgs{}}, nil
}

func (c *connection) Close() error {
	// The caller's context may already be cancelled; closing must still
	// release the socket.
	return c.conn.Close(context.Background())
}

type command struct {
	conn   *pgx.Conn
	args   pgx.NamedArgs
	text   string
	closed bool
}

func (c *command) Bind(name string, value any) error {
	if c.closed {
		return errors.New("bind on closed command")
	}
	if _, dup := c.args[name]; dup {
		return fmt.Errorf("%w: %s", db.ErrDuplicateParameter, name)
	}
	c.args[name] = value
	return nil
}

func (c *command) arguments() []any {
	if len(c.args) == 0 {
		return nil
	}
	return []any{c.args}
}

func (c *command) Scalar(ctx context.Context) (any, error) {
	if c.closed {
		return nil, errors.New("scalar on closed command")
	}
	var v any
	if err := c.conn.QueryRow(ctx, c.text, c.arguments()...).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (c *command) Exec(ctx context.Context) (int64, error) {
	if c.closed {
		return 0, errors.New("exec on closed command")
	}
	tag, err := c.conn.Exec(ctx, c.text, c.arguments()...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *command) Close() error {
	c.closed = true
	c.args = nil
	return nil
}
