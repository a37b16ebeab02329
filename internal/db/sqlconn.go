package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// BindStyle selects how named parameters are handed to a database/sql driver.
type BindStyle int

const (
	// BindNamed passes sql.NamedArg values; the driver resolves @name itself.
	BindNamed BindStyle = iota
	// BindDollar rewrites @name placeholders into $1..$n before execution.
	BindDollar
)

// SQLProviderConfig describes a Provider backed by a database/sql pool.
type SQLProviderConfig struct {
	Name     string
	Style    BindStyle
	Classify func(error) ErrorClass
	Code     func(error) string
}

// SQLProvider adapts a *sql.DB to the Provider interface. Each Open checks out
// a dedicated *sql.Conn; pooling stays inside database/sql.
type SQLProvider struct {
	db  *sql.DB
	cfg SQLProviderConfig
}

// NewSQLProvider wraps db. Nil classification funcs default to ClassOther / "".
func NewSQLProvider(db *sql.DB, cfg SQLProviderConfig) *SQLProvider {
	if cfg.Classify == nil {
		cfg.Classify = func(error) ErrorClass { return ClassOther }
	}
	if cfg.Code == nil {
		cfg.Code = func(error) string { return "" }
	}
	return &SQLProvider{db: db, cfg: cfg}
}

// Open checks out a connection from the pool.
func (p *SQLProvider) Open(ctx context.Context) (Connection, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &sqlConnection{conn: conn, style: p.cfg.Style}, nil
}

// Classify implements Provider.
func (p *SQLProvider) Classify(err error) ErrorClass {
	return p.cfg.Classify(err)
}

// Code implements Provider.
func (p *SQLProvider) Code(err error) string {
	return p.cfg.Code(err)
}

// Name implements Provider.
func (p *SQLProvider) Name() string {
	return p.cfg.Name
}

// DB returns the underlying pool.
func (p *SQLProvider) DB() *sql.DB {
	return p.db
}

// Close closes the pool.
func (p *SQLProvider) Close() error {
	return p.db.Close()
}

type sqlConnection struct {
	conn  *sql.Conn
	style BindStyle
}

func (c *sqlConnection) CreateCommand(text string) (Command, error) {
	if text == "" {
		return nil, errors.New("command text is empty")
	}
	return &sqlCommand{conn: c.conn, text: text, style: c.style}, nil
}

func (c *sqlConnection) Close() error {
	return c.conn.Close()
}

type sqlCommand struct {
	conn   *sql.Conn
	text   string
	params []Param
	style  BindStyle
	closed bool
}

func (c *sqlCommand) Bind(name string, value any) error {
	if c.closed {
		return errors.New("bind on closed command")
	}
	for _, p := range c.params {
		if p.Name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateParameter, name)
		}
	}
	c.params = append(c.params, Param{Name: name, Value: value})
	return nil
}

func (c *sqlCommand) args() (string, []any, error) {
	if c.style == BindDollar {
		// Script bodies carry no parameters and may use @ as an operator.
		if len(c.params) == 0 {
			return c.text, nil, nil
		}
		return RewriteNamed(c.text, c.params)
	}
	args := make([]any, 0, len(c.params))
	for _, p := range c.params {
		args = append(args, sql.Named(p.Name, p.Value))
	}
	return c.text, args, nil
}

func (c *sqlCommand) Scalar(ctx context.Context) (any, error) {
	if c.closed {
		return nil, errors.New("scalar on closed command")
	}
	text, args, err := c.args()
	if err != nil {
		return nil, err
	}
	var v any
	if err := c.conn.QueryRowContext(ctx, text, args...).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (c *sqlCommand) Exec(ctx context.Context) (int64, error) {
	if c.closed {
		return 0, errors.New("exec on closed command")
	}
	text, args, err := c.args()
	if err != nil {
		return 0, err
	}
	res, err := c.conn.ExecContext(ctx, text, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *sqlCommand) Close() error {
	c.closed = true
	c.params = nil
	return nil
}
