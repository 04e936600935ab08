// Package sqlite implements driver.Driver on the embedded SQLite engine
// provided by modernc.org/sqlite.
//
// Logical database names map to database files (or ":memory:") through the
// path table given at construction. SQLite connections cannot be re-pointed
// at another database, so the driver reports CanSwitchDatabase as false and
// the pool reuses connections per logical name only.
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"polystore/driver"
	"polystore/fault"
	"polystore/schema"
)

// Driver creates sqlite connections for logical database names.
type Driver struct {
	paths map[string]string
}

// New creates a driver routing logical names to database paths. A name
// absent from the table is used as the path itself, which keeps tests and
// single-database setups free of configuration.
func New(paths map[string]string) *Driver {
	if paths == nil {
		paths = map[string]string{}
	}
	return &Driver{paths: paths}
}

func (d *Driver) Name() string { return "sqlite" }

func (d *Driver) CanSwitchDatabase() bool { return false }

func (d *Driver) SupportsNamedParameters() bool { return true }

// Open establishes a new native connection. The underlying sql.DB is capped
// at a single connection so each Conn models exactly one native handle.
func (d *Driver) Open(ctx context.Context, database string) (driver.Conn, error) {
	path, ok := d.paths[database]
	if !ok {
		path = database
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fault.Wrap(fault.Connection, "sqlite.Open", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fault.Wrap(fault.Connection, "sqlite.Open", err)
	}
	return &Conn{db: db, database: database}, nil
}

// AdjustField collapses declared properties into the form sqlite reports
// them: one integer storage class, strings for user-defined values, and the
// storage type implied by the configured date-time encoding.
func (d *Driver) AdjustField(f schema.FieldProperties) schema.FieldProperties {
	switch f.Type {
	case schema.TypeInt8, schema.TypeInt16, schema.TypeInt32, schema.TypeEnum:
		f.Type = schema.TypeInt64
	case schema.TypeUserDefined:
		f.Type = schema.TypeString
	case schema.TypeDateTime:
		switch f.DateTimeType {
		case schema.DateTimeBigIntTicks, schema.DateTimeBigIntHuman:
			f.Type = schema.TypeInt64
		case schema.DateTimeDecimalSeconds:
			f.Type = schema.TypeDecimal
		case schema.DateTimeDoubleSeconds:
			f.Type = schema.TypeFloat
		}
	case schema.TypeTimeSpan:
		switch f.DateTimeType {
		case schema.DateTimeDecimalSeconds:
			f.Type = schema.TypeDecimal
		case schema.DateTimeDoubleSeconds:
			f.Type = schema.TypeFloat
		default:
			f.Type = schema.TypeInt64
		}
	}
	return f
}

func (d *Driver) EscapeFieldName(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Conn wraps one native sqlite handle.
type Conn struct {
	db       *sql.DB
	database string
	closed   bool
}

func (c *Conn) Database() string { return c.database }

func (c *Conn) Switch(ctx context.Context, database string) error {
	return fault.New(fault.Config, "sqlite.Switch",
		"sqlite connections cannot switch database (bound to %q, requested %q)", c.database, database)
}

func (c *Conn) IsOpen() bool { return !c.closed }

func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}

func (c *Conn) Command(text string) driver.Command {
	return &command{conn: c, text: text}
}

type command struct {
	conn    *Conn
	text    string
	timeout time.Duration
	args    []any
}

// SetTimeout bounds native execution. The floor is clamped to one second.
func (c *command) SetTimeout(d time.Duration) {
	if d < time.Second {
		d = time.Second
	}
	c.timeout = d
}

func (c *command) BindName(name string, value any) {
	c.args = append(c.args, sql.Named(name, value))
}

func (c *command) BindPosition(value any) {
	c.args = append(c.args, value)
}

func (c *command) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *command) Execute(ctx context.Context) (int64, error) {
	if c.conn.closed {
		return 0, fault.New(fault.Lifecycle, "sqlite.Execute", "connection is closed")
	}
	ctx, cancel := c.context(ctx)
	defer cancel()

	res, err := c.conn.db.ExecContext(ctx, c.text, c.args...)
	if err != nil {
		return 0, fault.Wrap(fault.Connection, "sqlite.Execute", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fault.Wrap(fault.Connection, "sqlite.Execute", err)
	}
	return n, nil
}

func (c *command) Query(ctx context.Context) (driver.Rows, error) {
	if c.conn.closed {
		return nil, fault.New(fault.Lifecycle, "sqlite.Query", "connection is closed")
	}
	ctx, cancel := c.context(ctx)

	rs, err := c.conn.db.QueryContext(ctx, c.text, c.args...)
	if err != nil {
		cancel()
		return nil, fault.Wrap(fault.Connection, "sqlite.Query", err)
	}
	names, err := rs.Columns()
	if err != nil {
		_ = rs.Close()
		cancel()
		return nil, fault.Wrap(fault.Connection, "sqlite.Query", err)
	}
	return &rows{rs: rs, cancel: cancel, n: len(names)}, nil
}

type rows struct {
	rs     *sql.Rows
	cancel context.CancelFunc
	n      int
}

func (r *rows) FieldCount() int { return r.n }

func (r *rows) Columns() ([]schema.Column, error) {
	cts, err := r.rs.ColumnTypes()
	if err != nil {
		return nil, fault.Wrap(fault.Connection, "sqlite.Columns", err)
	}
	cols := make([]schema.Column, len(cts))
	for i, ct := range cts {
		cols[i] = schema.Column{Name: ct.Name(), DeclType: ct.DatabaseTypeName()}
		if size, ok := ct.Length(); ok {
			cols[i].Size = size
		}
	}
	return cols, nil
}

func (r *rows) Next() bool { return r.rs.Next() }

func (r *rows) Scan() ([]any, error) {
	vals := make([]any, r.n)
	ptrs := make([]any, r.n)
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := r.rs.Scan(ptrs...); err != nil {
		return nil, fault.Wrap(fault.Connection, "sqlite.Scan", err)
	}
	return vals, nil
}

func (r *rows) Err() error {
	return fault.Wrap(fault.Connection, "sqlite.Rows", r.rs.Err())
}

func (r *rows) Close() error {
	defer r.cancel()
	return r.rs.Close()
}
