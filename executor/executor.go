// Package executor runs execute and query operations against pooled
// connections with bounded retry.
//
// Every operation follows the same algorithm: borrow a connection for the
// target database, build a native command with its parameters bound, and
// execute. On success the connection returns to the pool for reuse; on any
// failure it is force-closed, because a connection involved in a failure is
// never reused. Transient faults are retried up to a flat attempt ceiling
// with no backoff; structural faults (schema mismatches, wrong result
// shapes) surface immediately.
package executor

import (
	"context"
	"log/slog"
	"time"

	"polystore/codec"
	"polystore/driver"
	"polystore/fault"
	"polystore/pool"
	"polystore/schema"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt,
	// for four attempts in total.
	DefaultMaxRetries = 3

	// DefaultCommandTimeout bounds native command execution. Drivers clamp
	// the floor to one second.
	DefaultCommandTimeout = 30 * time.Second
)

// Row is one ephemeral, positional row of local values aligned to a layout.
type Row []any

// Option configures an Executor.
type Option func(*Executor)

// WithMaxRetries overrides the retry ceiling. Negative values disable
// retrying entirely.
func WithMaxRetries(n int) Option {
	return func(e *Executor) { e.maxRetries = n }
}

// WithCommandTimeout overrides the native command timeout.
func WithCommandTimeout(d time.Duration) Option {
	return func(e *Executor) { e.cmdTimeout = d }
}

// WithLayoutValidation enables per-query CheckLayout validation whenever a
// declared layout is supplied.
func WithLayoutValidation() Option {
	return func(e *Executor) { e.validate = true }
}

// WithLogger sets the logger used for retry traces.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// Executor is the retrying query/execute pipeline.
type Executor struct {
	drv        driver.Driver
	pool       *pool.Pool
	maxRetries int
	cmdTimeout time.Duration
	validate   bool
	log        *slog.Logger
}

// New creates an executor over the given driver and pool.
func New(drv driver.Driver, p *pool.Pool, opts ...Option) *Executor {
	e := &Executor{
		drv:        drv,
		pool:       p,
		maxRetries: DefaultMaxRetries,
		cmdTimeout: DefaultCommandTimeout,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// retryable reports whether the retry loop may re-attempt after err.
// Unclassified errors come from native drivers and count as transient.
func retryable(err error) bool {
	switch fault.KindOf(err) {
	case fault.Connection, fault.Unknown:
		return true
	}
	return false
}

// run is the shared borrow/attempt/return loop. At most one connection is
// held per in-flight attempt.
func run[T any](e *Executor, ctx context.Context, database, table string, fn func(driver.Conn) (T, error)) (T, error) {
	var zero T
	attempt := 1
	for {
		c, err := e.pool.Get(ctx, database)
		if err == nil {
			var v T
			v, err = fn(c.Conn())
			if err == nil {
				e.pool.Return(c, false)
				return v, nil
			}
			e.pool.Return(c, true)
		}

		if !retryable(err) {
			return zero, fault.WithContext(fault.KindOf(err), "executor", database, table, err)
		}
		if attempt > e.maxRetries {
			return zero, fault.WithContext(fault.Connection, "executor", database, table, err)
		}
		e.log.Warn("retrying after transient failure",
			"database", database, "table", table, "attempt", attempt, "error", err)
		attempt++
	}
}

// command builds a native command with the timeout set and every parameter
// bound, by name when the engine supports it and by position otherwise.
func (e *Executor) command(conn driver.Conn, text string, params []driver.Parameter) driver.Command {
	cmd := conn.Command(text)
	cmd.SetTimeout(e.cmdTimeout)
	named := e.drv.SupportsNamedParameters()
	for _, p := range params {
		if named {
			cmd.BindName(p.Name, p.Value)
		} else {
			cmd.BindPosition(p.Value)
		}
	}
	return cmd
}

// Execute runs a statement that returns no rows and reports the affected
// row count.
func (e *Executor) Execute(ctx context.Context, database, table, command string, params []driver.Parameter) (int64, error) {
	return run(e, ctx, database, table, func(conn driver.Conn) (int64, error) {
		return e.command(conn, command, params).Execute(ctx)
	})
}

type queryResult struct {
	layout schema.RowLayout
	rows   []Row
}

// Query runs a row-returning command. When declared is non-nil its field
// properties drive value decoding, and with layout validation enabled the
// live layout must pass CheckLayout against it. The returned layout is the
// declared one when given, otherwise the layout reconciled from result-set
// metadata.
func (e *Executor) Query(ctx context.Context, database, table, command string, params []driver.Parameter, declared *schema.RowLayout) (schema.RowLayout, []Row, error) {
	res, err := run(e, ctx, database, table, func(conn driver.Conn) (queryResult, error) {
		return e.readAll(ctx, conn, table, command, params, declared)
	})
	if err != nil {
		return schema.RowLayout{}, nil, err
	}
	return res.layout, res.rows, nil
}

func (e *Executor) readAll(ctx context.Context, conn driver.Conn, table, command string, params []driver.Parameter, declared *schema.RowLayout) (queryResult, error) {
	var res queryResult

	rs, err := e.command(conn, command, params).Query(ctx)
	if err != nil {
		return res, err
	}
	defer rs.Close()

	cols, err := rs.Columns()
	if err != nil {
		return res, err
	}
	live, err := schema.Read(table, rs.FieldCount(), cols)
	if err != nil {
		return res, err
	}

	res.layout = live
	if declared != nil {
		if e.validate {
			if err := schema.CheckLayout(table, live, *declared, e.drv.AdjustField); err != nil {
				return res, err
			}
		}
		res.layout = *declared
	}

	for rs.Next() {
		raw, err := rs.Scan()
		if err != nil {
			return res, err
		}
		row := make(Row, len(raw))
		for i, v := range raw {
			if i >= res.layout.Len() {
				row[i] = v
				continue
			}
			lv, err := codec.LocalValue(res.layout.Field(i), v)
			if err != nil {
				return res, err
			}
			row[i] = lv
		}
		res.rows = append(res.rows, row)
	}
	if err := rs.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// QueryRow runs a command expected to yield exactly one row. The row-count
// check is a structural post-condition: it runs after a successful
// execution and is never retried.
func (e *Executor) QueryRow(ctx context.Context, database, table, command string, params []driver.Parameter, declared *schema.RowLayout) (schema.RowLayout, Row, error) {
	layout, rows, err := e.Query(ctx, database, table, command, params, declared)
	if err != nil {
		return schema.RowLayout{}, nil, err
	}
	if len(rows) == 0 {
		return schema.RowLayout{}, nil, fault.WithContext(fault.Data, "executor.QueryRow", database, table,
			errNoData(command))
	}
	if len(rows) > 1 {
		return schema.RowLayout{}, nil, fault.WithContext(fault.Data, "executor.QueryRow", database, table,
			errAdditionalData(command, len(rows)))
	}
	return layout, rows[0], nil
}

// QueryValue runs a command expected to yield a single scalar: exactly one
// row with exactly one field.
func (e *Executor) QueryValue(ctx context.Context, database, table, command string, params []driver.Parameter) (any, error) {
	layout, rows, err := e.Query(ctx, database, table, command, params, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fault.WithContext(fault.Data, "executor.QueryValue", database, table,
			errNoData(command))
	}
	if len(rows) > 1 || layout.Len() > 1 {
		return nil, fault.WithContext(fault.Data, "executor.QueryValue", database, table,
			errAdditionalData(command, len(rows)))
	}
	return rows[0][0], nil
}

// QuerySchema returns the layout of the named table, using driver
// introspection when available and result-set metadata otherwise.
func (e *Executor) QuerySchema(ctx context.Context, database, table string) (schema.RowLayout, error) {
	return run(e, ctx, database, table, func(conn driver.Conn) (schema.RowLayout, error) {
		if sr, ok := e.drv.(driver.SchemaReader); ok {
			cols, err := sr.TableColumns(ctx, conn, table)
			if err != nil {
				return schema.RowLayout{}, err
			}
			return schema.Read(table, len(cols), cols)
		}

		cmd := conn.Command("SELECT * FROM " + e.drv.EscapeFieldName(table) + " WHERE 1=0")
		cmd.SetTimeout(e.cmdTimeout)
		rs, err := cmd.Query(ctx)
		if err != nil {
			return schema.RowLayout{}, err
		}
		defer rs.Close()

		cols, err := rs.Columns()
		if err != nil {
			return schema.RowLayout{}, err
		}
		return schema.Read(table, rs.FieldCount(), cols)
	})
}
