// Package driver defines the strategy interfaces a native backing engine
// implements to participate in pooling, retrying execution and schema
// reconciliation.
//
// A Driver is injected explicitly at construction; there is no runtime
// driver discovery or registration. Implementations live in subpackages
// (driver/sqlite) or in application code.
package driver

import (
	"context"
	"time"

	"polystore/schema"
)

// Parameter is a name/value pair bound into a parameterized statement.
// Engines without named-parameter support receive parameters positionally,
// in declaration order.
type Parameter struct {
	Name  string
	Value any
}

// Driver creates native connections and describes engine capabilities.
type Driver interface {
	// Name identifies the engine, e.g. "sqlite".
	Name() string

	// Open establishes a new native connection to the logical database.
	Open(ctx context.Context, database string) (Conn, error)

	// CanSwitchDatabase reports whether an open connection can be
	// re-pointed at a different logical database. When false, the pool
	// only reuses connections already bound to the requested database.
	CanSwitchDatabase() bool

	// SupportsNamedParameters reports whether commands bind parameters by
	// name. When false, parameters bind by position.
	SupportsNamedParameters() bool

	// AdjustField maps declared field properties into the form this
	// engine reports them, e.g. collapsing integer widths.
	AdjustField(f schema.FieldProperties) schema.FieldProperties

	// EscapeFieldName quotes a field or table name for direct inclusion
	// in command text.
	EscapeFieldName(name string) string
}

// Conn is one native connection handle.
type Conn interface {
	// Database returns the logical database this connection is bound to.
	Database() string

	// Switch re-points the connection at another logical database. Only
	// called when the driver reports CanSwitchDatabase.
	Switch(ctx context.Context, database string) error

	// IsOpen reports whether the native handle is still usable.
	IsOpen() bool

	// Close releases the native handle. Safe to call twice.
	Close() error

	// Command creates a new command with the given text.
	Command(text string) Command
}

// Command is a single parameterized statement.
type Command interface {
	// SetTimeout bounds native execution time. Implementations clamp the
	// floor to one second.
	SetTimeout(d time.Duration)

	// BindName binds a parameter by name.
	BindName(name string, value any)

	// BindPosition appends a positional parameter.
	BindPosition(value any)

	// Execute runs a statement that returns no rows and reports the
	// affected row count.
	Execute(ctx context.Context) (int64, error)

	// Query runs the statement and returns a row reader.
	Query(ctx context.Context) (Rows, error)
}

// Rows reads a result set and its column metadata.
type Rows interface {
	// Columns describes the result columns.
	Columns() ([]schema.Column, error)

	// FieldCount is the number of fields per row the reader reports.
	FieldCount() int

	// Next advances to the next row.
	Next() bool

	// Scan returns the raw engine values of the current row.
	Scan() ([]any, error)

	// Err returns the error that ended iteration, if any.
	Err() error

	Close() error
}

// SchemaReader is implemented by drivers that can describe a table directly,
// with identifier and uniqueness flags that result-set metadata cannot carry.
type SchemaReader interface {
	TableColumns(ctx context.Context, conn Conn, table string) ([]schema.Column, error)
}
