package bind

import "polystore/schema"

// Table is the abstract storage collaborator a binding drives. The memory
// and flat-file engines implement it; rows travel as positional local
// values aligned to the backing layout.
type Table interface {
	// Name identifies the backing table for error context.
	Name() string

	// Layout returns the backing layout, if the engine knows one.
	Layout() (schema.RowLayout, bool)

	// UseLayout fixes the effective layout. It succeeds at most once;
	// re-setting the layout afterward fails immediately.
	UseLayout(l schema.RowLayout) error

	// FieldIndex locates a backing field by name under the comparison
	// mode.
	FieldIndex(name string, cmp schema.NameComparison) (int, bool)

	// GetRow returns the row stored under the identifier value.
	GetRow(key any) ([]any, bool, error)

	// InsertRow stores a new row and returns its identifier value.
	InsertRow(values []any) (any, error)

	// UpdateRow replaces the row stored under the identifier value.
	UpdateRow(key any, values []any) error

	// DeleteRow removes the row stored under the identifier value.
	DeleteRow(key any) error

	// ScanRows visits every row until fn returns false or an error.
	ScanRows(fn func(key any, values []any) (bool, error)) error
}
