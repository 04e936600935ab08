package memtable

import (
	"time"

	"polystore/fault"
	"polystore/schema"
)

// Table is a single-threaded in-memory table. Rows are keyed by their
// int64 identifier value; identifiers are assigned from an auto-increment
// sequence unless the caller supplies one.
type Table struct {
	name     string
	layout   schema.RowLayout
	bound    schema.RowLayout
	hasBound bool
	rows     map[int64][]any
	order    []int64
	nextID   int64
}

// New creates an empty table with the given backing layout.
func New(name string, layout schema.RowLayout) *Table {
	return &Table{
		name:   name,
		layout: layout,
		rows:   map[int64][]any{},
		nextID: 1,
	}
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Layout returns the backing layout.
func (t *Table) Layout() (schema.RowLayout, bool) { return t.layout, true }

// UseLayout fixes the effective layout. It succeeds at most once.
func (t *Table) UseLayout(l schema.RowLayout) error {
	if t.hasBound {
		return fault.New(fault.Config, "memtable.UseLayout",
			"table %q: layout is already fixed and cannot be re-set", t.name)
	}
	t.bound = l
	t.hasBound = true
	return nil
}

// FieldIndex locates a backing field by name.
func (t *Table) FieldIndex(name string, cmp schema.NameComparison) (int, bool) {
	return t.layout.FieldIndex(name, cmp)
}

func (t *Table) checkRow(values []any) error {
	if len(values) != t.layout.Len() {
		return fault.New(fault.Data, "memtable",
			"table %q: expected %d values, found %d", t.name, t.layout.Len(), len(values))
	}
	for i, v := range values {
		if v == nil {
			continue
		}
		f := t.layout.Field(i)
		if !valueFits(f.Type, v) {
			return fault.New(fault.Data, "memtable",
				"table %q: field %q cannot hold %T", t.name, f.Name, v)
		}
	}
	return nil
}

// valueFits is a loose membership check: each type tag admits the Go types
// the codec can faithfully convert from.
func valueFits(dt schema.DataType, v any) bool {
	switch dt {
	case schema.TypeInt8, schema.TypeInt16, schema.TypeInt32, schema.TypeInt64, schema.TypeEnum:
		switch v.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		}
	case schema.TypeFloat:
		switch v.(type) {
		case float32, float64, int, int32, int64:
			return true
		}
	case schema.TypeDecimal, schema.TypeString, schema.TypeUserDefined:
		switch v.(type) {
		case string, []byte:
			return true
		}
	case schema.TypeBinary:
		switch v.(type) {
		case []byte, string:
			return true
		}
	case schema.TypeBool:
		_, ok := v.(bool)
		return ok
	case schema.TypeDateTime:
		_, ok := v.(time.Time)
		return ok
	case schema.TypeTimeSpan:
		_, ok := v.(time.Duration)
		return ok
	default:
		return true
	}
	return false
}

func asID(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// Get returns a copy of the row stored under id.
func (t *Table) Get(id int64) ([]any, bool) {
	row, ok := t.rows[id]
	if !ok {
		return nil, false
	}
	out := make([]any, len(row))
	copy(out, row)
	return out, true
}

// Insert stores a new row and returns its identifier. When the layout has
// an identifier field, a caller-supplied value is honored; otherwise the
// auto-increment sequence assigns the next id.
func (t *Table) Insert(values []any) (int64, error) {
	if err := t.checkRow(values); err != nil {
		return 0, err
	}

	id := t.nextID
	idIdx := t.layout.IDIndex()
	if idIdx >= 0 && values[idIdx] != nil {
		if given, ok := asID(values[idIdx]); ok && given != 0 {
			id = given
		}
	}
	if _, exists := t.rows[id]; exists {
		return 0, fault.New(fault.Data, "memtable.Insert",
			"table %q: duplicate identifier %d", t.name, id)
	}
	if id >= t.nextID {
		t.nextID = id + 1
	}

	row := make([]any, len(values))
	copy(row, values)
	if idIdx >= 0 {
		row[idIdx] = id
	}
	t.rows[id] = row
	t.order = append(t.order, id)
	return id, nil
}

// InsertMany stores every row, failing fast on the first error.
func (t *Table) InsertMany(rows [][]any) ([]int64, error) {
	ids := make([]int64, 0, len(rows))
	for _, values := range rows {
		id, err := t.Insert(values)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Update replaces the row stored under id.
func (t *Table) Update(id int64, values []any) error {
	if err := t.checkRow(values); err != nil {
		return err
	}
	if _, ok := t.rows[id]; !ok {
		return fault.New(fault.Data, "memtable.Update",
			"table %q: no row with identifier %d", t.name, id)
	}
	row := make([]any, len(values))
	copy(row, values)
	if idIdx := t.layout.IDIndex(); idIdx >= 0 {
		row[idIdx] = id
	}
	t.rows[id] = row
	return nil
}

// UpdateMany replaces every row, failing fast on the first error.
func (t *Table) UpdateMany(ids []int64, rows [][]any) error {
	if len(ids) != len(rows) {
		return fault.New(fault.Config, "memtable.UpdateMany",
			"table %q: %d identifiers for %d rows", t.name, len(ids), len(rows))
	}
	for i, id := range ids {
		if err := t.Update(id, rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// Replace stores the row under id, inserting when absent.
func (t *Table) Replace(id int64, values []any) error {
	if _, ok := t.rows[id]; ok {
		return t.Update(id, values)
	}
	if err := t.checkRow(values); err != nil {
		return err
	}
	row := make([]any, len(values))
	copy(row, values)
	if idIdx := t.layout.IDIndex(); idIdx >= 0 {
		row[idIdx] = id
	}
	if id >= t.nextID {
		t.nextID = id + 1
	}
	t.rows[id] = row
	t.order = append(t.order, id)
	return nil
}

// Delete removes the row stored under id.
func (t *Table) Delete(id int64) error {
	if _, ok := t.rows[id]; !ok {
		return fault.New(fault.Data, "memtable.Delete",
			"table %q: no row with identifier %d", t.name, id)
	}
	delete(t.rows, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// DeleteMany removes every row, failing fast on the first error.
func (t *Table) DeleteMany(ids []int64) error {
	for _, id := range ids {
		if err := t.Delete(id); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the identifiers of every row matching pred, in insertion
// order.
func (t *Table) Find(pred func(id int64, row []any) bool) []int64 {
	var out []int64
	for _, id := range t.order {
		if pred == nil || pred(id, t.rows[id]) {
			out = append(out, id)
		}
	}
	return out
}

// Count reports the number of rows matching pred; a nil pred counts all.
func (t *Table) Count(pred func(id int64, row []any) bool) int64 {
	if pred == nil {
		return int64(len(t.rows))
	}
	var n int64
	for _, id := range t.order {
		if pred(id, t.rows[id]) {
			n++
		}
	}
	return n
}

// Sum aggregates a numeric field over the rows matching pred.
func (t *Table) Sum(field int, pred func(id int64, row []any) bool) (float64, error) {
	if field < 0 || field >= t.layout.Len() {
		return 0, fault.New(fault.Config, "memtable.Sum",
			"table %q: field %d out of range", t.name, field)
	}
	var sum float64
	for _, id := range t.order {
		row := t.rows[id]
		if pred != nil && !pred(id, row) {
			continue
		}
		switch v := row[field].(type) {
		case nil:
		case int64:
			sum += float64(v)
		case int:
			sum += float64(v)
		case float64:
			sum += v
		default:
			return 0, fault.New(fault.Data, "memtable.Sum",
				"table %q: field %q holds non-numeric %T", t.name, t.layout.Field(field).Name, v)
		}
	}
	return sum, nil
}

// Scan visits every row in insertion order until fn returns false or an
// error.
func (t *Table) Scan(fn func(id int64, row []any) (bool, error)) error {
	for _, id := range t.order {
		row := make([]any, len(t.rows[id]))
		copy(row, t.rows[id])
		cont, err := fn(id, row)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// Len reports the row count.
func (t *Table) Len() int { return len(t.rows) }

func (t *Table) keyOf(key any) (int64, error) {
	id, ok := asID(key)
	if !ok {
		return 0, fault.New(fault.Type, "memtable",
			"table %q: identifier value %T is not an integer", t.name, key)
	}
	return id, nil
}

// GetRow returns the row stored under the identifier value.
func (t *Table) GetRow(key any) ([]any, bool, error) {
	id, err := t.keyOf(key)
	if err != nil {
		return nil, false, err
	}
	row, ok := t.Get(id)
	return row, ok, nil
}

// InsertRow stores a new row and returns its identifier value.
func (t *Table) InsertRow(values []any) (any, error) {
	return t.Insert(values)
}

// UpdateRow replaces the row stored under the identifier value.
func (t *Table) UpdateRow(key any, values []any) error {
	id, err := t.keyOf(key)
	if err != nil {
		return err
	}
	return t.Update(id, values)
}

// DeleteRow removes the row stored under the identifier value.
func (t *Table) DeleteRow(key any) error {
	id, err := t.keyOf(key)
	if err != nil {
		return err
	}
	return t.Delete(id)
}

// ScanRows visits every row until fn returns false or an error.
func (t *Table) ScanRows(fn func(key any, values []any) (bool, error)) error {
	return t.Scan(func(id int64, row []any) (bool, error) {
		return fn(id, row)
	})
}
