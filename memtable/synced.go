package memtable

import (
	"sync"

	"polystore/fault"
	"polystore/schema"
)

// Synced gives thread-safe semantics to one Table through a single
// instance-wide lock. Every operation, batch forms included, holds the lock
// for its entire duration. An attached Log is expected to be thread-safe on
// its own and is invoked without additional locking of its internals.
type Synced struct {
	mu  sync.Mutex
	t   *Table
	log Log
}

// NewSynced wraps a table. The caller must stop using the wrapped table
// directly.
func NewSynced(t *Table) *Synced {
	return &Synced{t: t}
}

// AttachLog installs the transaction log sink. Attach and detach are
// themselves lock-protected.
func (s *Synced) AttachLog(l Log) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = l
}

// DetachLog removes the transaction log sink.
func (s *Synced) DetachLog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
}

// append records a committed change. The mutation has already happened;
// a sink failure surfaces to the caller but does not undo it.
func (s *Synced) append(op string, rowID int64, values []any) error {
	if s.log == nil {
		return nil
	}
	return s.log.Append(newEntry(op, s.t.name, rowID, values))
}

// Name returns the wrapped table's name.
func (s *Synced) Name() string { return s.t.name }

// Layout returns the backing layout.
func (s *Synced) Layout() (schema.RowLayout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Layout()
}

// UseLayout fixes the effective layout, once.
func (s *Synced) UseLayout(l schema.RowLayout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.UseLayout(l)
}

// FieldIndex locates a backing field by name.
func (s *Synced) FieldIndex(name string, cmp schema.NameComparison) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.FieldIndex(name, cmp)
}

// Get returns the row stored under id.
func (s *Synced) Get(id int64) ([]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Get(id)
}

// Insert stores a new row.
func (s *Synced) Insert(values []any) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.t.Insert(values)
	if err != nil {
		return 0, err
	}
	return id, s.append("insert", id, values)
}

// InsertMany stores every row atomically with respect to concurrent
// callers of the same instance.
func (s *Synced) InsertMany(rows [][]any) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.t.InsertMany(rows)
	if err != nil {
		return ids, err
	}
	for i, id := range ids {
		if err := s.append("insert", id, rows[i]); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

// Update replaces the row stored under id.
func (s *Synced) Update(id int64, values []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.t.Update(id, values); err != nil {
		return err
	}
	return s.append("update", id, values)
}

// UpdateMany replaces rows atomically with respect to concurrent callers.
func (s *Synced) UpdateMany(ids []int64, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(ids) != len(rows) {
		return fault.New(fault.Config, "memtable.UpdateMany",
			"table %q: %d identifiers for %d rows", s.t.name, len(ids), len(rows))
	}
	for i, id := range ids {
		if err := s.t.Update(id, rows[i]); err != nil {
			return err
		}
		if err := s.append("update", id, rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// Replace stores the row under id, inserting when absent.
func (s *Synced) Replace(id int64, values []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.t.Replace(id, values); err != nil {
		return err
	}
	return s.append("replace", id, values)
}

// Delete removes the row stored under id.
func (s *Synced) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.t.Delete(id); err != nil {
		return err
	}
	return s.append("delete", id, nil)
}

// DeleteMany removes rows atomically with respect to concurrent callers.
func (s *Synced) DeleteMany(ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if err := s.t.Delete(id); err != nil {
			return err
		}
		if err := s.append("delete", id, nil); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the identifiers of rows matching pred.
func (s *Synced) Find(pred func(id int64, row []any) bool) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Find(pred)
}

// Count reports the number of rows matching pred.
func (s *Synced) Count(pred func(id int64, row []any) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Count(pred)
}

// Sum aggregates a numeric field over rows matching pred. The lock is held
// for the full scan.
func (s *Synced) Sum(field int, pred func(id int64, row []any) bool) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Sum(field, pred)
}

// Scan visits every row while holding the lock; fn must not call back into
// the facade.
func (s *Synced) Scan(fn func(id int64, row []any) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Scan(fn)
}

// Len reports the row count.
func (s *Synced) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.Len()
}

// GetRow returns the row stored under the identifier value.
func (s *Synced) GetRow(key any) ([]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.GetRow(key)
}

// InsertRow stores a new row and returns its identifier value.
func (s *Synced) InsertRow(values []any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.t.Insert(values)
	if err != nil {
		return nil, err
	}
	return id, s.append("insert", id, values)
}

// UpdateRow replaces the row stored under the identifier value.
func (s *Synced) UpdateRow(key any, values []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.t.keyOf(key)
	if err != nil {
		return err
	}
	if err := s.t.Update(id, values); err != nil {
		return err
	}
	return s.append("update", id, values)
}

// DeleteRow removes the row stored under the identifier value.
func (s *Synced) DeleteRow(key any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.t.keyOf(key)
	if err != nil {
		return err
	}
	if err := s.t.Delete(id); err != nil {
		return err
	}
	return s.append("delete", id, nil)
}

// ScanRows visits every row until fn returns false or an error.
func (s *Synced) ScanRows(fn func(key any, values []any) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.ScanRows(fn)
}
