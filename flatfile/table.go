package flatfile

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"time"

	bolt "go.etcd.io/bbolt"

	"polystore/codec"
	"polystore/fault"
	"polystore/schema"
)

const (
	rowsPrefix = "rows:"
	metaPrefix = "meta:"

	layoutKey = "layout"
)

// Store is one bbolt file hosting any number of tables.
type Store struct {
	db  *bolt.DB
	log *slog.Logger
}

// Option configures a store.
type Option func(*Store)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open opens or creates the store file at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fault.Wrap(fault.Connection, "flatfile.Open", err)
	}
	s := &Store{db: db, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying file.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fault.Wrap(fault.Lifecycle, "flatfile.Close", err)
	}
	return nil
}

// Path returns the store's file path.
func (s *Store) Path() string { return s.db.Path() }

// Table opens the named table, creating its buckets on first use. The
// supplied layout is persisted on creation; on later opens the stored layout
// must reconcile with the supplied one.
func (s *Store) Table(name string, layout schema.RowLayout) (*Table, error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(rowsPrefix + name)); err != nil {
			return fault.Wrap(fault.Lifecycle, "flatfile.Table", err)
		}
		meta, err := tx.CreateBucketIfNotExists([]byte(metaPrefix + name))
		if err != nil {
			return fault.Wrap(fault.Lifecycle, "flatfile.Table", err)
		}

		stored := meta.Get([]byte(layoutKey))
		if stored == nil {
			data, err := json.Marshal(layout.Fields())
			if err != nil {
				return fault.Wrap(fault.Data, "flatfile.Table", err)
			}
			return meta.Put([]byte(layoutKey), data)
		}

		var fields []schema.FieldProperties
		if err := json.Unmarshal(stored, &fields); err != nil {
			return fault.Wrap(fault.Data, "flatfile.Table", err)
		}
		live, err := schema.NewLayout(fields...)
		if err != nil {
			return err
		}
		return schema.CheckLayout(name, live, layout, nil)
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("table opened", "table", name, "path", s.db.Path())
	return &Table{store: s, name: name, layout: layout}, nil
}

// Table is one identifier-keyed table inside a store. A Table is safe for
// concurrent use; bbolt serializes writers and the remaining state is fixed
// after Table() except for the bound layout, which is set once.
type Table struct {
	store    *Store
	name     string
	layout   schema.RowLayout
	bound    schema.RowLayout
	hasBound bool
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Layout returns the persisted layout.
func (t *Table) Layout() (schema.RowLayout, bool) { return t.layout, true }

// UseLayout fixes the effective layout. It succeeds at most once.
func (t *Table) UseLayout(l schema.RowLayout) error {
	if t.hasBound {
		return fault.New(fault.Config, "flatfile.UseLayout",
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

func (t *Table) rows(tx *bolt.Tx) (*bolt.Bucket, error) {
	b := tx.Bucket([]byte(rowsPrefix + t.name))
	if b == nil {
		return nil, fault.New(fault.Lifecycle, "flatfile",
			"table %q: rows bucket is missing", t.name)
	}
	return b, nil
}

func rowKey(id int64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], uint64(id))
	return k[:]
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
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func (t *Table) keyOf(key any) (int64, error) {
	id, ok := asID(key)
	if !ok {
		return 0, fault.New(fault.Type, "flatfile",
			"table %q: identifier value %T is not an integer", t.name, key)
	}
	return id, nil
}

func (t *Table) checkWidth(values []any) error {
	if len(values) != t.layout.Len() {
		return fault.New(fault.Data, "flatfile",
			"table %q: expected %d values, found %d", t.name, t.layout.Len(), len(values))
	}
	return nil
}

// encodeRow marshals one row into a JSON array of database-form values.
func (t *Table) encodeRow(values []any) ([]byte, error) {
	if err := t.checkWidth(values); err != nil {
		return nil, err
	}
	out := make([]any, len(values))
	for i, v := range values {
		dv, err := codec.DatabaseValue(t.layout.Field(i), v)
		if err != nil {
			return nil, err
		}
		out[i] = dv
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fault.Wrap(fault.Data, "flatfile.encodeRow", err)
	}
	return data, nil
}

// decodeRow unmarshals a stored row back into local values.
func (t *Table) decodeRow(data []byte) ([]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fault.Wrap(fault.Data, "flatfile.decodeRow", err)
	}
	if len(raw) != t.layout.Len() {
		return nil, fault.New(fault.Data, "flatfile.decodeRow",
			"table %q: stored row has %d values, layout has %d", t.name, len(raw), t.layout.Len())
	}

	out := make([]any, len(raw))
	for i, v := range raw {
		f := t.layout.Field(i)
		// JSON stores byte slices as base64 text.
		if f.Type == schema.TypeBinary {
			if s, ok := v.(string); ok {
				b, err := base64.StdEncoding.DecodeString(s)
				if err != nil {
					return nil, fault.Wrap(fault.Data, "flatfile.decodeRow", err)
				}
				v = b
			}
		}
		lv, err := codec.LocalValue(f, v)
		if err != nil {
			return nil, err
		}
		out[i] = lv
	}
	return out, nil
}

// GetRow returns the row stored under the identifier value.
func (t *Table) GetRow(key any) ([]any, bool, error) {
	id, err := t.keyOf(key)
	if err != nil {
		return nil, false, err
	}
	var data []byte
	err = t.store.db.View(func(tx *bolt.Tx) error {
		b, err := t.rows(tx)
		if err != nil {
			return err
		}
		if v := b.Get(rowKey(id)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return nil, false, err
	}
	row, err := t.decodeRow(data)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// InsertRow stores a new row and returns its identifier value. A non-zero
// caller-supplied identifier is honored; otherwise the bucket sequence
// assigns the next one.
func (t *Table) InsertRow(values []any) (any, error) {
	// Width is checked before the identifier peek below indexes the row.
	if err := t.checkWidth(values); err != nil {
		return nil, err
	}
	var id int64
	err := t.store.db.Update(func(tx *bolt.Tx) error {
		b, err := t.rows(tx)
		if err != nil {
			return err
		}

		id = 0
		idIdx := t.layout.IDIndex()
		if idIdx >= 0 && values[idIdx] != nil {
			if given, ok := asID(values[idIdx]); ok {
				id = given
			}
		}
		if id == 0 {
			seq, err := b.NextSequence()
			if err != nil {
				return fault.Wrap(fault.Lifecycle, "flatfile.InsertRow", err)
			}
			id = int64(seq)
		}
		if b.Get(rowKey(id)) != nil {
			return fault.New(fault.Data, "flatfile.InsertRow",
				"table %q: duplicate identifier %d", t.name, id)
		}

		row := make([]any, len(values))
		copy(row, values)
		if idIdx >= 0 {
			row[idIdx] = id
		}
		data, err := t.encodeRow(row)
		if err != nil {
			return err
		}
		return b.Put(rowKey(id), data)
	})
	if err != nil {
		return nil, err
	}
	return id, nil
}

// UpdateRow replaces the row stored under the identifier value.
func (t *Table) UpdateRow(key any, values []any) error {
	id, err := t.keyOf(key)
	if err != nil {
		return err
	}
	if err := t.checkWidth(values); err != nil {
		return err
	}
	return t.store.db.Update(func(tx *bolt.Tx) error {
		b, err := t.rows(tx)
		if err != nil {
			return err
		}
		if b.Get(rowKey(id)) == nil {
			return fault.New(fault.Data, "flatfile.UpdateRow",
				"table %q: no row with identifier %d", t.name, id)
		}
		row := make([]any, len(values))
		copy(row, values)
		if idIdx := t.layout.IDIndex(); idIdx >= 0 {
			row[idIdx] = id
		}
		data, err := t.encodeRow(row)
		if err != nil {
			return err
		}
		return b.Put(rowKey(id), data)
	})
}

// DeleteRow removes the row stored under the identifier value.
func (t *Table) DeleteRow(key any) error {
	id, err := t.keyOf(key)
	if err != nil {
		return err
	}
	return t.store.db.Update(func(tx *bolt.Tx) error {
		b, err := t.rows(tx)
		if err != nil {
			return err
		}
		if b.Get(rowKey(id)) == nil {
			return fault.New(fault.Data, "flatfile.DeleteRow",
				"table %q: no row with identifier %d", t.name, id)
		}
		return b.Delete(rowKey(id))
	})
}

// ScanRows visits every row in identifier order until fn returns false or an
// error.
func (t *Table) ScanRows(fn func(key any, values []any) (bool, error)) error {
	return t.store.db.View(func(tx *bolt.Tx) error {
		b, err := t.rows(tx)
		if err != nil {
			return err
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			id := int64(binary.BigEndian.Uint64(k))
			row, err := t.decodeRow(v)
			if err != nil {
				return err
			}
			cont, err := fn(id, row)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

// Count reports the number of stored rows.
func (t *Table) Count() (int64, error) {
	var n int64
	err := t.store.db.View(func(tx *bolt.Tx) error {
		b, err := t.rows(tx)
		if err != nil {
			return err
		}
		n = int64(b.Stats().KeyN)
		return nil
	})
	return n, err
}
