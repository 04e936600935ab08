package bind

import (
	"polystore/fault"
	"polystore/schema"
)

// Field describes one declared record field: its properties plus accessors
// into the record type.
type Field[T any] struct {
	Properties schema.FieldProperties
	Get        func(*T) any
	Set        func(*T, any) error
}

// Descriptor is the explicit, validated-once record shape supplied at bind
// time.
type Descriptor[T any] struct {
	Fields []Field[T]
}

// Option configures a bind operation.
type Option func(*options)

type options struct {
	lenient bool
	cmp     schema.NameComparison
}

// Lenient enables "ignore missing fields" resolution: declared fields match
// backing fields by name instead of position.
func Lenient() Option {
	return func(o *options) { o.lenient = true }
}

// WithNameComparison overrides the name comparison used by lenient
// resolution. The default is case-insensitive.
func WithNameComparison(cmp schema.NameComparison) Option {
	return func(o *options) { o.cmp = cmp }
}

// Binding associates a key type K and a record type T with a backing table.
type Binding[K comparable, T any] struct {
	table  Table
	fields []Field[T]
	layout schema.RowLayout
	width  int
	idPos  int
}

// Bind validates the association between the descriptor and the backing
// table and fixes the table's effective layout. All validation happens
// here, once; per-call paths assume the resolved layout.
func Bind[K comparable, T any](table Table, desc Descriptor[T], opts ...Option) (*Binding[K, T], error) {
	o := options{cmp: schema.CaseInsensitive}
	for _, opt := range opts {
		opt(&o)
	}

	props := make([]schema.FieldProperties, len(desc.Fields))
	for i, f := range desc.Fields {
		props[i] = f.Properties
	}
	declared, err := schema.NewLayout(props...)
	if err != nil {
		return nil, err
	}

	backing, ok := table.Layout()
	if !ok {
		return nil, fault.New(fault.Config, "bind.Bind",
			"table %q has no layout to bind against", table.Name())
	}

	resolved := declared
	if o.lenient {
		resolved, err = resolveLenient(table, declared, o.cmp)
		if err != nil {
			return nil, err
		}
	} else {
		if err := schema.CheckLayout(table.Name(), backing, declared, nil); err != nil {
			return nil, err
		}
	}

	id, ok := resolved.ID()
	if !ok {
		return nil, fault.New(fault.Data, "bind.Bind",
			"table %q: no identifier field declared", table.Name())
	}

	// The key type must faithfully represent the identifier's domain.
	rep := representative(id.Type)
	k, err := toKey[K](rep)
	if err == nil {
		var back any
		back, err = fromKey(k, id.Type)
		if err == nil && !equalDomain(back, rep) {
			err = fault.New(fault.Type, "bind.Bind",
				"table %q: key type %T cannot represent identifier %q (%s): %v round-trips to %v",
				table.Name(), k, id.Name, id.Type, rep, back)
		}
	}
	if err != nil {
		return nil, fault.WithContext(fault.Type, "bind.Bind", "", table.Name(), err)
	}

	if err := table.UseLayout(resolved); err != nil {
		return nil, err
	}

	return &Binding[K, T]{
		table:  table,
		fields: desc.Fields,
		layout: resolved,
		width:  backing.Len(),
		idPos:  resolved.IDIndex(),
	}, nil
}

// resolveLenient locates a distinct backing index for every declared field
// by name match.
func resolveLenient(table Table, declared schema.RowLayout, cmp schema.NameComparison) (schema.RowLayout, error) {
	indexes := make([]int, declared.Len())
	claimed := make(map[int]string, declared.Len())

	for i := 0; i < declared.Len(); i++ {
		name := declared.Field(i).Name
		idx, ok := table.FieldIndex(name, cmp)
		if !ok {
			return schema.RowLayout{}, fault.New(fault.Data, "bind.Bind",
				"table %q: declared field %q not found in backing schema", table.Name(), name)
		}
		if prev, dup := claimed[idx]; dup {
			return schema.RowLayout{}, fault.New(fault.Data, "bind.Bind",
				"table %q: fields %q and %q both resolve to backing field %d", table.Name(), prev, name, idx)
		}
		claimed[idx] = name
		indexes[i] = idx
	}
	return declared.WithIndexes(indexes)
}

// Layout returns the resolved layout the binding operates under.
func (b *Binding[K, T]) Layout() schema.RowLayout { return b.layout }

// Key extracts the identifier value of a record as K.
func (b *Binding[K, T]) Key(rec *T) (K, error) {
	return toKey[K](b.fields[b.idPos].Get(rec))
}

// Get loads the record stored under key.
func (b *Binding[K, T]) Get(key K) (T, bool, error) {
	var rec T
	kv, err := fromKey(key, b.layout.Field(b.idPos).Type)
	if err != nil {
		return rec, false, err
	}
	values, ok, err := b.table.GetRow(kv)
	if err != nil || !ok {
		return rec, ok, err
	}
	if err := b.fill(&rec, kv, values); err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

// Insert stores a new record and returns its generated key. The record's
// identifier field is updated in place when a setter is declared.
func (b *Binding[K, T]) Insert(rec *T) (K, error) {
	var zero K
	values, err := b.row(rec)
	if err != nil {
		return zero, err
	}
	id, err := b.table.InsertRow(values)
	if err != nil {
		return zero, err
	}
	key, err := toKey[K](id)
	if err != nil {
		return zero, err
	}
	if set := b.fields[b.idPos].Set; set != nil {
		if err := set(rec, id); err != nil {
			return zero, err
		}
	}
	return key, nil
}

// Update replaces the stored row for the record's identifier.
func (b *Binding[K, T]) Update(rec *T) error {
	values, err := b.row(rec)
	if err != nil {
		return err
	}
	return b.table.UpdateRow(b.fields[b.idPos].Get(rec), values)
}

// Delete removes the record stored under key.
func (b *Binding[K, T]) Delete(key K) error {
	kv, err := fromKey(key, b.layout.Field(b.idPos).Type)
	if err != nil {
		return err
	}
	return b.table.DeleteRow(kv)
}

// All loads every stored record.
func (b *Binding[K, T]) All() ([]T, error) {
	var out []T
	err := b.table.ScanRows(func(key any, values []any) (bool, error) {
		var rec T
		if err := b.fill(&rec, key, values); err != nil {
			return false, err
		}
		out = append(out, rec)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// row projects a record onto the backing row width using the resolved
// physical indexes. Backing fields without a declared counterpart stay nil.
func (b *Binding[K, T]) row(rec *T) ([]any, error) {
	values := make([]any, b.width)
	for i, f := range b.fields {
		values[b.layout.Field(i).Index] = f.Get(rec)
	}
	return values, nil
}

// fill populates a record from a backing row.
func (b *Binding[K, T]) fill(rec *T, key any, values []any) error {
	for i, f := range b.fields {
		if f.Set == nil {
			continue
		}
		idx := b.layout.Field(i).Index
		v := values[idx]
		if i == b.idPos && v == nil {
			v = key
		}
		if err := f.Set(rec, v); err != nil {
			return fault.WithContext(fault.Data, "bind.fill", "", b.table.Name(), err)
		}
	}
	return nil
}
