package schema

import (
	"fmt"

	"polystore/fault"
)

// FieldProperties is the per-field metadata used for marshalling and
// validation. Index is the physical position of the field in the backing
// row; it equals the declared position until lenient binding re-points it.
type FieldProperties struct {
	Name            string
	Type            DataType
	DateTimeType    DateTimeType
	Kind            DateTimeKind
	IsID            bool
	IsAutoIncrement bool
	IsUnique        bool
	Index           int
}

// equalReconciled compares the properties that both sides of a layout check
// can know about. DateTimeType and Kind are local encoding choices that live
// result sets cannot report, so they are excluded here.
func equalReconciled(a, b FieldProperties) bool {
	return CaseInsensitive.Equal(a.Name, b.Name) &&
		a.Type == b.Type &&
		a.IsID == b.IsID &&
		a.IsAutoIncrement == b.IsAutoIncrement &&
		a.IsUnique == b.IsUnique
}

// RowLayout is an immutable ordered sequence of field properties identifying
// zero or one identifier field.
type RowLayout struct {
	fields []FieldProperties
	id     int
}

// NewLayout builds a layout from the given fields, assigning each field's
// Index to its declared position when unset. It fails if more than one field
// is marked as the identifier.
func NewLayout(fields ...FieldProperties) (RowLayout, error) {
	fs := make([]FieldProperties, len(fields))
	copy(fs, fields)

	id := -1
	for i := range fs {
		if fs[i].Index == 0 {
			fs[i].Index = i
		}
		if fs[i].IsID {
			if id >= 0 {
				return RowLayout{}, fault.New(fault.Data, "schema.NewLayout",
					"fields %q and %q are both marked as identifier", fs[id].Name, fs[i].Name)
			}
			id = i
		}
	}
	return RowLayout{fields: fs, id: id}, nil
}

// MustLayout is NewLayout for statically known-good layouts; it panics on
// error and is intended for tests and package-level declarations.
func MustLayout(fields ...FieldProperties) RowLayout {
	l, err := NewLayout(fields...)
	if err != nil {
		panic(err)
	}
	return l
}

// Len returns the number of fields.
func (l RowLayout) Len() int { return len(l.fields) }

// Field returns the properties at position i.
func (l RowLayout) Field(i int) FieldProperties { return l.fields[i] }

// Fields returns a copy of the field sequence.
func (l RowLayout) Fields() []FieldProperties {
	fs := make([]FieldProperties, len(l.fields))
	copy(fs, l.fields)
	return fs
}

// IDIndex returns the position of the identifier field, or -1.
func (l RowLayout) IDIndex() int { return l.id }

// ID returns the identifier field, if any.
func (l RowLayout) ID() (FieldProperties, bool) {
	if l.id < 0 {
		return FieldProperties{}, false
	}
	return l.fields[l.id], true
}

// FieldIndex returns the position of the first field matching name under the
// given comparison mode.
func (l RowLayout) FieldIndex(name string, cmp NameComparison) (int, bool) {
	for i, f := range l.fields {
		if cmp.Equal(f.Name, name) {
			return i, true
		}
	}
	return 0, false
}

// WithIndexes returns a copy of the layout with each field's physical Index
// replaced by the corresponding entry of indexes. Used by lenient binding.
func (l RowLayout) WithIndexes(indexes []int) (RowLayout, error) {
	if len(indexes) != len(l.fields) {
		return RowLayout{}, fault.New(fault.Data, "schema.WithIndexes",
			"expected %d indexes, found %d", len(l.fields), len(indexes))
	}
	fs := make([]FieldProperties, len(l.fields))
	copy(fs, l.fields)
	for i := range fs {
		fs[i].Index = indexes[i]
	}
	return RowLayout{fields: fs, id: l.id}, nil
}

// Adjuster maps declared field properties into the form a specific engine
// reports them, e.g. collapsing integer widths on engines with a single
// integer storage class. A nil Adjuster leaves properties untouched.
type Adjuster func(FieldProperties) FieldProperties

// CheckLayout verifies that the declared layout is compatible with the layout
// the engine reported for table. It fails on a field-count mismatch or on the
// first position whose engine-adjusted declared properties differ from the
// live properties.
func CheckLayout(table string, live, declared RowLayout, adjust Adjuster) error {
	if live.Len() != declared.Len() {
		return fault.New(fault.Data, "schema.CheckLayout",
			"table %q: expected %d fields, found %d", table, declared.Len(), live.Len())
	}
	for i := 0; i < declared.Len(); i++ {
		want := declared.Field(i)
		if adjust != nil {
			want = adjust(want)
		}
		got := live.Field(i)
		if !equalReconciled(want, got) {
			return fault.New(fault.Data, "schema.CheckLayout",
				"table %q: field %d mismatch: expected %s, found %s",
				table, i, describeField(want), describeField(got))
		}
	}
	return nil
}

func describeField(f FieldProperties) string {
	flags := ""
	if f.IsID {
		flags += " id"
	}
	if f.IsAutoIncrement {
		flags += " autoincrement"
	}
	if f.IsUnique {
		flags += " unique"
	}
	return fmt.Sprintf("%s(%s%s)", f.Name, f.Type, flags)
}
