package bind

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polystore/fault"
	"polystore/memtable"
	"polystore/schema"
)

type book struct {
	ID    int64
	Title string
	Pages int64
}

func bookDescriptor() Descriptor[book] {
	return Descriptor[book]{Fields: []Field[book]{
		{
			Properties: schema.FieldProperties{Name: "id", Type: schema.TypeInt64, IsID: true, IsAutoIncrement: true},
			Get:        func(b *book) any { return b.ID },
			Set: func(b *book, v any) error {
				n, ok := v.(int64)
				if !ok {
					return fmt.Errorf("id: unexpected %T", v)
				}
				b.ID = n
				return nil
			},
		},
		{
			Properties: schema.FieldProperties{Name: "title", Type: schema.TypeString},
			Get:        func(b *book) any { return b.Title },
			Set: func(b *book, v any) error {
				s, ok := v.(string)
				if !ok {
					return fmt.Errorf("title: unexpected %T", v)
				}
				b.Title = s
				return nil
			},
		},
		{
			Properties: schema.FieldProperties{Name: "pages", Type: schema.TypeInt64},
			Get:        func(b *book) any { return b.Pages },
			Set: func(b *book, v any) error {
				n, ok := v.(int64)
				if !ok {
					return fmt.Errorf("pages: unexpected %T", v)
				}
				b.Pages = n
				return nil
			},
		},
	}}
}

func bookTable() *memtable.Table {
	return memtable.New("books", schema.MustLayout(
		schema.FieldProperties{Name: "id", Type: schema.TypeInt64, IsID: true, IsAutoIncrement: true},
		schema.FieldProperties{Name: "title", Type: schema.TypeString},
		schema.FieldProperties{Name: "pages", Type: schema.TypeInt64},
	))
}

func TestBindStrict(t *testing.T) {
	b, err := Bind[int64](bookTable(), bookDescriptor())
	require.NoError(t, err)

	key, err := b.Insert(&book{Title: "Gödel, Escher, Bach", Pages: 777})
	require.NoError(t, err)
	assert.Equal(t, int64(1), key)

	got, ok, err := b.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, book{ID: 1, Title: "Gödel, Escher, Bach", Pages: 777}, got)
}

func TestBindStrictLayoutMismatch(t *testing.T) {
	table := memtable.New("books", schema.MustLayout(
		schema.FieldProperties{Name: "id", Type: schema.TypeInt64, IsID: true, IsAutoIncrement: true},
		schema.FieldProperties{Name: "title", Type: schema.TypeString},
	))

	_, err := Bind[int64](table, bookDescriptor())
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Data))
}

func TestBindLenientIgnoresExtraBackingFields(t *testing.T) {
	table := memtable.New("books", schema.MustLayout(
		schema.FieldProperties{Name: "notes", Type: schema.TypeString},
		schema.FieldProperties{Name: "Title", Type: schema.TypeString},
		schema.FieldProperties{Name: "id", Type: schema.TypeInt64, IsID: true, IsAutoIncrement: true},
		schema.FieldProperties{Name: "PAGES", Type: schema.TypeInt64},
	))

	b, err := Bind[int64](table, bookDescriptor(), Lenient())
	require.NoError(t, err)

	// Declared fields resolved onto their backing positions by name.
	assert.Equal(t, 2, b.Layout().Field(0).Index)
	assert.Equal(t, 1, b.Layout().Field(1).Index)
	assert.Equal(t, 3, b.Layout().Field(2).Index)

	key, err := b.Insert(&book{Title: "SICP", Pages: 657})
	require.NoError(t, err)

	got, ok, err := b.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, book{ID: key, Title: "SICP", Pages: 657}, got)
}

func TestBindLenientMissingField(t *testing.T) {
	table := memtable.New("books", schema.MustLayout(
		schema.FieldProperties{Name: "id", Type: schema.TypeInt64, IsID: true},
		schema.FieldProperties{Name: "pages", Type: schema.TypeInt64},
	))

	_, err := Bind[int64](table, bookDescriptor(), Lenient())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `declared field "title" not found`)
}

func TestBindLenientAmbiguity(t *testing.T) {
	desc := Descriptor[book]{Fields: []Field[book]{
		{
			Properties: schema.FieldProperties{Name: "ID", Type: schema.TypeInt64, IsID: true},
			Get:        func(b *book) any { return b.ID },
		},
		{
			Properties: schema.FieldProperties{Name: "id", Type: schema.TypeInt64},
			Get:        func(b *book) any { return b.ID },
		},
	}}
	table := memtable.New("books", schema.MustLayout(
		schema.FieldProperties{Name: "id", Type: schema.TypeInt64, IsID: true},
		schema.FieldProperties{Name: "title", Type: schema.TypeString},
	))

	_, err := Bind[int64](table, desc, Lenient())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "both resolve to backing field 0")
}

func TestBindLenientCaseSensitive(t *testing.T) {
	table := memtable.New("books", schema.MustLayout(
		schema.FieldProperties{Name: "ID", Type: schema.TypeInt64, IsID: true},
		schema.FieldProperties{Name: "title", Type: schema.TypeString},
		schema.FieldProperties{Name: "pages", Type: schema.TypeInt64},
	))

	_, err := Bind[int64](table, bookDescriptor(), Lenient(), WithNameComparison(schema.CaseSensitive))
	require.Error(t, err, "declared \"id\" must not match backing \"ID\" case-sensitively")
}

func TestBindKeyTypeMismatch(t *testing.T) {
	// A string identifier domain cannot be represented by an integer key.
	desc := Descriptor[book]{Fields: []Field[book]{
		{
			Properties: schema.FieldProperties{Name: "id", Type: schema.TypeString, IsID: true},
			Get:        func(b *book) any { return b.Title },
		},
	}}
	table := memtable.New("refs", schema.MustLayout(
		schema.FieldProperties{Name: "id", Type: schema.TypeString, IsID: true},
	))

	_, err := Bind[int64](table, desc)
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Type))
}

func TestBindKeyNarrowing(t *testing.T) {
	// An int8 key loses the upper range of an int64 identifier.
	_, err := Bind[int8](bookTable(), bookDescriptor())
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Type))
}

func TestBindStringKeyOverIntegerIdentifier(t *testing.T) {
	// String keys render integers losslessly in both directions.
	b, err := Bind[string](bookTable(), bookDescriptor())
	require.NoError(t, err)

	key, err := b.Insert(&book{Title: "TAOCP", Pages: 3168})
	require.NoError(t, err)
	assert.Equal(t, "1", key)

	got, ok, err := b.Get("1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "TAOCP", got.Title)
}

func TestBindNoIdentifier(t *testing.T) {
	desc := Descriptor[book]{Fields: []Field[book]{
		{
			Properties: schema.FieldProperties{Name: "title", Type: schema.TypeString},
			Get:        func(b *book) any { return b.Title },
		},
	}}
	table := memtable.New("notes", schema.MustLayout(
		schema.FieldProperties{Name: "title", Type: schema.TypeString},
	))

	_, err := Bind[int64](table, desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no identifier field")
}

func TestBindFixesLayoutOnce(t *testing.T) {
	table := bookTable()

	_, err := Bind[int64](table, bookDescriptor())
	require.NoError(t, err)

	_, err = Bind[int64](table, bookDescriptor())
	require.Error(t, err)
	assert.True(t, fault.Is(err, fault.Config))
}

func TestBindingUpdateDelete(t *testing.T) {
	b, err := Bind[int64](bookTable(), bookDescriptor())
	require.NoError(t, err)

	rec := book{Title: "draft", Pages: 10}
	key, err := b.Insert(&rec)
	require.NoError(t, err)

	rec.Title = "final"
	require.NoError(t, b.Update(&rec))

	got, ok, err := b.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "final", got.Title)

	require.NoError(t, b.Delete(key))
	_, ok, err = b.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBindingAll(t *testing.T) {
	b, err := Bind[int64](bookTable(), bookDescriptor())
	require.NoError(t, err)

	for i, title := range []string{"a", "b", "c"} {
		_, err := b.Insert(&book{Title: title, Pages: int64(i + 1)})
		require.NoError(t, err)
	}

	all, err := b.All()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Title)
	assert.Equal(t, int64(3), all[2].ID)
}

func TestBindingKey(t *testing.T) {
	b, err := Bind[int64](bookTable(), bookDescriptor())
	require.NoError(t, err)

	k, err := b.Key(&book{ID: 42})
	require.NoError(t, err)
	assert.Equal(t, int64(42), k)
}
