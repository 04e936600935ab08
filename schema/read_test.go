package schema

import (
	"testing"

	"polystore/fault"
)

func TestReadDerivesLayout(t *testing.T) {
	cols := []Column{
		{Name: "id", DeclType: "INTEGER", IsID: true, IsAutoIncrement: true},
		{Name: "title", DeclType: "TEXT"},
		{Name: "price", DeclType: "REAL"},
	}

	l, err := Read("books", 3, cols)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if l.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", l.Len())
	}
	if f := l.Field(0); !f.IsID || !f.IsAutoIncrement || f.Type != TypeInt64 {
		t.Errorf("field 0 = %+v, want int64 auto id", f)
	}
	if f := l.Field(1); f.Type != TypeString {
		t.Errorf("field 1 type = %s, want string", f.Type)
	}
	if f := l.Field(2); f.Type != TypeFloat {
		t.Errorf("field 2 type = %s, want float", f.Type)
	}
}

func TestReadEmptyNamesFallBackToPosition(t *testing.T) {
	cols := []Column{
		{Name: "", DeclType: "INTEGER"},
		{Name: "", DeclType: "TEXT"},
	}

	l, err := Read("anon", 2, cols)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if l.Field(0).Name != "0" || l.Field(1).Name != "1" {
		t.Errorf("names = %q,%q, want 0,1", l.Field(0).Name, l.Field(1).Name)
	}
}

func TestReadFieldCountDisagreement(t *testing.T) {
	cols := []Column{{Name: "id", DeclType: "INTEGER"}}

	_, err := Read("books", 2, cols)
	if err == nil {
		t.Fatal("Read() should fail when reader and metadata disagree")
	}
	if !fault.Is(err, fault.Data) {
		t.Errorf("kind = %s, want data", fault.KindOf(err))
	}
}

func TestInferType(t *testing.T) {
	tests := []struct {
		decl string
		want DataType
	}{
		{"INTEGER", TypeInt64},
		{"int", TypeInt64},
		{"BIGINT", TypeInt64},
		{"VARCHAR(80)", TypeString},
		{"text", TypeString},
		{"CLOB", TypeString},
		{"BOOLEAN", TypeBool},
		{"REAL", TypeFloat},
		{"DOUBLE PRECISION", TypeFloat},
		{"FLOAT", TypeFloat},
		{"DECIMAL(10,4)", TypeDecimal},
		{"NUMERIC", TypeDecimal},
		{"TIMESTAMP", TypeDateTime},
		{"DATETIME", TypeDateTime},
		{"DATE", TypeDateTime},
		{"BLOB", TypeBinary},
		{"", TypeBinary},
		{"GEOMETRY", TypeBinary},
	}

	for _, tt := range tests {
		if got := InferType(tt.decl); got != tt.want {
			t.Errorf("InferType(%q) = %s, want %s", tt.decl, got, tt.want)
		}
	}
}
