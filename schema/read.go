package schema

import (
	"strconv"
	"strings"

	"polystore/fault"
)

// Column is the metadata a native engine reports for one result-set or table
// column.
type Column struct {
	Name            string
	DeclType        string
	Size            int64
	IsID            bool
	IsAutoIncrement bool
	IsUnique        bool
}

// Read derives a row layout from live result-set metadata. fieldCount is the
// number of fields the reader reported for the result; Read fails when the
// metadata disagrees with it. Columns with an empty name fall back to their
// stringified position.
func Read(table string, fieldCount int, cols []Column) (RowLayout, error) {
	if fieldCount != len(cols) {
		return RowLayout{}, fault.New(fault.Data, "schema.Read",
			"table %q: reader reported %d fields but metadata describes %d columns",
			table, fieldCount, len(cols))
	}

	fields := make([]FieldProperties, len(cols))
	for i, c := range cols {
		name := c.Name
		if name == "" {
			name = strconv.Itoa(i)
		}
		fields[i] = FieldProperties{
			Name:            name,
			Type:            InferType(c.DeclType),
			IsID:            c.IsID,
			IsAutoIncrement: c.IsAutoIncrement,
			IsUnique:        c.IsUnique,
			Index:           i,
		}
	}
	return NewLayout(fields...)
}

// InferType maps a declared native column type to a local DataType. The
// matching follows SQLite affinity rules, which also cover the common
// declarations of the other supported engines. Unrecognized declarations
// fall back to binary, the lossless catch-all.
func InferType(declType string) DataType {
	d := strings.ToUpper(declType)
	switch {
	case strings.Contains(d, "INT"):
		return TypeInt64
	case strings.Contains(d, "CHAR"), strings.Contains(d, "TEXT"), strings.Contains(d, "CLOB"):
		return TypeString
	case strings.Contains(d, "BOOL"):
		return TypeBool
	case strings.Contains(d, "REAL"), strings.Contains(d, "FLOA"), strings.Contains(d, "DOUB"):
		return TypeFloat
	case strings.Contains(d, "DEC"), strings.Contains(d, "NUMERIC"):
		return TypeDecimal
	case strings.Contains(d, "TIMESTAMP"), strings.Contains(d, "DATE"), strings.Contains(d, "TIME"):
		return TypeDateTime
	case strings.Contains(d, "BLOB"), d == "":
		return TypeBinary
	default:
		return TypeBinary
	}
}
