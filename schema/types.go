package schema

import "strings"

// DataType is the closed set of local field type tags.
type DataType int

const (
	TypeUnknown DataType = iota
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeFloat
	TypeDecimal
	TypeString
	TypeBinary
	TypeBool
	TypeEnum
	TypeUserDefined
	TypeDateTime
	TypeTimeSpan
)

func (t DataType) String() string {
	switch t {
	case TypeInt8:
		return "int8"
	case TypeInt16:
		return "int16"
	case TypeInt32:
		return "int32"
	case TypeInt64:
		return "int64"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeString:
		return "string"
	case TypeBinary:
		return "binary"
	case TypeBool:
		return "bool"
	case TypeEnum:
		return "enum"
	case TypeUserDefined:
		return "userdefined"
	case TypeDateTime:
		return "datetime"
	case TypeTimeSpan:
		return "timespan"
	default:
		return "unknown"
	}
}

// Integer reports whether t is one of the integer widths.
func (t DataType) Integer() bool {
	switch t {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return true
	}
	return false
}

// DateTimeType selects the engine-side encoding for date-time and time-span
// fields.
type DateTimeType int

const (
	// DateTimeNative passes the value through to the engine unchanged.
	DateTimeNative DateTimeType = iota

	// DateTimeBigIntTicks stores 100ns ticks since year 1 as an integer.
	DateTimeBigIntTicks

	// DateTimeBigIntHuman stores a human-readable yyyymmddhhmmss integer.
	DateTimeBigIntHuman

	// DateTimeDecimalSeconds stores Unix seconds as a decimal string.
	DateTimeDecimalSeconds

	// DateTimeDoubleSeconds stores Unix seconds as a float64.
	DateTimeDoubleSeconds
)

func (t DateTimeType) String() string {
	switch t {
	case DateTimeBigIntTicks:
		return "bigint-ticks"
	case DateTimeBigIntHuman:
		return "bigint-human"
	case DateTimeDecimalSeconds:
		return "decimal-seconds"
	case DateTimeDoubleSeconds:
		return "double-seconds"
	default:
		return "native"
	}
}

// DateTimeKind fixes the time zone interpretation of a date-time field.
type DateTimeKind int

const (
	KindUnspecified DateTimeKind = iota
	KindLocal
	KindUTC
)

func (k DateTimeKind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindUTC:
		return "utc"
	default:
		return "unspecified"
	}
}

// NameComparison selects how field names are matched during lenient binding
// and layout lookups.
type NameComparison int

const (
	CaseInsensitive NameComparison = iota
	CaseSensitive
)

// Equal reports whether two field names match under the comparison mode.
func (c NameComparison) Equal(a, b string) bool {
	if c == CaseSensitive {
		return a == b
	}
	return strings.EqualFold(a, b)
}
