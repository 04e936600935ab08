package codec

import (
	"fmt"
	"reflect"
	"time"

	"polystore/fault"
	"polystore/schema"
)

// DatabaseValue converts a local typed value into the engine-native
// representation selected by the field's properties. A nil local value, and
// the zero time.Time sentinel for date-time fields, marshal to nil (the
// engine null marker).
func DatabaseValue(f schema.FieldProperties, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch f.Type {
	case schema.TypeInt8, schema.TypeInt16, schema.TypeInt32, schema.TypeInt64:
		n, ok := asInt64(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return n, nil

	case schema.TypeFloat:
		n, ok := asFloat64(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return n, nil

	case schema.TypeDecimal:
		s, ok := formatDecimal(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return s, nil

	case schema.TypeString:
		s, ok := asString(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return s, nil

	case schema.TypeBinary:
		b, ok := asBytes(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return b, nil

	case schema.TypeBool:
		b, ok := asBool(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return b, nil

	case schema.TypeEnum:
		return enumToInt64(f, v)

	case schema.TypeUserDefined:
		if s, ok := asString(v); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil

	case schema.TypeDateTime:
		t, ok := v.(time.Time)
		if !ok {
			return nil, convErr(f, v)
		}
		if t.IsZero() {
			// Documented lossy case: the zero sentinel becomes null.
			return nil, nil
		}
		return encodeTime(f, normalizeKind(f, t))

	case schema.TypeTimeSpan:
		d, ok := v.(time.Duration)
		if !ok {
			return nil, convErr(f, v)
		}
		return encodeDuration(f, d), nil
	}

	return nil, fault.New(fault.Data, "codec.DatabaseValue",
		"field %q: unsupported data type %s", f.Name, f.Type)
}

// LocalValue converts an engine-native value back into its local typed form.
// Engine nulls default to the type's zero value; missing date-time values
// default to the tick-zero time.
func LocalValue(f schema.FieldProperties, v any) (any, error) {
	switch f.Type {
	case schema.TypeInt8, schema.TypeInt16, schema.TypeInt32, schema.TypeInt64, schema.TypeEnum:
		if v == nil {
			return int64(0), nil
		}
		n, ok := asInt64(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return n, nil

	case schema.TypeFloat:
		if v == nil {
			return float64(0), nil
		}
		n, ok := asFloat64(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return n, nil

	case schema.TypeDecimal:
		if v == nil {
			return "0", nil
		}
		s, ok := formatDecimal(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return s, nil

	case schema.TypeString, schema.TypeUserDefined:
		if v == nil {
			return "", nil
		}
		s, ok := asString(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return s, nil

	case schema.TypeBinary:
		if v == nil {
			return []byte(nil), nil
		}
		b, ok := asBytes(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return b, nil

	case schema.TypeBool:
		if v == nil {
			return false, nil
		}
		b, ok := asBool(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return b, nil

	case schema.TypeDateTime:
		if v == nil {
			return time.Time{}, nil
		}
		t, err := decodeTime(f, v)
		if err != nil {
			return nil, err
		}
		return denormalizeKind(f, t), nil

	case schema.TypeTimeSpan:
		if v == nil {
			return time.Duration(0), nil
		}
		return decodeDuration(f, v)
	}

	return nil, fault.New(fault.Data, "codec.LocalValue",
		"field %q: unsupported data type %s", f.Name, f.Type)
}

func enumToInt64(f schema.FieldProperties, v any) (any, error) {
	if n, ok := asInt64(v); ok {
		return n, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), nil
	}
	return nil, convErr(f, v)
}

func convErr(f schema.FieldProperties, v any) error {
	return fault.New(fault.Data, "codec",
		"field %q: cannot represent %T as %s", f.Name, v, f.Type)
}
