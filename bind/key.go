package bind

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"polystore/fault"
	"polystore/schema"
)

// representative returns a default value in the identifier domain of t,
// chosen to expose narrowing or parse loss when round-tripped through a
// key type.
func representative(t schema.DataType) any {
	switch t {
	case schema.TypeInt8:
		return int64(math.MaxInt8)
	case schema.TypeInt16:
		return int64(math.MaxInt16)
	case schema.TypeInt32:
		return int64(math.MaxInt32)
	case schema.TypeInt64, schema.TypeEnum:
		return int64(math.MaxInt64)
	case schema.TypeFloat:
		return float64(1.5)
	case schema.TypeDecimal:
		return "12345.6789"
	case schema.TypeString:
		// Deliberately non-numeric so numeric key types fail the check.
		return "record-key"
	case schema.TypeUserDefined:
		return "user-defined-key"
	case schema.TypeBinary:
		return []byte{0x01, 0x02, 0x03}
	case schema.TypeBool:
		return true
	case schema.TypeDateTime:
		return time.Date(2001, 2, 3, 4, 5, 6, 0, time.UTC)
	case schema.TypeTimeSpan:
		return 90 * time.Minute
	default:
		return int64(0)
	}
}

// toKey converts an identifier-domain value into K. Conversions are allowed
// to be lossy; the bind-time round-trip check catches the loss.
func toKey[K comparable](v any) (K, error) {
	var k K
	kv := reflect.ValueOf(&k).Elem()
	sv := reflect.ValueOf(v)

	if v == nil {
		return k, nil
	}
	if sv.Type().AssignableTo(kv.Type()) {
		kv.Set(sv)
		return k, nil
	}

	switch kv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if s, ok := v.(string); ok {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return k, fault.Wrap(fault.Type, "bind.toKey", err)
			}
			kv.SetInt(n)
			return k, nil
		}
	case reflect.String:
		if s, ok := v.(fmt.Stringer); ok {
			kv.SetString(s.String())
			return k, nil
		}
		if b, ok := v.([]byte); ok {
			kv.SetString(string(b))
			return k, nil
		}
		if n, ok := v.(int64); ok {
			kv.SetString(strconv.FormatInt(n, 10))
			return k, nil
		}
	}

	if sv.Type().ConvertibleTo(kv.Type()) {
		kv.Set(sv.Convert(kv.Type()))
		return k, nil
	}
	return k, fault.New(fault.Type, "bind.toKey",
		"cannot convert %T to key type %s", v, kv.Type())
}

// fromKey converts a key back into the identifier domain of t.
func fromKey[K comparable](k K, t schema.DataType) (any, error) {
	kv := reflect.ValueOf(k)

	switch {
	case t.Integer() || t == schema.TypeEnum:
		switch kv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return kv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return int64(kv.Uint()), nil
		case reflect.String:
			n, err := strconv.ParseInt(kv.String(), 10, 64)
			if err != nil {
				return nil, fault.Wrap(fault.Type, "bind.fromKey", err)
			}
			return n, nil
		case reflect.Float32, reflect.Float64:
			return int64(kv.Float()), nil
		}

	case t == schema.TypeString || t == schema.TypeUserDefined || t == schema.TypeDecimal:
		switch kv.Kind() {
		case reflect.String:
			return kv.String(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return strconv.FormatInt(kv.Int(), 10), nil
		case reflect.Float32, reflect.Float64:
			return strconv.FormatFloat(kv.Float(), 'f', -1, 64), nil
		}

	case t == schema.TypeFloat:
		switch kv.Kind() {
		case reflect.Float32, reflect.Float64:
			return kv.Float(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return float64(kv.Int()), nil
		}

	case t == schema.TypeBinary:
		if kv.Kind() == reflect.String {
			return []byte(kv.String()), nil
		}

	case t == schema.TypeBool:
		if b, ok := any(k).(bool); ok {
			return b, nil
		}

	case t == schema.TypeDateTime:
		if tv, ok := any(k).(time.Time); ok {
			return tv, nil
		}

	case t == schema.TypeTimeSpan:
		if d, ok := any(k).(time.Duration); ok {
			return d, nil
		}
	}

	return nil, fault.New(fault.Type, "bind.fromKey",
		"cannot convert key type %T back to %s", k, t)
}

// equalDomain compares two identifier-domain values.
func equalDomain(a, b any) bool {
	if ab, ok := a.([]byte); ok {
		bb, ok := b.([]byte)
		return ok && bytes.Equal(ab, bb)
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}
