package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"polystore/fault"
	"polystore/schema"
)

const (
	ticksPerSecond = int64(10_000_000) // 100ns ticks
	unixEpochTicks = int64(621_355_968_000_000_000)

	humanLayout = "20060102150405"
)

// normalizeKind shifts t into the zone the field is configured for before
// encoding.
func normalizeKind(f schema.FieldProperties, t time.Time) time.Time {
	switch f.Kind {
	case schema.KindUTC:
		return t.UTC()
	case schema.KindLocal:
		return t.Local()
	default:
		return t
	}
}

// denormalizeKind presents a decoded time in the configured zone.
func denormalizeKind(f schema.FieldProperties, t time.Time) time.Time {
	switch f.Kind {
	case schema.KindUTC:
		return t.UTC()
	case schema.KindLocal:
		return t.Local()
	default:
		return t
	}
}

func kindLocation(f schema.FieldProperties) *time.Location {
	if f.Kind == schema.KindLocal {
		return time.Local
	}
	return time.UTC
}

func encodeTime(f schema.FieldProperties, t time.Time) (any, error) {
	switch f.DateTimeType {
	case schema.DateTimeNative:
		return t, nil
	case schema.DateTimeBigIntTicks:
		return timeToTicks(t), nil
	case schema.DateTimeBigIntHuman:
		n, err := strconv.ParseInt(t.Format(humanLayout), 10, 64)
		if err != nil {
			return nil, fault.Wrap(fault.Data, "codec.encodeTime", err)
		}
		return n, nil
	case schema.DateTimeDecimalSeconds:
		return ticksToDecimalSeconds(timeToTicks(t) - unixEpochTicks), nil
	case schema.DateTimeDoubleSeconds:
		return float64(t.UnixNano()) / float64(time.Second), nil
	}
	return nil, fault.New(fault.Data, "codec.encodeTime",
		"field %q: unsupported date-time encoding %s", f.Name, f.DateTimeType)
}

func decodeTime(f schema.FieldProperties, v any) (time.Time, error) {
	switch f.DateTimeType {
	case schema.DateTimeNative:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case string:
			return parseNativeTime(f, t)
		case []byte:
			return parseNativeTime(f, string(t))
		}
		return time.Time{}, convTimeErr(f, v, nil)

	case schema.DateTimeBigIntTicks:
		n, ok := asInt64(v)
		if !ok {
			return time.Time{}, convTimeErr(f, v, nil)
		}
		return ticksToTime(n), nil

	case schema.DateTimeBigIntHuman:
		n, ok := asInt64(v)
		if !ok {
			return time.Time{}, convTimeErr(f, v, nil)
		}
		t, err := time.ParseInLocation(humanLayout, fmt.Sprintf("%014d", n), kindLocation(f))
		if err != nil {
			return time.Time{}, convTimeErr(f, v, err)
		}
		return t, nil

	case schema.DateTimeDecimalSeconds:
		s, ok := asString(v)
		if !ok {
			if fv, fok := asFloat64(v); fok {
				s, ok = strconv.FormatFloat(fv, 'f', -1, 64), true
			}
		}
		if !ok {
			return time.Time{}, convTimeErr(f, v, nil)
		}
		ticks, err := decimalSecondsToTicks(s)
		if err != nil {
			return time.Time{}, convTimeErr(f, v, err)
		}
		return ticksToTime(ticks + unixEpochTicks), nil

	case schema.DateTimeDoubleSeconds:
		fv, ok := asFloat64(v)
		if !ok {
			return time.Time{}, convTimeErr(f, v, nil)
		}
		sec := int64(fv)
		ns := int64((fv - float64(sec)) * float64(time.Second))
		return time.Unix(sec, ns).UTC(), nil
	}

	return time.Time{}, fault.New(fault.Data, "codec.decodeTime",
		"field %q: unsupported date-time encoding %s", f.Name, f.DateTimeType)
}

func parseNativeTime(f schema.FieldProperties, s string) (time.Time, error) {
	// Engines hand native timestamps back in a handful of textual shapes.
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, kindLocation(f)); err == nil {
			return t, nil
		}
	}
	_, err := time.Parse(time.RFC3339Nano, s)
	return time.Time{}, convTimeErr(f, s, err)
}

func convTimeErr(f schema.FieldProperties, v any, cause error) error {
	if cause != nil {
		return fault.Wrap(fault.Data, "codec",
			fmt.Errorf("field %q: cannot parse %v as %s date-time: %w", f.Name, v, f.DateTimeType, cause))
	}
	return fault.New(fault.Data, "codec",
		"field %q: cannot parse %T as %s date-time", f.Name, v, f.DateTimeType)
}

func timeToTicks(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()*ticksPerSecond + int64(t.Nanosecond())/100 + unixEpochTicks
}

func ticksToTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	n -= unixEpochTicks
	sec := n / ticksPerSecond
	rem := n % ticksPerSecond
	if rem < 0 {
		sec--
		rem += ticksPerSecond
	}
	return time.Unix(sec, rem*100).UTC()
}

// ticksToDecimalSeconds renders a tick count relative to the Unix epoch as a
// decimal seconds string with full tick precision.
func ticksToDecimalSeconds(ticks int64) string {
	neg := ticks < 0
	if neg {
		ticks = -ticks
	}
	s := fmt.Sprintf("%d.%07d", ticks/ticksPerSecond, ticks%ticksPerSecond)
	if neg {
		s = "-" + s
	}
	return s
}

func decimalSecondsToTicks(s string) (int64, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	sec, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, err
	}
	ticks := sec * ticksPerSecond
	if fracPart != "" {
		// Pad or truncate the fraction to tick precision.
		if len(fracPart) > 7 {
			fracPart = fracPart[:7]
		}
		for len(fracPart) < 7 {
			fracPart += "0"
		}
		frac, err := strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, err
		}
		ticks += frac
	}
	if neg {
		ticks = -ticks
	}
	return ticks, nil
}

func encodeDuration(f schema.FieldProperties, d time.Duration) any {
	switch f.DateTimeType {
	case schema.DateTimeBigIntTicks, schema.DateTimeBigIntHuman:
		return int64(d) / 100
	case schema.DateTimeDecimalSeconds:
		return ticksToDecimalSeconds(int64(d) / 100)
	case schema.DateTimeDoubleSeconds:
		return d.Seconds()
	default:
		// Native spans travel as integer nanoseconds.
		return int64(d)
	}
}

func decodeDuration(f schema.FieldProperties, v any) (any, error) {
	switch f.DateTimeType {
	case schema.DateTimeBigIntTicks, schema.DateTimeBigIntHuman:
		n, ok := asInt64(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return time.Duration(n * 100), nil
	case schema.DateTimeDecimalSeconds:
		s, ok := asString(v)
		if !ok {
			return nil, convErr(f, v)
		}
		ticks, err := decimalSecondsToTicks(s)
		if err != nil {
			return nil, fault.Wrap(fault.Data, "codec", err)
		}
		return time.Duration(ticks * 100), nil
	case schema.DateTimeDoubleSeconds:
		fv, ok := asFloat64(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return time.Duration(fv * float64(time.Second)), nil
	default:
		n, ok := asInt64(v)
		if !ok {
			return nil, convErr(f, v)
		}
		return time.Duration(n), nil
	}
}
