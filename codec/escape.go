package codec

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"polystore/schema"
)

var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\x00", `\0`,
	`'`, `\'`,
	`"`, `\"`,
	"\b", `\b`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// EscapeString escapes the characters that break string literals: backslash,
// NUL, single and double quote, backspace, newline, carriage return and tab.
func EscapeString(s string) string {
	return stringEscaper.Replace(s)
}

// EscapeValue renders a field value as an engine-agnostic SQL literal. It is
// used only when an engine is driven without parameter binding.
func EscapeValue(f schema.FieldProperties, v any) (string, error) {
	dv, err := DatabaseValue(f, v)
	if err != nil {
		return "", err
	}
	return literal(dv), nil
}

func literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []byte:
		return "x'" + hex.EncodeToString(x) + "'"
	case time.Time:
		return "'" + x.Format(time.RFC3339Nano) + "'"
	case string:
		return "'" + EscapeString(x) + "'"
	default:
		if n, ok := asInt64(v); ok {
			return strconv.FormatInt(n, 10)
		}
		if s, ok := asString(v); ok {
			return "'" + EscapeString(s) + "'"
		}
		return "NULL"
	}
}
