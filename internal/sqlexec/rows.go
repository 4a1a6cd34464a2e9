package sqlexec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
)

// Int64 converts a numeric column value. The second result is false for
// NULL or a value that is not a whole number.
func Int64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case float32:
		return Int64(float64(n))
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case pgtype.Numeric:
		i, err := n.Int64Value()
		return i.Int64, err == nil && i.Valid
	default:
		return 0, false
	}
}

// Uint32 converts an oid column value.
func Uint32(v any) (uint32, bool) {
	i, ok := Int64(v)
	if !ok || i < 0 || i > math.MaxUint32 {
		return 0, false
	}
	return uint32(i), true
}

// String converts a text column value; NULL becomes "".
func String(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}

// DecodeJSON decodes a json or jsonb column into dst. pgx returns jsonb
// already unmarshaled into maps and slices; text and bytea forms are
// accepted too.
func DecodeJSON(v any, dst any) error {
	var raw []byte
	switch j := v.(type) {
	case nil:
		return nil
	case []byte:
		raw = j
	case string:
		raw = []byte(j)
	case json.RawMessage:
		raw = j
	default:
		b, err := json.Marshal(j)
		if err != nil {
			return fmt.Errorf("re-encode json column: %w", err)
		}
		raw = b
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}
