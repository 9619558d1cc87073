package session

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"net"
	"reflect"
	"time"

	"github.com/google/uuid"
	"gopkg.in/inf.v0"
)

// timestampLayout renders timestamps without zone noise; values are
// normalized to UTC first.
const timestampLayout = "2006-01-02 15:04:05"

// Convert maps a driver-typed value to its generic representation:
// nil stays nil (the null marker), strings, bools and numbers keep a
// native Go type (integers normalize to int64, floats to float64),
// everything else degrades to a string. The mapping is total; an
// unknown type falls back to its default formatting rather than
// failing the row.
func Convert(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return val
	case bool:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case float32:
		return float64(val)
	case float64:
		return val
	case []byte:
		return "0x" + hex.EncodeToString(val)
	case time.Time:
		return val.UTC().Format(timestampLayout)
	case time.Duration:
		return val.String()
	case uuid.UUID:
		return val.String()
	case [16]byte:
		return uuid.UUID(val).String()
	case net.IP:
		return val.String()
	case *big.Int:
		if val == nil {
			return nil
		}
		return val.String()
	case *inf.Dec:
		if val == nil {
			return nil
		}
		return val.String()
	case fmt.Stringer:
		return val.String()
	default:
		return convertComposite(v)
	}
}

// convertComposite renders lists, sets, maps and tuples recursively.
// The driver unmarshals collections into concrete element types
// ([]int, map[string]string, [][]byte, ...), so the recursion goes
// through reflection rather than type switches. Anything else formats
// with the default verb.
func convertComposite(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Convert(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := Format(Convert(iter.Key().Interface()), "null")
			out[key] = Convert(iter.Value().Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return Convert(rv.Elem().Interface())
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Format renders a converted value for display. Null renders as the
// given marker so it stays distinguishable from an empty string.
func Format(v any, nullMarker string) string {
	switch val := v.(type) {
	case nil:
		return nullMarker
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int64:
		return fmt.Sprintf("%d", val)
	case float64:
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
