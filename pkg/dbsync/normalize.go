package dbsync

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// isoMillis is the canonical text form of every timestamp before comparison.
const isoMillis = "2006-01-02T15:04:05.000Z"

// Normalize maps a column value to its canonical comparison form. Nil stays nil, text is
// trimmed, timestamps become UTC ISO strings, floats become decimal strings and integers
// widen to int64. Normalize(Normalize(v)) == Normalize(v).
func Normalize(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return strings.TrimSpace(x)
	case []byte:
		return strings.TrimSpace(string(x))
	case time.Time:
		return x.UTC().Format(isoMillis)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(isoMillis)
	case *string:
		if x == nil {
			return nil
		}
		return strings.TrimSpace(*x)
	case float64:
		return decimal.NewFromFloat(x).String()
	case float32:
		return decimal.NewFromFloat32(x).String()
	case decimal.Decimal:
		return x.String()
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint:
		if uint64(x) <= math.MaxInt64 {
			return int64(x)
		}
		return x
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return x
	default:
		return v
	}
}

// valuesEqual compares two column values after normalization.
func valuesEqual(a, b interface{}) bool {
	return reflect.DeepEqual(Normalize(a), Normalize(b))
}

// recordKey is the lookup key of a primary key value.
func recordKey(v interface{}) string {
	n := Normalize(v)
	if n == nil {
		return ""
	}
	return fmt.Sprint(n)
}
