// Package safe provides checked coercions for JSON-decoded scalar values.
package safe

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Int64 converts a JSON-decoded scalar to int64 with range validation.
// Fractional floats are rejected rather than truncated.
func Int64(v any) (int64, error) {
	switch value := v.(type) {
	case int:
		return int64(value), nil
	case int32:
		return int64(value), nil
	case int64:
		return value, nil
	case uint64:
		if value > math.MaxInt64 {
			return 0, fmt.Errorf("value %d out of int64 range", value)
		}
		return int64(value), nil
	case float64:
		if value != math.Trunc(value) {
			return 0, fmt.Errorf("value %v is not integral", value)
		}
		if value < math.MinInt64 || value >= math.MaxInt64 {
			return 0, fmt.Errorf("value %v out of int64 range", value)
		}
		return int64(value), nil
	case json.Number:
		return strconv.ParseInt(value.String(), 10, 64)
	case string:
		return strconv.ParseInt(value, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// Decimal converts a JSON-decoded scalar to a fixed-precision decimal.
func Decimal(v any) (decimal.Decimal, error) {
	switch value := v.(type) {
	case float64:
		return decimal.NewFromFloat(value), nil
	case int:
		return decimal.NewFromInt(int64(value)), nil
	case int64:
		return decimal.NewFromInt(value), nil
	case json.Number:
		return decimal.NewFromString(value.String())
	case string:
		return decimal.NewFromString(value)
	case decimal.Decimal:
		return value, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unsupported type %T", v)
	}
}
