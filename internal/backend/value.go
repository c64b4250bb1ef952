package backend

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Type tags used by method descriptors.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
	TypeNull    = "null"
)

// TypeOf classifies a JSON-shaped value.
func TypeOf(value any) string {
	switch v := value.(type) {
	case nil:
		return TypeNull
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger
	case float32:
		return numberType(float64(v))
	case float64:
		return numberType(v)
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return TypeInteger
		}
		return TypeNumber
	case []any:
		return TypeArray
	case map[string]any, Params:
		return TypeObject
	default:
		return fmt.Sprintf("%T", value)
	}
}

func numberType(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return TypeInteger
	}
	return TypeNumber
}

// FormatArg renders a value as a single command-line argument. Strings pass
// through, whole numbers print without a fraction, arrays and objects become
// compact JSON.
func FormatArg(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case bool:
		return strconv.FormatBool(v), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case json.Number:
		return v.String(), nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode %s argument: %w", TypeOf(value), err)
	}
	return string(data), nil
}

// IsBlank reports whether a value counts as absent: nil or an all-space string.
func IsBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}
