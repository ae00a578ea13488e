package storage

import (
	"fmt"
	"strconv"
	"strings"
)

// Valid keys are numbers, strings, and arrays of valid keys. Keys of
// different kinds order as numbers < strings < arrays; arrays compare
// element-wise, then by length.

// NormalizeKey validates a key and converts all numeric forms to float64 so
// that keys compare and encode consistently regardless of how they were
// decoded.
func NormalizeKey(key interface{}) (interface{}, error) {
	switch k := key.(type) {
	case string:
		return k, nil
	case []interface{}:
		normalized := make([]interface{}, len(k))
		for i, elem := range k {
			n, err := NormalizeKey(elem)
			if err != nil {
				return nil, err
			}
			normalized[i] = n
		}
		return normalized, nil
	default:
		if f, ok := ToFloat64(key); ok {
			return f, nil
		}
		return nil, fmt.Errorf("invalid key of type %T", key)
	}
}

// CompareKeys returns -1, 0, or 1 for the total order over valid keys.
// Both arguments must already be normalized.
func CompareKeys(a, b interface{}) int {
	ra, rb := keyRank(a), keyRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ka := a.(type) {
	case float64:
		kb := b.(float64)
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(ka, b.(string))
	case []interface{}:
		kb := b.([]interface{})
		for i := 0; i < len(ka) && i < len(kb); i++ {
			if c := CompareKeys(ka[i], kb[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(ka) < len(kb):
			return -1
		case len(ka) > len(kb):
			return 1
		default:
			return 0
		}
	}
	return 0
}

func keyRank(key interface{}) int {
	switch key.(type) {
	case float64:
		return 0
	case string:
		return 1
	default:
		return 2
	}
}

// encodeKey produces a canonical string form of a normalized key, used as
// the map key for record storage and index entries.
func encodeKey(key interface{}) string {
	switch k := key.(type) {
	case float64:
		return "n:" + strconv.FormatFloat(k, 'g', -1, 64)
	case string:
		return "s:" + strconv.Quote(k)
	case []interface{}:
		parts := make([]string, len(k))
		for i, elem := range k {
			parts[i] = encodeKey(elem)
		}
		return "a:[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprintf("?:%v", k)
	}
}

// ToFloat64 converts various numeric types to float64 for key normalization
func ToFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
