package forms

import (
	"sort"
	"strconv"
	"strings"
)

// Values maps field names to their current value. A value is a string, a
// float64 or a []string. Absent keys read as empty.
type Values map[string]any

// Normalize converts a raw value (from JSON, msgpack or Go code) into one
// of the shapes Values holds.
func Normalize(value any) any {
	switch v := value.(type) {
	case nil:
		return ""
	case string, float64:
		return v
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, stringOf(Normalize(item)))
		}
		return out
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case float32:
		return float64(v)
	default:
		return ""
	}
}

// Set stores a normalized value.
func (v Values) Set(name string, value any) {
	v[name] = Normalize(value)
}

// String returns the value rendered as text. Lists are joined with ", ".
func (v Values) String(name string) string {
	return stringOf(v[name])
}

// Float returns the numeric value of a field. Numeric strings are parsed.
func (v Values) Float(name string) (float64, bool) {
	return toFloat64(v[name])
}

// Strings returns a list value. A plain string is split on newlines.
func (v Values) Strings(name string) []string {
	switch val := v[name].(type) {
	case []string:
		return val
	case string:
		return SplitLines(val)
	}
	return nil
}

// IsEmpty reports whether the field has no meaningful value.
func (v Values) IsEmpty(name string) bool {
	return isEmpty(v[name])
}

// Clone returns a deep copy.
func (v Values) Clone() Values {
	if v == nil {
		return Values{}
	}
	out := make(Values, len(v))
	for k, val := range v {
		if list, ok := val.([]string); ok {
			cp := make([]string, len(list))
			copy(cp, list)
			out[k] = cp
			continue
		}
		out[k] = val
	}
	return out
}

// Keys returns the field names in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge overwrites fields in v with the fields of other.
func (v Values) Merge(other Values) {
	for k, val := range other.Clone() {
		v[k] = val
	}
}

func stringOf(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []string:
		return strings.Join(v, ", ")
	default:
		return stringOf(Normalize(v))
	}
}

// SplitLines splits multi-line input into trimmed, non-empty entries.
func SplitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// isEmpty checks if a value is considered empty.
func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	}
	return false
}
