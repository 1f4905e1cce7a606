package scoring

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FormState is the raw value map of a score-entry form.
type FormState map[string]any

func (f FormState) Float(key string) (float64, bool) {
	if f == nil {
		return 0, false
	}
	return toFloat(f[key])
}

func (f FormState) Int(key string) (int, bool) {
	v, ok := f.Float(key)
	if !ok {
		return 0, false
	}
	return int(math.Round(v)), true
}

func (f FormState) String(key string) string {
	if f == nil {
		return ""
	}
	switch v := f[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// List returns the entries of an array field as maps, skipping non-objects.
func (f FormState) List(key string) []FormState {
	if f == nil {
		return nil
	}
	var out []FormState
	switch items := f[key].(type) {
	case []FormState:
		return items
	case []map[string]any:
		for _, it := range items {
			out = append(out, FormState(it))
		}
	case []any:
		for _, it := range items {
			switch m := it.(type) {
			case map[string]any:
				out = append(out, FormState(m))
			case FormState:
				out = append(out, m)
			default:
				out = append(out, FormState{"value": it})
			}
		}
	}
	return out
}

// Ints returns an array field of numbers; invalid entries become zero.
func (f FormState) Ints(key string) []int {
	if f == nil {
		return nil
	}
	var out []int
	switch items := f[key].(type) {
	case []int:
		return append(out, items...)
	case []float64:
		for _, v := range items {
			out = append(out, int(math.Round(v)))
		}
	case []any:
		for _, it := range items {
			if m, ok := it.(map[string]any); ok {
				it = m["score"]
			}
			v, _ := toFloat(it)
			out = append(out, int(math.Round(v)))
		}
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", "."))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	case bool:
		return 0, false
	}
	return 0, false
}

// clampInt applies the invalid-to-zero policy for bounded integer input.
func clampInt(v float64, min, max int) int {
	n := int(math.Round(v))
	if n < min || (max >= min && n > max) {
		return 0
	}
	return n
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
