package models

import "encoding/json"

// CloneValue returns a deep copy of v. Maps and slices of the generic shapes are
// copied recursively; any other non-scalar value is converted through JSON into
// those shapes so the copy shares no memory with v.
func CloneValue(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return v
	case map[string]any:
		return CloneValues(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = CloneValue(item)
		}

		return out
	}

	b, err := json.Marshal(v)
	if err != nil {
		return v
	}

	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}

	return out
}

// CloneValues deep-copies every value of m. A nil map stays nil.
func CloneValues(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}

	return out
}
