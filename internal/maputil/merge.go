// Package maputil holds helpers for the loosely typed maps decoded from YAML.
package maputil

import "sort"

// Merge returns a deep copy of base with overlay merged on top. Nested
// map[string]any values are merged recursively; any other overlay value
// replaces the base value.
func Merge(base, overlay map[string]any) map[string]any {
	out := Copy(base)
	if out == nil {
		out = make(map[string]any, len(overlay))
	}
	for k, v := range overlay {
		ov, ok := v.(map[string]any)
		if !ok {
			out[k] = copyValue(v)
			continue
		}
		if bv, ok := out[k].(map[string]any); ok {
			out[k] = Merge(bv, ov)
			continue
		}
		out[k] = Copy(ov)
	}
	return out
}

// Copy returns a deep copy of m. Nested maps and slices are copied; scalars are shared.
func Copy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Copy(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
