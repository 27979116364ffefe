package codec

import (
	"fmt"
	"sort"

	"github.com/stephenwright/shipwreck/lib/siren"
)

// FieldsFromValues flattens a nested value map into fields using bracket
// notation: {"a": {"b": 1}} becomes a field named "a[b]", and arrays
// become repeated index-bracketed names ("tags[0]", "tags[1]"). Map keys
// are visited in sorted order so the result is deterministic.
func FieldsFromValues(values map[string]any) []siren.Field {
	var fields []siren.Field
	for _, key := range sortedKeys(values) {
		fields = flatten(fields, key, values[key])
	}
	return fields
}

func flatten(fields []siren.Field, name string, value any) []siren.Field {
	switch v := value.(type) {
	case map[string]any:
		for _, key := range sortedKeys(v) {
			fields = flatten(fields, name+"["+key+"]", v[key])
		}
	case []any:
		for i, item := range v {
			fields = flatten(fields, fmt.Sprintf("%s[%d]", name, i), item)
		}
	default:
		fields = append(fields, siren.Field{Name: name, Type: siren.DefaultFieldType, Value: value})
	}
	return fields
}

// MergeFields overlays override fields onto an action's declared fields:
// an override matching a declared name replaces that field's value in
// place, anything else is appended. The declared order is preserved and
// neither input is mutated.
func MergeFields(declared, overrides []siren.Field) []siren.Field {
	merged := make([]siren.Field, len(declared))
	copy(merged, declared)
	for _, over := range overrides {
		replaced := false
		for i := range merged {
			if merged[i].Name == over.Name {
				merged[i].Value = over.Value
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, over)
		}
	}
	return merged
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
