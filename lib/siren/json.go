package siren

import "encoding/json"

// objectOf decodes a JSON fragment into its member map. Returns nil for
// anything that is not an object, so callers fall through to defaults.
func objectOf(data []byte) map[string]json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	return obj
}

// stringOf decodes a JSON string member, defaulting to "".
func stringOf(raw json.RawMessage) string {
	var s string
	if raw == nil || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// boolOf decodes a JSON boolean member, defaulting to false.
func boolOf(raw json.RawMessage) bool {
	var b bool
	if raw == nil || json.Unmarshal(raw, &b) != nil {
		return false
	}
	return b
}

// stringsOf decodes a JSON array of strings, keeping order and skipping
// members that are not strings.
func stringsOf(raw json.RawMessage) []string {
	var items []json.RawMessage
	if raw == nil || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// arrayOf decodes a JSON array member into its element fragments.
func arrayOf(raw json.RawMessage) []json.RawMessage {
	var items []json.RawMessage
	if raw == nil || json.Unmarshal(raw, &items) != nil {
		return nil
	}
	return items
}

// valueOf decodes an arbitrary scalar or composite member.
func valueOf(raw json.RawMessage) any {
	var v any
	if raw == nil || json.Unmarshal(raw, &v) != nil {
		return nil
	}
	return v
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
