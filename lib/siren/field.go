package siren

import "encoding/json"

// DefaultFieldType is assumed when a field omits its input type.
const DefaultFieldType = "text"

// Option is one selectable choice of a radio, checkbox or select style
// field.
type Option struct {
	Title    string `json:"title,omitempty"`
	Value    any    `json:"value,omitempty"`
	Checked  bool   `json:"checked,omitempty"`
	Selected bool   `json:"selected,omitempty"`
}

// File is a file payload attached to a field for multipart submission.
// Files never appear in a parsed document; callers attach them before
// submitting an action.
type File struct {
	Name    string
	Content []byte
}

// Field represents one named input control inside an Action.
//
// Name is the only required attribute. A field whose document value is a
// list of option descriptors exposes the descriptors through Options and
// collapses Value to the first checked or selected option, defaulting to
// the empty string.
type Field struct {
	Name    string
	Class   []string
	Title   string
	Type    string
	Value   any
	Options []Option
	Checked bool
	Files   []File
}

// UnmarshalJSON decodes a field fragment, substituting defaults for any
// missing or malformed attribute. It never returns an error for valid
// JSON of the wrong shape.
func (f *Field) UnmarshalJSON(data []byte) error {
	*f = Field{Type: DefaultFieldType}
	obj := objectOf(data)
	if obj == nil {
		return nil
	}
	f.Name = stringOf(obj["name"])
	f.Class = stringsOf(obj["class"])
	f.Title = stringOf(obj["title"])
	if t := stringOf(obj["type"]); t != "" {
		f.Type = t
	}
	f.Checked = boolOf(obj["checked"])

	// A list-valued "value" is a set of option descriptors, not a scalar.
	if items := arrayOf(obj["value"]); items != nil {
		f.Options = decodeOptions(items)
	} else {
		f.Value = valueOf(obj["value"])
		if items := arrayOf(obj["options"]); items != nil {
			f.Options = decodeOptions(items)
		}
	}
	if f.Options != nil && isEmptyValue(f.Value) {
		f.Value = selectedValue(f.Options)
	}
	if f.Value == nil {
		f.Value = ""
	}
	return nil
}

// MarshalJSON emits the compact form of the field, omitting attributes
// equal to their defaults.
func (f Field) MarshalJSON() ([]byte, error) {
	out := struct {
		Name    string   `json:"name"`
		Class   []string `json:"class,omitempty"`
		Title   string   `json:"title,omitempty"`
		Type    string   `json:"type,omitempty"`
		Value   any      `json:"value,omitempty"`
		Options []Option `json:"options,omitempty"`
		Checked bool     `json:"checked,omitempty"`
	}{
		Name:    f.Name,
		Class:   f.Class,
		Title:   f.Title,
		Options: f.Options,
		Checked: f.Checked,
	}
	if f.Type != DefaultFieldType {
		out.Type = f.Type
	}
	if !isEmptyValue(f.Value) {
		out.Value = f.Value
	}
	return json.Marshal(out)
}

func decodeOptions(items []json.RawMessage) []Option {
	options := make([]Option, 0, len(items))
	for _, item := range items {
		obj := objectOf(item)
		if obj == nil {
			continue
		}
		opt := Option{
			Title:    stringOf(obj["title"]),
			Value:    valueOf(obj["value"]),
			Checked:  boolOf(obj["checked"]),
			Selected: boolOf(obj["selected"]),
		}
		if opt.Value == nil {
			opt.Value = ""
		}
		options = append(options, opt)
	}
	return options
}

// selectedValue returns the value of the first checked or selected
// option, defaulting to the empty string.
func selectedValue(options []Option) any {
	for _, opt := range options {
		if opt.Checked || opt.Selected {
			return opt.Value
		}
	}
	return ""
}

func isEmptyValue(v any) bool {
	return v == nil || v == ""
}
