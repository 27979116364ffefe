package siren

import "encoding/json"

// Defaults substituted when an action omits the attribute.
const (
	DefaultMethod     = "GET"
	DefaultActionType = "application/x-www-form-urlencoded;charset=UTF-8"
)

// Action describes an available state transition: a named, possibly
// parameterized HTTP operation against a resource.
//
// Name and Href are required; Method defaults to GET and Type to the
// urlencoded form media type. Actions are structurally immutable after
// parsing, but field values may be merged over before submission.
type Action struct {
	Name   string
	Href   string
	Class  []string
	Method string
	Title  string
	Type   string
	Fields []Field
}

// NewAction builds the bare GET action used to navigate to an href.
func NewAction(href string) *Action {
	return &Action{Href: href, Method: DefaultMethod, Type: DefaultActionType}
}

// Field returns the named field, or nil.
func (a *Action) Field(name string) *Field {
	for i := range a.Fields {
		if a.Fields[i].Name == name {
			return &a.Fields[i]
		}
	}
	return nil
}

// UnmarshalJSON decodes an action fragment, substituting defaults for
// any missing or malformed attribute.
func (a *Action) UnmarshalJSON(data []byte) error {
	*a = Action{Method: DefaultMethod, Type: DefaultActionType}
	obj := objectOf(data)
	if obj == nil {
		return nil
	}
	a.Name = stringOf(obj["name"])
	a.Href = stringOf(obj["href"])
	a.Class = stringsOf(obj["class"])
	a.Title = stringOf(obj["title"])
	if m := stringOf(obj["method"]); m != "" {
		a.Method = m
	}
	if t := stringOf(obj["type"]); t != "" {
		a.Type = t
	}
	for _, item := range arrayOf(obj["fields"]) {
		var f Field
		_ = f.UnmarshalJSON(item)
		a.Fields = append(a.Fields, f)
	}
	return nil
}

// MarshalJSON emits the compact form of the action, omitting attributes
// equal to their defaults.
func (a Action) MarshalJSON() ([]byte, error) {
	out := struct {
		Name   string   `json:"name"`
		Href   string   `json:"href"`
		Class  []string `json:"class,omitempty"`
		Method string   `json:"method,omitempty"`
		Title  string   `json:"title,omitempty"`
		Type   string   `json:"type,omitempty"`
		Fields []Field  `json:"fields,omitempty"`
	}{
		Name:   a.Name,
		Href:   a.Href,
		Class:  a.Class,
		Title:  a.Title,
		Fields: a.Fields,
	}
	if a.Method != DefaultMethod {
		out.Method = a.Method
	}
	if a.Type != DefaultActionType {
		out.Type = a.Type
	}
	return json.Marshal(out)
}
