package siren

import "encoding/json"

// Link describes a navigational relation to another resource, tagged by
// one or more relation strings. Rel and Href are required.
type Link struct {
	Rel   []string
	Href  string
	Class []string
	Type  string
	Title string
}

// UnmarshalJSON decodes a link fragment, substituting defaults for any
// missing or malformed attribute.
func (l *Link) UnmarshalJSON(data []byte) error {
	*l = Link{}
	obj := objectOf(data)
	if obj == nil {
		return nil
	}
	l.Rel = stringsOf(obj["rel"])
	l.Href = stringOf(obj["href"])
	l.Class = stringsOf(obj["class"])
	l.Type = stringOf(obj["type"])
	l.Title = stringOf(obj["title"])
	return nil
}

// MarshalJSON emits the compact form of the link.
func (l Link) MarshalJSON() ([]byte, error) {
	out := struct {
		Rel   []string `json:"rel"`
		Href  string   `json:"href"`
		Class []string `json:"class,omitempty"`
		Type  string   `json:"type,omitempty"`
		Title string   `json:"title,omitempty"`
	}{l.Rel, l.Href, l.Class, l.Type, l.Title}
	return json.Marshal(out)
}
