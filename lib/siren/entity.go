package siren

import (
	"encoding/json"
	"strings"
)

// Entity is a Siren resource representation.
//
// All attributes are optional; a parsed empty document yields an Entity
// with empty lists and mappings. Rel is populated only on embedded
// representations (sub-entities included inline in a parent), where it is
// required. The originating JSON is retained verbatim and available via
// Raw for diagnostic display.
type Entity struct {
	Class      []string
	Properties map[string]any
	Title      string
	Rel        []string
	Links      []Link
	Actions    []Action
	Items      []SubItem

	raw      json.RawMessage
	embedded bool
}

// SubItem is one entry of an entity's "entities" array: either an
// embedded link (the fragment carried an href) or an embedded
// representation. Exactly one of Link and Entity is set.
type SubItem struct {
	Link   *Link
	Entity *Entity
}

// Query selects links and sub-entities by relation and/or class. A link
// or entity matches when its rel list contains Rel or its class list
// contains Class; empty query attributes match nothing.
type Query struct {
	Rel   string
	Class string
}

// Any is the common lookup matching s against either rel or class.
func Any(s string) Query { return Query{Rel: s, Class: s} }

func (q Query) matches(rel, class []string) bool {
	if q.Rel != "" && contains(rel, q.Rel) {
		return true
	}
	return q.Class != "" && contains(class, q.Class)
}

// Parse decodes a Siren document. The error reports invalid JSON syntax
// only; any valid JSON value decodes into an Entity, with defaults
// substituted per attribute.
func Parse(data []byte) (*Entity, error) {
	var e Entity
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UnmarshalJSON decodes an entity fragment, substituting defaults for
// any missing or malformed attribute and retaining the raw input.
func (e *Entity) UnmarshalJSON(data []byte) error {
	*e = Entity{raw: append(json.RawMessage(nil), data...)}
	obj := objectOf(data)
	if obj == nil {
		return nil
	}
	e.Class = stringsOf(obj["class"])
	e.Title = stringOf(obj["title"])
	e.Rel = stringsOf(obj["rel"])
	if props, ok := valueOf(obj["properties"]).(map[string]any); ok {
		e.Properties = props
	}
	for _, item := range arrayOf(obj["links"]) {
		var l Link
		_ = l.UnmarshalJSON(item)
		e.Links = append(e.Links, l)
	}
	for _, item := range arrayOf(obj["actions"]) {
		var a Action
		_ = a.UnmarshalJSON(item)
		e.Actions = append(e.Actions, a)
	}
	// Sub-entities with an href are embedded links, anything else is an
	// embedded representation.
	for _, item := range arrayOf(obj["entities"]) {
		if frag := objectOf(item); stringOf(frag["href"]) != "" {
			var l Link
			_ = l.UnmarshalJSON(item)
			e.Items = append(e.Items, SubItem{Link: &l})
			continue
		}
		var sub Entity
		_ = sub.UnmarshalJSON(item)
		sub.embedded = true
		e.Items = append(e.Items, SubItem{Entity: &sub})
	}
	return nil
}

// MarshalJSON emits the compact form of the entity, omitting attributes
// equal to their empty value. The output re-parses to an equivalent
// graph.
func (e Entity) MarshalJSON() ([]byte, error) {
	out := struct {
		Class      []string       `json:"class,omitempty"`
		Title      string         `json:"title,omitempty"`
		Rel        []string       `json:"rel,omitempty"`
		Properties map[string]any `json:"properties,omitempty"`
		Entities   []SubItem      `json:"entities,omitempty"`
		Links      []Link         `json:"links,omitempty"`
		Actions    []Action       `json:"actions,omitempty"`
	}{e.Class, e.Title, e.Rel, e.Properties, e.Items, e.Links, e.Actions}
	return json.Marshal(out)
}

// MarshalJSON emits the underlying link or entity.
func (s SubItem) MarshalJSON() ([]byte, error) {
	if s.Link != nil {
		return json.Marshal(s.Link)
	}
	return json.Marshal(s.Entity)
}

// UnmarshalJSON classifies the fragment by href presence.
func (s *SubItem) UnmarshalJSON(data []byte) error {
	*s = SubItem{}
	if frag := objectOf(data); stringOf(frag["href"]) != "" {
		var l Link
		_ = l.UnmarshalJSON(data)
		s.Link = &l
		return nil
	}
	var e Entity
	_ = e.UnmarshalJSON(data)
	e.embedded = true
	s.Entity = &e
	return nil
}

// Raw returns the JSON this entity was parsed from.
func (e *Entity) Raw() json.RawMessage { return e.raw }

// Action returns the named action, or nil.
func (e *Entity) Action(name string) *Action {
	for i := range e.Actions {
		if e.Actions[i].Name == name {
			return &e.Actions[i]
		}
	}
	return nil
}

// Link returns the first link matching q, or nil.
func (e *Entity) Link(q Query) *Link {
	for i := range e.Links {
		if q.matches(e.Links[i].Rel, e.Links[i].Class) {
			return &e.Links[i]
		}
	}
	return nil
}

// LinksBy returns all links matching q; the zero query returns every
// link.
func (e *Entity) LinksBy(q Query) []Link {
	if q == (Query{}) {
		return e.Links
	}
	var out []Link
	for _, l := range e.Links {
		if q.matches(l.Rel, l.Class) {
			out = append(out, l)
		}
	}
	return out
}

// SubEntity returns the first embedded representation matching q, or
// nil. Embedded links are not considered.
func (e *Entity) SubEntity(q Query) *Entity {
	for _, item := range e.Items {
		if item.Entity != nil && q.matches(item.Entity.Rel, item.Entity.Class) {
			return item.Entity
		}
	}
	return nil
}

// SubEntities returns all embedded representations matching q; the zero
// query returns every embedded representation.
func (e *Entity) SubEntities(q Query) []*Entity {
	var out []*Entity
	for _, item := range e.Items {
		if item.Entity == nil {
			continue
		}
		if q == (Query{}) || q.matches(item.Entity.Rel, item.Entity.Class) {
			out = append(out, item.Entity)
		}
	}
	return out
}

// Property resolves a possibly nested property using dot notation
// ("owner.address.city"). The second return reports whether the full
// path resolved.
func (e *Entity) Property(path string) (any, bool) {
	if path == "" || e.Properties == nil {
		return nil, false
	}
	var value any = e.Properties
	for _, key := range strings.Split(path, ".") {
		m, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		if value, ok = m[key]; !ok {
			return nil, false
		}
	}
	return value, true
}
