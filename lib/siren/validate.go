package siren

import "fmt"

// Violations maps an attribute name (or dotted path into a nested
// structure, e.g. "actions[0].fields[1].name") to the problems found on
// it. Validation is diagnostic only; a document with violations still
// parses and can still be used.
type Violations map[string][]string

// Empty reports whether no violations were collected.
func (v Violations) Empty() bool { return len(v) == 0 }

// Add records a problem on path, ignoring exact duplicates.
func (v Violations) Add(path, msg string) {
	for _, existing := range v[path] {
		if existing == msg {
			return
		}
	}
	v[path] = append(v[path], msg)
}

func (v Violations) merge(prefix string, other Violations) {
	for path, msgs := range other {
		for _, msg := range msgs {
			v.Add(prefix+path, msg)
		}
	}
}

const (
	msgRequired    = "Required."
	msgNonEmptyRel = "MUST be a non-empty array of strings."
)

// Validate reports structural problems with the field.
func (f *Field) Validate() Violations {
	v := Violations{}
	if f.Name == "" {
		v.Add("name", msgRequired)
	}
	return v
}

// Validate reports structural problems with the action and its fields.
func (a *Action) Validate() Violations {
	v := Violations{}
	if a.Name == "" {
		v.Add("name", msgRequired)
	}
	if a.Href == "" {
		v.Add("href", msgRequired)
	}
	for i := range a.Fields {
		v.merge(fmt.Sprintf("fields[%d].", i), a.Fields[i].Validate())
	}
	return v
}

// Validate reports structural problems with the link.
func (l *Link) Validate() Violations {
	v := Violations{}
	if len(l.Rel) == 0 {
		v.Add("rel", msgNonEmptyRel)
	}
	if l.Href == "" {
		v.Add("href", msgRequired)
	}
	return v
}

// Validate reports structural problems with the entity and everything
// nested in it. An embedded representation (a sub-entity parsed from a
// parent's entities array) must additionally carry a non-empty rel.
func (e *Entity) Validate() Violations {
	v := Violations{}
	if e.embedded && len(e.Rel) == 0 {
		v.Add("rel", msgNonEmptyRel)
	}
	for i := range e.Actions {
		v.merge(fmt.Sprintf("actions[%d].", i), e.Actions[i].Validate())
	}
	for i := range e.Links {
		v.merge(fmt.Sprintf("links[%d].", i), e.Links[i].Validate())
	}
	for i, item := range e.Items {
		prefix := fmt.Sprintf("entities[%d].", i)
		if item.Link != nil {
			v.merge(prefix, item.Link.Validate())
		} else if item.Entity != nil {
			v.merge(prefix, item.Entity.Validate())
		}
	}
	return v
}
