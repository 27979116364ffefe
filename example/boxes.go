package main

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stephenwright/shipwreck/lib/siren"
)

type item struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type box struct {
	Label       string
	Description string
	Public      bool
	Material    string
	Level       string
	Colour      string
	Created     time.Time
	Updated     time.Time
	Items       []item
}

type boxStore struct {
	mu    sync.Mutex
	base  string
	boxes map[int]*box
}

func newBoxStore(base string) *boxStore {
	created, _ := time.Parse(time.RFC3339, "2018-09-23T16:32:05Z")
	return &boxStore{
		base: base,
		boxes: map[int]*box{
			1: {
				Label:       "My box of stuff",
				Description: "This is a box of stuff.\nIt contains a lot of things.",
				Public:      true,
				Level:       "empty",
				Colour:      "red",
				Created:     created,
				Updated:     created,
				Items: []item{
					{Name: "hammer", Description: "For hammering."},
				},
			},
			2: {
				Label:   "Another box",
				Public:  false,
				Level:   "full",
				Colour:  "blue",
				Created: created,
				Updated: created,
			},
		},
	}
}

func (s *boxStore) href(format string, args ...any) string {
	return s.base + fmt.Sprintf(format, args...)
}

func (s *boxStore) index(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entity := &siren.Entity{
		Class: []string{"home"},
		Title: "Box service",
		Links: []siren.Link{
			{Rel: []string{"self"}, Href: s.href("/")},
		},
	}
	for id := range s.boxes {
		entity.Items = append(entity.Items, siren.SubItem{Link: &siren.Link{
			Rel:  []string{"item"},
			Href: s.href("/boxes/%d", id),
		}})
	}
	return respond(c, http.StatusOK, entity)
}

func (s *boxStore) show(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, b := s.find(c)
	if b == nil {
		return notFound(c)
	}
	return respond(c, http.StatusOK, s.entity(id, b))
}

func (s *boxStore) items(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, b := s.find(c)
	if b == nil {
		return notFound(c)
	}
	entity := &siren.Entity{
		Class: []string{"collection", "items"},
		Title: "Items in " + b.Label,
		Properties: map[string]any{
			"count": len(b.Items),
		},
		Links: []siren.Link{
			{Rel: []string{"self"}, Href: s.href("/boxes/%d/items", id)},
			{Rel: []string{"up"}, Href: s.href("/boxes/%d", id)},
		},
	}
	for _, it := range b.Items {
		entity.Items = append(entity.Items, siren.SubItem{Entity: &siren.Entity{
			Class:      []string{"item"},
			Rel:        []string{"item"},
			Title:      it.Name,
			Properties: map[string]any{"name": it.Name, "description": it.Description},
		}})
	}
	return respond(c, http.StatusOK, entity)
}

// update handles both actions on a box, dispatched by which form fields
// arrive.
func (s *boxStore) update(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, b := s.find(c)
	if b == nil {
		return notFound(c)
	}
	if name := c.FormValue("name"); name != "" {
		b.Items = append(b.Items, item{Name: name, Description: c.FormValue("description")})
	} else {
		if label := c.FormValue("label"); label != "" {
			b.Label = label
		}
		b.Public = c.FormValue("public") != ""
		if v := c.FormValue("description"); v != "" {
			b.Description = v
		}
		if v := c.FormValue("material"); v != "" {
			b.Material = v
		}
		if v := c.FormValue("level"); v != "" {
			b.Level = v
		}
		if v := c.FormValue("colour"); v != "" {
			b.Colour = v
		}
	}
	b.Updated = time.Now().UTC()
	return respond(c, http.StatusOK, s.entity(id, b))
}

func (s *boxStore) find(c echo.Context) (int, *box) {
	var id int
	if _, err := fmt.Sscanf(c.Param("id"), "%d", &id); err != nil {
		return 0, nil
	}
	return id, s.boxes[id]
}

func (s *boxStore) entity(id int, b *box) *siren.Entity {
	self := s.href("/boxes/%d", id)
	entity := &siren.Entity{
		Class: []string{"box"},
		Title: "A box to put items into",
		Properties: map[string]any{
			"label":       b.Label,
			"description": b.Description,
			"public":      b.Public,
			"material":    b.Material,
			"level":       b.Level,
			"colour":      b.Colour,
			"created":     b.Created.Format(time.RFC3339),
			"updated":     b.Updated.Format(time.RFC3339),
			"meta": map[string]any{
				"count": len(b.Items),
			},
		},
		Items: []siren.SubItem{
			{Link: &siren.Link{
				Rel:  []string{"http://example.com/rel/box-items"},
				Href: s.href("/boxes/%d/items", id),
			}},
			{Entity: &siren.Entity{
				Class:      []string{"user"},
				Rel:        []string{"http://example.com/rel/box-owner"},
				Properties: map[string]any{"name": "Chester Tester", "id": "u123"},
				Links: []siren.Link{
					{Rel: []string{"self"}, Href: s.href("/users/1")},
				},
			}},
		},
		Actions: []siren.Action{
			{
				Name:   "add-item",
				Title:  "Add an Item",
				Method: "POST",
				Href:   self,
				Type:   siren.DefaultActionType,
				Fields: []siren.Field{
					{Name: "name", Type: "text"},
					{Name: "description", Type: "text", Class: []string{"multiline"}},
				},
			},
			{
				Name:   "update-box",
				Title:  "Update Box",
				Method: "POST",
				Href:   self,
				Type:   siren.DefaultActionType,
				Fields: []siren.Field{
					{Name: "label", Title: "Label", Type: "text", Value: b.Label},
					{Name: "public", Title: "Public", Type: "checkbox", Checked: b.Public},
					{Name: "description", Title: "Description", Type: "text", Class: []string{"multiline"}, Value: b.Description},
					{Name: "material", Title: "Material", Type: "text", Value: b.Material, Options: []siren.Option{
						{Value: "cardboard"}, {Value: "wood"}, {Value: "metal"},
					}},
					{Name: "level", Title: "Level", Type: "radio", Options: []siren.Option{
						{Title: "Full", Value: "full", Checked: b.Level == "full"},
						{Title: "Half", Value: "half", Checked: b.Level == "half"},
						{Title: "Empty", Value: "empty", Checked: b.Level == "empty"},
					}},
					{Name: "colour", Title: "Colour", Type: "select", Value: b.Colour, Options: []siren.Option{
						{Value: "blue"}, {Value: "green"}, {Value: "red"}, {Value: "purple"},
					}},
				},
			},
		},
		Links: []siren.Link{
			{Rel: []string{"self"}, Href: self},
			{Rel: []string{"next"}, Href: s.href("/boxes/%d", id%2+1)},
		},
	}
	return entity
}
