package shipwreck

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"

	"github.com/stephenwright/shipwreck/lib/siren"
)

// Anchor renders a fragment link for in-browser navigation.
func Anchor(href, text string) string {
	return fmt.Sprintf(`<a href="#%s">%s</a>`, html.EscapeString(href), html.EscapeString(text))
}

// CodeBlock renders a value as pretty-printed JSON inside a code block.
func CodeBlock(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		data = []byte("{}")
	}
	return `<pre><code>` + html.EscapeString(string(data)) + `</code></pre>`
}

// LinkAnchor renders a link as its rels plus a titled anchor.
func LinkAnchor(link siren.Link) string {
	anchors := make([]string, len(link.Rel))
	for i, rel := range link.Rel {
		anchors[i] = Anchor(link.Href, rel)
	}
	title := link.Title
	if title == "" {
		title = link.Href
	}
	return `[ ` + strings.Join(anchors, ", ") + ` ] ` + Anchor(link.Href, title)
}

// FieldInput renders a single form control. Hidden fields get no label
// wrapper.
func FieldInput(field siren.Field) string {
	typ := field.Type
	if typ == "" {
		typ = siren.DefaultFieldType
	}
	if len(field.Options) > 0 {
		var sb strings.Builder
		sb.WriteString(`<div class="form-field"><label>`)
		sb.WriteString(html.EscapeString(field.Name))
		sb.WriteString(`</label><select name="`)
		sb.WriteString(html.EscapeString(field.Name))
		sb.WriteString(`">`)
		for _, opt := range field.Options {
			sb.WriteString(`<option value="`)
			sb.WriteString(html.EscapeString(stringValue(opt.Value)))
			sb.WriteString(`"`)
			if opt.Checked || opt.Selected {
				sb.WriteString(` selected`)
			}
			sb.WriteString(`>`)
			title := opt.Title
			if title == "" {
				title = stringValue(opt.Value)
			}
			sb.WriteString(html.EscapeString(title))
			sb.WriteString(`</option>`)
		}
		sb.WriteString(`</select></div>`)
		return sb.String()
	}
	input := fmt.Sprintf(`<input type="%s" value="%s" name="%s">`,
		html.EscapeString(typ),
		html.EscapeString(stringValue(field.Value)),
		html.EscapeString(field.Name))
	if typ == "hidden" {
		return input
	}
	return `<div class="form-field"><label>` + html.EscapeString(field.Name) + `</label>` + input + `</div>`
}

// ActionForm renders an action as a form, with the method and resolved
// href echoed below the submit button.
func ActionForm(action siren.Action) string {
	method := action.Method
	if method == "" {
		method = siren.DefaultMethod
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<form name="%s" type="%s" action="%s" method="%s">`,
		html.EscapeString(action.Name),
		html.EscapeString(action.Type),
		html.EscapeString(action.Href),
		html.EscapeString(method)))
	sb.WriteString(`<h3>` + html.EscapeString(action.Name) + `</h3>`)
	sb.WriteString(`<div class="form-fields">`)
	for _, field := range action.Fields {
		sb.WriteString(FieldInput(field))
	}
	sb.WriteString(`</div>`)
	sb.WriteString(`<input type="submit" value="submit">`)
	sb.WriteString(`<p class="entity-action-href">` + html.EscapeString(method) + ` ` + html.EscapeString(action.Href) + `</p>`)
	sb.WriteString(`</form>`)
	return sb.String()
}

// EntityCard renders an embedded entity as a card: rels and class in
// the head, links, properties and actions in the body.
func EntityCard(entity *siren.Entity) string {
	var sb strings.Builder
	sb.WriteString(`<div class="card">`)
	sb.WriteString(`<div class="head">`)
	sb.WriteString(`<div><label>class:</label> [ ` + html.EscapeString(strings.Join(entity.Class, ", ")) + ` ]</div>`)
	sb.WriteString(`<div><label>rel:</label> [ ` + html.EscapeString(strings.Join(entity.Rel, ", ")) + ` ]</div>`)
	sb.WriteString(`</div><div class="body">`)
	sb.WriteString(`<div><label>title:</label> ` + html.EscapeString(entity.Title) + `</div>`)
	if len(entity.Links) > 0 {
		sb.WriteString(`<label>links:</label><ul>`)
		for _, link := range entity.Links {
			sb.WriteString(`<li>` + LinkAnchor(link) + `</li>`)
		}
		sb.WriteString(`</ul>`)
	}
	if len(entity.Properties) > 0 {
		sb.WriteString(`<div class="entity-properties"><label>properties:</label>`)
		sb.WriteString(CodeBlock(entity.Properties))
		sb.WriteString(`</div>`)
	}
	if len(entity.Actions) > 0 {
		sb.WriteString(`<div class="entity-actions"><label>actions:</label>`)
		for _, action := range entity.Actions {
			sb.WriteString(ActionForm(action))
		}
		sb.WriteString(`</div>`)
	}
	sb.WriteString(`</div></div>`)
	return sb.String()
}

// itemCard renders a sub-item: embedded entities get a full card, link
// items a slim one.
func itemCard(item siren.SubItem) string {
	switch {
	case item.Entity != nil:
		return EntityCard(item.Entity)
	case item.Link != nil:
		return `<div class="card"><h3>` + LinkAnchor(*item.Link) + `</h3></div>`
	}
	return ""
}

// PropertyTable renders entity properties as table rows.
func PropertyTable(properties map[string]any) string {
	var sb strings.Builder
	sb.WriteString(`<table><tbody>`)
	for _, key := range sortedPropertyKeys(properties) {
		sb.WriteString(`<tr><td class="key">` + html.EscapeString(key) + `:</td><td class="value">`)
		sb.WriteString(html.EscapeString(stringValue(properties[key])))
		sb.WriteString(`</td></tr>`)
	}
	sb.WriteString(`</tbody></table>`)
	return sb.String()
}

// EntityView returns a templ component rendering the whole entity: the
// class, links, properties and actions in one column, embedded entities
// in another, and the raw JSON document below.
func EntityView(entity *siren.Entity) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if entity == nil {
			_, err := io.WriteString(w, `<div class="shipwreck"></div>`)
			return err
		}
		var sb strings.Builder
		sb.WriteString(`<div class="shipwreck"><div class="content" id="content-entity"><div class="flex-parent"><div class="flex-1">`)
		if len(entity.Class) > 0 {
			sb.WriteString(`<div class="entity-class"><h2>Class</h2>[ ` + html.EscapeString(strings.Join(entity.Class, ", ")) + ` ]</div>`)
		}
		if len(entity.Links) > 0 {
			sb.WriteString(`<div class="entity-links"><h2>Links</h2>`)
			for _, link := range entity.Links {
				sb.WriteString(`<div>` + LinkAnchor(link) + `</div>`)
			}
			sb.WriteString(`</div>`)
		}
		if len(entity.Properties) > 0 {
			sb.WriteString(`<div class="entity-properties"><h2>Properties</h2>` + PropertyTable(entity.Properties) + `</div>`)
		}
		if len(entity.Actions) > 0 {
			sb.WriteString(`<div class="entity-actions"><h2>Actions</h2>`)
			for _, action := range entity.Actions {
				sb.WriteString(`<div class="card">` + ActionForm(action) + `</div>`)
			}
			sb.WriteString(`</div>`)
		}
		sb.WriteString(`</div>`)
		if len(entity.Items) > 0 {
			sb.WriteString(`<div class="flex-2"><div class="entity-entities"><h2>Entities</h2>`)
			for _, item := range entity.Items {
				sb.WriteString(itemCard(item))
			}
			sb.WriteString(`</div></div>`)
		}
		sb.WriteString(`</div></div>`)
		sb.WriteString(`<div class="content" id="content-raw"><div class="entity-raw">`)
		sb.WriteString(rawCode(entity))
		sb.WriteString(`</div></div></div>`)
		_, err := io.WriteString(w, sb.String())
		return err
	})
}

func rawCode(entity *siren.Entity) string {
	raw := entity.Raw()
	if len(raw) == 0 {
		return CodeBlock(entity)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return CodeBlock(entity)
	}
	return CodeBlock(v)
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func sortedPropertyKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
