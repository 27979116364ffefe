package shipwreck

import (
	"context"

	"github.com/stephenwright/shipwreck/lib/siren"
	"github.com/stephenwright/shipwreck/lib/store"
)

// MethodOverrideField is the name of the hidden form control that, when
// present, overrides the HTTP method of the submitted action.
const MethodOverrideField = "_method"

// FormControl is one control of a rendered action form as it stood at
// submission time.
type FormControl struct {
	Name    string
	Type    string // input type: text, hidden, checkbox, radio, file, ...
	Value   string
	Checked bool
	Files   []siren.File
}

// Form captures a form submission before it is encoded into a request.
type Form struct {
	Name     string
	Href     string
	Method   string
	Type     string // encoding media type of the action
	Controls []FormControl
}

// SubmitForm turns a form submission into an action and submits it.
// Unchecked checkbox and radio controls contribute nothing, and a
// hidden control named "_method" replaces the HTTP method instead of
// becoming a field.
func (c *Client) SubmitForm(ctx context.Context, form Form) (store.Result, error) {
	method := form.Method
	var fields []siren.Field
	for _, ctl := range form.Controls {
		if ctl.Name == MethodOverrideField {
			if ctl.Value != "" {
				method = ctl.Value
			}
			continue
		}
		if (ctl.Type == "checkbox" || ctl.Type == "radio") && !ctl.Checked {
			continue
		}
		typ := ctl.Type
		if typ == "" {
			typ = siren.DefaultFieldType
		}
		field := siren.Field{Name: ctl.Name, Type: typ, Files: ctl.Files}
		if len(ctl.Files) == 0 {
			field.Value = ctl.Value
		}
		fields = append(fields, field)
	}
	if method == "" {
		method = siren.DefaultMethod
	}
	typ := form.Type
	if typ == "" {
		typ = siren.DefaultActionType
	}
	action := &siren.Action{
		Name:   form.Name,
		Href:   form.Href,
		Method: method,
		Type:   typ,
		Fields: fields,
	}
	return c.Submit(ctx, action, nil)
}
