package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/stephenwright/shipwreck/lib/siren"
)

// printEntity writes a text rendering of an entity: class, title,
// properties, links, actions and embedded items.
func printEntity(w io.Writer, entity *siren.Entity) {
	if len(entity.Class) > 0 {
		fmt.Fprintf(w, "class: [ %s ]\n", strings.Join(entity.Class, ", "))
	}
	if entity.Title != "" {
		fmt.Fprintf(w, "title: %s\n", entity.Title)
	}
	if len(entity.Properties) > 0 {
		fmt.Fprintln(w, "properties:")
		keys := make([]string, 0, len(entity.Properties))
		for k := range entity.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %v\n", k, entity.Properties[k])
		}
	}
	if len(entity.Links) > 0 {
		fmt.Fprintln(w, "links:")
		for _, link := range entity.Links {
			fmt.Fprintf(w, "  [ %s ] %s\n", strings.Join(link.Rel, ", "), link.Href)
		}
	}
	if len(entity.Actions) > 0 {
		fmt.Fprintln(w, "actions:")
		for _, action := range entity.Actions {
			method := action.Method
			if method == "" {
				method = siren.DefaultMethod
			}
			fmt.Fprintf(w, "  %s: %s %s\n", action.Name, method, action.Href)
		}
	}
	if len(entity.Items) > 0 {
		fmt.Fprintln(w, "entities:")
		for _, item := range entity.Items {
			switch {
			case item.Link != nil:
				fmt.Fprintf(w, "  [ %s ] %s\n", strings.Join(item.Link.Rel, ", "), item.Link.Href)
			case item.Entity != nil:
				title := item.Entity.Title
				if title == "" {
					title = "[ " + strings.Join(item.Entity.Class, ", ") + " ]"
				}
				fmt.Fprintf(w, "  [ %s ] %s\n", strings.Join(item.Entity.Rel, ", "), title)
			}
		}
	}
}

// choice is one selectable step in the browse loop.
type choice struct {
	label  string
	href   string
	action *siren.Action
}

func runBrowse(args []string) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}
	client, err := newClient(opts)
	if err != nil {
		return err
	}

	path := client.BaseURI()
	if len(opts.args) > 0 {
		path = opts.args[0]
	}
	if path == "" {
		prompt := &survey.Input{Message: "API root:"}
		if err := survey.AskOne(prompt, &path, survey.WithValidator(survey.Required)); err != nil {
			return browseErr(err)
		}
		if err := client.SetBaseURI(path); err != nil {
			return err
		}
	}

	ctx := context.Background()
	for {
		res, err := client.Fetch(ctx, path)
		if err != nil {
			return err
		}
		entity := res.Entity
		if entity == nil {
			if res.Response != nil {
				fmt.Printf("request failed, status: %d\n", res.Response.StatusCode)
			}
			return nil
		}

		fmt.Println()
		printEntity(os.Stdout, entity)
		fmt.Println()

		choices := entityChoices(entity)
		labels := make([]string, 0, len(choices)+1)
		for _, c := range choices {
			labels = append(labels, c.label)
		}
		labels = append(labels, "quit")

		var picked string
		prompt := &survey.Select{Message: "Go to:", Options: labels}
		if err := survey.AskOne(prompt, &picked); err != nil {
			return browseErr(err)
		}
		if picked == "quit" {
			return nil
		}
		for _, c := range choices {
			if c.label != picked {
				continue
			}
			if c.action != nil {
				values, err := promptFields(c.action)
				if err != nil {
					return browseErr(err)
				}
				res, err := client.Submit(ctx, c.action, values)
				if err != nil {
					return err
				}
				if res.Entity != nil {
					if self := res.Entity.Link(siren.Query{Rel: "self"}); self != nil {
						path = self.Href
					}
				}
			} else {
				path = c.href
			}
			break
		}
	}
}

func entityChoices(entity *siren.Entity) []choice {
	var choices []choice
	for _, link := range entity.Links {
		choices = append(choices, choice{
			label: fmt.Sprintf("link: [ %s ] %s", strings.Join(link.Rel, ", "), link.Href),
			href:  link.Href,
		})
	}
	for _, item := range entity.Items {
		if item.Link != nil {
			choices = append(choices, choice{
				label: fmt.Sprintf("item: [ %s ] %s", strings.Join(item.Link.Rel, ", "), item.Link.Href),
				href:  item.Link.Href,
			})
		}
	}
	for i := range entity.Actions {
		action := &entity.Actions[i]
		choices = append(choices, choice{
			label:  fmt.Sprintf("action: %s", action.Name),
			action: action,
		})
	}
	return choices
}

// promptFields asks for a value for each visible field of an action.
// Hidden fields keep their declared values.
func promptFields(action *siren.Action) (map[string]any, error) {
	values := map[string]any{}
	for _, field := range action.Fields {
		switch field.Type {
		case "hidden":
			continue
		case "password":
			var out string
			prompt := &survey.Password{Message: field.Name + ":"}
			if err := survey.AskOne(prompt, &out); err != nil {
				return nil, err
			}
			values[field.Name] = out
		case "checkbox":
			var out bool
			prompt := &survey.Confirm{Message: field.Name + "?", Default: field.Checked}
			if err := survey.AskOne(prompt, &out); err != nil {
				return nil, err
			}
			if out {
				values[field.Name] = "on"
			}
		default:
			if len(field.Options) > 0 {
				labels := make([]string, len(field.Options))
				byLabel := map[string]any{}
				for i, opt := range field.Options {
					label := opt.Title
					if label == "" {
						label = fieldDefault(opt.Value)
					}
					labels[i] = label
					byLabel[label] = opt.Value
				}
				var out string
				prompt := &survey.Select{Message: field.Name + ":", Options: labels}
				if err := survey.AskOne(prompt, &out); err != nil {
					return nil, err
				}
				values[field.Name] = byLabel[out]
				continue
			}
			var out string
			prompt := &survey.Input{Message: field.Name + ":", Default: fieldDefault(field.Value)}
			if err := survey.AskOne(prompt, &out); err != nil {
				return nil, err
			}
			values[field.Name] = out
		}
	}
	return values, nil
}

func fieldDefault(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// browseErr maps ctrl-c to a clean exit.
func browseErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return nil
	}
	return err
}
