package codec

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stephenwright/shipwreck/lib/siren"
)

func TestFieldsFromValues(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]any
		want   []siren.Field
	}{
		{
			name:   "flat",
			values: map[string]any{"b": 2, "a": 1},
			want: []siren.Field{
				{Name: "a", Type: "text", Value: 1},
				{Name: "b", Type: "text", Value: 2},
			},
		},
		{
			name:   "nested map",
			values: map[string]any{"a": map[string]any{"b": 1}},
			want: []siren.Field{
				{Name: "a[b]", Type: "text", Value: 1},
			},
		},
		{
			name:   "deep nesting with array",
			values: map[string]any{"a": map[string]any{"b": map[string]any{"c": []any{1, 2}}}},
			want: []siren.Field{
				{Name: "a[b][c][0]", Type: "text", Value: 1},
				{Name: "a[b][c][1]", Type: "text", Value: 2},
			},
		},
		{
			name:   "top level array",
			values: map[string]any{"tags": []any{"kitchen", "tools"}},
			want: []siren.Field{
				{Name: "tags[0]", Type: "text", Value: "kitchen"},
				{Name: "tags[1]", Type: "text", Value: "tools"},
			},
		},
		{
			name:   "empty",
			values: map[string]any{},
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FieldsFromValues(tt.values)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FieldsFromValues() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeFields(t *testing.T) {
	declared := []siren.Field{
		{Name: "label", Type: "text", Value: "old"},
		{Name: "public", Type: "checkbox", Value: "true"},
	}
	overrides := []siren.Field{
		{Name: "label", Type: "text", Value: "new"},
		{Name: "extra", Type: "text", Value: "x"},
	}

	got := MergeFields(declared, overrides)

	want := []siren.Field{
		{Name: "label", Type: "text", Value: "new"},
		{Name: "public", Type: "checkbox", Value: "true"},
		{Name: "extra", Type: "text", Value: "x"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeFields() mismatch (-want +got):\n%s", diff)
	}
	if declared[0].Value != "old" {
		t.Errorf("declared fields mutated: %v", declared[0].Value)
	}
}
