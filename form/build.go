package form

import (
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/schema"
	"github.com/goliatone/go-flow-designer/variables"
)

// FieldView is one editable field of a rendered form.
type FieldView struct {
	Field schema.Field `json:"field"`
	Path  Path         `json:"path"`
	Value any          `json:"value,omitempty"`
	Set   bool         `json:"set"`

	// Children holds nested fields of an object.
	Children []FieldView `json:"children,omitempty"`
	// Items holds one field group per list item.
	Items [][]FieldView `json:"items,omitempty"`
	// Entries holds key-value pairs in key order.
	Entries []Entry `json:"entries,omitempty"`
	// Text is the editable rendering of json and decision tree values.
	Text string `json:"text,omitempty"`
	// Undefined lists {{name}} references with no declared variable.
	Undefined []string `json:"undefined,omitempty"`
}

// Build walks fields against props and returns the editable form tree.
func Build(fields []schema.Field, props map[string]any, vars map[string]flow.Variable) []FieldView {
	return buildFields(fields, props, Path{}, vars)
}

func buildFields(fields []schema.Field, container map[string]any, prefix Path, vars map[string]flow.Variable) []FieldView {
	out := make([]FieldView, 0, len(fields))
	for _, f := range fields {
		path := prefix.Append(Key(f.Name))
		v, set := container[f.Name]
		view := FieldView{Field: f, Path: path, Value: v, Set: set}

		switch f.Kind {
		case schema.KindObject:
			child, _ := v.(map[string]any)
			view.Children = buildFields(f.Fields, child, path, vars)
			view.Value = nil
		case schema.KindList:
			items, _ := v.([]any)
			view.Items = make([][]FieldView, 0, len(items))
			for i, item := range items {
				m, _ := item.(map[string]any)
				view.Items = append(view.Items, buildFields(f.Fields, m, path.Append(Index(i)), vars))
			}
			view.Value = nil
		case schema.KindKeyValue:
			view.Entries = Entries(v)
			view.Undefined = variables.FindUndefinedInValue(v, vars)
			view.Value = nil
		case schema.KindJSON, schema.KindDecisionTree:
			view.Text = FormatJSON(v)
			view.Undefined = variables.FindUndefinedInValue(v, vars)
		case schema.KindText, schema.KindTextarea:
			if s, ok := v.(string); ok {
				view.Undefined = variables.FindUndefined(s, vars)
			}
		}
		if len(view.Undefined) == 0 {
			view.Undefined = nil
		}
		out = append(out, view)
	}
	return out
}

// Advisories collects every undefined-variable advisory of a form tree,
// keyed by field path.
func Advisories(views []FieldView) map[string][]string {
	out := map[string][]string{}
	var walk func([]FieldView)
	walk = func(views []FieldView) {
		for _, v := range views {
			if len(v.Undefined) > 0 {
				out[v.Path.String()] = v.Undefined
			}
			walk(v.Children)
			for _, item := range v.Items {
				walk(item)
			}
		}
	}
	walk(views)
	return out
}

// FieldAt resolves the schema field addressed by path. List indices are
// skipped since every item shares the list's field set.
func FieldAt(fields []schema.Field, path Path) (schema.Field, bool) {
	var current schema.Field
	found := false
	for i, seg := range path {
		if seg.IsIndex() {
			if !found || current.Kind != schema.KindList {
				return schema.Field{}, false
			}
			continue
		}
		if found {
			switch current.Kind {
			case schema.KindObject, schema.KindList:
				fields = current.Fields
			case schema.KindKeyValue, schema.KindJSON, schema.KindDecisionTree:
				// free-form below this point
				return current, i > 0
			default:
				return schema.Field{}, false
			}
		}
		f, ok := schema.Lookup(fields, seg.Name())
		if !ok {
			return schema.Field{}, false
		}
		current, found = f, true
	}
	return current, found
}
