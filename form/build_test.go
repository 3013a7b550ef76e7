package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/schema"
)

func testFields() []schema.Field {
	return []schema.Field{
		{Name: "title", Kind: schema.KindText},
		{Name: "count", Kind: schema.KindNumber},
		{Name: "mode", Kind: schema.KindSelect, Options: []schema.Option{{Value: "fast"}, {Value: "slow"}}},
		{Name: "validation", Kind: schema.KindObject, Fields: []schema.Field{
			{Name: "required", Kind: schema.KindBoolean},
		}},
		{Name: "buttons", Kind: schema.KindList, Fields: []schema.Field{
			{Name: "text", Kind: schema.KindText},
		}},
		{Name: "headers", Kind: schema.KindKeyValue},
		{Name: "body", Kind: schema.KindJSON},
	}
}

func TestBuild(t *testing.T) {
	vars := map[string]flow.Variable{"name": {Name: "name", Type: flow.VariableTypeString}}
	views := Build(testFields(), map[string]any{
		"title":      "Hi {{name}} {{ghost}}",
		"validation": map[string]any{"required": true},
		"buttons":    []any{map[string]any{"text": "{{other}}"}, map[string]any{"text": "B"}},
		"headers":    map[string]any{"b": "{{token}}", "a": "1"},
		"body":       map[string]any{"user": "{{name}}"},
	}, vars)
	require.Len(t, views, 7)

	title := views[0]
	assert.True(t, title.Set)
	assert.Equal(t, []string{"ghost"}, title.Undefined)

	count := views[1]
	assert.False(t, count.Set)
	assert.Nil(t, count.Undefined)

	validation := views[3]
	require.Len(t, validation.Children, 1)
	assert.Equal(t, "validation.required", validation.Children[0].Path.String())
	assert.Equal(t, true, validation.Children[0].Value)

	buttons := views[4]
	require.Len(t, buttons.Items, 2)
	assert.Equal(t, "buttons[1].text", buttons.Items[1][0].Path.String())

	headers := views[5]
	assert.Equal(t, []Entry{{Key: "a", Value: "1"}, {Key: "b", Value: "{{token}}"}}, headers.Entries)
	assert.Equal(t, []string{"token"}, headers.Undefined)

	body := views[6]
	assert.Equal(t, "{\n  \"user\": \"{{name}}\"\n}", body.Text)
	assert.Nil(t, body.Undefined)

	assert.Equal(t, map[string][]string{
		"title":           {"ghost"},
		"buttons[0].text": {"other"},
		"headers":         {"token"},
	}, Advisories(views))
}

func TestFieldAt(t *testing.T) {
	fields := testFields()
	cases := map[string]struct {
		path Path
		name string
		ok   bool
	}{
		"top level":       {P("title"), "title", true},
		"nested object":   {P("validation", "required"), "required", true},
		"list item field": {P("buttons", 2, "text"), "text", true},
		"list itself":     {P("buttons"), "buttons", true},
		"free form":       {P("headers", "X-Any"), "headers", true},
		"unknown":         {P("nope"), "", false},
		"index on object": {P("validation", 0), "", false},
		"below primitive": {P("title", "x"), "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f, ok := FieldAt(fields, tc.path)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.name, f.Name)
		})
	}
}

func TestParseInput(t *testing.T) {
	fields := testFields()

	v, err := ParseInput(fields[1], " 42.5 ")
	require.NoError(t, err)
	assert.Equal(t, 42.5, v)

	v, err = ParseInput(fields[1], "")
	require.NoError(t, err)
	assert.Nil(t, v, "blank numbers unset the field")

	_, err = ParseInput(fields[1], "many")
	assert.True(t, designer.HasCode(err, designer.CodeInputInvalid))

	v, err = ParseInput(fields[3].Fields[0], "true")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	_, err = ParseInput(fields[2], "medium")
	assert.True(t, designer.HasCode(err, designer.CodeInputInvalid))

	v, err = ParseInput(fields[6], `{"a": [1, 2]}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{1.0, 2.0}}, v)

	_, err = ParseInput(fields[6], `{"a":`)
	assert.True(t, designer.HasCode(err, designer.CodeJSONInvalid))

	_, err = ParseInput(fields[4], "x")
	assert.True(t, designer.HasCode(err, designer.CodeInputInvalid), "lists are not edited as text")
}

func TestJSONDraft(t *testing.T) {
	d := NewJSONDraft(map[string]any{"a": 1.0})
	assert.Equal(t, "{\n  \"a\": 1\n}", d.Text)
	assert.True(t, d.Valid())

	assert.False(t, d.Edit(`{"a": `))
	assert.False(t, d.Valid())
	assert.Equal(t, `{"a": `, d.Text, "invalid text is kept")
	assert.Equal(t, map[string]any{"a": 1.0}, d.Value)

	assert.True(t, d.Edit(`[1] `))
	assert.Equal(t, []any{1.0}, d.Value)

	assert.False(t, d.Edit(`1 2`), "trailing content is rejected")

	assert.True(t, d.Edit("  "))
	assert.Nil(t, d.Value)
	assert.Equal(t, "", FormatJSON(nil))
}
