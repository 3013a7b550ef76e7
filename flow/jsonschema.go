package flow

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// JSONSchema reflects the persisted document shape.
func JSONSchema() *jsonschema.Schema {
	r := &jsonschema.Reflector{
		DoNotReference: true,
	}
	s := r.Reflect(&Definition{})
	s.Title = "Flow definition"
	return s
}

// JSONSchemaBytes renders JSONSchema as indented JSON.
func JSONSchemaBytes() ([]byte, error) {
	return json.MarshalIndent(JSONSchema(), "", "  ")
}

func (NodeType) JSONSchema() *jsonschema.Schema {
	enum := make([]any, 0, len(nodeTypes))
	for _, t := range nodeTypes {
		enum = append(enum, string(t))
	}
	return &jsonschema.Schema{Type: "string", Enum: enum}
}

func (EdgeType) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Enum: []any{
		string(EdgeTypeDefault),
		string(EdgeTypeConditional),
		string(EdgeTypeParallel),
		string(EdgeTypeError),
	}}
}

func (VariableType) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Enum: []any{
		string(VariableTypeString),
		string(VariableTypeNumber),
		string(VariableTypeBoolean),
		string(VariableTypeObject),
	}}
}
