package flow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parse decodes a JSON or YAML flow document and validates it.
// The decoded definition is returned even when validation fails so callers
// can surface diagnostics next to the document.
func Parse(data []byte) (Definition, error) {
	def, err := ParseUnchecked(data)
	if err != nil {
		return def, err
	}
	return def, Validate(def)
}

// ParseUnchecked decodes without validation. Documents starting with `{`
// are JSON and use JSON string and number rules; anything else is YAML.
func ParseUnchecked(data []byte) (Definition, error) {
	var def Definition
	var err error
	if isJSON(data) {
		err = json.Unmarshal(data, &def)
	} else {
		err = yaml.Unmarshal(data, &def)
	}
	if err != nil {
		return def, parseError(err)
	}
	Normalize(&def)
	return def, nil
}

func isJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// Marshal renders the definition as indented JSON.
func Marshal(def Definition) ([]byte, error) {
	return json.MarshalIndent(def, "", "  ")
}

// Normalize coerces decoded values into the shapes encoding/json produces:
// numbers become float64 and nested maps use string keys. Nil slices for
// nodes and edges become empty slices.
func Normalize(def *Definition) {
	if def == nil {
		return
	}
	if def.Nodes == nil {
		def.Nodes = []Node{}
	}
	if def.Edges == nil {
		def.Edges = []Edge{}
	}
	for i := range def.Nodes {
		if def.Nodes[i].Properties == nil {
			def.Nodes[i].Properties = map[string]any{}
			continue
		}
		def.Nodes[i].Properties, _ = NormalizeValue(def.Nodes[i].Properties).(map[string]any)
	}
	for k, v := range def.Variables {
		v.Default = NormalizeValue(v.Default)
		def.Variables[k] = v
	}
	for i := range def.Edges {
		if def.Edges[i].Condition != nil {
			def.Edges[i].Condition.Value = NormalizeValue(def.Edges[i].Condition.Value)
		}
	}
}

// NormalizeValue converts a yaml decoded value into its JSON equivalent.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = NormalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = NormalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = NormalizeValue(item)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
