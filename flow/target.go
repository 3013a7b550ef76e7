package flow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// EdgeTarget is either a single node id or, for parallel edges, a list of ids.
type EdgeTarget struct {
	ids   []string
	multi bool
}

// SingleTarget builds a scalar target.
func SingleTarget(id string) EdgeTarget {
	return EdgeTarget{ids: []string{id}}
}

// MultiTarget builds an array target. The list form is kept even for one id.
func MultiTarget(ids ...string) EdgeTarget {
	return EdgeTarget{ids: cloneStrings(ids), multi: true}
}

func (t EdgeTarget) IsMulti() bool { return t.multi }

// IDs returns a copy of the target ids.
func (t EdgeTarget) IDs() []string {
	return cloneStrings(t.ids)
}

// First returns the first target id or the empty string.
func (t EdgeTarget) First() string {
	if len(t.ids) == 0 {
		return ""
	}
	return t.ids[0]
}

func (t EdgeTarget) Len() int { return len(t.ids) }

func (t EdgeTarget) IsZero() bool {
	return len(t.ids) == 0 && !t.multi
}

func (t EdgeTarget) Clone() EdgeTarget {
	return EdgeTarget{ids: cloneStrings(t.ids), multi: t.multi}
}

func (t EdgeTarget) String() string {
	if t.multi {
		return "[" + strings.Join(t.ids, ",") + "]"
	}
	return t.First()
}

func (t EdgeTarget) MarshalJSON() ([]byte, error) {
	if t.multi {
		ids := t.ids
		if ids == nil {
			ids = []string{}
		}
		return json.Marshal(ids)
	}
	return json.Marshal(t.First())
}

func (t *EdgeTarget) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("edge target: %w", err)
		}
		*t = MultiTarget(ids...)
		return nil
	}
	var id string
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("edge target: %w", err)
	}
	*t = SingleTarget(id)
	return nil
}

func (t EdgeTarget) MarshalYAML() (any, error) {
	if t.multi {
		return t.IDs(), nil
	}
	return t.First(), nil
}

func (t *EdgeTarget) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.SequenceNode:
		var ids []string
		if err := value.Decode(&ids); err != nil {
			return fmt.Errorf("edge target: %w", err)
		}
		*t = MultiTarget(ids...)
	case yaml.ScalarNode:
		*t = SingleTarget(value.Value)
	default:
		return fmt.Errorf("edge target: unexpected yaml node kind %d", value.Kind)
	}
	return nil
}

// JSONSchema describes the string-or-array union.
func (EdgeTarget) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "string"},
			{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
	}
}
