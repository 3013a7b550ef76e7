package schema

import (
	"fmt"
	"sync"

	"github.com/goliatone/go-errors"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/flow"
)

// DefaultInput is the port name used when a node declares no inputs and no outputs.
const DefaultInput = "previous"

type SummaryItem struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Schema is the declarative description of one node type.
type Schema struct {
	Type        flow.NodeType
	Title       string
	Description string
	Fields      []Field

	Defaults       func() map[string]any
	Summarize      func(props map[string]any) []SummaryItem
	ComputeInputs  func(props map[string]any) []string
	ComputeOutputs func(props map[string]any) []string
}

// DefaultProperties returns a fresh copy of the seed properties for new nodes.
func (s *Schema) DefaultProperties() map[string]any {
	if s == nil || s.Defaults == nil {
		return map[string]any{}
	}
	return flow.CloneProperties(s.Defaults())
}

func (s *Schema) Summary(props map[string]any) []SummaryItem {
	if s == nil || s.Summarize == nil {
		return []SummaryItem{}
	}
	return s.Summarize(props)
}

// Outputs derives output port names from props.
func (s *Schema) Outputs(props map[string]any) []string {
	if s == nil || s.ComputeOutputs == nil {
		return []string{}
	}
	return nonNil(s.ComputeOutputs(props))
}

// Ports derives input and output port names from props. Without an explicit
// input rule, a node with no outputs gets a single "previous" input.
func (s *Schema) Ports(props map[string]any) (inputs, outputs []string) {
	outputs = s.Outputs(props)
	if s != nil && s.ComputeInputs != nil {
		return nonNil(s.ComputeInputs(props)), outputs
	}
	if len(outputs) > 0 {
		return []string{}, outputs
	}
	return []string{DefaultInput}, outputs
}

// Descriptor is the serializable view of a schema.
type Descriptor struct {
	Type              flow.NodeType  `json:"type"`
	Title             string         `json:"title"`
	Description       string         `json:"description,omitempty"`
	Fields            []Field        `json:"fields"`
	DefaultProperties map[string]any `json:"defaultProperties"`
	Inputs            []string       `json:"inputs"`
	Outputs           []string       `json:"outputs"`
}

// Describe renders the schema with the ports of its default properties.
func (s *Schema) Describe() Descriptor {
	props := s.DefaultProperties()
	in, out := s.Ports(props)
	return Descriptor{
		Type:              s.Type,
		Title:             s.Title,
		Description:       s.Description,
		Fields:            s.Fields,
		DefaultProperties: props,
		Inputs:            in,
		Outputs:           out,
	}
}

// Registry maps node types to schemas. It is read-only once built.
type Registry struct {
	schemas map[flow.NodeType]*Schema
	order   []flow.NodeType
}

// NewRegistry builds a registry. Later schemas replace earlier ones of the same type.
func NewRegistry(schemas ...*Schema) *Registry {
	r := &Registry{schemas: make(map[flow.NodeType]*Schema, len(schemas))}
	for _, s := range schemas {
		if s == nil {
			continue
		}
		if _, ok := r.schemas[s.Type]; !ok {
			r.order = append(r.order, s.Type)
		}
		r.schemas[s.Type] = s
	}
	return r
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the registry of the twelve built-in node types.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry(builtins()...)
	})
	return defaultRegistry
}

// Get returns the schema for t or a SCHEMA_NOT_FOUND error.
func (r *Registry) Get(t flow.NodeType) (*Schema, error) {
	if r != nil {
		if s, ok := r.schemas[t]; ok {
			return s, nil
		}
	}
	return nil, errors.New(fmt.Sprintf("no schema registered for node type %q", t), errors.CategoryBadInput).
		WithTextCode(designer.CodeSchemaNotFound).
		WithMetadata(map[string]any{"node_type": string(t)})
}

// MustGet panics when t has no schema.
func (r *Registry) MustGet(t flow.NodeType) *Schema {
	s, err := r.Get(t)
	if err != nil {
		panic(err)
	}
	return s
}

// Types lists registered node types in registration order.
func (r *Registry) Types() []flow.NodeType {
	if r == nil {
		return nil
	}
	out := make([]flow.NodeType, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) Describe() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.schemas[t].Describe())
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
