// Package graph converts flow documents to the node/edge view used by the
// editing surface and back.
package graph

import (
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/schema"
)

// NodeData is the payload the rendering collaborator receives for a node.
// Inputs and Outputs are derived from Properties and never persisted.
type NodeData struct {
	ID         string         `json:"id"`
	Type       flow.NodeType  `json:"type"`
	Title      string         `json:"title"`
	Schema     *schema.Schema `json:"-"`
	Properties map[string]any `json:"properties"`
	Inputs     []string       `json:"inputs"`
	Outputs    []string       `json:"outputs"`
}

type Node struct {
	ID       string        `json:"id"`
	Position flow.Position `json:"position"`
	Data     NodeData      `json:"data"`
	// Width and Height are the rendered size when known, used by layout.
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// EdgeData links a graph edge back to the document edge it came from.
// ParallelGroup and OriginalEdge are only set on edges expanded from a
// multi-target edge.
type EdgeData struct {
	Definition    *flow.Edge `json:"definition,omitempty"`
	ParallelGroup string     `json:"parallelGroup,omitempty"`
	OriginalEdge  *flow.Edge `json:"originalEdge,omitempty"`
}

type Edge struct {
	ID           string   `json:"id"`
	Source       string   `json:"source"`
	Target       string   `json:"target"`
	SourceHandle string   `json:"sourceHandle,omitempty"`
	TargetHandle string   `json:"targetHandle,omitempty"`
	Data         EdgeData `json:"data"`
}

type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Meta is the document level data that has no graph equivalent.
type Meta struct {
	FlowID      string                   `json:"flowId"`
	Name        string                   `json:"name"`
	Version     string                   `json:"version"`
	Description string                   `json:"description,omitempty"`
	Metadata    *flow.Metadata           `json:"metadata,omitempty"`
	Triggers    []string                 `json:"triggers,omitempty"`
	Variables   map[string]flow.Variable `json:"variables,omitempty"`
}

// MetaOf copies the document level fields of def.
func MetaOf(def flow.Definition) Meta {
	c := def.Clone()
	return Meta{
		FlowID:      c.FlowID,
		Name:        c.Name,
		Version:     c.Version,
		Description: c.Description,
		Metadata:    c.Metadata,
		Triggers:    c.Triggers,
		Variables:   c.Variables,
	}
}

// Clone deep copies the meta.
func (m Meta) Clone() Meta {
	return MetaOf(m.definition())
}

func (m Meta) definition() flow.Definition {
	return flow.Definition{
		FlowID:      m.FlowID,
		Name:        m.Name,
		Version:     m.Version,
		Description: m.Description,
		Metadata:    m.Metadata,
		Triggers:    m.Triggers,
		Variables:   m.Variables,
	}
}

// Clone copies the node and edge slices. Property trees are shared; they
// are only ever replaced, never mutated in place.
func (g Graph) Clone() Graph {
	out := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	copy(out.Nodes, g.Nodes)
	copy(out.Edges, g.Edges)
	return out
}

// NodeIndex returns the position of node id, or -1.
func (g Graph) NodeIndex(id string) int {
	for i, n := range g.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// EdgeIndex returns the position of edge id, or -1.
func (g Graph) EdgeIndex(id string) int {
	for i, e := range g.Edges {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Node looks up a node by id.
func (g Graph) Node(id string) (Node, bool) {
	if i := g.NodeIndex(id); i >= 0 {
		return g.Nodes[i], true
	}
	return Node{}, false
}
