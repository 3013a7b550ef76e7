package graph

import (
	"fmt"
	"slices"

	"github.com/goliatone/go-errors"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/flow"
)

// Connection is a request to draw an edge between two ports.
type Connection struct {
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// AddNode returns a graph with n appended.
func (g Graph) AddNode(n Node) (Graph, error) {
	if n.ID == "" {
		return g, errors.New("node id is required", errors.CategoryBadInput).
			WithTextCode(designer.CodeInputInvalid)
	}
	if g.NodeIndex(n.ID) >= 0 {
		return g, errors.New(fmt.Sprintf("node %q already exists", n.ID), errors.CategoryConflict).
			WithTextCode(designer.CodeDuplicateNode).
			WithMetadata(map[string]any{"node_id": n.ID})
	}
	out := g.Clone()
	out.Nodes = append(out.Nodes, n)
	return out, nil
}

// RemoveNode drops node id and every edge touching it.
func (g Graph) RemoveNode(id string) (Graph, error) {
	idx := g.NodeIndex(id)
	if idx < 0 {
		return g, nodeNotFound(id)
	}
	out := Graph{
		Nodes: make([]Node, 0, len(g.Nodes)-1),
		Edges: make([]Edge, 0, len(g.Edges)),
	}
	out.Nodes = append(out.Nodes, g.Nodes[:idx]...)
	out.Nodes = append(out.Nodes, g.Nodes[idx+1:]...)
	for _, e := range g.Edges {
		if e.Source == id || e.Target == id {
			continue
		}
		out.Edges = append(out.Edges, e)
	}
	return out, nil
}

// MoveNode sets the position of node id.
func (g Graph) MoveNode(id string, pos flow.Position) (Graph, error) {
	idx := g.NodeIndex(id)
	if idx < 0 {
		return g, nodeNotFound(id)
	}
	out := g.Clone()
	out.Nodes[idx].Position = pos
	return out, nil
}

// ReplaceNode swaps the node sharing n's id.
func (g Graph) ReplaceNode(n Node) (Graph, error) {
	idx := g.NodeIndex(n.ID)
	if idx < 0 {
		return g, nodeNotFound(n.ID)
	}
	out := g.Clone()
	out.Nodes[idx] = n
	return out, nil
}

// Connect adds a default edge for c with a fresh id. Handles, when given,
// must be ports of their nodes, and an identical connection may not exist.
func (g Graph) Connect(c Connection) (Graph, Edge, error) {
	src, ok := g.Node(c.Source)
	if !ok {
		return g, Edge{}, nodeNotFound(c.Source)
	}
	dst, ok := g.Node(c.Target)
	if !ok {
		return g, Edge{}, nodeNotFound(c.Target)
	}
	if c.SourceHandle != "" && !slices.Contains(src.Data.Outputs, c.SourceHandle) {
		return g, Edge{}, handleError(c.Source, c.SourceHandle, "output")
	}
	if c.TargetHandle != "" && !slices.Contains(dst.Data.Inputs, c.TargetHandle) {
		return g, Edge{}, handleError(c.Target, c.TargetHandle, "input")
	}
	for _, e := range g.Edges {
		if e.Source == c.Source && e.Target == c.Target &&
			e.SourceHandle == c.SourceHandle && e.TargetHandle == c.TargetHandle {
			return g, Edge{}, errors.New("connection already exists", errors.CategoryConflict).
				WithTextCode(designer.CodeDuplicateEdge).
				WithMetadata(map[string]any{"edge_id": e.ID})
		}
	}
	edge := Edge{
		ID:           UniqueEdgeID(g.Edges),
		Source:       c.Source,
		Target:       c.Target,
		SourceHandle: c.SourceHandle,
		TargetHandle: c.TargetHandle,
	}
	out := g.Clone()
	out.Edges = append(out.Edges, edge)
	return out, edge, nil
}

// RemoveEdge drops edge id. Removing one member of a parallel group leaves
// the others, which collapse into a group with fewer targets.
func (g Graph) RemoveEdge(id string) (Graph, error) {
	idx := g.EdgeIndex(id)
	if idx < 0 {
		return g, errors.New(fmt.Sprintf("edge %q not found", id), errors.CategoryBadInput).
			WithTextCode(designer.CodeEdgeNotFound).
			WithMetadata(map[string]any{"edge_id": id})
	}
	out := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, 0, len(g.Edges)-1),
	}
	copy(out.Nodes, g.Nodes)
	out.Edges = append(out.Edges, g.Edges[:idx]...)
	out.Edges = append(out.Edges, g.Edges[idx+1:]...)
	return out, nil
}

// UpdateProperties replaces the properties of node id and re-derives its ports.
func (t *Transformer) UpdateProperties(g Graph, id string, props map[string]any) (Graph, error) {
	n, ok := g.Node(id)
	if !ok {
		return g, nodeNotFound(id)
	}
	n.Data.Properties = props
	n, err := t.Refresh(n)
	if err != nil {
		return g, err
	}
	return g.ReplaceNode(n)
}

func nodeNotFound(id string) error {
	return errors.New(fmt.Sprintf("node %q not found", id), errors.CategoryBadInput).
		WithTextCode(designer.CodeNodeNotFound).
		WithMetadata(map[string]any{"node_id": id})
}

func handleError(nodeID, handle, kind string) error {
	return errors.New(fmt.Sprintf("node %q has no %s port %q", nodeID, kind, handle), errors.CategoryBadInput).
		WithTextCode(designer.CodeInvalidHandle).
		WithMetadata(map[string]any{"node_id": nodeID, "handle": handle})
}
