package graph

import (
	"fmt"

	"github.com/goliatone/go-errors"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/schema"
)

// Transformer converts between flow documents and graphs using a schema registry.
type Transformer struct {
	registry *schema.Registry
	logger   designer.Logger
}

type Option func(*Transformer)

func WithRegistry(r *schema.Registry) Option {
	return func(t *Transformer) {
		if r != nil {
			t.registry = r
		}
	}
}

func WithLogger(l designer.Logger) Option {
	return func(t *Transformer) {
		t.logger = designer.NormalizeLogger(l)
	}
}

func NewTransformer(opts ...Option) *Transformer {
	t := &Transformer{
		registry: schema.Default(),
		logger:   designer.NewFmtLogger(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *Transformer) Registry() *schema.Registry {
	return t.registry
}

// ToGraph builds the editing graph for def. Multi-target edges are expanded
// into one edge per target, ids suffixed with the target index.
func (t *Transformer) ToGraph(def flow.Definition) (Graph, error) {
	g := Graph{
		Nodes: make([]Node, 0, len(def.Nodes)),
		Edges: make([]Edge, 0, len(def.Edges)),
	}
	for _, fn := range def.Nodes {
		n, err := t.node(fn)
		if err != nil {
			return Graph{}, err
		}
		g.Nodes = append(g.Nodes, n)
	}
	for _, fe := range def.Edges {
		g.Edges = append(g.Edges, expandEdge(fe)...)
	}
	return g, nil
}

func (t *Transformer) node(fn flow.Node) (Node, error) {
	s, err := t.registry.Get(fn.Type)
	if err != nil {
		return Node{}, errors.Wrap(err, errors.CategoryBadInput, fmt.Sprintf("node %q", fn.ID)).
			WithTextCode(designer.CodeSchemaNotFound).
			WithMetadata(map[string]any{"node_id": fn.ID, "node_type": string(fn.Type)})
	}
	props := flow.CloneProperties(fn.Properties)
	inputs, outputs := s.Ports(props)
	return Node{
		ID:       fn.ID,
		Position: fn.Position,
		Data: NodeData{
			ID:         fn.ID,
			Type:       fn.Type,
			Title:      s.Title,
			Schema:     s,
			Properties: props,
			Inputs:     inputs,
			Outputs:    outputs,
		},
	}, nil
}

func expandEdge(fe flow.Edge) []Edge {
	if !fe.Target.IsMulti() {
		def := fe.Clone()
		return []Edge{{
			ID:           fe.ID,
			Source:       fe.Source,
			Target:       fe.Target.First(),
			SourceHandle: fe.SourceHandle,
			TargetHandle: fe.TargetHandle,
			Data:         EdgeData{Definition: &def},
		}}
	}
	ids := fe.Target.IDs()
	out := make([]Edge, 0, len(ids))
	for i, target := range ids {
		split := fe.Clone()
		split.Target = flow.SingleTarget(target)
		original := fe.Clone()
		out = append(out, Edge{
			ID:           fmt.Sprintf("%s_%d", fe.ID, i),
			Source:       fe.Source,
			Target:       target,
			SourceHandle: fe.SourceHandle,
			TargetHandle: fe.TargetHandle,
			Data: EdgeData{
				Definition:    &split,
				ParallelGroup: fe.ID,
				OriginalEdge:  &original,
			},
		})
	}
	return out
}

// ToDocument collapses the graph back into a flow document. Derived ports
// are dropped. Edges sharing a parallel group become one multi-target edge
// placed where the first member of the group was found, with targets in
// encounter order.
func (t *Transformer) ToDocument(meta Meta, nodes []Node, edges []Edge) flow.Definition {
	m := meta.Clone()
	def := flow.Definition{
		FlowID:      m.FlowID,
		Name:        m.Name,
		Version:     m.Version,
		Description: m.Description,
		Metadata:    m.Metadata,
		Triggers:    m.Triggers,
		Variables:   m.Variables,
		Nodes:       make([]flow.Node, 0, len(nodes)),
		Edges:       make([]flow.Edge, 0, len(edges)),
	}
	for _, n := range nodes {
		def.Nodes = append(def.Nodes, flow.Node{
			ID:         n.ID,
			Type:       n.Data.Type,
			Position:   n.Position,
			Properties: flow.CloneProperties(n.Data.Properties),
		})
	}

	type group struct {
		index   int
		targets []string
	}
	groups := map[string]*group{}
	for _, e := range edges {
		key := e.Data.ParallelGroup
		if key == "" {
			def.Edges = append(def.Edges, collapseEdge(e))
			continue
		}
		if g, ok := groups[key]; ok {
			g.targets = append(g.targets, e.Target)
			continue
		}
		base := groupBase(e)
		base.ID = key
		groups[key] = &group{index: len(def.Edges), targets: []string{e.Target}}
		def.Edges = append(def.Edges, base)
	}
	for _, g := range groups {
		def.Edges[g.index].Target = flow.MultiTarget(g.targets...)
	}
	return def
}

func groupBase(e Edge) flow.Edge {
	switch {
	case e.Data.OriginalEdge != nil:
		return e.Data.OriginalEdge.Clone()
	case e.Data.Definition != nil:
		return e.Data.Definition.Clone()
	default:
		return flow.Edge{
			ID:           e.ID,
			Type:         flow.EdgeTypeParallel,
			Source:       e.Source,
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
		}
	}
}

func collapseEdge(e Edge) flow.Edge {
	if e.Data.Definition == nil {
		return flow.Edge{
			ID:           e.ID,
			Type:         flow.EdgeTypeDefault,
			Source:       e.Source,
			Target:       flow.SingleTarget(e.Target),
			SourceHandle: e.SourceHandle,
			TargetHandle: e.TargetHandle,
		}
	}
	out := e.Data.Definition.Clone()
	out.ID = e.ID
	out.Source = e.Source
	out.Target = flow.SingleTarget(e.Target)
	if e.SourceHandle != "" {
		out.SourceHandle = e.SourceHandle
	}
	if e.TargetHandle != "" {
		out.TargetHandle = e.TargetHandle
	}
	return out
}

// ToDocumentFromGraph is ToDocument over a Graph value.
func (t *Transformer) ToDocumentFromGraph(meta Meta, g Graph) flow.Definition {
	return t.ToDocument(meta, g.Nodes, g.Edges)
}

// NewNode creates a node of type typ seeded with the schema defaults.
func (t *Transformer) NewNode(typ flow.NodeType, id string, pos flow.Position) (Node, error) {
	s, err := t.registry.Get(typ)
	if err != nil {
		t.logger.Warn("cannot create node", "node_id", id, "error", err)
		return Node{}, err
	}
	return t.node(flow.Node{ID: id, Type: typ, Position: pos, Properties: s.DefaultProperties()})
}

// Refresh recomputes the ports of n from its current properties.
func (t *Transformer) Refresh(n Node) (Node, error) {
	s := n.Data.Schema
	if s == nil {
		var err error
		if s, err = t.registry.Get(n.Data.Type); err != nil {
			return n, err
		}
	}
	n.Data.Schema = s
	n.Data.Title = s.Title
	n.Data.Inputs, n.Data.Outputs = s.Ports(n.Data.Properties)
	return n, nil
}
