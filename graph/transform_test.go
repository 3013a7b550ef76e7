package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/schema"
)

func sampleDoc() flow.Definition {
	wait := true
	return flow.Definition{
		FlowID:   "f",
		Name:     "Flow",
		Version:  "1",
		Triggers: []string{"hi"},
		Variables: map[string]flow.Variable{
			"choice": {Name: "choice", Type: flow.VariableTypeString},
		},
		Nodes: []flow.Node{
			{ID: "start", Type: flow.NodeTypeStart, Position: flow.Position{X: 1, Y: 2}, Properties: map[string]any{"title": "Go"}},
			{ID: "pick", Type: flow.NodeTypeButton, Properties: map[string]any{
				"message": "Pick",
				"buttons": []any{
					map[string]any{"text": "A", "value": "a"},
					map[string]any{"text": "B"},
				},
			}},
			{ID: "left", Type: flow.NodeTypeMessage, Properties: map[string]any{"message": "left"}},
			{ID: "right", Type: flow.NodeTypeMessage, Properties: map[string]any{"message": "right"}},
			{ID: "end", Type: flow.NodeTypeEnd, Properties: map[string]any{}},
		},
		Edges: []flow.Edge{
			{ID: "e1", Type: flow.EdgeTypeDefault, Source: "start", Target: flow.SingleTarget("pick")},
			{ID: "fan", Type: flow.EdgeTypeParallel, Source: "pick", SourceHandle: "a",
				Target: flow.MultiTarget("left", "right"), WaitForAll: &wait},
			{ID: "e3", Type: flow.EdgeTypeConditional, Source: "left", Target: flow.SingleTarget("end"),
				Condition: &flow.EdgeCondition{Variable: "{{choice}}", Operator: "==", Value: "a"}},
		},
	}
}

func TestToGraphDerivesPorts(t *testing.T) {
	g, err := NewTransformer().ToGraph(sampleDoc())
	require.NoError(t, err)
	require.Len(t, g.Nodes, 5)

	start, _ := g.Node("start")
	assert.Equal(t, flow.Position{X: 1, Y: 2}, start.Position)
	assert.Equal(t, "Start", start.Data.Title)
	assert.Empty(t, start.Data.Inputs)
	assert.Equal(t, []string{"next"}, start.Data.Outputs)

	pick, _ := g.Node("pick")
	assert.Equal(t, []string{schema.DefaultInput}, pick.Data.Inputs)
	assert.Equal(t, []string{"a", "B", "timeout"}, pick.Data.Outputs)

	end, _ := g.Node("end")
	assert.Equal(t, []string{schema.DefaultInput}, end.Data.Inputs)
	assert.Empty(t, end.Data.Outputs)
}

func TestToGraphExpandsParallelEdges(t *testing.T) {
	g, err := NewTransformer().ToGraph(sampleDoc())
	require.NoError(t, err)
	require.Len(t, g.Edges, 4)

	assert.Equal(t, "fan_0", g.Edges[1].ID)
	assert.Equal(t, "left", g.Edges[1].Target)
	assert.Equal(t, "fan_1", g.Edges[2].ID)
	assert.Equal(t, "right", g.Edges[2].Target)
	assert.Equal(t, "fan", g.Edges[2].Data.ParallelGroup)
	require.NotNil(t, g.Edges[2].Data.OriginalEdge)
	assert.Equal(t, 2, g.Edges[2].Data.OriginalEdge.Target.Len())
}

func TestRoundTripPreservesDocument(t *testing.T) {
	tr := NewTransformer()
	doc := sampleDoc()
	g, err := tr.ToGraph(doc)
	require.NoError(t, err)

	back := tr.ToDocumentFromGraph(MetaOf(doc), g)
	assert.Equal(t, doc, back)
}

func TestToDocumentCollapsesPartialGroup(t *testing.T) {
	tr := NewTransformer()
	doc := sampleDoc()
	g, err := tr.ToGraph(doc)
	require.NoError(t, err)

	g, err = g.RemoveEdge("fan_0")
	require.NoError(t, err)
	back := tr.ToDocument(MetaOf(doc), g.Nodes, g.Edges)

	require.Len(t, back.Edges, 3)
	fan := back.Edges[1]
	assert.Equal(t, "fan", fan.ID)
	assert.True(t, fan.Target.IsMulti())
	assert.Equal(t, []string{"right"}, fan.Target.IDs())
	assert.Equal(t, flow.EdgeTypeParallel, fan.Type)
}

func TestToDocumentBuildsPlainEdges(t *testing.T) {
	tr := NewTransformer()
	n1, err := tr.NewNode(flow.NodeTypeStart, "a", flow.Position{})
	require.NoError(t, err)
	n2, err := tr.NewNode(flow.NodeTypeEnd, "b", flow.Position{X: 10})
	require.NoError(t, err)

	doc := tr.ToDocument(Meta{FlowID: "x"}, []Node{n1, n2}, []Edge{{ID: "e1", Source: "a", Target: "b"}})
	require.Len(t, doc.Edges, 1)
	assert.Equal(t, flow.EdgeTypeDefault, doc.Edges[0].Type)
	assert.Equal(t, "Flow Start", doc.Nodes[0].Properties["title"])
	assert.NoError(t, flow.Validate(doc))
}

func TestToGraphUnknownType(t *testing.T) {
	doc := sampleDoc()
	doc.Nodes[0].Type = "rocket"
	_, err := NewTransformer().ToGraph(doc)
	require.Error(t, err)
	assert.True(t, designer.HasCode(err, designer.CodeSchemaNotFound))
}

func TestToGraphCopiesProperties(t *testing.T) {
	doc := sampleDoc()
	g, err := NewTransformer().ToGraph(doc)
	require.NoError(t, err)
	g.Nodes[0].Data.Properties["title"] = "changed"
	assert.Equal(t, "Go", doc.Nodes[0].Properties["title"])
}

func TestMetaCloneIsDeep(t *testing.T) {
	m := MetaOf(sampleDoc())
	c := m.Clone()
	c.Triggers[0] = "bye"
	c.Variables["extra"] = flow.Variable{Name: "extra", Type: flow.VariableTypeNumber}
	assert.Equal(t, "hi", m.Triggers[0])
	assert.NotContains(t, m.Variables, "extra")
}
