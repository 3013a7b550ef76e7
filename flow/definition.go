package flow

// NodeType is one of the closed set of node tags the editor understands.
type NodeType string

const (
	NodeTypeStart        NodeType = "start"
	NodeTypeEnd          NodeType = "end"
	NodeTypeMessage      NodeType = "message"
	NodeTypeButton       NodeType = "button"
	NodeTypeInput        NodeType = "input"
	NodeTypeCondition    NodeType = "condition"
	NodeTypeFunction     NodeType = "function"
	NodeTypeAgent        NodeType = "agent"
	NodeTypeAPI          NodeType = "api"
	NodeTypeForm         NodeType = "form"
	NodeTypeTable        NodeType = "table"
	NodeTypeDecisionTree NodeType = "decision_tree"
)

var nodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeEnd,
	NodeTypeMessage,
	NodeTypeButton,
	NodeTypeInput,
	NodeTypeCondition,
	NodeTypeFunction,
	NodeTypeAgent,
	NodeTypeAPI,
	NodeTypeForm,
	NodeTypeTable,
	NodeTypeDecisionTree,
}

// NodeTypes returns every node tag in palette order.
func NodeTypes() []NodeType {
	out := make([]NodeType, len(nodeTypes))
	copy(out, nodeTypes)
	return out
}

func (t NodeType) Valid() bool {
	for _, candidate := range nodeTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func (t NodeType) String() string { return string(t) }

type EdgeType string

const (
	EdgeTypeDefault     EdgeType = "default"
	EdgeTypeConditional EdgeType = "conditional"
	EdgeTypeParallel    EdgeType = "parallel"
	EdgeTypeError       EdgeType = "error"
)

func (t EdgeType) Valid() bool {
	switch t {
	case EdgeTypeDefault, EdgeTypeConditional, EdgeTypeParallel, EdgeTypeError:
		return true
	}
	return false
}

type VariableType string

const (
	VariableTypeString  VariableType = "string"
	VariableTypeNumber  VariableType = "number"
	VariableTypeBoolean VariableType = "boolean"
	VariableTypeObject  VariableType = "object"
)

func (t VariableType) Valid() bool {
	switch t {
	case VariableTypeString, VariableTypeNumber, VariableTypeBoolean, VariableTypeObject:
		return true
	}
	return false
}

// Definition is the persisted flow document.
type Definition struct {
	FlowID      string              `json:"flowId" yaml:"flowId" validate:"required"`
	Name        string              `json:"name" yaml:"name"`
	Version     string              `json:"version" yaml:"version"`
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Metadata    *Metadata           `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Triggers    []string            `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Variables   map[string]Variable `json:"variables,omitempty" yaml:"variables,omitempty" validate:"dive"`
	Nodes       []Node              `json:"nodes" yaml:"nodes" validate:"dive"`
	Edges       []Edge              `json:"edges" yaml:"edges" validate:"dive"`
}

type Metadata struct {
	Category  string   `json:"category,omitempty" yaml:"category,omitempty"`
	Tags      []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Author    string   `json:"author,omitempty" yaml:"author,omitempty"`
	CreatedAt string   `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Variable is a flow-level variable referenced from text as {{name}}.
type Variable struct {
	Name    string       `json:"name" yaml:"name" validate:"required"`
	Type    VariableType `json:"type" yaml:"type" validate:"required,variable_type"`
	Default any          `json:"default,omitempty" yaml:"default,omitempty"`
}

type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// IsZero reports the (0,0) origin, which is also what an unset position looks like.
func (p Position) IsZero() bool {
	return p.X == 0 && p.Y == 0
}

type Node struct {
	ID         string         `json:"id" yaml:"id" validate:"required"`
	Type       NodeType       `json:"type" yaml:"type" validate:"required,node_type"`
	Position   Position       `json:"position" yaml:"position"`
	Properties map[string]any `json:"properties" yaml:"properties"`
}

type EdgeCondition struct {
	Variable string `json:"variable" yaml:"variable"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
}

type Edge struct {
	ID           string         `json:"id" yaml:"id" validate:"required"`
	Type         EdgeType       `json:"type" yaml:"type" validate:"required,edge_type"`
	Source       string         `json:"source" yaml:"source" validate:"required"`
	Target       EdgeTarget     `json:"target" yaml:"target"`
	SourceHandle string         `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string         `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
	Condition    *EdgeCondition `json:"condition,omitempty" yaml:"condition,omitempty"`
	WaitForAll   *bool          `json:"waitForAll,omitempty" yaml:"waitForAll,omitempty"`
	ErrorType    string         `json:"errorType,omitempty" yaml:"errorType,omitempty"`
}

// NodeByID returns the node with id, if present.
func (d *Definition) NodeByID(id string) (*Node, bool) {
	if d == nil {
		return nil, false
	}
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the definition.
func (d Definition) Clone() Definition {
	out := d
	if d.Metadata != nil {
		md := *d.Metadata
		md.Tags = cloneStrings(d.Metadata.Tags)
		out.Metadata = &md
	}
	out.Triggers = cloneStrings(d.Triggers)
	if d.Variables != nil {
		out.Variables = make(map[string]Variable, len(d.Variables))
		for k, v := range d.Variables {
			v.Default = CloneValue(v.Default)
			out.Variables[k] = v
		}
	}
	if d.Nodes != nil {
		out.Nodes = make([]Node, len(d.Nodes))
		for i, n := range d.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	if d.Edges != nil {
		out.Edges = make([]Edge, len(d.Edges))
		for i, e := range d.Edges {
			out.Edges[i] = e.Clone()
		}
	}
	return out
}

func (n Node) Clone() Node {
	out := n
	out.Properties = CloneProperties(n.Properties)
	return out
}

func (e Edge) Clone() Edge {
	out := e
	out.Target = e.Target.Clone()
	if e.Condition != nil {
		c := *e.Condition
		c.Value = CloneValue(e.Condition.Value)
		out.Condition = &c
	}
	if e.WaitForAll != nil {
		w := *e.WaitForAll
		out.WaitForAll = &w
	}
	return out
}

// CloneProperties deep copies a property tree.
func CloneProperties(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out, _ := CloneValue(props).(map[string]any)
	return out
}

// CloneValue deep copies maps and slices found in JSON-like values.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = CloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = CloneValue(item)
		}
		return out
	case []string:
		return cloneStrings(t)
	default:
		return v
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
