package editor

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-errors"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/form"
	"github.com/goliatone/go-flow-designer/graph"
	"github.com/goliatone/go-flow-designer/schema"
)

// Action is an edit applied to a session. Every action is a Message so it
// can travel over the host channel and be validated before it runs.
type Action interface {
	designer.Message
	apply(e *edit) error
}

// Message types, also used as host channel topics.
const (
	TypeAddNode             = "editor.node.add"
	TypeRemoveNode          = "editor.node.remove"
	TypeMoveNode            = "editor.node.move"
	TypeConnect             = "editor.edge.connect"
	TypeRemoveEdge          = "editor.edge.remove"
	TypeUpdateProperty      = "editor.property.update"
	TypeInputProperty       = "editor.property.input"
	TypeUnsetProperty       = "editor.property.unset"
	TypeReplaceProperties   = "editor.property.replace"
	TypeAppendListItem      = "editor.list.append"
	TypeRemoveListItem      = "editor.list.remove"
	TypeMoveListItem        = "editor.list.move"
	TypeAddEntry            = "editor.entry.add"
	TypeRenameKey           = "editor.entry.rename"
	TypeDeleteKey           = "editor.entry.delete"
	TypeAddTreeOption       = "editor.tree.option.add"
	TypeRemoveTreeOption    = "editor.tree.option.remove"
	TypeAddChildQuestion    = "editor.tree.child.add"
	TypeRemoveChildQuestion = "editor.tree.child.remove"
	TypeUpdateMeta          = "editor.meta.update"
	TypeSetVariable         = "editor.variable.set"
	TypeRenameVariable      = "editor.variable.rename"
	TypeRemoveVariable      = "editor.variable.remove"
	TypeRunLayout           = "editor.layout.run"
)

// edit is the working copy an action mutates. The session commits it only
// when the action succeeds.
type edit struct {
	transformer *graph.Transformer
	graph       graph.Graph
	meta        graph.Meta
	layout      bool
}

func (e *edit) schema(nodeID string) (graph.Node, *schema.Schema, error) {
	n, ok := e.graph.Node(nodeID)
	if !ok {
		return n, nil, designer.NewError(fmt.Sprintf("node %q not found", nodeID), errors.CategoryBadInput,
			designer.CodeNodeNotFound, map[string]any{"node_id": nodeID})
	}
	s, err := e.transformer.Registry().Get(n.Data.Type)
	return n, s, err
}

// properties runs fn over a copy of the properties of nodeID and stores
// the result, re-deriving the node's ports.
func (e *edit) properties(nodeID string, fn func(props map[string]any) (map[string]any, error)) error {
	n, ok := e.graph.Node(nodeID)
	if !ok {
		return designer.NewError(fmt.Sprintf("node %q not found", nodeID), errors.CategoryBadInput,
			designer.CodeNodeNotFound, map[string]any{"node_id": nodeID})
	}
	props, err := fn(n.Data.Properties)
	if err != nil {
		return err
	}
	g, err := e.transformer.UpdateProperties(e.graph, nodeID, props)
	if err != nil {
		return err
	}
	e.graph = g
	return nil
}

func validateAction(a any) error {
	err := flow.StructValidator().Struct(a)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
		return errors.New("invalid action: "+strings.Join(fields, ", "), errors.CategoryValidation).
			WithMetadata(map[string]any{"fields": fields})
	}
	return errors.Wrap(err, errors.CategoryValidation, "invalid action")
}

func requirePath(p form.Path) error {
	if len(p) == 0 {
		return errors.New("path is required", errors.CategoryValidation)
	}
	return nil
}

// AddNode places a new node seeded with its schema defaults. Without an
// id the next free "<type>_<n>" is used; without a position the node is
// stacked below the existing ones.
type AddNode struct {
	NodeType   flow.NodeType  `json:"nodeType" validate:"required,node_type"`
	ID         string         `json:"id,omitempty"`
	Position   *flow.Position `json:"position,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

func (AddNode) Type() string      { return TypeAddNode }
func (a AddNode) Validate() error { return validateAction(a) }

func (a AddNode) apply(e *edit) error {
	id := a.ID
	if id == "" {
		id = graph.UniqueNodeID(a.NodeType, e.graph.Nodes)
	}
	pos := DefaultPosition(len(e.graph.Nodes))
	if a.Position != nil {
		pos = *a.Position
	}
	n, err := e.transformer.NewNode(a.NodeType, id, pos)
	if err != nil {
		return err
	}
	for k, v := range a.Properties {
		n.Data.Properties[k] = flow.CloneValue(flow.NormalizeValue(v))
	}
	if n, err = e.transformer.Refresh(n); err != nil {
		return err
	}
	g, err := e.graph.AddNode(n)
	if err != nil {
		return err
	}
	e.graph = g
	return nil
}

// DefaultPosition is where the n-th node lands when added without one.
func DefaultPosition(n int) flow.Position {
	return flow.Position{X: 400, Y: 100 + 80*float64(n)}
}

type RemoveNode struct {
	NodeID string `json:"nodeId" validate:"required"`
}

func (RemoveNode) Type() string      { return TypeRemoveNode }
func (a RemoveNode) Validate() error { return validateAction(a) }

func (a RemoveNode) apply(e *edit) error {
	g, err := e.graph.RemoveNode(a.NodeID)
	if err != nil {
		return err
	}
	e.graph = g
	return nil
}

type MoveNode struct {
	NodeID   string        `json:"nodeId" validate:"required"`
	Position flow.Position `json:"position"`
}

func (MoveNode) Type() string      { return TypeMoveNode }
func (a MoveNode) Validate() error { return validateAction(a) }

func (a MoveNode) apply(e *edit) error {
	g, err := e.graph.MoveNode(a.NodeID, a.Position)
	if err != nil {
		return err
	}
	e.graph = g
	return nil
}

type Connect struct {
	graph.Connection
}

func (Connect) Type() string      { return TypeConnect }
func (a Connect) Validate() error { return validateAction(a.Connection) }

func (a Connect) apply(e *edit) error {
	g, _, err := e.graph.Connect(a.Connection)
	if err != nil {
		return err
	}
	e.graph = g
	return nil
}

type RemoveEdge struct {
	EdgeID string `json:"edgeId" validate:"required"`
}

func (RemoveEdge) Type() string      { return TypeRemoveEdge }
func (a RemoveEdge) Validate() error { return validateAction(a) }

func (a RemoveEdge) apply(e *edit) error {
	g, err := e.graph.RemoveEdge(a.EdgeID)
	if err != nil {
		return err
	}
	e.graph = g
	return nil
}

// UpdateProperty sets the value at Path in a node's property tree.
type UpdateProperty struct {
	NodeID string    `json:"nodeId" validate:"required"`
	Path   form.Path `json:"path"`
	Value  any       `json:"value"`
}

func (UpdateProperty) Type() string { return TypeUpdateProperty }

func (a UpdateProperty) Validate() error {
	if err := validateAction(a); err != nil {
		return err
	}
	return requirePath(a.Path)
}

func (a UpdateProperty) apply(e *edit) error {
	return e.properties(a.NodeID, func(props map[string]any) (map[string]any, error) {
		return form.Set(props, a.Path, flow.NormalizeValue(a.Value))
	})
}

// InputProperty sets a primitive field from the raw text typed into it,
// coerced by the field kind. Input that coerces to nothing unsets the field.
type InputProperty struct {
	NodeID string    `json:"nodeId" validate:"required"`
	Path   form.Path `json:"path"`
	Text   string    `json:"text"`
}

func (InputProperty) Type() string { return TypeInputProperty }

func (a InputProperty) Validate() error {
	if err := validateAction(a); err != nil {
		return err
	}
	return requirePath(a.Path)
}

func (a InputProperty) apply(e *edit) error {
	_, s, err := e.schema(a.NodeID)
	if err != nil {
		return err
	}
	field, ok := form.FieldAt(s.Fields, a.Path)
	if !ok {
		return designer.NewError(fmt.Sprintf("no field at %s", a.Path), errors.CategoryBadInput,
			designer.CodePathInvalid, map[string]any{"path": a.Path.String()})
	}
	value, err := form.ParseInput(field, a.Text)
	if err != nil {
		return err
	}
	return e.properties(a.NodeID, func(props map[string]any) (map[string]any, error) {
		if value == nil {
			return form.Unset(props, a.Path)
		}
		return form.Set(props, a.Path, value)
	})
}

type UnsetProperty struct {
	NodeID string    `json:"nodeId" validate:"required"`
	Path   form.Path `json:"path"`
}

func (UnsetProperty) Type() string { return TypeUnsetProperty }

func (a UnsetProperty) Validate() error {
	if err := validateAction(a); err != nil {
		return err
	}
	return requirePath(a.Path)
}

func (a UnsetProperty) apply(e *edit) error {
	return e.properties(a.NodeID, func(props map[string]any) (map[string]any, error) {
		return form.Unset(props, a.Path)
	})
}

// ReplaceProperties swaps the whole property tree, as the JSON view does.
type ReplaceProperties struct {
	NodeID     string         `json:"nodeId" validate:"required"`
	Properties map[string]any `json:"properties"`
}

func (ReplaceProperties) Type() string      { return TypeReplaceProperties }
func (a ReplaceProperties) Validate() error { return validateAction(a) }

func (a ReplaceProperties) apply(e *edit) error {
	return e.properties(a.NodeID, func(map[string]any) (map[string]any, error) {
		props, _ := flow.NormalizeValue(flow.CloneProperties(a.Properties)).(map[string]any)
		if props == nil {
			props = map[string]any{}
		}
		return props, nil
	})
}

// AppendListItem adds Item, or the field's default item, to the list at Path.
type AppendListItem struct {
	NodeID string    `json:"nodeId" validate:"required"`
	Path   form.Path `json:"path"`
	Item   any       `json:"item,omitempty"`
}

func (AppendListItem) Type() string { return TypeAppendListItem }

func (a AppendListItem) Validate() error {
	if err := validateAction(a); err != nil {
		return err
	}
	return requirePath(a.Path)
}

func (a AppendListItem) apply(e *edit) error {
	item := flow.NormalizeValue(a.Item)
	if item == nil {
		_, s, err := e.schema(a.NodeID)
		if err != nil {
			return err
		}
		if field, ok := form.FieldAt(s.Fields, a.Path); ok && field.DefaultItem != nil {
			item = flow.CloneValue(field.DefaultItem)
		} else {
			item = map[string]any{}
		}
	}
	return e.properties(a.NodeID, func(props map[string]any) (map[string]any, error) {
		return form.AppendItem(props, a.Path, item)
	})
}

type RemoveListItem struct {
	NodeID string    `json:"nodeId" validate:"required"`
	Path   form.Path `json:"path"`
	Index  int       `json:"index" validate:"gte=0"`
}

func (RemoveListItem) Type() string { return TypeRemoveListItem }

func (a RemoveListItem) Validate() error {
	if err := validateAction(a); err != nil {
		return err
	}
	return requirePath(a.Path)
}

func (a RemoveListItem) apply(e *edit) error {
	return e.properties(a.NodeID, func(props map[string]any) (map[string]any, error) {
		return form.RemoveItem(props, a.Path, a.Index)
	})
}

type MoveListItem struct {
	NodeID string    `json:"nodeId" validate:"required"`
	Path   form.Path `json:"path"`
	From   int       `json:"from" validate:"gte=0"`
	To     int       `json:"to" validate:"gte=0"`
}

func (MoveListItem) Type() string { return TypeMoveListItem }

func (a MoveListItem) Validate() error {
	if err := validateAction(a); err != nil {
		return err
	}
	return requirePath(a.Path)
}

func (a MoveListItem) apply(e *edit) error {
	return e.properties(a.NodeID, func(props map[string]any) (map[string]any, error) {
		return form.MoveItem(props, a.Path, a.From, a.To)
	})
}

type AddEntry struct {
	NodeID string    `json:"nodeId" validate:"required"`
	Path   form.Path `json:"path"`
}

func (AddEntry) Type() string { return TypeAddEntry }

func (a AddEntry) Validate() error {
	if err := validateAction(a); err != nil {
		return err
	}
	return requirePath(a.Path)
}

func (a AddEntry) apply(e *edit) error {
	return e.properties(a.NodeID, func(props map[string]any) (map[string]any, error) {
		return form.AddEntry(props, a.Path)
	})
}

type RenameKey struct {
	NodeID string    `json:"nodeId" validate:"required"`
	Path   form.Path `json:"path"`
	OldKey string    `json:"oldKey" validate:"required"`
	NewKey string    `json:"newKey" validate:"required"`
}

func (RenameKey) Type() string { return TypeRenameKey }

func (a RenameKey) Validate() error {
	if err := validateAction(a); err != nil {
		return err
	}
	return requirePath(a.Path)
}

func (a RenameKey) apply(e *edit) error {
	return e.properties(a.NodeID, func(props map[string]any) (map[string]any, error) {
		return form.RenameKey(props, a.Path, a.OldKey, a.NewKey)
	})
}

type DeleteKey struct {
	NodeID string    `json:"nodeId" validate:"required"`
	Path   form.Path `json:"path"`
	Key    string    `json:"key" validate:"required"`
}

func (DeleteKey) Type() string { return TypeDeleteKey }

func (a DeleteKey) Validate() error {
	if err := validateAction(a); err != nil {
		return err
	}
	return requirePath(a.Path)
}

func (a DeleteKey) apply(e *edit) error {
	return e.properties(a.NodeID, func(props map[string]any) (map[string]any, error) {
		return form.DeleteKey(props, a.Path, a.Key)
	})
}

// TreeEdit addresses a question inside a decision tree property. Path
// points at the question object, for example "tree" or
// "tree.options[0].children".
type TreeEdit struct {
	NodeID string    `json:"nodeId" validate:"required"`
	Path   form.Path `json:"path"`
	Index  int       `json:"index" validate:"gte=0"`
}

func (t TreeEdit) validate() error {
	if err := validateAction(t); err != nil {
		return err
	}
	return requirePath(t.Path)
}

type AddTreeOption struct{ TreeEdit }

func (AddTreeOption) Type() string      { return TypeAddTreeOption }
func (a AddTreeOption) Validate() error { return a.validate() }

func (a AddTreeOption) apply(e *edit) error {
	return e.properties(a.NodeID, func(props map[string]any) (map[string]any, error) {
		return form.AddTreeOption(props, a.Path)
	})
}

type RemoveTreeOption struct{ TreeEdit }

func (RemoveTreeOption) Type() string      { return TypeRemoveTreeOption }
func (a RemoveTreeOption) Validate() error { return a.validate() }

func (a RemoveTreeOption) apply(e *edit) error {
	return e.properties(a.NodeID, func(props map[string]any) (map[string]any, error) {
		return form.RemoveTreeOption(props, a.Path, a.Index)
	})
}

type AddChildQuestion struct{ TreeEdit }

func (AddChildQuestion) Type() string      { return TypeAddChildQuestion }
func (a AddChildQuestion) Validate() error { return a.validate() }

func (a AddChildQuestion) apply(e *edit) error {
	return e.properties(a.NodeID, func(props map[string]any) (map[string]any, error) {
		return form.AddChildQuestion(props, a.Path, a.Index)
	})
}

type RemoveChildQuestion struct{ TreeEdit }

func (RemoveChildQuestion) Type() string      { return TypeRemoveChildQuestion }
func (a RemoveChildQuestion) Validate() error { return a.validate() }

func (a RemoveChildQuestion) apply(e *edit) error {
	return e.properties(a.NodeID, func(props map[string]any) (map[string]any, error) {
		return form.RemoveChildQuestion(props, a.Path, a.Index)
	})
}

// UpdateMeta changes document level fields. Nil fields are left alone.
// Changing FlowID renames the loaded flow; the stored copy under the old id
// is left in place.
type UpdateMeta struct {
	FlowID      *string        `json:"flowId,omitempty"`
	Name        *string        `json:"name,omitempty"`
	Version     *string        `json:"version,omitempty"`
	Description *string        `json:"description,omitempty"`
	Triggers    []string       `json:"triggers,omitempty"`
	Metadata    *flow.Metadata `json:"metadata,omitempty"`
}

func (UpdateMeta) Type() string { return TypeUpdateMeta }

func (a UpdateMeta) Validate() error {
	if a.FlowID != nil && strings.TrimSpace(*a.FlowID) == "" {
		return designer.NewError("flowId cannot be empty", errors.CategoryValidation, designer.CodeInvalidMessage)
	}
	return nil
}

func (a UpdateMeta) apply(e *edit) error {
	m := e.meta.Clone()
	if a.FlowID != nil {
		m.FlowID = strings.TrimSpace(*a.FlowID)
	}
	if a.Name != nil {
		m.Name = *a.Name
	}
	if a.Version != nil {
		m.Version = *a.Version
	}
	if a.Description != nil {
		m.Description = *a.Description
	}
	if a.Triggers != nil {
		m.Triggers = append([]string{}, a.Triggers...)
	}
	if a.Metadata != nil {
		md := *a.Metadata
		md.Tags = append([]string(nil), a.Metadata.Tags...)
		m.Metadata = &md
	}
	e.meta = m
	return nil
}

// SetVariable adds or replaces variable Key. The variable name follows the key.
type SetVariable struct {
	Key      string        `json:"key" validate:"required"`
	Variable flow.Variable `json:"variable"`
}

func (SetVariable) Type() string { return TypeSetVariable }

func (a SetVariable) Validate() error {
	v := a
	if v.Variable.Name == "" {
		v.Variable.Name = v.Key
	}
	return validateAction(v)
}

func (a SetVariable) apply(e *edit) error {
	m := e.meta.Clone()
	if m.Variables == nil {
		m.Variables = map[string]flow.Variable{}
	}
	v := a.Variable
	v.Name = a.Key
	v.Default = flow.CloneValue(flow.NormalizeValue(v.Default))
	m.Variables[a.Key] = v
	e.meta = m
	return nil
}

type RenameVariable struct {
	OldKey string `json:"oldKey" validate:"required"`
	NewKey string `json:"newKey" validate:"required"`
}

func (RenameVariable) Type() string      { return TypeRenameVariable }
func (a RenameVariable) Validate() error { return validateAction(a) }

func (a RenameVariable) apply(e *edit) error {
	m := e.meta.Clone()
	v, ok := m.Variables[a.OldKey]
	if !ok {
		return variableNotFound(a.OldKey)
	}
	if _, taken := m.Variables[a.NewKey]; taken && a.NewKey != a.OldKey {
		return designer.NewError(fmt.Sprintf("variable %q already exists", a.NewKey), errors.CategoryConflict,
			designer.CodeInputInvalid, map[string]any{"variable": a.NewKey})
	}
	delete(m.Variables, a.OldKey)
	v.Name = a.NewKey
	m.Variables[a.NewKey] = v
	e.meta = m
	return nil
}

type RemoveVariable struct {
	Key string `json:"key" validate:"required"`
}

func (RemoveVariable) Type() string      { return TypeRemoveVariable }
func (a RemoveVariable) Validate() error { return validateAction(a) }

func (a RemoveVariable) apply(e *edit) error {
	m := e.meta.Clone()
	if _, ok := m.Variables[a.Key]; !ok {
		return variableNotFound(a.Key)
	}
	delete(m.Variables, a.Key)
	e.meta = m
	return nil
}

func variableNotFound(key string) error {
	return designer.NewError(fmt.Sprintf("variable %q not found", key), errors.CategoryBadInput,
		designer.CodeInputInvalid, map[string]any{"variable": key})
}

// RunLayout asks for a manual layout of every node.
type RunLayout struct{}

func (RunLayout) Type() string    { return TypeRunLayout }
func (RunLayout) Validate() error { return nil }

func (RunLayout) apply(e *edit) error {
	e.layout = true
	return nil
}
