package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/goliatone/go-errors"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/data"
	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/graph"
	"github.com/goliatone/go-flow-designer/layout"
	"github.com/goliatone/go-flow-designer/variables"
)

func (a *app) read(path string) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	if path == "" || path == "-" {
		raw, err = io.ReadAll(a.in)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "cannot read input").
			WithTextCode(designer.CodeInputInvalid).
			WithMetadata(map[string]any{"path": path})
	}
	return raw, nil
}

func (a *app) readFlow(path string) (flow.Definition, error) {
	raw, err := a.read(path)
	if err != nil {
		return flow.Definition{}, err
	}
	return flow.ParseUnchecked(raw)
}

func (a *app) write(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) transformer() *graph.Transformer {
	return graph.NewTransformer(graph.WithLogger(a.logger))
}

func (a *app) layoutAdapter(direction string) *layout.Adapter {
	if direction == "" {
		direction = a.cfg.Editor.LayoutDirection
	}
	return layout.NewAdapter(
		layout.WithLogger(a.logger),
		layout.WithOption(layout.OptDirection, strings.ToUpper(direction)),
	)
}

type graphCmd struct {
	File string `arg:"" optional:"" help:"Flow document (JSON or YAML), - for stdin." default:"-"`
}

func (c *graphCmd) Run(a *app) error {
	def, err := a.readFlow(c.File)
	if err != nil {
		return err
	}
	g, err := a.transformer().ToGraph(def)
	if err != nil {
		return err
	}
	return a.write(graphDocument{Meta: graph.MetaOf(def), Nodes: g.Nodes, Edges: g.Edges})
}

// graphDocument is what graph prints and document reads.
type graphDocument struct {
	Meta  graph.Meta   `json:"meta"`
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

type documentCmd struct {
	File string `arg:"" optional:"" help:"Graph JSON as printed by graph, - for stdin." default:"-"`
}

func (c *documentCmd) Run(a *app) error {
	raw, err := a.read(c.File)
	if err != nil {
		return err
	}
	var in graphDocument
	if err := json.Unmarshal(raw, &in); err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "graph input is not valid JSON").
			WithTextCode(designer.CodeJSONInvalid)
	}
	return a.write(a.transformer().ToDocument(in.Meta, in.Nodes, in.Edges))
}

type layoutCmd struct {
	File      string `arg:"" optional:"" help:"Flow document, - for stdin." default:"-"`
	Direction string `help:"Layout direction, overrides editor.layout_direction." enum:",RIGHT,LEFT,DOWN,UP" default:""`
	Force     bool   `help:"Lay out even when nodes already carry positions."`
}

func (c *layoutCmd) Run(a *app) error {
	def, err := a.readFlow(c.File)
	if err != nil {
		return err
	}
	t := a.transformer()
	g, err := t.ToGraph(def)
	if err != nil {
		return err
	}
	if !c.Force && layout.IsLayoutInitialized(g.Nodes) {
		a.logger.Info("flow already has positions, use --force to lay it out again", "flow_id", def.FlowID)
		return a.write(def)
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Editor.LayoutTimeout)
	defer cancel()
	nodes, err := a.layoutAdapter(c.Direction).Apply(ctx, g.Nodes, g.Edges)
	if err != nil {
		return err
	}
	return a.write(t.ToDocument(graph.MetaOf(def), nodes, g.Edges))
}

type validateCmd struct {
	File     string `arg:"" optional:"" help:"Flow document, - for stdin." default:"-"`
	Warnings bool   `help:"Fail on warnings as well as errors."`
}

func (c *validateCmd) Run(a *app) error {
	def, err := a.readFlow(c.File)
	if err != nil {
		return err
	}
	diags := graph.Diagnose(def, nil)
	if err := a.write(diags); err != nil {
		return err
	}
	failed := flow.HasErrors(diags) || (c.Warnings && len(diags) > 0)
	if failed {
		return designer.NewError("flow has diagnostics", errors.CategoryValidation, designer.CodeFlowInvalid,
			map[string]any{"flow_id": def.FlowID, "count": len(diags)})
	}
	return nil
}

type varsCmd struct {
	File string `arg:"" optional:"" help:"Flow document, - for stdin." default:"-"`
}

// nodeVariables lists the references found in one node's properties.
type nodeVariables struct {
	NodeID     string   `json:"nodeId"`
	References []string `json:"references"`
	Undefined  []string `json:"undefined,omitempty"`
}

func (c *varsCmd) Run(a *app) error {
	def, err := a.readFlow(c.File)
	if err != nil {
		return err
	}
	out := struct {
		Declared []string        `json:"declared"`
		Nodes    []nodeVariables `json:"nodes"`
	}{Declared: make([]string, 0, len(def.Variables)), Nodes: []nodeVariables{}}

	for name := range def.Variables {
		out.Declared = append(out.Declared, name)
	}
	sort.Strings(out.Declared)

	for _, n := range def.Nodes {
		refs := variables.ExtractFromValue(n.Properties)
		if len(refs) == 0 {
			continue
		}
		out.Nodes = append(out.Nodes, nodeVariables{
			NodeID:     n.ID,
			References: refs,
			Undefined:  variables.FindUndefinedInValue(n.Properties, def.Variables),
		})
	}
	return a.write(out)
}

type schemasCmd struct {
	Type string `arg:"" optional:"" help:"Node type to describe, all when empty."`
}

func (c *schemasCmd) Run(a *app) error {
	registry := a.transformer().Registry()
	if c.Type == "" {
		return a.write(registry.Describe())
	}
	s, err := registry.Get(flow.NodeType(c.Type))
	if err != nil {
		return err
	}
	return a.write(s.Describe())
}

type sampleCmd struct {
	ID string `arg:"" optional:"" help:"Embedded flow id." default:"credit_application_flow"`
}

func (c *sampleCmd) Run(a *app) error {
	raw, err := data.Raw(c.ID)
	if err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "no embedded flow with that id").
			WithTextCode(designer.CodeFlowNotFound).
			WithMetadata(map[string]any{"flow_id": c.ID, "available": data.Names()})
	}
	_, err = a.out.Write(raw)
	return err
}

type jsonSchemaCmd struct{}

func (c *jsonSchemaCmd) Run(a *app) error {
	raw, err := flow.JSONSchemaBytes()
	if err != nil {
		return err
	}
	if _, err := a.out.Write(raw); err != nil {
		return err
	}
	_, err = io.WriteString(a.out, "\n")
	return err
}
