package graph

import (
	"fmt"
	"slices"

	"github.com/goliatone/go-flow-designer/flow"
	"github.com/goliatone/go-flow-designer/schema"
)

const (
	DiagCodeMissingSchema    = "FLW010_MISSING_SCHEMA"
	DiagCodeUnknownHandle    = "FLW011_UNKNOWN_HANDLE"
	DiagCodePropertyMismatch = "FLW012_PROPERTY_MISMATCH"
)

// Diagnose extends flow.Diagnose with checks that need node schemas: node
// properties against their fields and edge handles against derived ports.
func Diagnose(def flow.Definition, registry *schema.Registry) []flow.Diagnostic {
	if registry == nil {
		registry = schema.Default()
	}
	diags := flow.Diagnose(def)

	ports := make(map[string][2][]string, len(def.Nodes))
	for i, n := range def.Nodes {
		if !n.Type.Valid() {
			// reported by the struct rules already
			continue
		}
		s, err := registry.Get(n.Type)
		if err != nil {
			diags = append(diags, flow.Diagnostic{
				Code:     DiagCodeMissingSchema,
				Severity: flow.SeverityError,
				Message:  err.Error(),
				Path:     fmt.Sprintf("$.nodes[%d].type", i),
				NodeID:   n.ID,
				Field:    "type",
			})
			continue
		}
		in, out := s.Ports(n.Properties)
		ports[n.ID] = [2][]string{in, out}
		for _, issue := range s.Check(n.Properties) {
			diags = append(diags, flow.Diagnostic{
				Code:     DiagCodePropertyMismatch,
				Severity: flow.SeverityWarning,
				Message:  issue.Message,
				Path:     fmt.Sprintf("$.nodes[%d].properties.%s", i, issue.Path),
				NodeID:   n.ID,
				Field:    issue.Path,
			})
		}
	}

	for i, e := range def.Edges {
		if p, ok := ports[e.Source]; ok && e.SourceHandle != "" && !slices.Contains(p[1], e.SourceHandle) {
			diags = append(diags, flow.Diagnostic{
				Code:     DiagCodeUnknownHandle,
				Severity: flow.SeverityWarning,
				Message:  fmt.Sprintf("source handle %q is not an output of %q", e.SourceHandle, e.Source),
				Path:     fmt.Sprintf("$.edges[%d].sourceHandle", i),
				EdgeID:   e.ID,
				Field:    "sourceHandle",
			})
		}
		if e.TargetHandle == "" {
			continue
		}
		for _, target := range e.Target.IDs() {
			if p, ok := ports[target]; ok && !slices.Contains(p[0], e.TargetHandle) {
				diags = append(diags, flow.Diagnostic{
					Code:     DiagCodeUnknownHandle,
					Severity: flow.SeverityWarning,
					Message:  fmt.Sprintf("target handle %q is not an input of %q", e.TargetHandle, target),
					Path:     fmt.Sprintf("$.edges[%d].targetHandle", i),
					EdgeID:   e.ID,
					Field:    "targetHandle",
				})
			}
		}
	}
	flow.SortDiagnostics(diags)
	return diags
}
