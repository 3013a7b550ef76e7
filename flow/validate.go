package flow

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-errors"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/variables"
)

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

const (
	DiagCodeParseError         = "FLW000_PARSE_ERROR"
	DiagCodeInvalidField       = "FLW001_INVALID_FIELD"
	DiagCodeDuplicateNode      = "FLW002_DUPLICATE_NODE"
	DiagCodeUnknownNodeRef     = "FLW003_UNKNOWN_NODE_REF"
	DiagCodeInvalidTargetArity = "FLW004_INVALID_TARGET_ARITY"
	DiagCodeDuplicateEdge      = "FLW005_DUPLICATE_EDGE"
	DiagCodeUndefinedVariable  = "FLW006_UNDEFINED_VARIABLE"
	DiagCodeUnreachableNode    = "FLW007_UNREACHABLE_NODE"
	DiagCodeVariableKey        = "FLW008_VARIABLE_KEY_MISMATCH"
	DiagCodeMissingStart       = "FLW009_MISSING_START"
)

// Diagnostic is a deterministic validation message for editor tooling.
type Diagnostic struct {
	Code     string `json:"code"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Path     string `json:"path"`
	NodeID   string `json:"nodeId,omitempty"`
	EdgeID   string `json:"edgeId,omitempty"`
	Field    string `json:"field,omitempty"`
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// SortDiagnostics orders diagnostics by path, node, field, code, severity and message.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.NodeID != b.NodeID {
			return a.NodeID < b.NodeID
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Severity != b.Severity {
			return a.Severity < b.Severity
		}
		return a.Message < b.Message
	})
}

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	structValidatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("node_type", func(fl validator.FieldLevel) bool {
			return NodeType(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("edge_type", func(fl validator.FieldLevel) bool {
			return EdgeType(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("variable_type", func(fl validator.FieldLevel) bool {
			return VariableType(fl.Field().String()).Valid()
		})
		structValidator = v
	})
	return structValidator
}

// StructValidator returns the shared validator with the node_type,
// edge_type and variable_type tags registered. Field names in errors
// follow the json tags.
func StructValidator() *validator.Validate {
	return getValidator()
}

// Validate returns an error when the definition has error-severity diagnostics.
func Validate(def Definition) error {
	diags := Diagnose(def)
	if !HasErrors(diags) {
		return nil
	}
	errs := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	first := errs[0]
	return errors.New(fmt.Sprintf("flow validation failed: %s (%s)", first.Message, first.Code), errors.CategoryValidation).
		WithTextCode(designer.CodeFlowInvalid).
		WithMetadata(map[string]any{
			"flow_id":     def.FlowID,
			"diagnostics": errs,
		})
}

// DiagnosticsFromError extracts the diagnostics attached by Validate.
func DiagnosticsFromError(err error) []Diagnostic {
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Metadata == nil {
		return nil
	}
	diags, _ := e.Metadata["diagnostics"].([]Diagnostic)
	return diags
}

// Diagnose runs every structural rule over def and returns sorted diagnostics.
func Diagnose(def Definition) []Diagnostic {
	diags := make([]Diagnostic, 0)
	diags = append(diags, structDiagnostics(def)...)

	nodeIndex := make(map[string]int, len(def.Nodes))
	for i, n := range def.Nodes {
		if n.ID == "" {
			continue
		}
		if prev, ok := nodeIndex[n.ID]; ok {
			diags = append(diags, Diagnostic{
				Code:     DiagCodeDuplicateNode,
				Severity: SeverityError,
				Message:  fmt.Sprintf("node id %q already used by nodes[%d]", n.ID, prev),
				Path:     fmt.Sprintf("$.nodes[%d].id", i),
				NodeID:   n.ID,
				Field:    "id",
			})
			continue
		}
		nodeIndex[n.ID] = i
	}

	edgeIDs := make(map[string]struct{}, len(def.Edges))
	for i, e := range def.Edges {
		path := fmt.Sprintf("$.edges[%d]", i)
		if e.ID != "" {
			if _, ok := edgeIDs[e.ID]; ok {
				diags = append(diags, Diagnostic{
					Code:     DiagCodeDuplicateEdge,
					Severity: SeverityError,
					Message:  fmt.Sprintf("edge id %q is not unique", e.ID),
					Path:     path + ".id",
					EdgeID:   e.ID,
					Field:    "id",
				})
			}
			edgeIDs[e.ID] = struct{}{}
		}
		if e.Source != "" {
			if _, ok := nodeIndex[e.Source]; !ok {
				diags = append(diags, Diagnostic{
					Code:     DiagCodeUnknownNodeRef,
					Severity: SeverityError,
					Message:  fmt.Sprintf("edge source %q does not reference a node", e.Source),
					Path:     path + ".source",
					EdgeID:   e.ID,
					Field:    "source",
				})
			}
		}
		if e.Target.Len() == 0 {
			diags = append(diags, Diagnostic{
				Code:     DiagCodeInvalidTargetArity,
				Severity: SeverityError,
				Message:  "edge target is required",
				Path:     path + ".target",
				EdgeID:   e.ID,
				Field:    "target",
			})
		}
		if e.Target.IsMulti() && e.Type != EdgeTypeParallel {
			diags = append(diags, Diagnostic{
				Code:     DiagCodeInvalidTargetArity,
				Severity: SeverityError,
				Message:  fmt.Sprintf("only parallel edges may have multiple targets, got %q", e.Type),
				Path:     path + ".target",
				EdgeID:   e.ID,
				Field:    "target",
			})
		}
		for j, target := range e.Target.IDs() {
			if _, ok := nodeIndex[target]; ok {
				continue
			}
			tpath := path + ".target"
			if e.Target.IsMulti() {
				tpath = fmt.Sprintf("%s[%d]", tpath, j)
			}
			diags = append(diags, Diagnostic{
				Code:     DiagCodeUnknownNodeRef,
				Severity: SeverityError,
				Message:  fmt.Sprintf("edge target %q does not reference a node", target),
				Path:     tpath,
				EdgeID:   e.ID,
				Field:    "target",
			})
		}
	}

	for key, v := range def.Variables {
		if v.Name != "" && v.Name != key {
			diags = append(diags, Diagnostic{
				Code:     DiagCodeVariableKey,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("variable key %q differs from its name %q", key, v.Name),
				Path:     fmt.Sprintf("$.variables.%s.name", key),
				Field:    "name",
			})
		}
	}

	for i, n := range def.Nodes {
		for _, name := range variables.FindUndefinedInValue(n.Properties, def.Variables) {
			diags = append(diags, Diagnostic{
				Code:     DiagCodeUndefinedVariable,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("variable {{%s}} is not declared", name),
				Path:     fmt.Sprintf("$.nodes[%d].properties", i),
				NodeID:   n.ID,
			})
		}
	}

	diags = append(diags, reachabilityDiagnostics(def)...)
	SortDiagnostics(diags)
	return diags
}

func structDiagnostics(def Definition) []Diagnostic {
	err := getValidator().Struct(def)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return []Diagnostic{{
			Code:     DiagCodeInvalidField,
			Severity: SeverityError,
			Message:  err.Error(),
			Path:     "$",
		}}
	}
	out := make([]Diagnostic, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, Diagnostic{
			Code:     DiagCodeInvalidField,
			Severity: SeverityError,
			Message:  fmt.Sprintf("%s failed %q validation (value %v)", fe.Field(), fe.Tag(), fe.Value()),
			Path:     namespacePath(fe.Namespace()),
			Field:    fe.Field(),
		})
	}
	return out
}

// namespacePath turns "Definition.nodes[0].type" into "$.nodes[0].type".
func namespacePath(ns string) string {
	if idx := strings.Index(ns, "."); idx >= 0 {
		return "$" + ns[idx:]
	}
	return "$"
}

func reachabilityDiagnostics(def Definition) []Diagnostic {
	if len(def.Nodes) == 0 {
		return nil
	}
	adjacency := make(map[string][]string)
	for _, e := range def.Edges {
		adjacency[e.Source] = append(adjacency[e.Source], e.Target.IDs()...)
	}
	queue := make([]string, 0)
	for _, n := range def.Nodes {
		if n.Type == NodeTypeStart {
			queue = append(queue, n.ID)
		}
	}
	if len(queue) == 0 {
		return []Diagnostic{{
			Code:     DiagCodeMissingStart,
			Severity: SeverityWarning,
			Message:  "flow has no start node",
			Path:     "$.nodes",
		}}
	}
	visited := make(map[string]bool, len(def.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		queue = append(queue, adjacency[id]...)
	}
	out := make([]Diagnostic, 0)
	for i, n := range def.Nodes {
		if visited[n.ID] {
			continue
		}
		out = append(out, Diagnostic{
			Code:     DiagCodeUnreachableNode,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("node %q is not reachable from a start node", n.ID),
			Path:     fmt.Sprintf("$.nodes[%d]", i),
			NodeID:   n.ID,
		})
	}
	return out
}

func parseError(err error) error {
	return errors.Wrap(err, errors.CategoryBadInput, "failed to decode flow definition").
		WithTextCode(designer.CodeFlowInvalid).
		WithMetadata(map[string]any{
			"diagnostics": []Diagnostic{{
				Code:     DiagCodeParseError,
				Severity: SeverityError,
				Message:  err.Error(),
				Path:     "$",
			}},
		})
}
