package schema

import (
	"fmt"
	"strings"
)

// Issue is a mismatch between a property tree and its field declarations.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// CheckProperties verifies that props conforms to fields. Keys without a
// field declaration are allowed; nodes may carry extra bindings.
func CheckProperties(fields []Field, props map[string]any) []Issue {
	issues := make([]Issue, 0)
	checkObject(fields, props, "", &issues)
	return issues
}

// Check runs CheckProperties with the schema's fields.
func (s *Schema) Check(props map[string]any) []Issue {
	if s == nil {
		return nil
	}
	return CheckProperties(s.Fields, props)
}

func checkObject(fields []Field, props map[string]any, prefix string, issues *[]Issue) {
	for _, f := range fields {
		path := joinPath(prefix, f.Name)
		v, ok := props[f.Name]
		if !ok || v == nil {
			if f.Required {
				*issues = append(*issues, Issue{Path: path, Message: "required field is missing"})
			}
			continue
		}
		checkValue(f, v, path, issues)
	}
}

func checkValue(f Field, v any, path string, issues *[]Issue) {
	bad := func(format string, args ...any) {
		*issues = append(*issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
	}
	switch f.Kind {
	case KindText, KindTextarea:
		s, ok := v.(string)
		if !ok {
			bad("expected string, got %T", v)
			return
		}
		if f.Required && strings.TrimSpace(s) == "" {
			bad("required field is empty")
		}
	case KindSelect:
		s, ok := v.(string)
		if !ok {
			bad("expected string, got %T", v)
			return
		}
		if len(f.Options) > 0 && !f.HasOption(s) {
			bad("value %q is not one of the options", s)
		}
	case KindNumber:
		n, ok := v.(float64)
		if !ok {
			bad("expected number, got %T", v)
			return
		}
		if f.Min != nil && n < *f.Min {
			bad("value %v is below minimum %v", n, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			bad("value %v is above maximum %v", n, *f.Max)
		}
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			bad("expected boolean, got %T", v)
		}
	case KindObject:
		m, ok := v.(map[string]any)
		if !ok {
			bad("expected object, got %T", v)
			return
		}
		checkObject(f.Fields, m, path, issues)
	case KindList:
		items, ok := v.([]any)
		if !ok {
			bad("expected list, got %T", v)
			return
		}
		for i, item := range items {
			ipath := fmt.Sprintf("%s[%d]", path, i)
			m, ok := item.(map[string]any)
			if !ok {
				*issues = append(*issues, Issue{Path: ipath, Message: fmt.Sprintf("expected object, got %T", item)})
				continue
			}
			checkObject(f.Fields, m, ipath, issues)
		}
	case KindKeyValue:
		m, ok := v.(map[string]any)
		if !ok {
			bad("expected key-value map, got %T", v)
			return
		}
		for k, item := range m {
			if _, ok := item.(string); !ok {
				*issues = append(*issues, Issue{Path: joinPath(path, k), Message: fmt.Sprintf("expected string value, got %T", item)})
			}
		}
	case KindDecisionTree:
		m, ok := v.(map[string]any)
		if !ok {
			bad("expected decision tree object, got %T", v)
			return
		}
		checkTree(m, path, issues)
	case KindJSON:
		// any JSON value
	}
}

func checkTree(node map[string]any, path string, issues *[]Issue) {
	if _, ok := node["question"].(string); !ok {
		*issues = append(*issues, Issue{Path: joinPath(path, "question"), Message: "question must be a string"})
	}
	raw, ok := node["options"]
	if !ok {
		return
	}
	opts, ok := raw.([]any)
	if !ok {
		*issues = append(*issues, Issue{Path: joinPath(path, "options"), Message: "options must be a list"})
		return
	}
	for i, o := range opts {
		opath := fmt.Sprintf("%s.options[%d]", path, i)
		m, ok := o.(map[string]any)
		if !ok {
			*issues = append(*issues, Issue{Path: opath, Message: "option must be an object"})
			continue
		}
		if child, ok := m["children"].(map[string]any); ok {
			checkTree(child, opath+".children", issues)
		}
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
