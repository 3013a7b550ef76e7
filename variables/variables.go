// Package variables finds {{name}} references in free text and classifies
// them against a flow's declared variables.
package variables

import (
	"regexp"
	"sort"
	"strings"
)

var referencePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Extract returns the distinct variable names referenced in text, in order
// of first occurrence. Whitespace inside the braces is trimmed.
func Extract(text string) []string {
	matches := referencePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// FindUndefined returns the referenced names in text missing from defined.
func FindUndefined[V any](text string, defined map[string]V) []string {
	return undefined(Extract(text), defined)
}

// Info looks up a referenced name.
func Info[V any](name string, defined map[string]V) (V, bool) {
	v, ok := defined[strings.TrimSpace(name)]
	return v, ok
}

// ExtractFromValue walks a property value and collects references found in
// any string, including map keys, in depth-first order. Map entries are
// visited in key order so the result is stable.
func ExtractFromValue(v any) []string {
	seen := map[string]struct{}{}
	out := []string{}
	var walk func(any)
	add := func(text string) {
		for _, name := range Extract(text) {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			add(t)
		case map[string]any:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				add(k)
				walk(t[k])
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		case []string:
			for _, item := range t {
				add(item)
			}
		}
	}
	walk(v)
	return out
}

// FindUndefinedInValue is FindUndefined over a nested property value.
func FindUndefinedInValue[V any](v any, defined map[string]V) []string {
	return undefined(ExtractFromValue(v), defined)
}

func undefined[V any](names []string, defined map[string]V) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := defined[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
