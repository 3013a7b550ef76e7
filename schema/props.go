package schema

import "fmt"

func stringProp(props map[string]any, key string) (string, bool) {
	v, ok := props[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func stringOr(props map[string]any, key, fallback string) string {
	if s, ok := stringProp(props, key); ok {
		return s
	}
	return fallback
}

func listProp(props map[string]any, key string) []any {
	if props == nil {
		return nil
	}
	items, _ := props[key].([]any)
	return items
}

func mapProp(props map[string]any, key string) map[string]any {
	if props == nil {
		return nil
	}
	m, _ := props[key].(map[string]any)
	return m
}

// firstString returns the first key of item holding a non-empty string.
func firstString(item any, keys ...string) (string, bool) {
	m, ok := item.(map[string]any)
	if !ok {
		return "", false
	}
	for _, k := range keys {
		if s, ok := stringProp(m, k); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func count(props map[string]any, key, noun string) string {
	n := len(listProp(props, key))
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func titleItem(props map[string]any, fallback string) SummaryItem {
	return SummaryItem{Label: "Title", Value: stringOr(props, "title", fallback)}
}

func fixed(ports ...string) func(map[string]any) []string {
	return func(map[string]any) []string {
		out := make([]string, len(ports))
		copy(out, ports)
		return out
	}
}

var previousInput = fixed(DefaultInput)
