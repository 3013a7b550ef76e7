package router

import "strings"

// Matcher matches topics against wildcard patterns. "*" and "+" match one
// segment, "#" matches zero or more.
type Matcher struct {
	// Separator splits patterns and topics, "." when empty.
	Separator string
	// FinalWildcardOnly restricts "#" to the last pattern segment.
	FinalWildcardOnly bool
}

func (m Matcher) Match(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	sep := m.Separator
	if sep == "" {
		sep = "."
	}
	p := strings.Split(pattern, sep)
	t := strings.Split(topic, sep)
	if m.FinalWildcardOnly {
		return matchTrailing(p, t)
	}
	return matchAnywhere(p, t)
}

func isSingle(part string) bool {
	return part == "*" || part == "+"
}

func matchTrailing(pattern, topic []string) bool {
	for i, part := range pattern {
		if part == "#" {
			return i == len(pattern)-1
		}
		if i >= len(topic) {
			return false
		}
		if !isSingle(part) && part != topic[i] {
			return false
		}
	}
	return len(pattern) == len(topic)
}

// matchAnywhere allows "#" in any position. row[j] holds whether the
// pattern prefix consumed so far matches the first j topic segments.
func matchAnywhere(pattern, topic []string) bool {
	row := make([]bool, len(topic)+1)
	row[0] = true

	for _, part := range pattern {
		next := make([]bool, len(topic)+1)
		if part == "#" {
			next[0] = row[0]
		}
		for j := 1; j <= len(topic); j++ {
			switch {
			case part == "#":
				next[j] = row[j] || next[j-1]
			case isSingle(part):
				next[j] = row[j-1]
			default:
				next[j] = row[j-1] && part == topic[j-1]
			}
		}
		row = next
	}
	return row[len(topic)]
}
