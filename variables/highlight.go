package variables

import "strings"

// Span marks one {{name}} occurrence in a text. Start and End are byte offsets
// covering the braces.
type Span struct {
	Name    string `json:"name"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Defined bool   `json:"defined"`
}

// Highlight returns every reference occurrence in text, duplicates included,
// flagged against defined.
func Highlight[V any](text string, defined map[string]V) []Span {
	idx := referencePattern.FindAllStringSubmatchIndex(text, -1)
	out := make([]Span, 0, len(idx))
	for _, m := range idx {
		name := strings.TrimSpace(text[m[2]:m[3]])
		if name == "" {
			continue
		}
		_, ok := defined[name]
		out = append(out, Span{Name: name, Start: m[0], End: m[1], Defined: ok})
	}
	return out
}

// Segment is a piece of text produced by Split: either plain text or a reference.
type Segment struct {
	Text      string `json:"text"`
	Reference bool   `json:"reference"`
	Defined   bool   `json:"defined,omitempty"`
}

// Split cuts text into plain and reference segments, for inline rendering of
// undefined references.
func Split[V any](text string, defined map[string]V) []Segment {
	spans := Highlight(text, defined)
	out := make([]Segment, 0, len(spans)*2+1)
	last := 0
	for _, s := range spans {
		if s.Start > last {
			out = append(out, Segment{Text: text[last:s.Start]})
		}
		out = append(out, Segment{Text: text[s.Start:s.End], Reference: true, Defined: s.Defined})
		last = s.End
	}
	if last < len(text) {
		out = append(out, Segment{Text: text[last:]})
	}
	return out
}
