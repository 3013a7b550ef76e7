package form

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-errors"

	designer "github.com/goliatone/go-flow-designer"
)

// Segment is one step of a Path: an object key or a list index.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key addresses an object entry.
func Key(k string) Segment {
	return Segment{key: k}
}

// Index addresses a list item.
func Index(i int) Segment {
	return Segment{index: i, isIndex: true}
}

func (s Segment) IsIndex() bool {
	return s.isIndex
}

func (s Segment) Name() string {
	return s.key
}

func (s Segment) Position() int {
	return s.index
}

func (s Segment) String() string {
	if s.isIndex {
		return "[" + strconv.Itoa(s.index) + "]"
	}
	return s.key
}

// Path addresses a value from the root of a property tree.
type Path []Segment

// P builds a path from strings (keys) and ints (indices).
func P(parts ...any) Path {
	out := make(Path, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case int:
			out = append(out, Index(v))
		case string:
			out = append(out, Key(v))
		case Segment:
			out = append(out, v)
		default:
			out = append(out, Key(fmt.Sprint(v)))
		}
	}
	return out
}

// Append returns a new path with segs added. The receiver is not modified.
func (p Path) Append(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

func (p Path) String() string {
	var sb strings.Builder
	for i, s := range p {
		if !s.isIndex && i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s.String())
	}
	return sb.String()
}

func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// MarshalText renders the dotted form so paths travel as JSON strings.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Path) UnmarshalText(text []byte) error {
	parsed, err := ParsePath(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePath reads "validation.min" or "buttons[0].text" style paths.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Path{}, nil
	}
	out := Path{}
	i := 0
	for i < len(s) {
		switch s[i] {
		case '.':
			i++
			if i >= len(s) || s[i] == '.' || s[i] == '[' {
				return nil, pathSyntaxError(s, i)
			}
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, pathSyntaxError(s, i)
			}
			n, err := strconv.Atoi(s[i+1 : i+end])
			if err != nil || n < 0 {
				return nil, pathSyntaxError(s, i)
			}
			out = append(out, Index(n))
			i += end + 1
		default:
			j := i
			for j < len(s) && s[j] != '.' && s[j] != '[' {
				j++
			}
			out = append(out, Key(s[i:j]))
			i = j
		}
	}
	return out, nil
}

func pathSyntaxError(s string, at int) error {
	return errors.New(fmt.Sprintf("invalid path %q at offset %d", s, at), errors.CategoryBadInput).
		WithTextCode(designer.CodePathInvalid).
		WithMetadata(map[string]any{"path": s})
}
