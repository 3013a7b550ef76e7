package form

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-errors"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/schema"
)

// FormatJSON renders v for editing with two-space indentation. nil renders
// as the empty string.
func FormatJSON(v any) string {
	if v == nil {
		return ""
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// ParseJSON decodes edited text. Blank text decodes to nil.
func ParseJSON(text string) (any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var v any
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&v); err != nil {
		return nil, jsonError(err)
	}
	if dec.More() {
		return nil, jsonError(fmt.Errorf("unexpected content after JSON value"))
	}
	return v, nil
}

// JSONDraft tracks the text of a json field while it is being edited. The
// text is always kept; Value only changes once the text parses.
type JSONDraft struct {
	Text  string
	Value any
	Err   error
}

// NewJSONDraft starts a draft from the stored value.
func NewJSONDraft(v any) *JSONDraft {
	return &JSONDraft{Text: FormatJSON(v), Value: v}
}

// Edit records text and reports whether Value was updated.
func (d *JSONDraft) Edit(text string) bool {
	d.Text = text
	v, err := ParseJSON(text)
	if err != nil {
		d.Err = err
		return false
	}
	d.Err = nil
	d.Value = v
	return true
}

// Valid reports whether the current text parsed.
func (d *JSONDraft) Valid() bool {
	return d.Err == nil
}

// ParseInput coerces raw text typed into a primitive field. A nil result
// with no error means the value should be unset.
func ParseInput(field schema.Field, raw string) (any, error) {
	switch field.Kind {
	case schema.KindNumber:
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, inputError(field, raw, "not a number")
		}
		return n, nil
	case schema.KindBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, inputError(field, raw, "not a boolean")
		}
		return b, nil
	case schema.KindSelect:
		if len(field.Options) > 0 && !field.HasOption(raw) {
			return nil, inputError(field, raw, "not one of the options")
		}
		return raw, nil
	case schema.KindJSON, schema.KindDecisionTree:
		return ParseJSON(raw)
	case schema.KindText, schema.KindTextarea:
		return raw, nil
	default:
		return nil, inputError(field, raw, fmt.Sprintf("%s fields are not edited as text", field.Kind))
	}
}

func inputError(field schema.Field, raw, reason string) error {
	return errors.New(fmt.Sprintf("invalid value for %s: %s", field.Name, reason), errors.CategoryBadInput).
		WithTextCode(designer.CodeInputInvalid).
		WithMetadata(map[string]any{"field": field.Name, "input": raw})
}

func jsonError(err error) error {
	return errors.Wrap(err, errors.CategoryBadInput, "invalid JSON").
		WithTextCode(designer.CodeJSONInvalid)
}
