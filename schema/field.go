package schema

// FieldKind tags the NodeSchema field union.
type FieldKind string

const (
	KindText         FieldKind = "text"
	KindTextarea     FieldKind = "textarea"
	KindNumber       FieldKind = "number"
	KindBoolean      FieldKind = "boolean"
	KindSelect       FieldKind = "select"
	KindJSON         FieldKind = "json"
	KindDecisionTree FieldKind = "decision_tree"
	KindObject       FieldKind = "object"
	KindList         FieldKind = "list"
	KindKeyValue     FieldKind = "keyValue"
)

// IsPrimitive reports whether values of this kind are edited as a single value.
func (k FieldKind) IsPrimitive() bool {
	switch k {
	case KindText, KindTextarea, KindNumber, KindBoolean, KindSelect, KindJSON, KindDecisionTree:
		return true
	}
	return false
}

// AcceptsVariables reports whether {{name}} references are checked for the kind.
func (k FieldKind) AcceptsVariables() bool {
	switch k {
	case KindText, KindTextarea, KindJSON, KindKeyValue:
		return true
	}
	return false
}

type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Field describes one configurable entry of a node's property tree.
// Object and list fields nest further fields to any depth.
type Field struct {
	Name        string         `json:"name"`
	Label       string         `json:"label"`
	Kind        FieldKind      `json:"type"`
	Description string         `json:"description,omitempty"`
	Required    bool           `json:"required,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	Options     []Option       `json:"options,omitempty"`
	Min         *float64       `json:"min,omitempty"`
	Max         *float64       `json:"max,omitempty"`
	Step        *float64       `json:"step,omitempty"`
	Fields      []Field        `json:"fields,omitempty"`
	DefaultItem map[string]any `json:"defaultItem,omitempty"`
	ItemLabel   string         `json:"itemLabel,omitempty"`
	KeyLabel    string         `json:"keyLabel,omitempty"`
	ValueLabel  string         `json:"valueLabel,omitempty"`
}

// HasOption reports whether value is one of the select options.
func (f Field) HasOption(value string) bool {
	for _, o := range f.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Lookup finds a direct child field by name.
func Lookup(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func num(v float64) *float64 { return &v }

func text(name, label string) Field {
	return Field{Name: name, Label: label, Kind: KindText}
}

func textarea(name, label string) Field {
	return Field{Name: name, Label: label, Kind: KindTextarea}
}

func required(f Field) Field {
	f.Required = true
	return f
}

func boolean(name, label string) Field {
	return Field{Name: name, Label: label, Kind: KindBoolean}
}

func number(name, label string) Field {
	return Field{Name: name, Label: label, Kind: KindNumber}
}

func jsonField(name, label string) Field {
	return Field{Name: name, Label: label, Kind: KindJSON}
}

func selectField(name, label string, values ...string) Field {
	opts := make([]Option, 0, len(values))
	for _, v := range values {
		opts = append(opts, Option{Label: v, Value: v})
	}
	return Field{Name: name, Label: label, Kind: KindSelect, Options: opts}
}

func labeledSelect(name, label string, opts ...Option) Field {
	return Field{Name: name, Label: label, Kind: KindSelect, Options: opts}
}

func object(name, label string, fields ...Field) Field {
	return Field{Name: name, Label: label, Kind: KindObject, Fields: fields}
}

func list(name, label, itemLabel string, defaultItem map[string]any, fields ...Field) Field {
	return Field{Name: name, Label: label, Kind: KindList, ItemLabel: itemLabel, DefaultItem: defaultItem, Fields: fields}
}
