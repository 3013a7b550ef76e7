package form

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-errors"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/flow"
)

// Get returns the value at path. The second result is false when any step
// of the path is missing or has the wrong shape.
func Get(tree any, path Path) (any, bool) {
	cur := tree
	for _, seg := range path {
		switch c := cur.(type) {
		case map[string]any:
			if seg.isIndex {
				return nil, false
			}
			v, ok := c[seg.key]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			if !seg.isIndex || seg.index < 0 || seg.index >= len(c) {
				return nil, false
			}
			cur = c[seg.index]
		default:
			return nil, false
		}
	}
	return cur, true
}

// Set returns a new tree with value stored at path. Containers along the
// path are copied; everything else is shared with tree and never mutated.
// value is deep-copied so later edits to it cannot leak into the tree.
// Missing objects along the path are created. On error tree is returned as is.
func Set(tree map[string]any, path Path, value any) (map[string]any, error) {
	if len(path) == 0 {
		return tree, pathError("empty path", path)
	}
	out, err := setAt(tree, path, 0, flow.CloneValue(value))
	if err != nil {
		return tree, err
	}
	return out.(map[string]any), nil
}

// Unset returns a new tree without the value at path. Unsetting a list index
// removes the item. Missing paths are a no-op.
func Unset(tree map[string]any, path Path) (map[string]any, error) {
	if len(path) == 0 {
		return tree, pathError("empty path", path)
	}
	parentPath, last := path[:len(path)-1], path[len(path)-1]
	parent, ok := Get(tree, parentPath)
	if !ok {
		return tree, nil
	}
	if last.isIndex {
		items, ok := parent.([]any)
		if !ok || last.index < 0 || last.index >= len(items) {
			return tree, nil
		}
		return RemoveItem(tree, parentPath, last.index)
	}
	m, ok := parent.(map[string]any)
	if !ok {
		return tree, nil
	}
	if _, exists := m[last.key]; !exists {
		return tree, nil
	}
	next := copyMap(m)
	delete(next, last.key)
	if len(parentPath) == 0 {
		return next, nil
	}
	return replaceAt(tree, parentPath, next)
}

func setAt(container any, path Path, depth int, value any) (any, error) {
	seg := path[depth]
	last := depth == len(path)-1

	if seg.isIndex {
		var items []any
		switch c := container.(type) {
		case nil:
		case []any:
			items = c
		default:
			return nil, pathError(fmt.Sprintf("expected list at %s, got %T", path[:depth], container), path)
		}
		// index == len appends
		if seg.index < 0 || seg.index > len(items) {
			return nil, indexError(seg.index, len(items), path)
		}
		next := make([]any, len(items), len(items)+1)
		copy(next, items)
		if seg.index == len(items) {
			next = append(next, nil)
		}
		if last {
			next[seg.index] = value
			return next, nil
		}
		child, err := setAt(next[seg.index], path, depth+1, value)
		if err != nil {
			return nil, err
		}
		next[seg.index] = child
		return next, nil
	}

	var m map[string]any
	switch c := container.(type) {
	case nil:
	case map[string]any:
		m = c
	default:
		return nil, pathError(fmt.Sprintf("expected object at %q, got %T", path[:depth].String(), container), path)
	}
	next := copyMap(m)
	if last {
		next[seg.key] = value
		return next, nil
	}
	child, err := setAt(next[seg.key], path, depth+1, value)
	if err != nil {
		return nil, err
	}
	next[seg.key] = child
	return next, nil
}

// replaceAt stores value without cloning it; callers hand over fresh containers.
func replaceAt(tree map[string]any, path Path, value any) (map[string]any, error) {
	if len(path) == 0 {
		if m, ok := value.(map[string]any); ok {
			return m, nil
		}
		return tree, pathError("root must be an object", path)
	}
	out, err := setAt(tree, path, 0, value)
	if err != nil {
		return tree, err
	}
	return out.(map[string]any), nil
}

// AppendItem pushes a copy of item onto the list at path, creating the list
// when missing.
func AppendItem(tree map[string]any, path Path, item any) (map[string]any, error) {
	items, err := listAt(tree, path)
	if err != nil {
		return tree, err
	}
	next := make([]any, len(items), len(items)+1)
	copy(next, items)
	next = append(next, flow.CloneValue(item))
	return replaceAt(tree, path, next)
}

// RemoveItem drops the item at index, keeping the remaining order. Items after
// index move down by one, so any path held for them is now off by one.
func RemoveItem(tree map[string]any, path Path, index int) (map[string]any, error) {
	items, err := listAt(tree, path)
	if err != nil {
		return tree, err
	}
	if index < 0 || index >= len(items) {
		return tree, indexError(index, len(items), path)
	}
	next := make([]any, 0, len(items)-1)
	next = append(next, items[:index]...)
	next = append(next, items[index+1:]...)
	return replaceAt(tree, path, next)
}

// MoveItem moves the item at from to position to.
func MoveItem(tree map[string]any, path Path, from, to int) (map[string]any, error) {
	items, err := listAt(tree, path)
	if err != nil {
		return tree, err
	}
	if from < 0 || from >= len(items) {
		return tree, indexError(from, len(items), path)
	}
	if to < 0 || to >= len(items) {
		return tree, indexError(to, len(items), path)
	}
	next := make([]any, 0, len(items))
	next = append(next, items[:from]...)
	next = append(next, items[from+1:]...)
	moved := items[from]
	next = append(next[:to], append([]any{moved}, next[to:]...)...)
	return replaceAt(tree, path, next)
}

func listAt(tree map[string]any, path Path) ([]any, error) {
	v, ok := Get(tree, path)
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, pathError(fmt.Sprintf("expected list at %q, got %T", path.String(), v), path)
	}
	return items, nil
}

const (
	PlaceholderKey   = "new_key"
	PlaceholderValue = "value"
)

// Entry is one key-value pair.
type Entry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Entries lists a key-value map in key order.
func Entries(v any) []Entry {
	m, _ := v.(map[string]any)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, Entry{Key: k, Value: m[k]})
	}
	return out
}

// AddEntry inserts the placeholder entry into the map at path. An existing
// placeholder entry is overwritten.
func AddEntry(tree map[string]any, path Path) (map[string]any, error) {
	m, err := mapAt(tree, path)
	if err != nil {
		return tree, err
	}
	next := copyMap(m)
	next[PlaceholderKey] = PlaceholderValue
	return replaceAt(tree, path, next)
}

// RenameKey moves the value under oldKey to newKey. Other entries are kept.
// An entry already stored under newKey is replaced.
func RenameKey(tree map[string]any, path Path, oldKey, newKey string) (map[string]any, error) {
	if oldKey == newKey {
		return tree, nil
	}
	if newKey == "" {
		return tree, errors.New("key cannot be empty", errors.CategoryBadInput).
			WithTextCode(designer.CodeInputInvalid).
			WithMetadata(map[string]any{"path": path.String()})
	}
	m, err := mapAt(tree, path)
	if err != nil {
		return tree, err
	}
	v, ok := m[oldKey]
	if !ok {
		return tree, pathError(fmt.Sprintf("key %q not found", oldKey), path)
	}
	next := copyMap(m)
	delete(next, oldKey)
	next[newKey] = v
	return replaceAt(tree, path, next)
}

// DeleteKey removes key from the map at path.
func DeleteKey(tree map[string]any, path Path, key string) (map[string]any, error) {
	m, err := mapAt(tree, path)
	if err != nil {
		return tree, err
	}
	if _, ok := m[key]; !ok {
		return tree, nil
	}
	next := copyMap(m)
	delete(next, key)
	return replaceAt(tree, path, next)
}

func mapAt(tree map[string]any, path Path) (map[string]any, error) {
	if len(path) == 0 {
		return tree, nil
	}
	v, ok := Get(tree, path)
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, pathError(fmt.Sprintf("expected object at %q, got %T", path.String(), v), path)
	}
	return m, nil
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func pathError(msg string, path Path) error {
	return errors.New(msg, errors.CategoryBadInput).
		WithTextCode(designer.CodePathInvalid).
		WithMetadata(map[string]any{"path": path.String()})
}

func indexError(index, length int, path Path) error {
	return errors.New(fmt.Sprintf("index %d out of range [0,%d)", index, length), errors.CategoryBadInput).
		WithTextCode(designer.CodeIndexOutOfRange).
		WithMetadata(map[string]any{"path": path.String(), "index": index})
}
