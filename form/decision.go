package form

import "strconv"

// Default shapes used when growing a decision tree.
const (
	DefaultQuestion    = "New question?"
	DefaultOptionText  = "Option"
	DefaultOptionValue = "option"
	DefaultOptionOut   = "output"
)

// NewTreeQuestion returns a question with a single numbered option.
func NewTreeQuestion() map[string]any {
	return map[string]any{
		"question": DefaultQuestion,
		"options":  []any{newTreeOption(1)},
	}
}

func newTreeOption(n int) map[string]any {
	return map[string]any{
		"text":   DefaultOptionText + " " + strconv.Itoa(n),
		"value":  DefaultOptionValue + strconv.Itoa(n),
		"output": DefaultOptionOut + strconv.Itoa(n),
	}
}

// AddTreeOption appends an option to the question node at path.
func AddTreeOption(tree map[string]any, path Path) (map[string]any, error) {
	items, err := listAt(tree, path.Append(Key("options")))
	if err != nil {
		return tree, err
	}
	return AppendItem(tree, path.Append(Key("options")), newTreeOption(len(items)+1))
}

// RemoveTreeOption drops option index from the question node at path.
func RemoveTreeOption(tree map[string]any, path Path, index int) (map[string]any, error) {
	return RemoveItem(tree, path.Append(Key("options")), index)
}

// AddChildQuestion nests a new question under option index. The option loses
// its output since it is no longer a leaf.
func AddChildQuestion(tree map[string]any, path Path, index int) (map[string]any, error) {
	opt := path.Append(Key("options"), Index(index))
	if _, ok := Get(tree, opt); !ok {
		items, _ := listAt(tree, path.Append(Key("options")))
		return tree, indexError(index, len(items), opt)
	}
	next, err := Set(tree, opt.Append(Key("children")), NewTreeQuestion())
	if err != nil {
		return tree, err
	}
	return Unset(next, opt.Append(Key("output")))
}

// RemoveChildQuestion turns option index back into a leaf.
func RemoveChildQuestion(tree map[string]any, path Path, index int) (map[string]any, error) {
	opt := path.Append(Key("options"), Index(index))
	if _, ok := Get(tree, opt); !ok {
		items, _ := listAt(tree, path.Append(Key("options")))
		return tree, indexError(index, len(items), opt)
	}
	return Unset(tree, opt.Append(Key("children")))
}
