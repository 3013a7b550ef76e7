package designer

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-errors"
)

// Message is implemented by editor actions and host messages. Type is the
// wire name the message is routed by.
type Message interface {
	Type() string
	Validate() error
}

// ValidateMessage rejects nil messages, typed nil pointers included, and
// runs Validate on values implementing Message. Failures carry
// INVALID_MESSAGE and the message type.
func ValidateMessage(msg any) error {
	if isNil(msg) {
		return errors.New("nil message", errors.CategoryValidation).
			WithTextCode(CodeInvalidMessage)
	}
	m, ok := msg.(Message)
	if !ok {
		return nil
	}
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, errors.CategoryValidation, fmt.Sprintf("invalid %s message", m.Type())).
			WithTextCode(CodeInvalidMessage).
			WithMetadata(map[string]any{"type": m.Type()})
	}
	return nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
