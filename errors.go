package designer

import (
	stderrors "errors"

	"github.com/goliatone/go-errors"
)

// Text codes attached to every error produced by the editor core.
const (
	CodeFlowInvalid      = "FLOW_INVALID"
	CodeSchemaNotFound   = "SCHEMA_NOT_FOUND"
	CodeNodeNotFound     = "NODE_NOT_FOUND"
	CodeEdgeNotFound     = "EDGE_NOT_FOUND"
	CodeDuplicateNode    = "DUPLICATE_NODE"
	CodeDuplicateEdge    = "DUPLICATE_EDGE"
	CodeInvalidHandle    = "INVALID_HANDLE"
	CodePathInvalid      = "PATH_INVALID"
	CodeIndexOutOfRange  = "INDEX_OUT_OF_RANGE"
	CodeJSONInvalid      = "JSON_INVALID"
	CodeInputInvalid     = "INPUT_INVALID"
	CodeLayoutFailed     = "LAYOUT_FAILED"
	CodeLayoutInProgress = "LAYOUT_IN_PROGRESS"
	CodeVersionConflict  = "VERSION_CONFLICT"
	CodeInvalidMessage   = "INVALID_MESSAGE"
	CodeStoreFailed      = "STORE_FAILED"
	CodePanic            = "PANIC"
	CodeConfigInvalid    = "CONFIG_INVALID"
	CodeFlowNotFound     = "FLOW_NOT_FOUND"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeUnknownMessage   = "UNKNOWN_MESSAGE"
)

// NewError builds a categorized error carrying code.
func NewError(msg string, category errors.Category, code string, metadata ...map[string]any) *errors.Error {
	err := errors.New(msg, category).WithTextCode(code)
	if len(metadata) > 0 && metadata[0] != nil {
		err = err.WithMetadata(metadata[0])
	}
	return err
}

// HasCode reports whether any go-errors error in the chain of err carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var e *errors.Error
		if !stderrors.As(err, &e) {
			return false
		}
		if e.TextCode == code {
			return true
		}
		if e.Source == nil || e.Source == err {
			return false
		}
		err = e.Source
	}
	return false
}

// ErrorCode returns the first text code found in the chain of err.
func ErrorCode(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) {
		return e.TextCode
	}
	return ""
}
