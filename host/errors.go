package host

import (
	stderrors "errors"
	"net/http"

	"github.com/goliatone/go-errors"

	designer "github.com/goliatone/go-flow-designer"
)

// Error is the transport shape of a failed request or action.
type Error struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Category string         `json:"category,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

// ErrorFrom converts err into its transport shape. Errors without a text
// code are reported as INTERNAL.
func ErrorFrom(err error) *Error {
	if err == nil {
		return nil
	}
	var ge *errors.Error
	if !stderrors.As(err, &ge) {
		return &Error{Code: "INTERNAL", Message: err.Error()}
	}
	out := &Error{
		Code:     designer.ErrorCode(err),
		Message:  err.Error(),
		Category: string(ge.Category),
	}
	if len(ge.Metadata) > 0 {
		out.Details = make(map[string]any, len(ge.Metadata))
		for k, v := range ge.Metadata {
			out.Details[k] = v
		}
	}
	if out.Code == "" {
		out.Code = "INTERNAL"
	}
	return out
}

// HTTPStatus maps err to a response status by text code, then category.
func HTTPStatus(err error) int {
	switch designer.ErrorCode(err) {
	case designer.CodeNodeNotFound, designer.CodeEdgeNotFound, designer.CodeSchemaNotFound,
		designer.CodeFlowNotFound, designer.CodeSessionNotFound:
		return http.StatusNotFound
	case designer.CodeVersionConflict, designer.CodeDuplicateNode, designer.CodeDuplicateEdge,
		designer.CodeLayoutInProgress:
		return http.StatusConflict
	case designer.CodeFlowInvalid, designer.CodeInvalidMessage:
		return http.StatusUnprocessableEntity
	case designer.CodePathInvalid, designer.CodeIndexOutOfRange, designer.CodeJSONInvalid,
		designer.CodeInputInvalid, designer.CodeInvalidHandle, designer.CodeUnknownMessage:
		return http.StatusBadRequest
	case designer.CodeLayoutFailed, designer.CodeStoreFailed:
		return http.StatusBadGateway
	}

	var ge *errors.Error
	if stderrors.As(err, &ge) {
		switch ge.Category {
		case errors.CategoryBadInput:
			return http.StatusBadRequest
		case errors.CategoryValidation:
			return http.StatusUnprocessableEntity
		case errors.CategoryConflict:
			return http.StatusConflict
		case errors.CategoryExternal:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}
