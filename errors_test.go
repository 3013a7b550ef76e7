package designer

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	err := NewError("node missing", errors.CategoryNotFound, CodeNodeNotFound, map[string]any{"node_id": "n1"})
	assert.Equal(t, CodeNodeNotFound, err.TextCode)
	assert.Equal(t, errors.CategoryNotFound, err.Category)
	assert.Equal(t, "n1", err.Metadata["node_id"])

	bare := NewError("bad", errors.CategoryBadInput, CodeInputInvalid, nil)
	assert.Empty(t, bare.Metadata)
}

func TestHasCode(t *testing.T) {
	err := NewError("conflict", errors.CategoryConflict, CodeVersionConflict)
	wrapped := fmt.Errorf("save flow: %w", err)

	assert.True(t, HasCode(err, CodeVersionConflict))
	assert.True(t, HasCode(wrapped, CodeVersionConflict))
	assert.False(t, HasCode(wrapped, CodeFlowInvalid))
	assert.False(t, HasCode(stderrors.New("plain"), CodeFlowInvalid))
	assert.False(t, HasCode(nil, CodeFlowInvalid))
}

func TestErrorCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewError("x", errors.CategoryBadInput, CodePathInvalid))
	assert.Equal(t, CodePathInvalid, ErrorCode(err))
	assert.Equal(t, "", ErrorCode(stderrors.New("plain")))
	assert.Equal(t, "", ErrorCode(nil))
}
