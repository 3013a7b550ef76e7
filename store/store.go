// Package store persists flow documents with optimistic versioning.
// Every backend follows the same compare-and-set contract: a save with
// expected version 0 creates the record, any other value must match the
// stored version, and each successful save bumps the version by one.
package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/flow"
)

// Record is a stored flow document.
type Record struct {
	FlowID     string          `json:"flowId"`
	Version    int             `json:"version"`
	Definition flow.Definition `json:"definition"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Store is implemented by every persistence backend.
type Store interface {
	// Load returns nil and no error when the flow does not exist.
	Load(ctx context.Context, flowID string) (*Record, error)
	SaveIfVersion(ctx context.Context, rec *Record, expectedVersion int) (int, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, flowID string) error
}

// IsConflict reports whether err is a failed compare-and-set.
func IsConflict(err error) bool {
	return designer.HasCode(err, designer.CodeVersionConflict)
}

// Save stores def without a version check, creating it or overwriting
// the latest version.
func Save(ctx context.Context, s Store, def flow.Definition) (int, error) {
	current, err := s.Load(ctx, def.FlowID)
	if err != nil {
		return 0, err
	}
	expected := 0
	if current != nil {
		expected = current.Version
	}
	return s.SaveIfVersion(ctx, &Record{FlowID: def.FlowID, Definition: def}, expected)
}

func conflict(flowID string, expected, actual int) error {
	return errors.New("flow version conflict", errors.CategoryConflict).
		WithTextCode(designer.CodeVersionConflict).
		WithMetadata(map[string]any{
			"flow_id":          flowID,
			"expected_version": expected,
			"actual_version":   actual,
		})
}

func storeError(err error, op, flowID string) error {
	if err == nil {
		return nil
	}
	if IsConflict(err) {
		return err
	}
	return errors.Wrap(err, errors.CategoryExternal, "flow store "+op+" failed").
		WithTextCode(designer.CodeStoreFailed).
		WithMetadata(map[string]any{"flow_id": flowID})
}

func notConfigured(backend string) error {
	return errors.New(backend+" store not configured", errors.CategoryHandler).
		WithTextCode(designer.CodeStoreFailed)
}

// prepare validates rec and returns a normalized copy.
func prepare(rec *Record, expectedVersion int) (*Record, int, error) {
	if rec == nil {
		return nil, 0, errors.New("flow record required", errors.CategoryBadInput).
			WithTextCode(designer.CodeInputInvalid)
	}
	next := rec.Clone()
	next.FlowID = strings.TrimSpace(next.FlowID)
	if next.FlowID == "" {
		next.FlowID = strings.TrimSpace(next.Definition.FlowID)
	}
	if next.FlowID == "" {
		return nil, 0, errors.New("flow record id required", errors.CategoryBadInput).
			WithTextCode(designer.CodeInputInvalid)
	}
	next.Definition.FlowID = next.FlowID
	if expectedVersion < 0 {
		expectedVersion = 0
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	return next, expectedVersion, nil
}

// applyVersion checks expected against current and sets next.Version.
func applyVersion(next, current *Record, expected int) (int, error) {
	if current == nil {
		if expected != 0 {
			return 0, conflict(next.FlowID, expected, 0)
		}
		next.Version = 1
		return 1, nil
	}
	if current.Version != expected {
		return 0, conflict(next.FlowID, expected, current.Version)
	}
	next.Version = expected + 1
	return next.Version, nil
}

// Clone deep copies the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Definition = r.Definition.Clone()
	return &out
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].FlowID < records[j].FlowID
	})
}
