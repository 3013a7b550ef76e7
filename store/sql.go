package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/flow"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore keeps flows in a single table. The statements use "?"
// placeholders and INSERT OR IGNORE, which SQLite understands.
type SQLStore struct {
	db    *sql.DB
	table string

	schemaOnce sync.Once
	schemaErr  error
}

// NewSQLStore builds a store on db using table, "flows" when empty.
func NewSQLStore(db *sql.DB, table string) (*SQLStore, error) {
	if table == "" {
		table = "flows"
	}
	if !tableName.MatchString(table) {
		return nil, errors.New("invalid table name", errors.CategoryBadInput).
			WithTextCode(designer.CodeInputInvalid).
			WithMetadata(map[string]any{"table": table})
	}
	return &SQLStore{db: db, table: table}, nil
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return notConfigured("sql")
	}
	s.schemaOnce.Do(func() {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	flow_id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	version INTEGER NOT NULL,
	definition TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`, s.table)
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			s.schemaErr = storeError(err, "migrate", "")
		}
	})
	return s.schemaErr
}

func (s *SQLStore) Load(ctx context.Context, flowID string) (*Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	flowID = strings.TrimSpace(flowID)
	if flowID == "" {
		return nil, nil
	}

	q := fmt.Sprintf(`SELECT flow_id, version, definition, updated_at FROM %s WHERE flow_id = ?`, s.table)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, flowID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err, "load", flowID)
	}
	return rec, nil
}

func (s *SQLStore) SaveIfVersion(ctx context.Context, rec *Record, expectedVersion int) (int, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return 0, err
	}
	next, expected, err := prepare(rec, expectedVersion)
	if err != nil {
		return 0, err
	}
	payload, err := flow.Marshal(next.Definition)
	if err != nil {
		return 0, storeError(err, "encode", next.FlowID)
	}
	updatedAt := next.UpdatedAt.UTC().Format(time.RFC3339Nano)

	if expected == 0 {
		q := fmt.Sprintf(`INSERT OR IGNORE INTO %s (flow_id, name, version, definition, updated_at) VALUES (?, ?, 1, ?, ?)`, s.table)
		result, err := s.db.ExecContext(ctx, q, next.FlowID, next.Definition.Name, string(payload), updatedAt)
		if err != nil {
			return 0, storeError(err, "insert", next.FlowID)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return 0, s.conflict(ctx, next.FlowID, expected)
		}
		return 1, nil
	}

	version := expected + 1
	q := fmt.Sprintf(`UPDATE %s SET name=?, version=?, definition=?, updated_at=? WHERE flow_id=? AND version=?`, s.table)
	result, err := s.db.ExecContext(ctx, q, next.Definition.Name, version, string(payload), updatedAt, next.FlowID, expected)
	if err != nil {
		return 0, storeError(err, "update", next.FlowID)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return 0, s.conflict(ctx, next.FlowID, expected)
	}
	return version, nil
}

func (s *SQLStore) conflict(ctx context.Context, flowID string, expected int) error {
	actual := 0
	if current, err := s.Load(ctx, flowID); err == nil && current != nil {
		actual = current.Version
	}
	return conflict(flowID, expected, actual)
}

func (s *SQLStore) List(ctx context.Context) ([]Record, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT flow_id, version, definition, updated_at FROM %s ORDER BY flow_id`, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, storeError(err, "list", "")
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, storeError(err, "list", "")
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(err, "list", "")
	}
	return out, nil
}

func (s *SQLStore) Delete(ctx context.Context, flowID string) error {
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	q := fmt.Sprintf(`DELETE FROM %s WHERE flow_id = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, q, strings.TrimSpace(flowID)); err != nil {
		return storeError(err, "delete", flowID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var payload, updatedAt string
	if err := row.Scan(&rec.FlowID, &rec.Version, &payload, &updatedAt); err != nil {
		return nil, err
	}
	def, err := flow.ParseUnchecked([]byte(payload))
	if err != nil {
		return nil, err
	}
	rec.Definition = def
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rec.UpdatedAt = ts
	}
	return &rec, nil
}

// compile time checks
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLStore)(nil)
	_ Store = (*RedisStore)(nil)
)
