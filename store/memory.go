package store

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is a thread-safe in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Load(_ context.Context, flowID string) (*Record, error) {
	if s == nil {
		return nil, notConfigured("memory")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[strings.TrimSpace(flowID)]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) SaveIfVersion(_ context.Context, rec *Record, expectedVersion int) (int, error) {
	if s == nil {
		return 0, notConfigured("memory")
	}
	next, expected, err := prepare(rec, expectedVersion)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	version, err := applyVersion(next, s.records[next.FlowID], expected)
	if err != nil {
		return 0, err
	}
	s.records[next.FlowID] = next
	return version, nil
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	if s == nil {
		return nil, notConfigured("memory")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, *rec.Clone())
	}
	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, flowID string) error {
	if s == nil {
		return notConfigured("memory")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, strings.TrimSpace(flowID))
	return nil
}
