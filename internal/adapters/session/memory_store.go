package session

import (
	"context"
	"slices"
	"strings"
	"sync"
)

// MemoryStore keeps sessions in process memory. Used when no Redis is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	if rec.MemberID == "" {
		return ErrInvalidRecord
	}
	s.mu.Lock()
	s.records[rec.MemberID] = rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, memberID string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[memberID]
	return rec, ok, nil
}

func (s *MemoryStore) Clear(_ context.Context, memberID string) error {
	s.mu.Lock()
	delete(s.records, memberID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b Record) int { return strings.Compare(a.MemberID, b.MemberID) })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
