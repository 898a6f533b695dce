package ledger

import (
	"context"
	"sort"
	"sync"
)

type sessionKey struct {
	workshopID string
	dayIndex   int
}

// MemoryStore is a process-local Store guarded by a mutex.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[sessionKey]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[sessionKey]Record)}
}

// GetLink implements Store.
func (s *MemoryStore) GetLink(_ context.Context, workshopID string, dayIndex int) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[sessionKey{workshopID, dayIndex}]
	if !ok {
		return Record{}, ErrNotFound
	}
	return record, nil
}

// InsertLink implements Store.
func (s *MemoryStore) InsertLink(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey{record.WorkshopID, record.DayIndex}
	if _, exists := s.records[key]; exists {
		return ErrAlreadyExists
	}
	s.records[key] = record
	return nil
}

// ListLinks implements Store.
func (s *MemoryStore) ListLinks(_ context.Context, workshopID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0)
	for key, record := range s.records {
		if key.workshopID == workshopID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].DayIndex < records[j].DayIndex })
	return records, nil
}

// ClearLinks implements Store.
func (s *MemoryStore) ClearLinks(_ context.Context, workshopID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.records {
		if key.workshopID == workshopID {
			delete(s.records, key)
		}
	}
	return nil
}
