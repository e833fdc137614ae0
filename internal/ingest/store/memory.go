package store

import (
	"context"
	"sync"

	"chatvault/internal/ingest/models"
	"chatvault/internal/sentinel"
)

// InMemoryStore keeps captured rows in memory for tests and for running
// without a database.
type InMemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records []models.Record
	byHash  map[string]struct{}
}

// New constructs an empty in-memory row store.
func New() *InMemoryStore {
	return &InMemoryStore{byHash: make(map[string]struct{})}
}

func (s *InMemoryStore) Insert(_ context.Context, record *models.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byHash[record.RowHash]; ok {
		return 0, sentinel.ErrDuplicate
	}
	s.nextID++
	stored := *record
	stored.ID = s.nextID
	s.records = append(s.records, stored)
	s.byHash[record.RowHash] = struct{}{}
	return stored.ID, nil
}

func (s *InMemoryStore) ExistsByRowHash(_ context.Context, rowHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byHash[rowHash]
	return ok, nil
}

func (s *InMemoryStore) DeleteBySubject(_ context.Context, userIDHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []models.Record
	var deleted int64
	for _, record := range s.records {
		if record.UserIDHash == userIDHash {
			delete(s.byHash, record.RowHash)
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	s.records = kept
	return deleted, nil
}

func (s *InMemoryStore) CountBySubject(_ context.Context, userIDHash string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, record := range s.records {
		if record.UserIDHash == userIDHash {
			count++
		}
	}
	return count, nil
}
