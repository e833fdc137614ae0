package store

import (
	"context"
	"sync"

	"chatvault/internal/consent/models"
	"chatvault/internal/sentinel"
)

// InMemoryStore keeps tracked subjects in memory for tests and for
// running without a database.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string]*models.TrackedUser
}

// New constructs an empty in-memory tracked-subject store.
func New() *InMemoryStore {
	return &InMemoryStore{users: make(map[string]*models.TrackedUser)}
}

func (s *InMemoryStore) Upsert(_ context.Context, user *models.TrackedUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copyUser := *user
	s.users[user.UserIDHash] = &copyUser
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, userIDHash string) (*models.TrackedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userIDHash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copyUser := *user
	return &copyUser, nil
}

func (s *InMemoryStore) Exists(_ context.Context, userIDHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userIDHash]
	return ok, nil
}

func (s *InMemoryStore) Delete(_ context.Context, userIDHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[userIDHash]
	delete(s.users, userIDHash)
	return ok, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.TrackedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make([]*models.TrackedUser, 0, len(s.users))
	for _, user := range s.users {
		copyUser := *user
		users = append(users, &copyUser)
	}
	return users, nil
}

func (s *InMemoryStore) UpdateRank(_ context.Context, userIDHash, rank string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userIDHash]
	if !ok {
		return sentinel.ErrNotFound
	}
	user.Rank = rank
	return nil
}
