package user

import (
	"context"
	"strings"
	"sync"

	id "appregistry/pkg/domain"
	"appregistry/pkg/platform/sentinel"
)

// InMemoryStore keeps users in a map. Used by unit tests and local runs
// without Postgres.
type InMemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.UserID]User
	byEmail map[string]id.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:    make(map[id.UserID]User),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *InMemoryStore) Insert(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, exists := s.byEmail[key]; exists {
		return sentinel.ErrConflict
	}
	s.byID[u.ID] = *u
	s.byEmail[key] = u.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

func (s *InMemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	u := s.byID[userID]
	return &u, nil
}

func (s *InMemoryStore) UpdateSubject(_ context.Context, userID id.UserID, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	u.Subject = subject
	s.byID[userID] = u
	return nil
}
