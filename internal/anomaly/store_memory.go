package anomaly

import (
	"context"
	"sort"
	"sync"

	id "appregistry/pkg/domain"
	"appregistry/pkg/platform/sentinel"
)

// InMemoryStore keeps notifications in a map for tests and local
// development.
type InMemoryStore struct {
	mu            sync.RWMutex
	notifications map[id.NotificationID]*Notification
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{notifications: make(map[id.NotificationID]*Notification)}
}

func (s *InMemoryStore) Insert(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return sentinel.ErrConflict
	}
	clone := *n
	s.notifications[n.ID] = &clone
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, notificationID id.NotificationID) (*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notifications[notificationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (s *InMemoryStore) FindAll(_ context.Context) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(*Notification) bool { return true }), nil
}

func (s *InMemoryStore) FindByNotifier(_ context.Context, notifierID id.UserID) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(n *Notification) bool { return n.NotifierID == notifierID }), nil
}

func (s *InMemoryStore) FindByApplication(_ context.Context, appID id.ApplicationID) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(n *Notification) bool { return n.ApplicationID == appID }), nil
}

func (s *InMemoryStore) Update(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.notifications[n.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	existing.Description = n.Description
	existing.Status = n.Status
	existing.UpdatedAt = n.UpdatedAt
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, notificationID id.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[notificationID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.notifications, notificationID)
	return nil
}

// filter returns cloned matches, newest first. Callers must hold at least
// the read lock.
func (s *InMemoryStore) filter(match func(*Notification) bool) []*Notification {
	out := []*Notification{}
	for _, n := range s.notifications {
		if match(n) {
			clone := *n
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
