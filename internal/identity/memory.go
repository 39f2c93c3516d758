package identity

import (
	"context"
	"sync"
	"time"
)

// MemStore is the in-memory Store used by tests and DSN-less runs.
type MemStore struct {
	mu      sync.RWMutex
	byID    map[string]Record
	byEmail map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{
		byID:    make(map[string]Record),
		byEmail: make(map[string]string),
	}
}

func (s *MemStore) Create(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[rec.Account.Email]; ok {
		return ErrEmailTaken
	}
	s.byID[rec.Account.ID] = rec
	s.byEmail[rec.Account.Email] = rec.Account.ID
	return nil
}

func (s *MemStore) Find(ctx context.Context, accountID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[accountID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemStore) FindByEmail(ctx context.Context, email string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return Record{}, ErrNotFound
	}
	return s.byID[id], nil
}

func (s *MemStore) UpdateDisplayName(ctx context.Context, accountID, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[accountID]
	if !ok {
		return ErrNotFound
	}
	rec.Account.DisplayName = displayName
	s.byID[accountID] = rec
	return nil
}

func (s *MemStore) SetInvalidatedAt(ctx context.Context, accountID string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[accountID]
	if !ok {
		return ErrNotFound
	}
	rec.InvalidatedAt = t
	s.byID[accountID] = rec
	return nil
}
