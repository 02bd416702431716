package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore keeps refresh sessions in process memory. Sessions do not
// survive a restart; use Redis in production.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memorySession
}

type memorySession struct {
	data      TokenData
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]memorySession{}}
}

func (s *MemoryStore) Save(ctx context.Context, tokenHash string, data TokenData, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[tokenHash] = memorySession{data: data, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) Lookup(ctx context.Context, tokenHash string) (TokenData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[tokenHash]
	if !ok || time.Now().After(stored.expiresAt) {
		delete(s.sessions, tokenHash)
		return TokenData{}, errors.New("refresh token not found")
	}
	return stored.data, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}
