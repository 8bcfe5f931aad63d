package auth

import (
	"context"
	"sync"
)

// MemorySessionStore keeps refresh credentials in memory. It is intended for
// tests and single-process development setups.
type MemorySessionStore struct {
	mu     sync.Mutex
	tokens map[string]string
	users  map[string]struct{}
}

// NewMemorySessionStore constructs an empty in-memory store that knows the given users.
func NewMemorySessionStore(userIDs ...string) *MemorySessionStore {
	s := &MemorySessionStore{
		tokens: make(map[string]string),
		users:  make(map[string]struct{}),
	}
	for _, id := range userIDs {
		s.users[id] = struct{}{}
	}
	return s
}

// AddUser registers a user so that later operations on it succeed.
func (s *MemorySessionStore) AddUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = struct{}{}
}

// Get implements SessionStore.
func (s *MemorySessionStore) Get(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return "", ErrUserNotFound
	}
	return s.tokens[userID], nil
}

// Set implements SessionStore.
func (s *MemorySessionStore) Set(_ context.Context, userID, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return ErrUserNotFound
	}
	s.tokens[userID] = refreshToken
	return nil
}

// Swap implements SessionStore.
func (s *MemorySessionStore) Swap(_ context.Context, userID, expected, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return false, ErrUserNotFound
	}
	if expected == "" || s.tokens[userID] != expected {
		return false, nil
	}
	s.tokens[userID] = next
	return true, nil
}

// Clear implements SessionStore.
func (s *MemorySessionStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, userID)
	return nil
}

var _ SessionStore = (*MemorySessionStore)(nil)
