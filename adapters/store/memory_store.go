// Package store provides in-memory and Redis-backed implementations of the
// challenge and session stores.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/blocchat/gatekeeper/core"
)

// MemoryChallengeStore keeps challenges in a mutex-guarded map. Each method
// holds the lock for the whole operation, so Take is a true get-and-delete.
type MemoryChallengeStore struct {
	mu   sync.Mutex
	data map[string]core.Challenge
}

// NewMemoryChallengeStore creates an empty in-memory challenge store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{data: make(map[string]core.Challenge)}
}

// Put stores the challenge, overwriting any previous one for the wallet.
func (s *MemoryChallengeStore) Put(ctx context.Context, wallet string, c core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[wallet] = c
	return nil
}

// Get returns the stored challenge or core.ErrNonceNotFound.
func (s *MemoryChallengeStore) Get(ctx context.Context, wallet string) (core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data[wallet]
	if !ok {
		return core.Challenge{}, core.ErrNonceNotFound
	}
	return c, nil
}

// Take removes and returns the stored challenge in one step.
func (s *MemoryChallengeStore) Take(ctx context.Context, wallet string) (core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data[wallet]
	if !ok {
		return core.Challenge{}, core.ErrNonceNotFound
	}
	delete(s.data, wallet)
	return c, nil
}

// Delete removes the challenge if present.
func (s *MemoryChallengeStore) Delete(ctx context.Context, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, wallet)
	return nil
}

// DeleteExpired removes challenges issued before the cutoff.
func (s *MemoryChallengeStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for wallet, c := range s.data {
		if c.IssuedAt.Before(cutoff) {
			delete(s.data, wallet)
			removed++
		}
	}
	return removed, nil
}

// MemorySessionStore keeps sessions in a mutex-guarded map.
type MemorySessionStore struct {
	mu   sync.Mutex
	data map[string]core.Session
}

// NewMemorySessionStore creates an empty in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{data: make(map[string]core.Session)}
}

// Put stores the session under the token.
func (s *MemorySessionStore) Put(ctx context.Context, token string, sess core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[token] = sess
	return nil
}

// Get returns the stored session or core.ErrSessionNotFound.
func (s *MemorySessionStore) Get(ctx context.Context, token string) (core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.data[token]
	if !ok {
		return core.Session{}, core.ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes the session if present.
func (s *MemorySessionStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, token)
	return nil
}

// DeleteExpired removes sessions whose expiry precedes now.
func (s *MemorySessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, sess := range s.data {
		if sess.ExpiredAt(now) {
			delete(s.data, token)
			removed++
		}
	}
	return removed, nil
}
