package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/blocchat/gatekeeper/core"
	"github.com/blocchat/gatekeeper/ports"
)

// DefaultSessionTTL is the session lifetime from creation.
const DefaultSessionTTL = 24 * time.Hour

const sessionTokenBytes = 32 // 256 bits of entropy, hex-encoded

// SessionManager issues, validates and revokes opaque session tokens. A
// wallet may hold any number of concurrent sessions.
type SessionManager struct {
	store ports.SessionStore
	ttl   time.Duration

	now func() time.Time
}

// NewSessionManager creates a session manager over the given store.
func NewSessionManager(store ports.SessionStore, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// TTL returns the configured session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create stores a new session for the wallet and returns its opaque token.
func (m *SessionManager) Create(ctx context.Context, wallet string) (string, error) {
	wallet, err := core.NormalizeWallet(wallet)
	if err != nil {
		return "", err
	}

	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	token := hex.EncodeToString(buf)

	now := m.now()
	session := core.Session{
		Wallet:    wallet,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Put(ctx, token, session); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return token, nil
}

// Validate resolves a token to its wallet. An expired session is removed on
// detection and reported as ErrSessionExpired.
func (m *SessionManager) Validate(ctx context.Context, token string) (string, error) {
	session, err := m.store.Get(ctx, token)
	if err != nil {
		return "", err
	}

	if session.ExpiredAt(m.now()) {
		_ = m.store.Delete(ctx, token)
		return "", core.ErrSessionExpired
	}

	return session.Wallet, nil
}

// Revoke removes the session if present. Revoking an unknown or already
// revoked token is a no-op.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	return m.store.Delete(ctx, token)
}

// Sweep removes all sessions past their expiry.
func (m *SessionManager) Sweep(ctx context.Context) (int, error) {
	return m.store.DeleteExpired(ctx, m.now())
}
