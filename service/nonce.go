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

// DefaultNonceTTL is how long an issued challenge stays redeemable.
const DefaultNonceTTL = 5 * time.Minute

const nonceBytes = 16 // 128 bits of entropy, hex-encoded

const challengeTemplate = "Sign this message to authenticate with BlocChat Admin Dashboard.\n\nNonce: %s\n\nThis signature will not trigger any blockchain transaction or cost gas fees."

// ChallengeMessage renders the exact message the client must sign for the
// given nonce. Authentication reconstructs it from the redeemed nonce, never
// from client input.
func ChallengeMessage(nonce string) string {
	return fmt.Sprintf(challengeTemplate, nonce)
}

// NonceManager issues and redeems one-time challenges, one per wallet.
type NonceManager struct {
	store ports.ChallengeStore
	ttl   time.Duration

	now func() time.Time
}

// NewNonceManager creates a nonce manager over the given store.
func NewNonceManager(store ports.ChallengeStore, ttl time.Duration) *NonceManager {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &NonceManager{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Issue generates a fresh nonce for the wallet, overwriting any previous
// unredeemed one, and returns the nonce together with the message to sign.
func (m *NonceManager) Issue(ctx context.Context, wallet string) (nonce, message string, err error) {
	wallet, err = core.NormalizeWallet(wallet)
	if err != nil {
		return "", "", err
	}

	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce = hex.EncodeToString(buf)

	challenge := core.Challenge{
		Wallet:   wallet,
		Nonce:    nonce,
		IssuedAt: m.now(),
	}
	if err := m.store.Put(ctx, wallet, challenge); err != nil {
		return "", "", fmt.Errorf("failed to store nonce: %w", err)
	}

	return nonce, ChallengeMessage(nonce), nil
}

// Redeem consumes the wallet's stored challenge if the presented nonce
// matches. A mismatch leaves the stored nonce intact; an expired nonce is
// deleted. On success the returned challenge carries the redeemed nonce and
// the record is gone, so a second redemption fails with ErrNonceNotFound.
func (m *NonceManager) Redeem(ctx context.Context, wallet, presented string) (core.Challenge, error) {
	wallet, err := core.NormalizeWallet(wallet)
	if err != nil {
		return core.Challenge{}, err
	}

	// Take is the atomic single-use step: of two concurrent redeemers, the
	// loser observes ErrNonceNotFound here. Taking before comparing means a
	// challenge issued mid-redemption is never consumed by a stale attempt;
	// the mismatch branch puts it back.
	challenge, err := m.store.Take(ctx, wallet)
	if err != nil {
		return core.Challenge{}, err
	}

	if challenge.Nonce != presented {
		_ = m.store.Put(ctx, wallet, challenge)
		return core.Challenge{}, core.ErrNonceMismatch
	}

	if challenge.ExpiredAt(m.now(), m.ttl) {
		return core.Challenge{}, core.ErrNonceExpired
	}

	return challenge, nil
}

// Sweep removes challenges past their TTL.
func (m *NonceManager) Sweep(ctx context.Context) (int, error) {
	return m.store.DeleteExpired(ctx, m.now().Add(-m.ttl))
}
