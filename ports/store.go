package ports

import (
	"context"
	"time"

	"github.com/blocchat/gatekeeper/core"
)

// ChallengeStore holds at most one unredeemed challenge per wallet. Each
// method is atomic with respect to the others, which is what lets two
// concurrent redemptions of the same nonce resolve to exactly one winner:
// both may Get, but only one Take succeeds.
type ChallengeStore interface {
	// Put stores the challenge, overwriting any previous one for the wallet.
	Put(ctx context.Context, wallet string, c core.Challenge) error

	// Get returns the stored challenge or core.ErrNonceNotFound.
	Get(ctx context.Context, wallet string) (core.Challenge, error)

	// Take removes and returns the stored challenge in one step, or fails
	// with core.ErrNonceNotFound.
	Take(ctx context.Context, wallet string) (core.Challenge, error)

	// Delete removes the challenge if present. Idempotent.
	Delete(ctx context.Context, wallet string) error

	// DeleteExpired removes challenges issued before the cutoff and reports
	// how many were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// SessionStore holds sessions keyed by opaque token.
type SessionStore interface {
	// Put stores the session under the token.
	Put(ctx context.Context, token string, s core.Session) error

	// Get returns the stored session or core.ErrSessionNotFound.
	Get(ctx context.Context, token string) (core.Session, error)

	// Delete removes the session if present. Idempotent.
	Delete(ctx context.Context, token string) error

	// DeleteExpired removes sessions whose expiry precedes now and reports
	// how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
