package core

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Challenge is a one-time nonce bound to a wallet. A wallet holds at most one
// unredeemed challenge at a time; issuing a new one overwrites the previous.
type Challenge struct {
	Wallet   string    // Lowercased wallet address the nonce was issued to
	Nonce    string    // Random hex value the client must embed in the signed message
	IssuedAt time.Time // When the challenge was created
}

// ExpiredAt reports whether the challenge is past its TTL at the given moment.
func (c Challenge) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.IssuedAt) > ttl
}

// Session represents an authenticated admin session. Sessions are keyed by an
// opaque token held by the client; a wallet may hold several live sessions.
type Session struct {
	Wallet    string    // Lowercased wallet address
	CreatedAt time.Time // When the session was created
	ExpiresAt time.Time // After this moment the session no longer validates
}

// ExpiredAt reports whether the session is past its expiry at the given moment.
func (s Session) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Whitelist is the immutable set of admin wallets loaded at startup.
type Whitelist map[string]struct{}

// NewWhitelist builds a whitelist from raw addresses, normalizing to lowercase
// and dropping entries that are not valid hex addresses.
func NewWhitelist(addresses []string) Whitelist {
	wl := make(Whitelist, len(addresses))
	for _, a := range addresses {
		a = strings.TrimSpace(a)
		if !common.IsHexAddress(a) {
			continue
		}
		wl[strings.ToLower(a)] = struct{}{}
	}
	return wl
}

// Contains reports whether the wallet is whitelisted.
func (w Whitelist) Contains(wallet string) bool {
	_, ok := w[strings.ToLower(wallet)]
	return ok
}

// NormalizeWallet validates a wallet address and returns its lowercase form.
// Identity comparison throughout the service is on the normalized value.
func NormalizeWallet(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(address), nil
}
