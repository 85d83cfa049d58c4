package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/blocchat/gatekeeper/core"
	"github.com/blocchat/gatekeeper/internal/eth"
	"github.com/blocchat/gatekeeper/ports"
)

// SignatureVerifier recovers the signer of message from signature and reports
// whether it matches address. internal/eth provides the production one; tests
// substitute their own.
type SignatureVerifier func(address, message, signature string) (bool, error)

// AuthService composes the whitelist check, nonce redemption, signature
// verification and session issuance into the authenticate flow.
type AuthService struct {
	whitelist core.Whitelist
	nonces    *NonceManager
	sessions  *SessionManager
	verify    SignatureVerifier
	events    ports.EventPublisher
	log       zerolog.Logger
}

// NewAuthService creates the auth orchestrator. events may be nil when no
// publisher is configured.
func NewAuthService(
	whitelist core.Whitelist,
	nonces *NonceManager,
	sessions *SessionManager,
	events ports.EventPublisher,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		whitelist: whitelist,
		nonces:    nonces,
		sessions:  sessions,
		verify:    eth.VerifyPersonalSignature,
		events:    events,
		log:       log.With().Str("component", "auth").Logger(),
	}
}

// Sessions exposes the session manager for the request guard.
func (s *AuthService) Sessions() *SessionManager {
	return s.sessions
}

// RequestChallenge issues a fresh nonce for the wallet and returns it with
// the message the client must sign.
func (s *AuthService) RequestChallenge(ctx context.Context, wallet string) (nonce, message string, err error) {
	wallet, err = core.NormalizeWallet(wallet)
	if err != nil {
		return "", "", err
	}

	nonce, message, err = s.nonces.Issue(ctx, wallet)
	if err != nil {
		return "", "", err
	}

	s.log.Info().Str("wallet", wallet).Msg("issued challenge nonce")
	return nonce, message, nil
}

// Authenticate runs the full challenge-response flow. The whitelist is
// consulted before the nonce store so a non-whitelisted wallet can never
// consume a nonce, and the signed message is reconstructed from the redeemed
// nonce rather than anything the client supplied separately.
func (s *AuthService) Authenticate(ctx context.Context, wallet, nonce, signature string) (token, identity string, err error) {
	wallet, err = core.NormalizeWallet(wallet)
	if err != nil {
		return "", "", err
	}

	if !s.whitelist.Contains(wallet) {
		s.log.Warn().Str("wallet", wallet).Msg("authentication attempt from non-whitelisted wallet")
		return "", "", core.ErrNotWhitelisted
	}

	challenge, err := s.nonces.Redeem(ctx, wallet, nonce)
	if err != nil {
		s.log.Warn().Str("wallet", wallet).Err(err).Msg("nonce redemption failed")
		return "", "", err
	}

	message := ChallengeMessage(challenge.Nonce)
	ok, err := s.verify(wallet, message, signature)
	if err != nil {
		s.log.Warn().Str("wallet", wallet).Err(err).Msg("signature verification error")
		return "", "", err
	}
	if !ok {
		s.log.Warn().Str("wallet", wallet).Msg("signature does not match wallet")
		return "", "", core.ErrInvalidSignature
	}

	token, err = s.sessions.Create(ctx, wallet)
	if err != nil {
		return "", "", fmt.Errorf("failed to create session: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishLogin(ctx, wallet); err != nil {
			s.log.Error().Str("wallet", wallet).Err(err).Msg("failed to publish login event")
		}
	}

	s.log.Info().Str("wallet", wallet).Msg("admin authenticated")
	return token, wallet, nil
}

// Check resolves a session token to a wallet. It never errors to the caller:
// an absent, unknown or expired token simply yields ok=false.
func (s *AuthService) Check(ctx context.Context, token string) (wallet string, ok bool) {
	if token == "" {
		return "", false
	}
	wallet, err := s.sessions.Validate(ctx, token)
	if err != nil {
		if !errors.Is(err, core.ErrSessionNotFound) && !errors.Is(err, core.ErrSessionExpired) {
			s.log.Error().Err(err).Msg("session validation failed")
		}
		return "", false
	}
	return wallet, true
}

// Logout revokes the session. Idempotent; always succeeds from the caller's
// perspective.
func (s *AuthService) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}

	wallet, _ := s.sessions.Validate(ctx, token)
	if err := s.sessions.Revoke(ctx, token); err != nil {
		s.log.Error().Err(err).Msg("failed to revoke session")
		return
	}

	if s.events != nil && wallet != "" {
		if err := s.events.PublishLogout(ctx, wallet); err != nil {
			s.log.Error().Str("wallet", wallet).Err(err).Msg("failed to publish logout event")
		}
	}
}
