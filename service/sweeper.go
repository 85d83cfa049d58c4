package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically removes expired nonces and sessions. It runs
// concurrently with in-flight operations; the stores' per-operation
// exclusivity is all the coordination it needs.
type Sweeper struct {
	nonces   *NonceManager
	sessions *SessionManager
	interval time.Duration
	log      zerolog.Logger
}

// NewSweeper creates a sweeper over both managers.
func NewSweeper(nonces *NonceManager, sessions *SessionManager, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		nonces:   nonces,
		sessions: sessions,
		interval: interval,
		log:      log.With().Str("component", "sweeper").Logger(),
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	nonces, err := s.nonces.Sweep(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("nonce sweep failed")
	}
	sessions, err := s.sessions.Sweep(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
	}
	if nonces > 0 || sessions > 0 {
		s.log.Debug().Int("nonces", nonces).Int("sessions", sessions).Msg("swept expired records")
	}
}
