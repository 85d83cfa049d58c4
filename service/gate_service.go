package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/blocchat/gatekeeper/core"
	"github.com/blocchat/gatekeeper/ports"
)

// DefaultGateTimeout bounds a whole gate evaluation, all RPC calls included.
const DefaultGateTimeout = 10 * time.Second

// GateService manages gate policies and evaluates them against live on-chain
// balances. Evaluation fails closed: any balance fetch error or unknown
// operator denies access.
type GateService struct {
	policies   ports.GatePolicyStore
	oracle     ports.BalanceOracle
	timeout    time.Duration
	concurrent bool
	log        zerolog.Logger
}

// NewGateService creates the gate evaluator. timeout bounds each evaluation;
// concurrent selects fan-out versus sequential balance fetches.
func NewGateService(
	policies ports.GatePolicyStore,
	oracle ports.BalanceOracle,
	timeout time.Duration,
	concurrent bool,
	log zerolog.Logger,
) *GateService {
	if timeout <= 0 {
		timeout = DefaultGateTimeout
	}
	return &GateService{
		policies:   policies,
		oracle:     oracle,
		timeout:    timeout,
		concurrent: concurrent,
		log:        log.With().Str("component", "gate").Logger(),
	}
}

// SetPolicy validates and atomically replaces the conversation's policy.
func (s *GateService) SetPolicy(ctx context.Context, conversationID string, requirements []core.TokenRequirement, operator core.Operator) error {
	if !operator.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidOperator, operator)
	}
	if len(requirements) == 0 {
		return fmt.Errorf("%w: policy needs at least one requirement", core.ErrInvalidAmount)
	}
	normalized := make([]core.TokenRequirement, 0, len(requirements))
	for _, r := range requirements {
		if r.TokenAddress != nil && !common.IsHexAddress(*r.TokenAddress) {
			return fmt.Errorf("%w: %q", core.ErrInvalidAddress, *r.TokenAddress)
		}
		amount, err := canonicalMinAmount(r.MinAmount)
		if err != nil {
			return err
		}
		r.MinAmount = amount
		normalized = append(normalized, r)
	}

	policy := core.GatePolicy{
		ConversationID: conversationID,
		Requirements:   normalized,
		Operator:       operator,
	}
	if err := s.policies.Replace(ctx, policy); err != nil {
		return fmt.Errorf("failed to replace gate policy: %w", err)
	}

	s.log.Info().
		Str("conversation", conversationID).
		Int("requirements", len(requirements)).
		Str("operator", string(operator)).
		Msg("gate policy replaced")
	return nil
}

// GetPolicy returns the conversation's policy or core.ErrPolicyNotFound.
func (s *GateService) GetPolicy(ctx context.Context, conversationID string) (core.GatePolicy, error) {
	return s.policies.Load(ctx, conversationID)
}

// DeletePolicy removes the conversation's policy. Idempotent.
func (s *GateService) DeletePolicy(ctx context.Context, conversationID string) error {
	if err := s.policies.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to delete gate policy: %w", err)
	}
	s.log.Info().Str("conversation", conversationID).Msg("gate policy deleted")
	return nil
}

// Evaluate loads the conversation's policy and decides whether the wallet may
// enter. An absent policy is permissive. A single failed balance fetch aborts
// the whole evaluation; no partial decision is ever returned.
func (s *GateService) Evaluate(ctx context.Context, conversationID, wallet string) (core.GateDecision, error) {
	wallet, err := core.NormalizeWallet(wallet)
	if err != nil {
		return core.GateDecision{}, err
	}

	policy, err := s.policies.Load(ctx, conversationID)
	if err != nil {
		if errors.Is(err, core.ErrPolicyNotFound) {
			return core.GateDecision{Allowed: true, RequirementsMet: []core.RequirementStatus{}}, nil
		}
		return core.GateDecision{}, fmt.Errorf("failed to load gate policy: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	statuses := make([]core.RequirementStatus, len(policy.Requirements))
	if s.concurrent {
		g, gctx := errgroup.WithContext(ctx)
		for i, req := range policy.Requirements {
			g.Go(func() error {
				status, err := s.checkRequirement(gctx, req, wallet)
				if err != nil {
					return err
				}
				statuses[i] = status
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return core.GateDecision{}, err
		}
	} else {
		for i, req := range policy.Requirements {
			status, err := s.checkRequirement(ctx, req, wallet)
			if err != nil {
				return core.GateDecision{}, err
			}
			statuses[i] = status
		}
	}

	allMet, anyMet := true, false
	for _, st := range statuses {
		if st.Met {
			anyMet = true
		} else {
			allMet = false
		}
	}

	var allowed bool
	switch policy.Operator {
	case core.OperatorAnd:
		allowed = allMet
	case core.OperatorOr:
		allowed = anyMet
	default:
		// Unknown operator is a configuration error; deny.
		s.log.Error().
			Str("conversation", conversationID).
			Str("operator", string(policy.Operator)).
			Msg("gate policy has unknown operator, denying access")
		allowed = false
	}

	return core.GateDecision{Allowed: allowed, RequirementsMet: statuses}, nil
}

func (s *GateService) checkRequirement(ctx context.Context, req core.TokenRequirement, wallet string) (core.RequirementStatus, error) {
	required, ok := new(big.Int).SetString(req.MinAmount, 10)
	if !ok || required.Sign() < 0 {
		return core.RequirementStatus{}, fmt.Errorf("%w: %q", core.ErrInvalidAmount, req.MinAmount)
	}

	var (
		balance *big.Int
		err     error
	)
	if req.TokenAddress == nil {
		balance, err = s.oracle.NativeBalance(ctx, wallet)
	} else {
		balance, err = s.oracle.TokenBalance(ctx, *req.TokenAddress, wallet)
	}
	if err != nil {
		return core.RequirementStatus{}, fmt.Errorf("failed to fetch %s balance: %w", req.TokenSymbol, err)
	}

	return core.RequirementStatus{
		Token:    req.TokenSymbol,
		Required: required.String(),
		Balance:  balance.String(),
		Met:      balance.Cmp(required) >= 0,
	}, nil
}

// canonicalMinAmount rejects anything that is not a non-negative integer in
// the token's smallest unit and returns it as a plain base-10 string. Parsing
// goes through decimal so inputs like "1.5" are rejected rather than
// truncated, while integral spellings such as "1.0" or "1e18" are stored in
// the form big.Int parses at evaluation time.
func canonicalMinAmount(raw string) (string, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidAmount, raw)
	}
	if d.IsNegative() || !d.IsInteger() {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidAmount, raw)
	}
	return d.BigInt().String(), nil
}
