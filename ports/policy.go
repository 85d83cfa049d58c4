package ports

import (
	"context"

	"github.com/blocchat/gatekeeper/core"
)

// GatePolicyStore persists gate policies keyed by conversation.
type GatePolicyStore interface {
	// Load returns the policy for the conversation, or core.ErrPolicyNotFound
	// when no requirements exist (an absent gate is permissive).
	Load(ctx context.Context, conversationID string) (core.GatePolicy, error)

	// Replace atomically deletes the conversation's prior requirements and
	// inserts the new set. The stored state is never a mix of old and new.
	Replace(ctx context.Context, policy core.GatePolicy) error

	// Delete removes all requirements for the conversation. Idempotent.
	Delete(ctx context.Context, conversationID string) error
}
