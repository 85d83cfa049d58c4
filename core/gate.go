package core

// Operator combines the per-requirement results of a gate policy.
type Operator string

const (
	// OperatorAnd allows access only when every requirement is met.
	OperatorAnd Operator = "AND"

	// OperatorOr allows access when at least one requirement is met.
	OperatorOr Operator = "OR"
)

// Valid reports whether the operator is one of the known combination rules.
func (o Operator) Valid() bool {
	return o == OperatorAnd || o == OperatorOr
}

// TokenRequirement is a single minimum-balance condition. A nil TokenAddress
// means the chain's native coin; otherwise it is an ERC-20 contract address.
// MinAmount is an integer in the token's smallest unit, kept as a decimal
// string so no precision is lost on the way to big-integer comparison.
type TokenRequirement struct {
	TokenAddress *string
	TokenSymbol  string
	MinAmount    string
}

// GatePolicy is the full requirement set guarding one conversation. A policy
// is replaced atomically as a unit; it either has at least one requirement or
// does not exist at all.
type GatePolicy struct {
	ConversationID string
	Requirements   []TokenRequirement
	Operator       Operator
}

// RequirementStatus is the evaluation outcome for one requirement. Required
// and Balance are integer decimal strings in the token's smallest unit.
type RequirementStatus struct {
	Token    string `json:"token"`
	Required string `json:"required"`
	Balance  string `json:"balance"`
	Met      bool   `json:"met"`
}

// GateDecision is the outcome of evaluating a conversation's gate policy for
// one wallet.
type GateDecision struct {
	Allowed         bool                `json:"allowed"`
	RequirementsMet []RequirementStatus `json:"requirements_met"`
}
