package core

import "errors"

var (
	// ErrNotWhitelisted means the wallet is not an admin. Checked before any
	// nonce state is touched, so probing cannot consume issued nonces.
	ErrNotWhitelisted = errors.New("wallet is not whitelisted")

	// ErrNonceNotFound means no challenge is stored for the wallet.
	ErrNonceNotFound = errors.New("nonce not found for wallet")

	// ErrNonceMismatch means the presented nonce differs from the stored one.
	// The stored nonce is left intact.
	ErrNonceMismatch = errors.New("nonce does not match")

	// ErrNonceExpired means the challenge aged out and has been removed.
	ErrNonceExpired = errors.New("nonce has expired")

	// ErrInvalidSignature means recovery succeeded but the signer is not the
	// claimed wallet.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrMalformedSignature means the signature is not a decodable 65-byte
	// r||s||v value.
	ErrMalformedSignature = errors.New("malformed signature")

	// ErrSignatureRecovery means public-key recovery failed on the digest.
	ErrSignatureRecovery = errors.New("signature recovery failed")

	// ErrInvalidAddress means the value is not a fixed-length hex address.
	ErrInvalidAddress = errors.New("invalid wallet address")

	// ErrSessionNotFound means no session is stored for the token.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired means the session aged out and has been removed.
	ErrSessionExpired = errors.New("session has expired")

	// ErrInvalidOperator means a gate policy carries an unknown combination
	// rule. Evaluation fails closed.
	ErrInvalidOperator = errors.New("invalid gate operator")

	// ErrPolicyNotFound means no gate policy exists for the conversation.
	ErrPolicyNotFound = errors.New("gate policy not found")

	// ErrInvalidAmount means a requirement minimum is not a non-negative
	// integer in the token's smallest unit.
	ErrInvalidAmount = errors.New("invalid requirement amount")

	// ErrUpstream means the database or the blockchain node failed.
	ErrUpstream = errors.New("upstream failure")
)
