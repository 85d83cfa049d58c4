// Package eth verifies EIP-191 personal-message signatures by secp256k1
// public-key recovery. It is pure: nothing here touches service state.
package eth

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/blocchat/gatekeeper/core"
)

// SignatureLength is the expected r||s||v signature size in bytes.
const SignatureLength = 65

// PersonalHash applies the personal-message convention: the UTF-8 message is
// prefixed with "\x19Ethereum Signed Message:\n" plus its byte length, then
// Keccak-256 hashed.
func PersonalHash(message string) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return crypto.Keccak256([]byte(prefixed))
}

// VerifyPersonalSignature recovers the signer of message from a hex-encoded
// 65-byte signature and reports whether it equals address, compared
// case-insensitively. The recovery id is accepted as 0/1 or the 27/28 form
// wallets produce.
func VerifyPersonalSignature(address, message, signature string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, core.ErrInvalidAddress
	}

	sig, err := hexutil.Decode(signature)
	if err != nil {
		return false, fmt.Errorf("%w: %v", core.ErrMalformedSignature, err)
	}
	if len(sig) != SignatureLength {
		return false, fmt.Errorf("%w: expected %d bytes, got %d", core.ErrMalformedSignature, SignatureLength, len(sig))
	}

	v := sig[SignatureLength-1]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return false, fmt.Errorf("%w: recovery id %d out of range", core.ErrMalformedSignature, sig[SignatureLength-1])
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	normalized[SignatureLength-1] = v

	pub, err := crypto.SigToPub(PersonalHash(message), normalized)
	if err != nil {
		return false, fmt.Errorf("%w: %v", core.ErrSignatureRecovery, err)
	}

	recovered := crypto.PubkeyToAddress(*pub)
	return strings.EqualFold(recovered.Hex(), common.HexToAddress(address).Hex()), nil
}
