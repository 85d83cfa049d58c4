package eth

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blocchat/gatekeeper/core"
)

func signMessage(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(PersonalHash(message), key)
	require.NoError(t, err)
	return hexutil.Encode(sig)
}

func TestVerifyPersonalSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	message := "Sign this message to authenticate.\n\nNonce: abc123"

	t.Run("valid signature matches signer", func(t *testing.T) {
		sig := signMessage(t, key, message)

		ok, err := VerifyPersonalSignature(address, message, sig)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("address comparison is case-insensitive", func(t *testing.T) {
		sig := signMessage(t, key, message)

		ok, err := VerifyPersonalSignature(strings.ToLower(address), message, sig)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("legacy 27/28 recovery id is accepted", func(t *testing.T) {
		raw, err := crypto.Sign(PersonalHash(message), key)
		require.NoError(t, err)
		raw[64] += 27

		ok, err := VerifyPersonalSignature(address, message, hexutil.Encode(raw))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("different message does not verify", func(t *testing.T) {
		sig := signMessage(t, key, message)

		ok, err := VerifyPersonalSignature(address, message+" tampered", sig)
		if err == nil {
			assert.False(t, ok)
		}
	})

	t.Run("signature by another key does not verify", func(t *testing.T) {
		other, err := crypto.GenerateKey()
		require.NoError(t, err)
		sig := signMessage(t, other, message)

		ok, err := VerifyPersonalSignature(address, message, sig)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("flipped signature byte fails or mismatches", func(t *testing.T) {
		raw, err := crypto.Sign(PersonalHash(message), key)
		require.NoError(t, err)
		raw[10] ^= 0xff

		ok, err := VerifyPersonalSignature(address, message, hexutil.Encode(raw))
		if err != nil {
			assert.ErrorIs(t, err, core.ErrSignatureRecovery)
		} else {
			assert.False(t, ok)
		}
	})

	t.Run("undecodable signature is malformed", func(t *testing.T) {
		_, err := VerifyPersonalSignature(address, message, "not-hex")
		assert.ErrorIs(t, err, core.ErrMalformedSignature)
	})

	t.Run("short signature is malformed", func(t *testing.T) {
		_, err := VerifyPersonalSignature(address, message, "0xdeadbeef")
		assert.ErrorIs(t, err, core.ErrMalformedSignature)
	})

	t.Run("out-of-range recovery id is malformed", func(t *testing.T) {
		raw, err := crypto.Sign(PersonalHash(message), key)
		require.NoError(t, err)
		raw[64] = 9

		_, err = VerifyPersonalSignature(address, message, hexutil.Encode(raw))
		assert.ErrorIs(t, err, core.ErrMalformedSignature)
	})

	t.Run("invalid address is rejected", func(t *testing.T) {
		sig := signMessage(t, key, message)

		_, err := VerifyPersonalSignature("0x123", message, sig)
		assert.ErrorIs(t, err, core.ErrInvalidAddress)
	})
}

func TestPersonalHashUsesByteLength(t *testing.T) {
	// Multi-byte UTF-8 characters count by bytes, not runes, in the prefix.
	msg := "héllo"
	expected := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n6héllo"))
	assert.Equal(t, expected, PersonalHash(msg))
}
