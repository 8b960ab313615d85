package signature

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMessage = "Verification message ID to sign: 7d86b0ac-a9a6-40fc-ac6d-2a29ca687f73"

func signPersonal(t *testing.T, message string) (string, common.Address) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)

	return "0x" + hex.EncodeToString(sig), crypto.PubkeyToAddress(key.PublicKey)
}

func TestVerifyValidSignature(t *testing.T) {
	verifier := PersonalSignVerifier{}

	signed, signer := signPersonal(t, testMessage)

	assert.True(t, verifier.Verify(testMessage, signed, signer))
}

func TestVerifyAcceptsLegacyRecoveryID(t *testing.T) {
	verifier := PersonalSignVerifier{}

	signed, signer := signPersonal(t, testMessage)

	// Shift V from 0/1 to the 27/28 form most wallets produce.
	raw, err := hex.DecodeString(signed[2:])
	require.NoError(t, err)
	raw[crypto.RecoveryIDOffset] += 27

	assert.True(t, verifier.Verify(testMessage, "0x"+hex.EncodeToString(raw), signer))
}

func TestVerifyWrongSigner(t *testing.T) {
	verifier := PersonalSignVerifier{}

	signed, _ := signPersonal(t, testMessage)
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")

	assert.False(t, verifier.Verify(testMessage, signed, other))
}

func TestVerifyWrongMessage(t *testing.T) {
	verifier := PersonalSignVerifier{}

	signed, signer := signPersonal(t, testMessage)

	assert.False(t, verifier.Verify("a different message", signed, signer))
}

func TestVerifyMalformedSignatures(t *testing.T) {
	verifier := PersonalSignVerifier{}

	signed, signer := signPersonal(t, testMessage)

	testCases := []struct {
		name   string
		signed string
	}{
		{name: "empty", signed: ""},
		{name: "non-hex", signed: "0xnothex"},
		{name: "truncated", signed: signed[:len(signed)-4]},
		{name: "too long", signed: signed + "abcd"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.False(t, verifier.Verify(testMessage, tc.signed, signer))
		})
	}
}

func TestVerifyRejectsInvalidRecoveryID(t *testing.T) {
	verifier := PersonalSignVerifier{}

	signed, signer := signPersonal(t, testMessage)

	raw, err := hex.DecodeString(signed[2:])
	require.NoError(t, err)
	raw[crypto.RecoveryIDOffset] = 5

	assert.False(t, verifier.Verify(testMessage, "0x"+hex.EncodeToString(raw), signer))
}
