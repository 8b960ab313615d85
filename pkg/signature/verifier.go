package signature

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Verifier checks personal-message signatures. It validates against the
// EIP-191 prefixed digest ("\x19Ethereum Signed Message:\n" + length +
// message), which is what wallet personal_sign produces.
type Verifier interface {
	Verify(message string, signedMessage string, signer common.Address) bool
}

// PersonalSignVerifier is the production Verifier. It fails closed: any
// malformed signature, wrong length, bad hex or unrecoverable public key
// yields false, never an error.
type PersonalSignVerifier struct{}

var _ Verifier = PersonalSignVerifier{}

func (PersonalSignVerifier) Verify(message string, signedMessage string, signer common.Address) bool {
	sig, err := hex.DecodeString(strings.TrimPrefix(signedMessage, "0x"))
	if err != nil {
		return false
	}
	if len(sig) != crypto.SignatureLength {
		return false
	}

	// Wallets emit V as 27/28; recovery wants 0/1. Work on a copy so the
	// caller's bytes stay untouched.
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return false
	}

	digest := accounts.TextHash([]byte(message))
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return false
	}

	return crypto.PubkeyToAddress(*pub) == signer
}
