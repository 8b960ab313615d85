package badgerdb

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// The data records in this package keep chain values as strings: addresses
// and hashes in 0x-hex, amounts in decimal. That keeps the encoded records
// readable in the store and independent of go-ethereum's binary layouts.

func addrToString(addr *common.Address) string {
	if addr == nil {
		return ""
	}
	return addr.Hex()
}

func addrFromString(s string) *common.Address {
	if s == "" {
		return nil
	}
	addr := common.HexToAddress(s)
	return &addr
}

func hashToString(hash *common.Hash) string {
	if hash == nil {
		return ""
	}
	return hash.Hex()
}

func hashFromString(s string) *common.Hash {
	if s == "" {
		return nil
	}
	hash := common.HexToHash(s)
	return &hash
}

func bigToString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func bigFromString(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid stored amount: %s", s)
	}
	return v, nil
}

func bytesToString(b []byte) string {
	return hex.EncodeToString(b)
}

func bytesFromString(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid stored payload: %w", err)
	}
	return b, nil
}
