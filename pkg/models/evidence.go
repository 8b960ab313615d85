package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TransactionEvidence is a snapshot of a mined transaction as observed on
// chain. It is never persisted; every reconciliation fetches it fresh.
type TransactionEvidence struct {
	Hash common.Hash
	From common.Address
	// To is the zero address for contract-creation transactions.
	To common.Address
	// DeployedAddress is set only for contract-creation transactions.
	DeployedAddress *common.Address
	Data            []byte
	Value           *big.Int
	Confirmations   uint64
	Timestamp       time.Time
	Success         bool
}

// BalanceEvidence is an account balance snapshot at a pinned block.
type BalanceEvidence struct {
	Wallet      common.Address
	BlockNumber *big.Int
	Timestamp   time.Time
	Amount      *big.Int
}
