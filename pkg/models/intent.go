package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// IntentBase holds the fields shared by every intent kind. An intent is
// created before the corresponding transaction is broadcast; the id and
// creation time are immutable.
type IntentBase struct {
	ID          string
	ProjectID   string
	ChainID     int
	RPCOverride string
	RedirectURL string
	CreatedAt   time.Time
}

// SendIntent is an expected native or token transfer. A nil TokenAddress
// means the chain's native asset is sent directly to the recipient; a
// non-nil one means an ERC-20 transfer call targeting the token contract.
type SendIntent struct {
	IntentBase
	TokenAddress *common.Address
	Recipient    common.Address
	Amount       *big.Int
	// Sender is optional; when nil, any sender is accepted.
	Sender *common.Address
	// TxHash is attached once, out of band, after broadcast.
	TxHash *common.Hash
	Caller *common.Address
}

// PayoutIntent is a compound approve-then-disperse distribution. The
// approve phase exists only when TokenAddress is non-nil; native payouts
// go straight to the disperse contract with the summed value attached.
type PayoutIntent struct {
	IntentBase
	TokenAddress     *common.Address
	DisperseContract common.Address
	Recipients       []common.Address
	Amounts          []*big.Int
	Sender           *common.Address
	ApproveTxHash    *common.Hash
	DisperseTxHash   *common.Hash
	Caller           *common.Address
}

// TotalAmount is the sum of all per-recipient amounts.
func (p *PayoutIntent) TotalAmount() *big.Int {
	total := new(big.Int)
	for _, amount := range p.Amounts {
		total.Add(total, amount)
	}
	return total
}

// DeployIntent is an expected contract deployment. DeployedAddress is
// recorded exactly once, from the first mined evidence that carries one.
type DeployIntent struct {
	IntentBase
	ContractData    []byte
	InitialValue    *big.Int
	Deployer        *common.Address
	DeployedAddress *common.Address
	TxHash          *common.Hash
	Caller          *common.Address
}

// CallIntent is an expected contract function call. CallData is encoded
// at creation time and immutable.
type CallIntent struct {
	IntentBase
	ContractAddress common.Address
	FunctionName    string
	CallData        []byte
	EthValue        *big.Int
	Sender          *common.Address
	TxHash          *common.Hash
	Caller          *common.Address
}

// BalanceProofIntent asks a wallet to prove ownership of a balance by
// signing a challenge message. ActualWallet and SignedMessage are
// attached together, exactly once.
type BalanceProofIntent struct {
	IntentBase
	// TokenAddress nil means the native-asset balance is checked.
	TokenAddress *common.Address
	// BlockPin nil means the latest block.
	BlockPin *big.Int
	// RequestedWallet nil means any wallet may answer.
	RequestedWallet *common.Address
	ActualWallet    *common.Address
	SignedMessage   string
}

// ChallengeMessage is the fixed message the answering wallet must sign.
// It is derived from the intent id and stable for the intent's lifetime.
func (b *BalanceProofIntent) ChallengeMessage() string {
	return "Verification message ID to sign: " + b.ID
}
