package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chain-vouch/chain-vouch/pkg/models"
)

var (
	// ErrNotFound is returned when no intent exists for the given id.
	ErrNotFound = errors.New("intent not found")

	// ErrCannotAttach is returned when an attach affects zero rows: the
	// slot is already filled or the intent vanished. It is a write
	// conflict, never a reconciliation status.
	ErrCannotAttach = errors.New("cannot attach: already attached or intent not found")
)

// SendRepository persists send intents. Attaches are exactly-once.
type SendRepository interface {
	Store(ctx context.Context, intent models.SendIntent) error
	GetByID(ctx context.Context, id string) (*models.SendIntent, error)
	ListByProject(ctx context.Context, projectID string) ([]models.SendIntent, error)
	ListBySender(ctx context.Context, sender common.Address) ([]models.SendIntent, error)
	AttachTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error
}

// PayoutRepository persists payout intents. The approve and disperse
// hashes are attached independently, each exactly-once.
type PayoutRepository interface {
	Store(ctx context.Context, intent models.PayoutIntent) error
	GetByID(ctx context.Context, id string) (*models.PayoutIntent, error)
	ListByProject(ctx context.Context, projectID string) ([]models.PayoutIntent, error)
	ListBySender(ctx context.Context, sender common.Address) ([]models.PayoutIntent, error)
	AttachApproveTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error
	AttachDisperseTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error
}

// DeployRepository persists deployment intents. SetDeployedAddress is
// idempotent: recording the same address again is a no-op.
type DeployRepository interface {
	Store(ctx context.Context, intent models.DeployIntent) error
	GetByID(ctx context.Context, id string) (*models.DeployIntent, error)
	ListByProject(ctx context.Context, projectID string) ([]models.DeployIntent, error)
	ListByDeployer(ctx context.Context, deployer common.Address) ([]models.DeployIntent, error)
	AttachTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error
	SetDeployedAddress(ctx context.Context, id string, deployed common.Address) error
}

// CallRepository persists function-call intents.
type CallRepository interface {
	Store(ctx context.Context, intent models.CallIntent) error
	GetByID(ctx context.Context, id string) (*models.CallIntent, error)
	ListByProject(ctx context.Context, projectID string) ([]models.CallIntent, error)
	ListBySender(ctx context.Context, sender common.Address) ([]models.CallIntent, error)
	AttachTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error
}

// BalanceProofRepository persists balance-proof intents. The wallet and
// signature are attached together in one exactly-once operation.
type BalanceProofRepository interface {
	Store(ctx context.Context, intent models.BalanceProofIntent) error
	GetByID(ctx context.Context, id string) (*models.BalanceProofIntent, error)
	ListByProject(ctx context.Context, projectID string) ([]models.BalanceProofIntent, error)
	AttachSignedMessage(ctx context.Context, id string, wallet common.Address, signedMessage string) error
}
