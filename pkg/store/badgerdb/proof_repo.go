package badgerdb

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"

	"github.com/chain-vouch/chain-vouch/pkg/models"
	"github.com/chain-vouch/chain-vouch/pkg/store"
)

const proofDir = "proof"

// BalanceProofRepository is the Badger-backed store.BalanceProofRepository.
type BalanceProofRepository struct {
	store *badgerhold.Store
}

var _ store.BalanceProofRepository = (*BalanceProofRepository)(nil)

func NewBalanceProofRepository(baseDir string, logger badger.Logger) (*BalanceProofRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, proofDir)
	}
	db, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open balance proof store: %w", err)
	}
	return &BalanceProofRepository{db}, nil
}

func (r *BalanceProofRepository) Store(ctx context.Context, intent models.BalanceProofIntent) error {
	return r.store.Insert(intent.ID, toProofData(intent))
}

func (r *BalanceProofRepository) GetByID(ctx context.Context, id string) (*models.BalanceProofIntent, error) {
	var data proofData
	err := r.store.Get(id, &data)
	if err == badgerhold.ErrNotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance proof intent: %w", err)
	}

	intent, err := data.toIntent()
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *BalanceProofRepository) ListByProject(ctx context.Context, projectID string) ([]models.BalanceProofIntent, error) {
	var dataList []proofData
	if err := r.store.Find(&dataList, badgerhold.Where("ProjectID").Eq(projectID).Index("ProjectID")); err != nil {
		return nil, fmt.Errorf("failed to list balance proof intents: %w", err)
	}

	intents := make([]models.BalanceProofIntent, 0, len(dataList))
	for _, data := range dataList {
		intent, err := data.toIntent()
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, nil
}

// AttachSignedMessage records the answering wallet and its signature in
// one exactly-once operation.
func (r *BalanceProofRepository) AttachSignedMessage(ctx context.Context, id string, wallet common.Address, signedMessage string) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var data proofData
		err := r.store.TxGet(tx, id, &data)
		if err == badgerhold.ErrNotFound {
			return store.ErrCannotAttach
		}
		if err != nil {
			return fmt.Errorf("failed to get balance proof intent: %w", err)
		}
		if data.ActualWallet != "" || data.SignedMessage != "" {
			return store.ErrCannotAttach
		}

		data.ActualWallet = wallet.Hex()
		data.SignedMessage = signedMessage
		return r.store.TxUpdate(tx, id, data)
	})
}

func (r *BalanceProofRepository) Close() error {
	return r.store.Close()
}

type proofData struct {
	ID              string
	ProjectID       string `badgerhold:"index"`
	ChainID         int
	RPCOverride     string
	RedirectURL     string
	CreatedAt       int64
	TokenAddress    string
	BlockPin        string
	RequestedWallet string
	ActualWallet    string
	SignedMessage   string
}

func toProofData(intent models.BalanceProofIntent) proofData {
	return proofData{
		ID:              intent.ID,
		ProjectID:       intent.ProjectID,
		ChainID:         intent.ChainID,
		RPCOverride:     intent.RPCOverride,
		RedirectURL:     intent.RedirectURL,
		CreatedAt:       intent.CreatedAt.UnixNano(),
		TokenAddress:    addrToString(intent.TokenAddress),
		BlockPin:        bigToString(intent.BlockPin),
		RequestedWallet: addrToString(intent.RequestedWallet),
		ActualWallet:    addrToString(intent.ActualWallet),
		SignedMessage:   intent.SignedMessage,
	}
}

func (d *proofData) toIntent() (models.BalanceProofIntent, error) {
	blockPin, err := bigFromString(d.BlockPin)
	if err != nil {
		return models.BalanceProofIntent{}, err
	}

	return models.BalanceProofIntent{
		IntentBase: models.IntentBase{
			ID:          d.ID,
			ProjectID:   d.ProjectID,
			ChainID:     d.ChainID,
			RPCOverride: d.RPCOverride,
			RedirectURL: d.RedirectURL,
			CreatedAt:   time.Unix(0, d.CreatedAt).UTC(),
		},
		TokenAddress:    addrFromString(d.TokenAddress),
		BlockPin:        blockPin,
		RequestedWallet: addrFromString(d.RequestedWallet),
		ActualWallet:    addrFromString(d.ActualWallet),
		SignedMessage:   d.SignedMessage,
	}, nil
}
