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

const callDir = "call"

// CallRepository is the Badger-backed store.CallRepository.
type CallRepository struct {
	store *badgerhold.Store
}

var _ store.CallRepository = (*CallRepository)(nil)

func NewCallRepository(baseDir string, logger badger.Logger) (*CallRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, callDir)
	}
	db, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open call store: %w", err)
	}
	return &CallRepository{db}, nil
}

func (r *CallRepository) Store(ctx context.Context, intent models.CallIntent) error {
	return r.store.Insert(intent.ID, toCallData(intent))
}

func (r *CallRepository) GetByID(ctx context.Context, id string) (*models.CallIntent, error) {
	var data callData
	err := r.store.Get(id, &data)
	if err == badgerhold.ErrNotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get call intent: %w", err)
	}

	intent, err := data.toIntent()
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *CallRepository) ListByProject(ctx context.Context, projectID string) ([]models.CallIntent, error) {
	var dataList []callData
	if err := r.store.Find(&dataList, badgerhold.Where("ProjectID").Eq(projectID).Index("ProjectID")); err != nil {
		return nil, fmt.Errorf("failed to list call intents: %w", err)
	}
	return callsFromData(dataList)
}

func (r *CallRepository) ListBySender(ctx context.Context, sender common.Address) ([]models.CallIntent, error) {
	var dataList []callData
	if err := r.store.Find(&dataList, badgerhold.Where("Sender").Eq(sender.Hex()).Index("Sender")); err != nil {
		return nil, fmt.Errorf("failed to list call intents: %w", err)
	}
	return callsFromData(dataList)
}

// AttachTxInfo records the broadcast hash and the attaching caller
// exactly once.
func (r *CallRepository) AttachTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var data callData
		err := r.store.TxGet(tx, id, &data)
		if err == badgerhold.ErrNotFound {
			return store.ErrCannotAttach
		}
		if err != nil {
			return fmt.Errorf("failed to get call intent: %w", err)
		}
		if data.TxHash != "" {
			return store.ErrCannotAttach
		}

		data.TxHash = txHash.Hex()
		data.Caller = caller.Hex()
		return r.store.TxUpdate(tx, id, data)
	})
}

func (r *CallRepository) Close() error {
	return r.store.Close()
}

type callData struct {
	ID              string
	ProjectID       string `badgerhold:"index"`
	ChainID         int
	RPCOverride     string
	RedirectURL     string
	CreatedAt       int64
	ContractAddress string
	FunctionName    string
	CallData        string
	EthValue        string
	Sender          string `badgerhold:"index"`
	TxHash          string
	Caller          string
}

func toCallData(intent models.CallIntent) callData {
	return callData{
		ID:              intent.ID,
		ProjectID:       intent.ProjectID,
		ChainID:         intent.ChainID,
		RPCOverride:     intent.RPCOverride,
		RedirectURL:     intent.RedirectURL,
		CreatedAt:       intent.CreatedAt.UnixNano(),
		ContractAddress: intent.ContractAddress.Hex(),
		FunctionName:    intent.FunctionName,
		CallData:        bytesToString(intent.CallData),
		EthValue:        bigToString(intent.EthValue),
		Sender:          addrToString(intent.Sender),
		TxHash:          hashToString(intent.TxHash),
		Caller:          addrToString(intent.Caller),
	}
}

func (d *callData) toIntent() (models.CallIntent, error) {
	payload, err := bytesFromString(d.CallData)
	if err != nil {
		return models.CallIntent{}, err
	}
	ethValue, err := bigFromString(d.EthValue)
	if err != nil {
		return models.CallIntent{}, err
	}

	return models.CallIntent{
		IntentBase: models.IntentBase{
			ID:          d.ID,
			ProjectID:   d.ProjectID,
			ChainID:     d.ChainID,
			RPCOverride: d.RPCOverride,
			RedirectURL: d.RedirectURL,
			CreatedAt:   time.Unix(0, d.CreatedAt).UTC(),
		},
		ContractAddress: common.HexToAddress(d.ContractAddress),
		FunctionName:    d.FunctionName,
		CallData:        payload,
		EthValue:        ethValue,
		Sender:          addrFromString(d.Sender),
		TxHash:          hashFromString(d.TxHash),
		Caller:          addrFromString(d.Caller),
	}, nil
}

func callsFromData(dataList []callData) ([]models.CallIntent, error) {
	intents := make([]models.CallIntent, 0, len(dataList))
	for _, data := range dataList {
		intent, err := data.toIntent()
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, nil
}
