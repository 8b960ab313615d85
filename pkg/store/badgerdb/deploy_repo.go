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

const deployDir = "deploy"

// DeployRepository is the Badger-backed store.DeployRepository.
type DeployRepository struct {
	store *badgerhold.Store
}

var _ store.DeployRepository = (*DeployRepository)(nil)

func NewDeployRepository(baseDir string, logger badger.Logger) (*DeployRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, deployDir)
	}
	db, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open deploy store: %w", err)
	}
	return &DeployRepository{db}, nil
}

func (r *DeployRepository) Store(ctx context.Context, intent models.DeployIntent) error {
	return r.store.Insert(intent.ID, toDeployData(intent))
}

func (r *DeployRepository) GetByID(ctx context.Context, id string) (*models.DeployIntent, error) {
	var data deployData
	err := r.store.Get(id, &data)
	if err == badgerhold.ErrNotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deploy intent: %w", err)
	}

	intent, err := data.toIntent()
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *DeployRepository) ListByProject(ctx context.Context, projectID string) ([]models.DeployIntent, error) {
	var dataList []deployData
	if err := r.store.Find(&dataList, badgerhold.Where("ProjectID").Eq(projectID).Index("ProjectID")); err != nil {
		return nil, fmt.Errorf("failed to list deploy intents: %w", err)
	}
	return deploysFromData(dataList)
}

func (r *DeployRepository) ListByDeployer(ctx context.Context, deployer common.Address) ([]models.DeployIntent, error) {
	var dataList []deployData
	if err := r.store.Find(&dataList, badgerhold.Where("Deployer").Eq(deployer.Hex()).Index("Deployer")); err != nil {
		return nil, fmt.Errorf("failed to list deploy intents: %w", err)
	}
	return deploysFromData(dataList)
}

func deploysFromData(dataList []deployData) ([]models.DeployIntent, error) {
	intents := make([]models.DeployIntent, 0, len(dataList))
	for _, data := range dataList {
		intent, err := data.toIntent()
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, nil
}

// AttachTxInfo records the broadcast hash and the attaching caller
// exactly once.
func (r *DeployRepository) AttachTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var data deployData
		err := r.store.TxGet(tx, id, &data)
		if err == badgerhold.ErrNotFound {
			return store.ErrCannotAttach
		}
		if err != nil {
			return fmt.Errorf("failed to get deploy intent: %w", err)
		}
		if data.TxHash != "" {
			return store.ErrCannotAttach
		}

		data.TxHash = txHash.Hex()
		data.Caller = caller.Hex()
		return r.store.TxUpdate(tx, id, data)
	})
}

// SetDeployedAddress records the address observed in mined evidence. The
// first write wins; recording the same address again is a no-op, a
// different one is rejected.
func (r *DeployRepository) SetDeployedAddress(ctx context.Context, id string, deployed common.Address) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var data deployData
		err := r.store.TxGet(tx, id, &data)
		if err == badgerhold.ErrNotFound {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get deploy intent: %w", err)
		}

		if data.DeployedAddress != "" {
			if data.DeployedAddress == deployed.Hex() {
				return nil
			}
			return store.ErrCannotAttach
		}

		data.DeployedAddress = deployed.Hex()
		return r.store.TxUpdate(tx, id, data)
	})
}

func (r *DeployRepository) Close() error {
	return r.store.Close()
}

type deployData struct {
	ID              string
	ProjectID       string `badgerhold:"index"`
	ChainID         int
	RPCOverride     string
	RedirectURL     string
	CreatedAt       int64
	ContractData    string
	InitialValue    string
	Deployer        string `badgerhold:"index"`
	DeployedAddress string
	TxHash          string
	Caller          string
}

func toDeployData(intent models.DeployIntent) deployData {
	return deployData{
		ID:              intent.ID,
		ProjectID:       intent.ProjectID,
		ChainID:         intent.ChainID,
		RPCOverride:     intent.RPCOverride,
		RedirectURL:     intent.RedirectURL,
		CreatedAt:       intent.CreatedAt.UnixNano(),
		ContractData:    bytesToString(intent.ContractData),
		InitialValue:    bigToString(intent.InitialValue),
		Deployer:        addrToString(intent.Deployer),
		DeployedAddress: addrToString(intent.DeployedAddress),
		TxHash:          hashToString(intent.TxHash),
		Caller:          addrToString(intent.Caller),
	}
}

func (d *deployData) toIntent() (models.DeployIntent, error) {
	contractData, err := bytesFromString(d.ContractData)
	if err != nil {
		return models.DeployIntent{}, err
	}
	initialValue, err := bigFromString(d.InitialValue)
	if err != nil {
		return models.DeployIntent{}, err
	}

	return models.DeployIntent{
		IntentBase: models.IntentBase{
			ID:          d.ID,
			ProjectID:   d.ProjectID,
			ChainID:     d.ChainID,
			RPCOverride: d.RPCOverride,
			RedirectURL: d.RedirectURL,
			CreatedAt:   time.Unix(0, d.CreatedAt).UTC(),
		},
		ContractData:    contractData,
		InitialValue:    initialValue,
		Deployer:        addrFromString(d.Deployer),
		DeployedAddress: addrFromString(d.DeployedAddress),
		TxHash:          hashFromString(d.TxHash),
		Caller:          addrFromString(d.Caller),
	}, nil
}
