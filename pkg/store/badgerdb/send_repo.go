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

const sendDir = "send"

// SendRepository is the Badger-backed store.SendRepository.
type SendRepository struct {
	store *badgerhold.Store
}

var _ store.SendRepository = (*SendRepository)(nil)

func NewSendRepository(baseDir string, logger badger.Logger) (*SendRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, sendDir)
	}
	db, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open send store: %w", err)
	}
	return &SendRepository{db}, nil
}

func (r *SendRepository) Store(ctx context.Context, intent models.SendIntent) error {
	return r.store.Insert(intent.ID, toSendData(intent))
}

func (r *SendRepository) GetByID(ctx context.Context, id string) (*models.SendIntent, error) {
	var data sendData
	err := r.store.Get(id, &data)
	if err == badgerhold.ErrNotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get send intent: %w", err)
	}

	intent, err := data.toIntent()
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *SendRepository) ListByProject(ctx context.Context, projectID string) ([]models.SendIntent, error) {
	var dataList []sendData
	if err := r.store.Find(&dataList, badgerhold.Where("ProjectID").Eq(projectID).Index("ProjectID")); err != nil {
		return nil, fmt.Errorf("failed to list send intents: %w", err)
	}
	return sendsFromData(dataList)
}

func (r *SendRepository) ListBySender(ctx context.Context, sender common.Address) ([]models.SendIntent, error) {
	var dataList []sendData
	if err := r.store.Find(&dataList, badgerhold.Where("Sender").Eq(sender.Hex()).Index("Sender")); err != nil {
		return nil, fmt.Errorf("failed to list send intents: %w", err)
	}
	return sendsFromData(dataList)
}

// AttachTxInfo records the broadcast hash and the attaching caller. The
// hash slot is written at most once; a second attempt fails with
// store.ErrCannotAttach, as does attaching to an unknown intent.
func (r *SendRepository) AttachTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var data sendData
		err := r.store.TxGet(tx, id, &data)
		if err == badgerhold.ErrNotFound {
			return store.ErrCannotAttach
		}
		if err != nil {
			return fmt.Errorf("failed to get send intent: %w", err)
		}
		if data.TxHash != "" {
			return store.ErrCannotAttach
		}

		data.TxHash = txHash.Hex()
		data.Caller = caller.Hex()
		return r.store.TxUpdate(tx, id, data)
	})
}

func (r *SendRepository) Close() error {
	return r.store.Close()
}

type sendData struct {
	ID           string
	ProjectID    string `badgerhold:"index"`
	ChainID      int
	RPCOverride  string
	RedirectURL  string
	CreatedAt    int64
	TokenAddress string
	Recipient    string
	Amount       string
	Sender       string `badgerhold:"index"`
	TxHash       string
	Caller       string
}

func toSendData(intent models.SendIntent) sendData {
	return sendData{
		ID:           intent.ID,
		ProjectID:    intent.ProjectID,
		ChainID:      intent.ChainID,
		RPCOverride:  intent.RPCOverride,
		RedirectURL:  intent.RedirectURL,
		CreatedAt:    intent.CreatedAt.UnixNano(),
		TokenAddress: addrToString(intent.TokenAddress),
		Recipient:    intent.Recipient.Hex(),
		Amount:       bigToString(intent.Amount),
		Sender:       addrToString(intent.Sender),
		TxHash:       hashToString(intent.TxHash),
		Caller:       addrToString(intent.Caller),
	}
}

func (d *sendData) toIntent() (models.SendIntent, error) {
	amount, err := bigFromString(d.Amount)
	if err != nil {
		return models.SendIntent{}, err
	}

	return models.SendIntent{
		IntentBase: models.IntentBase{
			ID:          d.ID,
			ProjectID:   d.ProjectID,
			ChainID:     d.ChainID,
			RPCOverride: d.RPCOverride,
			RedirectURL: d.RedirectURL,
			CreatedAt:   time.Unix(0, d.CreatedAt).UTC(),
		},
		TokenAddress: addrFromString(d.TokenAddress),
		Recipient:    common.HexToAddress(d.Recipient),
		Amount:       amount,
		Sender:       addrFromString(d.Sender),
		TxHash:       hashFromString(d.TxHash),
		Caller:       addrFromString(d.Caller),
	}, nil
}

func sendsFromData(dataList []sendData) ([]models.SendIntent, error) {
	intents := make([]models.SendIntent, 0, len(dataList))
	for _, data := range dataList {
		intent, err := data.toIntent()
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, nil
}
