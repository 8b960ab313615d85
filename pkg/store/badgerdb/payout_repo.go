package badgerdb

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/timshannon/badgerhold/v4"

	"github.com/chain-vouch/chain-vouch/pkg/models"
	"github.com/chain-vouch/chain-vouch/pkg/store"
)

const payoutDir = "payout"

// PayoutRepository is the Badger-backed store.PayoutRepository.
type PayoutRepository struct {
	store *badgerhold.Store
}

var _ store.PayoutRepository = (*PayoutRepository)(nil)

func NewPayoutRepository(baseDir string, logger badger.Logger) (*PayoutRepository, error) {
	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, payoutDir)
	}
	db, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open payout store: %w", err)
	}
	return &PayoutRepository{db}, nil
}

func (r *PayoutRepository) Store(ctx context.Context, intent models.PayoutIntent) error {
	return r.store.Insert(intent.ID, toPayoutData(intent))
}

func (r *PayoutRepository) GetByID(ctx context.Context, id string) (*models.PayoutIntent, error) {
	var data payoutData
	err := r.store.Get(id, &data)
	if err == badgerhold.ErrNotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payout intent: %w", err)
	}

	intent, err := data.toIntent()
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *PayoutRepository) ListByProject(ctx context.Context, projectID string) ([]models.PayoutIntent, error) {
	var dataList []payoutData
	if err := r.store.Find(&dataList, badgerhold.Where("ProjectID").Eq(projectID).Index("ProjectID")); err != nil {
		return nil, fmt.Errorf("failed to list payout intents: %w", err)
	}
	return payoutsFromData(dataList)
}

func (r *PayoutRepository) ListBySender(ctx context.Context, sender common.Address) ([]models.PayoutIntent, error) {
	var dataList []payoutData
	if err := r.store.Find(&dataList, badgerhold.Where("Sender").Eq(sender.Hex()).Index("Sender")); err != nil {
		return nil, fmt.Errorf("failed to list payout intents: %w", err)
	}
	return payoutsFromData(dataList)
}

// AttachApproveTxInfo records the approve-phase hash exactly once.
func (r *PayoutRepository) AttachApproveTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error {
	return r.attach(id, func(data *payoutData) error {
		if data.ApproveTxHash != "" {
			return store.ErrCannotAttach
		}
		data.ApproveTxHash = txHash.Hex()
		data.Caller = caller.Hex()
		return nil
	})
}

// AttachDisperseTxInfo records the disperse-phase hash exactly once. It
// is independent of the approve slot; gating on approve success is the
// reconciler's concern, not the store's.
func (r *PayoutRepository) AttachDisperseTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error {
	return r.attach(id, func(data *payoutData) error {
		if data.DisperseTxHash != "" {
			return store.ErrCannotAttach
		}
		data.DisperseTxHash = txHash.Hex()
		data.Caller = caller.Hex()
		return nil
	})
}

func (r *PayoutRepository) attach(id string, mutate func(data *payoutData) error) error {
	return r.store.Badger().Update(func(tx *badger.Txn) error {
		var data payoutData
		err := r.store.TxGet(tx, id, &data)
		if err == badgerhold.ErrNotFound {
			return store.ErrCannotAttach
		}
		if err != nil {
			return fmt.Errorf("failed to get payout intent: %w", err)
		}
		if err := mutate(&data); err != nil {
			return err
		}
		return r.store.TxUpdate(tx, id, data)
	})
}

func (r *PayoutRepository) Close() error {
	return r.store.Close()
}

type payoutData struct {
	ID               string
	ProjectID        string `badgerhold:"index"`
	ChainID          int
	RPCOverride      string
	RedirectURL      string
	CreatedAt        int64
	TokenAddress     string
	DisperseContract string
	Recipients       []string
	Amounts          []string
	Sender           string `badgerhold:"index"`
	ApproveTxHash    string
	DisperseTxHash   string
	Caller           string
}

func toPayoutData(intent models.PayoutIntent) payoutData {
	recipients := make([]string, len(intent.Recipients))
	for i, recipient := range intent.Recipients {
		recipients[i] = recipient.Hex()
	}
	amounts := make([]string, len(intent.Amounts))
	for i, amount := range intent.Amounts {
		amounts[i] = bigToString(amount)
	}

	return payoutData{
		ID:               intent.ID,
		ProjectID:        intent.ProjectID,
		ChainID:          intent.ChainID,
		RPCOverride:      intent.RPCOverride,
		RedirectURL:      intent.RedirectURL,
		CreatedAt:        intent.CreatedAt.UnixNano(),
		TokenAddress:     addrToString(intent.TokenAddress),
		DisperseContract: intent.DisperseContract.Hex(),
		Recipients:       recipients,
		Amounts:          amounts,
		Sender:           addrToString(intent.Sender),
		ApproveTxHash:    hashToString(intent.ApproveTxHash),
		DisperseTxHash:   hashToString(intent.DisperseTxHash),
		Caller:           addrToString(intent.Caller),
	}
}

func (d *payoutData) toIntent() (models.PayoutIntent, error) {
	recipients := make([]common.Address, len(d.Recipients))
	for i, recipient := range d.Recipients {
		recipients[i] = common.HexToAddress(recipient)
	}
	amounts := make([]*big.Int, len(d.Amounts))
	for i, amount := range d.Amounts {
		parsed, err := bigFromString(amount)
		if err != nil {
			return models.PayoutIntent{}, err
		}
		amounts[i] = parsed
	}

	return models.PayoutIntent{
		IntentBase: models.IntentBase{
			ID:          d.ID,
			ProjectID:   d.ProjectID,
			ChainID:     d.ChainID,
			RPCOverride: d.RPCOverride,
			RedirectURL: d.RedirectURL,
			CreatedAt:   time.Unix(0, d.CreatedAt).UTC(),
		},
		TokenAddress:     addrFromString(d.TokenAddress),
		DisperseContract: common.HexToAddress(d.DisperseContract),
		Recipients:       recipients,
		Amounts:          amounts,
		Sender:           addrFromString(d.Sender),
		ApproveTxHash:    hashFromString(d.ApproveTxHash),
		DisperseTxHash:   hashFromString(d.DisperseTxHash),
		Caller:           addrFromString(d.Caller),
	}, nil
}

func payoutsFromData(dataList []payoutData) ([]models.PayoutIntent, error) {
	intents := make([]models.PayoutIntent, 0, len(dataList))
	for _, data := range dataList {
		intent, err := data.toIntent()
		if err != nil {
			return nil, err
		}
		intents = append(intents, intent)
	}
	return intents, nil
}
