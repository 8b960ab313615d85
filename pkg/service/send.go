package service

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/chain-vouch/chain-vouch/pkg/encoder"
	"github.com/chain-vouch/chain-vouch/pkg/metrics"
	"github.com/chain-vouch/chain-vouch/pkg/models"
	"github.com/chain-vouch/chain-vouch/pkg/reconcile"
	"github.com/chain-vouch/chain-vouch/pkg/store"
)

// SendService manages transfer intents: an expected native or token send
// to one recipient.
type SendService struct {
	deps
	repo store.SendRepository
}

// CreateSendParams are the caller-supplied fields of a new send intent.
type CreateSendParams struct {
	ProjectID   string
	ChainID     int
	RPCOverride string
	RedirectURL string
	// TokenAddress nil means the chain's native asset.
	TokenAddress *common.Address
	Recipient    common.Address
	Amount       *big.Int
	// Sender is optional; when set, only this sender satisfies the intent.
	Sender *common.Address
}

// Create stores a new send intent and returns it as a PENDING view whose
// Data or Value field tells the caller what transaction to broadcast.
func (s *SendService) Create(ctx context.Context, params CreateSendParams) (*models.SendView, error) {
	if err := s.validateChain(params.ChainID, params.RPCOverride); err != nil {
		return nil, err
	}
	if params.Amount == nil || params.Amount.Sign() < 0 {
		return nil, errors.New("amount must be a non-negative integer")
	}

	id := uuid.NewString()
	intent := models.SendIntent{
		IntentBase: models.IntentBase{
			ID:          id,
			ProjectID:   params.ProjectID,
			ChainID:     params.ChainID,
			RPCOverride: params.RPCOverride,
			RedirectURL: encoder.RedirectURL(s.cfg.BaseRedirectURL, params.RedirectURL, sendRedirectPath, id),
			CreatedAt:   time.Now().UTC(),
		},
		TokenAddress: params.TokenAddress,
		Recipient:    params.Recipient,
		Amount:       params.Amount,
		Sender:       params.Sender,
	}

	data, value, err := s.expectedPayload(intent)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Store(ctx, intent); err != nil {
		return nil, err
	}

	metrics.IntentsCreated.WithLabelValues(typeSend).Inc()
	s.log.InfoWithChain(intent.ChainID, "Created send intent %s for project %s", id, intent.ProjectID)

	return &models.SendView{
		Intent: intent,
		Status: models.StatusPending,
		Data:   data,
		Value:  value,
	}, nil
}

// Get reconciles a send intent against fresh chain evidence.
func (s *SendService) Get(ctx context.Context, id string) (*models.SendView, error) {
	intent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.reconcileOne(ctx, *intent)
}

// AttachTxInfo records the broadcast hash, exactly once.
func (s *SendService) AttachTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error {
	err := s.repo.AttachTxInfo(ctx, id, txHash, caller)
	if errors.Is(err, store.ErrCannotAttach) {
		metrics.AttachConflicts.WithLabelValues(typeSend).Inc()
		return err
	}
	if err != nil {
		return err
	}
	s.log.Info("Attached transaction %s to send intent %s", txHash.Hex(), id)
	return nil
}

// ListByProject reconciles every send intent of a project. An unknown
// project yields an empty list, not an error.
func (s *SendService) ListByProject(ctx context.Context, projectID string) ([]models.SendView, error) {
	intents, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.reconcileAll(ctx, intents)
}

// ListBySender reconciles every send intent bound to a sender.
func (s *SendService) ListBySender(ctx context.Context, sender common.Address) ([]models.SendView, error) {
	intents, err := s.repo.ListBySender(ctx, sender)
	if err != nil {
		return nil, err
	}
	return s.reconcileAll(ctx, intents)
}

func (s *SendService) reconcileAll(ctx context.Context, intents []models.SendIntent) ([]models.SendView, error) {
	views := make([]models.SendView, len(intents))
	err := fanOut(s.cfg.WorkerCount, len(intents), func(i int) error {
		view, err := s.reconcileOne(ctx, intents[i])
		if err != nil {
			return err
		}
		views[i] = *view
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (s *SendService) reconcileOne(ctx context.Context, intent models.SendIntent) (*models.SendView, error) {
	start := time.Now()

	phase, data, value, err := s.phase(intent)
	if err != nil {
		return nil, err
	}

	outcome, err := s.reconciler.ReconcilePhase(ctx, phase)
	if err != nil {
		return nil, err
	}
	observeReconciliation(typeSend, outcome.Status, start)
	s.log.DebugWithChain(intent.ChainID, "Reconciled send intent %s: %s", intent.ID, outcome.Status)

	return &models.SendView{
		Intent:   intent,
		Status:   outcome.Status,
		Evidence: outcome.Evidence,
		Data:     data,
		Value:    value,
	}, nil
}

// expectedPayload derives what the broadcast transaction must carry: a
// transfer call for token sends, the plain amount for native sends.
func (s *SendService) expectedPayload(intent models.SendIntent) ([]byte, *big.Int, error) {
	if intent.TokenAddress != nil {
		data, err := encoder.TransferData(s.enc, intent.Recipient, intent.Amount)
		if err != nil {
			return nil, nil, err
		}
		return data, nil, nil
	}
	return nil, intent.Amount, nil
}

// phase builds the reconciliation phase for a send intent: a token send
// expects the transfer call on the token contract, a native send expects
// the amount as transaction value on the recipient.
func (s *SendService) phase(intent models.SendIntent) (reconcile.Phase, []byte, *big.Int, error) {
	data, value, err := s.expectedPayload(intent)
	if err != nil {
		return reconcile.Phase{}, nil, nil, err
	}

	phase := reconcile.Phase{
		ChainID:        intent.ChainID,
		RPCOverride:    intent.RPCOverride,
		ExpectedSender: intent.Sender,
		ExpectedData:   data,
		ExpectedValue:  value,
		TxHash:         intent.TxHash,
	}
	if intent.TokenAddress != nil {
		phase.ExpectedTo = *intent.TokenAddress
	} else {
		phase.ExpectedTo = intent.Recipient
	}
	return phase, data, value, nil
}
