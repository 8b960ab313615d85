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

// CallService manages contract function-call intents. The call data is
// fixed at creation and the mined transaction must carry it verbatim.
type CallService struct {
	deps
	repo store.CallRepository
}

// CreateCallParams are the caller-supplied fields of a new function-call
// intent. The call payload is encoded from FunctionName and Args at
// creation and immutable afterwards.
type CreateCallParams struct {
	ProjectID       string
	ChainID         int
	RPCOverride     string
	RedirectURL     string
	ContractAddress common.Address
	FunctionName    string
	Args            []encoder.Argument
	EthValue        *big.Int
	Sender          *common.Address
}

// Create encodes the expected call payload and stores a new function-call
// intent.
func (s *CallService) Create(ctx context.Context, params CreateCallParams) (*models.CallView, error) {
	if err := s.validateChain(params.ChainID, params.RPCOverride); err != nil {
		return nil, err
	}
	if params.FunctionName == "" {
		return nil, errors.New("function name is required")
	}

	callData, err := s.enc.Encode(params.FunctionName, params.Args)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	intent := models.CallIntent{
		IntentBase: models.IntentBase{
			ID:          id,
			ProjectID:   params.ProjectID,
			ChainID:     params.ChainID,
			RPCOverride: params.RPCOverride,
			RedirectURL: encoder.RedirectURL(s.cfg.BaseRedirectURL, params.RedirectURL, callRedirectPath, id),
			CreatedAt:   time.Now().UTC(),
		},
		ContractAddress: params.ContractAddress,
		FunctionName:    params.FunctionName,
		CallData:        callData,
		EthValue:        params.EthValue,
		Sender:          params.Sender,
	}

	if err := s.repo.Store(ctx, intent); err != nil {
		return nil, err
	}

	metrics.IntentsCreated.WithLabelValues(typeCall).Inc()
	s.log.InfoWithChain(intent.ChainID, "Created call intent %s for project %s targeting %s",
		id, intent.ProjectID, intent.ContractAddress.Hex())

	return &models.CallView{Intent: intent, Status: models.StatusPending}, nil
}

// Get reconciles a function-call intent against fresh chain evidence.
func (s *CallService) Get(ctx context.Context, id string) (*models.CallView, error) {
	intent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.reconcileOne(ctx, *intent)
}

// AttachTxInfo records the broadcast hash, exactly once.
func (s *CallService) AttachTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error {
	err := s.repo.AttachTxInfo(ctx, id, txHash, caller)
	if errors.Is(err, store.ErrCannotAttach) {
		metrics.AttachConflicts.WithLabelValues(typeCall).Inc()
		return err
	}
	if err != nil {
		return err
	}
	s.log.Info("Attached transaction %s to call intent %s", txHash.Hex(), id)
	return nil
}

// ListByProject reconciles every function-call intent of a project.
func (s *CallService) ListByProject(ctx context.Context, projectID string) ([]models.CallView, error) {
	intents, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.reconcileAll(ctx, intents)
}

// ListBySender reconciles every function-call intent bound to a sender.
func (s *CallService) ListBySender(ctx context.Context, sender common.Address) ([]models.CallView, error) {
	intents, err := s.repo.ListBySender(ctx, sender)
	if err != nil {
		return nil, err
	}
	return s.reconcileAll(ctx, intents)
}

func (s *CallService) reconcileAll(ctx context.Context, intents []models.CallIntent) ([]models.CallView, error) {
	views := make([]models.CallView, len(intents))
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

func (s *CallService) reconcileOne(ctx context.Context, intent models.CallIntent) (*models.CallView, error) {
	start := time.Now()

	phase := reconcile.Phase{
		ChainID:        intent.ChainID,
		RPCOverride:    intent.RPCOverride,
		ExpectedTo:     intent.ContractAddress,
		ExpectedSender: intent.Sender,
		ExpectedData:   intent.CallData,
		TxHash:         intent.TxHash,
	}

	outcome, err := s.reconciler.ReconcilePhase(ctx, phase)
	if err != nil {
		return nil, err
	}
	observeReconciliation(typeCall, outcome.Status, start)
	s.log.DebugWithChain(intent.ChainID, "Reconciled call intent %s: %s", intent.ID, outcome.Status)

	return &models.CallView{
		Intent:   intent,
		Status:   outcome.Status,
		Evidence: outcome.Evidence,
	}, nil
}
