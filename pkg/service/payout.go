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

// PayoutService manages approve-then-disperse distribution intents. A
// token payout has two phases; a native payout only disperses.
type PayoutService struct {
	deps
	repo store.PayoutRepository
}

// CreatePayoutParams are the caller-supplied fields of a new payout
// intent. Recipients and Amounts are parallel and must be non-empty.
type CreatePayoutParams struct {
	ProjectID   string
	ChainID     int
	RPCOverride string
	RedirectURL string
	// TokenAddress nil distributes the chain's native asset.
	TokenAddress     *common.Address
	DisperseContract common.Address
	Recipients       []common.Address
	Amounts          []*big.Int
	Sender           *common.Address
}

// CreatedPayout is the creation result: the stored intent plus the
// payloads the caller must broadcast. ApproveData is nil for native
// payouts; DisperseValue is nil for token payouts.
type CreatedPayout struct {
	Intent        models.PayoutIntent
	ApproveData   []byte
	DisperseData  []byte
	DisperseValue *big.Int
}

// Create stores a new payout intent.
func (s *PayoutService) Create(ctx context.Context, params CreatePayoutParams) (*CreatedPayout, error) {
	if err := s.validateChain(params.ChainID, params.RPCOverride); err != nil {
		return nil, err
	}
	if len(params.Recipients) == 0 {
		return nil, errors.New("at least one recipient is required")
	}
	if len(params.Recipients) != len(params.Amounts) {
		return nil, errors.New("recipients and amounts must have the same length")
	}
	for _, amount := range params.Amounts {
		if amount == nil || amount.Sign() < 0 {
			return nil, errors.New("every amount must be a non-negative integer")
		}
	}

	id := uuid.NewString()
	intent := models.PayoutIntent{
		IntentBase: models.IntentBase{
			ID:          id,
			ProjectID:   params.ProjectID,
			ChainID:     params.ChainID,
			RPCOverride: params.RPCOverride,
			RedirectURL: encoder.RedirectURL(s.cfg.BaseRedirectURL, params.RedirectURL, payoutRedirectPath, id),
			CreatedAt:   time.Now().UTC(),
		},
		TokenAddress:     params.TokenAddress,
		DisperseContract: params.DisperseContract,
		Recipients:       params.Recipients,
		Amounts:          params.Amounts,
		Sender:           params.Sender,
	}

	approveData, disperseData, disperseValue, err := s.expectedPayloads(intent)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Store(ctx, intent); err != nil {
		return nil, err
	}

	metrics.IntentsCreated.WithLabelValues(typePayout).Inc()
	s.log.InfoWithChain(intent.ChainID, "Created payout intent %s for project %s with %d recipients",
		id, intent.ProjectID, len(intent.Recipients))

	return &CreatedPayout{
		Intent:        intent,
		ApproveData:   approveData,
		DisperseData:  disperseData,
		DisperseValue: disperseValue,
	}, nil
}

// Get reconciles both phases of a payout intent.
func (s *PayoutService) Get(ctx context.Context, id string) (*models.PayoutView, error) {
	intent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.reconcileOne(ctx, *intent)
}

// AttachApproveTxInfo records the approve-phase hash, exactly once.
func (s *PayoutService) AttachApproveTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error {
	err := s.repo.AttachApproveTxInfo(ctx, id, txHash, caller)
	if errors.Is(err, store.ErrCannotAttach) {
		metrics.AttachConflicts.WithLabelValues(typePayout).Inc()
		return err
	}
	if err != nil {
		return err
	}
	s.log.Info("Attached approve transaction %s to payout intent %s", txHash.Hex(), id)
	return nil
}

// AttachDisperseTxInfo records the disperse-phase hash, exactly once.
func (s *PayoutService) AttachDisperseTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error {
	err := s.repo.AttachDisperseTxInfo(ctx, id, txHash, caller)
	if errors.Is(err, store.ErrCannotAttach) {
		metrics.AttachConflicts.WithLabelValues(typePayout).Inc()
		return err
	}
	if err != nil {
		return err
	}
	s.log.Info("Attached disperse transaction %s to payout intent %s", txHash.Hex(), id)
	return nil
}

// ListByProject reconciles every payout intent of a project.
func (s *PayoutService) ListByProject(ctx context.Context, projectID string) ([]models.PayoutView, error) {
	intents, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.reconcileAll(ctx, intents)
}

// ListBySender reconciles every payout intent bound to a sender.
func (s *PayoutService) ListBySender(ctx context.Context, sender common.Address) ([]models.PayoutView, error) {
	intents, err := s.repo.ListBySender(ctx, sender)
	if err != nil {
		return nil, err
	}
	return s.reconcileAll(ctx, intents)
}

func (s *PayoutService) reconcileAll(ctx context.Context, intents []models.PayoutIntent) ([]models.PayoutView, error) {
	views := make([]models.PayoutView, len(intents))
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

func (s *PayoutService) reconcileOne(ctx context.Context, intent models.PayoutIntent) (*models.PayoutView, error) {
	start := time.Now()

	twoPhase, err := s.phases(intent)
	if err != nil {
		return nil, err
	}

	outcome, err := s.reconciler.ReconcileTwoPhase(ctx, twoPhase)
	if err != nil {
		return nil, err
	}

	// The intent-level label reflects the phase currently being judged.
	switch {
	case outcome.DisperseStatus != nil:
		observeReconciliation(typePayout, *outcome.DisperseStatus, start)
	case outcome.ApproveStatus != nil:
		observeReconciliation(typePayout, *outcome.ApproveStatus, start)
	}
	s.log.DebugWithChain(intent.ChainID, "Reconciled payout intent %s: approve=%s disperse=%s",
		intent.ID, statusLabel(outcome.ApproveStatus), statusLabel(outcome.DisperseStatus))

	return &models.PayoutView{
		Intent:           intent,
		ApproveStatus:    outcome.ApproveStatus,
		ApproveEvidence:  outcome.ApproveEvidence,
		DisperseStatus:   outcome.DisperseStatus,
		DisperseEvidence: outcome.DisperseEvidence,
	}, nil
}

func (s *PayoutService) expectedPayloads(intent models.PayoutIntent) (approveData, disperseData []byte, disperseValue *big.Int, err error) {
	if intent.TokenAddress != nil {
		approveData, err = encoder.ApproveData(s.enc, intent.DisperseContract, intent.TotalAmount())
		if err != nil {
			return nil, nil, nil, err
		}
		disperseData, err = encoder.DisperseTokenData(s.enc, *intent.TokenAddress, intent.Recipients, intent.Amounts)
		if err != nil {
			return nil, nil, nil, err
		}
		return approveData, disperseData, nil, nil
	}

	disperseData, err = encoder.DisperseEtherData(s.enc, intent.Recipients, intent.Amounts)
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, disperseData, intent.TotalAmount(), nil
}

// phases builds the reconciliation phases. A token payout expects
// approve(disperseContract, total) on the token and the disperse call on
// the disperse contract; a native payout has no approve phase and is
// judged by the summed value carried to the disperse contract.
func (s *PayoutService) phases(intent models.PayoutIntent) (reconcile.TwoPhase, error) {
	approveData, disperseData, disperseValue, err := s.expectedPayloads(intent)
	if err != nil {
		return reconcile.TwoPhase{}, err
	}

	disperse := reconcile.Phase{
		ChainID:        intent.ChainID,
		RPCOverride:    intent.RPCOverride,
		ExpectedTo:     intent.DisperseContract,
		ExpectedSender: intent.Sender,
		TxHash:         intent.DisperseTxHash,
	}

	if intent.TokenAddress == nil {
		disperse.ExpectedValue = disperseValue
		return reconcile.TwoPhase{Disperse: disperse}, nil
	}

	disperse.ExpectedData = disperseData
	approve := reconcile.Phase{
		ChainID:        intent.ChainID,
		RPCOverride:    intent.RPCOverride,
		ExpectedTo:     *intent.TokenAddress,
		ExpectedSender: intent.Sender,
		ExpectedData:   approveData,
		TxHash:         intent.ApproveTxHash,
	}
	return reconcile.TwoPhase{Approve: &approve, Disperse: disperse}, nil
}
