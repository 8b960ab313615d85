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

// BalanceProofService manages signed-balance challenges: a wallet proves
// ownership of a balance by signing the intent's challenge message.
type BalanceProofService struct {
	deps
	repo store.BalanceProofRepository
}

// CreateBalanceProofParams are the caller-supplied fields of a new
// balance-proof intent.
type CreateBalanceProofParams struct {
	ProjectID   string
	ChainID     int
	RPCOverride string
	RedirectURL string
	// TokenAddress nil checks the native-asset balance.
	TokenAddress *common.Address
	// BlockPin nil reads the latest block at reconciliation time.
	BlockPin *big.Int
	// RequestedWallet nil lets any wallet answer the challenge.
	RequestedWallet *common.Address
}

// Create stores a new balance-proof intent. The challenge message is
// derived from the generated id and stable afterwards.
func (s *BalanceProofService) Create(ctx context.Context, params CreateBalanceProofParams) (*models.BalanceProofView, error) {
	if err := s.validateChain(params.ChainID, params.RPCOverride); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	intent := models.BalanceProofIntent{
		IntentBase: models.IntentBase{
			ID:          id,
			ProjectID:   params.ProjectID,
			ChainID:     params.ChainID,
			RPCOverride: params.RPCOverride,
			RedirectURL: encoder.RedirectURL(s.cfg.BaseRedirectURL, params.RedirectURL, proofRedirectPath, id),
			CreatedAt:   time.Now().UTC(),
		},
		TokenAddress:    params.TokenAddress,
		BlockPin:        params.BlockPin,
		RequestedWallet: params.RequestedWallet,
	}

	if err := s.repo.Store(ctx, intent); err != nil {
		return nil, err
	}

	metrics.IntentsCreated.WithLabelValues(typeBalanceProof).Inc()
	s.log.InfoWithChain(intent.ChainID, "Created balance proof intent %s for project %s", id, intent.ProjectID)

	return &models.BalanceProofView{Intent: intent, Status: models.StatusPending}, nil
}

// Get reconciles a balance-proof intent: fetches the balance once a
// wallet is attached and judges the signature against the challenge.
func (s *BalanceProofService) Get(ctx context.Context, id string) (*models.BalanceProofView, error) {
	intent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.reconcileOne(ctx, *intent)
}

// AttachSignedMessage records the answering wallet and its signature in
// one exactly-once operation. The signature is judged at read time, not
// here; a bad signature still attaches and then reconciles as FAILED.
func (s *BalanceProofService) AttachSignedMessage(ctx context.Context, id string, wallet common.Address, signedMessage string) error {
	err := s.repo.AttachSignedMessage(ctx, id, wallet, signedMessage)
	if errors.Is(err, store.ErrCannotAttach) {
		metrics.AttachConflicts.WithLabelValues(typeBalanceProof).Inc()
		return err
	}
	if err != nil {
		return err
	}
	s.log.Info("Attached signature from wallet %s to balance proof intent %s", wallet.Hex(), id)
	return nil
}

// ListByProject reconciles every balance-proof intent of a project.
func (s *BalanceProofService) ListByProject(ctx context.Context, projectID string) ([]models.BalanceProofView, error) {
	intents, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	views := make([]models.BalanceProofView, len(intents))
	err = fanOut(s.cfg.WorkerCount, len(intents), func(i int) error {
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

func (s *BalanceProofService) reconcileOne(ctx context.Context, intent models.BalanceProofIntent) (*models.BalanceProofView, error) {
	start := time.Now()

	proof := reconcile.BalanceProof{
		ChainID:          intent.ChainID,
		RPCOverride:      intent.RPCOverride,
		TokenAddress:     intent.TokenAddress,
		BlockPin:         intent.BlockPin,
		RequestedWallet:  intent.RequestedWallet,
		ActualWallet:     intent.ActualWallet,
		SignedMessage:    intent.SignedMessage,
		ChallengeMessage: intent.ChallengeMessage(),
	}

	outcome, err := s.reconciler.ReconcileBalanceProof(ctx, proof)
	if err != nil {
		return nil, err
	}
	observeReconciliation(typeBalanceProof, outcome.Status, start)
	s.log.DebugWithChain(intent.ChainID, "Reconciled balance proof intent %s: %s", intent.ID, outcome.Status)

	return &models.BalanceProofView{
		Intent:  intent,
		Status:  outcome.Status,
		Balance: outcome.Balance,
	}, nil
}
