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

// DeployService manages contract-deployment intents. The deployed
// address is learned from mined evidence and recorded exactly once.
type DeployService struct {
	deps
	repo store.DeployRepository
}

// CreateDeployParams are the caller-supplied fields of a new deployment
// intent. ContractData is the creation bytecode including constructor
// arguments.
type CreateDeployParams struct {
	ProjectID    string
	ChainID      int
	RPCOverride  string
	RedirectURL  string
	ContractData []byte
	InitialValue *big.Int
	// Deployer is optional; when set, only this sender satisfies the
	// intent.
	Deployer *common.Address
}

// Create stores a new deployment intent.
func (s *DeployService) Create(ctx context.Context, params CreateDeployParams) (*models.DeployView, error) {
	if err := s.validateChain(params.ChainID, params.RPCOverride); err != nil {
		return nil, err
	}
	if len(params.ContractData) == 0 {
		return nil, errors.New("contract data is required")
	}

	id := uuid.NewString()
	intent := models.DeployIntent{
		IntentBase: models.IntentBase{
			ID:          id,
			ProjectID:   params.ProjectID,
			ChainID:     params.ChainID,
			RPCOverride: params.RPCOverride,
			RedirectURL: encoder.RedirectURL(s.cfg.BaseRedirectURL, params.RedirectURL, deployRedirectPath, id),
			CreatedAt:   time.Now().UTC(),
		},
		ContractData: params.ContractData,
		InitialValue: params.InitialValue,
		Deployer:     params.Deployer,
	}

	if err := s.repo.Store(ctx, intent); err != nil {
		return nil, err
	}

	metrics.IntentsCreated.WithLabelValues(typeDeploy).Inc()
	s.log.InfoWithChain(intent.ChainID, "Created deploy intent %s for project %s", id, intent.ProjectID)

	return &models.DeployView{Intent: intent, Status: models.StatusPending}, nil
}

// Get reconciles a deployment intent. The first mined evidence carrying
// a deployed address gets that address persisted before the view is
// returned, even when the overall status is FAILED.
func (s *DeployService) Get(ctx context.Context, id string) (*models.DeployView, error) {
	intent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.reconcileOne(ctx, *intent)
}

// AttachTxInfo records the broadcast hash, exactly once.
func (s *DeployService) AttachTxInfo(ctx context.Context, id string, txHash common.Hash, caller common.Address) error {
	err := s.repo.AttachTxInfo(ctx, id, txHash, caller)
	if errors.Is(err, store.ErrCannotAttach) {
		metrics.AttachConflicts.WithLabelValues(typeDeploy).Inc()
		return err
	}
	if err != nil {
		return err
	}
	s.log.Info("Attached transaction %s to deploy intent %s", txHash.Hex(), id)
	return nil
}

// ListByProject reconciles every deployment intent of a project.
func (s *DeployService) ListByProject(ctx context.Context, projectID string) ([]models.DeployView, error) {
	intents, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return s.reconcileAll(ctx, intents)
}

// ListByDeployer reconciles every deployment intent bound to a deployer.
func (s *DeployService) ListByDeployer(ctx context.Context, deployer common.Address) ([]models.DeployView, error) {
	intents, err := s.repo.ListByDeployer(ctx, deployer)
	if err != nil {
		return nil, err
	}
	return s.reconcileAll(ctx, intents)
}

func (s *DeployService) reconcileAll(ctx context.Context, intents []models.DeployIntent) ([]models.DeployView, error) {
	views := make([]models.DeployView, len(intents))
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

func (s *DeployService) reconcileOne(ctx context.Context, intent models.DeployIntent) (*models.DeployView, error) {
	start := time.Now()

	phase := reconcile.Phase{
		ChainID:         intent.ChainID,
		RPCOverride:     intent.RPCOverride,
		ExpectedSender:  intent.Deployer,
		ExpectedData:    intent.ContractData,
		TxHash:          intent.TxHash,
		Deployment:      true,
		DeployedAddress: intent.DeployedAddress,
	}

	outcome, err := s.reconciler.ReconcilePhase(ctx, phase)
	if err != nil {
		return nil, err
	}
	observeReconciliation(typeDeploy, outcome.Status, start)
	s.log.DebugWithChain(intent.ChainID, "Reconciled deploy intent %s: %s", intent.ID, outcome.Status)

	// Record the observed address once; re-recording the same value is a
	// no-op in the store.
	if outcome.ObservedDeployment != nil && intent.DeployedAddress == nil {
		if err := s.repo.SetDeployedAddress(ctx, intent.ID, *outcome.ObservedDeployment); err != nil &&
			!errors.Is(err, store.ErrCannotAttach) {
			return nil, err
		}
		intent.DeployedAddress = outcome.ObservedDeployment
		s.log.InfoWithChain(intent.ChainID, "Recorded deployed address %s for intent %s",
			outcome.ObservedDeployment.Hex(), intent.ID)
	}

	return &models.DeployView{
		Intent:   intent,
		Status:   outcome.Status,
		Evidence: outcome.Evidence,
	}, nil
}
