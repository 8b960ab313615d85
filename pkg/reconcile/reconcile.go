package reconcile

import (
	"bytes"
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chain-vouch/chain-vouch/pkg/logger"
	"github.com/chain-vouch/chain-vouch/pkg/models"
	"github.com/chain-vouch/chain-vouch/pkg/signature"
)

// Fetcher retrieves fresh chain evidence. FetchTransaction returns
// (nil, nil) when the transaction is unknown or not yet mined; an error
// means the lookup itself failed and must not be mapped to FAILED.
type Fetcher interface {
	FetchTransaction(ctx context.Context, chainID int, rpcOverride string, hash common.Hash) (*models.TransactionEvidence, error)
	FetchNativeBalance(ctx context.Context, chainID int, rpcOverride string, wallet common.Address, blockPin *big.Int) (*models.BalanceEvidence, error)
	FetchTokenBalance(ctx context.Context, chainID int, rpcOverride string, token common.Address, wallet common.Address, blockPin *big.Int) (*models.BalanceEvidence, error)
}

// Phase is one expected transaction to be judged against chain evidence.
// Exactly one of ExpectedData and ExpectedValue is set: a payload-bearing
// phase compares call data, a value-bearing phase compares native value.
type Phase struct {
	ChainID     int
	RPCOverride string
	// ExpectedTo is the expected transaction target. Unused for
	// deployments, which have no target.
	ExpectedTo common.Address
	// ExpectedSender is optional; nil accepts any sender.
	ExpectedSender *common.Address
	ExpectedData   []byte
	ExpectedValue  *big.Int
	// TxHash is nil until the caller attaches one.
	TxHash *common.Hash
	// Deployment marks a contract-creation phase; the evidence must then
	// carry a deployed address, and DeployedAddress (once recorded) must
	// keep matching it.
	Deployment      bool
	DeployedAddress *common.Address
}

// Outcome is the result of judging a single phase.
type Outcome struct {
	Status   models.Status
	Evidence *models.TransactionEvidence
	// ObservedDeployment is the deployed address seen in the evidence of a
	// deployment phase, reported even when the final status is FAILED so
	// the caller can record it exactly once.
	ObservedDeployment *common.Address
}

// TwoPhase is a payout judged as approve-then-disperse. A nil Approve
// means the approve phase does not apply (native-asset payout).
type TwoPhase struct {
	Approve  *Phase
	Disperse Phase
}

// TwoPhaseOutcome mirrors TwoPhase. ApproveStatus is nil when the phase
// does not apply; DisperseStatus is nil when the phase was not evaluated
// because an applicable approve has not succeeded.
type TwoPhaseOutcome struct {
	ApproveStatus    *models.Status
	ApproveEvidence  *models.TransactionEvidence
	DisperseStatus   *models.Status
	DisperseEvidence *models.TransactionEvidence
}

// BalanceProof is a signed-balance challenge to be judged.
type BalanceProof struct {
	ChainID     int
	RPCOverride string
	// TokenAddress nil checks the native balance.
	TokenAddress *common.Address
	// BlockPin nil reads the latest block.
	BlockPin *big.Int
	// RequestedWallet nil accepts any answering wallet.
	RequestedWallet *common.Address
	// ActualWallet and SignedMessage arrive together via attach, but are
	// judged independently: the balance is fetched as soon as a wallet is
	// known, even when the signature later fails.
	ActualWallet     *common.Address
	SignedMessage    string
	ChallengeMessage string
}

// ProofOutcome is the result of judging a balance proof. Balance is nil
// only while no wallet is attached.
type ProofOutcome struct {
	Status  models.Status
	Balance *models.BalanceEvidence
}

// Reconciler derives intent status from stored expectations and freshly
// fetched evidence. It holds no state of its own; every call re-fetches.
type Reconciler struct {
	fetcher  Fetcher
	verifier signature.Verifier
	log      logger.Logger
}

// NewReconciler creates a reconciler over the given evidence fetcher and
// signature verifier.
func NewReconciler(fetcher Fetcher, verifier signature.Verifier, log logger.Logger) *Reconciler {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Reconciler{
		fetcher:  fetcher,
		verifier: verifier,
		log:      log,
	}
}

// ReconcilePhase judges a single phase. Checks run in a fixed order and
// the first mismatch decides: no attached hash or unmined evidence is
// PENDING, any contradiction between expectation and evidence is FAILED,
// and SUCCESS requires every check to pass.
func (r *Reconciler) ReconcilePhase(ctx context.Context, phase Phase) (Outcome, error) {
	if phase.TxHash == nil {
		return Outcome{Status: models.StatusPending}, nil
	}

	evidence, err := r.fetcher.FetchTransaction(ctx, phase.ChainID, phase.RPCOverride, *phase.TxHash)
	if err != nil {
		return Outcome{}, err
	}
	if evidence == nil {
		r.log.DebugWithChain(phase.ChainID, "Transaction %s not mined yet", phase.TxHash.Hex())
		return Outcome{Status: models.StatusPending}, nil
	}

	outcome := Outcome{Evidence: evidence}
	if phase.Deployment {
		outcome.ObservedDeployment = evidence.DeployedAddress
	}

	outcome.Status = r.judge(phase, evidence)
	return outcome, nil
}

func (r *Reconciler) judge(phase Phase, evidence *models.TransactionEvidence) models.Status {
	if !evidence.Success {
		return models.StatusFailed
	}
	if phase.TxHash != nil && evidence.Hash != *phase.TxHash {
		return models.StatusFailed
	}
	if phase.ExpectedSender != nil && evidence.From != *phase.ExpectedSender {
		return models.StatusFailed
	}

	if phase.Deployment {
		// Creation transactions have no target; the node reports the zero
		// address.
		if evidence.To != (common.Address{}) {
			return models.StatusFailed
		}
		if evidence.DeployedAddress == nil {
			return models.StatusFailed
		}
		if phase.DeployedAddress != nil && *evidence.DeployedAddress != *phase.DeployedAddress {
			return models.StatusFailed
		}
	} else {
		if evidence.To != phase.ExpectedTo {
			return models.StatusFailed
		}
		if evidence.DeployedAddress != nil {
			return models.StatusFailed
		}
	}

	if phase.ExpectedData != nil {
		if !bytes.Equal(evidence.Data, phase.ExpectedData) {
			return models.StatusFailed
		}
	} else if phase.ExpectedValue != nil {
		if evidence.Value == nil || evidence.Value.Cmp(phase.ExpectedValue) != 0 {
			return models.StatusFailed
		}
	}

	return models.StatusSuccess
}

// ReconcileTwoPhase judges a payout. The disperse phase is only evaluated
// once an applicable approve phase has reached SUCCESS; until then its
// status is nil and its hash, even if attached, is never fetched.
func (r *Reconciler) ReconcileTwoPhase(ctx context.Context, payout TwoPhase) (TwoPhaseOutcome, error) {
	var result TwoPhaseOutcome

	if payout.Approve != nil {
		approve, err := r.ReconcilePhase(ctx, *payout.Approve)
		if err != nil {
			return TwoPhaseOutcome{}, err
		}
		result.ApproveStatus = models.StatusPtr(approve.Status)
		result.ApproveEvidence = approve.Evidence

		if approve.Status != models.StatusSuccess {
			return result, nil
		}
	}

	disperse, err := r.ReconcilePhase(ctx, payout.Disperse)
	if err != nil {
		return TwoPhaseOutcome{}, err
	}
	result.DisperseStatus = models.StatusPtr(disperse.Status)
	result.DisperseEvidence = disperse.Evidence
	return result, nil
}

// ReconcileBalanceProof judges a signed-balance challenge. The balance is
// fetched as soon as a wallet is attached, before the signature or wallet
// identity are judged, so a FAILED proof still reports what the wallet
// held.
func (r *Reconciler) ReconcileBalanceProof(ctx context.Context, proof BalanceProof) (ProofOutcome, error) {
	if proof.ActualWallet == nil {
		return ProofOutcome{Status: models.StatusPending}, nil
	}

	var balance *models.BalanceEvidence
	var err error
	if proof.TokenAddress != nil {
		balance, err = r.fetcher.FetchTokenBalance(ctx, proof.ChainID, proof.RPCOverride, *proof.TokenAddress, *proof.ActualWallet, proof.BlockPin)
	} else {
		balance, err = r.fetcher.FetchNativeBalance(ctx, proof.ChainID, proof.RPCOverride, *proof.ActualWallet, proof.BlockPin)
	}
	if err != nil {
		return ProofOutcome{}, err
	}

	outcome := ProofOutcome{Balance: balance}

	if proof.SignedMessage == "" {
		outcome.Status = models.StatusPending
		return outcome, nil
	}
	if proof.RequestedWallet != nil && *proof.RequestedWallet != *proof.ActualWallet {
		outcome.Status = models.StatusFailed
		return outcome, nil
	}
	if !r.verifier.Verify(proof.ChallengeMessage, proof.SignedMessage, *proof.ActualWallet) {
		outcome.Status = models.StatusFailed
		return outcome, nil
	}

	outcome.Status = models.StatusSuccess
	return outcome, nil
}
