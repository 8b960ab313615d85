package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/chain-vouch/chain-vouch/pkg/config"
	"github.com/chain-vouch/chain-vouch/pkg/encoder"
	"github.com/chain-vouch/chain-vouch/pkg/logger"
	"github.com/chain-vouch/chain-vouch/pkg/metrics"
	"github.com/chain-vouch/chain-vouch/pkg/models"
	"github.com/chain-vouch/chain-vouch/pkg/reconcile"
	"github.com/chain-vouch/chain-vouch/pkg/store"
)

// Request type labels used in logs and metrics.
const (
	typeSend         = "send"
	typePayout       = "payout"
	typeDeploy       = "deploy"
	typeCall         = "call"
	typeBalanceProof = "balance_proof"
)

// Default redirect paths per request type. The id placeholder is
// substituted once, at creation.
const (
	sendRedirectPath   = "/request-send/${id}/action"
	payoutRedirectPath = "/request-payout/${id}/action"
	deployRedirectPath = "/request-deploy/${id}/action"
	callRedirectPath   = "/request-call/${id}/action"
	proofRedirectPath  = "/request-balance/${id}/action"
)

// Services bundles one service per intent kind, sharing the reconciler,
// payload encoder and worker pool size.
type Services struct {
	Sends         *SendService
	Payouts       *PayoutService
	Deployments   *DeployService
	Calls         *CallService
	BalanceProofs *BalanceProofService
}

// Repositories is the set of persistence collaborators the services need.
type Repositories struct {
	Sends         store.SendRepository
	Payouts       store.PayoutRepository
	Deployments   store.DeployRepository
	Calls         store.CallRepository
	BalanceProofs store.BalanceProofRepository
}

// New wires all intent services.
func New(cfg *config.Config, repos Repositories, reconciler *reconcile.Reconciler, log logger.Logger) *Services {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	enc := encoder.ABIEncoder{}

	shared := deps{
		cfg:        cfg,
		reconciler: reconciler,
		enc:        enc,
		log:        log,
	}

	return &Services{
		Sends:         &SendService{deps: shared, repo: repos.Sends},
		Payouts:       &PayoutService{deps: shared, repo: repos.Payouts},
		Deployments:   &DeployService{deps: shared, repo: repos.Deployments},
		Calls:         &CallService{deps: shared, repo: repos.Calls},
		BalanceProofs: &BalanceProofService{deps: shared, repo: repos.BalanceProofs},
	}
}

type deps struct {
	cfg        *config.Config
	reconciler *reconcile.Reconciler
	enc        encoder.FunctionEncoder
	log        logger.Logger
}

// validateChain rejects intents for chains the service is not connected
// to, unless the intent carries its own RPC override.
func (d deps) validateChain(chainID int, rpcOverride string) error {
	if rpcOverride != "" {
		return nil
	}
	if _, ok := d.cfg.Chains[chainID]; !ok {
		return fmt.Errorf("chain %d is not configured", chainID)
	}
	return nil
}

// observeReconciliation records the outcome counter and timing for one
// reconciled intent.
func observeReconciliation(requestType string, status models.Status, start time.Time) {
	metrics.Reconciliations.WithLabelValues(requestType, status.String()).Inc()
	metrics.ReconciliationTime.WithLabelValues(requestType).Observe(time.Since(start).Seconds())
}

// statusLabel renders an optional phase status for log lines.
func statusLabel(status *models.Status) string {
	if status == nil {
		return "n/a"
	}
	return status.String()
}

// fanOut runs do(0..n-1) on a bounded number of workers and returns the
// first error. List reconciliations use it so a large project does not
// serialize on RPC latency.
func fanOut(workers int, n int, do func(i int) error) error {
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	jobs := make(chan int)
	errCh := make(chan error, n)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := do(i); err != nil {
					errCh <- err
				}
			}
		}()
	}

	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(errCh)

	return <-errCh
}
