package chainclient

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/chain-vouch/chain-vouch/pkg/circuitbreaker"
	"github.com/chain-vouch/chain-vouch/pkg/config"
	"github.com/chain-vouch/chain-vouch/pkg/logger"
	"github.com/chain-vouch/chain-vouch/pkg/metrics"
)

// Registry holds one connected client per configured chain, plus a circuit
// breaker per chain guarding evidence lookups against a misbehaving node.
type Registry struct {
	clients  map[int]*ethclient.Client
	breakers map[int]*circuitbreaker.CircuitBreaker
	log      logger.Logger
}

// NewRegistry dials every configured chain. A chain that cannot be dialed
// fails startup; partial registries cause confusing PENDING results later.
func NewRegistry(cfg *config.Config, log logger.Logger) (*Registry, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	r := &Registry{
		clients:  make(map[int]*ethclient.Client),
		breakers: make(map[int]*circuitbreaker.CircuitBreaker),
		log:      log,
	}

	for chainID, chainCfg := range cfg.Chains {
		client, err := ethclient.Dial(chainCfg.RPCURL)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to connect to chain %d: %w", chainID, err)
		}
		r.clients[chainID] = client
		r.breakers[chainID] = circuitbreaker.NewCircuitBreaker(
			cfg.CircuitBreaker.Enabled,
			cfg.CircuitBreaker.Threshold,
			cfg.CircuitBreaker.WindowDuration,
			cfg.CircuitBreaker.ResetTimeout,
			log,
		)
		log.InfoWithChain(chainID, "Connected to RPC endpoint")
	}

	return r, nil
}

// Close disconnects every registered client.
func (r *Registry) Close() {
	for _, client := range r.clients {
		client.Close()
	}
}

// ChainIDs returns the ids of all registered chains.
func (r *Registry) ChainIDs() []int {
	ids := make([]int, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// BreakerState reports whether the breaker for a chain is currently open.
// Unknown chains report closed.
func (r *Registry) BreakerState(chainID int) bool {
	breaker, ok := r.breakers[chainID]
	if !ok {
		return false
	}
	return breaker.IsOpen()
}

// clientFor resolves the client to use for a lookup. An RPC override dials
// a dedicated connection that is closed after the lookup; the per-chain
// breaker still applies so an override cannot bypass it.
func (r *Registry) clientFor(chainID int, rpcOverride string) (*ethclient.Client, func(), error) {
	if rpcOverride != "" {
		client, err := ethclient.Dial(rpcOverride)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to override RPC for chain %d: %w", chainID, err)
		}
		return client, client.Close, nil
	}

	client, ok := r.clients[chainID]
	if !ok {
		return nil, nil, fmt.Errorf("chain %d is not configured", chainID)
	}
	return client, func() {}, nil
}

// ResetBreaker manually closes the breaker for a chain. Returns false
// when the chain has no breaker.
func (r *Registry) ResetBreaker(chainID int) bool {
	breaker, ok := r.breakers[chainID]
	if !ok {
		return false
	}
	breaker.Reset()
	return true
}

func (r *Registry) breakerFor(chainID int) *circuitbreaker.CircuitBreaker {
	return r.breakers[chainID]
}

// guard wraps one lookup with the chain's breaker and fetch metrics.
func (r *Registry) guard(chainID int, kind string, lookup func() error) error {
	chainLabel := strconv.Itoa(chainID)
	metrics.EvidenceFetches.WithLabelValues(chainLabel, kind).Inc()

	breaker := r.breakerFor(chainID)
	if breaker != nil && breaker.IsOpen() {
		return fmt.Errorf("chain %d lookups suspended: circuit breaker open", chainID)
	}

	start := time.Now()
	err := lookup()
	metrics.EvidenceFetchTime.WithLabelValues(chainLabel, kind).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EvidenceFetchErrors.WithLabelValues(chainLabel, kind).Inc()
		if breaker != nil && breaker.RecordFailure() {
			metrics.CircuitBreakerTrips.WithLabelValues(chainLabel).Inc()
		}
		return err
	}

	if breaker != nil {
		breaker.RecordSuccess()
	}
	return nil
}
