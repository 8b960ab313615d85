package badgerdb

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/timshannon/badgerhold/v4"
)

// Stores bundles one repository per intent kind, each backed by its own
// Badger directory under the base dir. An empty base dir opens every
// store in memory, which is what the tests use.
type Stores struct {
	Sends         *SendRepository
	Payouts       *PayoutRepository
	Deployments   *DeployRepository
	Calls         *CallRepository
	BalanceProofs *BalanceProofRepository
}

// Open opens all intent repositories under baseDir.
func Open(baseDir string, logger badger.Logger) (*Stores, error) {
	sends, err := NewSendRepository(baseDir, logger)
	if err != nil {
		return nil, err
	}

	payouts, err := NewPayoutRepository(baseDir, logger)
	if err != nil {
		sends.Close()
		return nil, err
	}

	deployments, err := NewDeployRepository(baseDir, logger)
	if err != nil {
		sends.Close()
		payouts.Close()
		return nil, err
	}

	calls, err := NewCallRepository(baseDir, logger)
	if err != nil {
		sends.Close()
		payouts.Close()
		deployments.Close()
		return nil, err
	}

	proofs, err := NewBalanceProofRepository(baseDir, logger)
	if err != nil {
		sends.Close()
		payouts.Close()
		deployments.Close()
		calls.Close()
		return nil, err
	}

	return &Stores{
		Sends:         sends,
		Payouts:       payouts,
		Deployments:   deployments,
		Calls:         calls,
		BalanceProofs: proofs,
	}, nil
}

// Close closes every opened repository.
func (s *Stores) Close() {
	s.Sends.Close()
	s.Payouts.Close()
	s.Deployments.Close()
	s.Calls.Close()
	s.BalanceProofs.Close()
}

func createDB(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	db, err := badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	return db, nil
}
