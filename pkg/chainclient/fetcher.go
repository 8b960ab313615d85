package chainclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/chain-vouch/chain-vouch/pkg/encoder"
	"github.com/chain-vouch/chain-vouch/pkg/models"
)

const lookupTimeout = 15 * time.Second

// FetchTransaction assembles evidence for a mined transaction. It returns
// (nil, nil) for unknown or still-pending hashes; only lookup failures
// surface as errors.
func (r *Registry) FetchTransaction(ctx context.Context, chainID int, rpcOverride string, hash common.Hash) (*models.TransactionEvidence, error) {
	client, release, err := r.clientFor(chainID, rpcOverride)
	if err != nil {
		return nil, err
	}
	defer release()

	var evidence *models.TransactionEvidence
	err = r.guard(chainID, "transaction", func() error {
		timeoutCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
		defer cancel()

		var innerErr error
		evidence, innerErr = fetchTransaction(timeoutCtx, client, hash)
		return innerErr
	})
	if err != nil {
		r.log.ErrorWithChain(chainID, "Transaction lookup for %s failed: %v", hash.Hex(), err)
		return nil, err
	}
	return evidence, nil
}

func fetchTransaction(ctx context.Context, client *ethclient.Client, hash common.Hash) (*models.TransactionEvidence, error) {
	tx, isPending, err := client.TransactionByHash(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if isPending {
		return nil, nil
	}

	receipt, err := client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}

	header, err := client.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get block header: %w", err)
	}

	currentBlock, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current block number: %w", err)
	}

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender: %w", err)
	}

	evidence := &models.TransactionEvidence{
		Hash:      hash,
		From:      from,
		Data:      tx.Data(),
		Value:     tx.Value(),
		Timestamp: time.Unix(int64(header.Time), 0).UTC(),
		Success:   receipt.Status == types.ReceiptStatusSuccessful,
	}

	if to := tx.To(); to != nil {
		evidence.To = *to
	} else {
		// Creation transaction: no target, the receipt carries the address
		// the contract was deployed at.
		deployed := receipt.ContractAddress
		evidence.DeployedAddress = &deployed
	}

	mined := receipt.BlockNumber.Uint64()
	if currentBlock >= mined {
		evidence.Confirmations = currentBlock - mined + 1
	}

	return evidence, nil
}

// FetchNativeBalance reads a wallet's native-asset balance, at the pinned
// block when one is given, otherwise at the latest block.
func (r *Registry) FetchNativeBalance(ctx context.Context, chainID int, rpcOverride string, wallet common.Address, blockPin *big.Int) (*models.BalanceEvidence, error) {
	client, release, err := r.clientFor(chainID, rpcOverride)
	if err != nil {
		return nil, err
	}
	defer release()

	var evidence *models.BalanceEvidence
	err = r.guard(chainID, "native_balance", func() error {
		timeoutCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
		defer cancel()

		blockNumber, header, innerErr := resolveBlock(timeoutCtx, client, blockPin)
		if innerErr != nil {
			return innerErr
		}

		amount, innerErr := client.BalanceAt(timeoutCtx, wallet, blockNumber)
		if innerErr != nil {
			return fmt.Errorf("failed to get balance: %w", innerErr)
		}

		evidence = &models.BalanceEvidence{
			Wallet:      wallet,
			BlockNumber: blockNumber,
			Timestamp:   time.Unix(int64(header.Time), 0).UTC(),
			Amount:      amount,
		}
		return nil
	})
	if err != nil {
		r.log.ErrorWithChain(chainID, "Native balance lookup for %s failed: %v", wallet.Hex(), err)
		return nil, err
	}
	return evidence, nil
}

// FetchTokenBalance reads a wallet's ERC-20 balance via an eth_call of
// balanceOf, at the pinned block when one is given.
func (r *Registry) FetchTokenBalance(ctx context.Context, chainID int, rpcOverride string, token common.Address, wallet common.Address, blockPin *big.Int) (*models.BalanceEvidence, error) {
	client, release, err := r.clientFor(chainID, rpcOverride)
	if err != nil {
		return nil, err
	}
	defer release()

	callData, err := encoder.BalanceOfData(encoder.ABIEncoder{}, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to encode balanceOf call: %w", err)
	}

	var evidence *models.BalanceEvidence
	err = r.guard(chainID, "token_balance", func() error {
		timeoutCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
		defer cancel()

		blockNumber, header, innerErr := resolveBlock(timeoutCtx, client, blockPin)
		if innerErr != nil {
			return innerErr
		}

		result, innerErr := client.CallContract(timeoutCtx, ethereum.CallMsg{
			To:   &token,
			Data: callData,
		}, blockNumber)
		if innerErr != nil {
			return fmt.Errorf("failed to call balanceOf: %w", innerErr)
		}

		evidence = &models.BalanceEvidence{
			Wallet:      wallet,
			BlockNumber: blockNumber,
			Timestamp:   time.Unix(int64(header.Time), 0).UTC(),
			Amount:      new(big.Int).SetBytes(result),
		}
		return nil
	})
	if err != nil {
		r.log.ErrorWithChain(chainID, "Token balance lookup for %s failed: %v", wallet.Hex(), err)
		return nil, err
	}
	return evidence, nil
}

// resolveBlock pins the lookup block: the given pin when present, the
// latest header otherwise. The header is needed either way for the
// snapshot timestamp.
func resolveBlock(ctx context.Context, client *ethclient.Client, blockPin *big.Int) (*big.Int, *types.Header, error) {
	header, err := client.HeaderByNumber(ctx, blockPin)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get block header: %w", err)
	}
	if blockPin != nil {
		return blockPin, header, nil
	}
	return header.Number, header, nil
}
