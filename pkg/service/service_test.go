package service

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chain-vouch/chain-vouch/pkg/config"
	"github.com/chain-vouch/chain-vouch/pkg/encoder"
	"github.com/chain-vouch/chain-vouch/pkg/models"
	"github.com/chain-vouch/chain-vouch/pkg/reconcile"
	"github.com/chain-vouch/chain-vouch/pkg/store"
	"github.com/chain-vouch/chain-vouch/pkg/store/badgerdb"
)

var (
	testHash      = common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	otherHash     = common.HexToHash("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testSender    = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testRecipient = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testToken     = common.HexToAddress("0x3000000000000000000000000000000000000003")
	testDeployed  = common.HexToAddress("0x4000000000000000000000000000000000000004")
	testDisperse  = common.HexToAddress("0x5000000000000000000000000000000000000005")
)

func addrPtr(a common.Address) *common.Address { return &a }

// mockFetcher serves canned evidence keyed by transaction hash.
type mockFetcher struct {
	transactions map[common.Hash]*models.TransactionEvidence
	balance      *models.BalanceEvidence
}

func (m *mockFetcher) FetchTransaction(_ context.Context, _ int, _ string, hash common.Hash) (*models.TransactionEvidence, error) {
	return m.transactions[hash], nil
}

func (m *mockFetcher) FetchNativeBalance(_ context.Context, _ int, _ string, wallet common.Address, _ *big.Int) (*models.BalanceEvidence, error) {
	return m.balance, nil
}

func (m *mockFetcher) FetchTokenBalance(_ context.Context, _ int, _ string, _ common.Address, wallet common.Address, _ *big.Int) (*models.BalanceEvidence, error) {
	return m.balance, nil
}

type mockVerifier struct {
	valid bool
}

func (m *mockVerifier) Verify(_ string, _ string, _ common.Address) bool {
	return m.valid
}

type fixture struct {
	services *Services
	fetcher  *mockFetcher
	verifier *mockVerifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	stores, err := badgerdb.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(stores.Close)

	fetcher := &mockFetcher{transactions: map[common.Hash]*models.TransactionEvidence{}}
	verifier := &mockVerifier{valid: true}

	cfg := &config.Config{
		Chains: map[int]config.ChainConfig{
			1: {ChainID: 1, RPCURL: "http://localhost:8545"},
		},
		BaseRedirectURL: "https://app.example.com",
		WorkerCount:     3,
	}

	services := New(cfg, Repositories{
		Sends:         stores.Sends,
		Payouts:       stores.Payouts,
		Deployments:   stores.Deployments,
		Calls:         stores.Calls,
		BalanceProofs: stores.BalanceProofs,
	}, reconcile.NewReconciler(fetcher, verifier, nil), nil)

	return &fixture{services: services, fetcher: fetcher, verifier: verifier}
}

func TestSendCreateTokenIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.services.Sends.Create(ctx, CreateSendParams{
		ProjectID:    "project-a",
		ChainID:      1,
		TokenAddress: addrPtr(testToken),
		Recipient:    testRecipient,
		Amount:       big.NewInt(1000),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, view.Status)
	assert.Nil(t, view.Value)

	expectedData, err := encoder.TransferData(encoder.ABIEncoder{}, testRecipient, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, expectedData, view.Data)

	// The default redirect path carries the generated id.
	assert.Equal(t, "https://app.example.com/request-send/"+view.Intent.ID+"/action", view.Intent.RedirectURL)
}

func TestSendCreateNativeIntent(t *testing.T) {
	f := newFixture(t)

	view, err := f.services.Sends.Create(context.Background(), CreateSendParams{
		ProjectID: "project-a",
		ChainID:   1,
		Recipient: testRecipient,
		Amount:    big.NewInt(500),
	})
	require.NoError(t, err)

	assert.Nil(t, view.Data)
	assert.Equal(t, big.NewInt(500), view.Value)
}

func TestSendCreateUnknownChain(t *testing.T) {
	f := newFixture(t)

	_, err := f.services.Sends.Create(context.Background(), CreateSendParams{
		ProjectID: "project-a",
		ChainID:   999,
		Recipient: testRecipient,
		Amount:    big.NewInt(1),
	})
	assert.Error(t, err)

	// An RPC override makes any chain id acceptable.
	_, err = f.services.Sends.Create(context.Background(), CreateSendParams{
		ProjectID:   "project-a",
		ChainID:     999,
		RPCOverride: "http://localhost:9999",
		Recipient:   testRecipient,
		Amount:      big.NewInt(1),
	})
	assert.NoError(t, err)
}

func TestSendLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.services.Sends.Create(ctx, CreateSendParams{
		ProjectID:    "project-a",
		ChainID:      1,
		TokenAddress: addrPtr(testToken),
		Recipient:    testRecipient,
		Amount:       big.NewInt(1000),
		Sender:       addrPtr(testSender),
	})
	require.NoError(t, err)
	id := created.Intent.ID

	// Nothing attached yet: PENDING.
	view, err := f.services.Sends.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, view.Status)

	require.NoError(t, f.services.Sends.AttachTxInfo(ctx, id, testHash, testSender))

	// Attached but not mined: still PENDING.
	view, err = f.services.Sends.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, view.Status)

	// Matching mined evidence: SUCCESS.
	f.fetcher.transactions[testHash] = &models.TransactionEvidence{
		Hash:    testHash,
		From:    testSender,
		To:      testToken,
		Data:    created.Data,
		Value:   big.NewInt(0),
		Success: true,
	}
	view, err = f.services.Sends.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, view.Status)
	require.NotNil(t, view.Evidence)

	// A second attach must be rejected and leave the first hash in place.
	err = f.services.Sends.AttachTxInfo(ctx, id, otherHash, testSender)
	assert.ErrorIs(t, err, store.ErrCannotAttach)
}

func TestSendEvidenceContradictionIsFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.services.Sends.Create(ctx, CreateSendParams{
		ProjectID:    "project-a",
		ChainID:      1,
		TokenAddress: addrPtr(testToken),
		Recipient:    testRecipient,
		Amount:       big.NewInt(1000),
	})
	require.NoError(t, err)
	id := created.Intent.ID

	require.NoError(t, f.services.Sends.AttachTxInfo(ctx, id, testHash, testSender))

	// Evidence targets the wrong contract.
	f.fetcher.transactions[testHash] = &models.TransactionEvidence{
		Hash:    testHash,
		From:    testSender,
		To:      testRecipient,
		Data:    created.Data,
		Value:   big.NewInt(0),
		Success: true,
	}

	view, err := f.services.Sends.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, view.Status)
}

func TestSendGetUnknownIntent(t *testing.T) {
	f := newFixture(t)

	_, err := f.services.Sends.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSendListByProject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.services.Sends.Create(ctx, CreateSendParams{
			ProjectID: "project-a",
			ChainID:   1,
			Recipient: testRecipient,
			Amount:    big.NewInt(int64(i + 1)),
		})
		require.NoError(t, err)
	}

	views, err := f.services.Sends.ListByProject(ctx, "project-a")
	require.NoError(t, err)
	assert.Len(t, views, 3)
	for _, view := range views {
		assert.Equal(t, models.StatusPending, view.Status)
	}

	empty, err := f.services.Sends.ListByProject(ctx, "project-unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPayoutTokenLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.services.Payouts.Create(ctx, CreatePayoutParams{
		ProjectID:        "project-a",
		ChainID:          1,
		TokenAddress:     addrPtr(testToken),
		DisperseContract: testDisperse,
		Recipients:       []common.Address{testRecipient, testSender},
		Amounts:          []*big.Int{big.NewInt(10), big.NewInt(20)},
	})
	require.NoError(t, err)
	id := created.Intent.ID

	require.NotNil(t, created.ApproveData)
	require.NotNil(t, created.DisperseData)
	assert.Nil(t, created.DisperseValue)

	// Approve not attached: approve PENDING, disperse not evaluated.
	view, err := f.services.Payouts.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, view.ApproveStatus)
	assert.Equal(t, models.StatusPending, *view.ApproveStatus)
	assert.Nil(t, view.DisperseStatus)

	require.NoError(t, f.services.Payouts.AttachApproveTxInfo(ctx, id, testHash, testSender))
	require.NoError(t, f.services.Payouts.AttachDisperseTxInfo(ctx, id, otherHash, testSender))

	// Approve mined and matching; disperse mined and matching.
	f.fetcher.transactions[testHash] = &models.TransactionEvidence{
		Hash:    testHash,
		From:    testSender,
		To:      testToken,
		Data:    created.ApproveData,
		Value:   big.NewInt(0),
		Success: true,
	}
	f.fetcher.transactions[otherHash] = &models.TransactionEvidence{
		Hash:    otherHash,
		From:    testSender,
		To:      testDisperse,
		Data:    created.DisperseData,
		Value:   big.NewInt(0),
		Success: true,
	}

	view, err = f.services.Payouts.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, view.ApproveStatus)
	assert.Equal(t, models.StatusSuccess, *view.ApproveStatus)
	require.NotNil(t, view.DisperseStatus)
	assert.Equal(t, models.StatusSuccess, *view.DisperseStatus)
}

func TestPayoutDisperseNotEvaluatedWhileApprovePending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.services.Payouts.Create(ctx, CreatePayoutParams{
		ProjectID:        "project-a",
		ChainID:          1,
		TokenAddress:     addrPtr(testToken),
		DisperseContract: testDisperse,
		Recipients:       []common.Address{testRecipient},
		Amounts:          []*big.Int{big.NewInt(10)},
	})
	require.NoError(t, err)
	id := created.Intent.ID

	// Disperse hash attached first; approve still missing.
	require.NoError(t, f.services.Payouts.AttachDisperseTxInfo(ctx, id, otherHash, testSender))
	f.fetcher.transactions[otherHash] = &models.TransactionEvidence{
		Hash:    otherHash,
		From:    testSender,
		To:      testDisperse,
		Data:    created.DisperseData,
		Value:   big.NewInt(0),
		Success: true,
	}

	view, err := f.services.Payouts.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, view.ApproveStatus)
	assert.Equal(t, models.StatusPending, *view.ApproveStatus)
	assert.Nil(t, view.DisperseStatus)
	assert.Nil(t, view.DisperseEvidence)
}

func TestPayoutNativeHasNoApprovePhase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.services.Payouts.Create(ctx, CreatePayoutParams{
		ProjectID:        "project-a",
		ChainID:          1,
		DisperseContract: testDisperse,
		Recipients:       []common.Address{testRecipient, testSender},
		Amounts:          []*big.Int{big.NewInt(100), big.NewInt(200)},
	})
	require.NoError(t, err)
	id := created.Intent.ID

	assert.Nil(t, created.ApproveData)
	assert.Equal(t, big.NewInt(300), created.DisperseValue)

	view, err := f.services.Payouts.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, view.ApproveStatus)
	require.NotNil(t, view.DisperseStatus)
	assert.Equal(t, models.StatusPending, *view.DisperseStatus)

	// The summed value carried to the disperse contract decides.
	require.NoError(t, f.services.Payouts.AttachDisperseTxInfo(ctx, id, testHash, testSender))
	f.fetcher.transactions[testHash] = &models.TransactionEvidence{
		Hash:    testHash,
		From:    testSender,
		To:      testDisperse,
		Data:    created.DisperseData,
		Value:   big.NewInt(300),
		Success: true,
	}

	view, err = f.services.Payouts.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, view.ApproveStatus)
	require.NotNil(t, view.DisperseStatus)
	assert.Equal(t, models.StatusSuccess, *view.DisperseStatus)
}

func TestPayoutCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.services.Payouts.Create(ctx, CreatePayoutParams{
		ProjectID:        "project-a",
		ChainID:          1,
		DisperseContract: testDisperse,
	})
	assert.Error(t, err)

	_, err = f.services.Payouts.Create(ctx, CreatePayoutParams{
		ProjectID:        "project-a",
		ChainID:          1,
		DisperseContract: testDisperse,
		Recipients:       []common.Address{testRecipient, testSender},
		Amounts:          []*big.Int{big.NewInt(1)},
	})
	assert.Error(t, err)
}

func TestDeployLifecyclePersistsDeployedAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	contractData := []byte{0x60, 0x80, 0x60, 0x40}
	created, err := f.services.Deployments.Create(ctx, CreateDeployParams{
		ProjectID:    "project-a",
		ChainID:      1,
		ContractData: contractData,
		Deployer:     addrPtr(testSender),
	})
	require.NoError(t, err)
	id := created.Intent.ID

	require.NoError(t, f.services.Deployments.AttachTxInfo(ctx, id, testHash, testSender))

	f.fetcher.transactions[testHash] = &models.TransactionEvidence{
		Hash:            testHash,
		From:            testSender,
		To:              common.Address{},
		DeployedAddress: addrPtr(testDeployed),
		Data:            contractData,
		Value:           big.NewInt(0),
		Success:         true,
	}

	view, err := f.services.Deployments.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, view.Status)
	require.NotNil(t, view.Intent.DeployedAddress)
	assert.Equal(t, testDeployed, *view.Intent.DeployedAddress)

	// The observed address survives and a second read is a no-op.
	view, err = f.services.Deployments.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, view.Status)
	require.NotNil(t, view.Intent.DeployedAddress)
	assert.Equal(t, testDeployed, *view.Intent.DeployedAddress)
}

func TestDeployEvidenceWithoutAddressIsFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.services.Deployments.Create(ctx, CreateDeployParams{
		ProjectID:    "project-a",
		ChainID:      1,
		ContractData: []byte{0x60, 0x80},
	})
	require.NoError(t, err)
	id := created.Intent.ID

	require.NoError(t, f.services.Deployments.AttachTxInfo(ctx, id, testHash, testSender))
	f.fetcher.transactions[testHash] = &models.TransactionEvidence{
		Hash:    testHash,
		From:    testSender,
		To:      common.Address{},
		Data:    []byte{0x60, 0x80},
		Value:   big.NewInt(0),
		Success: true,
	}

	view, err := f.services.Deployments.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, view.Status)
	assert.Nil(t, view.Intent.DeployedAddress)
}

func TestDeployListByDeployer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.services.Deployments.Create(ctx, CreateDeployParams{
			ProjectID:    "project-a",
			ChainID:      1,
			ContractData: []byte{0x60, byte(i)},
			Deployer:     addrPtr(testSender),
		})
		require.NoError(t, err)
	}
	_, err := f.services.Deployments.Create(ctx, CreateDeployParams{
		ProjectID:    "project-a",
		ChainID:      1,
		ContractData: []byte{0x60, 0xff},
		Deployer:     addrPtr(testRecipient),
	})
	require.NoError(t, err)

	views, err := f.services.Deployments.ListByDeployer(ctx, testSender)
	require.NoError(t, err)
	assert.Len(t, views, 2)
	for _, view := range views {
		assert.Equal(t, models.StatusPending, view.Status)
	}

	empty, err := f.services.Deployments.ListByDeployer(ctx, testDeployed)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCallLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.services.Calls.Create(ctx, CreateCallParams{
		ProjectID:       "project-a",
		ChainID:         1,
		ContractAddress: testToken,
		FunctionName:    "setOwner",
		Args:            []encoder.Argument{encoder.Address(testSender)},
		EthValue:        big.NewInt(0),
	})
	require.NoError(t, err)
	id := created.Intent.ID
	callData := created.Intent.CallData

	expectedData, err := encoder.ABIEncoder{}.Encode("setOwner", []encoder.Argument{encoder.Address(testSender)})
	require.NoError(t, err)
	assert.Equal(t, expectedData, callData)

	require.NoError(t, f.services.Calls.AttachTxInfo(ctx, id, testHash, testSender))
	f.fetcher.transactions[testHash] = &models.TransactionEvidence{
		Hash:    testHash,
		From:    testSender,
		To:      testToken,
		Data:    callData,
		Value:   big.NewInt(0),
		Success: true,
	}

	view, err := f.services.Calls.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, view.Status)
}

func TestBalanceProofLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.services.BalanceProofs.Create(ctx, CreateBalanceProofParams{
		ProjectID:       "project-a",
		ChainID:         1,
		TokenAddress:    addrPtr(testToken),
		RequestedWallet: addrPtr(testSender),
	})
	require.NoError(t, err)
	id := created.Intent.ID

	assert.True(t, strings.HasSuffix(created.Intent.ChallengeMessage(), id))

	// No wallet attached: PENDING, no balance.
	view, err := f.services.BalanceProofs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, view.Status)
	assert.Nil(t, view.Balance)

	f.fetcher.balance = &models.BalanceEvidence{
		Wallet:      testSender,
		BlockNumber: big.NewInt(123),
		Timestamp:   time.Unix(1700000000, 0).UTC(),
		Amount:      big.NewInt(5000),
	}
	require.NoError(t, f.services.BalanceProofs.AttachSignedMessage(ctx, id, testSender, "0xsignature"))

	view, err = f.services.BalanceProofs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, view.Status)
	require.NotNil(t, view.Balance)
	assert.Equal(t, big.NewInt(5000), view.Balance.Amount)
}

func TestBalanceProofInvalidSignatureStillReportsBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.services.BalanceProofs.Create(ctx, CreateBalanceProofParams{
		ProjectID: "project-a",
		ChainID:   1,
	})
	require.NoError(t, err)
	id := created.Intent.ID

	f.verifier.valid = false
	f.fetcher.balance = &models.BalanceEvidence{
		Wallet:      testSender,
		BlockNumber: big.NewInt(123),
		Amount:      big.NewInt(5000),
	}
	require.NoError(t, f.services.BalanceProofs.AttachSignedMessage(ctx, id, testSender, "0xbad"))

	view, err := f.services.BalanceProofs.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, view.Status)
	require.NotNil(t, view.Balance)
	assert.Equal(t, big.NewInt(5000), view.Balance.Amount)
}
