package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelcast/betwatch/internal/chain/betabi"
	"github.com/duelcast/betwatch/internal/crypto"
	"github.com/duelcast/betwatch/internal/domain"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var (
	challengeAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	offerAddr     = common.HexToAddress("0x00000000000000000000000000000000000000c2")
)

type fakeBackend struct {
	mu          sync.Mutex
	gas         uint64
	estimateErr error
	sendErr     error
	sent        *types.Transaction
	receipt     *types.Receipt
}

func (f *fakeBackend) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.gas, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = tx
	return nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

type fakeFetch struct {
	snap *domain.BetSnapshot
	err  error
}

func (f *fakeFetch) Snapshot(context.Context, domain.Variant, uint64) (*domain.BetSnapshot, error) {
	return f.snap, f.err
}

func successReceipt(logs ...*types.Log) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(100),
		GasUsed:     50_000,
		Logs:        logs,
	}
}

func newDispatcher(t *testing.T, backend *fakeBackend, fetch *fakeFetch) *Dispatcher {
	t.Helper()
	signer, err := crypto.NewTxSigner(testKeyHex, 8453)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(backend, signer, fetch, challengeAddr, offerAddr, logger)
}

func TestDispatchVote(t *testing.T) {
	snap := &domain.BetSnapshot{ID: 5, Variant: domain.VariantChallenge, Creator: "0xaaaa"}
	backend := &fakeBackend{gas: 100_000, receipt: successReceipt()}
	d := newDispatcher(t, backend, &fakeFetch{snap: snap})

	receipt, err := d.Dispatch(context.Background(), domain.ActionRequest{
		Kind:    domain.ActionVote,
		Variant: domain.VariantChallenge,
		BetID:   5,
		VoteYes: true,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(100), receipt.BlockNumber)
	assert.Equal(t, uint64(50_000), receipt.GasUsed)
	assert.Equal(t, uint64(5), receipt.BetID)
	assert.Same(t, snap, receipt.Snapshot)

	require.NotNil(t, backend.sent)
	assert.Equal(t, &challengeAddr, backend.sent.To())
	assert.Equal(t, uint64(7), backend.sent.Nonce())
	// 20% headroom over the estimate.
	assert.Equal(t, uint64(120_000), backend.sent.Gas())
	assert.Zero(t, backend.sent.Value().Sign())
	assert.Equal(t,
		[]byte(betabi.ChallengeABI.Methods[betabi.MethodChallengeVote].ID),
		backend.sent.Data()[:4])
}

func TestDispatchJoinAttachesStake(t *testing.T) {
	backend := &fakeBackend{gas: 100_000, receipt: successReceipt()}
	d := newDispatcher(t, backend, &fakeFetch{snap: &domain.BetSnapshot{ID: 5}})

	_, err := d.Dispatch(context.Background(), domain.ActionRequest{
		Kind:    domain.ActionJoin,
		Variant: domain.VariantOffer,
		BetID:   5,
		Stake:   big.NewInt(1_000_000),
	})
	require.NoError(t, err)
	require.NotNil(t, backend.sent)
	assert.Equal(t, &offerAddr, backend.sent.To())
	assert.Equal(t, big.NewInt(1_000_000), backend.sent.Value())
	assert.Equal(t,
		[]byte(betabi.OfferABI.Methods[betabi.MethodOfferTake].ID),
		backend.sent.Data()[:4])
}

func TestDispatchOpenLearnsIDFromReceipt(t *testing.T) {
	opened := &types.Log{
		Topics: []common.Hash{
			betabi.OpenedTopic(domain.VariantChallenge),
			common.BigToHash(big.NewInt(42)),
			betabi.AddressTopic(common.HexToAddress("0x1111111111111111111111111111111111111111")),
		},
	}
	snap := &domain.BetSnapshot{ID: 42, Variant: domain.VariantChallenge}
	backend := &fakeBackend{gas: 100_000, receipt: successReceipt(opened)}
	d := newDispatcher(t, backend, &fakeFetch{snap: snap})

	receipt, err := d.Dispatch(context.Background(), domain.ActionRequest{
		Kind:    domain.ActionOpen,
		Variant: domain.VariantChallenge,
		Open: &domain.OpenParams{
			StakeWei:      big.NewInt(1_000_000),
			FeeBps:        100,
			JoinWindowSec: 86_400,
			ResolveWinSec: 86_400,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), receipt.BetID)
	assert.Same(t, snap, receipt.Snapshot)
	assert.Equal(t, big.NewInt(1_000_000), backend.sent.Value())
}

func TestDispatchOpenRequiresParams(t *testing.T) {
	d := newDispatcher(t, &fakeBackend{}, &fakeFetch{})
	_, err := d.Dispatch(context.Background(), domain.ActionRequest{
		Kind:    domain.ActionOpen,
		Variant: domain.VariantOffer,
	})
	assert.ErrorIs(t, err, domain.ErrActionFailed)
}

func TestDispatchRevertOnEstimate(t *testing.T) {
	backend := &fakeBackend{estimateErr: errors.New("execution reverted: deadline passed")}
	d := newDispatcher(t, backend, &fakeFetch{})

	_, err := d.Dispatch(context.Background(), domain.ActionRequest{
		Kind:    domain.ActionResolve,
		Variant: domain.VariantChallenge,
		BetID:   5,
	})
	assert.ErrorIs(t, err, domain.ErrActionFailed)
	assert.Nil(t, backend.sent)
}

func TestDispatchRevertedReceipt(t *testing.T) {
	backend := &fakeBackend{gas: 100_000, receipt: &types.Receipt{
		Status:      types.ReceiptStatusFailed,
		BlockNumber: big.NewInt(100),
	}}
	d := newDispatcher(t, backend, &fakeFetch{})

	_, err := d.Dispatch(context.Background(), domain.ActionRequest{
		Kind:    domain.ActionRefund,
		Variant: domain.VariantChallenge,
		BetID:   5,
	})
	assert.ErrorContains(t, err, "reverted")
	assert.ErrorIs(t, err, domain.ErrActionFailed)
}

func TestDispatchUnconfiguredVariant(t *testing.T) {
	signer, err := crypto.NewTxSigner(testKeyHex, 8453)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := New(&fakeBackend{}, signer, &fakeFetch{}, challengeAddr, common.Address{}, logger)

	_, err = d.Dispatch(context.Background(), domain.ActionRequest{
		Kind:    domain.ActionVote,
		Variant: domain.VariantOffer,
		BetID:   5,
	})
	assert.ErrorIs(t, err, domain.ErrActionFailed)
}

func TestDispatchSurvivesFailedRefetch(t *testing.T) {
	backend := &fakeBackend{gas: 100_000, receipt: successReceipt()}
	d := newDispatcher(t, backend, &fakeFetch{err: fmt.Errorf("rpc: %w", domain.ErrFetch)})

	receipt, err := d.Dispatch(context.Background(), domain.ActionRequest{
		Kind:    domain.ActionVote,
		Variant: domain.VariantChallenge,
		BetID:   5,
		VoteYes: false,
	})
	require.NoError(t, err)
	assert.Nil(t, receipt.Snapshot)
	assert.NotEmpty(t, receipt.TxHash)
}

func TestDispatchCancelledWhilePending(t *testing.T) {
	// No receipt ever appears; the wait loop must exit on ctx cancel.
	backend := &fakeBackend{gas: 100_000}
	d := newDispatcher(t, backend, &fakeFetch{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.Dispatch(ctx, domain.ActionRequest{
		Kind:    domain.ActionVote,
		Variant: domain.VariantChallenge,
		BetID:   5,
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEstimateGas(t *testing.T) {
	backend := &fakeBackend{gas: 90_000}
	d := newDispatcher(t, backend, &fakeFetch{})

	gas, err := d.EstimateGas(context.Background(), domain.ActionRequest{
		Kind:    domain.ActionJoin,
		Variant: domain.VariantChallenge,
		BetID:   5,
		Stake:   big.NewInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(90_000), gas)
}
