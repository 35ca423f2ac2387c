// Package dispatch turns a confirmed user intent into a single contract
// write call: simulate for gas, sign, send, wait for the receipt, then
// re-fetch the bet so callers reconcile with on-chain truth.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/duelcast/betwatch/internal/chain/betabi"
	"github.com/duelcast/betwatch/internal/domain"
)

// receiptPollInterval paces the wait-for-mined loop.
const receiptPollInterval = 2 * time.Second

// Backend is the transaction surface the dispatcher needs. *chain.Client
// satisfies it.
type Backend interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Signer signs transactions for one account.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction) (*types.Transaction, error)
}

// SnapshotFetcher re-reads the affected bet after confirmation.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, variant domain.Variant, id uint64) (*domain.BetSnapshot, error)
}

// Dispatcher is the only component that calls contract-mutating methods.
type Dispatcher struct {
	backend   Backend
	signer    Signer
	fetch     SnapshotFetcher
	contracts map[domain.Variant]common.Address
	logger    *slog.Logger
}

// New creates a Dispatcher.
func New(backend Backend, signer Signer, fetch SnapshotFetcher, challenge, offer common.Address, logger *slog.Logger) *Dispatcher {
	contracts := make(map[domain.Variant]common.Address, 2)
	if challenge != (common.Address{}) {
		contracts[domain.VariantChallenge] = challenge
	}
	if offer != (common.Address{}) {
		contracts[domain.VariantOffer] = offer
	}
	return &Dispatcher{
		backend:   backend,
		signer:    signer,
		fetch:     fetch,
		contracts: contracts,
		logger:    logger.With(slog.String("component", "dispatch")),
	}
}

// EstimateGas simulates the action and returns a gas estimate, for showing
// the user before they confirm. A revert during simulation surfaces as
// ErrActionFailed.
func (d *Dispatcher) EstimateGas(ctx context.Context, req domain.ActionRequest) (uint64, error) {
	to, data, value, err := d.buildCall(req)
	if err != nil {
		return 0, err
	}
	gas, err := d.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  d.signer.Address(),
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return 0, fmt.Errorf("dispatch: estimate %s %s: %v: %w", req.Kind, req.Variant, err, domain.ErrActionFailed)
	}
	return gas, nil
}

// Dispatch submits the action and blocks until the transaction is mined or
// ctx is cancelled. Failure mutates no local state: a rejected or reverted
// submission surfaces ErrActionFailed with the underlying message and is
// never retried automatically; resubmitting a financial transaction must be
// an explicit user action.
func (d *Dispatcher) Dispatch(ctx context.Context, req domain.ActionRequest) (*domain.ActionReceipt, error) {
	to, data, value, err := d.buildCall(req)
	if err != nil {
		return nil, err
	}

	from := d.signer.Address()
	msg := ethereum.CallMsg{From: from, To: &to, Value: value, Data: data}

	gas, err := d.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("dispatch: estimate %s %s: %v: %w", req.Kind, req.Variant, err, domain.ErrActionFailed)
	}
	gasPrice, err := d.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("dispatch: gas price: %v: %w", err, domain.ErrFetch)
	}
	nonce, err := d.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("dispatch: nonce: %v: %w", err, domain.ErrFetch)
	}

	// 20% headroom over the estimate; unused gas is refunded.
	tx := types.NewTransaction(nonce, to, value, gas+gas/5, gasPrice, data)
	signed, err := d.signer.SignTx(tx)
	if err != nil {
		return nil, fmt.Errorf("dispatch: %v: %w", err, domain.ErrActionFailed)
	}

	if err := d.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("dispatch: send %s %s: %v: %w", req.Kind, req.Variant, err, domain.ErrActionFailed)
	}
	d.logger.Info("transaction submitted",
		slog.String("kind", string(req.Kind)),
		slog.String("variant", string(req.Variant)),
		slog.String("tx", signed.Hash().Hex()),
	)

	receipt, err := d.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("dispatch: tx %s reverted: %w", signed.Hash().Hex(), domain.ErrActionFailed)
	}

	out := &domain.ActionReceipt{
		TxHash:      signed.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		BetID:       req.BetID,
	}

	// An open call learns its id from the opened event in the receipt.
	if req.Kind == domain.ActionOpen {
		id, ok := openedID(req.Variant, receipt.Logs)
		if !ok {
			return out, nil
		}
		out.BetID = id
	}

	snap, err := d.fetch.Snapshot(ctx, req.Variant, out.BetID)
	if err != nil {
		// The write landed; a failed re-fetch only means the view is stale
		// until the next read.
		d.logger.Warn("post-confirmation re-fetch failed",
			slog.String("bet", domain.BetRef{Variant: req.Variant, ID: out.BetID}.String()),
			slog.String("error", err.Error()),
		)
		return out, nil
	}
	out.Snapshot = snap
	return out, nil
}

func (d *Dispatcher) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := d.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			d.logger.Debug("receipt not ready", slog.String("tx", txHash.Hex()), slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dispatch: wait for %s: %w", txHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// buildCall packs the calldata and attached value for the request.
func (d *Dispatcher) buildCall(req domain.ActionRequest) (common.Address, []byte, *big.Int, error) {
	contract, ok := d.contracts[req.Variant]
	if !ok {
		return common.Address{}, nil, nil, fmt.Errorf("dispatch: %s contract not configured: %w", req.Variant, domain.ErrActionFailed)
	}

	contractABI := betabi.ABIFor(req.Variant)
	id := new(big.Int).SetUint64(req.BetID)
	value := big.NewInt(0)

	var (
		data []byte
		err  error
	)
	switch {
	case req.Kind == domain.ActionOpen && req.Variant == domain.VariantChallenge:
		if req.Open == nil || req.Open.StakeWei == nil {
			return common.Address{}, nil, nil, fmt.Errorf("dispatch: open params required: %w", domain.ErrActionFailed)
		}
		data, err = contractABI.Pack(betabi.MethodChallengeOpen,
			req.Open.StakeWei, req.Open.FeeBps, req.Open.JoinWindowSec, req.Open.ResolveWinSec)
		value = req.Open.StakeWei
	case req.Kind == domain.ActionOpen:
		if req.Open == nil || req.Open.StakeWei == nil {
			return common.Address{}, nil, nil, fmt.Errorf("dispatch: open params required: %w", domain.ErrActionFailed)
		}
		data, err = contractABI.Pack(betabi.MethodOfferOpen,
			req.Open.CreatorSideYes, req.Open.OddsBps, req.Open.JoinWindowSec, req.Open.ResolveWinSec)
		value = req.Open.StakeWei
	case req.Kind == domain.ActionJoin && req.Variant == domain.VariantChallenge:
		data, err = contractABI.Pack(betabi.MethodChallengeJoin, id)
		value = req.Stake
	case req.Kind == domain.ActionJoin:
		data, err = contractABI.Pack(betabi.MethodOfferTake, id)
		value = req.Stake
	case req.Kind == domain.ActionVote && req.Variant == domain.VariantChallenge:
		data, err = contractABI.Pack(betabi.MethodChallengeVote, id, req.VoteYes)
	case req.Kind == domain.ActionVote:
		data, err = contractABI.Pack(betabi.MethodOfferVote, id, req.VoteYes)
	case req.Kind == domain.ActionResolve && req.Variant == domain.VariantChallenge:
		data, err = contractABI.Pack(betabi.MethodChallengeResolve, id)
	case req.Kind == domain.ActionResolve:
		data, err = contractABI.Pack(betabi.MethodOfferResolve, id)
	case req.Kind == domain.ActionRefund && req.Variant == domain.VariantChallenge:
		data, err = contractABI.Pack(betabi.MethodChallengeRefund, id)
	case req.Kind == domain.ActionRefund:
		data, err = contractABI.Pack(betabi.MethodOfferRefund, id)
	default:
		return common.Address{}, nil, nil, fmt.Errorf("dispatch: unsupported action %q: %w", req.Kind, domain.ErrActionFailed)
	}
	if err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("dispatch: pack %s %s: %w", req.Kind, req.Variant, err)
	}
	if value == nil {
		value = big.NewInt(0)
	}
	return contract, data, value, nil
}

func openedID(variant domain.Variant, logs []*types.Log) (uint64, bool) {
	for _, lg := range logs {
		if lg == nil {
			continue
		}
		ev, err := betabi.DecodeOpened(variant, *lg)
		if err != nil {
			continue
		}
		return ev.ID, true
	}
	return 0, false
}
