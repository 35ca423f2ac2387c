// Package fetcher reads one bet's on-chain fields and normalizes them into a
// domain.BetSnapshot. The contract's zero-address creator sentinel is the
// canonical "does not exist" signal; transport failures are a distinct,
// retryable error.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/duelcast/betwatch/internal/chain/betabi"
	"github.com/duelcast/betwatch/internal/domain"
)

// Caller is the narrow read surface the fetcher needs. *chain.Client
// satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error)
}

// Fetcher issues the core and status read calls for either variant.
type Fetcher struct {
	caller    Caller
	contracts map[domain.Variant]common.Address
	logger    *slog.Logger
}

// New creates a Fetcher. A variant whose contract address is the zero address
// is treated as not deployed and always reports ErrNotFound.
func New(caller Caller, challenge, offer common.Address, logger *slog.Logger) *Fetcher {
	contracts := make(map[domain.Variant]common.Address, 2)
	if challenge != (common.Address{}) {
		contracts[domain.VariantChallenge] = challenge
	}
	if offer != (common.Address{}) {
		contracts[domain.VariantOffer] = offer
	}
	return &Fetcher{
		caller:    caller,
		contracts: contracts,
		logger:    logger.With(slog.String("component", "fetcher")),
	}
}

// Snapshot fetches and normalizes one bet. The two read calls run
// concurrently; failure of either aborts the fetch with ErrFetch. A zero
// creator in the core tuple yields ErrNotFound.
func (f *Fetcher) Snapshot(ctx context.Context, variant domain.Variant, id uint64) (*domain.BetSnapshot, error) {
	contract, ok := f.contracts[variant]
	if !ok {
		return nil, fmt.Errorf("fetcher: %s contract not configured: %w", variant, domain.ErrNotFound)
	}

	var coreData, statusData []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := f.call(gctx, contract, variant, id, true)
		coreData = data
		return err
	})
	g.Go(func() error {
		data, err := f.call(gctx, contract, variant, id, false)
		statusData = data
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if variant == domain.VariantOffer {
		return normalizeOffer(id, coreData, statusData)
	}
	return normalizeChallenge(id, coreData, statusData)
}

// SnapshotEither tries both variants for a numeric id. Absence under one
// variant is not an error for the other; ErrNotFound is returned only when
// neither has a record, and a transport failure wins over absence so callers
// retry instead of concluding the bet does not exist.
func (f *Fetcher) SnapshotEither(ctx context.Context, id uint64) (*domain.BetSnapshot, error) {
	var fetchErr error
	for _, v := range domain.Variants {
		snap, err := f.Snapshot(ctx, v, id)
		switch {
		case err == nil:
			return snap, nil
		case errors.Is(err, domain.ErrNotFound):
			continue
		default:
			fetchErr = err
		}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return nil, fmt.Errorf("fetcher: bet #%d: %w", id, domain.ErrNotFound)
}

func (f *Fetcher) call(ctx context.Context, contract common.Address, variant domain.Variant, id uint64, core bool) ([]byte, error) {
	var (
		data []byte
		err  error
		name = "status"
	)
	if core {
		data, err = betabi.PackCore(variant, id)
		name = "core"
	} else {
		data, err = betabi.PackStatus(variant, id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetcher: pack %s %s: %w", variant, name, err)
	}

	out, err := f.caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("fetcher: call %s %s #%d: %v: %w", variant, name, id, err, domain.ErrFetch)
	}
	return out, nil
}

func normalizeChallenge(id uint64, coreData, statusData []byte) (*domain.BetSnapshot, error) {
	core, err := betabi.UnpackChallengeCore(coreData)
	if err != nil {
		return nil, err
	}
	if core.Challenger == (common.Address{}) {
		return nil, fmt.Errorf("fetcher: challenge #%d: %w", id, domain.ErrNotFound)
	}
	status, err := betabi.UnpackChallengeStatus(statusData)
	if err != nil {
		return nil, err
	}

	// A Challenge is symmetric: counterparty stake equals creator stake.
	return &domain.BetSnapshot{
		ID:                id,
		Variant:           domain.VariantChallenge,
		Creator:           normalizeAddr(core.Challenger),
		Counterparty:      normalizeAddr(core.Participant),
		CreatorStake:      new(big.Int).Set(core.StakeWei),
		CounterpartyStake: new(big.Int).Set(core.StakeWei),
		FeeBps:            core.FeeBps,
		JoinDeadline:      int64(core.JoinDeadline),
		ResolveDeadline:   int64(core.ResolveDeadline),
		CreatedAt:         int64(status.CreatedAt),
		PhaseRaw:          domain.PhaseRaw(status.State),
		CreatorVote:       domain.Vote(status.ChallengerVote),
		CounterpartyVote:  domain.Vote(status.ParticipantVote),
	}, nil
}

func normalizeOffer(id uint64, coreData, statusData []byte) (*domain.BetSnapshot, error) {
	core, err := betabi.UnpackOfferCore(coreData)
	if err != nil {
		return nil, err
	}
	if core.Creator == (common.Address{}) {
		return nil, fmt.Errorf("fetcher: offer #%d: %w", id, domain.ErrNotFound)
	}
	status, err := betabi.UnpackOfferStatus(statusData)
	if err != nil {
		return nil, err
	}

	return &domain.BetSnapshot{
		ID:                id,
		Variant:           domain.VariantOffer,
		Creator:           normalizeAddr(core.Creator),
		Counterparty:      normalizeAddr(core.Taker),
		CreatorStake:      new(big.Int).Set(core.CreatorStakeWei),
		CounterpartyStake: new(big.Int).Set(core.TakerStakeWei),
		CreatorSideYes:    core.CreatorSideYes,
		OddsBps:           core.PBps,
		JoinDeadline:      int64(status.JoinDeadline),
		ResolveDeadline:   int64(status.ResolveDeadline),
		CreatedAt:         int64(status.CreatedAt),
		PhaseRaw:          domain.PhaseRaw(status.State),
		CreatorVote:       domain.Vote(status.CreatorVote),
		CounterpartyVote:  domain.Vote(status.TakerVote),
		Paid:              status.Paid,
	}, nil
}

func normalizeAddr(addr common.Address) string {
	if addr == (common.Address{}) {
		return ""
	}
	return domain.NormalizeAddress(addr.Hex())
}
