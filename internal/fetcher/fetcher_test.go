package fetcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelcast/betwatch/internal/chain/betabi"
	"github.com/duelcast/betwatch/internal/domain"
)

var (
	challengeAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	offerAddr     = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	alice         = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob           = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// fakeCaller routes calls by contract address and calldata selector. Returns
// for unknown calls come from the fallback error.
type fakeCaller struct {
	mu      sync.Mutex
	returns map[string][]byte
	errs    map[string]error
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{returns: map[string][]byte{}, errs: map[string]error{}}
}

func callKey(to common.Address, selector []byte) string {
	return to.Hex() + "/" + common.Bytes2Hex(selector)
}

func (c *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := callKey(*msg.To, msg.Data[:4])
	if err := c.errs[key]; err != nil {
		return nil, err
	}
	out, ok := c.returns[key]
	if !ok {
		return nil, errors.New("unexpected call")
	}
	return out, nil
}

func (c *fakeCaller) stubChallenge(t *testing.T, core betabi.ChallengeCore, status betabi.ChallengeStatus) {
	t.Helper()
	coreData, err := betabi.ChallengeABI.Methods[betabi.MethodChallengeCore].Outputs.Pack(
		core.Challenger, core.Participant, orZero(core.StakeWei), core.FeeBps,
		core.JoinDeadline, core.ResolveDeadline,
	)
	require.NoError(t, err)
	statusData, err := betabi.ChallengeABI.Methods[betabi.MethodChallengeStatus].Outputs.Pack(
		status.CreatedAt, status.State, status.ChallengerVote, status.ParticipantVote,
	)
	require.NoError(t, err)
	c.returns[callKey(challengeAddr, betabi.ChallengeABI.Methods[betabi.MethodChallengeCore].ID)] = coreData
	c.returns[callKey(challengeAddr, betabi.ChallengeABI.Methods[betabi.MethodChallengeStatus].ID)] = statusData
}

func (c *fakeCaller) stubOffer(t *testing.T, core betabi.OfferCore, status betabi.OfferStatus) {
	t.Helper()
	coreData, err := betabi.OfferABI.Methods[betabi.MethodOfferCore].Outputs.Pack(
		core.Creator, core.Taker, core.CreatorSideYes, core.PBps,
		orZero(core.CreatorStakeWei), orZero(core.TakerStakeWei),
	)
	require.NoError(t, err)
	statusData, err := betabi.OfferABI.Methods[betabi.MethodOfferStatus].Outputs.Pack(
		status.JoinDeadline, status.ResolveDeadline, status.CreatedAt,
		status.State, status.CreatorVote, status.TakerVote, status.Paid,
	)
	require.NoError(t, err)
	c.returns[callKey(offerAddr, betabi.OfferABI.Methods[betabi.MethodOfferCore].ID)] = coreData
	c.returns[callKey(offerAddr, betabi.OfferABI.Methods[betabi.MethodOfferStatus].ID)] = statusData
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSnapshotChallenge(t *testing.T) {
	caller := newFakeCaller()
	caller.stubChallenge(t,
		betabi.ChallengeCore{
			Challenger:      alice,
			Participant:     bob,
			StakeWei:        big.NewInt(1_000_000),
			FeeBps:          100,
			JoinDeadline:    1000,
			ResolveDeadline: 2000,
		},
		betabi.ChallengeStatus{CreatedAt: 500, State: 1, ChallengerVote: 1, ParticipantVote: 0},
	)
	f := New(caller, challengeAddr, offerAddr, discardLogger())

	snap, err := f.Snapshot(context.Background(), domain.VariantChallenge, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), snap.ID)
	assert.Equal(t, domain.VariantChallenge, snap.Variant)
	assert.Equal(t, domain.NormalizeAddress(alice.Hex()), snap.Creator)
	assert.Equal(t, domain.NormalizeAddress(bob.Hex()), snap.Counterparty)
	assert.Equal(t, big.NewInt(1_000_000), snap.CreatorStake)
	// Challenges are symmetric.
	assert.Equal(t, snap.CreatorStake, snap.CounterpartyStake)
	assert.Equal(t, uint16(100), snap.FeeBps)
	assert.Equal(t, int64(1000), snap.JoinDeadline)
	assert.Equal(t, int64(2000), snap.ResolveDeadline)
	assert.Equal(t, int64(500), snap.CreatedAt)
	assert.Equal(t, domain.RawActive, snap.PhaseRaw)
	assert.Equal(t, domain.VoteSideA, snap.CreatorVote)
	assert.Equal(t, domain.VotePending, snap.CounterpartyVote)
}

func TestSnapshotOffer(t *testing.T) {
	caller := newFakeCaller()
	caller.stubOffer(t,
		betabi.OfferCore{
			Creator:         alice,
			CreatorSideYes:  true,
			PBps:            2000,
			CreatorStakeWei: big.NewInt(1000),
			TakerStakeWei:   big.NewInt(250),
		},
		betabi.OfferStatus{JoinDeadline: 1000, ResolveDeadline: 2000, CreatedAt: 500, State: 0},
	)
	f := New(caller, challengeAddr, offerAddr, discardLogger())

	snap, err := f.Snapshot(context.Background(), domain.VariantOffer, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.VariantOffer, snap.Variant)
	assert.True(t, snap.CreatorSideYes)
	assert.Equal(t, uint16(2000), snap.OddsBps)
	assert.Equal(t, big.NewInt(1000), snap.CreatorStake)
	assert.Equal(t, big.NewInt(250), snap.CounterpartyStake)
	assert.Empty(t, snap.Counterparty)
	assert.False(t, snap.Joined())
	assert.False(t, snap.Paid)
	assert.Equal(t, domain.RawOpen, snap.PhaseRaw)
}

func TestSnapshotZeroCreatorIsNotFound(t *testing.T) {
	caller := newFakeCaller()
	caller.stubChallenge(t, betabi.ChallengeCore{}, betabi.ChallengeStatus{})
	f := New(caller, challengeAddr, offerAddr, discardLogger())

	_, err := f.Snapshot(context.Background(), domain.VariantChallenge, 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrFetch)
}

func TestSnapshotTransportErrorIsFetch(t *testing.T) {
	caller := newFakeCaller()
	caller.stubChallenge(t,
		betabi.ChallengeCore{Challenger: alice, StakeWei: big.NewInt(1)},
		betabi.ChallengeStatus{},
	)
	caller.errs[callKey(challengeAddr, betabi.ChallengeABI.Methods[betabi.MethodChallengeStatus].ID)] = errors.New("connection reset")
	f := New(caller, challengeAddr, offerAddr, discardLogger())

	_, err := f.Snapshot(context.Background(), domain.VariantChallenge, 7)
	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestSnapshotUnconfiguredVariant(t *testing.T) {
	caller := newFakeCaller()
	f := New(caller, challengeAddr, common.Address{}, discardLogger())

	_, err := f.Snapshot(context.Background(), domain.VariantOffer, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotEither(t *testing.T) {
	t.Run("falls through to the offer variant", func(t *testing.T) {
		caller := newFakeCaller()
		caller.stubChallenge(t, betabi.ChallengeCore{}, betabi.ChallengeStatus{})
		caller.stubOffer(t,
			betabi.OfferCore{Creator: alice, PBps: 5000, CreatorStakeWei: big.NewInt(10), TakerStakeWei: big.NewInt(10)},
			betabi.OfferStatus{State: 0},
		)
		f := New(caller, challengeAddr, offerAddr, discardLogger())

		snap, err := f.SnapshotEither(context.Background(), 9)
		require.NoError(t, err)
		assert.Equal(t, domain.VariantOffer, snap.Variant)
	})

	t.Run("absent under both variants", func(t *testing.T) {
		caller := newFakeCaller()
		caller.stubChallenge(t, betabi.ChallengeCore{}, betabi.ChallengeStatus{})
		caller.stubOffer(t, betabi.OfferCore{}, betabi.OfferStatus{})
		f := New(caller, challengeAddr, offerAddr, discardLogger())

		_, err := f.SnapshotEither(context.Background(), 9)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("transport failure wins over absence", func(t *testing.T) {
		caller := newFakeCaller()
		caller.stubChallenge(t, betabi.ChallengeCore{}, betabi.ChallengeStatus{})
		caller.errs[callKey(offerAddr, betabi.OfferABI.Methods[betabi.MethodOfferCore].ID)] = errors.New("timeout")
		caller.errs[callKey(offerAddr, betabi.OfferABI.Methods[betabi.MethodOfferStatus].ID)] = errors.New("timeout")
		f := New(caller, challengeAddr, offerAddr, discardLogger())

		_, err := f.SnapshotEither(context.Background(), 9)
		assert.ErrorIs(t, err, domain.ErrFetch)
	})
}
