package lifecycle

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelcast/betwatch/internal/domain"
)

const (
	creator      = "0x1111111111111111111111111111111111111111"
	counterparty = "0x2222222222222222222222222222222222222222"
	observer     = "0x3333333333333333333333333333333333333333"
)

var now = time.Unix(1_700_000_000, 0)

func openBet(joinDeadline int64) *domain.BetSnapshot {
	return &domain.BetSnapshot{
		ID:           7,
		Variant:      domain.VariantChallenge,
		Creator:      creator,
		CreatorStake: big.NewInt(1e15),
		JoinDeadline: joinDeadline,
		PhaseRaw:     domain.RawOpen,
	}
}

func activeBet(creatorVote, counterpartyVote domain.Vote, resolveDeadline int64) *domain.BetSnapshot {
	return &domain.BetSnapshot{
		ID:                7,
		Variant:           domain.VariantChallenge,
		Creator:           creator,
		Counterparty:      counterparty,
		CreatorStake:      big.NewInt(1e15),
		CounterpartyStake: big.NewInt(1e15),
		ResolveDeadline:   resolveDeadline,
		PhaseRaw:          domain.RawActive,
		CreatorVote:       creatorVote,
		CounterpartyVote:  counterpartyVote,
	}
}

func TestPhaseOf(t *testing.T) {
	assert.Equal(t, PhaseAwaitingCounterparty, PhaseOf(domain.RawOpen))
	assert.Equal(t, PhaseAwaitingVotes, PhaseOf(domain.RawActive))
	assert.Equal(t, PhaseSettled, PhaseOf(domain.RawResolved))
	assert.Equal(t, PhaseRefunded, PhaseOf(domain.RawRefunded))
}

func TestResolveOpenBet(t *testing.T) {
	future := now.Unix() + 3600
	past := now.Unix() - 3600

	t.Run("stranger can join before the deadline", func(t *testing.T) {
		res := Resolve(openBet(future), observer, now)
		assert.Equal(t, PhaseAwaitingCounterparty, res.Phase)
		require.Len(t, res.Actions, 1)
		assert.Equal(t, ActionJoin, res.Actions[0].Kind)
		assert.False(t, res.Nudge)
	})

	t.Run("creator cannot join their own bet", func(t *testing.T) {
		res := Resolve(openBet(future), creator, now)
		assert.Empty(t, res.Actions)
	})

	t.Run("anonymous viewer sees no actions", func(t *testing.T) {
		res := Resolve(openBet(future), "", now)
		assert.Empty(t, res.Actions)
	})

	t.Run("creator can refund after the join deadline", func(t *testing.T) {
		res := Resolve(openBet(past), creator, now)
		require.Len(t, res.Actions, 1)
		assert.Equal(t, ActionRefund, res.Actions[0].Kind)
		assert.Equal(t, RefundNoCounterparty, res.Actions[0].Reason)
	})

	t.Run("stranger cannot join after the join deadline", func(t *testing.T) {
		res := Resolve(openBet(past), observer, now)
		assert.Empty(t, res.Actions)
	})

	t.Run("viewer address comparison is case insensitive", func(t *testing.T) {
		res := Resolve(openBet(past), "0x1111111111111111111111111111111111111111", now)
		require.Len(t, res.Actions, 1)
		upper := Resolve(openBet(past), "0X1111111111111111111111111111111111111111", now)
		assert.Equal(t, res, upper)
	})
}

func TestResolveActiveBet(t *testing.T) {
	future := now.Unix() + 3600
	past := now.Unix() - 3600

	t.Run("own vote pending offers vote", func(t *testing.T) {
		res := Resolve(activeBet(domain.VotePending, domain.VotePending, future), creator, now)
		assert.Equal(t, PhaseAwaitingVotes, res.Phase)
		require.Len(t, res.Actions, 1)
		assert.Equal(t, ActionVote, res.Actions[0].Kind)
		assert.False(t, res.Nudge)
	})

	t.Run("nudge when only the other side has voted", func(t *testing.T) {
		res := Resolve(activeBet(domain.VotePending, domain.VoteSideA, future), creator, now)
		assert.True(t, res.Nudge)
		assert.True(t, res.Has(ActionVote))
	})

	t.Run("no nudge once own vote is cast", func(t *testing.T) {
		res := Resolve(activeBet(domain.VoteSideA, domain.VotePending, future), creator, now)
		assert.False(t, res.Nudge)
		assert.Empty(t, res.Actions)
	})

	t.Run("agreeing votes offer resolve", func(t *testing.T) {
		res := Resolve(activeBet(domain.VoteSideA, domain.VoteSideA, future), creator, now)
		require.Len(t, res.Actions, 1)
		assert.Equal(t, ActionResolve, res.Actions[0].Kind)
		assert.False(t, res.Nudge)
	})

	t.Run("conflicting votes offer refund", func(t *testing.T) {
		res := Resolve(activeBet(domain.VoteSideA, domain.VoteSideB, future), counterparty, now)
		require.Len(t, res.Actions, 1)
		assert.Equal(t, ActionRefund, res.Actions[0].Kind)
		assert.Equal(t, RefundVoteConflict, res.Actions[0].Reason)
	})

	t.Run("both pending past the resolve deadline offers refund", func(t *testing.T) {
		for _, viewer := range []string{creator, counterparty} {
			res := Resolve(activeBet(domain.VotePending, domain.VotePending, past), viewer, now)
			require.Len(t, res.Actions, 1)
			assert.Equal(t, ActionRefund, res.Actions[0].Kind)
			assert.Equal(t, RefundDeadlineExpired, res.Actions[0].Reason)
		}
	})

	t.Run("observer sees no actions in any vote state", func(t *testing.T) {
		votes := []domain.Vote{domain.VotePending, domain.VoteSideA, domain.VoteSideB}
		for _, cv := range votes {
			for _, pv := range votes {
				res := Resolve(activeBet(cv, pv, future), observer, now)
				assert.Empty(t, res.Actions)
				assert.False(t, res.Nudge)
			}
		}
	})

	t.Run("at most one primary action in every state", func(t *testing.T) {
		votes := []domain.Vote{domain.VotePending, domain.VoteSideA, domain.VoteSideB}
		deadlines := []int64{0, future, past}
		viewers := []string{creator, counterparty, observer, ""}
		for _, cv := range votes {
			for _, pv := range votes {
				for _, dl := range deadlines {
					for _, viewer := range viewers {
						res := Resolve(activeBet(cv, pv, dl), viewer, now)
						assert.LessOrEqual(t, len(res.Actions), 1,
							"votes %d/%d deadline %d viewer %s", cv, pv, dl, viewer)
					}
				}
			}
		}
	})

	t.Run("zero deadline never expires", func(t *testing.T) {
		res := Resolve(activeBet(domain.VotePending, domain.VotePending, 0), creator, now)
		require.Len(t, res.Actions, 1)
		assert.Equal(t, ActionVote, res.Actions[0].Kind)
	})
}

func TestResolveActiveOfferAgreement(t *testing.T) {
	snap := &domain.BetSnapshot{
		ID:                3,
		Variant:           domain.VariantOffer,
		Creator:           creator,
		Counterparty:      counterparty,
		CreatorStake:      big.NewInt(2e15),
		CounterpartyStake: big.NewInt(5e14),
		CreatorSideYes:    true,
		OddsBps:           2000,
		ResolveDeadline:   now.Unix() + 3600,
		PhaseRaw:          domain.RawActive,
		CreatorVote:       domain.VoteSideA,
		CounterpartyVote:  domain.VoteSideA,
	}

	// Both sides voted YES, so creator and taker each get the resolve action.
	for _, viewer := range []string{creator, counterparty} {
		res := Resolve(snap, viewer, now)
		assert.Equal(t, PhaseAwaitingVotes, res.Phase)
		require.Len(t, res.Actions, 1)
		assert.Equal(t, ActionResolve, res.Actions[0].Kind)
		assert.False(t, res.Nudge)
	}
}

func TestResolveTerminalPhases(t *testing.T) {
	for _, raw := range []domain.PhaseRaw{domain.RawResolved, domain.RawRefunded} {
		snap := activeBet(domain.VoteSideA, domain.VoteSideA, now.Unix()-10)
		snap.PhaseRaw = raw
		for _, viewer := range []string{creator, counterparty, observer} {
			res := Resolve(snap, viewer, now)
			assert.Empty(t, res.Actions)
			assert.False(t, res.Nudge)
		}
	}
}

func TestResolveDeterministic(t *testing.T) {
	snap := activeBet(domain.VotePending, domain.VoteSideA, now.Unix()+3600)
	first := Resolve(snap, creator, now)
	second := Resolve(snap, creator, now)
	assert.Equal(t, first, second)
}

func TestResolveOpenButJoinedContradiction(t *testing.T) {
	snap := openBet(now.Unix() + 3600)
	snap.Counterparty = counterparty
	res := Resolve(snap, observer, now)
	assert.Empty(t, res.Actions)
}
