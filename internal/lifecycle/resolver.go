// Package lifecycle derives a bet's presentation phase, the set of valid
// user actions, and the vote-nudge condition from a snapshot. Resolve is a
// pure function: same snapshot, viewer, and clock always produce the same
// result, which is what makes the decision table exhaustively testable.
package lifecycle

import (
	"time"

	"github.com/duelcast/betwatch/internal/domain"
)

// Phase is the lifecycle stage shown to users. The mapping from the
// contract's raw state is direct and independent of wall-clock time.
type Phase string

const (
	PhaseAwaitingCounterparty Phase = "awaiting-counterparty"
	PhaseAwaitingVotes        Phase = "awaiting-votes"
	PhaseSettled              Phase = "settled"
	PhaseRefunded             Phase = "refunded"
)

// ActionKind is one user action the viewer may currently take.
type ActionKind string

const (
	ActionJoin    ActionKind = "join"
	ActionVote    ActionKind = "vote"
	ActionResolve ActionKind = "resolve"
	ActionRefund  ActionKind = "refund"
)

// RefundReason qualifies an ActionRefund entry.
type RefundReason string

const (
	RefundNoCounterparty  RefundReason = "no-counterparty"
	RefundVoteConflict    RefundReason = "vote-conflict"
	RefundDeadlineExpired RefundReason = "deadline-expired"
)

// Action is one valid action, with the refund reason when applicable.
type Action struct {
	Kind   ActionKind
	Reason RefundReason
}

// Resolution is the derived view of one bet for one viewer.
type Resolution struct {
	Phase   Phase
	Actions []Action
	// Nudge is true exactly when the viewer is a party, the viewer's own
	// vote is pending, and the counterparty's vote is cast: the other side
	// has moved, the viewer has not.
	Nudge bool
}

// Has reports whether the resolution contains an action of the given kind.
func (r Resolution) Has(kind ActionKind) bool {
	for _, a := range r.Actions {
		if a.Kind == kind {
			return true
		}
	}
	return false
}

// PhaseOf maps the contract's raw state to the presentation phase.
func PhaseOf(raw domain.PhaseRaw) Phase {
	switch raw {
	case domain.RawActive:
		return PhaseAwaitingVotes
	case domain.RawResolved:
		return PhaseSettled
	case domain.RawRefunded:
		return PhaseRefunded
	default:
		return PhaseAwaitingCounterparty
	}
}

// Resolve derives the phase, valid actions, and nudge flag for viewer at the
// given wall-clock instant. A deadline of zero is treated as not enforced.
// Both votes pending past the resolve deadline with neither party acting is a
// stuck state the protocol itself does not escape; it surfaces here as the
// deadline-expired refund row, and as an empty action set for non-parties.
func Resolve(snap *domain.BetSnapshot, viewer string, now time.Time) Resolution {
	res := Resolution{Phase: PhaseOf(snap.PhaseRaw)}
	viewer = domain.NormalizeAddress(viewer)
	ts := now.Unix()

	switch res.Phase {
	case PhaseAwaitingCounterparty:
		if snap.Joined() {
			// Contract invariant says Open implies unjoined; nothing valid
			// to offer if a read ever contradicts that.
			return res
		}
		expired := snap.JoinDeadline > 0 && ts >= snap.JoinDeadline
		switch {
		case !expired && viewer != "" && viewer != snap.Creator:
			res.Actions = append(res.Actions, Action{Kind: ActionJoin})
		case expired && viewer == snap.Creator:
			res.Actions = append(res.Actions, Action{Kind: ActionRefund, Reason: RefundNoCounterparty})
		}

	case PhaseAwaitingVotes:
		myVote, party := snap.VoteOf(viewer)
		if !party {
			return res
		}
		theirVote := snap.CreatorVote
		if viewer == snap.Creator {
			theirVote = snap.CounterpartyVote
		}

		bothCast := myVote.Cast() && theirVote.Cast()
		expired := snap.ResolveDeadline > 0 && ts >= snap.ResolveDeadline
		switch {
		case bothCast && myVote == theirVote:
			res.Actions = append(res.Actions, Action{Kind: ActionResolve})
		case bothCast:
			res.Actions = append(res.Actions, Action{Kind: ActionRefund, Reason: RefundVoteConflict})
		case expired:
			res.Actions = append(res.Actions, Action{Kind: ActionRefund, Reason: RefundDeadlineExpired})
		case !myVote.Cast():
			res.Actions = append(res.Actions, Action{Kind: ActionVote})
		}

		res.Nudge = !myVote.Cast() && theirVote.Cast()

	case PhaseSettled, PhaseRefunded:
		// Terminal: no valid actions.
	}

	return res
}
