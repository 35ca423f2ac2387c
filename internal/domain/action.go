package domain

import "math/big"

// ActionKind enumerates the contract-mutating calls a user can dispatch.
type ActionKind string

const (
	ActionOpen    ActionKind = "open"
	ActionJoin    ActionKind = "join"
	ActionVote    ActionKind = "vote"
	ActionResolve ActionKind = "resolve"
	ActionRefund  ActionKind = "refund"
)

// OpenParams carries the creation arguments for ActionOpen. StakeWei is the
// creator's stake and is attached as the transaction value. The Offer-only
// fields select the creator's side and the implied probability.
type OpenParams struct {
	StakeWei       *big.Int
	FeeBps         uint16
	CreatorSideYes bool
	OddsBps        uint16
	JoinWindowSec  uint64
	ResolveWinSec  uint64
}

// ActionRequest is a confirmed user intent to mutate one bet. The caller is
// expected to have shown the user a gas estimate before dispatching.
type ActionRequest struct {
	Kind    ActionKind
	Variant Variant
	BetID   uint64

	// Stake is the value attached for join/take, i.e. the counterparty
	// stake read from the bet's snapshot.
	Stake *big.Int

	// VoteYes carries the vote payload: for an Offer, the YES/NO outcome;
	// for a Challenge, whether the challenger won.
	VoteYes bool

	// Open is set for ActionOpen only.
	Open *OpenParams
}

// ActionReceipt is the confirmed outcome of a dispatched action. Snapshot is
// the post-confirmation re-fetch of the affected bet, so callers reconcile
// with on-chain truth instead of assuming the optimistic result.
type ActionReceipt struct {
	TxHash      string
	BlockNumber uint64
	GasUsed     uint64
	BetID       uint64
	Snapshot    *BetSnapshot
}
