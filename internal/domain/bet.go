package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// Variant distinguishes the two escrow contract flavours. A Challenge #3 and
// an Offer #3 are distinct bets; ids are only unique within a variant.
type Variant string

const (
	// VariantChallenge is the symmetric-stake bet with a shared binary
	// "who won" vote.
	VariantChallenge Variant = "challenge"
	// VariantOffer is the asymmetric-stake bet whose stakes derive from a
	// creator-chosen implied probability, voted YES/NO.
	VariantOffer Variant = "offer"
)

// Variants lists both contract variants in scan order.
var Variants = []Variant{VariantChallenge, VariantOffer}

// Vote is the tri-state outcome vote as stored by the contract. For a
// Challenge, SideA means "challenger won"; for an Offer, SideA means YES.
type Vote int8

const (
	VotePending Vote = 0
	VoteSideA   Vote = 1
	VoteSideB   Vote = 2
)

// Cast reports whether the vote has been submitted.
func (v Vote) Cast() bool { return v != VotePending }

// PhaseRaw is the contract's own lifecycle state, read verbatim. Both
// variants share the same encoding (the Offer contract calls state 1
// "Filled" rather than "Active", but the numeric value is identical).
type PhaseRaw uint8

const (
	RawOpen     PhaseRaw = 0
	RawActive   PhaseRaw = 1
	RawResolved PhaseRaw = 2
	RawRefunded PhaseRaw = 3
)

// Terminal reports whether the contract will accept no further transitions.
func (p PhaseRaw) Terminal() bool { return p == RawResolved || p == RawRefunded }

// BetRef identifies one bet across both variants.
type BetRef struct {
	Variant Variant
	ID      uint64
}

func (r BetRef) String() string { return fmt.Sprintf("%s#%d", r.Variant, r.ID) }

// BetSnapshot is the normalized, point-in-time view of one bet's on-chain
// fields, assembled from the contract's core and status read calls. It is
// immutable once constructed: a state change is always represented by a fresh
// fetch, never by mutating an existing snapshot.
type BetSnapshot struct {
	ID      uint64
	Variant Variant

	// Creator and Counterparty are lowercase hex addresses. Counterparty is
	// empty until the bet has been joined.
	Creator      string
	Counterparty string

	// Stakes in wei. For a Challenge the counterparty stake equals the
	// creator stake; for an Offer it derives from the implied probability.
	CreatorStake      *big.Int
	CounterpartyStake *big.Int

	FeeBps uint16

	// Offer-only fields. CreatorSideYes records which side of the YES/NO
	// question the creator holds; OddsBps is the implied probability in
	// basis points.
	CreatorSideYes bool
	OddsBps        uint16

	// Unix seconds. Zero means no deadline enforced yet / not applicable.
	JoinDeadline    int64
	ResolveDeadline int64

	// CreatedAt is used for sort order and tie-breaking only.
	CreatedAt int64

	PhaseRaw PhaseRaw

	CreatorVote      Vote
	CounterpartyVote Vote

	// Paid is Offer-only: true once the payout transfer has happened.
	Paid bool
}

// Ref returns the (variant, id) identity of the snapshot.
func (s *BetSnapshot) Ref() BetRef { return BetRef{Variant: s.Variant, ID: s.ID} }

// Joined reports whether a counterparty has taken the bet.
func (s *BetSnapshot) Joined() bool { return s.Counterparty != "" }

// IsParty reports whether addr is the creator or the counterparty.
func (s *BetSnapshot) IsParty(addr string) bool {
	a := NormalizeAddress(addr)
	return a != "" && (a == s.Creator || a == s.Counterparty)
}

// VoteOf returns the vote belonging to addr, and whether addr is a party.
func (s *BetSnapshot) VoteOf(addr string) (Vote, bool) {
	switch NormalizeAddress(addr) {
	case "":
		return VotePending, false
	case s.Creator:
		return s.CreatorVote, true
	case s.Counterparty:
		return s.CounterpartyVote, true
	}
	return VotePending, false
}

// Equal reports field-for-field equality. Two back-to-back fetches of an
// untouched bet must compare equal.
func (s *BetSnapshot) Equal(o *BetSnapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.ID == o.ID &&
		s.Variant == o.Variant &&
		s.Creator == o.Creator &&
		s.Counterparty == o.Counterparty &&
		bigEqual(s.CreatorStake, o.CreatorStake) &&
		bigEqual(s.CounterpartyStake, o.CounterpartyStake) &&
		s.FeeBps == o.FeeBps &&
		s.CreatorSideYes == o.CreatorSideYes &&
		s.OddsBps == o.OddsBps &&
		s.JoinDeadline == o.JoinDeadline &&
		s.ResolveDeadline == o.ResolveDeadline &&
		s.CreatedAt == o.CreatedAt &&
		s.PhaseRaw == o.PhaseRaw &&
		s.CreatorVote == o.CreatorVote &&
		s.CounterpartyVote == o.CounterpartyVote &&
		s.Paid == o.Paid
}

func bigEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

// NormalizeAddress lowercases a hex address so snapshots and viewer addresses
// compare bytewise. The empty string passes through.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
