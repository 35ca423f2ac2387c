// Package betabi holds the parsed ABI surface of the two escrow contracts
// and typed helpers to pack calls and decode logs and return values.
package betabi

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/duelcast/betwatch/internal/domain"
)

// Method and event names, as exposed by the contracts.
const (
	MethodChallengeOpen    = "openChallenge"
	MethodChallengeJoin    = "joinChallenge"
	MethodChallengeVote    = "submitOutcomeVote"
	MethodChallengeResolve = "resolveChallenge"
	MethodChallengeRefund  = "issueRefund"
	MethodChallengeCore    = "getChallengeCore"
	MethodChallengeStatus  = "getChallengeStatus"

	MethodOfferOpen    = "openOffer"
	MethodOfferTake    = "takeOffer"
	MethodOfferVote    = "submitOfferVote"
	MethodOfferResolve = "resolveOffer"
	MethodOfferRefund  = "refundOffer"
	MethodOfferCore    = "getOfferCore"
	MethodOfferStatus  = "getOfferStatus"

	EventChallengeOpened   = "ChallengeOpened"
	EventChallengeResolved = "ChallengeResolved"
	EventOfferOpened       = "OfferOpened"
	EventOfferResolved     = "OfferResolved"
)

const challengeJSON = `[
  {"type":"function","name":"openChallenge","stateMutability":"payable","inputs":[
    {"name":"stakeWei","type":"uint256"},
    {"name":"feeBps","type":"uint16"},
    {"name":"joinWindowSeconds","type":"uint64"},
    {"name":"resolveWindowSeconds","type":"uint64"}],
   "outputs":[{"name":"challengeId","type":"uint256"}]},
  {"type":"function","name":"joinChallenge","stateMutability":"payable","inputs":[
    {"name":"challengeId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"submitOutcomeVote","stateMutability":"nonpayable","inputs":[
    {"name":"challengeId","type":"uint256"},
    {"name":"challengerWon","type":"bool"}],"outputs":[]},
  {"type":"function","name":"resolveChallenge","stateMutability":"nonpayable","inputs":[
    {"name":"challengeId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"issueRefund","stateMutability":"nonpayable","inputs":[
    {"name":"challengeId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getChallengeCore","stateMutability":"view","inputs":[
    {"name":"challengeId","type":"uint256"}],
   "outputs":[
    {"name":"challenger","type":"address"},
    {"name":"participant","type":"address"},
    {"name":"stakeWei","type":"uint256"},
    {"name":"feeBps","type":"uint16"},
    {"name":"joinDeadline","type":"uint64"},
    {"name":"resolveDeadline","type":"uint64"}]},
  {"type":"function","name":"getChallengeStatus","stateMutability":"view","inputs":[
    {"name":"challengeId","type":"uint256"}],
   "outputs":[
    {"name":"createdAt","type":"uint64"},
    {"name":"state","type":"uint8"},
    {"name":"challengerVote","type":"int8"},
    {"name":"participantVote","type":"int8"}]},
  {"type":"event","name":"ChallengeOpened","anonymous":false,"inputs":[
    {"name":"challengeId","type":"uint256","indexed":true},
    {"name":"challenger","type":"address","indexed":true},
    {"name":"stakeWei","type":"uint256","indexed":false},
    {"name":"joinDeadline","type":"uint64","indexed":false},
    {"name":"resolveDeadline","type":"uint64","indexed":false}]},
  {"type":"event","name":"ChallengeResolved","anonymous":false,"inputs":[
    {"name":"challengeId","type":"uint256","indexed":false},
    {"name":"winner","type":"address","indexed":false},
    {"name":"payoutWei","type":"uint256","indexed":false}]}
]`

const offerJSON = `[
  {"type":"function","name":"openOffer","stateMutability":"payable","inputs":[
    {"name":"creatorSideYes","type":"bool"},
    {"name":"pBps","type":"uint16"},
    {"name":"joinWindowSeconds","type":"uint64"},
    {"name":"resolveWindowSeconds","type":"uint64"}],
   "outputs":[{"name":"offerId","type":"uint256"}]},
  {"type":"function","name":"takeOffer","stateMutability":"payable","inputs":[
    {"name":"offerId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"submitOfferVote","stateMutability":"nonpayable","inputs":[
    {"name":"offerId","type":"uint256"},
    {"name":"outcomeYes","type":"bool"}],"outputs":[]},
  {"type":"function","name":"resolveOffer","stateMutability":"nonpayable","inputs":[
    {"name":"offerId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"refundOffer","stateMutability":"nonpayable","inputs":[
    {"name":"offerId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"getOfferCore","stateMutability":"view","inputs":[
    {"name":"offerId","type":"uint256"}],
   "outputs":[
    {"name":"creator","type":"address"},
    {"name":"taker","type":"address"},
    {"name":"creatorSideYes","type":"bool"},
    {"name":"pBps","type":"uint16"},
    {"name":"creatorStakeWei","type":"uint256"},
    {"name":"takerStakeWei","type":"uint256"}]},
  {"type":"function","name":"getOfferStatus","stateMutability":"view","inputs":[
    {"name":"offerId","type":"uint256"}],
   "outputs":[
    {"name":"joinDeadline","type":"uint64"},
    {"name":"resolveDeadline","type":"uint64"},
    {"name":"createdAt","type":"uint64"},
    {"name":"state","type":"uint8"},
    {"name":"creatorVote","type":"int8"},
    {"name":"takerVote","type":"int8"},
    {"name":"paid","type":"bool"}]},
  {"type":"event","name":"OfferOpened","anonymous":false,"inputs":[
    {"name":"offerId","type":"uint256","indexed":true},
    {"name":"creator","type":"address","indexed":true},
    {"name":"creatorSideYes","type":"bool","indexed":false},
    {"name":"pBps","type":"uint16","indexed":false},
    {"name":"creatorStakeWei","type":"uint256","indexed":false},
    {"name":"takerStakeWei","type":"uint256","indexed":false},
    {"name":"joinDeadline","type":"uint64","indexed":false},
    {"name":"resolveDeadline","type":"uint64","indexed":false}]},
  {"type":"event","name":"OfferResolved","anonymous":false,"inputs":[
    {"name":"offerId","type":"uint256","indexed":false},
    {"name":"winner","type":"address","indexed":false},
    {"name":"payoutWei","type":"uint256","indexed":false}]}
]`

// ChallengeABI and OfferABI are the parsed contract interfaces.
var (
	ChallengeABI = mustParse(challengeJSON)
	OfferABI     = mustParse(offerJSON)
)

func mustParse(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic("betabi: " + err.Error())
	}
	return parsed
}

// ABIFor returns the parsed ABI for a variant.
func ABIFor(v domain.Variant) abi.ABI {
	if v == domain.VariantOffer {
		return OfferABI
	}
	return ChallengeABI
}

// OpenedTopic returns the topic hash of the variant's opened event.
func OpenedTopic(v domain.Variant) common.Hash {
	if v == domain.VariantOffer {
		return OfferABI.Events[EventOfferOpened].ID
	}
	return ChallengeABI.Events[EventChallengeOpened].ID
}

// ResolvedTopic returns the topic hash of the variant's resolved event.
func ResolvedTopic(v domain.Variant) common.Hash {
	if v == domain.VariantOffer {
		return OfferABI.Events[EventOfferResolved].ID
	}
	return ChallengeABI.Events[EventChallengeResolved].ID
}

// AddressTopic left-pads an address into topic form for indexed-argument
// filters.
func AddressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
