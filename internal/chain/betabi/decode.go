package betabi

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/duelcast/betwatch/internal/domain"
)

// OpenedEvent is a decoded *Opened log. Only the indexed fields matter to
// discovery: the live-read snapshot is authoritative for everything else.
type OpenedEvent struct {
	Variant     domain.Variant
	ID          uint64
	Creator     common.Address
	BlockNumber uint64
	TxHash      common.Hash
}

// ResolvedEvent is a decoded *Resolved log.
type ResolvedEvent struct {
	Variant     domain.Variant
	ID          uint64
	Winner      common.Address
	PayoutWei   *big.Int
	BlockNumber uint64
	TxHash      common.Hash
}

// DecodeOpened decodes an opened log for the given variant. A log whose
// topics do not match the expected signature yields domain.ErrDecode; callers
// drop such logs and continue (a topic collision can match an unrelated
// event).
func DecodeOpened(v domain.Variant, lg types.Log) (OpenedEvent, error) {
	if len(lg.Topics) < 3 || lg.Topics[0] != OpenedTopic(v) {
		return OpenedEvent{}, fmt.Errorf("betabi: %s opened log topics mismatch: %w", v, domain.ErrDecode)
	}
	id := new(big.Int).SetBytes(lg.Topics[1].Bytes())
	if !id.IsUint64() {
		return OpenedEvent{}, fmt.Errorf("betabi: %s opened id overflows uint64: %w", v, domain.ErrDecode)
	}
	return OpenedEvent{
		Variant:     v,
		ID:          id.Uint64(),
		Creator:     common.BytesToAddress(lg.Topics[2].Bytes()),
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
	}, nil
}

// DecodeResolved decodes a resolved log for the given variant. The id is not
// indexed on resolution, so all fields come from the data segment.
func DecodeResolved(v domain.Variant, lg types.Log) (ResolvedEvent, error) {
	if len(lg.Topics) < 1 || lg.Topics[0] != ResolvedTopic(v) {
		return ResolvedEvent{}, fmt.Errorf("betabi: %s resolved log topics mismatch: %w", v, domain.ErrDecode)
	}

	name := EventChallengeResolved
	if v == domain.VariantOffer {
		name = EventOfferResolved
	}

	var out struct {
		ChallengeId *big.Int
		OfferId     *big.Int
		Winner      common.Address
		PayoutWei   *big.Int
	}
	if err := ABIFor(v).UnpackIntoInterface(&out, name, lg.Data); err != nil {
		return ResolvedEvent{}, fmt.Errorf("betabi: unpack %s: %v: %w", name, err, domain.ErrDecode)
	}

	id := out.ChallengeId
	if v == domain.VariantOffer {
		id = out.OfferId
	}
	if id == nil || !id.IsUint64() {
		return ResolvedEvent{}, fmt.Errorf("betabi: %s resolved id out of range: %w", v, domain.ErrDecode)
	}
	return ResolvedEvent{
		Variant:     v,
		ID:          id.Uint64(),
		Winner:      out.Winner,
		PayoutWei:   out.PayoutWei,
		BlockNumber: lg.BlockNumber,
		TxHash:      lg.TxHash,
	}, nil
}

// ChallengeCore mirrors the getChallengeCore return tuple.
type ChallengeCore struct {
	Challenger      common.Address
	Participant     common.Address
	StakeWei        *big.Int
	FeeBps          uint16
	JoinDeadline    uint64
	ResolveDeadline uint64
}

// ChallengeStatus mirrors the getChallengeStatus return tuple.
type ChallengeStatus struct {
	CreatedAt       uint64
	State           uint8
	ChallengerVote  int8
	ParticipantVote int8
}

// OfferCore mirrors the getOfferCore return tuple.
type OfferCore struct {
	Creator         common.Address
	Taker           common.Address
	CreatorSideYes  bool
	PBps            uint16
	CreatorStakeWei *big.Int
	TakerStakeWei   *big.Int
}

// OfferStatus mirrors the getOfferStatus return tuple.
type OfferStatus struct {
	JoinDeadline    uint64
	ResolveDeadline uint64
	CreatedAt       uint64
	State           uint8
	CreatorVote     int8
	TakerVote       int8
	Paid            bool
}

// PackCore builds the calldata for the variant's core read call.
func PackCore(v domain.Variant, id uint64) ([]byte, error) {
	if v == domain.VariantOffer {
		return OfferABI.Pack(MethodOfferCore, new(big.Int).SetUint64(id))
	}
	return ChallengeABI.Pack(MethodChallengeCore, new(big.Int).SetUint64(id))
}

// PackStatus builds the calldata for the variant's status read call.
func PackStatus(v domain.Variant, id uint64) ([]byte, error) {
	if v == domain.VariantOffer {
		return OfferABI.Pack(MethodOfferStatus, new(big.Int).SetUint64(id))
	}
	return ChallengeABI.Pack(MethodChallengeStatus, new(big.Int).SetUint64(id))
}

// UnpackChallengeCore decodes a getChallengeCore return value.
func UnpackChallengeCore(data []byte) (ChallengeCore, error) {
	var out ChallengeCore
	if err := ChallengeABI.UnpackIntoInterface(&out, MethodChallengeCore, data); err != nil {
		return ChallengeCore{}, fmt.Errorf("betabi: unpack %s: %v: %w", MethodChallengeCore, err, domain.ErrDecode)
	}
	return out, nil
}

// UnpackChallengeStatus decodes a getChallengeStatus return value.
func UnpackChallengeStatus(data []byte) (ChallengeStatus, error) {
	var out ChallengeStatus
	if err := ChallengeABI.UnpackIntoInterface(&out, MethodChallengeStatus, data); err != nil {
		return ChallengeStatus{}, fmt.Errorf("betabi: unpack %s: %v: %w", MethodChallengeStatus, err, domain.ErrDecode)
	}
	return out, nil
}

// UnpackOfferCore decodes a getOfferCore return value.
func UnpackOfferCore(data []byte) (OfferCore, error) {
	var out OfferCore
	if err := OfferABI.UnpackIntoInterface(&out, MethodOfferCore, data); err != nil {
		return OfferCore{}, fmt.Errorf("betabi: unpack %s: %v: %w", MethodOfferCore, err, domain.ErrDecode)
	}
	return out, nil
}

// UnpackOfferStatus decodes a getOfferStatus return value.
func UnpackOfferStatus(data []byte) (OfferStatus, error) {
	var out OfferStatus
	if err := OfferABI.UnpackIntoInterface(&out, MethodOfferStatus, data); err != nil {
		return OfferStatus{}, fmt.Errorf("betabi: unpack %s: %v: %w", MethodOfferStatus, err, domain.ErrDecode)
	}
	return out, nil
}
