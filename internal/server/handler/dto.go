package handler

import (
	"math/big"

	"github.com/duelcast/betwatch/internal/domain"
	"github.com/duelcast/betwatch/internal/lifecycle"
	"github.com/duelcast/betwatch/internal/service"
)

// betDTO is the JSON rendering of one bet. Wei amounts are decimal strings so
// uint256 values survive JavaScript number limits.
type betDTO struct {
	ID              uint64   `json:"id"`
	Variant         string   `json:"variant"`
	Creator         string   `json:"creator"`
	Counterparty    string   `json:"counterparty,omitempty"`
	CreatorStakeWei string   `json:"creator_stake_wei"`
	TakerStakeWei   string   `json:"taker_stake_wei,omitempty"`
	FeeBps          uint16   `json:"fee_bps,omitempty"`
	CreatorSideYes  bool     `json:"creator_side_yes,omitempty"`
	OddsBps         uint16   `json:"odds_bps,omitempty"`
	JoinDeadline    int64    `json:"join_deadline"`
	ResolveDeadline int64    `json:"resolve_deadline"`
	CreatedAt       int64    `json:"created_at"`
	Phase           string   `json:"phase"`
	Paid            bool     `json:"paid,omitempty"`
	Label           string   `json:"label,omitempty"`
	Actions         []string `json:"actions,omitempty"`
	RefundReason    string   `json:"refund_reason,omitempty"`
	Nudge           bool     `json:"nudge,omitempty"`
	Winner          string   `json:"winner,omitempty"`
	PayoutWei       string   `json:"payout_wei,omitempty"`
	Role            string   `json:"role,omitempty"`
}

func betViewDTO(v *service.BetView) betDTO {
	dto := snapshotDTO(v.Snapshot)
	dto.Label = v.Label
	dto.Phase = string(v.Phase)
	dto.Nudge = v.Nudge
	for _, a := range v.Actions {
		dto.Actions = append(dto.Actions, string(a.Kind))
		if a.Kind == lifecycle.ActionRefund {
			dto.RefundReason = string(a.Reason)
		}
	}
	return dto
}

func betEntryDTO(e domain.BetEntry) betDTO {
	dto := snapshotDTO(e.Snapshot)
	dto.Phase = string(lifecycle.PhaseOf(e.Snapshot.PhaseRaw))
	dto.Role = string(e.Role)
	dto.Winner = e.Winner
	if e.PayoutWei != nil && e.PayoutWei.Sign() > 0 {
		dto.PayoutWei = e.PayoutWei.String()
	}
	return dto
}

func snapshotDTO(s *domain.BetSnapshot) betDTO {
	return betDTO{
		ID:              s.ID,
		Variant:         string(s.Variant),
		Creator:         s.Creator,
		Counterparty:    s.Counterparty,
		CreatorStakeWei: weiString(s.CreatorStake),
		TakerStakeWei:   weiString(s.CounterpartyStake),
		FeeBps:          s.FeeBps,
		CreatorSideYes:  s.CreatorSideYes,
		OddsBps:         s.OddsBps,
		JoinDeadline:    s.JoinDeadline,
		ResolveDeadline: s.ResolveDeadline,
		CreatedAt:       s.CreatedAt,
		Paid:            s.Paid,
	}
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
