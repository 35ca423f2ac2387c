package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/duelcast/betwatch/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache using Redis string keys with a
// TTL. It serves the user-facing lookup surface only; the watch session reads
// live chain state and never consults this cache.
type SnapshotCache struct {
	rdb *redis.Client
}

// NewSnapshotCache creates a SnapshotCache backed by the given Client.
func NewSnapshotCache(c *Client) *SnapshotCache {
	return &SnapshotCache{rdb: c.rdb}
}

func snapshotKey(network string, ref domain.BetRef) string {
	return key(fmt.Sprintf("bet:%s:%s:%d", network, ref.Variant, ref.ID))
}

// snapshotDTO is the wire form of a snapshot. Wei amounts are decimal strings
// so uint256 values survive the round trip.
type snapshotDTO struct {
	ID                uint64 `json:"id"`
	Variant           string `json:"variant"`
	Creator           string `json:"creator"`
	Counterparty      string `json:"counterparty,omitempty"`
	CreatorStake      string `json:"creator_stake_wei"`
	CounterpartyStake string `json:"counterparty_stake_wei,omitempty"`
	FeeBps            uint16 `json:"fee_bps,omitempty"`
	CreatorSideYes    bool   `json:"creator_side_yes,omitempty"`
	OddsBps           uint16 `json:"odds_bps,omitempty"`
	JoinDeadline      int64  `json:"join_deadline"`
	ResolveDeadline   int64  `json:"resolve_deadline"`
	CreatedAt         int64  `json:"created_at"`
	PhaseRaw          uint8  `json:"phase"`
	CreatorVote       int8   `json:"creator_vote"`
	CounterpartyVote  int8   `json:"counterparty_vote"`
	Paid              bool   `json:"paid,omitempty"`
}

// Set stores a snapshot under the given TTL.
func (sc *SnapshotCache) Set(ctx context.Context, network string, snap *domain.BetSnapshot, ttl time.Duration) error {
	if snap == nil {
		return nil
	}
	dto := snapshotDTO{
		ID:                snap.ID,
		Variant:           string(snap.Variant),
		Creator:           snap.Creator,
		Counterparty:      snap.Counterparty,
		CreatorStake:      weiString(snap.CreatorStake),
		CounterpartyStake: weiString(snap.CounterpartyStake),
		FeeBps:            snap.FeeBps,
		CreatorSideYes:    snap.CreatorSideYes,
		OddsBps:           snap.OddsBps,
		JoinDeadline:      snap.JoinDeadline,
		ResolveDeadline:   snap.ResolveDeadline,
		CreatedAt:         snap.CreatedAt,
		PhaseRaw:          uint8(snap.PhaseRaw),
		CreatorVote:       int8(snap.CreatorVote),
		CounterpartyVote:  int8(snap.CounterpartyVote),
		Paid:              snap.Paid,
	}
	data, err := json.Marshal(dto)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot %s: %w", snap.Ref(), err)
	}
	if err := sc.rdb.Set(ctx, snapshotKey(network, snap.Ref()), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.Ref(), err)
	}
	return nil
}

// Get retrieves a cached snapshot. It returns domain.ErrNotFound on a miss.
func (sc *SnapshotCache) Get(ctx context.Context, network string, ref domain.BetRef) (*domain.BetSnapshot, error) {
	data, err := sc.rdb.Get(ctx, snapshotKey(network, ref)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get snapshot %s: %w", ref, err)
	}

	var dto snapshotDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("redis: unmarshal snapshot %s: %w", ref, err)
	}

	creatorStake, err := parseWei(dto.CreatorStake)
	if err != nil {
		return nil, fmt.Errorf("redis: snapshot %s: %w", ref, err)
	}
	counterpartyStake, err := parseWei(dto.CounterpartyStake)
	if err != nil {
		return nil, fmt.Errorf("redis: snapshot %s: %w", ref, err)
	}

	return &domain.BetSnapshot{
		ID:                dto.ID,
		Variant:           domain.Variant(dto.Variant),
		Creator:           dto.Creator,
		Counterparty:      dto.Counterparty,
		CreatorStake:      creatorStake,
		CounterpartyStake: counterpartyStake,
		FeeBps:            dto.FeeBps,
		CreatorSideYes:    dto.CreatorSideYes,
		OddsBps:           dto.OddsBps,
		JoinDeadline:      dto.JoinDeadline,
		ResolveDeadline:   dto.ResolveDeadline,
		CreatedAt:         dto.CreatedAt,
		PhaseRaw:          domain.PhaseRaw(dto.PhaseRaw),
		CreatorVote:       domain.Vote(dto.CreatorVote),
		CounterpartyVote:  domain.Vote(dto.CounterpartyVote),
		Paid:              dto.Paid,
	}, nil
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseWei(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad wei amount %q", s)
	}
	return v, nil
}
