// Package scanner walks the event-log history to enumerate every bet an
// address created or joined. Events are discovery hints only; each hit is
// confirmed with a live read, which stays authoritative for phase and votes.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/duelcast/betwatch/internal/chain"
	"github.com/duelcast/betwatch/internal/chain/betabi"
	"github.com/duelcast/betwatch/internal/domain"
)

// HeadReader reports the current chain head. *chain.Client satisfies it.
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// LogFetcher fetches logs across a bounded window. *chain.LogReader
// satisfies it.
type LogFetcher interface {
	Fetch(ctx context.Context, q chain.Query) ([]types.Log, error)
}

// SnapshotFetcher confirms a discovered id with a live read.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, variant domain.Variant, id uint64) (*domain.BetSnapshot, error)
}

// Config bounds the historical walk. Bets older than WindowBlocks are
// invisible to discovery; scanning full chain history is out of scope for
// cost reasons.
type Config struct {
	WindowBlocks         uint64
	TrendingWindowBlocks uint64
}

// Scanner enumerates bets associated with an address across both variants.
type Scanner struct {
	heads     HeadReader
	logs      LogFetcher
	fetch     SnapshotFetcher
	contracts map[domain.Variant]common.Address
	cfg       Config
	logger    *slog.Logger
}

// New creates a Scanner. Variants with a zero contract address are skipped.
func New(heads HeadReader, logs LogFetcher, fetch SnapshotFetcher, challenge, offer common.Address, cfg Config, logger *slog.Logger) *Scanner {
	contracts := make(map[domain.Variant]common.Address, 2)
	if challenge != (common.Address{}) {
		contracts[domain.VariantChallenge] = challenge
	}
	if offer != (common.Address{}) {
		contracts[domain.VariantOffer] = offer
	}
	if cfg.WindowBlocks == 0 {
		cfg.WindowBlocks = 100_000
	}
	if cfg.TrendingWindowBlocks == 0 {
		cfg.TrendingWindowBlocks = 25_000
	}
	return &Scanner{
		heads:     heads,
		logs:      logs,
		fetch:     fetch,
		contracts: contracts,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "scanner")),
	}
}

type variantResult struct {
	entries []domain.BetEntry
	history []domain.TxRecord
}

// Scan discovers every bet within the window where address is creator or
// counterparty. Individual chunk or read failures degrade to gaps in the
// result; only a failure to even read the chain head aborts the scan.
func (s *Scanner) Scan(ctx context.Context, address string) (*domain.ScanResult, error) {
	address = domain.NormalizeAddress(address)

	head, err := s.heads.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: chain head: %v: %w", err, domain.ErrFetch)
	}
	from := windowStart(head, s.cfg.WindowBlocks)

	// The two variants scan concurrently; chunks within one variant stay
	// sequential to bound in-flight requests against rate-limited endpoints.
	results := make(map[domain.Variant]*variantResult, len(s.contracts))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for variant, contract := range s.contracts {
		g.Go(func() error {
			res := s.scanVariant(gctx, variant, contract, address, from, head)
			mu.Lock()
			results[variant] = res
			mu.Unlock()
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return nil, err
	}

	out := &domain.ScanResult{Address: address, Loaded: true}
	for _, v := range domain.Variants {
		if res := results[v]; res != nil {
			out.Entries = append(out.Entries, res.entries...)
			out.History = append(out.History, res.history...)
		}
	}

	// Newest first; presentation order only.
	sort.Slice(out.Entries, func(i, j int) bool {
		a, b := out.Entries[i].Snapshot, out.Entries[j].Snapshot
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt > b.CreatedAt
		}
		return a.ID > b.ID
	})
	sort.Slice(out.History, func(i, j int) bool {
		return out.History[i].BlockNumber > out.History[j].BlockNumber
	})
	return out, nil
}

// scanVariant runs the three discovery passes for one contract. Every
// failure inside is swallowed locally so partial results always come back.
func (s *Scanner) scanVariant(ctx context.Context, variant domain.Variant, contract common.Address, address string, from, to uint64) *variantResult {
	res := &variantResult{}
	seen := make(map[uint64]int) // bet id -> index into res.entries
	addrTopic := betabi.AddressTopic(common.HexToAddress(address))

	// Pass 1: opened events indexed by creator == address.
	created, err := s.logs.Fetch(ctx, chain.Query{
		Contract:  contract,
		Topics:    [][]common.Hash{{betabi.OpenedTopic(variant)}, nil, {addrTopic}},
		FromBlock: from,
		ToBlock:   to,
	})
	if err != nil {
		s.logger.Warn("created-bets pass failed", slog.String("variant", string(variant)), slog.String("error", err.Error()))
	}
	for _, lg := range created {
		ev, err := betabi.DecodeOpened(variant, lg)
		if err != nil {
			continue
		}
		if _, ok := seen[ev.ID]; ok {
			continue
		}
		snap, err := s.fetch.Snapshot(ctx, variant, ev.ID)
		if err != nil {
			s.logger.Warn("snapshot skipped", slog.String("bet", domain.BetRef{Variant: variant, ID: ev.ID}.String()), slog.String("error", err.Error()))
			continue
		}
		seen[ev.ID] = len(res.entries)
		res.entries = append(res.entries, domain.BetEntry{Snapshot: snap, Role: domain.RoleCreator})
		res.history = append(res.history, domain.TxRecord{
			TxHash:      ev.TxHash.Hex(),
			Action:      "created",
			Bet:         snap.Ref(),
			BlockNumber: ev.BlockNumber,
		})
	}

	// Pass 2: unfiltered opened events recover bets the address joined;
	// opened events are not indexed by counterparty, so each candidate is
	// confirmed against the live read.
	opened, err := s.logs.Fetch(ctx, chain.Query{
		Contract:  contract,
		Topics:    [][]common.Hash{{betabi.OpenedTopic(variant)}},
		FromBlock: from,
		ToBlock:   to,
	})
	if err != nil {
		s.logger.Warn("joined-bets pass failed", slog.String("variant", string(variant)), slog.String("error", err.Error()))
	}
	for _, lg := range opened {
		ev, err := betabi.DecodeOpened(variant, lg)
		if err != nil {
			continue
		}
		if _, ok := seen[ev.ID]; ok {
			continue
		}
		snap, err := s.fetch.Snapshot(ctx, variant, ev.ID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.Warn("snapshot skipped", slog.String("bet", domain.BetRef{Variant: variant, ID: ev.ID}.String()), slog.String("error", err.Error()))
			}
			continue
		}
		if snap.Counterparty != address {
			continue
		}
		seen[ev.ID] = len(res.entries)
		res.entries = append(res.entries, domain.BetEntry{Snapshot: snap, Role: domain.RoleCounterparty})
		res.history = append(res.history, domain.TxRecord{
			TxHash:      ev.TxHash.Hex(),
			Action:      "joined",
			Bet:         snap.Ref(),
			BlockNumber: ev.BlockNumber,
		})
	}

	// Pass 3: resolved events enrich already-discovered entries with winner
	// and payout. Phase still comes from the live read, never from here.
	resolved, err := s.logs.Fetch(ctx, chain.Query{
		Contract:  contract,
		Topics:    [][]common.Hash{{betabi.ResolvedTopic(variant)}},
		FromBlock: from,
		ToBlock:   to,
	})
	if err != nil {
		s.logger.Warn("resolved pass failed", slog.String("variant", string(variant)), slog.String("error", err.Error()))
	}
	for _, lg := range resolved {
		ev, err := betabi.DecodeResolved(variant, lg)
		if err != nil {
			continue
		}
		idx, ok := seen[ev.ID]
		if !ok {
			continue
		}
		winner := domain.NormalizeAddress(ev.Winner.Hex())
		res.entries[idx].Winner = winner
		res.entries[idx].PayoutWei = ev.PayoutWei

		action := "resolved"
		if winner == address {
			action = "won"
		}
		res.history = append(res.history, domain.TxRecord{
			TxHash:      ev.TxHash.Hex(),
			Action:      action,
			Bet:         domain.BetRef{Variant: variant, ID: ev.ID},
			BlockNumber: ev.BlockNumber,
		})
	}

	return res
}

// ScanOpen returns recently opened, still-unjoined bets regardless of
// address, newest first, capped at limit. Used by the trending surface.
func (s *Scanner) ScanOpen(ctx context.Context, limit int) ([]domain.BetEntry, error) {
	head, err := s.heads.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: chain head: %v: %w", err, domain.ErrFetch)
	}
	from := windowStart(head, s.cfg.TrendingWindowBlocks)

	var entries []domain.BetEntry
	for variant, contract := range s.contracts {
		logs, err := s.logs.Fetch(ctx, chain.Query{
			Contract:  contract,
			Topics:    [][]common.Hash{{betabi.OpenedTopic(variant)}},
			FromBlock: from,
			ToBlock:   head,
		})
		if err != nil {
			s.logger.Warn("trending pass failed", slog.String("variant", string(variant)), slog.String("error", err.Error()))
			continue
		}
		for _, lg := range logs {
			ev, err := betabi.DecodeOpened(variant, lg)
			if err != nil {
				continue
			}
			snap, err := s.fetch.Snapshot(ctx, variant, ev.ID)
			if err != nil || snap.PhaseRaw != domain.RawOpen {
				continue
			}
			entries = append(entries, domain.BetEntry{Snapshot: snap, Role: domain.RoleCreator})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Snapshot.CreatedAt > entries[j].Snapshot.CreatedAt
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func windowStart(head, window uint64) uint64 {
	if head <= window {
		return 0
	}
	return head - window
}
