// Package service composes the chain readers, caches, and stores into the
// user-facing operations: bet lookup, trending discovery, and statistics.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duelcast/betwatch/internal/domain"
	"github.com/duelcast/betwatch/internal/lifecycle"
)

// DefaultSnapshotTTL bounds how long a lookup result is served from cache.
// Short by design: the lookup surface tolerates slightly stale state, but a
// user checking a bet right after acting on it should see the new phase on
// the next fetch.
const DefaultSnapshotTTL = 15 * time.Second

// RetryPolicy bounds the retry behaviour for user-initiated lookups. Only
// transport failures are retried; a definitive "does not exist" answer is
// returned immediately.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// SnapshotFetcher is the live-read surface the lookup service needs.
// *fetcher.Fetcher satisfies it.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, variant domain.Variant, id uint64) (*domain.BetSnapshot, error)
	SnapshotEither(ctx context.Context, id uint64) (*domain.BetSnapshot, error)
}

// BetView is a lookup result: the snapshot plus the derived lifecycle state
// for the requesting viewer and the viewer's stored label, if any.
type BetView struct {
	Snapshot *domain.BetSnapshot
	Label    string
	Phase    lifecycle.Phase
	Actions  []lifecycle.Action
	Nudge    bool
}

// LookupService answers point lookups of single bets. Cache and label store
// are optional; a nil cache means every lookup reads the chain.
type LookupService struct {
	fetch   SnapshotFetcher
	cache   domain.SnapshotCache
	labels  domain.LabelStore
	network string
	retry   RetryPolicy
	ttl     time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewLookup creates a LookupService.
func NewLookup(fetch SnapshotFetcher, cache domain.SnapshotCache, labels domain.LabelStore, network string, retry RetryPolicy, logger *slog.Logger) *LookupService {
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	return &LookupService{
		fetch:   fetch,
		cache:   cache,
		labels:  labels,
		network: network,
		retry:   retry,
		ttl:     DefaultSnapshotTTL,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "lookup")),
	}
}

// Lookup fetches one bet by (variant, id) and derives its lifecycle state for
// viewer. ErrNotFound means the id has never been used; ErrFetch means the
// chain could not be read even after retries, and nothing about existence can
// be concluded.
func (s *LookupService) Lookup(ctx context.Context, variant domain.Variant, id uint64, viewer string) (*BetView, error) {
	ref := domain.BetRef{Variant: variant, ID: id}

	if s.cache != nil {
		snap, err := s.cache.Get(ctx, s.network, ref)
		if err == nil {
			return s.view(ctx, snap, viewer), nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("snapshot cache read failed", slog.String("bet", ref.String()), slog.String("error", err.Error()))
		}
	}

	snap, err := s.fetchWithRetry(ctx, func(ctx context.Context) (*domain.BetSnapshot, error) {
		return s.fetch.Snapshot(ctx, variant, id)
	})
	if err != nil {
		return nil, err
	}

	s.cacheSnapshot(ctx, snap)
	return s.view(ctx, snap, viewer), nil
}

// LookupAny resolves a bare numeric id against both variants, for pasted ids
// whose variant the user does not know.
func (s *LookupService) LookupAny(ctx context.Context, id uint64, viewer string) (*BetView, error) {
	snap, err := s.fetchWithRetry(ctx, func(ctx context.Context) (*domain.BetSnapshot, error) {
		return s.fetch.SnapshotEither(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	s.cacheSnapshot(ctx, snap)
	return s.view(ctx, snap, viewer), nil
}

func (s *LookupService) fetchWithRetry(ctx context.Context, fn func(context.Context) (*domain.BetSnapshot, error)) (*domain.BetSnapshot, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		snap, err := fn(ctx)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, domain.ErrFetch) {
			return nil, err
		}
		lastErr = err

		if attempt == s.retry.Attempts {
			break
		}
		s.logger.Warn("lookup fetch failed, retrying",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("service: lookup: %w", ctx.Err())
		case <-time.After(s.retry.Delay):
		}
	}
	return nil, lastErr
}

func (s *LookupService) cacheSnapshot(ctx context.Context, snap *domain.BetSnapshot) {
	if s.cache == nil || snap == nil {
		return
	}
	if err := s.cache.Set(ctx, s.network, snap, s.ttl); err != nil {
		s.logger.Warn("snapshot cache write failed", slog.String("bet", snap.Ref().String()), slog.String("error", err.Error()))
	}
}

func (s *LookupService) view(ctx context.Context, snap *domain.BetSnapshot, viewer string) *BetView {
	res := lifecycle.Resolve(snap, viewer, s.now())
	v := &BetView{
		Snapshot: snap,
		Phase:    res.Phase,
		Actions:  res.Actions,
		Nudge:    res.Nudge,
	}
	if s.labels != nil {
		label, err := s.labels.Get(ctx, s.network, snap.Ref())
		switch {
		case err == nil:
			v.Label = label
		case !errors.Is(err, domain.ErrNotFound):
			s.logger.Warn("label read failed", slog.String("bet", snap.Ref().String()), slog.String("error", err.Error()))
		}
	}
	return v
}
