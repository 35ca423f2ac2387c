// Package watcher runs the per-address notification session: one baseline
// scan to learn which bets to track, then incremental polling over new blocks
// only, with a dedup set guaranteeing at most one alert per (bet, event kind)
// for the lifetime of the session.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/duelcast/betwatch/internal/chain"
	"github.com/duelcast/betwatch/internal/chain/betabi"
	"github.com/duelcast/betwatch/internal/domain"
	"github.com/duelcast/betwatch/internal/lifecycle"
)

// State is the session's lifecycle stage.
type State int32

const (
	StateUninitialized State = iota
	StateBaseline
	StatePolling
)

// HeadReader reports the current chain head.
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// LogFetcher fetches logs across a bounded window.
type LogFetcher interface {
	Fetch(ctx context.Context, q chain.Query) ([]types.Log, error)
}

// SnapshotFetcher re-reads a tracked bet's live state.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, variant domain.Variant, id uint64) (*domain.BetSnapshot, error)
}

// BaselineScanner seeds the tracked set. *scanner.Scanner satisfies it.
type BaselineScanner interface {
	Scan(ctx context.Context, address string) (*domain.ScanResult, error)
}

// Config tunes one session.
type Config struct {
	// PollInterval is the steady-polling cadence. Cycles never overlap: if
	// a cycle outlives the interval, the missed ticks are skipped, not
	// queued.
	PollInterval time.Duration

	Network string
}

// Deps bundles the collaborators a session reads through.
type Deps struct {
	Heads    HeadReader
	Logs     LogFetcher
	Fetch    SnapshotFetcher
	Baseline BaselineScanner

	// Contracts per variant; zero address skips the variant.
	Challenge common.Address
	Offer     common.Address

	Sinks []domain.NotificationSink
}

// Session watches one (address, network) pair. All mutable state (the scan
// cursor, the dedup set, the tracked-bet map) is owned exclusively by the
// session goroutine; nothing else writes it. Switching address or network
// means tearing the session down and building a new one (see Manager), so
// in-flight results from a dead session are simply discarded with it.
type Session struct {
	id      uuid.UUID
	address string
	cfg     Config
	deps    Deps
	logger  *slog.Logger

	state   atomic.Int32
	running atomic.Bool // cycle overlap guard

	// lastScannedBlock==0 means "never scanned": the next cycle is the
	// baseline sweep.
	lastScannedBlock uint64
	knownEvents      map[domain.NotificationKey]struct{}
	trackedBets      map[domain.BetRef]domain.PhaseRaw

	mu      sync.Mutex
	emitted int
}

// NewSession creates a session for the address. The session starts
// Uninitialized; Run performs the baseline scan before any polling.
func NewSession(address string, cfg Config, deps Deps, logger *slog.Logger) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	s := &Session{
		id:          uuid.New(),
		address:     domain.NormalizeAddress(address),
		cfg:         cfg,
		deps:        deps,
		knownEvents: make(map[domain.NotificationKey]struct{}),
		trackedBets: make(map[domain.BetRef]domain.PhaseRaw),
	}
	s.logger = logger.With(
		slog.String("component", "watcher"),
		slog.String("session", s.id.String()),
		slog.String("address", s.address),
	)
	return s
}

// ID returns the session token.
func (s *Session) ID() uuid.UUID { return s.id }

// Address returns the watched address (lowercase).
func (s *Session) Address() string { return s.address }

// State returns the session's current stage.
func (s *Session) State() State { return State(s.state.Load()) }

// Emitted returns how many notifications this session has delivered.
func (s *Session) Emitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}

// Run drives the session until ctx is cancelled: baseline first, then a
// steady-polling ticker. A failed baseline does not end the session; the
// cursor stays unset and every tick re-attempts it until it succeeds, so a
// transient RPC outage at startup only delays the first notifications.
// Run returns ctx.Err() on shutdown.
func (s *Session) Run(ctx context.Context) error {
	s.tryBaseline(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopped", slog.Int("emitted", s.Emitted()))
			return ctx.Err()
		case <-ticker.C:
			if s.State() != StatePolling {
				s.tryBaseline(ctx)
				continue
			}
			s.Cycle(ctx)
		}
	}
}

// tryBaseline runs the baseline sweep and downgrades failure to a Warn log.
func (s *Session) tryBaseline(ctx context.Context) {
	if err := s.baseline(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn("baseline failed, retrying next tick", slog.String("error", err.Error()))
	}
}

// baseline seeds trackedBets with every non-terminal bet involving the
// address and pins the scan cursor to the current head. No notifications are
// emitted here: everything the baseline sees predates the session.
func (s *Session) baseline(ctx context.Context) error {
	s.state.Store(int32(StateBaseline))

	head, err := s.deps.Heads.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("watcher: baseline head: %v: %w", err, domain.ErrFetch)
	}

	result, err := s.deps.Baseline.Scan(ctx, s.address)
	if err != nil {
		return fmt.Errorf("watcher: baseline scan: %w", err)
	}
	for _, entry := range result.Entries {
		if entry.Snapshot.PhaseRaw.Terminal() {
			continue
		}
		s.trackedBets[entry.Snapshot.Ref()] = entry.Snapshot.PhaseRaw
	}

	s.lastScannedBlock = head
	s.state.Store(int32(StatePolling))
	s.logger.Info("baseline complete",
		slog.Uint64("head", head),
		slog.Int("tracked", len(s.trackedBets)),
	)
	return nil
}

// Cycle runs one steady-polling pass. It is safe to call concurrently with a
// ticker tick: an in-progress cycle makes subsequent calls no-ops, so cycles
// never overlap.
func (s *Session) Cycle(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("cycle still running, tick skipped")
		return
	}
	defer s.running.Store(false)

	head, err := s.deps.Heads.BlockNumber(ctx)
	if err != nil {
		s.logger.Warn("cycle head fetch failed", slog.String("error", err.Error()))
		return
	}
	if head <= s.lastScannedBlock {
		return
	}
	from := s.lastScannedBlock + 1
	s.lastScannedBlock = head

	now := time.Now()
	for variant, contract := range s.contracts() {
		s.checkResolved(ctx, variant, contract, from, head)
		s.checkTracked(ctx, variant, now)
	}
}

func (s *Session) contracts() map[domain.Variant]common.Address {
	out := make(map[domain.Variant]common.Address, 2)
	if s.deps.Challenge != (common.Address{}) {
		out[domain.VariantChallenge] = s.deps.Challenge
	}
	if s.deps.Offer != (common.Address{}) {
		out[domain.VariantOffer] = s.deps.Offer
	}
	return out
}

// checkResolved scans the new block range for resolved events touching the
// address and emits a win/loss alert once per bet.
func (s *Session) checkResolved(ctx context.Context, variant domain.Variant, contract common.Address, from, to uint64) {
	logs, err := s.deps.Logs.Fetch(ctx, chain.Query{
		Contract:  contract,
		Topics:    [][]common.Hash{{betabi.ResolvedTopic(variant)}},
		FromBlock: from,
		ToBlock:   to,
	})
	if err != nil {
		s.logger.Warn("resolved log fetch failed", slog.String("variant", string(variant)), slog.String("error", err.Error()))
		return
	}

	for _, lg := range logs {
		ev, err := betabi.DecodeResolved(variant, lg)
		if err != nil {
			continue
		}
		ref := domain.BetRef{Variant: variant, ID: ev.ID}
		key := domain.Key(ref, domain.KindResolved)
		if s.known(key) {
			continue
		}

		// Membership comes from the live read, not the tracked set, so a
		// bet resolved moments after discovery missed it still alerts.
		snap, err := s.deps.Fetch.Snapshot(ctx, variant, ev.ID)
		if err != nil {
			s.logger.Warn("resolved re-fetch skipped", slog.String("bet", ref.String()), slog.String("error", err.Error()))
			continue
		}
		if !snap.IsParty(s.address) {
			continue
		}
		delete(s.trackedBets, ref)

		won := domain.NormalizeAddress(ev.Winner.Hex()) == s.address
		title := "Bet resolved"
		body := fmt.Sprintf("%s has been resolved. Better luck next time.", ref)
		if won {
			title = "You won!"
			body = fmt.Sprintf("%s has been resolved. Payout sent to your wallet.", ref)
		}
		s.emit(ctx, domain.Notification{
			Key:   key,
			Kind:  domain.KindResolved,
			Bet:   ref,
			Title: title,
			Body:  body,
			Won:   won,
			At:    time.Now(),
		})
	}
}

// checkTracked re-fetches each tracked bet of the variant and emits taken and
// vote-nudge alerts on first observation. Each re-fetch is independently
// fault tolerant; one bad RPC call never stops the rest of the set.
func (s *Session) checkTracked(ctx context.Context, variant domain.Variant, now time.Time) {
	for ref, prevPhase := range s.trackedBets {
		if ref.Variant != variant {
			continue
		}
		snap, err := s.deps.Fetch.Snapshot(ctx, ref.Variant, ref.ID)
		if err != nil {
			s.logger.Warn("tracked re-fetch skipped", slog.String("bet", ref.String()), slog.String("error", err.Error()))
			continue
		}

		if snap.PhaseRaw.Terminal() {
			// Resolution alerts come from the event pass; refunds end
			// tracking quietly.
			delete(s.trackedBets, ref)
			continue
		}
		s.trackedBets[ref] = snap.PhaseRaw

		if prevPhase == domain.RawOpen && snap.PhaseRaw == domain.RawActive {
			key := domain.Key(ref, domain.KindTaken)
			if !s.known(key) {
				s.emit(ctx, domain.Notification{
					Key:   key,
					Kind:  domain.KindTaken,
					Bet:   ref,
					Title: "Opponent joined!",
					Body:  fmt.Sprintf("Someone took your %s. Time to vote on the outcome.", ref),
					At:    time.Now(),
				})
			}
		}

		if res := lifecycle.Resolve(snap, s.address, now); res.Nudge {
			key := domain.Key(ref, domain.KindVoteNudge)
			if !s.known(key) {
				s.emit(ctx, domain.Notification{
					Key:   key,
					Kind:  domain.KindVoteNudge,
					Bet:   ref,
					Title: "Vote needed",
					Body:  fmt.Sprintf("Your opponent voted on %s. Submit your vote to resolve the bet.", ref),
					At:    time.Now(),
				})
			}
		}
	}
}

func (s *Session) known(key domain.NotificationKey) bool {
	_, ok := s.knownEvents[key]
	return ok
}

// emit records the key and fans the notification out to every sink. Sink
// failures are logged and ignored so one dead channel cannot silence the
// others.
func (s *Session) emit(ctx context.Context, n domain.Notification) {
	s.knownEvents[n.Key] = struct{}{}
	s.mu.Lock()
	s.emitted++
	s.mu.Unlock()

	for _, sink := range s.deps.Sinks {
		if err := sink.Deliver(ctx, n); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("notification delivery failed",
				slog.String("key", string(n.Key)),
				slog.String("error", err.Error()),
			)
		}
	}
	s.logger.Info("notification emitted",
		slog.String("key", string(n.Key)),
		slog.String("title", n.Title),
	)
}
