package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelcast/betwatch/internal/domain"
	"github.com/duelcast/betwatch/internal/lifecycle"
)

const testNetwork = "base"

type fakeFetcher struct {
	mu     sync.Mutex
	snap   *domain.BetSnapshot
	errs   []error // consumed per call, nil entries mean success
	calls  int
	either int
}

func (f *fakeFetcher) next() (*domain.BetSnapshot, error) {
	if f.calls <= len(f.errs) {
		if err := f.errs[f.calls-1]; err != nil {
			return nil, err
		}
	}
	return f.snap, nil
}

func (f *fakeFetcher) Snapshot(context.Context, domain.Variant, uint64) (*domain.BetSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.next()
}

func (f *fakeFetcher) SnapshotEither(context.Context, uint64) (*domain.BetSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.either++
	return f.next()
}

type memoryCache struct {
	mu    sync.Mutex
	snaps map[string]*domain.BetSnapshot
	sets  int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{snaps: map[string]*domain.BetSnapshot{}}
}

func cacheKey(network string, ref domain.BetRef) string {
	return network + "/" + ref.String()
}

func (c *memoryCache) Get(_ context.Context, network string, ref domain.BetRef) (*domain.BetSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap, ok := c.snaps[cacheKey(network, ref)]; ok {
		return snap, nil
	}
	return nil, domain.ErrNotFound
}

func (c *memoryCache) Set(_ context.Context, network string, snap *domain.BetSnapshot, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[cacheKey(network, snap.Ref())] = snap
	c.sets++
	return nil
}

type memoryLabels struct {
	labels map[string]string
}

func (l *memoryLabels) Get(_ context.Context, network string, ref domain.BetRef) (string, error) {
	if label, ok := l.labels[cacheKey(network, ref)]; ok {
		return label, nil
	}
	return "", domain.ErrNotFound
}

func (l *memoryLabels) Set(_ context.Context, network string, ref domain.BetRef, label string) error {
	l.labels[cacheKey(network, ref)] = label
	return nil
}

func testSnap() *domain.BetSnapshot {
	return &domain.BetSnapshot{
		ID:                5,
		Variant:           domain.VariantChallenge,
		Creator:           "0x1111111111111111111111111111111111111111",
		CreatorStake:      big.NewInt(1000),
		CounterpartyStake: big.NewInt(1000),
		PhaseRaw:          domain.RawOpen,
	}
}

func newLookup(fetch SnapshotFetcher, cache domain.SnapshotCache, labels domain.LabelStore, retry RetryPolicy) *LookupService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewLookup(fetch, cache, labels, testNetwork, retry, logger)
}

func TestLookupDerivesLifecycle(t *testing.T) {
	fetch := &fakeFetcher{snap: testSnap()}
	s := newLookup(fetch, nil, nil, RetryPolicy{})

	view, err := s.Lookup(context.Background(), domain.VariantChallenge, 5, "0x2222222222222222222222222222222222222222")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.PhaseAwaitingCounterparty, view.Phase)
	assert.True(t, lifecycle.Resolution{Actions: view.Actions}.Has(lifecycle.ActionJoin))
	assert.Equal(t, 1, fetch.calls)
}

func TestLookupServesFromCache(t *testing.T) {
	fetch := &fakeFetcher{snap: testSnap()}
	cache := newMemoryCache()
	s := newLookup(fetch, cache, nil, RetryPolicy{})

	_, err := s.Lookup(context.Background(), domain.VariantChallenge, 5, "")
	require.NoError(t, err)
	assert.Equal(t, 1, fetch.calls)
	assert.Equal(t, 1, cache.sets)

	// Second lookup hits the cache, not the chain.
	_, err = s.Lookup(context.Background(), domain.VariantChallenge, 5, "")
	require.NoError(t, err)
	assert.Equal(t, 1, fetch.calls)
}

func TestLookupRetriesTransportFailures(t *testing.T) {
	fetch := &fakeFetcher{
		snap: testSnap(),
		errs: []error{fmt.Errorf("rpc: %w", domain.ErrFetch), fmt.Errorf("rpc: %w", domain.ErrFetch), nil},
	}
	s := newLookup(fetch, nil, nil, RetryPolicy{Attempts: 3, Delay: time.Millisecond})

	view, err := s.Lookup(context.Background(), domain.VariantChallenge, 5, "")
	require.NoError(t, err)
	assert.NotNil(t, view.Snapshot)
	assert.Equal(t, 3, fetch.calls)
}

func TestLookupExhaustedRetriesReturnFetchError(t *testing.T) {
	errs := []error{
		fmt.Errorf("rpc: %w", domain.ErrFetch),
		fmt.Errorf("rpc: %w", domain.ErrFetch),
	}
	fetch := &fakeFetcher{errs: errs}
	s := newLookup(fetch, nil, nil, RetryPolicy{Attempts: 2, Delay: time.Millisecond})

	_, err := s.Lookup(context.Background(), domain.VariantChallenge, 5, "")
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Equal(t, 2, fetch.calls)
}

func TestLookupDoesNotRetryNotFound(t *testing.T) {
	fetch := &fakeFetcher{errs: []error{fmt.Errorf("bet: %w", domain.ErrNotFound)}}
	s := newLookup(fetch, nil, nil, RetryPolicy{Attempts: 3, Delay: time.Millisecond})

	_, err := s.Lookup(context.Background(), domain.VariantChallenge, 5, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, fetch.calls)
}

func TestLookupAttachesLabel(t *testing.T) {
	fetch := &fakeFetcher{snap: testSnap()}
	labels := &memoryLabels{labels: map[string]string{}}
	require.NoError(t, labels.Set(context.Background(), testNetwork,
		domain.BetRef{Variant: domain.VariantChallenge, ID: 5}, "rent money"))
	s := newLookup(fetch, nil, labels, RetryPolicy{})

	view, err := s.Lookup(context.Background(), domain.VariantChallenge, 5, "")
	require.NoError(t, err)
	assert.Equal(t, "rent money", view.Label)
}

func TestLookupAnyUsesEitherVariantPath(t *testing.T) {
	fetch := &fakeFetcher{snap: testSnap()}
	s := newLookup(fetch, nil, nil, RetryPolicy{})

	view, err := s.LookupAny(context.Background(), 5, "")
	require.NoError(t, err)
	assert.Equal(t, domain.VariantChallenge, view.Snapshot.Variant)
	assert.Equal(t, 1, fetch.either)
}

func TestLookupCancelledContextAbortsRetry(t *testing.T) {
	fetch := &fakeFetcher{errs: []error{
		fmt.Errorf("rpc: %w", domain.ErrFetch),
		fmt.Errorf("rpc: %w", domain.ErrFetch),
	}}
	s := newLookup(fetch, nil, nil, RetryPolicy{Attempts: 5, Delay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Lookup(ctx, domain.VariantChallenge, 5, "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fetch.calls)
}
