package watcher

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelcast/betwatch/internal/domain"
)

type fakeWallet struct {
	ch           chan WalletEvent
	unsubscribed bool
}

func (f *fakeWallet) Subscribe() (<-chan WalletEvent, func()) {
	return f.ch, func() { f.unsubscribed = true }
}

func testFactory() SessionFactory {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return func(address, network string) *Session {
		return NewSession(address, Config{PollInterval: time.Minute, Network: network}, Deps{
			Heads:     &fakeHeads{head: 100},
			Logs:      &fakeLogs{},
			Fetch:     &fakeFetch{snaps: map[domain.BetRef]*domain.BetSnapshot{}, errs: map[domain.BetRef]error{}},
			Baseline:  &fakeBaseline{result: &domain.ScanResult{Loaded: true}},
			Challenge: challengeAddr,
		}, logger)
	}
}

func runManager(t *testing.T) (*Manager, *fakeWallet, context.CancelFunc, chan error) {
	t.Helper()
	m := NewManager(testFactory(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	wallet := &fakeWallet{ch: make(chan WalletEvent)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, wallet) }()
	return m, wallet, cancel, done
}

func TestManagerStartsSessionOnConnect(t *testing.T) {
	m, wallet, cancel, done := runManager(t)
	defer cancel()

	wallet.ch <- WalletEvent{Address: alice.Hex(), Network: "base"}

	require.Eventually(t, func() bool {
		return m.Current() != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.NormalizeAddress(alice.Hex()), m.Current().Address())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.True(t, wallet.unsubscribed)
}

func TestManagerSwapsSessionOnAccountSwitch(t *testing.T) {
	m, wallet, cancel, done := runManager(t)
	defer cancel()

	wallet.ch <- WalletEvent{Address: alice.Hex(), Network: "base"}
	require.Eventually(t, func() bool { return m.Current() != nil }, 2*time.Second, 5*time.Millisecond)
	first := m.Current().ID()

	wallet.ch <- WalletEvent{Address: bob.Hex(), Network: "base"}
	require.Eventually(t, func() bool {
		cur := m.Current()
		return cur != nil && cur.ID() != first
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.NormalizeAddress(bob.Hex()), m.Current().Address())

	cancel()
	<-done
}

func TestManagerDisconnectStopsSession(t *testing.T) {
	m, wallet, cancel, done := runManager(t)
	defer cancel()

	wallet.ch <- WalletEvent{Address: alice.Hex(), Network: "base"}
	require.Eventually(t, func() bool { return m.Current() != nil }, 2*time.Second, 5*time.Millisecond)

	wallet.ch <- WalletEvent{}
	require.Eventually(t, func() bool { return m.Current() == nil }, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestManagerStopsWhenEventStreamCloses(t *testing.T) {
	_, wallet, cancel, done := runManager(t)
	defer cancel()

	close(wallet.ch)
	require.NoError(t, <-done)
}

func TestManagerStartOutsideEventStream(t *testing.T) {
	m := NewManager(testFactory(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	m.Start(context.Background(), alice.Hex(), "base")
	require.NotNil(t, m.Current())
	assert.Equal(t, domain.NormalizeAddress(alice.Hex()), m.Current().Address())

	m.stop()
	assert.Nil(t, m.Current())
}

func TestManagerWhitespaceAddressIsDisconnect(t *testing.T) {
	m := NewManager(testFactory(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	m.Start(context.Background(), "   ", "base")
	assert.Nil(t, m.Current())
}
