package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/duelcast/betwatch/internal/domain"
)

// WalletEvent is an account or network change reported by the external
// wallet surface.
type WalletEvent struct {
	// Address is empty on disconnect.
	Address string
	Network string
}

// WalletEvents is the external event source the manager subscribes to once
// and unsubscribes from on teardown.
type WalletEvents interface {
	Subscribe() (<-chan WalletEvent, func())
}

// SessionFactory builds a session for an (address, network) pair.
type SessionFactory func(address, network string) *Session

// Manager owns the currently running session and swaps it out whenever the
// wallet address or network changes. The old session's context is cancelled
// before the new one starts, so results from superseded scans are discarded
// with the session that requested them rather than applied to the new one.
type Manager struct {
	build  SessionFactory
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelCauseFunc
	current *Session
}

// NewManager creates a Manager.
func NewManager(build SessionFactory, logger *slog.Logger) *Manager {
	return &Manager{
		build:  build,
		logger: logger.With(slog.String("component", "watch-manager")),
	}
}

// Current returns the running session, or nil when disconnected.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Run consumes wallet events until ctx is cancelled. Each connect or switch
// tears down the previous session and starts a fresh one with zeroed cursor
// and dedup state.
func (m *Manager) Run(ctx context.Context, events WalletEvents) error {
	ch, unsubscribe := events.Subscribe()
	defer unsubscribe()
	defer m.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			m.handle(ctx, ev)
		}
	}
}

// Start launches a session directly, outside of any wallet event stream.
// Used by the fixed-address watch mode.
func (m *Manager) Start(ctx context.Context, address, network string) {
	m.handle(ctx, WalletEvent{Address: address, Network: network})
}

func (m *Manager) handle(ctx context.Context, ev WalletEvent) {
	m.stop()

	addr := domain.NormalizeAddress(ev.Address)
	if addr == "" {
		m.logger.Info("wallet disconnected, watch idle")
		return
	}

	sess := m.build(addr, ev.Network)
	sctx, cancel := context.WithCancelCause(ctx)

	m.mu.Lock()
	m.cancel = cancel
	m.current = sess
	m.mu.Unlock()

	m.logger.Info("session starting",
		slog.String("address", addr),
		slog.String("network", ev.Network),
		slog.String("session", sess.ID().String()),
	)

	go func() {
		err := sess.Run(sctx)
		switch {
		case errors.Is(context.Cause(sctx), domain.ErrSessionStale):
			m.logger.Debug("session superseded",
				slog.String("session", sess.ID().String()),
			)
		case err != nil && !errors.Is(err, context.Canceled):
			m.logger.Error("session exited",
				slog.String("session", sess.ID().String()),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (m *Manager) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel(domain.ErrSessionStale)
		m.cancel = nil
	}
	m.current = nil
}
