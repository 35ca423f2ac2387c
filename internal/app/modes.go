package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duelcast/betwatch/internal/domain"
	"github.com/duelcast/betwatch/internal/notify"
	"github.com/duelcast/betwatch/internal/server"
	"github.com/duelcast/betwatch/internal/server/handler"
	"github.com/duelcast/betwatch/internal/server/ws"
	"github.com/duelcast/betwatch/internal/watcher"
)

// shutdownTimeout bounds the graceful HTTP shutdown in serve mode.
const shutdownTimeout = 10 * time.Second

// WatchMode runs a notification session for the configured wallet address and
// blocks until the context is cancelled.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	if deps.WalletAddress == "" {
		return fmt.Errorf("app: watch mode needs a wallet address")
	}

	manager := watcher.NewManager(a.sessionFactory(deps, nil), a.logger)
	manager.Start(ctx, deps.WalletAddress, a.cfg.Network.Name)

	<-ctx.Done()
	return ctx.Err()
}

// ScanMode runs a one-shot discovery scan for the configured wallet address,
// persists the results when a database is configured, archives the scan when
// object storage is configured, and exits.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	if deps.WalletAddress == "" {
		return fmt.Errorf("app: scan mode needs a wallet address")
	}

	a.logger.InfoContext(ctx, "starting scan", slog.String("address", deps.WalletAddress))

	result, err := deps.Scanner.Scan(ctx, deps.WalletAddress)
	if err != nil {
		return fmt.Errorf("app: scan: %w", err)
	}
	a.logger.InfoContext(ctx, "scan complete",
		slog.Int("bets", len(result.Entries)),
		slog.Int("history", len(result.History)),
		slog.Bool("loaded", result.Loaded),
	)

	if deps.Archive != nil {
		network := a.cfg.Network.Name
		if err := deps.Archive.UpsertEntries(ctx, network, result.Address, result.Entries); err != nil {
			a.logger.ErrorContext(ctx, "archive upsert failed", slog.String("error", err.Error()))
		}
		if err := deps.Archive.RecordHistory(ctx, network, result.Address, result.History); err != nil {
			a.logger.ErrorContext(ctx, "archive history failed", slog.String("error", err.Error()))
		}
	}
	if deps.Archiver != nil {
		if err := deps.Archiver.Archive(ctx, result); err != nil {
			a.logger.ErrorContext(ctx, "scan archive upload failed", slog.String("error", err.Error()))
		}
	}

	return writeResult(result)
}

// LookupMode resolves one bet id, prints the result as JSON, and exits.
func (a *App) LookupMode(ctx context.Context, deps *Dependencies) error {
	var (
		view any
		err  error
	)
	switch a.lookup.Variant {
	case "":
		view, err = deps.Lookup.LookupAny(ctx, a.lookup.ID, deps.WalletAddress)
	case string(domain.VariantChallenge), string(domain.VariantOffer):
		view, err = deps.Lookup.Lookup(ctx, domain.Variant(a.lookup.Variant), a.lookup.ID, deps.WalletAddress)
	default:
		return fmt.Errorf("app: unknown variant %q", a.lookup.Variant)
	}
	if err != nil {
		return fmt.Errorf("app: lookup: %w", err)
	}
	return writeResult(view)
}

// ServeMode runs the HTTP/WebSocket API server and, when a wallet address is
// configured, a watch session that pushes notifications to connected clients.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	hub := ws.NewHub(a.logger)

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.cfg.Network.Name, a.logger),
		Bets:    handler.NewBetHandler(deps.Lookup, deps.Labels, a.cfg.Network.Name, a.logger),
		Address: handler.NewAddressHandler(deps.Scanner, deps.Stats, a.logger),
	}
	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, hub, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := hub.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if deps.WalletAddress != "" {
		manager := watcher.NewManager(a.sessionFactory(deps, hub), a.logger)
		manager.Start(ctx, deps.WalletAddress, a.cfg.Network.Name)
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// sessionFactory builds watch sessions over the wired dependencies. hub is an
// extra sink for serve mode and may be nil.
func (a *App) sessionFactory(deps *Dependencies, hub *ws.Hub) watcher.SessionFactory {
	return func(address, network string) *watcher.Session {
		sinks := []domain.NotificationSink{
			notify.NewSink(deps.Notifier),
			deps.Unread,
		}
		if hub != nil {
			sinks = append(sinks, hub)
		}
		return watcher.NewSession(address, watcher.Config{
			PollInterval: a.cfg.Poll.Interval(),
			Network:      network,
		}, watcher.Deps{
			Heads:     deps.Chain,
			Logs:      deps.LogReader,
			Fetch:     deps.Fetcher,
			Baseline:  deps.Baseline,
			Challenge: deps.Challenge,
			Offer:     deps.Offer,
			Sinks:     sinks,
		}, a.logger)
	}
}

// writeResult pretty-prints a mode's outcome to stdout for CLI consumption.
func writeResult(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("app: encode result: %w", err)
	}
	return nil
}
