package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/duelcast/betwatch/internal/blob/s3"
	"github.com/duelcast/betwatch/internal/cache/redis"
	"github.com/duelcast/betwatch/internal/chain"
	"github.com/duelcast/betwatch/internal/config"
	"github.com/duelcast/betwatch/internal/crypto"
	"github.com/duelcast/betwatch/internal/dispatch"
	"github.com/duelcast/betwatch/internal/domain"
	"github.com/duelcast/betwatch/internal/fetcher"
	"github.com/duelcast/betwatch/internal/notify"
	"github.com/duelcast/betwatch/internal/oracle"
	"github.com/duelcast/betwatch/internal/scanner"
	"github.com/duelcast/betwatch/internal/service"
	"github.com/duelcast/betwatch/internal/store/postgres"
)

// Dependencies bundles every component the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Chain     *chain.Client
	LogReader *chain.LogReader
	Fetcher   *fetcher.Fetcher

	// Scanner walks the full discovery window; Baseline walks the shorter
	// window used to seed a watch session.
	Scanner  *scanner.Scanner
	Baseline *scanner.Scanner

	// Optional persistence; nil when not configured for the mode.
	Archive  domain.BetArchiveStore
	Labels   domain.LabelStore
	Prices   domain.PriceCache
	Snaps    domain.SnapshotCache
	Archiver domain.ScanArchiver

	Oracle *oracle.PriceOracle

	Notifier *notify.Notifier
	Unread   *notify.Counter

	// Signer and Dispatcher are nil when no signing key is configured.
	Signer     *crypto.TxSigner
	Dispatcher *dispatch.Dispatcher

	Lookup *service.LookupService
	Stats  *service.StatsService

	// WalletAddress is the watched address: the configured one, or the
	// signer's when only a key was given.
	WalletAddress string

	Challenge common.Address
	Offer     common.Address
}

// needsPostgres reports whether the mode persists scan results.
func needsPostgres(mode string) bool {
	switch mode {
	case "scan", "serve":
		return true
	default:
		return false
	}
}

// needsRedis reports whether the mode serves the cached lookup surface.
func needsRedis(mode string) bool {
	switch mode {
	case "lookup", "serve":
		return true
	default:
		return false
	}
}

// needsS3 reports whether the mode archives scans to object storage.
func needsS3(mode string) bool {
	return mode == "scan"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		WalletAddress: domain.NormalizeAddress(cfg.Wallet.Address),
	}
	if cfg.Network.ChallengeContract != "" {
		deps.Challenge = common.HexToAddress(cfg.Network.ChallengeContract)
	}
	if cfg.Network.OfferContract != "" {
		deps.Offer = common.HexToAddress(cfg.Network.OfferContract)
	}

	// --- Chain client ---
	chainClient, err := chain.Dial(ctx, chain.ClientConfig{Endpoint: cfg.Network.RPCEndpoint}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient

	deps.LogReader = chain.NewLogReader(chainClient, cfg.Scan.ChunkBlocks, logger)
	deps.Fetcher = fetcher.New(chainClient, deps.Challenge, deps.Offer, logger)

	deps.Scanner = scanner.New(chainClient, deps.LogReader, deps.Fetcher,
		deps.Challenge, deps.Offer,
		scanner.Config{
			WindowBlocks:         cfg.Scan.WindowBlocks,
			TrendingWindowBlocks: cfg.Scan.TrendingWindowBlocks,
		}, logger)
	deps.Baseline = scanner.New(chainClient, deps.LogReader, deps.Fetcher,
		deps.Challenge, deps.Offer,
		scanner.Config{
			WindowBlocks:         cfg.Scan.BaselineWindowBlocks,
			TrendingWindowBlocks: cfg.Scan.TrendingWindowBlocks,
		}, logger)

	// --- Signer (optional) ---
	if cfg.Wallet.PrivateKey != "" || cfg.Wallet.EncryptedKeyPath != "" {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
		signer, err := crypto.NewTxSigner(keyHex, cfg.Network.ChainID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
		deps.Signer = signer
		deps.Dispatcher = dispatch.New(chainClient, signer, deps.Fetcher,
			deps.Challenge, deps.Offer, logger)
		if deps.WalletAddress == "" {
			deps.WalletAddress = domain.NormalizeAddress(signer.Address().Hex())
		}
	}

	// --- PostgreSQL (only for modes that persist) ---
	if needsPostgres(mode) && postgresConfigured(cfg) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Archive = postgres.NewBetStore(pool)
		deps.Labels = postgres.NewLabelStore(pool)
	}

	// --- Redis (only for modes with a cached lookup surface) ---
	if needsRedis(mode) && cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Prices = redis.NewPriceCache(redisClient)
		deps.Snaps = redis.NewSnapshotCache(redisClient)
	}

	// --- S3 blob storage (only for modes that archive scans) ---
	if needsS3(mode) && cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewScanArchiver(s3blob.NewWriter(s3Client), cfg.Network.Name)
	}

	// --- Price oracle ---
	deps.Oracle = oracle.New("", deps.Prices, oracle.DefaultTTL, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhook))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	deps.Unread = &notify.Counter{}

	// --- Services ---
	deps.Lookup = service.NewLookup(deps.Fetcher, deps.Snaps, deps.Labels,
		cfg.Network.Name,
		service.RetryPolicy{
			Attempts: cfg.Poll.LookupRetryAttempts,
			Delay:    cfg.Poll.RetryDelay(),
		}, logger)
	deps.Stats = service.NewStats(deps.Archive, deps.Scanner, cfg.Network.Name, logger)

	return deps, cleanup, nil
}

func postgresConfigured(cfg *config.Config) bool {
	return cfg.Postgres.DSN != "" || cfg.Postgres.Host != ""
}
