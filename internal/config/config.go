// Package config defines the top-level configuration for betwatch and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by BETWATCH_* environment
// variables.
type Config struct {
	Network  NetworkConfig  `toml:"network"`
	Scan     ScanConfig     `toml:"scan"`
	Poll     PollConfig     `toml:"poll"`
	Wallet   WalletConfig   `toml:"wallet"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// NetworkConfig selects the chain and the two escrow contracts. Either
// contract address may be empty, in which case that variant is skipped
// everywhere (scans, polling, dispatch).
type NetworkConfig struct {
	Name              string `toml:"name"`
	ChainID           int64  `toml:"chain_id"`
	RPCEndpoint       string `toml:"rpc_endpoint"`
	ChallengeContract string `toml:"challenge_contract"`
	OfferContract     string `toml:"offer_contract"`
}

// ScanConfig bounds the historical log walks. The window is a cost tradeoff,
// not a correctness guarantee: bets older than WindowBlocks are invisible to
// discovery.
type ScanConfig struct {
	WindowBlocks         uint64 `toml:"window_blocks"`
	ChunkBlocks          uint64 `toml:"chunk_blocks"`
	BaselineWindowBlocks uint64 `toml:"baseline_window_blocks"`
	TrendingWindowBlocks uint64 `toml:"trending_window_blocks"`
}

// PollConfig holds the steady-polling cadence and the bounded retry policy
// for user-initiated lookups.
type PollConfig struct {
	IntervalSeconds     int `toml:"interval_seconds"`
	LookupRetryAttempts int `toml:"lookup_retry_attempts"`
	LookupRetryDelayMS  int `toml:"lookup_retry_delay_ms"`
}

// Interval returns the polling interval as a duration.
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// RetryDelay returns the lookup retry delay as a duration.
func (p PollConfig) RetryDelay() time.Duration {
	return time.Duration(p.LookupRetryDelayMS) * time.Millisecond
}

// WalletConfig holds the watch address and, for dispatch, the signing key.
// Address alone is enough for watch/scan modes; dispatching write calls
// requires a key (raw hex or an encrypted key file).
type WalletConfig struct {
	Address          string `toml:"address"`
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for the bet archive
// and label stores.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for the scan
// archiver.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials. Events filters which
// event kinds are forwarded; empty means all.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	DiscordWebhook string   `toml:"discord_webhook"`
	Events         []string `toml:"events"`
}

// ServerConfig holds the HTTP/WebSocket API server configuration.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// Defaults returns a Config populated with sane defaults for Base mainnet.
func Defaults() Config {
	return Config{
		Network: NetworkConfig{
			Name:        "base",
			ChainID:     8453,
			RPCEndpoint: "https://mainnet.base.org",
		},
		Scan: ScanConfig{
			WindowBlocks:         100_000,
			ChunkBlocks:          9_999,
			BaselineWindowBlocks: 50_000,
			TrendingWindowBlocks: 25_000,
		},
		Poll: PollConfig{
			IntervalSeconds:     30,
			LookupRetryAttempts: 2,
			LookupRetryDelayMS:  1500,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Postgres: PostgresConfig{
			SSLMode: "disable",
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Mode:     "watch",
		LogLevel: "info",
	}
}

// Validate checks the configuration for the selected mode and returns a
// descriptive error for the first problem found.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "watch", "scan", "lookup", "serve":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if c.Network.RPCEndpoint == "" {
		return fmt.Errorf("config: network.rpc_endpoint is required")
	}
	if c.Network.ChainID <= 0 {
		return fmt.Errorf("config: network.chain_id must be positive")
	}
	if c.Network.ChallengeContract == "" && c.Network.OfferContract == "" {
		return fmt.Errorf("config: at least one of network.challenge_contract / network.offer_contract is required")
	}
	for _, addr := range []string{c.Network.ChallengeContract, c.Network.OfferContract} {
		if addr != "" && !isHexAddress(addr) {
			return fmt.Errorf("config: %q is not a hex contract address", addr)
		}
	}

	if c.Scan.ChunkBlocks == 0 {
		return fmt.Errorf("config: scan.chunk_blocks must be positive")
	}
	if c.Scan.WindowBlocks == 0 {
		return fmt.Errorf("config: scan.window_blocks must be positive")
	}
	if c.Poll.IntervalSeconds <= 0 {
		return fmt.Errorf("config: poll.interval_seconds must be positive")
	}

	if c.Wallet.Address != "" && !isHexAddress(c.Wallet.Address) {
		return fmt.Errorf("config: wallet.address is not a hex address")
	}

	switch strings.ToLower(c.Mode) {
	case "watch", "serve":
		if c.Wallet.Address == "" && c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			return fmt.Errorf("config: watch modes need wallet.address or a signing key")
		}
	}
	return nil
}

func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, r := range s[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
