package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BETWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load. A missing file is not an
// error: defaults plus environment overrides are still usable.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known BETWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Network ──
	setStr(&cfg.Network.Name, "BETWATCH_NETWORK_NAME")
	setInt64(&cfg.Network.ChainID, "BETWATCH_NETWORK_CHAIN_ID")
	setStr(&cfg.Network.RPCEndpoint, "BETWATCH_NETWORK_RPC_ENDPOINT")
	setStr(&cfg.Network.ChallengeContract, "BETWATCH_NETWORK_CHALLENGE_CONTRACT")
	setStr(&cfg.Network.OfferContract, "BETWATCH_NETWORK_OFFER_CONTRACT")

	// ── Scan / poll ──
	setUint64(&cfg.Scan.WindowBlocks, "BETWATCH_SCAN_WINDOW_BLOCKS")
	setUint64(&cfg.Scan.ChunkBlocks, "BETWATCH_SCAN_CHUNK_BLOCKS")
	setUint64(&cfg.Scan.BaselineWindowBlocks, "BETWATCH_SCAN_BASELINE_WINDOW_BLOCKS")
	setUint64(&cfg.Scan.TrendingWindowBlocks, "BETWATCH_SCAN_TRENDING_WINDOW_BLOCKS")
	setInt(&cfg.Poll.IntervalSeconds, "BETWATCH_POLL_INTERVAL_SECONDS")
	setInt(&cfg.Poll.LookupRetryAttempts, "BETWATCH_POLL_LOOKUP_RETRY_ATTEMPTS")
	setInt(&cfg.Poll.LookupRetryDelayMS, "BETWATCH_POLL_LOOKUP_RETRY_DELAY_MS")

	// ── Wallet ──
	setStr(&cfg.Wallet.Address, "BETWATCH_WALLET_ADDRESS")
	setStr(&cfg.Wallet.PrivateKey, "BETWATCH_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "BETWATCH_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "BETWATCH_WALLET_KEY_PASSWORD")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BETWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BETWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BETWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BETWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BETWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BETWATCH_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "BETWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BETWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BETWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BETWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BETWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BETWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BETWATCH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BETWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BETWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BETWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BETWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BETWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "BETWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BETWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BETWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BETWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BETWATCH_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BETWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BETWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhook, "BETWATCH_NOTIFY_DISCORD_WEBHOOK")
	if v := os.Getenv("BETWATCH_NOTIFY_EVENTS"); v != "" {
		cfg.Notify.Events = splitCSV(v)
	}

	// ── Server / mode ──
	setInt(&cfg.Server.Port, "BETWATCH_SERVER_PORT")
	if v := os.Getenv("BETWATCH_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitCSV(v)
	}
	setStr(&cfg.Mode, "BETWATCH_MODE")
	setStr(&cfg.LogLevel, "BETWATCH_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
