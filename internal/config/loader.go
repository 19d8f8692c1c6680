package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ORACLE_* environment variable overrides, and
// returns the final Config. A missing file is not an error: an oracle can be
// configured from the environment alone. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known environment variables and overwrites the
// corresponding Config fields when a variable is set (i.e. not empty). The
// un-prefixed names are the ones the original deployment scripts export.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "MONAD_RPC_URL") // compatibility alias
	setStr(&cfg.Chain.RPCURL, "ORACLE_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "ORACLE_CHAIN_ID")
	setStr(&cfg.Chain.MarketAddress, "PREDICTION_MARKET_ADDRESS") // compatibility alias
	setStr(&cfg.Chain.MarketAddress, "ORACLE_CHAIN_MARKET_ADDRESS")
	setStr(&cfg.Chain.OracleAddress, "CRE_ORACLE_ADDRESS") // compatibility alias
	setStr(&cfg.Chain.OracleAddress, "ORACLE_CHAIN_ORACLE_ADDRESS")
	setUint64(&cfg.Chain.GasLimit, "ORACLE_CHAIN_GAS_LIMIT")
	setDuration(&cfg.Chain.CallTimeout, "ORACLE_CHAIN_CALL_TIMEOUT")
	setDuration(&cfg.Chain.ReceiptTimeout, "ORACLE_CHAIN_RECEIPT_TIMEOUT")
	setDuration(&cfg.Chain.ReceiptPollInterval, "ORACLE_CHAIN_RECEIPT_POLL_INTERVAL")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "PRIVATE_KEY") // compatibility alias
	setStr(&cfg.Wallet.PrivateKey, "ORACLE_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "ORACLE_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "ORACLE_WALLET_KEY_PASSWORD")

	// ── Price ──
	setStr(&cfg.Price.BaseURL, "ORACLE_PRICE_BASE_URL")
	setStr(&cfg.Price.APIKey, "COINGECKO_API_KEY") // compatibility alias
	setStr(&cfg.Price.APIKey, "ORACLE_PRICE_API_KEY")
	setDuration(&cfg.Price.Timeout, "ORACLE_PRICE_TIMEOUT")
	setInt(&cfg.Price.RateLimitPerMin, "ORACLE_PRICE_RATE_LIMIT_PER_MIN")
	setDuration(&cfg.Price.CacheTTL, "ORACLE_PRICE_CACHE_TTL")
	setStringSlice(&cfg.Price.TrackedTickers, "ORACLE_PRICE_TRACKED_TICKERS")

	// ── Reasoning ──
	setStr(&cfg.Reasoning.APIKey, "OPENAI_API_KEY") // compatibility alias
	setStr(&cfg.Reasoning.APIKey, "ORACLE_REASONING_API_KEY")
	setStr(&cfg.Reasoning.BaseURL, "ORACLE_REASONING_BASE_URL")
	setStr(&cfg.Reasoning.Model, "ORACLE_REASONING_MODEL")
	setDuration(&cfg.Reasoning.Timeout, "ORACLE_REASONING_TIMEOUT")
	setBool(&cfg.Reasoning.CaseInsensitiveMatch, "ORACLE_REASONING_CASE_INSENSITIVE_MATCH")

	// ── Scheduler ──
	setDuration(&cfg.Scheduler.PollInterval, "ORACLE_SCHEDULER_POLL_INTERVAL")
	setDuration(&cfg.Scheduler.BackoffInterval, "ORACLE_SCHEDULER_BACKOFF_INTERVAL")
	setDuration(&cfg.Scheduler.LockTTL, "ORACLE_SCHEDULER_LOCK_TTL")
	setDuration(&cfg.Scheduler.JournalTimeout, "ORACLE_SCHEDULER_JOURNAL_TIMEOUT")

	// ── Database ──
	setBool(&cfg.Database.Enabled, "ORACLE_DATABASE_ENABLED")
	setStr(&cfg.Database.DSN, "ORACLE_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "ORACLE_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ORACLE_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ORACLE_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "ORACLE_DATABASE_USER")
	setStr(&cfg.Database.Password, "ORACLE_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ORACLE_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "ORACLE_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ORACLE_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ORACLE_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ORACLE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ORACLE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ORACLE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ORACLE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ORACLE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ORACLE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ORACLE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ORACLE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ORACLE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ORACLE_S3_REGION")
	setStr(&cfg.S3.Bucket, "ORACLE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ORACLE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ORACLE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ORACLE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ORACLE_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ORACLE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ORACLE_SERVER_PORT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ORACLE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ORACLE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ORACLE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ORACLE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ORACLE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
