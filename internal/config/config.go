// Package config defines the top-level configuration for the settlement
// oracle and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ORACLE_* environment variables.
type Config struct {
	Chain     ChainConfig     `toml:"chain"`
	Wallet    WalletConfig    `toml:"wallet"`
	Price     PriceConfig     `toml:"price"`
	Reasoning ReasoningConfig `toml:"reasoning"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	LogLevel  string          `toml:"log_level"`
}

// ChainConfig holds the RPC endpoint, contract addresses and transaction
// parameters.
type ChainConfig struct {
	RPCURL        string `toml:"rpc_url"`
	ChainID       int64  `toml:"chain_id"` // 0 = ask the node
	MarketAddress string `toml:"market_address"`
	OracleAddress string `toml:"oracle_address"`
	GasLimit      uint64 `toml:"gas_limit"`

	CallTimeout         duration `toml:"call_timeout"`
	ReceiptTimeout      duration `toml:"receipt_timeout"`
	ReceiptPollInterval duration `toml:"receipt_poll_interval"`
}

// WalletConfig holds the oracle signing credential.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PriceConfig holds the CoinGecko price feed parameters.
type PriceConfig struct {
	BaseURL         string   `toml:"base_url"`
	APIKey          string   `toml:"api_key"`
	Timeout         duration `toml:"timeout"`
	RateLimitPerMin int      `toml:"rate_limit_per_min"`
	CacheTTL        duration `toml:"cache_ttl"`
	// Symbols maps lower-case tickers to CoinGecko coin ids.
	Symbols map[string]string `toml:"symbols"`
	// TrackedTickers are the tickers the price-threshold resolver looks for
	// in market questions.
	TrackedTickers []string `toml:"tracked_tickers"`
}

// ReasoningConfig holds the chat-completions endpoint used as the second
// resolver.
type ReasoningConfig struct {
	APIKey  string   `toml:"api_key"`
	BaseURL string   `toml:"base_url"`
	Model   string   `toml:"model"`
	Timeout duration `toml:"timeout"`
	// CaseInsensitiveMatch accepts "yes" for the label "Yes".
	CaseInsensitiveMatch bool `toml:"case_insensitive_match"`
}

// SchedulerConfig controls the polling cadence.
type SchedulerConfig struct {
	PollInterval    duration `toml:"poll_interval"`
	BackoffInterval duration `toml:"backoff_interval"`
	LockTTL         duration `toml:"lock_ttl"`
	// JournalTimeout bounds each settlement journal write.
	JournalTimeout  duration `toml:"journal_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters for the settlement
// journal.
type DatabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP status server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:              "https://testnet-rpc.monad.xyz/",
			GasLimit:            2_000_000,
			CallTimeout:         duration{10 * time.Second},
			ReceiptTimeout:      duration{2 * time.Minute},
			ReceiptPollInterval: duration{2 * time.Second},
		},
		Price: PriceConfig{
			BaseURL:         "https://api.coingecko.com/api/v3",
			Timeout:         duration{10 * time.Second},
			RateLimitPerMin: 25,
			CacheTTL:        duration{15 * time.Second},
			Symbols: map[string]string{
				"btc": "bitcoin",
				"eth": "ethereum",
				"mon": "monad",
			},
			TrackedTickers: []string{"BTC", "ETH", "MON"},
		},
		Reasoning: ReasoningConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4-turbo",
			Timeout: duration{30 * time.Second},
		},
		Scheduler: SchedulerConfig{
			PollInterval:    duration{10 * time.Second},
			BackoffInterval: duration{5 * time.Second},
			LockTTL:         duration{5 * time.Minute},
			JournalTimeout:  duration{15 * time.Second},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "settleoracle",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Notify: NotifyConfig{
			Events: []string{"settlement_confirmed", "settlement_rejected", "settlement_unknown", "cycle_error"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if !common.IsHexAddress(c.Chain.MarketAddress) {
		errs = append(errs, fmt.Sprintf("chain: market_address %q is not a hex address", c.Chain.MarketAddress))
	}
	if !common.IsHexAddress(c.Chain.OracleAddress) {
		errs = append(errs, fmt.Sprintf("chain: oracle_address %q is not a hex address", c.Chain.OracleAddress))
	}
	if c.Chain.ChainID < 0 {
		errs = append(errs, "chain: chain_id must be >= 0")
	}
	if c.Chain.GasLimit == 0 {
		errs = append(errs, "chain: gas_limit must be > 0")
	}
	if c.Chain.CallTimeout.Duration <= 0 {
		errs = append(errs, "chain: call_timeout must be > 0")
	}
	if c.Chain.ReceiptTimeout.Duration <= 0 {
		errs = append(errs, "chain: receipt_timeout must be > 0")
	}
	if c.Chain.ReceiptPollInterval.Duration <= 0 {
		errs = append(errs, "chain: receipt_poll_interval must be > 0")
	}

	// Wallet: the oracle cannot sign without a key.
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Price
	if c.Price.BaseURL == "" {
		errs = append(errs, "price: base_url must not be empty")
	}
	if c.Price.Timeout.Duration <= 0 {
		errs = append(errs, "price: timeout must be > 0")
	}
	if c.Price.RateLimitPerMin < 1 {
		errs = append(errs, "price: rate_limit_per_min must be >= 1")
	}

	// Reasoning: the API key is optional, without it the resolver abstains.
	if c.Reasoning.Timeout.Duration <= 0 {
		errs = append(errs, "reasoning: timeout must be > 0")
	}
	if c.Reasoning.APIKey != "" && c.Reasoning.Model == "" {
		errs = append(errs, "reasoning: model must be set when api_key is set")
	}

	// Scheduler
	if c.Scheduler.PollInterval.Duration <= 0 {
		errs = append(errs, "scheduler: poll_interval must be > 0")
	}
	if c.Scheduler.BackoffInterval.Duration <= 0 {
		errs = append(errs, "scheduler: backoff_interval must be > 0")
	}
	if c.Scheduler.JournalTimeout.Duration <= 0 {
		errs = append(errs, "scheduler: journal_timeout must be > 0")
	}

	// Database
	if c.Database.Enabled {
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
		}
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
