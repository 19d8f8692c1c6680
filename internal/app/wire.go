package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	s3blob "github.com/alanyoungcy/settleoracle/internal/blob/s3"
	"github.com/alanyoungcy/settleoracle/internal/cache/redis"
	"github.com/alanyoungcy/settleoracle/internal/chain"
	"github.com/alanyoungcy/settleoracle/internal/config"
	"github.com/alanyoungcy/settleoracle/internal/crypto"
	"github.com/alanyoungcy/settleoracle/internal/domain"
	"github.com/alanyoungcy/settleoracle/internal/notify"
	"github.com/alanyoungcy/settleoracle/internal/platform/coingecko"
	"github.com/alanyoungcy/settleoracle/internal/platform/openai"
	"github.com/alanyoungcy/settleoracle/internal/resolver"
	"github.com/alanyoungcy/settleoracle/internal/scanner"
	"github.com/alanyoungcy/settleoracle/internal/server/handler"
	"github.com/alanyoungcy/settleoracle/internal/service"
	"github.com/alanyoungcy/settleoracle/internal/settlement"
	"github.com/alanyoungcy/settleoracle/internal/store/postgres"
)

// Dependencies bundles everything the oracle needs. Optional backends are
// nil when disabled in config.
type Dependencies struct {
	// Chain
	Eth      *ethclient.Client
	Identity *crypto.Identity
	Reader   *chain.MarketReader
	Tx       *chain.Transactor

	// Pipeline
	Scanner   *scanner.Scanner
	Resolver  *resolver.Chain
	Submitter *settlement.Submitter
	Journal   *service.SettlementService

	// Optional backends
	SettlementStore domain.SettlementStore
	AuditStore      domain.AuditStore
	PriceCache      domain.PriceCache
	LockManager     domain.LockManager
	SignalBus       domain.SignalBus
	Archiver        *s3blob.ReceiptArchiver
	Notifier        *notify.Notifier

	HealthChecks map[string]handler.HealthCheck
}

// Wire builds every dependency from cfg. The returned cleanup releases them
// in reverse order and must be called even when only part of the oracle is
// used.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{HealthChecks: map[string]handler.HealthCheck{}}

	// --- Chain + identity ---
	eth, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	closers = append(closers, eth.Close)
	deps.Eth = eth
	deps.HealthChecks["rpc"] = func(ctx context.Context) error {
		_, err := eth.BlockNumber(ctx)
		return err
	}

	chainID := big.NewInt(cfg.Chain.ChainID)
	if cfg.Chain.ChainID == 0 {
		if chainID, err = eth.ChainID(ctx); err != nil {
			return fail(fmt.Errorf("wire: query chain id: %w", err))
		}
	}

	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: load key: %w", err))
	}
	if deps.Identity, err = crypto.NewIdentity(keyHex, chainID); err != nil {
		return fail(fmt.Errorf("wire: identity: %w", err))
	}

	deps.Reader, err = chain.NewMarketReader(eth, common.HexToAddress(cfg.Chain.MarketAddress), cfg.Chain.CallTimeout.Duration)
	if err != nil {
		return fail(fmt.Errorf("wire: market reader: %w", err))
	}
	deps.Tx, err = chain.NewTransactor(eth, deps.Identity, chain.TransactorConfig{
		OracleAddress:       common.HexToAddress(cfg.Chain.OracleAddress),
		GasLimit:            cfg.Chain.GasLimit,
		CallTimeout:         cfg.Chain.CallTimeout.Duration,
		ReceiptTimeout:      cfg.Chain.ReceiptTimeout.Duration,
		ReceiptPollInterval: cfg.Chain.ReceiptPollInterval.Duration,
	})
	if err != nil {
		return fail(fmt.Errorf("wire: transactor: %w", err))
	}

	// --- PostgreSQL ---
	if cfg.Database.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)

		if cfg.Database.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}
		deps.SettlementStore = postgres.NewSettlementStore(pg.Pool())
		deps.AuditStore = postgres.NewAuditStore(pg.Pool())
		deps.HealthChecks["postgres"] = pg.Ping
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })

		deps.PriceCache = redis.NewPriceCache(rc, 2*cfg.Price.CacheTTL.Duration)
		deps.LockManager = redis.NewLockManager(rc)
		deps.SignalBus = redis.NewSignalBus(rc)
		deps.HealthChecks["redis"] = rc.Ping
	}

	// --- S3 receipts ---
	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewReceiptArchiver(s3blob.NewWriter(sc))
		deps.HealthChecks["s3"] = sc.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Signal providers + resolver chain ---
	cg := coingecko.ClientConfigDefaults()
	cg.APIKey = cfg.Price.APIKey
	cg.BaseURL = cfg.Price.BaseURL
	cg.Timeout = cfg.Price.Timeout.Duration
	cg.RateLimitPerMin = cfg.Price.RateLimitPerMin
	if len(cfg.Price.Symbols) > 0 {
		cg.Symbols = cfg.Price.Symbols
	}
	cg.Logger = logger
	prices := service.NewPriceService(coingecko.NewClient(cg), deps.PriceCache, cfg.Price.CacheTTL.Duration, logger)

	reasoning := openai.NewClient(openai.ClientConfig{
		APIKey:  cfg.Reasoning.APIKey,
		BaseURL: cfg.Reasoning.BaseURL,
		Model:   cfg.Reasoning.Model,
		Timeout: cfg.Reasoning.Timeout.Duration,
		Logger:  logger,
	})
	if !reasoning.Configured() {
		logger.Warn("reasoning provider has no API key, questions it would answer fall back")
	}

	deps.Resolver = resolver.NewChain(logger,
		resolver.NewPriceThreshold(prices, cfg.Price.TrackedTickers),
		resolver.NewReasoning(reasoning, cfg.Reasoning.CaseInsensitiveMatch),
	)
	deps.Scanner = scanner.New(deps.Reader, logger)
	deps.Submitter = settlement.NewSubmitter(deps.Tx, logger)

	journal := service.SettlementDeps{
		Store:    deps.SettlementStore,
		Audit:    deps.AuditStore,
		Bus:      deps.SignalBus,
		Channel:  redis.SettlementChannel,
		Stream:   redis.SettlementStream,
		Notifier: deps.Notifier,
	}
	// A nil *ReceiptArchiver in the interface would not compare equal to nil.
	if deps.Archiver != nil {
		journal.Archiver = deps.Archiver
	}
	deps.Journal = service.NewSettlementService(journal, logger)

	return deps, cleanup, nil
}
