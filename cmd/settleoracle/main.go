// Command settleoracle watches a prediction-market contract and settles
// markets whose reveal deadline has passed. It can also settle one market
// by hand or encrypt the signing key for storage on disk.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/settleoracle/internal/app"
	"github.com/alanyoungcy/settleoracle/internal/config"
	"github.com/alanyoungcy/settleoracle/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	settleMarket := flag.Int64("settle-market", -1, "settle this market id once and exit")
	outcome := flag.String("outcome", "", "outcome label for -settle-market")
	encryptKey := flag.Bool("encrypt-key", false, "encrypt wallet.private_key with wallet.key_password and exit")
	keyOut := flag.String("key-out", "", "with -encrypt-key, write the key file here instead of stdout")
	flag.Parse()

	logger := newLogger("info")
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger = newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if *encryptKey {
		if err := runEncryptKey(cfg, *keyOut); err != nil {
			logger.Error("encrypt key failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.String("config", *configPath),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, logger)
	defer application.Close()

	if *settleMarket >= 0 {
		if *outcome == "" {
			logger.Error("-outcome is required with -settle-market")
			os.Exit(2)
		}
		res, err := application.SettleOnce(ctx, uint64(*settleMarket), *outcome)
		if err != nil {
			logger.Error("manual settlement failed",
				slog.Int64("market_id", *settleMarket),
				slog.String("tx_hash", res.TxHash),
				slog.String("error", err.Error()),
			)
			application.Close()
			os.Exit(1)
		}
		logger.Info("market settled",
			slog.Uint64("market_id", res.MarketID),
			slog.String("outcome", res.Outcome),
			slog.String("tx_hash", res.TxHash),
			slog.Uint64("block", res.BlockNumber),
		)
		return
	}

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("oracle shut down gracefully")
			return
		}
		logger.Error("oracle exited with error", slog.String("error", err.Error()))
		application.Close()
		os.Exit(1)
	}
}

func runEncryptKey(cfg *config.Config, out string) error {
	if cfg.Wallet.PrivateKey == "" || cfg.Wallet.KeyPassword == "" {
		return errors.New("set ORACLE_WALLET_PRIVATE_KEY and ORACLE_WALLET_KEY_PASSWORD")
	}
	if out != "" {
		return crypto.WriteEncryptedKey(out, cfg.Wallet.PrivateKey, cfg.Wallet.KeyPassword)
	}
	data, err := crypto.EncryptKey(cfg.Wallet.PrivateKey, cfg.Wallet.KeyPassword)
	if err != nil {
		return err
	}
	_, err = fmt.Println(string(data))
	return err
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
