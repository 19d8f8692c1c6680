// Package app wires the settlement oracle together and runs it: the engine
// loop plus the optional status server, or a single manual settlement.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/settleoracle/internal/cache/redis"
	"github.com/alanyoungcy/settleoracle/internal/config"
	"github.com/alanyoungcy/settleoracle/internal/domain"
	"github.com/alanyoungcy/settleoracle/internal/engine"
	"github.com/alanyoungcy/settleoracle/internal/server"
	"github.com/alanyoungcy/settleoracle/internal/server/handler"
)

// ManualStrategy is the strategy name recorded for operator settlements.
const ManualStrategy = "manual"

// App owns the configuration, logger and the cleanup functions registered
// while wiring.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates an App.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

func (a *App) wire(ctx context.Context) (*Dependencies, error) {
	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	return deps, nil
}

// Run starts the oracle and blocks until ctx is cancelled or the status
// server fails.
func (a *App) Run(ctx context.Context) error {
	deps, err := a.wire(ctx)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "oracle starting",
		slog.String("signer", deps.Identity.Address().Hex()),
		slog.String("chain_id", deps.Identity.ChainID().String()),
		slog.String("market", a.cfg.Chain.MarketAddress),
		slog.String("oracle", a.cfg.Chain.OracleAddress),
		slog.Any("strategies", deps.Resolver.Names()),
	)

	engCfg := engine.Config{
		PollInterval:    a.cfg.Scheduler.PollInterval.Duration,
		BackoffInterval: a.cfg.Scheduler.BackoffInterval.Duration,
		LockTTL:         a.cfg.Scheduler.LockTTL.Duration,
		JournalTimeout:  a.cfg.Scheduler.JournalTimeout.Duration,
	}
	if deps.LockManager != nil {
		market := a.cfg.Chain.MarketAddress
		engCfg.Locks = deps.LockManager
		engCfg.LockKey = func(id uint64) string { return redis.SettleLockKey(market, id) }
	}
	eng := engine.New(deps.Scanner, deps.Resolver, deps.Submitter, deps.Journal, engCfg, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := eng.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("engine: %w", err)
		}
		return nil
	})

	if a.cfg.Server.Enabled {
		a.startStatusServer(gctx, g, deps)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (a *App) startStatusServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.Identity.Address().Hex(), deps.HealthChecks, a.logger),
	}
	if deps.SettlementStore != nil {
		handlers.Settlements = handler.NewSettlementHandler(deps.SettlementStore, a.logger)
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditHandler(deps.AuditStore, a.logger)
	}
	srv := server.NewServer(server.Config{Port: a.cfg.Server.Port}, handlers, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// SettleOnce submits a single operator-chosen outcome for marketID, records
// it in the journal and returns the result. The market must be unsettled and
// outcome must be one of its labels.
func (a *App) SettleOnce(ctx context.Context, marketID uint64, outcome string) (domain.Settlement, error) {
	deps, err := a.wire(ctx)
	if err != nil {
		return domain.Settlement{}, err
	}

	m, err := deps.Reader.GetMarket(ctx, marketID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("app: read market %d: %w", marketID, err)
	}
	if m.Settled {
		return domain.Settlement{}, fmt.Errorf("app: market %d already settled: %w", marketID, domain.ErrNotEligible)
	}
	outcomes, err := deps.Reader.GetMarketOutcomes(ctx, marketID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("app: read outcomes %d: %w", marketID, err)
	}
	if !slices.Contains(outcomes, outcome) {
		return domain.Settlement{}, fmt.Errorf("app: outcome %q not in %q: %w", outcome, outcomes, domain.ErrNotEligible)
	}

	a.logger.InfoContext(ctx, "manual settlement",
		slog.Uint64("market_id", marketID),
		slog.String("outcome", outcome),
		slog.String("signer", deps.Identity.Address().Hex()),
	)
	res := deps.Submitter.Submit(ctx, marketID, outcome)
	res.Strategy = ManualStrategy
	jctx, cancel := context.WithTimeout(ctx, a.cfg.Scheduler.JournalTimeout.Duration)
	_ = deps.Journal.Record(jctx, res)
	cancel()

	switch {
	case res.Err != nil:
		return res, fmt.Errorf("app: settlement %s: %w", res.Status, res.Err)
	case res.Status != domain.SettlementConfirmed:
		return res, fmt.Errorf("app: settlement %s", res.Status)
	}
	return res, nil
}

// Close runs cleanup functions in reverse order. Safe to call twice.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
