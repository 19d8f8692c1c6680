// Package engine runs the oracle's scan, resolve and submit loop.
package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/settleoracle/internal/domain"
	"github.com/alanyoungcy/settleoracle/internal/metrics"
)

// Scanner lists markets ready for settlement.
type Scanner interface {
	Scan(ctx context.Context) (iter.Seq[domain.Market], error)
}

// Resolver picks an outcome and names the strategy that picked it.
type Resolver interface {
	Resolve(ctx context.Context, attempt domain.ResolutionAttempt) (outcome, strategy string, err error)
}

// Submitter sends a settlement and classifies the result.
type Submitter interface {
	Submit(ctx context.Context, marketID uint64, outcome string) domain.Settlement
}

// Journal records settlement results and cycle failures.
type Journal interface {
	Record(ctx context.Context, s domain.Settlement) error
	RecordCycleError(ctx context.Context, err error) error
}

// Config holds loop timing and the optional cross-process lock.
type Config struct {
	PollInterval    time.Duration
	BackoffInterval time.Duration

	// Locks guards each submission when set. LockKey names the lock for a
	// market id.
	Locks   domain.LockManager
	LockKey func(marketID uint64) string
	LockTTL time.Duration

	// JournalTimeout bounds every journal call so a hung sink cannot hold up
	// the loop.
	JournalTimeout time.Duration
}

// CycleReport summarises one cycle.
type CycleReport struct {
	Eligible  int
	Confirmed int
	Rejected  int
	Unknown   int
	Skipped   int
	Failed    int
}

// Engine drives the oracle. Markets are handled one at a time so that nonces
// obtained by the submitter never collide.
type Engine struct {
	scanner   Scanner
	resolver  Resolver
	submitter Submitter
	journal   Journal
	cfg       Config
	logger    *slog.Logger

	after func(time.Duration) <-chan time.Time
}

// New creates an Engine. journal may be nil.
func New(scanner Scanner, resolver Resolver, submitter Submitter, journal Journal, cfg Config, logger *slog.Logger) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.BackoffInterval <= 0 {
		cfg.BackoffInterval = 5 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.JournalTimeout <= 0 {
		cfg.JournalTimeout = 15 * time.Second
	}
	return &Engine{
		scanner:   scanner,
		resolver:  resolver,
		submitter: submitter,
		journal:   journal,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "engine")),
		after:     time.After,
	}
}

// Run cycles until ctx is cancelled. A failed cycle is followed by the
// backoff interval instead of the poll interval.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine started",
		slog.Duration("poll_interval", e.cfg.PollInterval),
		slog.Duration("backoff_interval", e.cfg.BackoffInterval),
		slog.Bool("locking", e.cfg.Locks != nil),
	)

	for {
		wait := e.cfg.PollInterval
		if _, err := e.RunCycle(ctx); err != nil && ctx.Err() == nil {
			wait = e.cfg.BackoffInterval
			e.logger.Error("cycle failed",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", wait),
			)
			e.journalCycleError(ctx, err)
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopped")
			return ctx.Err()
		case <-e.after(wait):
		}
	}
}

// RunCycle scans once and settles every eligible market. Only a failed or
// panicking scan is returned; everything that goes wrong for one market is
// logged and counted in the report.
func (e *Engine) RunCycle(ctx context.Context) (report CycleReport, err error) {
	start := time.Now()
	defer func() { metrics.CycleDuration.Observe(time.Since(start).Seconds()) }()
	defer func() {
		if rec := recover(); rec != nil {
			metrics.CyclesTotal.WithLabelValues("error").Inc()
			err = fmt.Errorf("engine: scan panicked: %v", rec)
		}
	}()

	markets, err := e.scanner.Scan(ctx)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return report, fmt.Errorf("engine: scan: %w", err)
	}

	seen := make(map[uint64]struct{})
	for m := range markets {
		if _, dup := seen[m.ID]; dup {
			report.Skipped++
			continue
		}
		seen[m.ID] = struct{}{}
		report.Eligible++

		st, ok := e.processMarket(ctx, m)
		switch {
		case !ok:
			report.Failed++
		case st == nil:
			report.Skipped++
		case st.Status == domain.SettlementConfirmed:
			report.Confirmed++
		case st.Status == domain.SettlementRejected:
			report.Rejected++
		default:
			report.Unknown++
		}
	}

	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	metrics.EligibleMarkets.Set(float64(report.Eligible))
	if report.Eligible > 0 {
		e.logger.Info("cycle complete",
			slog.Int("eligible", report.Eligible),
			slog.Int("confirmed", report.Confirmed),
			slog.Int("rejected", report.Rejected),
			slog.Int("unknown", report.Unknown),
			slog.Int("skipped", report.Skipped),
			slog.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// processMarket resolves and settles m. A nil settlement with ok=true means
// the market was skipped; ok=false means processing failed or panicked.
func (e *Engine) processMarket(ctx context.Context, m domain.Market) (st *domain.Settlement, ok bool) {
	attempt := domain.ResolutionAttempt{
		ID:       uuid.NewString(),
		MarketID: m.ID,
		Question: m.Question,
		Outcomes: m.Outcomes,
	}
	log := e.logger.With(
		slog.String("attempt_id", attempt.ID),
		slog.Uint64("market_id", m.ID),
	)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("market processing panicked", slog.Any("panic", rec))
			st, ok = nil, false
		}
	}()

	outcome, strategy, err := e.resolver.Resolve(ctx, attempt)
	if err != nil {
		log.Warn("market not resolved", slog.String("error", err.Error()))
		return nil, false
	}
	attempt.Outcome, attempt.Strategy = outcome, strategy
	metrics.ResolutionsTotal.WithLabelValues(strategy).Inc()

	if e.cfg.Locks != nil && e.cfg.LockKey != nil {
		unlock, err := e.cfg.Locks.Acquire(ctx, e.cfg.LockKey(m.ID), e.cfg.LockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			log.Info("market locked by another oracle, skipping")
			return nil, true
		case err != nil:
			// A duplicate submission only reverts, so a lock outage must not
			// stall settlement.
			log.Warn("settle lock unavailable, submitting unguarded", slog.String("error", err.Error()))
		default:
			defer unlock()
		}
	}

	res := e.submitter.Submit(ctx, m.ID, attempt.Outcome)
	res.Strategy = attempt.Strategy
	metrics.SettlementsTotal.WithLabelValues(string(res.Status)).Inc()

	if e.journal != nil {
		jctx, cancel := context.WithTimeout(ctx, e.cfg.JournalTimeout)
		// The journal logs its own sink failures.
		_ = e.journal.Record(jctx, res)
		cancel()
	}
	return &res, true
}

func (e *Engine) journalCycleError(ctx context.Context, cycleErr error) {
	if e.journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(ctx, e.cfg.JournalTimeout)
	defer cancel()
	if err := e.journal.RecordCycleError(jctx, cycleErr); err != nil {
		e.logger.Warn("cycle error not journaled", slog.String("error", err.Error()))
	}
}
