// Package scanner enumerates markets that are ready to be settled.
package scanner

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

// Scanner walks every market id on each call. It keeps no state between
// scans.
type Scanner struct {
	reader domain.MarketReader
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// New creates a Scanner.
func New(reader domain.MarketReader, logger *slog.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		reader: reader,
		logger: logger.With(slog.String("component", "scanner")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan reads the market count and returns a lazy sequence of markets that are
// unsettled, past their reveal deadline, and have outcomes populated. Only the
// count read can fail the scan; per-market read errors are logged and the
// market is skipped. The sequence stops early when ctx is done.
func (s *Scanner) Scan(ctx context.Context) (iter.Seq[domain.Market], error) {
	count, err := s.reader.MarketCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: market count: %w", err)
	}
	s.logger.Debug("scan started", slog.Uint64("market_count", count))

	return func(yield func(domain.Market) bool) {
		for id := uint64(0); id < count; id++ {
			if ctx.Err() != nil {
				return
			}
			m, ok := s.load(ctx, id)
			if !ok {
				continue
			}
			if !yield(m) {
				return
			}
		}
	}, nil
}

// load fetches one market and reports whether it is eligible.
func (s *Scanner) load(ctx context.Context, id uint64) (domain.Market, bool) {
	m, err := s.reader.GetMarket(ctx, id)
	if err != nil {
		s.logger.Warn("market read failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		return domain.Market{}, false
	}
	// The struct getter echoes the id; trust the index we asked for.
	m.ID = id

	if !m.ReadyForSettlement(s.now()) {
		return domain.Market{}, false
	}

	outcomes, err := s.reader.GetMarketOutcomes(ctx, id)
	if err != nil {
		s.logger.Warn("outcome read failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		return domain.Market{}, false
	}
	if len(outcomes) == 0 {
		s.logger.Warn("market has no outcomes", slog.Uint64("market_id", id))
		return domain.Market{}, false
	}
	m.Outcomes = outcomes
	return m, true
}
