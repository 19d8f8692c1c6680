package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

// PriceService serves USD prices from the price cache while they are fresh
// and falls back to the upstream provider otherwise.
type PriceService struct {
	provider domain.PriceProvider
	cache    domain.PriceCache
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewPriceService creates a PriceService. cache may be nil, in which case
// every call goes to the provider.
func NewPriceService(
	provider domain.PriceProvider,
	cache domain.PriceCache,
	ttl time.Duration,
	logger *slog.Logger,
) *PriceService {
	return &PriceService{
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "price_service")),
	}
}

// GetPrice returns the price of symbol. Cache failures never fail the call.
func (s *PriceService) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if s.cache != nil && s.ttl > 0 {
		price, ts, err := s.cache.GetPrice(ctx, symbol)
		switch {
		case err == nil && s.now().Sub(ts) < s.ttl:
			s.logger.DebugContext(ctx, "price cache hit", slog.String("symbol", symbol))
			return price, nil
		case err != nil && !errors.Is(err, domain.ErrNotFound):
			s.logger.WarnContext(ctx, "price cache read failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}

	price, err := s.provider.GetPrice(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("price_service: get price %s: %w", symbol, err)
	}

	if s.cache != nil {
		if err := s.cache.SetPrice(ctx, symbol, price, s.now()); err != nil {
			s.logger.WarnContext(ctx, "price cache write failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}
	}
	return price, nil
}

var _ domain.PriceProvider = (*PriceService)(nil)
