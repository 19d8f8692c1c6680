package domain

import "context"

// MarketReader reads prediction-market state from chain.
type MarketReader interface {
	MarketCount(ctx context.Context) (uint64, error)
	GetMarket(ctx context.Context, id uint64) (Market, error)
	GetMarketOutcomes(ctx context.Context, id uint64) ([]string, error)
}

// PriceProvider returns the current USD price for an asset symbol. Errors
// wrap ErrUnavailable when the price cannot be obtained.
type PriceProvider interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// ReasoningProvider answers a market question with free text. The outcomes
// are passed so the provider can constrain its instruction to them.
type ReasoningProvider interface {
	Ask(ctx context.Context, question string, outcomes []string) (string, error)
}
