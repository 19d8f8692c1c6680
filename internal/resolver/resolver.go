// Package resolver decides a market outcome by running an ordered chain of
// strategies. The first strategy that returns a valid outcome label wins.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

// ErrAbstain is returned by a Resolver that does not apply to the market.
var ErrAbstain = errors.New("resolver: abstain")

// Resolver is one strategy in the chain.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, attempt domain.ResolutionAttempt) (string, error)
}

// Chain runs resolvers in order.
type Chain struct {
	resolvers []Resolver
	logger    *slog.Logger
}

// NewChain builds a chain. A Fallback is appended when the last resolver is
// not already one, so the chain always produces an outcome for a market with
// at least one label.
func NewChain(logger *slog.Logger, resolvers ...Resolver) *Chain {
	if len(resolvers) == 0 {
		resolvers = append(resolvers, Fallback{})
	} else if _, ok := resolvers[len(resolvers)-1].(Fallback); !ok {
		resolvers = append(resolvers, Fallback{})
	}
	return &Chain{
		resolvers: resolvers,
		logger:    logger.With(slog.String("component", "resolver")),
	}
}

// Names lists the strategies in evaluation order.
func (c *Chain) Names() []string {
	out := make([]string, len(c.resolvers))
	for i, r := range c.resolvers {
		out[i] = r.Name()
	}
	return out
}

// Resolve returns an outcome that is a member of attempt.Outcomes together
// with the name of the strategy that produced it. Errors and panics in a
// strategy count as abstention. The only error returned is
// domain.ErrNoOutcomes.
func (c *Chain) Resolve(ctx context.Context, attempt domain.ResolutionAttempt) (string, string, error) {
	if len(attempt.Outcomes) == 0 {
		return "", "", domain.ErrNoOutcomes
	}

	for _, r := range c.resolvers {
		outcome, err := c.try(ctx, r, attempt)
		switch {
		case errors.Is(err, ErrAbstain):
			c.logger.Debug("strategy abstained",
				slog.String("attempt_id", attempt.ID),
				slog.Uint64("market_id", attempt.MarketID),
				slog.String("strategy", r.Name()),
				slog.String("reason", err.Error()),
			)
			continue
		case err != nil:
			c.logger.Warn("strategy failed",
				slog.String("attempt_id", attempt.ID),
				slog.Uint64("market_id", attempt.MarketID),
				slog.String("strategy", r.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		if !attempt.HasOutcome(outcome) {
			c.logger.Warn("strategy returned unknown outcome",
				slog.String("attempt_id", attempt.ID),
				slog.Uint64("market_id", attempt.MarketID),
				slog.String("strategy", r.Name()),
				slog.String("outcome", outcome),
			)
			continue
		}

		c.logger.Info("market resolved",
			slog.String("attempt_id", attempt.ID),
			slog.Uint64("market_id", attempt.MarketID),
			slog.String("strategy", r.Name()),
			slog.String("outcome", outcome),
		)
		return outcome, r.Name(), nil
	}

	// Unreachable while Fallback is last, kept so the contract holds for
	// any resolver list.
	return attempt.Outcomes[0], Fallback{}.Name(), nil
}

func (c *Chain) try(ctx context.Context, r Resolver, attempt domain.ResolutionAttempt) (outcome string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("resolver: %s panicked: %v", r.Name(), rec)
		}
	}()
	return r.Resolve(ctx, attempt)
}

// Fallback returns the first outcome label.
type Fallback struct{}

// Name implements Resolver.
func (Fallback) Name() string { return "fallback" }

// Resolve implements Resolver.
func (Fallback) Resolve(_ context.Context, attempt domain.ResolutionAttempt) (string, error) {
	if len(attempt.Outcomes) == 0 {
		return "", fmt.Errorf("%w: %w", ErrAbstain, domain.ErrNoOutcomes)
	}
	return attempt.Outcomes[0], nil
}
