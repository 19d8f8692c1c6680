package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

var targetPattern = regexp.MustCompile(`\$?([\d,]+)`)

// PriceThreshold answers "will <TICKER> be above $N" style binary markets by
// comparing the current price with the first number in the question.
type PriceThreshold struct {
	prices  domain.PriceProvider
	tickers *regexp.Regexp
}

// NewPriceThreshold creates the strategy. tickers are matched as whole words,
// case-insensitively.
func NewPriceThreshold(prices domain.PriceProvider, tickers []string) *PriceThreshold {
	quoted := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	p := &PriceThreshold{prices: prices}
	if len(quoted) > 0 {
		p.tickers = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	}
	return p
}

// Name implements Resolver.
func (p *PriceThreshold) Name() string { return "price_threshold" }

// Resolve implements Resolver.
func (p *PriceThreshold) Resolve(ctx context.Context, attempt domain.ResolutionAttempt) (string, error) {
	if !isYesNo(attempt.Outcomes) {
		return "", fmt.Errorf("%w: outcomes are not Yes/No", ErrAbstain)
	}
	if !strings.Contains(attempt.Question, "$") {
		return "", fmt.Errorf("%w: no currency marker", ErrAbstain)
	}
	ticker := p.ticker(attempt.Question)
	if ticker == "" {
		return "", fmt.Errorf("%w: no tracked ticker", ErrAbstain)
	}
	target, ok := parseTarget(attempt.Question)
	if !ok {
		return "", fmt.Errorf("%w: no numeric target", ErrAbstain)
	}

	price, err := p.prices.GetPrice(ctx, ticker)
	if err != nil {
		return "", fmt.Errorf("resolver: price %s: %w", ticker, err)
	}

	if price >= target {
		return "Yes", nil
	}
	return "No", nil
}

// ticker returns the first tracked ticker in question, upper-cased.
func (p *PriceThreshold) ticker(question string) string {
	if p.tickers == nil {
		return ""
	}
	m := p.tickers.FindStringSubmatch(question)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

func parseTarget(question string) (float64, bool) {
	m := targetPattern.FindStringSubmatch(question)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isYesNo(outcomes []string) bool {
	if len(outcomes) != 2 {
		return false
	}
	return (outcomes[0] == "Yes" && outcomes[1] == "No") ||
		(outcomes[0] == "No" && outcomes[1] == "Yes")
}
