package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

var defaultTickers = []string{"BTC", "ETH", "MON"}

type fakePrices struct {
	prices map[string]float64
	err    error
	asked  []string
}

func (f *fakePrices) GetPrice(_ context.Context, symbol string) (float64, error) {
	f.asked = append(f.asked, symbol)
	if f.err != nil {
		return 0, f.err
	}
	p, ok := f.prices[symbol]
	if !ok {
		return 0, domain.ErrUnavailable
	}
	return p, nil
}

type fakeReasoning struct {
	answer string
	err    error
	calls  int
}

func (f *fakeReasoning) Ask(context.Context, string, []string) (string, error) {
	f.calls++
	return f.answer, f.err
}

type panicky struct{}

func (panicky) Name() string { return "panicky" }
func (panicky) Resolve(context.Context, domain.ResolutionAttempt) (string, error) {
	panic("boom")
}

type liar struct{}

func (liar) Name() string { return "liar" }
func (liar) Resolve(context.Context, domain.ResolutionAttempt) (string, error) {
	return "Definitely", nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func attempt(question string, outcomes ...string) domain.ResolutionAttempt {
	return domain.ResolutionAttempt{ID: "t", MarketID: 1, Question: question, Outcomes: outcomes}
}

func newChain(prices domain.PriceProvider, reasoning domain.ReasoningProvider, caseInsensitive bool) *Chain {
	return NewChain(discard(),
		NewPriceThreshold(prices, defaultTickers),
		NewReasoning(reasoning, caseInsensitive),
	)
}

func TestPriceThreshold(t *testing.T) {
	tests := []struct {
		name     string
		question string
		outcomes []string
		prices   map[string]float64
		want     string
		abstain  bool
		asked    string
	}{
		{
			name:     "above target",
			question: "Will BTC be above $50,000 by Friday?",
			outcomes: []string{"Yes", "No"},
			prices:   map[string]float64{"BTC": 60000},
			want:     "Yes",
			asked:    "BTC",
		},
		{
			name:     "below target",
			question: "Will BTC be above $50,000 by Friday?",
			outcomes: []string{"Yes", "No"},
			prices:   map[string]float64{"BTC": 40000},
			want:     "No",
			asked:    "BTC",
		},
		{
			name:     "equal counts as yes",
			question: "BTC >= $50,000?",
			outcomes: []string{"No", "Yes"},
			prices:   map[string]float64{"BTC": 50000},
			want:     "Yes",
			asked:    "BTC",
		},
		{
			name:     "fetches the referenced ticker",
			question: "Will eth close above $3,000?",
			outcomes: []string{"Yes", "No"},
			prices:   map[string]float64{"ETH": 3500, "BTC": 1},
			want:     "Yes",
			asked:    "ETH",
		},
		{
			name:     "non yes/no outcomes abstain",
			question: "Will BTC be above $50,000?",
			outcomes: []string{"Above", "Below", "Flat"},
			abstain:  true,
		},
		{
			name:     "no currency marker",
			question: "Will BTC be above 50000?",
			outcomes: []string{"Yes", "No"},
			abstain:  true,
		},
		{
			name:     "ticker must be a whole word",
			question: "Will the Monday rally exceed $5?",
			outcomes: []string{"Yes", "No"},
			abstain:  true,
		},
		{
			name:     "bare comma target abstains",
			question: "Will BTC, the king, pass $?",
			outcomes: []string{"Yes", "No"},
			abstain:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prices := &fakePrices{prices: tt.prices}
			p := NewPriceThreshold(prices, defaultTickers)

			got, err := p.Resolve(context.Background(), attempt(tt.question, tt.outcomes...))
			if tt.abstain {
				assert.ErrorIs(t, err, ErrAbstain)
				assert.Empty(t, prices.asked)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, []string{tt.asked}, prices.asked)
		})
	}
}

func TestPriceThresholdProviderError(t *testing.T) {
	p := NewPriceThreshold(&fakePrices{err: domain.ErrUnavailable}, defaultTickers)
	_, err := p.Resolve(context.Background(), attempt("Will BTC be above $50,000?", "Yes", "No"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnavailable)
	assert.NotErrorIs(t, err, ErrAbstain)
}

func TestReasoning(t *testing.T) {
	tests := []struct {
		name            string
		answer          string
		caseInsensitive bool
		outcomes        []string
		want            string
		abstain         bool
	}{
		{name: "exact match", answer: "Rain", want: "Rain"},
		{name: "whitespace trimmed", answer: "  Dry\n", want: "Dry"},
		{name: "case mismatch rejected by default", answer: "rain", abstain: true},
		{name: "case mismatch accepted when enabled", answer: "rain", caseInsensitive: true, want: "Rain"},
		{name: "unsure abstains", answer: "Unsure", abstain: true},
		{name: "unsure abstains even when case-insensitive", answer: "unsure", caseInsensitive: true, abstain: true},
		{name: "unknown label", answer: "Maybe", abstain: true},
		{name: "unsure as a real label", answer: "Unsure", outcomes: []string{"Sure", "Unsure"}, want: "Unsure"},
		{name: "unsure label ignoring case", answer: "unsure", caseInsensitive: true, outcomes: []string{"Sure", "Unsure"}, want: "Unsure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcomes := tt.outcomes
			if outcomes == nil {
				outcomes = []string{"Rain", "Dry"}
			}
			r := NewReasoning(&fakeReasoning{answer: tt.answer}, tt.caseInsensitive)
			got, err := r.Resolve(context.Background(), attempt("Will it rain?", outcomes...))
			if tt.abstain {
				assert.ErrorIs(t, err, ErrAbstain)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("price strategy wins first", func(t *testing.T) {
		reasoning := &fakeReasoning{answer: "No"}
		c := newChain(&fakePrices{prices: map[string]float64{"BTC": 60000}}, reasoning, false)

		outcome, strategy, err := c.Resolve(ctx, attempt("Will BTC be above $50,000?", "Yes", "No"))
		require.NoError(t, err)
		assert.Equal(t, "Yes", outcome)
		assert.Equal(t, "price_threshold", strategy)
		assert.Zero(t, reasoning.calls)
	})

	t.Run("reasoning used when price abstains", func(t *testing.T) {
		c := newChain(&fakePrices{}, &fakeReasoning{answer: "Below"}, false)

		outcome, strategy, err := c.Resolve(ctx, attempt("Where will BTC be vs $50,000?", "Above", "Below", "Flat"))
		require.NoError(t, err)
		assert.Equal(t, "Below", outcome)
		assert.Equal(t, "reasoning", strategy)
	})

	t.Run("invalid answer falls back", func(t *testing.T) {
		c := newChain(&fakePrices{}, &fakeReasoning{answer: "Maybe"}, false)

		outcome, strategy, err := c.Resolve(ctx, attempt("Will it rain?", "Rain", "Dry"))
		require.NoError(t, err)
		assert.Equal(t, "Rain", outcome)
		assert.Equal(t, "fallback", strategy)
	})

	t.Run("all providers unavailable", func(t *testing.T) {
		c := newChain(
			&fakePrices{err: domain.ErrUnavailable},
			&fakeReasoning{err: domain.ErrUnavailable},
			false,
		)

		outcome, strategy, err := c.Resolve(ctx, attempt("Will BTC be above $50,000?", "No", "Yes"))
		require.NoError(t, err)
		assert.Equal(t, "No", outcome)
		assert.Equal(t, "fallback", strategy)
	})

	t.Run("panic counts as abstention", func(t *testing.T) {
		c := NewChain(discard(), panicky{}, NewReasoning(&fakeReasoning{answer: "Dry"}, false))

		outcome, strategy, err := c.Resolve(ctx, attempt("Will it rain?", "Rain", "Dry"))
		require.NoError(t, err)
		assert.Equal(t, "Dry", outcome)
		assert.Equal(t, "reasoning", strategy)
	})

	t.Run("non-member outcome is ignored", func(t *testing.T) {
		c := NewChain(discard(), liar{})

		outcome, strategy, err := c.Resolve(ctx, attempt("q", "A", "B"))
		require.NoError(t, err)
		assert.Equal(t, "A", outcome)
		assert.Equal(t, "fallback", strategy)
	})

	t.Run("no outcomes", func(t *testing.T) {
		c := newChain(&fakePrices{}, &fakeReasoning{}, false)
		_, _, err := c.Resolve(ctx, attempt("q"))
		assert.ErrorIs(t, err, domain.ErrNoOutcomes)
	})

	t.Run("fallback appended once", func(t *testing.T) {
		c := NewChain(discard(), NewReasoning(&fakeReasoning{}, false), Fallback{})
		assert.Equal(t, []string{"reasoning", "fallback"}, c.Names())
	})
}

func TestChainTotality(t *testing.T) {
	questions := []string{
		"Will BTC be above $50,000?",
		"Will ETH flip BTC?",
		"$,,,",
		"",
		"MON to $1?",
	}
	outcomeSets := [][]string{
		{"Yes", "No"},
		{"No", "Yes"},
		{"Above", "Below", "Flat"},
		{"Only"},
	}
	answers := []string{"Yes", "no", "Unsure", "", "Flat"}
	errs := []error{nil, domain.ErrUnavailable, errors.New("boom")}

	for _, q := range questions {
		for _, outs := range outcomeSets {
			for _, a := range answers {
				for _, e := range errs {
					c := newChain(
						&fakePrices{prices: map[string]float64{"BTC": 1, "ETH": 1, "MON": 1}, err: e},
						&fakeReasoning{answer: a, err: e},
						true,
					)
					outcome, _, err := c.Resolve(context.Background(), attempt(q, outs...))
					require.NoError(t, err)
					assert.Contains(t, outs, outcome, "question %q answer %q", q, a)
				}
			}
		}
	}
}
