package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

// unsure is the answer a reasoning provider gives when it cannot decide.
const unsure = "Unsure"

// Reasoning asks a language model to pick an outcome.
type Reasoning struct {
	provider        domain.ReasoningProvider
	caseInsensitive bool
}

// NewReasoning creates the strategy. With caseInsensitive set, an answer that
// matches a label ignoring case is mapped to the label as written on-chain.
func NewReasoning(provider domain.ReasoningProvider, caseInsensitive bool) *Reasoning {
	return &Reasoning{provider: provider, caseInsensitive: caseInsensitive}
}

// Name implements Resolver.
func (r *Reasoning) Name() string { return "reasoning" }

// Resolve implements Resolver.
func (r *Reasoning) Resolve(ctx context.Context, attempt domain.ResolutionAttempt) (string, error) {
	answer, err := r.provider.Ask(ctx, attempt.Question, attempt.Outcomes)
	if err != nil {
		return "", fmt.Errorf("resolver: reasoning: %w", err)
	}
	answer = strings.TrimSpace(answer)

	for _, o := range attempt.Outcomes {
		if answer == o {
			return o, nil
		}
	}
	if r.caseInsensitive {
		for _, o := range attempt.Outcomes {
			if strings.EqualFold(answer, o) {
				return o, nil
			}
		}
	}
	// A market may list "Unsure" as a real outcome, so the sentinel only
	// counts once no label matched.
	if strings.EqualFold(answer, unsure) {
		return "", fmt.Errorf("%w: provider unsure", ErrAbstain)
	}
	return "", fmt.Errorf("%w: answer %q is not an outcome", ErrAbstain, answer)
}
