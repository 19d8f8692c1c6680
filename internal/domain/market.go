package domain

import (
	"math/big"
	"time"
)

// Market mirrors a record of the prediction-market contract. The oracle
// never mutates it; Settled flips to true only through a successful
// settlement transaction.
type Market struct {
	ID              uint64
	Question        string
	BettingDeadline time.Time
	RevealDeadline  time.Time
	Revealed        bool
	FinalOutcomeID  uint64
	Settled         bool
	TotalPool       *big.Int
	Outcomes        []string // e.g. ["Yes","No"]; fetched separately
}

// ReadyForSettlement reports whether the market is unsettled and its reveal
// deadline lies strictly before now.
func (m Market) ReadyForSettlement(now time.Time) bool {
	return !m.Settled && now.After(m.RevealDeadline)
}

// ResolutionAttempt is created per cycle for each eligible market and thrown
// away once the settlement has been submitted.
type ResolutionAttempt struct {
	ID       string // uuid, for log correlation
	MarketID uint64
	Question string
	Outcomes []string
	Outcome  string
	Strategy string
}

// HasOutcome reports whether label is one of the attempt's outcome labels.
func (a ResolutionAttempt) HasOutcome(label string) bool {
	for _, o := range a.Outcomes {
		if o == label {
			return true
		}
	}
	return false
}
