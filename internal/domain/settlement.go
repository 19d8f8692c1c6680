package domain

import (
	"math/big"
	"time"
)

// SettlementStatus classifies the result of a single settlement submission.
type SettlementStatus string

const (
	// SettlementConfirmed means the transaction was mined with success status.
	SettlementConfirmed SettlementStatus = "confirmed"
	// SettlementRejected means the transaction was mined but reverted, e.g.
	// because the market was already settled.
	SettlementRejected SettlementStatus = "rejected"
	// SettlementUnknown means the transaction could not be sent or its
	// receipt was not observed in time.
	SettlementUnknown SettlementStatus = "unknown"
)

// Settlement is the outcome of one Submit call.
type Settlement struct {
	MarketID    uint64
	Outcome     string
	Strategy    string
	Status      SettlementStatus
	TxHash      string
	Nonce       uint64
	GasPrice    *big.Int
	BlockNumber uint64
	Err         error
	SubmittedAt time.Time
}

// ErrString returns the error message or the empty string.
func (s Settlement) ErrString() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// SettlementRecord is a persisted Settlement row.
type SettlementRecord struct {
	ID          int64            `json:"id"`
	MarketID    uint64           `json:"market_id"`
	Outcome     string           `json:"outcome"`
	Strategy    string           `json:"strategy"`
	Status      SettlementStatus `json:"status"`
	TxHash      string           `json:"tx_hash,omitempty"`
	Nonce       uint64           `json:"nonce"`
	GasPrice    string           `json:"gas_price,omitempty"`
	BlockNumber uint64           `json:"block_number,omitempty"`
	Error       string           `json:"error,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Record converts s to its persisted form.
func (s Settlement) Record() SettlementRecord {
	r := SettlementRecord{
		MarketID:    s.MarketID,
		Outcome:     s.Outcome,
		Strategy:    s.Strategy,
		Status:      s.Status,
		TxHash:      s.TxHash,
		Nonce:       s.Nonce,
		BlockNumber: s.BlockNumber,
		Error:       s.ErrString(),
		SubmittedAt: s.SubmittedAt,
	}
	if s.GasPrice != nil {
		r.GasPrice = s.GasPrice.String()
	}
	return r
}
