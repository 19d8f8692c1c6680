// Package settlement submits resolved outcomes on-chain and classifies the
// result.
package settlement

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/settleoracle/internal/chain"
	"github.com/alanyoungcy/settleoracle/internal/domain"
)

// Transactor is the chain write path.
type Transactor interface {
	SendSettlement(ctx context.Context, marketID uint64, outcome string) (chain.SentTx, error)
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

var _ Transactor = (*chain.Transactor)(nil)

// Submitter sends one settlement transaction per call and waits for its
// receipt. It never retries; a market left unsettled is picked up again by the
// next scan.
type Submitter struct {
	tx     Transactor
	logger *slog.Logger
	now    func() time.Time
}

// NewSubmitter creates a Submitter.
func NewSubmitter(tx Transactor, logger *slog.Logger) *Submitter {
	return &Submitter{
		tx:     tx,
		logger: logger.With(slog.String("component", "submitter")),
		now:    time.Now,
	}
}

// Submit settles marketID with outcome. The returned Settlement is always
// populated. Status is confirmed for a successful receipt, rejected for a
// reverted one (typically the market was already settled), and unknown for
// any failure before a receipt was seen.
func (s *Submitter) Submit(ctx context.Context, marketID uint64, outcome string) domain.Settlement {
	res := domain.Settlement{
		MarketID:    marketID,
		Outcome:     outcome,
		SubmittedAt: s.now(),
	}

	sent, err := s.tx.SendSettlement(ctx, marketID, outcome)
	res.Nonce = sent.Nonce
	res.GasPrice = sent.GasPrice
	if sent.Hash != (common.Hash{}) {
		res.TxHash = sent.Hash.Hex()
	}
	if err != nil {
		return s.unknown(res, err)
	}

	s.logger.Info("settlement sent",
		slog.Uint64("market_id", marketID),
		slog.String("outcome", outcome),
		slog.String("tx_hash", res.TxHash),
		slog.Uint64("nonce", sent.Nonce),
		slog.String("gas_price", bigString(sent.GasPrice)),
	)

	receipt, err := s.tx.WaitMined(ctx, sent.Hash)
	if err != nil {
		return s.unknown(res, err)
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		res.Status = domain.SettlementConfirmed
		s.logger.Info("settlement confirmed",
			slog.Uint64("market_id", marketID),
			slog.String("outcome", outcome),
			slog.String("tx_hash", res.TxHash),
			slog.Uint64("block", res.BlockNumber),
		)
		return res
	}

	res.Status = domain.SettlementRejected
	s.logger.Warn("settlement rejected",
		slog.Uint64("market_id", marketID),
		slog.String("outcome", outcome),
		slog.String("tx_hash", res.TxHash),
		slog.Uint64("block", res.BlockNumber),
	)
	return res
}

func (s *Submitter) unknown(res domain.Settlement, err error) domain.Settlement {
	res.Status = domain.SettlementUnknown
	res.Err = err
	s.logger.Error("settlement outcome unknown",
		slog.Uint64("market_id", res.MarketID),
		slog.String("outcome", res.Outcome),
		slog.String("tx_hash", res.TxHash),
		slog.String("error", err.Error()),
	)
	return res
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
