package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

// SettlementStore is the append-only journal of settlement submissions.
type SettlementStore struct {
	pool *pgxpool.Pool
}

// NewSettlementStore creates a SettlementStore backed by the given pool.
func NewSettlementStore(pool *pgxpool.Pool) *SettlementStore {
	return &SettlementStore{pool: pool}
}

const settlementSelectCols = `id, market_id, outcome, strategy, status, tx_hash,
	nonce, gas_price, block_number, error, submitted_at, created_at`

// Insert journals one submission result.
func (s *SettlementStore) Insert(ctx context.Context, st domain.Settlement) error {
	r := st.Record()
	const query = `
		INSERT INTO settlements (
			market_id, outcome, strategy, status, tx_hash,
			nonce, gas_price, block_number, error, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if _, err := s.pool.Exec(ctx, query,
		int64(r.MarketID), r.Outcome, r.Strategy, string(r.Status), r.TxHash,
		int64(r.Nonce), r.GasPrice, int64(r.BlockNumber), r.Error, r.SubmittedAt,
	); err != nil {
		return fmt.Errorf("postgres: insert settlement market=%d: %w", r.MarketID, err)
	}
	return nil
}

// ListRecent returns journal rows newest first.
func (s *SettlementStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.SettlementRecord, error) {
	query, args := listQuery(`SELECT `+settlementSelectCols+` FROM settlements WHERE TRUE`, nil, opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements: %w", err)
	}
	return scanSettlementRows(rows)
}

// ListByMarket returns every journal row for one market, newest first.
func (s *SettlementStore) ListByMarket(ctx context.Context, marketID uint64) ([]domain.SettlementRecord, error) {
	query, args := listQuery(
		`SELECT `+settlementSelectCols+` FROM settlements WHERE market_id = $1`,
		[]any{int64(marketID)},
		domain.ListOpts{},
	)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements market=%d: %w", marketID, err)
	}
	return scanSettlementRows(rows)
}

func scanSettlementRows(rows pgx.Rows) ([]domain.SettlementRecord, error) {
	defer rows.Close()

	var out []domain.SettlementRecord
	for rows.Next() {
		var r domain.SettlementRecord
		var marketID, nonce, blockNum int64
		var status string
		if err := rows.Scan(
			&r.ID, &marketID, &r.Outcome, &r.Strategy, &status, &r.TxHash,
			&nonce, &r.GasPrice, &blockNum, &r.Error, &r.SubmittedAt, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		r.MarketID = uint64(marketID)
		r.Nonce = uint64(nonce)
		r.BlockNumber = uint64(blockNum)
		r.Status = domain.SettlementStatus(status)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: settlement rows: %w", err)
	}
	return out, nil
}

var _ domain.SettlementStore = (*SettlementStore)(nil)
