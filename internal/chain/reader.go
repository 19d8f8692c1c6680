package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

// MarketReader reads market state from the prediction-market contract.
// Each call is bounded by callTimeout.
type MarketReader struct {
	caller      Caller
	abi         *abi.ABI
	address     common.Address
	callTimeout time.Duration
}

var _ domain.MarketReader = (*MarketReader)(nil)

// NewMarketReader creates a reader for the market contract at address.
func NewMarketReader(caller Caller, address common.Address, callTimeout time.Duration) (*MarketReader, error) {
	parsed, err := MarketABI()
	if err != nil {
		return nil, err
	}
	return &MarketReader{
		caller:      caller,
		abi:         parsed,
		address:     address,
		callTimeout: callTimeout,
	}, nil
}

// MarketCount returns nextMarketId, i.e. the number of markets ever created.
func (r *MarketReader) MarketCount(ctx context.Context) (uint64, error) {
	out, err := r.call(ctx, "nextMarketId")
	if err != nil {
		return 0, err
	}
	n, ok := out[0].(*big.Int)
	if !ok || !n.IsUint64() {
		return 0, fmt.Errorf("chain: nextMarketId: unexpected value %v", out[0])
	}
	return n.Uint64(), nil
}

// GetMarket returns the market struct for id. Outcomes are not populated.
func (r *MarketReader) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	out, err := r.call(ctx, "markets", new(big.Int).SetUint64(id))
	if err != nil {
		return domain.Market{}, err
	}
	if len(out) != 8 {
		return domain.Market{}, fmt.Errorf("chain: markets(%d): expected 8 values, got %d", id, len(out))
	}

	question, ok1 := out[1].(string)
	revealed, ok2 := out[4].(bool)
	settled, ok3 := out[6].(bool)
	if !ok1 || !ok2 || !ok3 {
		return domain.Market{}, fmt.Errorf("chain: markets(%d): unexpected field types", id)
	}

	var ints [5]*big.Int
	for i, idx := range []int{0, 2, 3, 5, 7} {
		v, ok := out[idx].(*big.Int)
		if !ok {
			return domain.Market{}, fmt.Errorf("chain: markets(%d): field %d is %T", id, idx, out[idx])
		}
		ints[i] = v
	}
	betting, err := unixTime(ints[1])
	if err != nil {
		return domain.Market{}, fmt.Errorf("chain: markets(%d): bettingDeadline: %w", id, err)
	}
	reveal, err := unixTime(ints[2])
	if err != nil {
		return domain.Market{}, fmt.Errorf("chain: markets(%d): revealDeadline: %w", id, err)
	}

	return domain.Market{
		ID:              ints[0].Uint64(),
		Question:        question,
		BettingDeadline: betting,
		RevealDeadline:  reveal,
		Revealed:        revealed,
		FinalOutcomeID:  ints[3].Uint64(),
		Settled:         settled,
		TotalPool:       ints[4],
	}, nil
}

// GetMarketOutcomes returns the ordered outcome labels for id.
func (r *MarketReader) GetMarketOutcomes(ctx context.Context, id uint64) ([]string, error) {
	out, err := r.call(ctx, "getMarketOutcomes", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	labels, ok := out[0].([]string)
	if !ok {
		return nil, fmt.Errorf("chain: getMarketOutcomes(%d): unexpected type %T", id, out[0])
	}
	return labels, nil
}

func (r *MarketReader) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	result, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w", method, err)
	}

	out, err := r.abi.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("chain: %s: empty result", method)
	}
	return out, nil
}

func unixTime(v *big.Int) (time.Time, error) {
	if !v.IsInt64() {
		return time.Time{}, fmt.Errorf("timestamp %s out of range", v)
	}
	return time.Unix(v.Int64(), 0).UTC(), nil
}
