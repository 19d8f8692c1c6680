// Package chain talks to the prediction-market and settlement-oracle
// contracts over JSON-RPC.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

const predictionMarketABI = `[
{"inputs":[],"name":"nextMarketId","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"","type":"uint256"}],"name":"markets","outputs":[{"name":"id","type":"uint256"},{"name":"question","type":"string"},{"name":"bettingDeadline","type":"uint256"},{"name":"revealDeadline","type":"uint256"},{"name":"revealed","type":"bool"},{"name":"finalOutcomeId","type":"uint256"},{"name":"settled","type":"bool"},{"name":"totalPool","type":"uint256"}],"stateMutability":"view","type":"function"},
{"inputs":[{"name":"marketId","type":"uint256"}],"name":"getMarketOutcomes","outputs":[{"name":"","type":"string[]"}],"stateMutability":"view","type":"function"}
]`

const settlementOracleABI = `[
{"inputs":[{"name":"marketId","type":"uint256"},{"name":"outcome","type":"string"},{"name":"proof","type":"bytes"}],"name":"receiveSettlement","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var (
	marketABIOnce = sync.OnceValues(func() (*abi.ABI, error) { return parseABI(predictionMarketABI) })
	oracleABIOnce = sync.OnceValues(func() (*abi.ABI, error) { return parseABI(settlementOracleABI) })
)

// MarketABI returns the parsed prediction-market ABI.
func MarketABI() (*abi.ABI, error) { return marketABIOnce() }

// OracleABI returns the parsed settlement-oracle ABI.
func OracleABI() (*abi.ABI, error) { return oracleABIOnce() }

func parseABI(raw string) (*abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("chain: parse abi: %w", err)
	}
	return &parsed, nil
}

// Caller executes read-only contract calls.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Backend is the subset of *ethclient.Client the oracle uses.
type Backend interface {
	Caller
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Dial connects to the RPC endpoint at url.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", url, err)
	}
	return client, nil
}
