package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/settleoracle/internal/crypto"
)

// ErrReceiptTimeout is returned by WaitMined when no receipt appears within
// the configured timeout.
var ErrReceiptTimeout = errors.New("chain: receipt wait timed out")

// TransactorConfig holds the write-path parameters.
type TransactorConfig struct {
	OracleAddress       common.Address
	GasLimit            uint64
	CallTimeout         time.Duration
	ReceiptTimeout      time.Duration
	ReceiptPollInterval time.Duration
}

// SentTx describes a broadcast transaction.
type SentTx struct {
	Hash     common.Hash
	Nonce    uint64
	GasPrice *big.Int
}

// Transactor signs and broadcasts receiveSettlement calls to the oracle
// contract.
type Transactor struct {
	backend  Backend
	identity *crypto.Identity
	abi      *abi.ABI
	cfg      TransactorConfig
}

// NewTransactor creates a Transactor signing with identity.
func NewTransactor(backend Backend, identity *crypto.Identity, cfg TransactorConfig) (*Transactor, error) {
	parsed, err := OracleABI()
	if err != nil {
		return nil, err
	}
	if cfg.GasLimit == 0 {
		return nil, errors.New("chain: gas limit must be > 0")
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = time.Second
	}
	return &Transactor{backend: backend, identity: identity, abi: parsed, cfg: cfg}, nil
}

// SendSettlement encodes receiveSettlement(marketID, outcome, "") and sends it
// once. Nonce and gas price are read from the node on every call.
func (t *Transactor) SendSettlement(ctx context.Context, marketID uint64, outcome string) (SentTx, error) {
	data, err := t.abi.Pack("receiveSettlement", new(big.Int).SetUint64(marketID), outcome, []byte{})
	if err != nil {
		return SentTx{}, fmt.Errorf("chain: pack receiveSettlement: %w", err)
	}

	nonceCtx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
	nonce, err := t.backend.PendingNonceAt(nonceCtx, t.identity.Address())
	cancel()
	if err != nil {
		return SentTx{}, fmt.Errorf("chain: pending nonce: %w", err)
	}

	gasCtx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
	gasPrice, err := t.backend.SuggestGasPrice(gasCtx)
	cancel()
	if err != nil {
		return SentTx{Nonce: nonce}, fmt.Errorf("chain: suggest gas price: %w", err)
	}

	to := t.cfg.OracleAddress
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      t.cfg.GasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := t.identity.SignTx(tx)
	if err != nil {
		return SentTx{Nonce: nonce, GasPrice: gasPrice}, err
	}

	sent := SentTx{Hash: signed.Hash(), Nonce: nonce, GasPrice: gasPrice}

	sendCtx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
	defer cancel()
	if err := t.backend.SendTransaction(sendCtx, signed); err != nil {
		return sent, fmt.Errorf("chain: send transaction: %w", err)
	}
	return sent, nil
}

// WaitMined polls for the receipt of hash until it is mined, the receipt
// timeout elapses, or ctx is done. RPC errors while polling are retried on the
// next tick and reported if the wait times out.
func (t *Transactor) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.ReceiptTimeout)
	defer cancel()

	ticker := time.NewTicker(t.cfg.ReceiptPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := t.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, fmt.Errorf("%w: %s: last error: %w", ErrReceiptTimeout, hash.Hex(), lastErr)
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrReceiptTimeout, hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
