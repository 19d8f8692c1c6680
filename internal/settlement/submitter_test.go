package settlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/settleoracle/internal/chain"
	"github.com/alanyoungcy/settleoracle/internal/crypto"
	"github.com/alanyoungcy/settleoracle/internal/domain"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// fakeBackend is a chain.Backend with scripted responses.
type fakeBackend struct {
	nonce      uint64
	nonceErr   error
	gasPrice   *big.Int
	sendErr    error
	sent       []*types.Transaction
	receipt    *types.Receipt
	nonceCalls int
	gasCalls   int
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("not used")
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(10143), nil }

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.nonceCalls++
	return f.nonce, f.nonceErr
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.gasCalls++
	return f.gasPrice, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt, nil
}

func newSubmitter(t *testing.T, b *fakeBackend) *Submitter {
	t.Helper()
	id, err := crypto.NewIdentity(testKeyHex, big.NewInt(10143))
	require.NoError(t, err)
	tr, err := chain.NewTransactor(b, id, chain.TransactorConfig{
		OracleAddress:       common.HexToAddress("0x2222222222222222222222222222222222222222"),
		GasLimit:            2_000_000,
		CallTimeout:         time.Second,
		ReceiptTimeout:      40 * time.Millisecond,
		ReceiptPollInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return NewSubmitter(tr, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSubmitConfirmed(t *testing.T) {
	b := &fakeBackend{
		nonce:    3,
		gasPrice: big.NewInt(100),
		receipt:  &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(77)},
	}
	s := newSubmitter(t, b)

	res := s.Submit(context.Background(), 5, "Yes")
	assert.Equal(t, domain.SettlementConfirmed, res.Status)
	assert.NoError(t, res.Err)
	assert.Equal(t, uint64(5), res.MarketID)
	assert.Equal(t, "Yes", res.Outcome)
	assert.Equal(t, uint64(3), res.Nonce)
	assert.Equal(t, uint64(77), res.BlockNumber)
	require.Len(t, b.sent, 1)
	assert.Equal(t, b.sent[0].Hash().Hex(), res.TxHash)
	assert.False(t, res.SubmittedAt.IsZero())
}

func TestSubmitRevertIsRejected(t *testing.T) {
	b := &fakeBackend{
		gasPrice: big.NewInt(1),
		receipt:  &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(9)},
	}
	s := newSubmitter(t, b)

	res := s.Submit(context.Background(), 1, "No")
	assert.Equal(t, domain.SettlementRejected, res.Status)
	assert.NoError(t, res.Err)
	assert.NotEmpty(t, res.TxHash)
}

func TestSubmitReceiptTimeoutIsUnknown(t *testing.T) {
	b := &fakeBackend{gasPrice: big.NewInt(1)}
	s := newSubmitter(t, b)

	res := s.Submit(context.Background(), 1, "No")
	assert.Equal(t, domain.SettlementUnknown, res.Status)
	assert.ErrorIs(t, res.Err, chain.ErrReceiptTimeout)
	assert.NotEmpty(t, res.TxHash, "hash is known once sent")
	assert.Len(t, b.sent, 1)
}

func TestSubmitSendFailureIsUnknown(t *testing.T) {
	b := &fakeBackend{gasPrice: big.NewInt(1), sendErr: errors.New("nonce too low")}
	s := newSubmitter(t, b)

	res := s.Submit(context.Background(), 2, "Yes")
	assert.Equal(t, domain.SettlementUnknown, res.Status)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "nonce too low")
	assert.Empty(t, b.sent)
}

func TestSubmitNonceFailureIsUnknown(t *testing.T) {
	b := &fakeBackend{nonceErr: errors.New("rpc down")}
	s := newSubmitter(t, b)

	res := s.Submit(context.Background(), 2, "Yes")
	assert.Equal(t, domain.SettlementUnknown, res.Status)
	assert.Empty(t, res.TxHash)
	assert.Zero(t, b.gasCalls)
}

func TestSubmitReadsNonceEveryCall(t *testing.T) {
	b := &fakeBackend{
		gasPrice: big.NewInt(1),
		receipt:  &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(1)},
	}
	s := newSubmitter(t, b)

	s.Submit(context.Background(), 1, "Yes")
	b.nonce = 1
	s.Submit(context.Background(), 2, "Yes")

	assert.Equal(t, 2, b.nonceCalls)
	assert.Equal(t, 2, b.gasCalls)
	require.Len(t, b.sent, 2)
	assert.Equal(t, uint64(0), b.sent[0].Nonce())
	assert.Equal(t, uint64(1), b.sent[1].Nonce())
}
