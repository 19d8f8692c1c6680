package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Identity is the oracle's signing account bound to one chain.
type Identity struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	signer     types.Signer
}

// NewIdentity creates an Identity from a hex-encoded secp256k1 private key
// and the chain ID transactions will be replay-protected for.
func NewIdentity(privateKeyHex string, chainID *big.Int) (*Identity, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("crypto/identity: invalid chain id %v", chainID)
	}
	pk, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto/identity: invalid private key: %w", err)
	}

	return &Identity{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		chainID:    new(big.Int).Set(chainID),
		signer:     types.LatestSignerForChainID(chainID),
	}, nil
}

// Address returns the account address derived from the private key.
func (id *Identity) Address() common.Address {
	return id.address
}

// ChainID returns a copy of the bound chain id.
func (id *Identity) ChainID() *big.Int {
	return new(big.Int).Set(id.chainID)
}

// SignTx signs tx for the bound chain.
func (id *Identity) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, id.signer, id.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/identity: sign tx: %w", err)
	}
	return signed, nil
}
