package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// TxSigner signs contract write transactions with a locally held key. The
// chain id is fixed at construction so a signer can never replay onto
// another network.
type TxSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	signer     types.Signer
}

// NewTxSigner creates a TxSigner from a hex-encoded secp256k1 private key
// and the target chain id (8453 for Base mainnet, 84532 for Base Sepolia).
func NewTxSigner(privateKeyHex string, chainID int64) (*TxSigner, error) {
	key, err := LoadKey(KeyConfig{RawPrivateKey: privateKeyHex})
	if err != nil {
		return nil, err
	}
	pk, err := ethcrypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &TxSigner{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
		signer:     types.LatestSignerForChainID(big.NewInt(chainID)),
	}, nil
}

// Address returns the signer's account address.
func (s *TxSigner) Address() common.Address {
	return s.address
}

// SignTx signs the transaction for the signer's chain.
func (s *TxSigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, s.signer, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: sign tx: %w", err)
	}
	return signed, nil
}
