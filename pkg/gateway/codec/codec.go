// Package codec is a narrow façade around go-ethereum's transaction
// encoding used by the gateway: RLP decode/encode, signedness checks,
// detached 65-byte signature extraction and attachment, and sender
// recovery.
package codec

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrUnsigned is returned when a signature or a sender is requested
	// from a transaction that carries no signature.
	ErrUnsigned = errors.New("transaction is not signed")
	// ErrInvalidSignature is returned for signatures that are not 65
	// bytes long or can't be attached to the transaction.
	ErrInvalidSignature = errors.New("invalid signature")
)

// Codec encodes and decodes wallet transactions for a fixed chain.
type Codec struct {
	chainID *big.Int
	signer  types.Signer
}

// New creates a Codec for the given EIP-155 chain ID. A zero chain ID
// selects pre-EIP-155 (homestead) signature handling.
func New(chainID uint64) *Codec {
	if chainID == 0 {
		return &Codec{chainID: new(big.Int), signer: types.HomesteadSigner{}}
	}
	id := new(big.Int).SetUint64(chainID)
	return &Codec{chainID: id, signer: types.LatestSignerForChainID(id)}
}

// NewTransaction assembles an unsigned value-transfer transaction.
func (c *Codec) NewTransaction(nonce uint64, gasPrice *big.Int, gas uint64, to common.Address, value *big.Int) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
	})
}

// Decode parses a canonical-encoded transaction.
func (c *Codec) Decode(raw []byte) (*types.Transaction, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	return tx, nil
}

// Encode returns the canonical encoding of tx, suitable for
// eth_sendRawTransaction. Unsigned transactions encode with zeroed
// signature values, so encoding is deterministic either way.
func (c *Codec) Encode(tx *types.Transaction) ([]byte, error) {
	return tx.MarshalBinary()
}

// IsSigned reports whether tx carries a signature.
func (c *Codec) IsSigned(tx *types.Transaction) bool {
	_, r, s := tx.RawSignatureValues()
	return r.Sign() != 0 || s.Sign() != 0
}

// Signature returns the detached 65-byte [R || S || recovery id]
// signature of a signed transaction.
func (c *Codec) Signature(tx *types.Transaction) ([]byte, error) {
	if !c.IsSigned(tx) {
		return nil, ErrUnsigned
	}
	v, r, s := tx.RawSignatureValues()
	recID := new(big.Int).Set(v)
	if tx.Type() == types.LegacyTxType {
		if tx.Protected() {
			// V = recovery id + chain id * 2 + 35 per EIP-155.
			recID.Sub(recID, new(big.Int).Lsh(tx.ChainId(), 1))
			recID.Sub(recID, big.NewInt(35))
		} else {
			recID.Sub(recID, big.NewInt(27))
		}
	}
	if recID.Sign() < 0 || recID.Cmp(big.NewInt(1)) > 0 {
		return nil, ErrInvalidSignature
	}
	sig := make([]byte, 65)
	r.FillBytes(sig[:32])
	s.FillBytes(sig[32:64])
	sig[64] = byte(recID.Uint64())
	return sig, nil
}

// WithSignature returns a copy of tx with the detached 65-byte
// signature attached. Attaching to an already signed transaction
// replaces the embedded signature.
func (c *Codec) WithSignature(tx *types.Transaction, sig []byte) (*types.Transaction, error) {
	if len(sig) != 65 {
		return nil, ErrInvalidSignature
	}
	signed, err := tx.WithSignature(c.signer, sig)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	return signed, nil
}

// Sender recovers the sending address of a signed transaction.
func (c *Codec) Sender(tx *types.Transaction) (common.Address, error) {
	if !c.IsSigned(tx) {
		return common.Address{}, ErrUnsigned
	}
	return types.Sender(c.signer, tx)
}

// Hash returns the signing hash of tx under the codec's signer.
func (c *Codec) Hash(tx *types.Transaction) common.Hash {
	return c.signer.Hash(tx)
}
