// Package txn implements the transaction data model: canonical signing
// bytes, hash (txid), signature verification, and coinbase construction.
package txn

import (
	"encoding/binary"

	"github.com/pali-coin/node/internal/primitives"
)

// MaxDataSize is the maximum length of the optional data blob.
const MaxDataSize = 1 << 10 // 1 KB

// ID is a transaction's hash, excluding the signature so malleability
// cannot alter it.
type ID = primitives.Hash

// Transaction is a single-input, single-output transfer. Script execution
// is out of scope; a transfer moves a fixed amount from one address to
// another.
type Transaction struct {
	Version    uint32
	From       primitives.Address
	To         primitives.Address
	Amount     uint64
	Fee        uint64
	Nonce      uint64
	ChainID    uint64
	Expiry     uint64 // unix seconds; 0 = none
	Signature  [primitives.SignatureSize]byte
	PublicKey  [primitives.PublicKeySize]byte
	Data       []byte // optional, <= MaxDataSize
}

// IsCoinbase reports whether tx is the unique minting transaction of a
// block: From is the all-zero burn address.
func (tx *Transaction) IsCoinbase() bool {
	return tx.From == primitives.BurnAddress
}

// SigningPreimage builds the canonical byte layout that is hashed and
// signed. It excludes Signature and PublicKey so a signature cannot be
// forged by mutating either field.
func (tx *Transaction) SigningPreimage() []byte {
	buf := make([]byte, 0, 4+20+20+8+8+8+8+8+len(tx.Data)+4)
	buf = appendUint32(buf, tx.Version)
	buf = append(buf, tx.From[:]...)
	buf = append(buf, tx.To[:]...)
	buf = appendUint64(buf, tx.Amount)
	buf = appendUint64(buf, tx.Fee)
	buf = appendUint64(buf, tx.Nonce)
	buf = appendUint64(buf, tx.ChainID)
	if tx.Expiry != 0 {
		buf = appendUint64(buf, tx.Expiry)
	}
	if len(tx.Data) > 0 {
		buf = appendUint32(buf, uint32(len(tx.Data)))
		buf = append(buf, tx.Data...)
	}
	return buf
}

// ID returns H(data_to_sign), excluding the signature.
func (tx *Transaction) ID() ID {
	return primitives.DoubleSHA256(tx.SigningPreimage())
}

// Size returns the serialized byte size used for fee-per-byte calculations
// and block size accounting.
func (tx *Transaction) Size() int {
	size := 4 + 20 + 20 + 8 + 8 + 8 + 8 + 8 + primitives.SignatureSize + primitives.PublicKeySize
	if len(tx.Data) > 0 {
		size += 4 + len(tx.Data)
	}
	return size
}

// FeePerByte returns Fee/Size(), used to order the mempool.
func (tx *Transaction) FeePerByte() float64 {
	size := tx.Size()
	if size == 0 {
		return 0
	}
	return float64(tx.Fee) / float64(size)
}

// NewCoinbase builds the unique first transaction of a block: from the
// burn address, empty signature, fee zero, nonce set to the block height.
func NewCoinbase(to primitives.Address, amount uint64, height uint64, chainID uint64) *Transaction {
	return &Transaction{
		Version: 1,
		From:    primitives.BurnAddress,
		To:      to,
		Amount:  amount,
		Fee:     0,
		Nonce:   height,
		ChainID: chainID,
	}
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}
