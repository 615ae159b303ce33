// Package block implements the block header and body: Merkle root, hash,
// proof-of-work check, and validation against a parent.
package block

import (
	"encoding/binary"

	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
)

// Header is a block's fixed-size metadata.
type Header struct {
	Version           uint32
	PrevHash          primitives.Hash
	MerkleRoot        primitives.Hash
	Timestamp         int64 // unix seconds
	Height            uint64
	DifficultyTarget  uint32 // required leading zero bits
	Nonce             uint64
	TxCount           uint32
	BlockSize         uint32
}

// Block is a header plus its ordered transaction list. Transaction 0 is
// always the coinbase.
type Block struct {
	Header       Header
	Transactions []*txn.Transaction
}

// HeaderBytes returns the fixed layout that is hashed to produce the block
// hash: version, prev_hash, merkle_root, timestamp, height,
// difficulty_target, nonce, tx_count.
func (h *Header) HeaderBytes() []byte {
	buf := make([]byte, 0, 4+32+32+8+8+4+8+4)
	buf = appendUint32(buf, h.Version)
	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = appendUint64(buf, uint64(h.Timestamp))
	buf = appendUint64(buf, h.Height)
	buf = appendUint32(buf, h.DifficultyTarget)
	buf = appendUint64(buf, h.Nonce)
	buf = appendUint32(buf, h.TxCount)
	return buf
}

// Hash returns H(header_bytes).
func (h *Header) Hash() primitives.Hash {
	return primitives.DoubleSHA256(h.HeaderBytes())
}

// Hash returns the block's hash (its header's hash).
func (b *Block) Hash() primitives.Hash {
	return b.Header.Hash()
}

// Coinbase returns transaction 0, the unique coinbase in a validated
// block. Callers must have already validated the block.
func (b *Block) Coinbase() *txn.Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[0]
}

// TxIDs returns the hash of every transaction in order, for Merkle root
// computation.
func (b *Block) TxIDs() []primitives.Hash {
	ids := make([]primitives.Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		ids[i] = tx.ID()
	}
	return ids
}

// RecomputeMerkleRoot recomputes the Merkle root from b.Transactions,
// independent of whatever is currently stored in the header.
func (b *Block) RecomputeMerkleRoot() primitives.Hash {
	return BuildMerkleRoot(b.TxIDs())
}

// headerEncodedSize is HeaderBytes' length plus the trailing BlockSize
// field written alongside it on the wire and in chain-store records.
const headerEncodedSize = 4 + 32 + 32 + 8 + 8 + 4 + 8 + 4 + 4

// SerializedSize returns the block's actual encoded size: the fixed header
// layout plus every transaction's own Size(). Builders stamp this into
// Header.BlockSize; validators recompute it independently rather than
// trusting the header field a remote peer supplied.
func (b *Block) SerializedSize() uint32 {
	size := headerEncodedSize
	for _, tx := range b.Transactions {
		size += tx.Size()
	}
	return uint32(size)
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
