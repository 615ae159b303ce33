package wire

import (
	"encoding/binary"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
)

func put32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func put64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func putString(buf []byte, s string) []byte {
	buf = put32(buf, uint32(len(s)))
	return append(buf, s...)
}

func get32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, errShortBuffer
	}
	return binary.BigEndian.Uint32(b[:4]), b[4:], nil
}

func get64(b []byte) (uint64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, errShortBuffer
	}
	return binary.BigEndian.Uint64(b[:8]), b[8:], nil
}

func getString(b []byte) (string, []byte, error) {
	n, b, err := get32(b)
	if err != nil {
		return "", nil, err
	}
	if uint32(len(b)) < n {
		return "", nil, errShortBuffer
	}
	return string(b[:n]), b[n:], nil
}

func getHash(b []byte) (primitives.Hash, []byte, error) {
	var h primitives.Hash
	if len(b) < primitives.HashSize {
		return h, nil, errShortBuffer
	}
	copy(h[:], b[:primitives.HashSize])
	return h, b[primitives.HashSize:], nil
}

func getAddress(b []byte) (primitives.Address, []byte, error) {
	var a primitives.Address
	if len(b) < primitives.AddressSize {
		return a, nil, errShortBuffer
	}
	copy(a[:], b[:primitives.AddressSize])
	return a, b[primitives.AddressSize:], nil
}

// EncodeTransaction serializes tx for peer-link transport. The layout
// mirrors the persisted record shape but is versioned independently since
// the two concerns may evolve separately.
func EncodeTransaction(tx *txn.Transaction) []byte {
	buf := make([]byte, 0, 4+20+20+8*5+primitives.SignatureSize+primitives.PublicKeySize+4+len(tx.Data))
	buf = put32(buf, tx.Version)
	buf = append(buf, tx.From[:]...)
	buf = append(buf, tx.To[:]...)
	buf = put64(buf, tx.Amount)
	buf = put64(buf, tx.Fee)
	buf = put64(buf, tx.Nonce)
	buf = put64(buf, tx.ChainID)
	buf = put64(buf, tx.Expiry)
	buf = append(buf, tx.Signature[:]...)
	buf = append(buf, tx.PublicKey[:]...)
	buf = put32(buf, uint32(len(tx.Data)))
	buf = append(buf, tx.Data...)
	return buf
}

// DecodeTransaction parses the layout EncodeTransaction produces and
// returns the trailing unread bytes, so callers can decode a sequence of
// transactions back to back.
func DecodeTransaction(b []byte) (*txn.Transaction, []byte, error) {
	tx := &txn.Transaction{}
	var err error
	if tx.Version, b, err = get32(b); err != nil {
		return nil, nil, err
	}
	if tx.From, b, err = getAddress(b); err != nil {
		return nil, nil, err
	}
	if tx.To, b, err = getAddress(b); err != nil {
		return nil, nil, err
	}
	if tx.Amount, b, err = get64(b); err != nil {
		return nil, nil, err
	}
	if tx.Fee, b, err = get64(b); err != nil {
		return nil, nil, err
	}
	if tx.Nonce, b, err = get64(b); err != nil {
		return nil, nil, err
	}
	if tx.ChainID, b, err = get64(b); err != nil {
		return nil, nil, err
	}
	if tx.Expiry, b, err = get64(b); err != nil {
		return nil, nil, err
	}
	if len(b) < primitives.SignatureSize+primitives.PublicKeySize {
		return nil, nil, errShortBuffer
	}
	copy(tx.Signature[:], b[:primitives.SignatureSize])
	b = b[primitives.SignatureSize:]
	copy(tx.PublicKey[:], b[:primitives.PublicKeySize])
	b = b[primitives.PublicKeySize:]
	var dataLen uint32
	if dataLen, b, err = get32(b); err != nil {
		return nil, nil, err
	}
	if uint32(len(b)) < dataLen {
		return nil, nil, errShortBuffer
	}
	if dataLen > 0 {
		tx.Data = append([]byte(nil), b[:dataLen]...)
	}
	return tx, b[dataLen:], nil
}

// EncodeHeader serializes a block header for peer-link transport.
func EncodeHeader(h block.Header) []byte {
	buf := make([]byte, 0, 4+32+32+8+8+4+8+4+4)
	buf = put32(buf, h.Version)
	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = put64(buf, uint64(h.Timestamp))
	buf = put64(buf, h.Height)
	buf = put32(buf, h.DifficultyTarget)
	buf = put64(buf, h.Nonce)
	buf = put32(buf, h.TxCount)
	buf = put32(buf, h.BlockSize)
	return buf
}

// DecodeHeader parses the layout EncodeHeader produces.
func DecodeHeader(b []byte) (block.Header, []byte, error) {
	var h block.Header
	var err error
	if h.Version, b, err = get32(b); err != nil {
		return h, nil, err
	}
	if h.PrevHash, b, err = getHash(b); err != nil {
		return h, nil, err
	}
	if h.MerkleRoot, b, err = getHash(b); err != nil {
		return h, nil, err
	}
	var ts uint64
	if ts, b, err = get64(b); err != nil {
		return h, nil, err
	}
	h.Timestamp = int64(ts)
	if h.Height, b, err = get64(b); err != nil {
		return h, nil, err
	}
	if h.DifficultyTarget, b, err = get32(b); err != nil {
		return h, nil, err
	}
	if h.Nonce, b, err = get64(b); err != nil {
		return h, nil, err
	}
	if h.TxCount, b, err = get32(b); err != nil {
		return h, nil, err
	}
	if h.BlockSize, b, err = get32(b); err != nil {
		return h, nil, err
	}
	return h, b, nil
}

// EncodeBlock serializes a full block (header + transactions).
func EncodeBlock(blk *block.Block) []byte {
	buf := EncodeHeader(blk.Header)
	buf = put32(buf, uint32(len(blk.Transactions)))
	for _, tx := range blk.Transactions {
		buf = append(buf, EncodeTransaction(tx)...)
	}
	return buf
}

// DecodeBlock parses the layout EncodeBlock produces.
func DecodeBlock(b []byte) (*block.Block, error) {
	h, b, err := DecodeHeader(b)
	if err != nil {
		return nil, err
	}
	count, b, err := get32(b)
	if err != nil {
		return nil, err
	}
	txs := make([]*txn.Transaction, 0, count)
	for i := uint32(0); i < count; i++ {
		var tx *txn.Transaction
		tx, b, err = DecodeTransaction(b)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return &block.Block{Header: h, Transactions: txs}, nil
}

// Encode serializes msg as a 4-byte big-endian command followed by its
// type-specific body, ready to be sealed by a secure channel or written
// raw behind a length prefix.
func Encode(msg Message) []byte {
	buf := put32(nil, uint32(msg.Command()))
	return append(buf, encodeBody(msg)...)
}

// Decode parses the layout Encode produces.
func Decode(raw []byte) (Message, error) {
	cmdVal, body, err := get32(raw)
	if err != nil {
		return nil, err
	}
	return decodeBody(MessageCommand(cmdVal), body)
}
