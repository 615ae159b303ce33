package chainstore

import (
	"encoding/binary"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
	"github.com/pali-coin/node/internal/utxo"
)

// recordVersion is the leading byte on every encoded record, so the wire
// layout can change without breaking old data directories.
const recordVersion = 1

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

func get32(b []byte) (uint32, []byte) {
	return binary.BigEndian.Uint32(b[:4]), b[4:]
}

func get64(b []byte) (uint64, []byte) {
	return binary.BigEndian.Uint64(b[:8]), b[8:]
}

func encodeTransaction(tx *txn.Transaction) []byte {
	buf := make([]byte, 0, 1+4+20+20+8*5+primitives.SignatureSize+primitives.PublicKeySize+4+len(tx.Data))
	buf = append(buf, recordVersion)
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

func decodeTransaction(b []byte) (*txn.Transaction, error) {
	if len(b) < 1 {
		return nil, &PersistError{Rule: RuleCorrupt}
	}
	b = b[1:] // version byte, only one format exists so far
	if len(b) < 4+20+20+8*5+primitives.SignatureSize+primitives.PublicKeySize+4 {
		return nil, &PersistError{Rule: RuleCorrupt}
	}
	tx := &txn.Transaction{}
	tx.Version, b = get32(b)
	copy(tx.From[:], b[:20])
	b = b[20:]
	copy(tx.To[:], b[:20])
	b = b[20:]
	tx.Amount, b = get64(b)
	tx.Fee, b = get64(b)
	tx.Nonce, b = get64(b)
	tx.ChainID, b = get64(b)
	tx.Expiry, b = get64(b)
	copy(tx.Signature[:], b[:primitives.SignatureSize])
	b = b[primitives.SignatureSize:]
	copy(tx.PublicKey[:], b[:primitives.PublicKeySize])
	b = b[primitives.PublicKeySize:]
	dataLen, b := get32(b)
	if uint32(len(b)) < dataLen {
		return nil, &PersistError{Rule: RuleCorrupt}
	}
	if dataLen > 0 {
		tx.Data = append([]byte(nil), b[:dataLen]...)
	}
	return tx, nil
}

func encodeBlock(b *block.Block) []byte {
	h := b.Header
	buf := make([]byte, 0, 1+4+32+32+8+8+4+8+4+4)
	buf = append(buf, recordVersion)
	buf = put32(buf, h.Version)
	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = put64(buf, uint64(h.Timestamp))
	buf = put64(buf, h.Height)
	buf = put32(buf, h.DifficultyTarget)
	buf = put64(buf, h.Nonce)
	buf = put32(buf, h.TxCount)
	buf = put32(buf, h.BlockSize)
	buf = put32(buf, uint32(len(b.Transactions)))
	for _, tx := range b.Transactions {
		enc := encodeTransaction(tx)
		buf = put32(buf, uint32(len(enc)))
		buf = append(buf, enc...)
	}
	return buf
}

func decodeBlock(raw []byte) (*block.Block, error) {
	if len(raw) < 1 {
		return nil, &PersistError{Rule: RuleCorrupt}
	}
	b := raw[1:]
	if len(b) < 4+32+32+8+8+4+8+4+4+4 {
		return nil, &PersistError{Rule: RuleCorrupt}
	}
	var h block.Header
	h.Version, b = get32(b)
	copy(h.PrevHash[:], b[:32])
	b = b[32:]
	copy(h.MerkleRoot[:], b[:32])
	b = b[32:]
	var ts uint64
	ts, b = get64(b)
	h.Timestamp = int64(ts)
	h.Height, b = get64(b)
	h.DifficultyTarget, b = get32(b)
	h.Nonce, b = get64(b)
	h.TxCount, b = get32(b)
	h.BlockSize, b = get32(b)
	txCount, b := get32(b)

	txs := make([]*txn.Transaction, 0, txCount)
	for i := uint32(0); i < txCount; i++ {
		if len(b) < 4 {
			return nil, &PersistError{Rule: RuleCorrupt}
		}
		var n uint32
		n, b = get32(b)
		if uint32(len(b)) < n {
			return nil, &PersistError{Rule: RuleCorrupt}
		}
		tx, err := decodeTransaction(b[:n])
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
		b = b[n:]
	}
	return &block.Block{Header: h, Transactions: txs}, nil
}

func encodeUTXOEntry(e utxo.Entry) []byte {
	buf := make([]byte, 0, 1+8+20+8+1)
	buf = append(buf, recordVersion)
	buf = put64(buf, e.Amount)
	buf = append(buf, e.Address[:]...)
	buf = put64(buf, e.Height)
	if e.IsCoinbase {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func decodeUTXOEntry(b []byte) (utxo.Entry, error) {
	if len(b) != 1+8+20+8+1 {
		return utxo.Entry{}, &PersistError{Rule: RuleCorrupt}
	}
	b = b[1:]
	var e utxo.Entry
	e.Amount, b = get64(b)
	copy(e.Address[:], b[:20])
	b = b[20:]
	e.Height, b = get64(b)
	e.IsCoinbase = b[0] == 1
	return e, nil
}

// ChainState is the single tip record: best block, cumulative work,
// current difficulty, circulating supply, and chain id.
type ChainState struct {
	BestHash         primitives.Hash
	BestHeight       uint64
	CumulativeWork   uint64
	CurrentBits      uint32
	CirculatingSupply uint64
	ChainID          uint64
}

func encodeChainState(cs ChainState) []byte {
	buf := make([]byte, 0, 1+32+8+8+4+8+8)
	buf = append(buf, recordVersion)
	buf = append(buf, cs.BestHash[:]...)
	buf = put64(buf, cs.BestHeight)
	buf = put64(buf, cs.CumulativeWork)
	buf = put32(buf, cs.CurrentBits)
	buf = put64(buf, cs.CirculatingSupply)
	buf = put64(buf, cs.ChainID)
	return buf
}

func decodeChainState(raw []byte) (ChainState, error) {
	if len(raw) != 1+32+8+8+4+8+8 {
		return ChainState{}, &PersistError{Rule: RuleCorrupt}
	}
	b := raw[1:]
	var cs ChainState
	copy(cs.BestHash[:], b[:32])
	b = b[32:]
	cs.BestHeight, b = get64(b)
	cs.CumulativeWork, b = get64(b)
	cs.CurrentBits, b = get32(b)
	cs.CirculatingSupply, b = get64(b)
	cs.ChainID, b = get64(b)
	return cs, nil
}
