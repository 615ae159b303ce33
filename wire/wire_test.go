package wire_test

import (
	"bytes"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
	"github.com/pali-coin/node/wire"
)

func sampleTx() *txn.Transaction {
	tx := &txn.Transaction{
		Version: 1,
		Amount:  100,
		Fee:     1,
		Nonce:   7,
		ChainID: 1,
		Data:    []byte("memo"),
	}
	tx.From[0] = 0xAA
	tx.To[0] = 0xBB
	return tx
}

func TestEncodeDecodeTransactionRoundTrip(t *testing.T) {
	tx := sampleTx()
	enc := wire.EncodeTransaction(tx)
	got, rest, err := wire.DecodeTransaction(enc)
	require.NoError(t, err)
	require.Empty(t, rest, "trailing bytes after decode")
	require.Equal(t, tx.Amount, got.Amount)
	require.Equal(t, tx.From, got.From)
	require.Equal(t, tx.To, got.To)
	require.Equal(t, tx.Data, got.Data, "DecodeTransaction mismatch:\nwant %s\ngot  %s", spew.Sdump(tx), spew.Sdump(got))
}

func TestEncodeDecodeBlockRoundTrip(t *testing.T) {
	blk := &block.Block{
		Header: block.Header{
			Version:          1,
			Timestamp:        1234,
			Height:           5,
			DifficultyTarget: 10,
			Nonce:            99,
			TxCount:          1,
		},
		Transactions: []*txn.Transaction{sampleTx()},
	}
	enc := wire.EncodeBlock(blk)
	got, err := wire.DecodeBlock(enc)
	require.NoError(t, err)
	require.Equal(t, blk.Header.Height, got.Header.Height, "DecodeBlock header mismatch:\nwant %s\ngot  %s", spew.Sdump(blk.Header), spew.Sdump(got.Header))
	require.Len(t, got.Transactions, 1)
}

func TestMessageEncodeDecodeRoundTrip(t *testing.T) {
	cases := []wire.Message{
		&wire.MsgHello{ProtocolVersion: 1, ChainID: 9, UserAgent: "node/1.0"},
		&wire.MsgGetHeight{},
		&wire.MsgHeight{Height: 42},
		&wire.MsgPing{Nonce: 123},
		&wire.MsgError{Reason: "bad request"},
		&wire.MsgGetHeaders{Locator: []primitives.Hash{{1}, {2}}, StopHash: primitives.Hash{3}},
	}
	for _, msg := range cases {
		enc := wire.Encode(msg)
		got, err := wire.Decode(enc)
		require.NoError(t, err, "Decode(%T)", msg)
		require.Equal(t, msg.Command(), got.Command())
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := wire.Encode(&wire.MsgPing{Nonce: 7})
	require.NoError(t, wire.WriteFrame(&buf, payload))
	got, err := wire.ReadFrame(&buf)
	require.NoError(t, err)
	msg, err := wire.Decode(got)
	require.NoError(t, err)
	ping, ok := msg.(*wire.MsgPing)
	require.True(t, ok, "Decode = %T, want *wire.MsgPing", msg)
	require.Equal(t, uint64(7), ping.Nonce)
}
