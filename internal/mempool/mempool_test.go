package mempool_test

import (
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/mempool"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
	"github.com/pali-coin/node/internal/utxo"
)

func fundedSender(t *testing.T, set *utxo.Set, amount uint64) (primitives.Address, *primitives.PrivateKey) {
	t.Helper()
	priv, pub, err := primitives.NewKeyPair(rand.Reader)
	require.NoError(t, err)
	addr, err := pub.Address()
	require.NoError(t, err)
	cb := txn.NewCoinbase(addr, amount, 1, 1)
	b := &block.Block{Transactions: []*txn.Transaction{cb}, Header: block.Header{Height: 1}}
	_, err = set.Apply(b, 0)
	require.NoError(t, err)
	return addr, priv
}

func signedTransfer(t *testing.T, priv *primitives.PrivateKey, from, to primitives.Address, amount, fee, nonce uint64) *txn.Transaction {
	t.Helper()
	tx := &txn.Transaction{
		Version: 1,
		From:    from,
		To:      to,
		Amount:  amount,
		Fee:     fee,
		Nonce:   nonce,
		ChainID: 1,
	}
	require.NoError(t, txn.Sign(tx, priv))
	return tx
}

func newPool(cfg mempool.Config, set *utxo.Set) *mempool.Mempool {
	return mempool.New(cfg, set, func() uint64 { return 1 })
}

func rejectReason(t *testing.T, err error) mempool.Reason {
	t.Helper()
	var reject *mempool.RejectError
	require.True(t, errors.As(err, &reject), "error %v is not a *mempool.RejectError", err)
	return reject.Why
}

func TestAddRejectsDuplicate(t *testing.T) {
	set := utxo.New()
	sender, priv := fundedSender(t, set, 10_000_000)
	recipient, _ := fundedSender(t, set, 0)

	cfg := mempool.Config{MaxCount: 10, MaxBytes: 1 << 20, ChainID: 1}
	pool := newPool(cfg, set)

	tx := signedTransfer(t, priv, sender, recipient, 1000, 10, 1)
	require.NoError(t, pool.Add(tx))
	err := pool.Add(tx)
	require.Equal(t, mempool.ReasonDuplicate, rejectReason(t, err))
}

func TestAddRejectsDoubleSpendSameNonce(t *testing.T) {
	set := utxo.New()
	sender, priv := fundedSender(t, set, 10_000_000)
	recipient, _ := fundedSender(t, set, 0)

	cfg := mempool.Config{MaxCount: 10, MaxBytes: 1 << 20, ChainID: 1}
	pool := newPool(cfg, set)

	first := signedTransfer(t, priv, sender, recipient, 1000, 10, 5)
	second := signedTransfer(t, priv, sender, recipient, 2000, 10, 5)
	require.NoError(t, pool.Add(first))
	err := pool.Add(second)
	require.Equal(t, mempool.ReasonDoubleSpend, rejectReason(t, err))
}

func TestAddRejectsInsufficientBalance(t *testing.T) {
	set := utxo.New()
	sender, priv := fundedSender(t, set, 1000)
	recipient, _ := fundedSender(t, set, 0)

	cfg := mempool.Config{MaxCount: 10, MaxBytes: 1 << 20, ChainID: 1}
	pool := newPool(cfg, set)

	tx := signedTransfer(t, priv, sender, recipient, 5000, 10, 1)
	err := pool.Add(tx)
	require.Equal(t, mempool.ReasonInsufficientBalance, rejectReason(t, err))
}

func TestAddRejectsFull(t *testing.T) {
	set := utxo.New()
	sender, priv := fundedSender(t, set, 10_000_000)
	recipient, _ := fundedSender(t, set, 0)

	cfg := mempool.Config{MaxCount: 1, MaxBytes: 1 << 20, ChainID: 1}
	pool := newPool(cfg, set)

	first := signedTransfer(t, priv, sender, recipient, 1000, 10, 1)
	second := signedTransfer(t, priv, sender, recipient, 1000, 10, 2)
	require.NoError(t, pool.Add(first))
	err := pool.Add(second)
	require.Equal(t, mempool.ReasonFull, rejectReason(t, err))
}

func TestSelectForBlockOrdersByFeePerByteDescending(t *testing.T) {
	set := utxo.New()
	senderLow, privLow := fundedSender(t, set, 10_000_000)
	senderHigh, privHigh := fundedSender(t, set, 10_000_000)
	recipient, _ := fundedSender(t, set, 0)

	cfg := mempool.Config{MaxCount: 10, MaxBytes: 1 << 20, ChainID: 1}
	pool := newPool(cfg, set)

	low := signedTransfer(t, privLow, senderLow, recipient, 1000, 10, 1)
	high := signedTransfer(t, privHigh, senderHigh, recipient, 1000, 5000, 1)
	require.NoError(t, pool.Add(low))
	require.NoError(t, pool.Add(high))

	selected := pool.SelectForBlock(10, 1<<20)
	require.Len(t, selected, 2)
	require.Equal(t, high.ID(), selected[0].ID(), "selected[0] is not the higher fee-per-byte transaction")
}

func TestRemoveIsNoOpForUnknownID(t *testing.T) {
	set := utxo.New()
	cfg := mempool.Config{MaxCount: 10, MaxBytes: 1 << 20, ChainID: 1}
	pool := newPool(cfg, set)
	pool.Remove(txn.ID{})
	count, _ := pool.Stats()
	require.Zero(t, count)
}

func TestRemoveThenContainsFalse(t *testing.T) {
	set := utxo.New()
	sender, priv := fundedSender(t, set, 10_000_000)
	recipient, _ := fundedSender(t, set, 0)

	cfg := mempool.Config{MaxCount: 10, MaxBytes: 1 << 20, ChainID: 1}
	pool := newPool(cfg, set)

	tx := signedTransfer(t, priv, sender, recipient, 1000, 10, 1)
	require.NoError(t, pool.Add(tx))
	pool.Remove(tx.ID())
	require.False(t, pool.Contains(tx.ID()))
}
