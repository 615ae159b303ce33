package utxo_test

import (
	"crypto/rand"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
	"github.com/pali-coin/node/internal/utxo"
)

func mustAddress(t *testing.T) (primitives.Address, *primitives.PrivateKey) {
	t.Helper()
	priv, pub, err := primitives.NewKeyPair(rand.Reader)
	require.NoError(t, err)
	addr, err := pub.Address()
	require.NoError(t, err)
	return addr, priv
}

func TestApplyCoinbaseCreatesOneEntry(t *testing.T) {
	minerAddr, _ := mustAddress(t)
	cb := txn.NewCoinbase(minerAddr, 5_000_000, 1, 1)
	b := &block.Block{Transactions: []*txn.Transaction{cb}, Header: block.Header{Height: 1}}

	set := utxo.New()
	batch, err := set.Apply(b, 100)
	require.NoError(t, err)
	require.Len(t, batch.Added, 1)
	require.Equal(t, uint64(5_000_000), set.Balance(minerAddr))
}

func TestApplyThenRevertRestoresSetBitForBit(t *testing.T) {
	senderAddr, senderPriv := mustAddress(t)
	recipientAddr, _ := mustAddress(t)

	set := utxo.New()
	cb := txn.NewCoinbase(senderAddr, 5_000_000, 1, 1)
	genesisBlock := &block.Block{Transactions: []*txn.Transaction{cb}, Header: block.Header{Height: 1}}
	_, err := set.Apply(genesisBlock, 0)
	require.NoError(t, err)
	before := set.Snapshot()

	transfer := &txn.Transaction{
		Version: 1,
		From:    senderAddr,
		To:      recipientAddr,
		Amount:  1_000_000,
		Fee:     1_000,
		ChainID: 1,
	}
	require.NoError(t, txn.Sign(transfer, senderPriv))
	reward := txn.NewCoinbase(senderAddr, 5_000_000+transfer.Fee, 2, 1)
	spendBlock := &block.Block{
		Transactions: []*txn.Transaction{reward, transfer},
		Header:       block.Header{Height: 2},
	}

	batch, err := set.Apply(spendBlock, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), set.Balance(recipientAddr))

	set.Revert(batch)
	after := set.Snapshot()
	require.Equal(t, before, after, "Revert did not restore the set bit-for-bit:\nbefore=%s\nafter=%s", spew.Sdump(before), spew.Sdump(after))
}

func TestApplyRejectsImmatureCoinbaseSpend(t *testing.T) {
	senderAddr, senderPriv := mustAddress(t)
	recipientAddr, _ := mustAddress(t)

	set := utxo.New()
	cb := txn.NewCoinbase(senderAddr, 5_000_000, 1, 1)
	genesisBlock := &block.Block{Transactions: []*txn.Transaction{cb}, Header: block.Header{Height: 1}}
	const maturity = 100
	_, err := set.Apply(genesisBlock, maturity)
	require.NoError(t, err)

	transfer := &txn.Transaction{
		Version: 1,
		From:    senderAddr,
		To:      recipientAddr,
		Amount:  1_000_000,
		Fee:     1_000,
		ChainID: 1,
	}
	require.NoError(t, txn.Sign(transfer, senderPriv))
	reward := txn.NewCoinbase(senderAddr, 5_000_000+transfer.Fee, 2, 1)
	spendBlock := &block.Block{
		Transactions: []*txn.Transaction{reward, transfer},
		Header:       block.Header{Height: 2}, // only 1 confirmation, needs 100
	}

	_, err = set.Apply(spendBlock, maturity)
	require.Error(t, err, "Apply() should reject spending an immature coinbase output")
	require.Equal(t, uint64(5_000_000), set.Balance(senderAddr), "balance should be unchanged after a failed apply")
}

func TestApplySynthesizesChangeOutput(t *testing.T) {
	senderAddr, senderPriv := mustAddress(t)
	recipientAddr, _ := mustAddress(t)

	set := utxo.New()
	cb := txn.NewCoinbase(senderAddr, 10_000_000, 1, 1)
	genesisBlock := &block.Block{Transactions: []*txn.Transaction{cb}, Header: block.Header{Height: 1}}
	_, err := set.Apply(genesisBlock, 0)
	require.NoError(t, err)

	transfer := &txn.Transaction{
		Version: 1,
		From:    senderAddr,
		To:      recipientAddr,
		Amount:  1_000_000,
		Fee:     1_000,
		ChainID: 1,
	}
	require.NoError(t, txn.Sign(transfer, senderPriv))
	reward := txn.NewCoinbase(senderAddr, 5_000_000+transfer.Fee, 2, 1)
	spendBlock := &block.Block{
		Transactions: []*txn.Transaction{reward, transfer},
		Header:       block.Header{Height: 2},
	}
	_, err = set.Apply(spendBlock, 0)
	require.NoError(t, err)

	wantSenderBalance := (10_000_000 - 1_000_000 - 1_000) + (5_000_000 + transfer.Fee)
	require.Equal(t, wantSenderBalance, set.Balance(senderAddr))
}
