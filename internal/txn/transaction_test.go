package txn_test

import (
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
)

const testChainID = 1

func newSignedTransfer(t *testing.T, amount, fee, nonce uint64) (*txn.Transaction, *primitives.PrivateKey) {
	t.Helper()
	priv, pub, err := primitives.NewKeyPair(rand.Reader)
	require.NoError(t, err)
	from, err := pub.Address()
	require.NoError(t, err)
	to := primitives.Address{0x01, 0x02, 0x03}

	tx := &txn.Transaction{
		Version: 1,
		From:    from,
		To:      to,
		Amount:  amount,
		Fee:     fee,
		Nonce:   nonce,
		ChainID: testChainID,
	}
	require.NoError(t, txn.Sign(tx, priv))
	return tx, priv
}

func validationRule(t *testing.T, err error) txn.Rule {
	t.Helper()
	var ve *txn.ValidationError
	require.True(t, errors.As(err, &ve), "error %v is not a *txn.ValidationError", err)
	return ve.Rule
}

func TestSignThenVerifySucceeds(t *testing.T) {
	tx, _ := newSignedTransfer(t, 1_000_000, 1_000, 0)
	require.True(t, txn.VerifySignature(tx), "VerifySignature() should accept a freshly signed transaction")
	require.NoError(t, txn.Validate(tx, testChainID, time.Now()))
}

func TestSingleBitPerturbationFlipsVerify(t *testing.T) {
	tx, _ := newSignedTransfer(t, 1_000_000, 1_000, 0)

	mutate := func(mutator func(tx *txn.Transaction)) bool {
		clone := *tx
		mutator(&clone)
		return txn.VerifySignature(&clone)
	}

	require.False(t, mutate(func(tx *txn.Transaction) { tx.Amount++ }), "flipping Amount did not invalidate the signature")
	require.False(t, mutate(func(tx *txn.Transaction) { tx.Fee++ }), "flipping Fee did not invalidate the signature")
	require.False(t, mutate(func(tx *txn.Transaction) { tx.Nonce++ }), "flipping Nonce did not invalidate the signature")
	require.False(t, mutate(func(tx *txn.Transaction) { tx.From[0] ^= 0x01 }), "flipping From did not invalidate the signature")
	require.False(t, mutate(func(tx *txn.Transaction) { tx.To[0] ^= 0x01 }), "flipping To did not invalidate the signature")
	require.False(t, mutate(func(tx *txn.Transaction) { tx.ChainID++ }), "flipping ChainID did not invalidate the signature")
	require.False(t, mutate(func(tx *txn.Transaction) { tx.Signature[0] ^= 0x01 }), "flipping Signature did not invalidate the signature")
}

func TestValidateRejectsFeeAboveHalf(t *testing.T) {
	tx, _ := newSignedTransfer(t, 1_000_000, 500_001, 0)
	err := txn.Validate(tx, testChainID, time.Now())
	require.Equal(t, txn.RuleFeeTooHigh, validationRule(t, err))
}

func TestValidateRejectsZeroAmount(t *testing.T) {
	tx, _ := newSignedTransfer(t, 0, 0, 0)
	err := txn.Validate(tx, testChainID, time.Now())
	require.Equal(t, txn.RuleZeroAmount, validationRule(t, err))
}

func TestValidateRejectsWrongChainID(t *testing.T) {
	tx, _ := newSignedTransfer(t, 1_000, 10, 0)
	err := txn.Validate(tx, testChainID+1, time.Now())
	require.Equal(t, txn.RuleWrongChainID, validationRule(t, err))
}

func TestValidateRejectsExpired(t *testing.T) {
	priv, pub, err := primitives.NewKeyPair(rand.Reader)
	require.NoError(t, err)
	from, _ := pub.Address()
	tx := &txn.Transaction{
		Version: 1,
		From:    from,
		To:      primitives.Address{0xAA},
		Amount:  100,
		Fee:     1,
		ChainID: testChainID,
		Expiry:  uint64(time.Now().Add(-time.Hour).Unix()),
	}
	require.NoError(t, txn.Sign(tx, priv))
	err = txn.Validate(tx, testChainID, time.Now())
	require.Equal(t, txn.RuleExpired, validationRule(t, err))
}

func TestCoinbaseIsExemptFromTransferRules(t *testing.T) {
	cb := txn.NewCoinbase(primitives.Address{0x01}, 5_000_000, 1, testChainID)
	require.True(t, cb.IsCoinbase())
	require.NoError(t, txn.Validate(cb, testChainID, time.Now()), "coinbase should validate")
}

func TestIDExcludesSignature(t *testing.T) {
	tx, priv := newSignedTransfer(t, 1_000, 10, 0)
	before := tx.ID()
	// Re-sign (nondeterministic per call in general, but even if the
	// signature bytes happen to differ, the id must not move).
	require.NoError(t, txn.Sign(tx, priv))
	require.Equal(t, before, tx.ID(), "ID() changed after re-signing; signature must be excluded from the txid")
}
