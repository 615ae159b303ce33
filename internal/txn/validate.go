package txn

import (
	"time"

	"github.com/pali-coin/node/internal/primitives"
)

// Validate checks a transaction's self-contained shape: amount, fee
// ceiling, sender/recipient distinctness, chain id, expiry against now,
// data-blob size, and signature. It never consults the UTXO index — that
// is consensus-engine territory.
func Validate(tx *Transaction, chainID uint64, now time.Time) error {
	if tx.IsCoinbase() {
		return validateCoinbaseShape(tx)
	}

	if tx.Amount == 0 {
		return &ValidationError{TxID: tx.ID(), Rule: RuleZeroAmount}
	}
	if tx.Fee > tx.Amount/2 {
		return &ValidationError{TxID: tx.ID(), Rule: RuleFeeTooHigh}
	}
	if tx.From == tx.To {
		return &ValidationError{TxID: tx.ID(), Rule: RuleSelfTransfer}
	}
	if tx.ChainID != chainID {
		return &ValidationError{TxID: tx.ID(), Rule: RuleWrongChainID}
	}
	if tx.Expiry != 0 && uint64(now.Unix()) > tx.Expiry {
		return &ValidationError{TxID: tx.ID(), Rule: RuleExpired}
	}
	if len(tx.Data) > MaxDataSize {
		return &ValidationError{TxID: tx.ID(), Rule: RuleOversizeData}
	}
	if _, err := primitiveLenCheckPublicKey(tx); err != nil {
		return err
	}
	if !VerifySignature(tx) {
		return &ValidationError{TxID: tx.ID(), Rule: RuleBadSignature}
	}
	return nil
}

// validateCoinbaseShape checks that a coinbase has an empty signature and
// zero fee; it is otherwise exempt from the ordinary transfer checks
// (amount may equal the block reward, from==0x00 necessarily differs from
// to, fee is always zero).
func validateCoinbaseShape(tx *Transaction) error {
	if tx.Fee != 0 {
		return &ValidationError{TxID: tx.ID(), Rule: RuleBadCoinbaseShape}
	}
	var zero [primitives.SignatureSize]byte
	if tx.Signature != zero {
		return &ValidationError{TxID: tx.ID(), Rule: RuleBadCoinbaseShape}
	}
	return nil
}

func primitiveLenCheckPublicKey(tx *Transaction) (bool, error) {
	// PublicKey is a fixed-size array; any all-zero key is invalid since
	// the point at infinity is not a valid compressed public key encoding.
	var zero [primitives.PublicKeySize]byte
	if tx.PublicKey == zero {
		return false, &ValidationError{TxID: tx.ID(), Rule: RuleBadPublicKey}
	}
	return true, nil
}
