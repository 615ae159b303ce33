package txn

import (
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pkg/errors"
)

// Sign signs tx's preimage with priv and embeds both the signature and
// priv's public key into tx. The sender address implied by priv's public
// key must already match tx.From; callers build the transaction with the
// intended From before calling Sign.
func Sign(tx *Transaction, priv *primitives.PrivateKey) error {
	pub := priv.PublicKey()
	copy(tx.PublicKey[:], pub.Bytes())

	sig, err := primitives.Sign(priv, tx.ID())
	if err != nil {
		return errors.Wrap(err, "txn: sign")
	}
	tx.Signature = sig
	return nil
}

// VerifySignature checks tx's signature against its embedded public key:
// recover the signer's public key from the signature, require it to equal
// the embedded one, then independently run standard ECDSA verification.
func VerifySignature(tx *Transaction) bool {
	pub, err := primitives.PublicKeyFromBytes(tx.PublicKey[:])
	if err != nil {
		return false
	}
	return primitives.Verify(pub, tx.ID(), tx.Signature)
}
