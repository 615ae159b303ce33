package primitives

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/pkg/errors"
)

// PrivateKeySize and PublicKeySize are the wire sizes of the raw scalar and
// the compressed public key respectively.
const (
	PrivateKeySize   = 32
	PublicKeySize    = 33
	SignatureSize    = 65
	signaturePayload = 64 // r || s, before the trailing recovery byte
)

// PrivateKey wraps a secp256k1 signing key.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// PublicKey wraps a secp256k1 compressed public key.
type PublicKey struct {
	key *btcec.PublicKey
}

// NewKeyPair generates a fresh secp256k1 key pair using rand as the entropy
// source (normally crypto/rand.Reader; tests may supply a deterministic
// reader).
func NewKeyPair(rand io.Reader) (*PrivateKey, *PublicKey, error) {
	key, err := ecdsaGenerateKey(rand)
	if err != nil {
		return nil, nil, errors.Wrap(err, "primitives: generate key")
	}
	return &PrivateKey{key: key}, &PublicKey{key: key.PubKey()}, nil
}

func ecdsaGenerateKey(rand io.Reader) (*btcec.PrivateKey, error) {
	var buf [PrivateKeySize]byte
	for {
		if _, err := io.ReadFull(rand, buf[:]); err != nil {
			return nil, err
		}
		var scalar secp256k1.ModNScalar
		overflow := scalar.SetByteSlice(buf[:])
		if overflow || scalar.IsZero() {
			continue
		}
		return btcec.PrivKeyFromBytes(buf[:]), nil
	}
}

// PrivateKeyFromBytes parses a 32-byte scalar into a PrivateKey.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeySize {
		return nil, errors.Errorf("primitives: private key must be %d bytes, got %d", PrivateKeySize, len(b))
	}
	key := btcec.PrivKeyFromBytes(b)
	return &PrivateKey{key: key}, nil
}

// PublicKey returns the public key corresponding to priv.
func (priv *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: priv.key.PubKey()}
}

// Bytes returns the raw 32-byte scalar.
func (priv *PrivateKey) Bytes() []byte {
	b := priv.key.Serialize()
	out := make([]byte, PrivateKeySize)
	copy(out, b)
	return out
}

// Bytes returns the 33-byte compressed encoding of pub.
func (pub *PublicKey) Bytes() []byte {
	return pub.key.SerializeCompressed()
}

// PublicKeyFromBytes parses a 33-byte compressed public key.
func PublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != PublicKeySize {
		return nil, errors.Errorf("primitives: public key must be %d bytes, got %d", PublicKeySize, len(b))
	}
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, errors.Wrap(err, "primitives: parse public key")
	}
	return &PublicKey{key: key}, nil
}

// Address derives the 20-byte address owned by pub.
func (pub *PublicKey) Address() (Address, error) {
	return DeriveAddress(pub.Bytes())
}

// Equal reports whether two public keys are the same point.
func (pub *PublicKey) Equal(other *PublicKey) bool {
	if pub == nil || other == nil {
		return pub == other
	}
	return pub.key.IsEqual(other.key)
}

// Sign produces a 65-byte recoverable signature over hash: 32 bytes R, 32
// bytes S, then a 1-byte recovery id. The signer verifies its own output
// before returning, failing closed on faulty RNG or curve misuse.
func Sign(priv *PrivateKey, hash Hash) ([SignatureSize]byte, error) {
	var out [SignatureSize]byte

	compact := ecdsa.SignCompact(priv.key, hash[:], true)
	if len(compact) != 1+signaturePayload {
		return out, errors.New("primitives: unexpected compact signature length")
	}
	header := compact[0]
	recID := (header - 27) &^ 4 // strip the "compressed key" bit, keep 0..3

	copy(out[:signaturePayload], compact[1:])
	out[signaturePayload] = recID

	pub := priv.PublicKey()
	if !Verify(pub, hash, out) {
		return out, errors.New("primitives: signature failed self-verification")
	}
	return out, nil
}

// Verify checks sig against hash and the claimed signer pub. It recovers the
// public key from the recoverable signature, requires the recovered key to
// equal pub, and independently runs standard ECDSA verification. Both
// checks must pass. Malformed input fails closed; it never panics.
func Verify(pub *PublicKey, hash Hash, sig [SignatureSize]byte) bool {
	if pub == nil {
		return false
	}
	recID := sig[signaturePayload]
	if recID > 3 {
		return false
	}

	compact := make([]byte, 1+signaturePayload)
	compact[0] = 27 + 4 + recID // assume compressed-key encoding throughout
	copy(compact[1:], sig[:signaturePayload])

	recovered, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return false
	}
	if !recovered.IsEqual(pub.key) {
		return false
	}

	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(sig[0:32]); overflow {
		return false
	}
	if overflow := s.SetByteSlice(sig[32:64]); overflow {
		return false
	}
	signature := ecdsa.NewSignature(&r, &s)
	return signature.Verify(hash[:], pub.key)
}

// RecoverPublicKey recovers the public key embedded in a recoverable
// signature without requiring the caller to already know it.
func RecoverPublicKey(hash Hash, sig [SignatureSize]byte) (*PublicKey, error) {
	recID := sig[signaturePayload]
	if recID > 3 {
		return nil, errors.New("primitives: invalid recovery id")
	}
	compact := make([]byte, 1+signaturePayload)
	compact[0] = 27 + 4 + recID
	copy(compact[1:], sig[:signaturePayload])

	recovered, _, err := ecdsa.RecoverCompact(compact, hash[:])
	if err != nil {
		return nil, errors.Wrap(err, "primitives: recover public key")
	}
	return &PublicKey{key: recovered}, nil
}

// ECDH computes the shared secret between priv and pub, used by the secure
// channel handshake and rekey schedule.
func ECDH(priv *PrivateKey, pub *PublicKey) []byte {
	return btcec.GenerateSharedSecret(priv.key, pub.key)
}
