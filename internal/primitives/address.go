package primitives

import (
	"crypto/sha256"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // legacy hash, required for address format compatibility
)

// AddressSize is the length in bytes of an Address.
const AddressSize = 20

// Address is an opaque 20-byte identifier derived from a compressed public
// key by SHA-256 then RIPEMD-160.
type Address [AddressSize]byte

// BurnAddress is the all-zero address used as the coinbase `from` field
// and as the genesis block's reward destination.
var BurnAddress Address

// DeriveAddress computes RIPEMD160(SHA256(compressedPubKey)).
func DeriveAddress(compressedPubKey []byte) (Address, error) {
	if len(compressedPubKey) != 33 {
		return Address{}, errors.Errorf("primitives: compressed public key must be 33 bytes, got %d", len(compressedPubKey))
	}
	sum := sha256.Sum256(compressedPubKey)
	ripe := ripemd160.New()
	// ripemd160.Write never returns an error.
	_, _ = ripe.Write(sum[:])
	var addr Address
	copy(addr[:], ripe.Sum(nil))
	return addr, nil
}

// String returns the hex encoding of the address.
func (a Address) String() string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 0, AddressSize*2)
	for _, b := range a {
		buf = append(buf, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return string(buf)
}

// IsBurn reports whether a is the coinbase burn address.
func (a Address) IsBurn() bool {
	return a == BurnAddress
}
