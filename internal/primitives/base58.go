package primitives

import (
	"math/big"

	"github.com/pkg/errors"
)

// base58Alphabet omits 0, O, I, and l, which look alike in many fonts.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var base58Radix = big.NewInt(58)

// EncodeAddress renders an Address as a Base58Check string: version byte,
// payload, 4-byte double-SHA256 checksum, all base58-encoded. This is the
// human-facing form the wallet collaborator prints and parses.
func EncodeAddress(addr Address, version byte) string {
	payload := make([]byte, 0, 1+AddressSize+4)
	payload = append(payload, version)
	payload = append(payload, addr[:]...)
	checksum := DoubleSHA256(payload)
	payload = append(payload, checksum[:4]...)
	return base58Encode(payload)
}

// DecodeAddress parses a Base58Check address string produced by
// EncodeAddress, verifying its checksum and version byte.
func DecodeAddress(s string, wantVersion byte) (Address, error) {
	payload, err := base58Decode(s)
	if err != nil {
		return Address{}, err
	}
	if len(payload) != 1+AddressSize+4 {
		return Address{}, errors.Errorf("primitives: decoded address has wrong length %d", len(payload))
	}
	version := payload[0]
	body := payload[1 : 1+AddressSize]
	wantChecksum := DoubleSHA256(payload[:1+AddressSize])
	gotChecksum := payload[1+AddressSize:]
	for i := 0; i < 4; i++ {
		if wantChecksum[i] != gotChecksum[i] {
			return Address{}, errors.New("primitives: address checksum mismatch")
		}
	}
	if version != wantVersion {
		return Address{}, errors.Errorf("primitives: address version %d does not match expected %d", version, wantVersion)
	}
	var addr Address
	copy(addr[:], body)
	return addr, nil
}

func base58Encode(b []byte) string {
	x := new(big.Int).SetBytes(b)
	mod := new(big.Int)
	var out []byte
	zero := big.NewInt(0)
	for x.Cmp(zero) > 0 {
		x.DivMod(x, base58Radix, mod)
		out = append(out, base58Alphabet[mod.Int64()])
	}
	// Preserve leading zero bytes as leading '1's.
	for _, c := range b {
		if c != 0 {
			break
		}
		out = append(out, base58Alphabet[0])
	}
	reverse(out)
	return string(out)
}

func base58Decode(s string) ([]byte, error) {
	x := big.NewInt(0)
	for _, r := range s {
		idx := indexOf(base58Alphabet, byte(r))
		if idx < 0 {
			return nil, errors.Errorf("primitives: invalid base58 character %q", r)
		}
		x.Mul(x, base58Radix)
		x.Add(x, big.NewInt(int64(idx)))
	}
	decoded := x.Bytes()
	leadingZeros := 0
	for _, r := range s {
		if r != rune(base58Alphabet[0]) {
			break
		}
		leadingZeros++
	}
	out := make([]byte, leadingZeros+len(decoded))
	copy(out[leadingZeros:], decoded)
	return out, nil
}

func indexOf(alphabet string, c byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
