package secchan

import (
	"encoding/binary"

	"github.com/pali-coin/node/internal/primitives"
)

// rekeyFlag distinguishes a Frame carrying a RekeyPub from one that doesn't,
// since the field is otherwise omitted from the wire layout entirely.
const rekeyFlag = 1

// MarshalBinary encodes f as nonce(12) || counter(8) || rekeyFlag(1) ||
// [rekeyPub(33)] || mac(32) || ciphertext. Ciphertext has no length prefix
// of its own; callers frame the whole result (e.g. with a length-prefixed
// transport) so the reader knows where it ends.
func (f Frame) MarshalBinary() ([]byte, error) {
	size := nonceSize + 8 + 1 + macSize + len(f.Ciphertext)
	if f.RekeyPub != nil {
		size += primitives.PublicKeySize
	}
	buf := make([]byte, 0, size)
	buf = append(buf, f.Nonce[:]...)
	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], f.Counter)
	buf = append(buf, counterBytes[:]...)
	if f.RekeyPub != nil {
		buf = append(buf, rekeyFlag)
		buf = append(buf, f.RekeyPub[:]...)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, f.MAC[:]...)
	buf = append(buf, f.Ciphertext...)
	return buf, nil
}

// UnmarshalBinary decodes a buffer produced by MarshalBinary.
func (f *Frame) UnmarshalBinary(data []byte) error {
	min := nonceSize + 8 + 1 + macSize
	if len(data) < min {
		return &CryptoError{Rule: RuleShortMessage}
	}
	copy(f.Nonce[:], data[:nonceSize])
	data = data[nonceSize:]
	f.Counter = binary.BigEndian.Uint64(data[:8])
	data = data[8:]
	hasRekey := data[0] == rekeyFlag
	data = data[1:]
	f.RekeyPub = nil
	if hasRekey {
		if len(data) < primitives.PublicKeySize+macSize {
			return &CryptoError{Rule: RuleShortMessage}
		}
		var pub [primitives.PublicKeySize]byte
		copy(pub[:], data[:primitives.PublicKeySize])
		f.RekeyPub = &pub
		data = data[primitives.PublicKeySize:]
	}
	if len(data) < macSize {
		return &CryptoError{Rule: RuleShortMessage}
	}
	copy(f.MAC[:], data[:macSize])
	data = data[macSize:]
	f.Ciphertext = append([]byte(nil), data...)
	return nil
}
