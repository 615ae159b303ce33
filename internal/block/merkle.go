package block

import "github.com/pali-coin/node/internal/primitives"

// BuildMerkleRoot computes the double-SHA-256 Merkle root of txids. At each
// level, adjacent hashes are paired and hashed; an odd level duplicates its
// last hash before pairing. An empty list yields the zero hash, legal only
// for historical test fixtures.
func BuildMerkleRoot(txids []primitives.Hash) primitives.Hash {
	if len(txids) == 0 {
		return primitives.Hash{}
	}

	level := make([]primitives.Hash, len(txids))
	copy(level, txids)

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]primitives.Hash, len(level)/2)
		for i := range next {
			var buf [2 * primitives.HashSize]byte
			copy(buf[:primitives.HashSize], level[2*i][:])
			copy(buf[primitives.HashSize:], level[2*i+1][:])
			next[i] = primitives.DoubleSHA256(buf[:])
		}
		level = next
	}
	return level[0]
}
