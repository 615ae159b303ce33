package consensus

import "github.com/pali-coin/node/internal/primitives"

// workForBits approximates the expected hashing work behind a block with
// the given difficulty target as 2^bits: each additional required leading
// zero bit doubles the expected attempt count.
func workForBits(bits uint32) uint64 {
	if bits >= 63 {
		return ^uint64(0)
	}
	return uint64(1) << bits
}

// log2RatioBits approximates round(log2(target/actual)) using squared
// integer comparisons instead of a floating log2, so two independently
// computed difficulties never diverge by a rounding epsilon. Valid for the
// proportional middle band, where target/actual lies in (1/4, 4) and the
// rounded result is therefore one of -2, -1, 0, 1, 2.
func log2RatioBits(target, actual int64) int32 {
	if actual <= 0 {
		actual = 1
	}
	t2 := target * target
	a2 := actual * actual
	switch {
	case t2 >= 8*a2:
		return 2
	case t2 >= 2*a2:
		return 1
	case 2*t2 >= a2:
		return 0
	case 8*t2 >= a2:
		return -1
	default:
		return -2
	}
}

// applyBitsDelta shifts bits by delta, floored at min so difficulty never
// drops below the network minimum.
func applyBitsDelta(bits uint32, delta int32, min uint32) uint32 {
	adjusted := int64(bits) + int64(delta)
	if adjusted < int64(min) {
		return min
	}
	return uint32(adjusted)
}

// expectedDifficulty computes the difficulty bits a block at height must
// meet, given the chain ending at parentHash. Between adjustment
// boundaries it holds the parent's difficulty constant; at a boundary it
// compares the interval's actual timespan to the target timespan: outside
// the quarter/quadruple band difficulty steps by exactly 1 bit, and inside
// the band it moves proportionally to log2(target/actual).
func (e *Engine) expectedDifficulty(height uint64, parentHash primitives.Hash) (uint32, error) {
	if height == 0 {
		return e.params.GenesisDifficultyBits, nil
	}
	parent, err := e.lookupBlock(parentHash)
	if err != nil {
		return 0, err
	}
	parentBits := parent.Header.DifficultyTarget
	if height%e.params.DifficultyAdjustmentInterval != 0 {
		return parentBits, nil
	}

	endTS := parent.Header.Timestamp
	startHash, err := e.ancestorHash(parentHash, e.params.DifficultyAdjustmentInterval-1)
	if err != nil {
		return parentBits, nil // insufficient history yet, hold constant
	}
	startBlock, err := e.lookupBlock(startHash)
	if err != nil {
		return parentBits, nil
	}
	actual := endTS - startBlock.Header.Timestamp
	target := int64(e.params.TargetBlockTime.Seconds()) * int64(e.params.DifficultyAdjustmentInterval)

	switch {
	case actual < target/4:
		return parentBits + 1, nil
	case actual > target*4:
		if parentBits <= e.params.MinDifficultyBits {
			return e.params.MinDifficultyBits, nil
		}
		return parentBits - 1, nil
	default:
		delta := log2RatioBits(target, actual)
		return applyBitsDelta(parentBits, delta, e.params.MinDifficultyBits), nil
	}
}

// ancestorHash walks back steps parent pointers from start, returning the
// hash steps-generations back.
func (e *Engine) ancestorHash(start primitives.Hash, steps uint64) (primitives.Hash, error) {
	hash := start
	for i := uint64(0); i < steps; i++ {
		b, err := e.lookupBlock(hash)
		if err != nil {
			return primitives.Hash{}, err
		}
		if b.Header.Height == 0 {
			return hash, nil
		}
		hash = b.Header.PrevHash
	}
	return hash, nil
}
