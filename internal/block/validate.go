package block

import (
	"time"

	"github.com/pali-coin/node/internal/params"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
)

// Validate checks block against every self-contained structural rule:
// coinbase shape, Merkle root, proof-of-work, timestamp/height/prev-hash
// linkage against parent, size caps, and per-transaction validity. It does
// not consult the UTXO index — that belongs to the consensus engine.
// parent is nil only for the genesis block. expectedReward is
// block_reward(height) as computed by the caller (the consensus engine
// owns the reward schedule); this package only checks that the coinbase
// amount equals reward plus the sum of included fees.
func Validate(b *Block, parent *Header, p params.Params, expectedReward uint64, now time.Time) error {
	if len(b.Transactions) == 0 {
		return &RuleError{Rule: RuleNoCoinbase}
	}
	if !b.Transactions[0].IsCoinbase() {
		return &RuleError{Rule: RuleNoCoinbase}
	}
	for _, tx := range b.Transactions[1:] {
		if tx.IsCoinbase() {
			return &RuleError{Rule: RuleExtraCoinbase}
		}
	}

	if got := b.RecomputeMerkleRoot(); got != b.Header.MerkleRoot {
		return &RuleError{Rule: RuleBadMerkleRoot}
	}

	if !primitives.MeetsTarget(b.Hash(), b.Header.DifficultyTarget) {
		return &RuleError{Rule: RuleInsufficientPoW}
	}

	if parent != nil {
		if b.Header.Timestamp <= parent.Timestamp {
			return &RuleError{Rule: RuleBadTimestamp}
		}
		if b.Header.Height != parent.Height+1 {
			return &RuleError{Rule: RuleBadHeight}
		}
		if b.Header.PrevHash != parent.Hash() {
			return &RuleError{Rule: RuleBadPrevHash}
		}
	} else if b.Header.Height != 0 {
		return &RuleError{Rule: RuleBadHeight}
	}
	if b.Header.Timestamp > now.Add(p.MaxFutureDrift).Unix() {
		return &RuleError{Rule: RuleBadTimestamp}
	}

	if uint64(b.SerializedSize()) > p.MaxBlockSize {
		return &RuleError{Rule: RuleOversizeBlock}
	}
	if len(b.Transactions) > p.MaxBlockTxCount {
		return &RuleError{Rule: RuleTooManyTxs}
	}

	var feeSum uint64
	for i, tx := range b.Transactions {
		if i == 0 {
			continue // coinbase checked separately below
		}
		if err := txn.Validate(tx, uint64(p.Network), now); err != nil {
			return &RuleError{Rule: RuleBadTransaction, Err: err}
		}
		feeSum += tx.Fee
	}

	coinbase := b.Transactions[0]
	if coinbase.Amount != expectedReward+feeSum {
		return &RuleError{Rule: RuleBadCoinbaseAmount}
	}
	if coinbase.Nonce != b.Header.Height {
		return &RuleError{Rule: RuleBadCoinbaseAmount}
	}

	return nil
}
