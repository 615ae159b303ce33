package chainstore

import (
	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/params"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
)

// Genesis builds the deterministic first block for p: a burn-address
// coinbase of InitialReward, GenesisTimestamp, GenesisDifficultyBits
// difficulty, zero prev hash, height 0. Any two nodes configured with the
// same Params compute the same genesis hash.
func Genesis(p params.Params) *block.Block {
	coinbase := txn.NewCoinbase(primitives.BurnAddress, p.InitialReward, 0, uint64(p.Network))

	b := &block.Block{
		Header: block.Header{
			Version:          1,
			Timestamp:        p.GenesisTimestamp,
			Height:           0,
			DifficultyTarget: p.GenesisDifficultyBits,
			TxCount:          1,
		},
		Transactions: []*txn.Transaction{coinbase},
	}
	b.Header.MerkleRoot = b.RecomputeMerkleRoot()
	b.Header.BlockSize = b.SerializedSize()
	return b
}
