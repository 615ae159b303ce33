package miner

import (
	"time"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/consensus"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
)

// job is an immutable mining template: workers only ever mutate their own
// copy of job.block.Header while searching for a nonce.
type job struct {
	block      *block.Block
	parentHash primitives.Hash
	createdAt  time.Time
}

// buildJob assembles a template from the current tip: selected mempool
// prefix, a prepended coinbase paying cfg.RewardAddress the block reward
// plus the batch's fee sum, next difficulty, and current timestamp.
func (m *Miner) buildJob() (*job, error) {
	tipHash, tipHeight := m.engine.Tip()
	height := tipHeight + 1

	bits, err := m.engine.NextDifficulty()
	if err != nil {
		return nil, err
	}

	maxTxCount := m.params.MaxBlockTxCount - 1 // room for the coinbase
	txs := m.pool.SelectForBlock(maxTxCount, m.params.MaxBlockSize)
	var feeSum uint64
	for _, tx := range txs {
		feeSum += tx.Fee
	}
	reward := consensus.BlockReward(m.params, height)
	coinbase := txn.NewCoinbase(m.cfg.RewardAddress, reward+feeSum, height, uint64(m.params.Network))

	all := make([]*txn.Transaction, 0, len(txs)+1)
	all = append(all, coinbase)
	all = append(all, txs...)

	b := &block.Block{
		Header: block.Header{
			Version:          1,
			PrevHash:         tipHash,
			Timestamp:        time.Now().Unix(),
			Height:           height,
			DifficultyTarget: bits,
			TxCount:          uint32(len(all)),
		},
		Transactions: all,
	}
	b.Header.MerkleRoot = b.RecomputeMerkleRoot()
	b.Header.BlockSize = b.SerializedSize()

	return &job{block: b, parentHash: tipHash, createdAt: time.Now()}, nil
}
