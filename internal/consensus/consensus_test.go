package consensus_test

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/chainstore"
	"github.com/pali-coin/node/internal/consensus"
	"github.com/pali-coin/node/internal/mempool"
	"github.com/pali-coin/node/internal/params"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
	"github.com/pali-coin/node/internal/utxo"
)

func newTestEngine(t *testing.T) (*consensus.Engine, *mempool.Mempool, *utxo.Set, params.Params) {
	t.Helper()
	p := params.RegtestParams
	store, err := chainstore.Open(t.TempDir(), p)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	set := utxo.New()
	require.NoError(t, store.LoadUTXOSet(set))

	var eng *consensus.Engine
	pool := mempool.New(mempool.Config{MaxCount: 1000, MaxBytes: 1 << 20, ChainID: uint64(p.Network), CoinbaseMaturity: p.CoinbaseMaturity}, set, func() uint64 {
		_, h := eng.Tip()
		return h
	})
	eng, err = consensus.NewEngine(store, set, pool, p)
	require.NoError(t, err)
	return eng, pool, set, p
}

func mustKeyPair(t *testing.T) (*primitives.PrivateKey, primitives.Address) {
	t.Helper()
	priv, pub, err := primitives.NewKeyPair(rand.Reader)
	require.NoError(t, err)
	addr, err := pub.Address()
	require.NoError(t, err)
	return priv, addr
}

// mineBlock assembles and proof-of-work-mines a valid successor to parent.
func mineBlock(t *testing.T, p params.Params, parent *block.Block, minerAddr primitives.Address, reward uint64, txs []*txn.Transaction) *block.Block {
	t.Helper()
	height := parent.Header.Height + 1
	var feeSum uint64
	for _, tx := range txs {
		feeSum += tx.Fee
	}
	coinbase := txn.NewCoinbase(minerAddr, reward+feeSum, height, uint64(p.Network))
	all := append([]*txn.Transaction{coinbase}, txs...)

	b := &block.Block{
		Header: block.Header{
			Version:          1,
			PrevHash:         parent.Hash(),
			Timestamp:        parent.Header.Timestamp + 1,
			Height:           height,
			DifficultyTarget: p.GenesisDifficultyBits,
			TxCount:          uint32(len(all)),
		},
		Transactions: all,
	}
	b.Header.MerkleRoot = b.RecomputeMerkleRoot()
	b.Header.BlockSize = b.SerializedSize()

	for nonce := uint64(0); ; nonce++ {
		b.Header.Nonce = nonce
		if primitives.MeetsTarget(b.Hash(), b.Header.DifficultyTarget) {
			return b
		}
		require.LessOrEqual(t, nonce, uint64(1_000_000), "mineBlock: exceeded nonce search bound")
	}
}

func TestAddBlockStraightLineAppend(t *testing.T) {
	eng, _, set, p := newTestEngine(t)
	genesis := chainstore.Genesis(p)
	minerAddr, _ := mustKeyPair(t)

	b1 := mineBlock(t, p, genesis, minerAddr, consensus.BlockReward(p, 1), nil)
	require.NoError(t, eng.AddBlock(b1))

	tip, height := eng.Tip()
	require.Equal(t, b1.Hash(), tip)
	require.Equal(t, uint64(1), height)
	require.Equal(t, consensus.BlockReward(p, 1), set.Balance(minerAddr))
}

func TestBlockRewardHalves(t *testing.T) {
	p := params.MainnetParams
	require.Equal(t, p.InitialReward, consensus.BlockReward(p, 0))
	half := consensus.BlockReward(p, p.HalvingInterval)
	require.Equal(t, p.InitialReward/2, half)
	require.Zero(t, consensus.BlockReward(p, p.HalvingInterval*p.MaxHalvings), "BlockReward after MaxHalvings should saturate to 0")
}

func TestAddBlockRejectsTooDeep(t *testing.T) {
	eng, _, _, p := newTestEngine(t)
	genesis := chainstore.Genesis(p)
	minerAddr, _ := mustKeyPair(t)

	parent := genesis
	for i := uint64(1); i <= p.MaxReorgDepth+2; i++ {
		bits, err := eng.NextDifficulty()
		require.NoError(t, err)
		tp := p
		tp.GenesisDifficultyBits = bits
		b := mineBlock(t, tp, parent, minerAddr, consensus.BlockReward(p, i), nil)
		require.NoError(t, eng.AddBlock(b), "AddBlock(height %d)", i)
		parent = b
	}

	stale := mineBlock(t, p, genesis, minerAddr, consensus.BlockReward(p, 1), nil)
	require.Error(t, eng.AddBlock(stale), "AddBlock(stale deep block) should be rejected")
}

func TestReorgSwitchesToHeavierBranch(t *testing.T) {
	eng, _, set, p := newTestEngine(t)
	genesis := chainstore.Genesis(p)
	minerA, _ := mustKeyPair(t)
	minerB, _ := mustKeyPair(t)

	a1 := mineBlock(t, p, genesis, minerA, consensus.BlockReward(p, 1), nil)
	require.NoError(t, eng.AddBlock(a1))

	// competing branch rooted at genesis, two blocks long
	b1 := mineBlock(t, p, genesis, minerB, consensus.BlockReward(p, 1), nil)
	b1.Header.Timestamp++ // avoid colliding with a1's hash via distinct content
	b1.Header.MerkleRoot = b1.RecomputeMerkleRoot()
	b1.Header.BlockSize = b1.SerializedSize()
	for nonce := uint64(0); ; nonce++ {
		b1.Header.Nonce = nonce
		if primitives.MeetsTarget(b1.Hash(), b1.Header.DifficultyTarget) {
			break
		}
	}
	require.NoError(t, eng.AddBlock(b1))
	b2 := mineBlock(t, p, b1, minerB, consensus.BlockReward(p, 2), nil)
	require.NoError(t, eng.AddBlock(b2))

	tip, height := eng.Tip()
	require.Equal(t, b2.Hash(), tip)
	require.Equal(t, uint64(2), height)
	require.Zero(t, set.Balance(minerA), "Balance(minerA) after reorg")
	require.Equal(t, consensus.BlockReward(p, 1)+consensus.BlockReward(p, 2), set.Balance(minerB), "Balance(minerB) after reorg")
}
