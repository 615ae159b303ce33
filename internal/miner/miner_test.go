package miner_test

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pali-coin/node/internal/chainstore"
	"github.com/pali-coin/node/internal/consensus"
	"github.com/pali-coin/node/internal/mempool"
	"github.com/pali-coin/node/internal/miner"
	"github.com/pali-coin/node/internal/params"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/utxo"
)

func newTestRig(t *testing.T) (*consensus.Engine, *mempool.Mempool, params.Params) {
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
	return eng, pool, p
}

func TestMinerFindsAndSubmitsABlock(t *testing.T) {
	eng, pool, p := newTestRig(t)
	_, rewardPub, err := primitives.NewKeyPair(rand.Reader)
	require.NoError(t, err)
	rewardAddr, err := rewardPub.Address()
	require.NoError(t, err)

	m := miner.New(eng, pool, p, miner.Config{
		RewardAddress: rewardAddr,
		Workers:       2,
		RefreshEvery:  5 * time.Millisecond,
	})
	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, height := eng.Tip(); height >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, height := eng.Tip()
	require.GreaterOrEqual(t, height, uint64(1), "miner did not advance the chain tip within the deadline")
	require.NotZero(t, eng.Balance(rewardAddr), "reward address has zero balance after a block was mined")
}

func TestHashRateStartsAtZero(t *testing.T) {
	eng, pool, p := newTestRig(t)
	m := miner.New(eng, pool, p, miner.Config{RewardAddress: primitives.BurnAddress, Workers: 1})
	require.Zero(t, m.HashRate())
}
