package chainstore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pali-coin/node/internal/chainstore"
	"github.com/pali-coin/node/internal/params"
	"github.com/pali-coin/node/internal/utxo"
)

func TestOpenSynthesizesGenesis(t *testing.T) {
	dir := t.TempDir()
	store, err := chainstore.Open(dir, params.RegtestParams)
	require.NoError(t, err)
	defer store.Close()

	cs, err := store.ChainState()
	require.NoError(t, err)
	require.Equal(t, uint64(0), cs.BestHeight)
	require.Equal(t, params.RegtestParams.InitialReward, cs.CirculatingSupply)

	genesis := chainstore.Genesis(params.RegtestParams)
	require.Equal(t, genesis.Hash(), cs.BestHash)

	fetched, err := store.Block(genesis.Hash())
	require.NoError(t, err)
	require.Equal(t, uint64(0), fetched.Header.Height)
}

func TestReopenAgreesOnGenesis(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()

	storeA, err := chainstore.Open(dirA, params.RegtestParams)
	require.NoError(t, err)
	defer storeA.Close()
	storeB, err := chainstore.Open(dirB, params.RegtestParams)
	require.NoError(t, err)
	defer storeB.Close()

	csA, err := storeA.ChainState()
	require.NoError(t, err)
	csB, err := storeB.ChainState()
	require.NoError(t, err)
	require.Equal(t, csA.BestHash, csB.BestHash, "two fresh stores with identical params disagree on the genesis hash")
}

func TestLoadUTXOSetStreamsGenesisCoinbase(t *testing.T) {
	dir := t.TempDir()
	store, err := chainstore.Open(dir, params.RegtestParams)
	require.NoError(t, err)
	defer store.Close()

	set := utxo.New()
	require.NoError(t, store.LoadUTXOSet(set))
	genesis := chainstore.Genesis(params.RegtestParams)
	coinbase := genesis.Transactions[0]
	require.Equal(t, coinbase.Amount, set.Balance(coinbase.To))
}
