// Package params holds the per-network constants every other package
// consults: chain id, genesis parameters, reward schedule, difficulty
// retarget cadence. Modeled on the dagconfig.Params / chaincfg.Params
// pattern used throughout the btcd/kaspad lineage.
package params

import "time"

// Network identifies which running network a node is configured for,
// checked against a transaction's chain id.
type Network uint64

// The three deterministic network presets. Any node initializing against
// the same Network MUST agree on the genesis hash.
const (
	Mainnet Network = 1
	Testnet Network = 2
	Regtest Network = 3
)

func (n Network) String() string {
	switch n {
	case Mainnet:
		return "mainnet"
	case Testnet:
		return "testnet"
	case Regtest:
		return "regtest"
	default:
		return "unknown"
	}
}

// Params bundles every constant a consensus engine, miner, or mempool needs
// for a given Network.
type Params struct {
	Network Network

	// Reward schedule.
	InitialReward    uint64 // base units, 1 coin = 1e8 units
	HalvingInterval  uint64 // blocks
	MaxHalvings      uint64

	// Difficulty retarget.
	DifficultyAdjustmentInterval uint64 // blocks
	TargetBlockTime              time.Duration
	GenesisDifficultyBits        uint32
	MinDifficultyBits            uint32

	// Consensus bounds.
	MaxReorgDepth     uint64
	CoinbaseMaturity  uint64 // blocks before a coinbase output is spendable
	MaxBlockSize      uint64 // bytes
	MaxBlockTxCount   int
	MaxFutureDrift    time.Duration // header timestamp must be <= now + drift

	// Genesis.
	GenesisTimestamp int64 // unix seconds
	AddressVersion   byte  // base58check version byte for wallet display
}

// MainnetParams are the canonical pali-coin network parameters. Genesis is
// deterministic: any two nodes configured with MainnetParams compute the
// same genesis hash.
var MainnetParams = Params{
	Network:                      Mainnet,
	InitialReward:                5_000_000,
	HalvingInterval:              210_000,
	MaxHalvings:                  32,
	DifficultyAdjustmentInterval: 2016,
	TargetBlockTime:              10 * time.Minute,
	GenesisDifficultyBits:        24,
	MinDifficultyBits:            1,
	MaxReorgDepth:                100,
	CoinbaseMaturity:             100,
	MaxBlockSize:                 4 << 20,
	MaxBlockTxCount:              100_000,
	MaxFutureDrift:               2 * time.Hour,
	GenesisTimestamp:             1_640_995_200,
	AddressVersion:               0x00,
}

// TestnetParams relax the difficulty so a development node can mine blocks
// quickly and use their own address version; every other constant matches
// MainnetParams.
var TestnetParams = func() Params {
	p := MainnetParams
	p.Network = Testnet
	p.GenesisDifficultyBits = 8
	p.AddressVersion = 0x6f
	return p
}()

// RegtestParams are tuned for fast local testing: trivial difficulty, a
// short retarget window, and a shallow reorg bound so tests can exercise
// reorg behavior without mining hundreds of blocks.
var RegtestParams = func() Params {
	p := MainnetParams
	p.Network = Regtest
	p.GenesisDifficultyBits = 1
	p.DifficultyAdjustmentInterval = 8
	p.MaxReorgDepth = 10
	p.CoinbaseMaturity = 1
	p.AddressVersion = 0x6f
	return p
}()

// ByNetwork looks up the canonical Params for a Network id.
func ByNetwork(n Network) (Params, bool) {
	switch n {
	case Mainnet:
		return MainnetParams, true
	case Testnet:
		return TestnetParams, true
	case Regtest:
		return RegtestParams, true
	default:
		return Params{}, false
	}
}
