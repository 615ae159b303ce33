package consensus

import "github.com/pali-coin/node/internal/params"

// BlockReward returns the coinbase subsidy at height: InitialReward right-
// shifted once per HalvingInterval blocks elapsed, saturating to zero
// after MaxHalvings.
func BlockReward(p params.Params, height uint64) uint64 {
	halvings := height / p.HalvingInterval
	if halvings >= p.MaxHalvings {
		return 0
	}
	return p.InitialReward >> halvings
}
