package consensus

import (
	"time"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/chainstore"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
)

// reorganizeTo switches the canonical chain to the branch ending at
// newTip: it reverts the current chain down to the common ancestor,
// reinstating each reverted block's non-coinbase transactions into the
// mempool after re-validating them, then applies the new branch's blocks
// in order from the ancestor forward.
func (e *Engine) reorganizeTo(newTip primitives.Hash, now time.Time) error {
	ancestor, newChain, err := e.findForkPoint(newTip)
	if err != nil {
		return &RejectError{Rule: RuleReorgTooDeep, Err: err}
	}

	ancestorBlock, err := e.lookupBlock(ancestor)
	if err != nil {
		return &RejectError{Rule: RuleReorgTooDeep, Err: err}
	}
	if e.tipHeight >= e.params.MaxReorgDepth && ancestorBlock.Header.Height <= e.tipHeight-e.params.MaxReorgDepth {
		return &RejectError{Rule: RuleReorgTooDeep}
	}

	e.log.Infof("reorganizing to branch tip %s, common ancestor at height %d", newTip, ancestorBlock.Header.Height)
	if err := e.revertToAncestor(ancestor, now); err != nil {
		return err
	}

	for _, b := range newChain {
		if err := e.applyOntoTip(b, now); err != nil {
			return err
		}
	}
	return nil
}

// findForkPoint walks back from newTip through staged/persisted blocks
// until it reaches a hash that is also an ancestor of the current tip,
// returning that common ancestor and the new branch's blocks in forward
// (ancestor-exclusive) order.
func (e *Engine) findForkPoint(newTip primitives.Hash) (primitives.Hash, []*block.Block, error) {
	mainChain := make(map[primitives.Hash]bool)
	h := e.tipHash
	for {
		mainChain[h] = true
		b, err := e.lookupBlock(h)
		if err != nil {
			return primitives.Hash{}, nil, err
		}
		if b.Header.Height == 0 {
			break
		}
		h = b.Header.PrevHash
	}

	var branch []*block.Block
	cur := newTip
	for {
		b, err := e.lookupBlock(cur)
		if err != nil {
			return primitives.Hash{}, nil, err
		}
		branch = append([]*block.Block{b}, branch...)
		if mainChain[cur] {
			return cur, branch[1:], nil
		}
		if b.Header.Height == 0 {
			return cur, branch[1:], nil
		}
		cur = b.Header.PrevHash
	}
}

// revertToAncestor walks the current tip backward to ancestor, undoing
// each block's UTXO delta and reinstating its surviving transactions into
// the mempool.
func (e *Engine) revertToAncestor(ancestor primitives.Hash, now time.Time) error {
	for e.tipHash != ancestor {
		tipBlock, err := e.lookupBlock(e.tipHash)
		if err != nil {
			return &RejectError{Rule: RuleReorgTooDeep, Err: err}
		}
		batch, ok := e.recentBatches[e.tipHash]
		if !ok {
			return &RejectError{Rule: RuleReorgTooDeep}
		}
		e.utxo.Revert(batch)

		parentHash := tipBlock.Header.PrevHash
		parentWork := e.totalWork(parentHash)
		cs := chainstore.ChainState{
			BestHash:          parentHash,
			BestHeight:        tipBlock.Header.Height - 1,
			CumulativeWork:    parentWork,
			CurrentBits:       tipBlock.Header.DifficultyTarget,
			ChainID:           uint64(e.params.Network),
			CirculatingSupply: e.circulatingSupply() - tipBlock.Transactions[0].Amount,
		}
		if err := e.store.RevertBlock(tipBlock, batch, cs); err != nil {
			return err
		}
		delete(e.recentBatches, e.tipHash)

		for _, tx := range tipBlock.Transactions[1:] {
			e.reinstate(tx, now)
		}

		e.tipHash = parentHash
		e.tipHeight = cs.BestHeight
		e.tipWork = parentWork
	}
	return nil
}

// reinstate re-validates a disconnected transaction against the (already
// reverted) UTXO state before returning it to the mempool; a transaction
// that no longer validates is dropped rather than reinstated.
func (e *Engine) reinstate(tx *txn.Transaction, now time.Time) {
	if err := txn.Validate(tx, uint64(e.params.Network), now); err != nil {
		return
	}
	_ = e.pool.Add(tx)
}
