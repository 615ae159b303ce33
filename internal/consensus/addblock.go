package consensus

import (
	"time"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/chainstore"
	"github.com/pali-coin/node/internal/primitives"
)

// AddBlock runs the five-step append algorithm: reject-too-deep,
// straight-line append onto the current tip, competing-branch staging
// with work-based reorg, or orphan parking when the parent is unknown.
func (e *Engine) AddBlock(b *block.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addBlockLocked(b, time.Now())
}

func (e *Engine) addBlockLocked(b *block.Block, now time.Time) error {
	hash := b.Hash()

	if e.tipHeight >= e.params.MaxReorgDepth && b.Header.Height <= e.tipHeight-e.params.MaxReorgDepth {
		return &RejectError{Rule: RuleTooDeep}
	}

	switch {
	case b.Header.PrevHash == e.tipHash:
		if err := e.applyOntoTip(b, now); err != nil {
			return err
		}
		e.drainOrphans(hash, now)
		return nil

	case e.knownBlock(b.Header.PrevHash):
		e.side[hash] = b
		branchWork := e.totalWork(hash)
		tipWork := e.totalWork(e.tipHash)
		if branchWork > tipWork {
			if err := e.reorganizeTo(hash, now); err != nil {
				delete(e.side, hash)
				return err
			}
		}
		e.drainOrphans(hash, now)
		return nil

	default:
		e.parkOrphan(b)
		return nil
	}
}

func (e *Engine) knownBlock(hash primitives.Hash) bool {
	if _, ok := e.side[hash]; ok {
		return true
	}
	_, err := e.store.Block(hash)
	return err == nil
}

// applyOntoTip validates b against the current tip and, on success, folds
// its UTXO delta, persists it, and advances ChainState — all as one
// logical step so a reader never observes a partial application.
func (e *Engine) applyOntoTip(b *block.Block, now time.Time) error {
	var parentHeader *block.Header
	if b.Header.Height > 0 {
		parent, err := e.store.Block(e.tipHash)
		if err != nil {
			return &RejectError{Rule: RuleBadBlock, Err: err}
		}
		parentHeader = &parent.Header
	}

	expectedBits, err := e.expectedDifficulty(b.Header.Height, e.tipHash)
	if err != nil {
		return &RejectError{Rule: RuleBadBlock, Err: err}
	}
	if b.Header.DifficultyTarget != expectedBits {
		return &RejectError{Rule: RuleBadBlock}
	}
	reward := BlockReward(e.params, b.Header.Height)
	if err := block.Validate(b, parentHeader, e.params, reward, now); err != nil {
		return &RejectError{Rule: RuleBadBlock, Err: err}
	}

	batch, err := e.utxo.Apply(b, e.params.CoinbaseMaturity)
	if err != nil {
		return &RejectError{Rule: RuleBadTx, Err: err}
	}

	hash := b.Hash()
	work := workForBits(b.Header.DifficultyTarget)
	cs := chainstore.ChainState{
		BestHash:          hash,
		BestHeight:        b.Header.Height,
		CumulativeWork:    e.tipWork + work,
		CurrentBits:       b.Header.DifficultyTarget,
		CirculatingSupply: e.circulatingSupply() + b.Transactions[0].Amount,
		ChainID:           uint64(e.params.Network),
	}
	if _, err := e.store.WriteBlock(b, batch, cs); err != nil {
		e.utxo.Revert(batch)
		return err
	}

	e.tipHash = hash
	e.tipHeight = b.Header.Height
	e.tipWork = cs.CumulativeWork
	e.cacheBatch(hash, batch)
	delete(e.side, hash)

	ids := make([]primitives.Hash, 0, len(b.Transactions)-1)
	for _, tx := range b.Transactions[1:] {
		ids = append(ids, tx.ID())
	}
	e.pool.RemoveAll(ids)
	e.pool.Reconcile()
	e.log.Infof("accepted block %s at height %d (%d tx)", hash, b.Header.Height, len(b.Transactions))
	return nil
}

// circulatingSupply reads the last known supply from the store's
// ChainState so applyOntoTip can add this block's mint without re-summing
// every coinbase from genesis.
func (e *Engine) circulatingSupply() uint64 {
	cs, err := e.store.ChainState()
	if err != nil {
		return 0
	}
	return cs.CirculatingSupply
}

// totalWork sums the work of every block from hash back to genesis,
// walking through staged side blocks and the persistent store.
func (e *Engine) totalWork(hash primitives.Hash) uint64 {
	var total uint64
	for {
		b, err := e.lookupBlock(hash)
		if err != nil {
			return total
		}
		total += workForBits(b.Header.DifficultyTarget)
		if b.Header.Height == 0 {
			return total
		}
		hash = b.Header.PrevHash
	}
}

func (e *Engine) parkOrphan(b *block.Block) {
	parent := b.Header.PrevHash
	e.orphans[parent] = append(e.orphans[parent], b)
	e.orphanOrder = append(e.orphanOrder, parent)
	e.orphanCount++
	for e.orphanCount > maxOrphans && len(e.orphanOrder) > 0 {
		oldest := e.orphanOrder[0]
		e.orphanOrder = e.orphanOrder[1:]
		if bucket, ok := e.orphans[oldest]; ok && len(bucket) > 0 {
			e.orphans[oldest] = bucket[1:]
			e.orphanCount--
			if len(e.orphans[oldest]) == 0 {
				delete(e.orphans, oldest)
			}
		}
	}
}

// drainOrphans recursively applies any parked orphans whose awaited
// parent is parentHash, now that it has arrived.
func (e *Engine) drainOrphans(parentHash primitives.Hash, now time.Time) {
	bucket, ok := e.orphans[parentHash]
	if !ok {
		return
	}
	delete(e.orphans, parentHash)
	for _, orphan := range bucket {
		e.orphanCount--
		_ = e.addBlockLocked(orphan, now)
	}
}
