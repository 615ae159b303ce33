// Package consensus owns the block append path: validation, UTXO
// application, persistence, chain reorganization, and the reward and
// difficulty schedules. It is the single writer of chain_state and the
// UTXO index; readers take its read lock, add_block and reorg take its
// write lock.
package consensus

import (
	"sync"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/chainstore"
	"github.com/pali-coin/node/internal/logger"
	"github.com/pali-coin/node/internal/mempool"
	"github.com/pali-coin/node/internal/params"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
	"github.com/pali-coin/node/internal/utxo"
)

const maxOrphans = 100

// Engine is the append-only consensus state machine over one chain.
type Engine struct {
	mu sync.RWMutex

	store  *chainstore.Store
	utxo   *utxo.Set
	pool   *mempool.Mempool
	params params.Params
	log    *logger.Logger

	tipHash   primitives.Hash
	tipHeight uint64
	tipWork   uint64

	// side holds competing-branch blocks staged but not yet applied,
	// keyed by hash, so reorg evaluation can walk a branch without
	// persisting it until it actually overtakes the tip.
	side map[primitives.Hash]*block.Block

	// recentBatches caches the UTXO batch each of the last MaxReorgDepth
	// applied blocks produced, the only state a reorg needs to revert
	// them without recomputing spends from scratch.
	recentBatches map[primitives.Hash]*utxo.Batch
	batchOrder    []primitives.Hash

	// orphans holds blocks whose parent hasn't arrived yet, keyed by the
	// missing parent hash, bounded to maxOrphans total and evicted FIFO.
	orphans      map[primitives.Hash][]*block.Block
	orphanOrder  []primitives.Hash
	orphanCount  int
}

// NewEngine opens the chain at store's current tip and attaches pool for
// mempool eviction/reconciliation on every accepted block.
func NewEngine(store *chainstore.Store, utxoSet *utxo.Set, pool *mempool.Mempool, p params.Params) (*Engine, error) {
	cs, err := store.ChainState()
	if err != nil {
		return nil, err
	}
	e := &Engine{
		store:         store,
		utxo:          utxoSet,
		pool:          pool,
		params:        p,
		log:           logger.Get(logger.SubsystemConsensus),
		tipHash:       cs.BestHash,
		tipHeight:     cs.BestHeight,
		tipWork:       cs.CumulativeWork,
		side:          make(map[primitives.Hash]*block.Block),
		recentBatches: make(map[primitives.Hash]*utxo.Batch),
		orphans:       make(map[primitives.Hash][]*block.Block),
	}
	return e, nil
}

// Tip returns the current best block hash and height.
func (e *Engine) Tip() (primitives.Hash, uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tipHash, e.tipHeight
}

// Balance reports addr's confirmed balance from the live UTXO index.
func (e *Engine) Balance(addr primitives.Address) uint64 {
	return e.utxo.Balance(addr)
}

// Locator returns a sparse list of block hashes descending from the tip —
// the most recent ten, then exponentially sparser going back — the shape
// a peer's GetHeaders uses to find the common ancestor with minimal
// round trips.
func (e *Engine) Locator() []primitives.Hash {
	e.mu.RLock()
	height := e.tipHeight
	hash := e.tipHash
	e.mu.RUnlock()

	var out []primitives.Hash
	step := uint64(1)
	for {
		out = append(out, hash)
		if height == 0 {
			break
		}
		if len(out) >= 10 {
			step *= 2
		}
		if step > height {
			height = 0
		} else {
			height -= step
		}
		h, err := e.store.HashAtHeight(height)
		if err != nil {
			break
		}
		hash = h
		if height == 0 {
			out = append(out, hash)
			break
		}
	}
	return out
}

// NextDifficulty returns the difficulty bits a block built on the current
// tip must meet, for template construction.
func (e *Engine) NextDifficulty() (uint32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.expectedDifficulty(e.tipHeight+1, e.tipHash)
}

// Block returns the block with the given hash, searching staged
// competing-branch blocks before the persistent store.
func (e *Engine) Block(hash primitives.Hash) (*block.Block, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lookupBlock(hash)
}

// BlockAtHeight returns the block on the main chain at height.
func (e *Engine) BlockAtHeight(height uint64) (*block.Block, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	hash, err := e.store.HashAtHeight(height)
	if err != nil {
		return nil, err
	}
	return e.store.Block(hash)
}

// maxHistoryScan bounds how many main-chain blocks History walks back from
// the tip, so a query for an address with no activity returns in bounded
// time instead of scanning the whole chain.
const maxHistoryScan = 100000

// History returns, most recent first, up to limit transactions on the main
// chain that moved funds into or out of addr.
func (e *Engine) History(addr primitives.Address, limit int) ([]*txn.Transaction, error) {
	e.mu.RLock()
	height := e.tipHeight
	e.mu.RUnlock()

	var out []*txn.Transaction
	scanned := uint64(0)
	for {
		if len(out) >= limit || scanned >= maxHistoryScan {
			break
		}
		b, err := e.BlockAtHeight(height)
		if err != nil {
			return nil, err
		}
		for _, tx := range b.Transactions {
			if tx.From == addr || tx.To == addr {
				out = append(out, tx)
				if len(out) >= limit {
					break
				}
			}
		}
		scanned++
		if height == 0 {
			break
		}
		height--
	}
	return out, nil
}

func (e *Engine) cacheBatch(hash primitives.Hash, batch *utxo.Batch) {
	e.recentBatches[hash] = batch
	e.batchOrder = append(e.batchOrder, hash)
	if uint64(len(e.batchOrder)) > e.params.MaxReorgDepth+16 {
		oldest := e.batchOrder[0]
		e.batchOrder = e.batchOrder[1:]
		delete(e.recentBatches, oldest)
	}
}

// lookupBlock finds a block by hash among staged side blocks first, then
// the persistent store.
func (e *Engine) lookupBlock(hash primitives.Hash) (*block.Block, error) {
	if b, ok := e.side[hash]; ok {
		return b, nil
	}
	return e.store.Block(hash)
}
