// Package chainstore persists blocks, transactions, and the UTXO set to a
// LevelDB-backed key-value store, organized into column-family-style
// keyspaces distinguished by a one-byte prefix. A block, its transactions,
// its UTXO deltas, and the resulting ChainState are written as one atomic
// LevelDB batch, so a reader never observes a tip that points past an
// unwritten UTXO delta.
package chainstore

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/params"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
	"github.com/pali-coin/node/internal/utxo"
)

const (
	prefixBlock       byte = 'b'
	prefixHeightIndex byte = 'h'
	prefixTx          byte = 't'
	prefixUTXO        byte = 'u'
	prefixChainState  byte = 'c'
	prefixMetadata    byte = 'm'
)

const chainStateKey = "chain_state"

// recentBlockCacheSize bounds the in-memory recent-block cache; eviction
// beyond it falls back to a LevelDB read.
const recentBlockCacheSize = 1000

// recentBlockCache is a capped hash->block cache that evicts strictly in
// arrival order: a re-query never promotes an entry, so a block inserted
// 1000 blocks ago ages out on schedule even if callers keep re-reading it
// during a History or Locator walk. Mirrors the order-slice-plus-map
// bookkeeping the consensus engine uses for parked orphans.
type recentBlockCache struct {
	cap     int
	order   []primitives.Hash
	entries map[primitives.Hash]*block.Block
}

func newRecentBlockCache(cap int) *recentBlockCache {
	return &recentBlockCache{
		cap:     cap,
		entries: make(map[primitives.Hash]*block.Block, cap),
	}
}

func (c *recentBlockCache) get(hash primitives.Hash) (*block.Block, bool) {
	b, ok := c.entries[hash]
	return b, ok
}

func (c *recentBlockCache) add(hash primitives.Hash, b *block.Block) {
	if _, exists := c.entries[hash]; exists {
		return
	}
	c.order = append(c.order, hash)
	c.entries[hash] = b
	for len(c.order) > c.cap {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Store is the on-disk chain database plus a capped recent-block cache.
type Store struct {
	db    *leveldb.DB
	cache *recentBlockCache
}

func blockKey(hash primitives.Hash) []byte {
	k := make([]byte, 0, 1+primitives.HashSize)
	k = append(k, prefixBlock)
	return append(k, hash[:]...)
}

func heightKey(height uint64) []byte {
	k := make([]byte, 0, 1+8)
	k = append(k, prefixHeightIndex)
	return put64(k, height)
}

func txKey(id txn.ID) []byte {
	k := make([]byte, 0, 1+primitives.HashSize)
	k = append(k, prefixTx)
	return append(k, id[:]...)
}

func utxoKey(op utxo.OutPoint) []byte {
	k := make([]byte, 0, 1+primitives.HashSize+4)
	k = append(k, prefixUTXO)
	k = append(k, op.TxID[:]...)
	return put32(k, op.Vout)
}

// Open opens (or creates) the LevelDB data directory at dir. If it
// contains no ChainState, a genesis block is synthesized from p and
// written immediately so every node on the same Network agrees on the
// starting point.
func Open(dir string, p params.Params) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, &PersistError{Rule: RuleWriteFailed, Err: err}
	}
	s := &Store{db: db, cache: newRecentBlockCache(recentBlockCacheSize)}

	if _, err := s.ChainState(); err != nil {
		if !isNotFound(err) {
			db.Close()
			return nil, err
		}
		genesis := Genesis(p)
		cs := ChainState{
			BestHash:          genesis.Hash(),
			BestHeight:        0,
			CumulativeWork:    workForBits(genesis.Header.DifficultyTarget),
			CurrentBits:       genesis.Header.DifficultyTarget,
			CirculatingSupply: genesis.Transactions[0].Amount,
			ChainID:           uint64(p.Network),
		}
		if _, err := s.WriteBlock(genesis, nil, cs); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

func isNotFound(err error) bool {
	pe, ok := err.(*PersistError)
	return ok && pe.Rule == RuleNotFound
}

// Close releases the underlying LevelDB handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ChainState reads the single tip record.
func (s *Store) ChainState() (ChainState, error) {
	raw, err := s.db.Get([]byte{prefixChainState}, nil)
	if err == leveldb.ErrNotFound {
		return ChainState{}, &PersistError{Rule: RuleNotFound}
	}
	if err != nil {
		return ChainState{}, &PersistError{Rule: RuleWriteFailed, Err: err}
	}
	return decodeChainState(raw)
}

// Block returns the block with the given hash, checking the recent-block
// cache before falling back to LevelDB.
func (s *Store) Block(hash primitives.Hash) (*block.Block, error) {
	if b, ok := s.cache.get(hash); ok {
		return b, nil
	}
	raw, err := s.db.Get(blockKey(hash), nil)
	if err == leveldb.ErrNotFound {
		return nil, &PersistError{Rule: RuleNotFound}
	}
	if err != nil {
		return nil, &PersistError{Rule: RuleWriteFailed, Err: err}
	}
	b, err := decodeBlock(raw)
	if err != nil {
		return nil, err
	}
	s.cache.add(hash, b)
	return b, nil
}

// HashAtHeight resolves the canonical chain's block hash at height.
func (s *Store) HashAtHeight(height uint64) (primitives.Hash, error) {
	raw, err := s.db.Get(heightKey(height), nil)
	if err == leveldb.ErrNotFound {
		return primitives.Hash{}, &PersistError{Rule: RuleNotFound}
	}
	if err != nil {
		return primitives.Hash{}, &PersistError{Rule: RuleWriteFailed, Err: err}
	}
	var h primitives.Hash
	copy(h[:], raw)
	return h, nil
}

// Transaction looks up a transaction by id, independent of which block
// currently claims the height index (useful across a reorg window).
func (s *Store) Transaction(id txn.ID) (*txn.Transaction, error) {
	raw, err := s.db.Get(txKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, &PersistError{Rule: RuleNotFound}
	}
	if err != nil {
		return nil, &PersistError{Rule: RuleWriteFailed, Err: err}
	}
	return decodeTransaction(raw)
}

// LoadUTXOSet streams the entire utxos column family into dst, used on
// startup to rebuild the hot map from persisted state.
func (s *Store) LoadUTXOSet(dst *utxo.Set) error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte{prefixUTXO}), nil)
	defer iter.Release()
	for iter.Next() {
		key := iter.Key()
		if len(key) != 1+primitives.HashSize+4 {
			return &PersistError{Rule: RuleCorrupt}
		}
		var op utxo.OutPoint
		copy(op.TxID[:], key[1:1+primitives.HashSize])
		op.Vout, _ = get32(key[1+primitives.HashSize:])

		entry, err := decodeUTXOEntry(iter.Value())
		if err != nil {
			return err
		}
		dst.Load(op, entry)
	}
	if err := iter.Error(); err != nil {
		return &PersistError{Rule: RuleWriteFailed, Err: err}
	}
	return nil
}

// WriteBlock commits b, its height index entry, each of its transactions,
// the given UTXO batch, and the new ChainState as a single LevelDB batch:
// either all of it lands or none of it does. batch is nil only when the
// genesis block is written; it is returned unchanged.
func (s *Store) WriteBlock(b *block.Block, batch *utxo.Batch, cs ChainState) (*utxo.Batch, error) {
	wb := new(leveldb.Batch)

	hash := b.Hash()
	wb.Put(blockKey(hash), encodeBlock(b))
	wb.Put(heightKey(b.Header.Height), hash[:])
	for _, tx := range b.Transactions {
		wb.Put(txKey(tx.ID()), encodeTransaction(tx))
	}
	if batch != nil {
		for _, c := range batch.Added {
			wb.Put(utxoKey(c.OutPoint), encodeUTXOEntry(c.Entry))
		}
		for _, c := range batch.Removed {
			wb.Delete(utxoKey(c.OutPoint))
		}
	}
	wb.Put([]byte{prefixChainState}, encodeChainState(cs))

	if err := s.db.Write(wb, nil); err != nil {
		return nil, &PersistError{Rule: RuleWriteFailed, Err: err}
	}
	s.cache.add(hash, b)
	return batch, nil
}

// RevertBlock undoes the persisted effect of disconnecting the current tip
// block during a reorg: deletes its height index entry, restores the
// UTXO batch's consumed entries, removes its created entries, and writes
// the rolled-back ChainState. The block record itself is left in the
// blocks column family so it remains fetchable by hash.
func (s *Store) RevertBlock(b *block.Block, batch *utxo.Batch, cs ChainState) error {
	wb := new(leveldb.Batch)
	wb.Delete(heightKey(b.Header.Height))
	if batch != nil {
		for _, c := range batch.Added {
			wb.Delete(utxoKey(c.OutPoint))
		}
		for _, c := range batch.Removed {
			wb.Put(utxoKey(c.OutPoint), encodeUTXOEntry(c.Entry))
		}
	}
	wb.Put([]byte{prefixChainState}, encodeChainState(cs))
	if err := s.db.Write(wb, nil); err != nil {
		return &PersistError{Rule: RuleWriteFailed, Err: err}
	}
	return nil
}

func workForBits(bits uint32) uint64 {
	// Work is proportional to 2^bits: each additional required leading
	// zero bit doubles the expected number of hash attempts.
	if bits >= 63 {
		return ^uint64(0)
	}
	return uint64(1) << bits
}
