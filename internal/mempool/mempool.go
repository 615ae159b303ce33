// Package mempool implements the bounded, fee-ordered set of pending
// transactions with a double-spend guard. Callers reach its fee-ordered
// view only through Add/Remove/SelectForBlock/Contains.
package mempool

import (
	"sort"
	"sync"
	"time"

	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
	"github.com/pali-coin/node/internal/utxo"
)

// Config bundles the policy knobs the pool needs.
type Config struct {
	MaxCount         int
	MaxBytes         uint64
	ChainID          uint64
	CoinbaseMaturity uint64
}

type senderKey struct {
	From  primitives.Address
	Nonce uint64
}

type entry struct {
	tx       *txn.Transaction
	feePerKB float64
	seq      uint64 // insertion order, used as the tie-break
	added    time.Time
}

// Mempool is a bounded set of valid pending transactions keyed by txid,
// ordered by fee-per-byte descending with ties broken by insertion order.
type Mempool struct {
	cfg Config

	mu       sync.Mutex
	byID     map[txn.ID]*entry
	bySender map[senderKey]txn.ID
	ordered  []*entry // sorted by feePerKB desc, seq asc
	nextSeq  uint64
	byteSum  uint64

	utxoSet *utxo.Set
	height  func() uint64
}

// New creates an empty pool backed by utxoSet for balance checks. height
// returns the current chain tip height, consulted for coinbase maturity
// when computing a sender's spendable balance.
func New(cfg Config, utxoSet *utxo.Set, height func() uint64) *Mempool {
	return &Mempool{
		cfg:      cfg,
		byID:     make(map[txn.ID]*entry),
		bySender: make(map[senderKey]txn.ID),
		utxoSet:  utxoSet,
		height:   height,
	}
}

// Contains reports whether txid is currently in the pool.
func (m *Mempool) Contains(txid txn.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[txid]
	return ok
}

// Add validates tx against pool policy and, if accepted, inserts it into
// the fee-ordered sequence:
//   - already present -> Duplicate
//   - pool full -> Full
//   - another entry shares (from, nonce) -> DoubleSpend
//   - sender's aggregate obligation exceeds UTXO-derived balance -> InsufficientBalance
func (m *Mempool) Add(tx *txn.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	txid := tx.ID()
	if _, ok := m.byID[txid]; ok {
		return &RejectError{Why: ReasonDuplicate}
	}
	if len(m.byID) >= m.cfg.MaxCount || m.byteSum+uint64(tx.Size()) > m.cfg.MaxBytes {
		return &RejectError{Why: ReasonFull}
	}

	key := senderKey{From: tx.From, Nonce: tx.Nonce}
	if _, ok := m.bySender[key]; ok {
		return &RejectError{Why: ReasonDoubleSpend}
	}

	obligation := tx.Amount + tx.Fee
	for sk, id := range m.bySender {
		if sk.From == tx.From {
			other := m.byID[id].tx
			obligation += other.Amount + other.Fee
		}
	}
	if obligation > m.spendableBalanceLocked(tx.From) {
		return &RejectError{Why: ReasonInsufficientBalance}
	}

	e := &entry{tx: tx, feePerKB: tx.FeePerByte(), seq: m.nextSeq, added: time.Now()}
	m.nextSeq++
	m.byID[txid] = e
	m.bySender[key] = txid
	m.byteSum += uint64(tx.Size())
	m.insertSorted(e)
	return nil
}

// insertSorted inserts e into m.ordered keeping it sorted by feePerKB
// descending, ties broken by seq ascending (insertion order).
func (m *Mempool) insertSorted(e *entry) {
	i := sort.Search(len(m.ordered), func(i int) bool {
		o := m.ordered[i]
		if o.feePerKB != e.feePerKB {
			return o.feePerKB < e.feePerKB
		}
		return o.seq > e.seq
	})
	m.ordered = append(m.ordered, nil)
	copy(m.ordered[i+1:], m.ordered[i:])
	m.ordered[i] = e
}

// Remove evicts txid from the pool. A transaction not present is a no-op.
func (m *Mempool) Remove(txid txn.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(txid)
}

func (m *Mempool) removeLocked(txid txn.ID) {
	e, ok := m.byID[txid]
	if !ok {
		return
	}
	delete(m.byID, txid)
	delete(m.bySender, senderKey{From: e.tx.From, Nonce: e.tx.Nonce})
	m.byteSum -= uint64(e.tx.Size())
	for i, o := range m.ordered {
		if o == e {
			m.ordered = append(m.ordered[:i], m.ordered[i+1:]...)
			break
		}
	}
}

// RemoveAll evicts every txid in txids; used by the consensus engine after
// a block is accepted, and is a no-op per id not present.
func (m *Mempool) RemoveAll(txids []txn.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range txids {
		m.removeLocked(id)
	}
}

// SelectForBlock walks the fee-ordered sequence, accumulating transactions
// while both the count and byte budget fit, and returns the prefix. It
// does not remove anything from the pool; the consensus engine evicts
// included transactions once the block is accepted.
func (m *Mempool) SelectForBlock(maxCount int, maxBytes uint64) []*txn.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*txn.Transaction
	var bytes uint64
	for _, e := range m.ordered {
		if len(out) >= maxCount {
			break
		}
		size := uint64(e.tx.Size())
		if bytes+size > maxBytes {
			break
		}
		out = append(out, e.tx)
		bytes += size
	}
	return out
}

// Stats reports the pool's current count and byte sum.
func (m *Mempool) Stats() (count int, totalBytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID), m.byteSum
}

// Get returns the pooled transaction for txid, if present.
func (m *Mempool) Get(txid txn.ID) (*txn.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[txid]
	if !ok {
		return nil, false
	}
	return e.tx, true
}

// Reconcile re-checks every pooled sender's aggregate obligation against
// its current UTXO-derived balance and evicts entries that no longer
// clear, the way a newly accepted block can invalidate a pending spend of
// an output the block already consumed.
func (m *Mempool) Reconcile() {
	m.mu.Lock()
	defer m.mu.Unlock()

	bySenderObligation := make(map[primitives.Address]uint64)
	for _, e := range m.byID {
		bySenderObligation[e.tx.From] += e.tx.Amount + e.tx.Fee
	}
	var stale []txn.ID
	for sk, id := range m.bySender {
		if bySenderObligation[sk.From] > m.spendableBalanceLocked(sk.From) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		m.removeLocked(id)
	}
}

// spendableBalanceLocked sums addr's outputs that are actually usable to
// fund a new transaction right now: coinbase outputs still short of
// coinbase maturity don't count.
func (m *Mempool) spendableBalanceLocked(addr primitives.Address) uint64 {
	height := m.height()
	var total uint64
	for _, op := range m.utxoSet.SpendableOutputs(addr, height, m.cfg.CoinbaseMaturity) {
		e, ok := m.utxoSet.Get(op)
		if !ok {
			continue
		}
		total += e.Amount
	}
	return total
}
