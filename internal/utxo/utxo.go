// Package utxo implements the unspent-output index: a map from (txid,
// vout) to UTXO entry, with pure apply/revert operations per block.
package utxo

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pali-coin/node/internal/primitives"
)

// OutPoint identifies a transaction output.
type OutPoint struct {
	TxID primitives.Hash
	Vout uint32
}

func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.TxID, o.Vout)
}

// Entry is an unspent output: amount, owning address, the height of the
// block that created it, and whether it came from a coinbase.
type Entry struct {
	Amount     uint64
	Address    primitives.Address
	Height     uint64
	IsCoinbase bool
}

// Set is the in-memory hot map mirroring the chain store's persisted UTXO
// column family. It is safe for concurrent readers; writers must hold the
// consensus engine's chain write lock.
type Set struct {
	mu      sync.RWMutex
	entries map[OutPoint]Entry
	// byAddress indexes outpoints owned by an address, for sender output
	// selection during Apply. Kept in sync with entries.
	byAddress map[primitives.Address]map[OutPoint]struct{}
}

// New creates an empty UTXO set.
func New() *Set {
	return &Set{
		entries:   make(map[OutPoint]Entry),
		byAddress: make(map[primitives.Address]map[OutPoint]struct{}),
	}
}

// Get returns the entry at op, if unspent.
func (s *Set) Get(op OutPoint) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[op]
	return e, ok
}

// Balance sums every unspent entry owned by addr.
func (s *Set) Balance(addr primitives.Address) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	for op := range s.byAddress[addr] {
		total += s.entries[op].Amount
	}
	return total
}

// SpendableOutputs returns addr's unspent outputs eligible to fund a new
// transaction at currentHeight: coinbase outputs must have
// coinbaseMaturity confirmations. The result is sorted by (height, txid,
// vout) ascending for deterministic, stable consumption order.
func (s *Set) SpendableOutputs(addr primitives.Address, currentHeight, coinbaseMaturity uint64) []OutPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spendableOutputsLocked(addr, currentHeight, coinbaseMaturity)
}

// sortOutPoints orders outpoints by (height, txid, vout) ascending, giving
// a stable, deterministic consumption order.
func sortOutPoints(out []OutPoint, entries map[OutPoint]Entry) {
	sort.Slice(out, func(i, j int) bool {
		ei, ej := entries[out[i]], entries[out[j]]
		if ei.Height != ej.Height {
			return ei.Height < ej.Height
		}
		if out[i].TxID != out[j].TxID {
			return string(out[i].TxID[:]) < string(out[j].TxID[:])
		}
		return out[i].Vout < out[j].Vout
	})
}

// Load installs a persisted entry directly into the hot map, used by the
// chain store when streaming the persisted UTXO column family on startup.
// It bypasses apply/revert bookkeeping since there is no block to account
// for.
func (s *Set) Load(op OutPoint, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(op, e)
}

func (s *Set) insertLocked(op OutPoint, e Entry) {
	s.entries[op] = e
	addrSet, ok := s.byAddress[e.Address]
	if !ok {
		addrSet = make(map[OutPoint]struct{})
		s.byAddress[e.Address] = addrSet
	}
	addrSet[op] = struct{}{}
}

func (s *Set) removeLocked(op OutPoint) (Entry, bool) {
	e, ok := s.entries[op]
	if !ok {
		return Entry{}, false
	}
	delete(s.entries, op)
	if addrSet, ok := s.byAddress[e.Address]; ok {
		delete(addrSet, op)
		if len(addrSet) == 0 {
			delete(s.byAddress, e.Address)
		}
	}
	return e, true
}

// Snapshot returns every entry currently in the set, for persistence
// bootstrapping or diagnostics. The returned map is a copy.
func (s *Set) Snapshot() map[OutPoint]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[OutPoint]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}
