package utxo

import (
	"github.com/pali-coin/node/internal/block"
)

// Change records one created or consumed entry, used both to build the
// persistence write batch and to drive Revert.
type Change struct {
	OutPoint OutPoint
	Entry    Entry
}

// Batch is the set of changes produced by Apply: entries to add and
// entries that were consumed (retained in full so Revert can restore them
// bit-for-bit, as a chain reorganization requires).
type Batch struct {
	Added   []Change
	Removed []Change
}

// Apply computes, and installs into s, the UTXO delta for b: for each
// non-coinbase transaction, consume the sender's outputs greedily in
// SpendableOutputs order until the accumulated amount >= amount+fee,
// synthesizing a change output back to the sender if the sum overshoots,
// and creating a recipient entry; for the coinbase, create one entry of
// the full amount to the miner. The whole block is applied as one batch:
// a validation failure midway aborts and s is left unchanged.
func (s *Set) Apply(b *block.Block, coinbaseMaturity uint64) (*Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := &Batch{}
	height := b.Header.Height

	for i, tx := range b.Transactions {
		if i == 0 {
			op := OutPoint{TxID: tx.ID(), Vout: 0}
			entry := Entry{Amount: tx.Amount, Address: tx.To, Height: height, IsCoinbase: true}
			s.insertLocked(op, entry)
			batch.Added = append(batch.Added, Change{OutPoint: op, Entry: entry})
			continue
		}

		need := tx.Amount + tx.Fee
		spent, removed, err := s.spendLocked(tx.From, need, height, coinbaseMaturity)
		if err != nil {
			s.undoLocked(batch)
			return nil, err
		}
		batch.Removed = append(batch.Removed, removed...)

		if spent > need {
			change := spent - need
			changeOp := OutPoint{TxID: tx.ID(), Vout: 1}
			changeEntry := Entry{Amount: change, Address: tx.From, Height: height}
			s.insertLocked(changeOp, changeEntry)
			batch.Added = append(batch.Added, Change{OutPoint: changeOp, Entry: changeEntry})
		}

		recvOp := OutPoint{TxID: tx.ID(), Vout: 0}
		recvEntry := Entry{Amount: tx.Amount, Address: tx.To, Height: height}
		s.insertLocked(recvOp, recvEntry)
		batch.Added = append(batch.Added, Change{OutPoint: recvOp, Entry: recvEntry})
	}

	return batch, nil
}

// spendLocked consumes addr's spendable outputs, in stable deterministic
// order, until the accumulated amount is at least need. s.mu must already
// be held for writing.
func (s *Set) spendLocked(addr [20]byte, need, height, coinbaseMaturity uint64) (spent uint64, removed []Change, err error) {
	candidates := s.spendableOutputsLocked(addr, height, coinbaseMaturity)
	for _, op := range candidates {
		if spent >= need {
			break
		}
		e, ok := s.removeLocked(op)
		if !ok {
			continue
		}
		removed = append(removed, Change{OutPoint: op, Entry: e})
		spent += e.Amount
	}
	if spent < need {
		for _, c := range removed {
			s.insertLocked(c.OutPoint, c.Entry)
		}
		return 0, nil, &ApplyError{Rule: RuleInsufficientFunds}
	}
	return spent, removed, nil
}

// spendableOutputsLocked is SpendableOutputs without acquiring the lock
// (the caller already holds it for writing).
func (s *Set) spendableOutputsLocked(addr [20]byte, currentHeight, coinbaseMaturity uint64) []OutPoint {
	var out []OutPoint
	for op := range s.byAddress[addr] {
		e := s.entries[op]
		if e.IsCoinbase && currentHeight < e.Height+coinbaseMaturity {
			continue
		}
		out = append(out, op)
	}
	sortOutPoints(out, s.entries)
	return out
}

// undoLocked reverses a partially built batch when an apply step fails
// midway, so the caller never observes partial application.
func (s *Set) undoLocked(batch *Batch) {
	for _, c := range batch.Removed {
		s.insertLocked(c.OutPoint, c.Entry)
	}
	for _, c := range batch.Added {
		s.removeLocked(c.OutPoint)
	}
}
