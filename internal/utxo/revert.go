package utxo

// Revert undoes a previously applied Batch, restoring the UTXO set to its
// exact pre-state: newly added entries are removed, and consumed entries
// are restored from the batch's retained pre-state. This is what a chain
// reorganization uses to unwind disconnected blocks: Apply(b) followed by
// Revert(batch) must restore the set bit-for-bit.
func (s *Set) Revert(batch *Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(batch.Removed) - 1; i >= 0; i-- {
		c := batch.Removed[i]
		s.insertLocked(c.OutPoint, c.Entry)
	}
	for i := len(batch.Added) - 1; i >= 0; i-- {
		s.removeLocked(batch.Added[i].OutPoint)
	}
}
