package chainstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/primitives"
)

func TestRecentBlockCacheEvictsByArrivalOrderNotByReads(t *testing.T) {
	c := newRecentBlockCache(3)

	hashes := make([]primitives.Hash, 4)
	for i := range hashes {
		hashes[i][0] = byte(i + 1)
	}
	for i := 0; i < 3; i++ {
		c.add(hashes[i], &block.Block{Header: block.Header{Height: uint64(i)}})
	}

	// Repeatedly re-read the oldest entry. A true LRU would promote it and
	// keep it alive past newer insertions; FIFO must not.
	for i := 0; i < 10; i++ {
		_, ok := c.get(hashes[0])
		require.True(t, ok, "oldest entry missing before it should age out")
	}

	c.add(hashes[3], &block.Block{Header: block.Header{Height: 3}})

	_, ok := c.get(hashes[0])
	require.False(t, ok, "repeatedly reading the oldest entry kept it alive past a newer insertion; eviction is not FIFO")

	for i := 1; i <= 3; i++ {
		_, ok := c.get(hashes[i])
		require.True(t, ok, "entry %d should still be cached", i)
	}
}
