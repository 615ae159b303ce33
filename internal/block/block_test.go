package block_test

import (
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pali-coin/node/internal/block"
	"github.com/pali-coin/node/internal/params"
	"github.com/pali-coin/node/internal/primitives"
	"github.com/pali-coin/node/internal/txn"
)

func signedTransfer(t *testing.T) *txn.Transaction {
	t.Helper()
	priv, pub, err := primitives.NewKeyPair(rand.Reader)
	require.NoError(t, err)
	from, _ := pub.Address()
	tx := &txn.Transaction{
		Version: 1,
		From:    from,
		To:      primitives.Address{0x09},
		Amount:  1000,
		Fee:     10,
		ChainID: uint64(params.RegtestParams.Network),
	}
	require.NoError(t, txn.Sign(tx, priv))
	return tx
}

func mineDifficulty0(h *block.Header) {
	// difficulty target 0 is met by any hash; no search needed.
	h.DifficultyTarget = 0
}

func buildValidBlock(t *testing.T, height uint64, prevHash primitives.Hash, timestamp int64, reward uint64) *block.Block {
	t.Helper()
	tx := signedTransfer(t)
	cb := txn.NewCoinbase(primitives.Address{0x01}, reward+tx.Fee, height, uint64(params.RegtestParams.Network))
	b := &block.Block{
		Transactions: []*txn.Transaction{cb, tx},
	}
	b.Header = block.Header{
		Version:   1,
		PrevHash:  prevHash,
		Timestamp: timestamp,
		Height:    height,
		TxCount:   uint32(len(b.Transactions)),
	}
	mineDifficulty0(&b.Header)
	b.Header.MerkleRoot = b.RecomputeMerkleRoot()
	b.Header.BlockSize = b.SerializedSize()
	return b
}

func ruleErr(t *testing.T, err error) *block.RuleError {
	t.Helper()
	var re *block.RuleError
	require.True(t, errors.As(err, &re), "error %v is not a *block.RuleError", err)
	return re
}

func TestMerkleRootOddLevelDuplicatesLast(t *testing.T) {
	a := primitives.DoubleSHA256([]byte("a"))
	bHash := primitives.DoubleSHA256([]byte("b"))
	c := primitives.DoubleSHA256([]byte("c"))

	three := block.BuildMerkleRoot([]primitives.Hash{a, bHash, c})
	withDup := block.BuildMerkleRoot([]primitives.Hash{a, bHash, c, c})
	require.Equal(t, three, withDup, "odd-length Merkle root should equal duplicating the last hash")
}

func TestMerkleRootEmptyIsZero(t *testing.T) {
	require.Equal(t, primitives.Hash{}, block.BuildMerkleRoot(nil))
}

func TestValidateAcceptsWellFormedBlock(t *testing.T) {
	p := params.RegtestParams
	parentTime := time.Now().Add(-time.Hour).Unix()
	b := buildValidBlock(t, 0, primitives.Hash{}, parentTime+1, p.InitialReward)

	require.NoError(t, block.Validate(b, nil, p, p.InitialReward, time.Now()))
}

func TestValidateRejectsOneBitShortOfTarget(t *testing.T) {
	p := params.RegtestParams
	b := buildValidBlock(t, 1, primitives.Hash{}, time.Now().Unix(), p.InitialReward)
	b.Header.DifficultyTarget = primitives.LeadingZeroBits(b.Hash()) + 1

	err := block.Validate(b, nil, p, p.InitialReward, time.Now())
	require.Equal(t, block.RuleInsufficientPoW, ruleErr(t, err).Rule)
}

func TestValidateRejectsBadHeightLinkage(t *testing.T) {
	p := params.RegtestParams
	genesis := buildValidBlock(t, 0, primitives.Hash{}, time.Now().Add(-time.Hour).Unix(), p.InitialReward)

	bad := buildValidBlock(t, 5, genesis.Hash(), time.Now().Unix(), p.InitialReward)
	err := block.Validate(bad, &genesis.Header, p, p.InitialReward, time.Now())
	require.Equal(t, block.RuleBadHeight, ruleErr(t, err).Rule)
}

func TestValidateRejectsFutureTimestamp(t *testing.T) {
	p := params.RegtestParams
	b := buildValidBlock(t, 0, primitives.Hash{}, time.Now().Add(3*time.Hour).Unix(), p.InitialReward)
	err := block.Validate(b, nil, p, p.InitialReward, time.Now())
	require.Equal(t, block.RuleBadTimestamp, ruleErr(t, err).Rule)
}

func TestValidateRejectsBadCoinbaseAmount(t *testing.T) {
	p := params.RegtestParams
	b := buildValidBlock(t, 0, primitives.Hash{}, time.Now().Unix(), p.InitialReward)
	b.Transactions[0].Amount++
	b.Header.MerkleRoot = b.RecomputeMerkleRoot()

	err := block.Validate(b, nil, p, p.InitialReward, time.Now())
	require.Equal(t, block.RuleBadCoinbaseAmount, ruleErr(t, err).Rule)
}

// TestValidateIgnoresForgedBlockSizeHeader proves the size cap is enforced
// against the block's real serialized content, not a self-reported header
// field: a block that understates its own BlockSize must still be rejected
// once its true size exceeds the cap.
func TestValidateIgnoresForgedBlockSizeHeader(t *testing.T) {
	p := params.RegtestParams
	p.MaxBlockSize = 1 // any well-formed block now exceeds the cap
	b := buildValidBlock(t, 0, primitives.Hash{}, time.Now().Unix(), p.InitialReward)
	b.Header.BlockSize = 0 // forged: claims to be empty

	err := block.Validate(b, nil, p, p.InitialReward, time.Now())
	require.Equal(t, block.RuleOversizeBlock, ruleErr(t, err).Rule)
}
