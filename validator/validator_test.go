package validator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mezonai/hashchain/block"
	"github.com/mezonai/hashchain/chain"
	"github.com/mezonai/hashchain/diagnostic"
	chainerrors "github.com/mezonai/hashchain/errors"
	"github.com/mezonai/hashchain/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newChain returns a chain of total blocks, genesis included
func newChain(t *testing.T, total int) *chain.Blockchain {
	t.Helper()
	bs, err := store.CreateBlockStore(&store.StoreConfig{Type: store.MemoryStoreType})
	require.NoError(t, err)
	t.Cleanup(bs.MustClose)

	bc, err := chain.New(bs)
	require.NoError(t, err)
	for i := 1; i < total; i++ {
		_, err := bc.Append(fmt.Sprintf("test data %d", i))
		require.NoError(t, err)
	}
	return bc
}

// mapReader is a ChainReader with holes and injectable failures
type mapReader struct {
	height int64
	blocks map[uint64]*block.Block
	fail   map[uint64]error
}

func (r *mapReader) Height() (int64, error) { return r.height, nil }

func (r *mapReader) GetByHeight(h uint64) (*block.Block, error) {
	if err, ok := r.fail[h]; ok {
		return nil, err
	}
	b, ok := r.blocks[h]
	if !ok {
		return nil, chainerrors.NewNotFound(h)
	}
	return b, nil
}

func TestValidateIntactChain(t *testing.T) {
	bc := newChain(t, 5)
	v := NewValidator(bc)

	for h := uint64(0); h < 5; h++ {
		ok, err := v.ValidateBlock(h)
		require.NoError(t, err)
		assert.True(t, ok, "block %d", h)
	}

	// deterministic across runs
	for i := 0; i < 2; i++ {
		heights, err := v.ValidateChain()
		require.NoError(t, err)
		assert.Empty(t, heights)
	}

	report, err := v.ValidateChainReport()
	require.NoError(t, err)
	assert.True(t, report.Valid())
	assert.Equal(t, int64(4), report.Height)
	assert.Equal(t, 5, report.Checked)
}

func TestValidateDetectsTamperedData(t *testing.T) {
	bc := newChain(t, 5)
	_, err := diagnostic.TamperData(bc, 2, "induced chain error")
	require.NoError(t, err)

	v := NewValidator(bc)
	ok, err := v.ValidateBlock(2)
	require.NoError(t, err)
	assert.False(t, ok)

	check, err := v.InspectBlock(2)
	require.NoError(t, err)
	assert.NotEqual(t, check.Stored, check.Computed)

	heights, err := v.ValidateChain()
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, heights)
}

func TestValidateChecksTopBlock(t *testing.T) {
	bc := newChain(t, 5)
	_, err := diagnostic.TamperData(bc, 4, "top tampered")
	require.NoError(t, err)

	report, err := NewValidator(bc).ValidateChainReport()
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, uint64(4), report.Violations[0].Height)
	assert.Equal(t, chainerrors.ErrCodeHashMismatch, report.Violations[0].Code)
}

func TestValidateDetectsBrokenLink(t *testing.T) {
	bc := newChain(t, 5)
	// relinking the top block keeps every other link intact
	_, err := diagnostic.Relink(bc, 4, "not-the-previous-hash")
	require.NoError(t, err)

	report, err := NewValidator(bc).ValidateChainReport()
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, Violation{
		Height:   3,
		Code:     chainerrors.ErrCodeBrokenLink,
		Expected: mustGet(t, bc, 3).Hash,
		Actual:   "not-the-previous-hash",
	}, report.Violations[0])
}

func TestValidateResealedBlockBreaksNextLink(t *testing.T) {
	bc := newChain(t, 5)
	b := mustGet(t, bc, 2)
	b.Data = "rewritten history"
	require.NoError(t, b.Seal())
	require.NoError(t, diagnostic.Overwrite(bc, 2, b))

	heights, err := NewValidator(bc).ValidateChain()
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, heights)
}

func TestValidateReportsDuplicateHeights(t *testing.T) {
	bc := newChain(t, 5)
	b := mustGet(t, bc, 2)
	b.Data = "forged"
	b.Hash = "forged-hash"
	require.NoError(t, diagnostic.Overwrite(bc, 2, b))

	report, err := NewValidator(bc).ValidateChainReport()
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 2}, report.Heights())
	assert.Equal(t, chainerrors.ErrCodeHashMismatch, report.Violations[0].Code)
	assert.Equal(t, chainerrors.ErrCodeBrokenLink, report.Violations[1].Code)
}

func TestValidateDetectsHeightMismatch(t *testing.T) {
	bc := newChain(t, 3)
	b := mustGet(t, bc, 1)
	b.Height = 7
	require.NoError(t, diagnostic.Overwrite(bc, 1, b))

	report, err := NewValidator(bc).ValidateChainReport()
	require.NoError(t, err)
	codes := make([]chainerrors.ErrorCode, 0, len(report.Violations))
	for _, v := range report.Violations {
		assert.Equal(t, uint64(1), v.Height)
		codes = append(codes, v.Code)
	}
	assert.Equal(t, []chainerrors.ErrorCode{chainerrors.ErrCodeHeightMismatch, chainerrors.ErrCodeHashMismatch}, codes)
}

func TestValidateReportsMissingBlock(t *testing.T) {
	bc := newChain(t, 4)
	r := &mapReader{height: 3, blocks: map[uint64]*block.Block{}}
	for h := uint64(0); h <= 3; h++ {
		if h == 1 {
			continue
		}
		r.blocks[h] = mustGet(t, bc, h)
	}

	report, err := NewValidator(r).ValidateChainReport()
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, Violation{Height: 1, Code: chainerrors.ErrCodeMissingBlock}, report.Violations[0])
	assert.Equal(t, 3, report.Checked)
}

func TestValidateAbortsOnStoreFailure(t *testing.T) {
	bc := newChain(t, 3)
	r := &mapReader{
		height: 2,
		blocks: map[uint64]*block.Block{0: mustGet(t, bc, 0), 2: mustGet(t, bc, 2)},
		fail:   map[uint64]error{1: chainerrors.NewStoreRead(1, errors.New("io error"))},
	}

	_, err := NewValidator(r).ValidateChain()
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrStoreRead))
}

func TestValidateReportsUndecodableRecord(t *testing.T) {
	bc := newChain(t, 5)
	require.NoError(t, bc.Store().Put(2, []byte("not json")))

	report, err := NewValidator(bc).ValidateChainReport()
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, report.Heights())
	assert.Equal(t, Violation{Height: 2, Code: chainerrors.ErrCodeCorruptBlock}, report.Violations[0])
	assert.Equal(t, 4, report.Checked)

	_, err = NewValidator(bc).ValidateBlock(2)
	assert.True(t, errors.Is(err, chainerrors.ErrCorruptBlock))
}

func TestValidateEmptyChain(t *testing.T) {
	heights, err := NewValidator(&mapReader{height: -1}).ValidateChain()
	require.NoError(t, err)
	assert.Empty(t, heights)
}

func TestValidateBlockNotFound(t *testing.T) {
	bc := newChain(t, 2)
	_, err := NewValidator(bc).ValidateBlock(5)
	assert.True(t, errors.Is(err, chainerrors.ErrNotFound))
}

func mustGet(t *testing.T, bc *chain.Blockchain, h uint64) *block.Block {
	t.Helper()
	b, err := bc.GetByHeight(h)
	require.NoError(t, err)
	return b
}
