// Package diagnostic deliberately corrupts a chain so that validation can be
// exercised. Nothing here recomputes hashes or links. Production code paths
// must not import it.
package diagnostic

import (
	"fmt"

	"github.com/mezonai/hashchain/block"
	"github.com/mezonai/hashchain/chain"
	"github.com/mezonai/hashchain/logx"
)

// Overwrite replaces the stored block at height with b exactly as given,
// then resyncs the controller's height.
func Overwrite(bc *chain.Blockchain, height uint64, b *block.Block) error {
	raw, err := b.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode block: %w", err)
	}
	if err := bc.Store().Put(height, raw); err != nil {
		return err
	}
	if _, err := bc.Reload(); err != nil {
		return err
	}
	logx.Warn("DIAGNOSTIC", "Overwrote block ", height, " without resealing")
	return nil
}

// TamperData swaps the payload of the block at height and leaves every other
// field, the hash included, stale
func TamperData(bc *chain.Blockchain, height uint64, data string) (*block.Block, error) {
	b, err := bc.GetByHeight(height)
	if err != nil {
		return nil, err
	}
	b.Data = data
	if err := Overwrite(bc, height, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Relink points the block at height to prevHash and reseals it, so its own
// hash is valid but the link to its predecessor is not
func Relink(bc *chain.Blockchain, height uint64, prevHash string) (*block.Block, error) {
	b, err := bc.GetByHeight(height)
	if err != nil {
		return nil, err
	}
	b.PreviousBlockHash = prevHash
	if err := b.Seal(); err != nil {
		return nil, err
	}
	if err := Overwrite(bc, height, b); err != nil {
		return nil, err
	}
	return b, nil
}
