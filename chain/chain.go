// Package chain owns the height bookkeeping of a hash chain and is its only
// normal writer. One Blockchain must be created per store; the store is not
// safe for several Blockchains at once.
package chain

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/mezonai/hashchain/block"
	chainerrors "github.com/mezonai/hashchain/errors"
	"github.com/mezonai/hashchain/logx"
	"github.com/mezonai/hashchain/monitoring"
	"github.com/mezonai/hashchain/store"
)

// heightUnknown marks a cache that must be rebuilt from the store
const heightUnknown = -2

// Option configures a Blockchain
type Option func(*Blockchain)

// WithClock overrides the time source used to stamp blocks
func WithClock(now func() time.Time) Option {
	return func(bc *Blockchain) {
		bc.now = now
	}
}

// Blockchain is the chain controller
type Blockchain struct {
	store store.BlockStore
	now   func() time.Time

	mu     sync.Mutex
	height int64
}

// New creates a controller over bs and creates the genesis block when bs is empty
func New(bs store.BlockStore, opts ...Option) (*Blockchain, error) {
	if bs == nil {
		return nil, fmt.Errorf("block store cannot be nil")
	}

	bc := &Blockchain{
		store:  bs,
		now:    time.Now,
		height: heightUnknown,
	}
	for _, opt := range opts {
		opt(bc)
	}

	if _, err := bc.InitializeIfEmpty(); err != nil {
		return nil, fmt.Errorf("failed to initialize chain: %w", err)
	}
	return bc, nil
}

// Store returns the underlying block store
func (bc *Blockchain) Store() store.BlockStore {
	return bc.store
}

// Height returns the current chain height, -1 for an empty store
func (bc *Blockchain) Height() (int64, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.heightLocked()
}

func (bc *Blockchain) heightLocked() (int64, error) {
	if bc.height != heightUnknown {
		return bc.height, nil
	}
	n, err := bc.store.Count()
	if err != nil {
		return 0, err
	}
	bc.height = n - 1
	monitoring.SetBlockHeight(bc.height)
	return bc.height, nil
}

// Reload drops the cached height and rescans the store
func (bc *Blockchain) Reload() (int64, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.height = heightUnknown
	return bc.heightLocked()
}

// InitializeIfEmpty commits the genesis block when the chain is empty.
// It reports whether a genesis block was created.
func (bc *Blockchain) InitializeIfEmpty() (bool, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	height, err := bc.heightLocked()
	if err != nil {
		return false, err
	}
	if height != -1 {
		return false, nil
	}

	genesis := block.NewGenesis(bc.now())
	if err := bc.commitLocked(genesis); err != nil {
		return false, err
	}
	logx.Info("CHAIN", "Created genesis block ", genesis.Hash)
	return true, nil
}

// errInvalidUTF8 rejects payloads the JSON codec would rewrite on decode,
// which would leave the stored hash unverifiable
var errInvalidUTF8 = errors.New("block data is not valid UTF-8")

// Append stamps a new block carrying data on top of the chain and persists it
func (bc *Blockchain) Append(data string) (*block.Block, error) {
	if !utf8.ValidString(data) {
		return nil, chainerrors.NewInvalidData(errInvalidUTF8)
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()

	b := block.New(data)
	if err := bc.commitLocked(b); err != nil {
		return nil, err
	}
	logx.Info("CHAIN", "Appended block ", b.Height, " hash ", b.Hash)
	return b, nil
}

// commitLocked stamps height, time and link onto b, seals it and writes it.
// Any failure leaves the cached height unknown so it is re-derived from the store.
func (bc *Blockchain) commitLocked(b *block.Block) (err error) {
	start := time.Now()
	var target uint64
	defer func() {
		if err != nil {
			bc.height = heightUnknown
			monitoring.RecordAppendFailure()
			err = chainerrors.NewAppend(target, err)
			return
		}
		monitoring.RecordAppend(time.Since(start))
	}()

	current, err := bc.heightLocked()
	if err != nil {
		return err
	}
	target = uint64(current + 1)

	b.Height = target
	b.Time = block.FormatTime(bc.now())
	b.PreviousBlockHash = ""
	if target > 0 {
		prev, err := bc.load(target - 1)
		if err != nil {
			return fmt.Errorf("failed to read previous block: %w", err)
		}
		b.PreviousBlockHash = prev.Hash
	}

	if err := b.Seal(); err != nil {
		return err
	}
	raw, err := b.Encode()
	if err != nil {
		return err
	}
	if err := bc.store.Put(target, raw); err != nil {
		return err
	}

	bc.height = int64(target)
	monitoring.SetBlockHeight(bc.height)
	return nil
}

// GetByHeight returns the block stored at height
func (bc *Blockchain) GetByHeight(height uint64) (*block.Block, error) {
	current, err := bc.Height()
	if err != nil {
		return nil, err
	}
	if current < 0 || height > uint64(current) {
		return nil, chainerrors.NewNotFound(height)
	}
	return bc.load(height)
}

// load reads and decodes one block; it takes no lock
func (bc *Blockchain) load(height uint64) (*block.Block, error) {
	raw, err := bc.store.Get(height)
	if err != nil {
		return nil, err
	}
	b, err := block.Decode(raw)
	if err != nil {
		return nil, chainerrors.NewCorruptBlock(height, err)
	}
	return b, nil
}

// Export streams every stored block in height order
func (bc *Blockchain) Export(fn func(*block.Block) error) error {
	var cbErr error
	err := bc.store.Iterate(func(height uint64, raw []byte) bool {
		b, err := block.Decode(raw)
		if err != nil {
			cbErr = chainerrors.NewCorruptBlock(height, err)
			return false
		}
		if err := fn(b); err != nil {
			cbErr = err
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	return cbErr
}

// ErrStoreNotEmpty is returned by Import when the target already holds blocks
var ErrStoreNotEmpty = errors.New("store is not empty")

// Import writes a previously exported chain into an empty store in one batch.
// The sequence must start at height 0, be contiguous, and pass hash and link checks.
func Import(bs store.BlockStore, blocks []*block.Block) error {
	n, err := bs.Count()
	if err != nil {
		return err
	}
	if n != 0 {
		return ErrStoreNotEmpty
	}

	if len(blocks) > 0 && blocks[0].PreviousBlockHash != "" {
		return chainerrors.NewInvalidBlock(0, fmt.Errorf("genesis block has a previous hash"))
	}

	batch := make(map[uint64][]byte, len(blocks))
	for i, b := range blocks {
		if b.Height != uint64(i) {
			return chainerrors.NewInvalidBlock(uint64(i), fmt.Errorf("expected height %d, got %d", i, b.Height))
		}
		if !utf8.ValidString(b.Data) {
			return chainerrors.NewInvalidBlock(b.Height, errInvalidUTF8)
		}
		ok, computed, err := b.Verify()
		if err != nil {
			return chainerrors.NewInvalidBlock(b.Height, err)
		}
		if !ok {
			return chainerrors.NewInvalidBlock(b.Height, fmt.Errorf("hash mismatch: stored %s, computed %s", b.Hash, computed))
		}
		if i > 0 && !b.LinksTo(blocks[i-1]) {
			return chainerrors.NewInvalidBlock(b.Height, fmt.Errorf("previous hash %s does not match block %d", b.PreviousBlockHash, i-1))
		}
		raw, err := b.Encode()
		if err != nil {
			return chainerrors.NewInvalidBlock(b.Height, err)
		}
		batch[b.Height] = raw
	}

	if err := bs.PutBatch(batch); err != nil {
		return err
	}
	logx.Info("CHAIN", "Imported ", len(blocks), " blocks")
	return nil
}
