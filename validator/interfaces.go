package validator

import (
	"github.com/mezonai/hashchain/block"
)

// ChainReader is the read side of the chain controller
type ChainReader interface {
	Height() (int64, error)
	GetByHeight(height uint64) (*block.Block, error)
}
