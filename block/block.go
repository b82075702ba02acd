package block

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/mezonai/hashchain/jsonx"
)

// CanonicalVersion identifies the digest encoding. It is hashed with the
// block, so a new encoding must bump it.
const CanonicalVersion uint32 = 1

// GenesisData is the payload of the height-0 block
const GenesisData = "First block in the chain - Genesis block"

// Block is one record of the chain. Field order is part of the canonical
// encoding and must not change.
type Block struct {
	Version           uint32 `json:"version"`
	Height            uint64 `json:"height"`
	Time              string `json:"time"`              // UTC epoch seconds
	Data              string `json:"data"`              // application payload
	PreviousBlockHash string `json:"previousBlockHash"` // empty for genesis
	Hash              string `json:"hash"`              // hex SHA-256 over the canonical bytes
}

// New returns an unsealed block carrying data. Height, time and link are
// stamped by the chain at append time.
func New(data string) *Block {
	return &Block{
		Version: CanonicalVersion,
		Data:    data,
	}
}

// NewGenesis returns an unsealed genesis block stamped with now
func NewGenesis(now time.Time) *Block {
	b := New(GenesisData)
	b.Height = 0
	b.Time = FormatTime(now)
	return b
}

// FormatTime renders t as UTC epoch seconds
func FormatTime(t time.Time) string {
	return strconv.FormatInt(t.UTC().Unix(), 10)
}

// ParseTime reverses FormatTime
func (b *Block) ParseTime() (time.Time, error) {
	sec, err := strconv.ParseInt(b.Time, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid block time %q: %w", b.Time, err)
	}
	return time.Unix(sec, 0).UTC(), nil
}

// CanonicalBytes is the digest input: every field present, Hash set to "".
// Append and validation both hash these bytes.
func (b *Block) CanonicalBytes() ([]byte, error) {
	c := *b
	c.Hash = ""
	return jsonx.MarshalCanonical(&c)
}

// ComputeHash returns the hex SHA-256 of the canonical bytes
func (b *Block) ComputeHash() (string, error) {
	raw, err := b.CanonicalBytes()
	if err != nil {
		return "", fmt.Errorf("failed to encode block %d: %w", b.Height, err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Seal computes and stores the hash. Called once, at append.
func (b *Block) Seal() error {
	h, err := b.ComputeHash()
	if err != nil {
		return err
	}
	b.Hash = h
	return nil
}

// Verify recomputes the digest and compares it with the stored hash.
// The recomputed value is returned for diagnostics.
func (b *Block) Verify() (bool, string, error) {
	computed, err := b.ComputeHash()
	if err != nil {
		return false, "", err
	}
	return computed == b.Hash, computed, nil
}

// LinksTo reports whether b directly follows prev
func (b *Block) LinksTo(prev *Block) bool {
	return prev != nil && b.PreviousBlockHash == prev.Hash
}

// IsGenesis reports whether b sits at height 0
func (b *Block) IsGenesis() bool {
	return b.Height == 0
}

// Encode serializes b for storage
func (b *Block) Encode() ([]byte, error) {
	return jsonx.MarshalCanonical(b)
}

// Decode parses a stored block
func Decode(raw []byte) (*Block, error) {
	var b Block
	if err := jsonx.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("failed to decode block: %w", err)
	}
	return &b, nil
}

func (b *Block) String() string {
	return fmt.Sprintf("Block{height=%d time=%s hash=%s prev=%s}", b.Height, b.Time, b.Hash, b.PreviousBlockHash)
}
