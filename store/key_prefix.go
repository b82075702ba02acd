package store

import "encoding/binary"

// Declare database key prefix for objects
const (
	PrefixBlock = "blk:"
)

const heightKeyLen = len(PrefixBlock) + 8

// heightToBlockKey converts a height to a block storage key. Big-endian
// encoding keeps byte order equal to numeric order.
func heightToBlockKey(height uint64) []byte {
	key := make([]byte, heightKeyLen)
	copy(key, PrefixBlock)
	binary.BigEndian.PutUint64(key[len(PrefixBlock):], height)
	return key
}

// blockKeyToHeight reverses heightToBlockKey
func blockKeyToHeight(key []byte) (uint64, bool) {
	if len(key) != heightKeyLen || string(key[:len(PrefixBlock)]) != PrefixBlock {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[len(PrefixBlock):]), true
}
