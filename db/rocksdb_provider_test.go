//go:build rocksdb
// +build rocksdb

package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRocksDBProvider(t *testing.T) {
	p, err := NewRocksDBProvider(t.TempDir())
	require.NoError(t, err)
	defer p.Close()

	exerciseProvider(t, p)
}

func TestRocksDBProviderReopen(t *testing.T) {
	dir := t.TempDir()

	p, err := NewRocksDBProvider(dir)
	require.NoError(t, err)
	require.NoError(t, p.Put(heightKey("blk:", 7), []byte("v")))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	p, err = NewRocksDBProvider(dir)
	require.NoError(t, err)
	defer p.Close()

	value, err := p.Get(heightKey("blk:", 7))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
}
