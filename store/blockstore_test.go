package store

import (
	"errors"
	"testing"

	"github.com/mezonai/hashchain/db"
	chainerrors "github.com/mezonai/hashchain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore(t *testing.T) *GenericBlockStore {
	t.Helper()
	bs, err := CreateBlockStore(&StoreConfig{Type: MemoryStoreType})
	require.NoError(t, err)
	t.Cleanup(bs.MustClose)
	return bs
}

func TestBlockStorePutGet(t *testing.T) {
	bs := newMemStore(t)

	require.NoError(t, bs.Put(0, []byte("genesis")))
	raw, err := bs.Get(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("genesis"), raw)

	ok, err := bs.Has(0)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = bs.Get(1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrNotFound))
	assert.False(t, errors.Is(err, chainerrors.ErrStoreRead))
}

func TestBlockStoreIterateOrderAndCount(t *testing.T) {
	bs := newMemStore(t)

	n, err := bs.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	for _, h := range []uint64{5, 0, 300, 2} {
		require.NoError(t, bs.Put(h, []byte{byte(h)}))
	}

	var heights []uint64
	require.NoError(t, bs.Iterate(func(height uint64, raw []byte) bool {
		heights = append(heights, height)
		return true
	}))
	assert.Equal(t, []uint64{0, 2, 5, 300}, heights)

	n, err = bs.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	// restartable
	n, err = bs.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestBlockStoreIgnoresForeignKeys(t *testing.T) {
	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)
	bs, err := NewGenericBlockStore(provider)
	require.NoError(t, err)
	defer bs.MustClose()

	require.NoError(t, provider.Put([]byte("meta:x"), []byte("y")))
	require.NoError(t, bs.Put(0, []byte("a")))

	n, err := bs.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestBlockStoreMalformedKey(t *testing.T) {
	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)
	bs, err := NewGenericBlockStore(provider)
	require.NoError(t, err)
	defer bs.MustClose()

	require.NoError(t, provider.Put([]byte(PrefixBlock+"short"), []byte("y")))

	_, err = bs.Count()
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrStoreRead))
}

func TestBlockStorePutBatch(t *testing.T) {
	bs := newMemStore(t)

	require.NoError(t, bs.PutBatch(map[uint64][]byte{0: []byte("a"), 1: []byte("b"), 2: []byte("c")}))
	n, err := bs.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	raw, err := bs.Get(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), raw)
}

func TestBlockStoreWriteFailure(t *testing.T) {
	provider, err := db.NewMemLevelDBProvider()
	require.NoError(t, err)
	bs, err := NewGenericBlockStore(provider)
	require.NoError(t, err)

	// closed backend makes every call fail
	require.NoError(t, provider.Close())

	err = bs.Put(0, []byte("a"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrStoreWrite))

	_, err = bs.Get(0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrStoreRead))
}

func TestKeyRoundTrip(t *testing.T) {
	for _, h := range []uint64{0, 1, 255, 256, 1 << 40} {
		got, ok := blockKeyToHeight(heightToBlockKey(h))
		require.True(t, ok)
		assert.Equal(t, h, got)
	}
	_, ok := blockKeyToHeight([]byte("tx:12345678"))
	assert.False(t, ok)
}

func TestStoreConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StoreConfig
		wantErr bool
	}{
		{"leveldb", StoreConfig{Type: LevelDBStoreType, Directory: "/tmp/x"}, false},
		{"leveldb without dir", StoreConfig{Type: LevelDBStoreType}, true},
		{"bolt", StoreConfig{Type: BoltStoreType, Directory: "/tmp/x"}, false},
		{"redis without address", StoreConfig{Type: RedisStoreType}, true},
		{"postgres", StoreConfig{Type: PostgresStoreType, Address: "postgres://localhost/chain"}, false},
		{"memory", StoreConfig{Type: MemoryStoreType}, false},
		{"empty", StoreConfig{}, true},
		{"unknown", StoreConfig{Type: "sqlite", Directory: "/tmp/x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateBlockStoreBolt(t *testing.T) {
	dir := t.TempDir()
	bs, err := CreateBlockStore(&StoreConfig{Type: BoltStoreType, Directory: dir})
	require.NoError(t, err)
	require.NoError(t, bs.Put(7, []byte("x")))
	bs.MustClose()

	bs, err = CreateBlockStore(&StoreConfig{Type: BoltStoreType, Directory: dir})
	require.NoError(t, err)
	defer bs.MustClose()
	raw, err := bs.Get(7)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), raw)
}
