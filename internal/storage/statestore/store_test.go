package statestore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barterlabs/goBarterd/internal/storage/statestore/compression"
)

type testRecord struct {
	Name  string `codec:"name"`
	Value string `codec:"value"`
	Count uint64 `codec:"count"`
}

func openMemoryStore(t *testing.T, compressor string) *Store {
	t.Helper()
	backend, err := NewMemoryBackend(nil)
	require.NoError(t, err)
	store, err := OpenWithBackend(backend, &Config{Compressor: compressor, CacheSize: 16})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStorePutGetDelete(t *testing.T) {
	for _, compressor := range []string{"none", "lz4"} {
		t.Run(compressor, func(t *testing.T) {
			store := openMemoryStore(t, compressor)

			in := testRecord{Name: "offer", Value: strings.Repeat("3000000", 64), Count: 42}
			require.NoError(t, store.PutRecord("offer/sale/1", in))

			var out testRecord
			require.NoError(t, store.GetRecord("offer/sale/1", &out))
			assert.Equal(t, in, out)

			require.NoError(t, store.DeleteRecord("offer/sale/1"))
			err := store.GetRecord("offer/sale/1", &out)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := openMemoryStore(t, "none")
	var out testRecord
	assert.ErrorIs(t, store.GetRecord("nope", &out), ErrNotFound)
}

func TestStoreScanRecords(t *testing.T) {
	store := openMemoryStore(t, "lz4")
	for _, key := range []string{"offer/sale/2", "offer/sale/1", "offer/buy/1", "seq/sale"} {
		require.NoError(t, store.PutRecord(key, testRecord{Name: key}))
	}

	var got []string
	err := store.ScanRecords("offer/sale/", func(key string, decode func(out interface{}) error) error {
		var rec testRecord
		if err := decode(&rec); err != nil {
			return err
		}
		assert.Equal(t, key, rec.Name)
		got = append(got, key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"offer/sale/1", "offer/sale/2"}, got)
}

func TestStoreSurvivesCacheEviction(t *testing.T) {
	backend, err := NewMemoryBackend(nil)
	require.NoError(t, err)
	store, err := OpenWithBackend(backend, &Config{Compressor: "lz4", CacheSize: 2})
	require.NoError(t, err)
	defer store.Close()

	keys := []string{"a", "b", "c", "d"}
	for i, key := range keys {
		require.NoError(t, store.PutRecord(key, testRecord{Name: key, Count: uint64(i)}))
	}
	for i, key := range keys {
		var out testRecord
		require.NoError(t, store.GetRecord(key, &out))
		assert.Equal(t, key, out.Name)
		assert.Equal(t, uint64(i), out.Count)
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	for _, name := range compression.Available() {
		t.Run(name, func(t *testing.T) {
			comp, err := compression.Get(name)
			require.NoError(t, err)

			inputs := [][]byte{
				[]byte(strings.Repeat("45000", 200)), // compressible
				[]byte{0x01},                         // tiny
				{},                                   // empty
			}
			for _, in := range inputs {
				packed, err := comp.Compress(in)
				require.NoError(t, err)
				out, err := comp.Decompress(packed)
				require.NoError(t, err)
				assert.Equal(t, in, out)
			}
		})
	}
}

func TestBackendRegistry(t *testing.T) {
	assert.Contains(t, AvailableBackends(), "memory")
	assert.Contains(t, AvailableBackends(), "pebble")

	_, err := CreateBackend("bogus", nil)
	assert.Error(t, err)
}
