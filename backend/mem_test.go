package backend

import (
	"testing"

	"github.com/lumpstore/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func id(n uint64) device.LumpId { return device.LumpIdFromUint64(n) }

func TestMemStoragePutGetRoundTrip(t *testing.T) {
	m := NewMemStorage(512)

	created, err := m.Put(id(1), device.NewLumpData([]byte("hello")))
	require.NoError(t, err)
	assert.True(t, created)

	got, ok, err := m.Get(id(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got)

	replaced, err := m.Put(id(1), device.NewLumpData([]byte("world")))
	require.NoError(t, err)
	assert.False(t, replaced)
}

func TestMemStorageGetMissing(t *testing.T) {
	m := NewMemStorage(512)
	_, ok, err := m.Get(id(99))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemStorageBasicCRUD(t *testing.T) {
	m := NewMemStorage(512)

	for i, v := range []string{"foo", "bar", "baz"} {
		_, err := m.Put(id(uint64(i)), device.NewLumpData([]byte(v)))
		require.NoError(t, err)
	}

	ids, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []device.LumpId{id(0), id(1), id(2)}, ids)

	removed, err := m.Delete(id(1))
	require.NoError(t, err)
	assert.True(t, removed)

	removedAgain, err := m.Delete(id(1))
	require.NoError(t, err)
	assert.False(t, removedAgain)

	ids, err = m.List()
	require.NoError(t, err)
	assert.Equal(t, []device.LumpId{id(0), id(2)}, ids)
}

func TestMemStorageDeleteRangePartial(t *testing.T) {
	m := NewMemStorage(512)
	for i := uint64(0); i <= 3; i++ {
		_, err := m.Put(id(i), device.NewLumpData([]byte{byte(i)}))
		require.NoError(t, err)
	}

	removed, err := m.DeleteRange(id(1), id(3))
	require.NoError(t, err)
	assert.Equal(t, []device.LumpId{id(1), id(2)}, removed)

	remaining, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []device.LumpId{id(0), id(3)}, remaining)
}

func TestMemStorageUsageRangeRoundsToBlockSize(t *testing.T) {
	m := NewMemStorage(512)

	_, err := m.Put(id(0), device.NewLumpData(make([]byte, 510)))
	require.NoError(t, err)
	_, err = m.Put(id(1), device.NewLumpData(make([]byte, 511)))
	require.NoError(t, err)
	_, err = m.Put(id(12), device.NewLumpData(make([]byte, 3)))
	require.NoError(t, err)

	u, err := m.UsageRange(id(0), id(1))
	require.NoError(t, err)
	assert.EqualValues(t, 512, u)

	u, err = m.UsageRange(id(0), id(10))
	require.NoError(t, err)
	assert.EqualValues(t, 1536, u)

	u, err = m.UsageRange(id(0), id(13))
	require.NoError(t, err)
	assert.EqualValues(t, 2048, u)
}

func TestMemStorageJournalSyncMakesDataDurable(t *testing.T) {
	m := NewMemStorage(512)
	_, err := m.Put(id(7), device.NewLumpData([]byte("durable")))
	require.NoError(t, err)

	m.journalMu.Lock()
	_, inJournal := m.journal[id(7)]
	m.journalMu.Unlock()
	assert.True(t, inJournal)

	require.NoError(t, m.JournalSync())

	m.journalMu.Lock()
	_, stillInJournal := m.journal[id(7)]
	m.journalMu.Unlock()
	assert.False(t, stillInJournal)

	s := m.shardFor(id(7))
	s.mu.RLock()
	_, inArena := s.entries[id(7)]
	s.mu.RUnlock()
	assert.True(t, inArena)
}

func TestMemStorageHeaderReportsBlockSize(t *testing.T) {
	m := NewMemStorage(4096)
	assert.Equal(t, 4096, m.Header().BlockSize)
}

func TestMemStorageHeadReturnsMetadata(t *testing.T) {
	m := NewMemStorage(512)
	_, err := m.Put(id(3), device.NewLumpData(make([]byte, 17)))
	require.NoError(t, err)

	meta, ok, err := m.Head(id(3))
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 17, meta.ApproxSize)
}
