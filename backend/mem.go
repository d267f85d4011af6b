// Package backend provides reference Storage implementations for the
// device core: an in-memory engine for real use in tests and the demo
// binary, and a call-counting mock for white-box assertions.
package backend

import (
	"sort"
	"sync"

	"github.com/lumpstore/device"
)

// numShards splits the id space across many small locks, keeping
// Put/Get/Delete cheap even though in this core they are only ever
// called from the single owning worker.
const numShards = 64

type lumpEntry struct {
	data      []byte
	allocSize uint64
}

type shard struct {
	mu      sync.RWMutex
	entries map[device.LumpId]*lumpEntry
}

// MemStorage is a content-addressed, in-memory Storage implementation.
// Puts land in a journal buffer immediately; JournalSync moves them into
// the committed arena, standing in for a write-ahead journal flush to
// durable media.
type MemStorage struct {
	blockSize int
	shards    [numShards]*shard

	journalMu sync.Mutex
	journal   map[device.LumpId]*lumpEntry
}

// NewMemStorage builds an empty in-memory storage engine with the given
// block size (used for aligned-allocation rounding and usage accounting).
func NewMemStorage(blockSize int) *MemStorage {
	if blockSize <= 0 {
		blockSize = 512
	}
	m := &MemStorage{
		blockSize: blockSize,
		journal:   make(map[device.LumpId]*lumpEntry),
	}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[device.LumpId]*lumpEntry)}
	}
	return m
}

func (m *MemStorage) shardFor(id device.LumpId) *shard {
	hi, lo := id.Words()
	h := hi ^ lo
	return m.shards[h%uint64(numShards)]
}

// lumpTrailerSize is the per-lump overhead charged on top of the data
// bytes when accounting usage.
const lumpTrailerSize = 2

// alignedSize is the usage charged for a lump of n bytes: n plus the
// per-lump trailer, rounded up to whole blocks.
func (m *MemStorage) alignedSize(n int) uint64 {
	return device.BlockSize(m.blockSize).AlignUp(uint64(n) + lumpTrailerSize)
}

// Put stores data under id. The write lands in the journal buffer; it is
// visible to Get/Head/List immediately, but is only guaranteed durable
// after JournalSync.
func (m *MemStorage) Put(id device.LumpId, data device.LumpData) (bool, error) {
	entry := &lumpEntry{data: append([]byte(nil), data.Bytes()...), allocSize: m.alignedSize(data.Len())}

	s := m.shardFor(id)
	s.mu.RLock()
	_, existed := s.entries[id]
	s.mu.RUnlock()

	m.journalMu.Lock()
	if _, inJournal := m.journal[id]; inJournal {
		existed = true
	}
	m.journal[id] = entry
	m.journalMu.Unlock()

	return !existed, nil
}

// lookup returns the most recent entry for id, preferring an unsynced
// journal write over the committed arena.
func (m *MemStorage) lookup(id device.LumpId) (*lumpEntry, bool) {
	m.journalMu.Lock()
	if e, ok := m.journal[id]; ok {
		m.journalMu.Unlock()
		return e, true
	}
	m.journalMu.Unlock()

	s := m.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

func (m *MemStorage) Get(id device.LumpId) ([]byte, bool, error) {
	e, ok := m.lookup(id)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.data...), true, nil
}

func (m *MemStorage) Head(id device.LumpId) (device.LumpMetadata, bool, error) {
	e, ok := m.lookup(id)
	if !ok {
		return device.LumpMetadata{}, false, nil
	}
	return device.LumpMetadata{ApproxSize: uint32(len(e.data))}, true, nil
}

func (m *MemStorage) Delete(id device.LumpId) (bool, error) {
	m.journalMu.Lock()
	_, inJournal := m.journal[id]
	delete(m.journal, id)
	m.journalMu.Unlock()

	s := m.shardFor(id)
	s.mu.Lock()
	_, inArena := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	return inJournal || inArena, nil
}

// allIDs returns every id currently visible (journal ∪ committed arena),
// ascending.
func (m *MemStorage) allIDs() []device.LumpId {
	seen := make(map[device.LumpId]struct{})

	m.journalMu.Lock()
	for id := range m.journal {
		seen[id] = struct{}{}
	}
	m.journalMu.Unlock()

	for i := range m.shards {
		s := m.shards[i]
		s.mu.RLock()
		for id := range s.entries {
			seen[id] = struct{}{}
		}
		s.mu.RUnlock()
	}

	ids := make([]device.LumpId, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

func inHalfOpen(id, start, end device.LumpId) bool {
	return !id.Less(start) && id.Less(end)
}

func (m *MemStorage) DeleteRange(start, end device.LumpId) ([]device.LumpId, error) {
	var removed []device.LumpId
	for _, id := range m.allIDs() {
		if !inHalfOpen(id, start, end) {
			continue
		}
		if ok, _ := m.Delete(id); ok {
			removed = append(removed, id)
		}
	}
	return removed, nil
}

func (m *MemStorage) List() ([]device.LumpId, error) {
	return m.allIDs(), nil
}

func (m *MemStorage) ListRange(start, end device.LumpId) ([]device.LumpId, error) {
	var out []device.LumpId
	for _, id := range m.allIDs() {
		if inHalfOpen(id, start, end) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *MemStorage) UsageRange(start, end device.LumpId) (uint64, error) {
	var total uint64
	for _, id := range m.allIDs() {
		if !inHalfOpen(id, start, end) {
			continue
		}
		if e, ok := m.lookup(id); ok {
			total += e.allocSize
		}
	}
	return total, nil
}

// JournalSync moves every buffered write into the committed, sharded
// arena. This is the only operation that makes a Put durable rather
// than merely visible to reads.
func (m *MemStorage) JournalSync() error {
	m.journalMu.Lock()
	pending := m.journal
	m.journal = make(map[device.LumpId]*lumpEntry)
	m.journalMu.Unlock()

	for id, e := range pending {
		s := m.shardFor(id)
		s.mu.Lock()
		s.entries[id] = e
		s.mu.Unlock()
	}
	return nil
}

func (m *MemStorage) Header() device.LumpHeader {
	return device.LumpHeader{BlockSize: m.blockSize}
}

func (m *MemStorage) Close() error {
	return nil
}

var _ device.Storage = (*MemStorage)(nil)
