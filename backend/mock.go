package backend

import (
	"sync"

	"github.com/lumpstore/device"
)

// MockStorage wraps a real MemStorage and adds call-count tracking plus
// injectable one-shot errors, for white-box tests that need to assert
// which Storage methods the worker actually invoked (grounded on the
// teacher's MockBackend call-count tracking in testing.go).
type MockStorage struct {
	inner *MemStorage

	mu         sync.Mutex
	calls      map[string]int
	errs       map[string]error
	closed     bool
	syncCalled int
}

// NewMockStorage builds a MockStorage backed by a fresh MemStorage with
// the given block size.
func NewMockStorage(blockSize int) *MockStorage {
	return &MockStorage{
		inner: NewMemStorage(blockSize),
		calls: make(map[string]int),
		errs:  make(map[string]error),
	}
}

// FailNext makes the named method (e.g. "Put", "JournalSync") return err
// the next time it's called. The error is consumed after one use.
func (m *MockStorage) FailNext(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[method] = err
}

func (m *MockStorage) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	if err := m.errs[method]; err != nil {
		delete(m.errs, method)
		return err
	}
	return nil
}

// CallCounts returns a snapshot of how many times each method was called.
func (m *MockStorage) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.calls))
	for k, v := range m.calls {
		out[k] = v
	}
	return out
}

// JournalSyncCalls reports how many times JournalSync succeeded.
func (m *MockStorage) JournalSyncCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncCalled
}

// IsClosed reports whether Close has been called.
func (m *MockStorage) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockStorage) Put(id device.LumpId, data device.LumpData) (bool, error) {
	if err := m.record("Put"); err != nil {
		return false, err
	}
	return m.inner.Put(id, data)
}

func (m *MockStorage) Get(id device.LumpId) ([]byte, bool, error) {
	if err := m.record("Get"); err != nil {
		return nil, false, err
	}
	return m.inner.Get(id)
}

func (m *MockStorage) Head(id device.LumpId) (device.LumpMetadata, bool, error) {
	if err := m.record("Head"); err != nil {
		return device.LumpMetadata{}, false, err
	}
	return m.inner.Head(id)
}

func (m *MockStorage) Delete(id device.LumpId) (bool, error) {
	if err := m.record("Delete"); err != nil {
		return false, err
	}
	return m.inner.Delete(id)
}

func (m *MockStorage) DeleteRange(start, end device.LumpId) ([]device.LumpId, error) {
	if err := m.record("DeleteRange"); err != nil {
		return nil, err
	}
	return m.inner.DeleteRange(start, end)
}

func (m *MockStorage) List() ([]device.LumpId, error) {
	if err := m.record("List"); err != nil {
		return nil, err
	}
	return m.inner.List()
}

func (m *MockStorage) ListRange(start, end device.LumpId) ([]device.LumpId, error) {
	if err := m.record("ListRange"); err != nil {
		return nil, err
	}
	return m.inner.ListRange(start, end)
}

func (m *MockStorage) UsageRange(start, end device.LumpId) (uint64, error) {
	if err := m.record("UsageRange"); err != nil {
		return 0, err
	}
	return m.inner.UsageRange(start, end)
}

func (m *MockStorage) JournalSync() error {
	if err := m.record("JournalSync"); err != nil {
		return err
	}
	m.mu.Lock()
	m.syncCalled++
	m.mu.Unlock()
	return m.inner.JournalSync()
}

func (m *MockStorage) Header() device.LumpHeader {
	return m.inner.Header()
}

func (m *MockStorage) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.inner.Close()
}

var _ device.Storage = (*MockStorage)(nil)
