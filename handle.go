package device

import (
	"github.com/lumpstore/device/internal/queue"
)

// largeAllocationThreshold is the size at or above which AllocateLumpData
// draws from the pooled buffer path instead of a fresh make([]byte, ...).
const largeAllocationThreshold = 128 * 1024

// DeviceHandle is the client-facing submission surface. It is cheap to
// clone and safe to share: every modifier method returns a *new* handle
// carrying the accumulated modifiers, leaving the receiver untouched, so
// `h.Prioritized().Put(...)` never mutates a handle shared with other
// goroutines.
type DeviceHandle struct {
	device      *Device
	deadline    Deadline
	prioritized bool
	journalSync bool
}

func (h DeviceHandle) clone() DeviceHandle { return h }

// WithDeadline returns a handle that schedules its next terminal
// operation at the given deadline instead of Infinity (the default).
func (h DeviceHandle) WithDeadline(d Deadline) *DeviceHandle {
	c := h.clone()
	c.deadline = d
	return &c
}

// Prioritized returns a handle whose next terminal operation bypasses
// every overload policy.
func (h DeviceHandle) Prioritized() *DeviceHandle {
	c := h.clone()
	c.prioritized = true
	return &c
}

// JournalSync returns a handle whose next write operation flushes the
// journal before its future resolves, giving the caller a durability
// guarantee for that specific write.
func (h DeviceHandle) JournalSync() *DeviceHandle {
	c := h.clone()
	c.journalSync = true
	return &c
}

func (h *DeviceHandle) submit(cmd *Command) {
	if h.device.Status() == StatusStopped {
		cmd.fail(WrapError(string(cmd.kind), ErrDeviceTerminated))
		return
	}
	h.device.inbox <- cmd
}

// Put stores data under id, returning true if id was newly created and
// false if it replaced an existing entry.
func (h *DeviceHandle) Put(id LumpId, data LumpData) *Future[bool] {
	cmd, fut := newCommand(cmdPut, h.deadline, h.prioritized, h.journalSync,
		func(s Storage) (bool, error) { return s.Put(id, data) },
		func(bool) uint64 { return uint64(data.Len()) },
	)
	h.submit(cmd)
	return fut
}

// Get retrieves the bytes stored under id, with ok=false if absent.
func (h *DeviceHandle) Get(id LumpId) *Future[getResult] {
	cmd, fut := newCommand(cmdGet, h.deadline, h.prioritized, false,
		func(s Storage) (getResult, error) {
			b, ok, err := s.Get(id)
			return getResult{Data: b, Ok: ok}, err
		},
		func(r getResult) uint64 { return uint64(len(r.Data)) },
	)
	h.submit(cmd)
	return fut
}

// getResult is Get's result payload: Go has no sum type for (bytes, ok),
// so the tuple is named rather than returned via two futures.
type getResult struct {
	Data []byte
	Ok   bool
}

// Head retrieves metadata for id without reading its data.
func (h *DeviceHandle) Head(id LumpId) *Future[headResult] {
	cmd, fut := newCommand(cmdHead, h.deadline, h.prioritized, false,
		func(s Storage) (headResult, error) {
			m, ok, err := s.Head(id)
			return headResult{Metadata: m, Ok: ok}, err
		}, nil)
	h.submit(cmd)
	return fut
}

type headResult struct {
	Metadata LumpMetadata
	Ok       bool
}

// Delete removes id, returning whether it existed.
func (h *DeviceHandle) Delete(id LumpId) *Future[bool] {
	cmd, fut := newCommand(cmdDelete, h.deadline, h.prioritized, h.journalSync,
		func(s Storage) (bool, error) { return s.Delete(id) }, nil)
	h.submit(cmd)
	return fut
}

// DeleteRange removes every id in [start, end), returning the removed ids.
func (h *DeviceHandle) DeleteRange(start, end LumpId) *Future[[]LumpId] {
	cmd, fut := newCommand(cmdDeleteRange, h.deadline, h.prioritized, h.journalSync,
		func(s Storage) ([]LumpId, error) { return s.DeleteRange(start, end) }, nil)
	h.submit(cmd)
	return fut
}

// List returns every stored id.
func (h *DeviceHandle) List() *Future[[]LumpId] {
	cmd, fut := newCommand(cmdList, h.deadline, h.prioritized, false,
		func(s Storage) ([]LumpId, error) { return s.List() }, nil)
	h.submit(cmd)
	return fut
}

// ListRange returns every id in [start, end).
func (h *DeviceHandle) ListRange(start, end LumpId) *Future[[]LumpId] {
	cmd, fut := newCommand(cmdListRange, h.deadline, h.prioritized, false,
		func(s Storage) ([]LumpId, error) { return s.ListRange(start, end) }, nil)
	h.submit(cmd)
	return fut
}

// UsageRange sums the block-aligned storage usage of every id in
// [start, end).
func (h *DeviceHandle) UsageRange(start, end LumpId) *Future[uint64] {
	cmd, fut := newCommand(cmdUsageRange, h.deadline, h.prioritized, false,
		func(s Storage) (uint64, error) { return s.UsageRange(start, end) }, nil)
	h.submit(cmd)
	return fut
}

// SyncJournal flushes the journal to durable storage without an
// accompanying write, as its own terminal operation.
func (h *DeviceHandle) SyncJournal() *Future[struct{}] {
	cmd, fut := newCommand(cmdJournalSync, h.deadline, h.prioritized, false,
		func(s Storage) (struct{}, error) { return struct{}{}, s.JournalSync() }, nil)
	h.submit(cmd)
	return fut
}

// WaitForRunning resolves once the device reaches StatusRunning,
// regardless of how busy its queue is. It is always held in the inbox
// until Running and always bypasses overload policies.
func (h *DeviceHandle) WaitForRunning() *Future[struct{}] {
	cmd, fut := newCommand(cmdWaitForRunning, Immediate(), true, false,
		func(s Storage) (struct{}, error) { return struct{}{}, nil }, nil)
	cmd.waitForRunning = true
	h.submit(cmd)
	return fut
}

// AllocateLumpData allocates a LumpData buffer of the given size,
// aligned to the storage's block size once it's known. It never touches
// the worker: the handle reads the published block size directly from
// Metrics, since it's set once and never changes.
func (h *DeviceHandle) AllocateLumpData(size uint64) (LumpData, error) {
	if size > uint64(MaxLumpSize) {
		return LumpData{}, NewError("AllocateLumpData", ErrKindInvalidInput, "size exceeds MaxLumpSize")
	}
	if bs, ok := h.device.metrics.BlockSize(); ok && h.device.Status() == StatusRunning {
		return NewAlignedLumpData(int(size), bs)
	}
	if size >= largeAllocationThreshold {
		return NewLumpData(queue.GetBuffer(uint32(size))), nil
	}
	return NewLumpData(make([]byte, size)), nil
}
