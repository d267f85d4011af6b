package device_test

import (
	"context"
	"testing"
	"time"

	"github.com/lumpstore/device"
	"github.com/lumpstore/device/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lump(s string) device.LumpData { return device.NewLumpData([]byte(s)) }

func memFactory(blockSize int) device.StorageFactory {
	return func() (device.Storage, error) { return backend.NewMemStorage(blockSize), nil }
}

func spawnRunning(t *testing.T, b *device.DeviceBuilder, factory device.StorageFactory) *device.Device {
	t.Helper()
	d := b.Spawn(factory)
	_, err := d.Handle().WaitForRunning().Get()
	require.NoError(t, err)
	return d
}

func TestPutGetHeadDeleteRoundTrip(t *testing.T) {
	d := spawnRunning(t, device.NewDeviceBuilder(), memFactory(512))
	h := d.Handle()
	id := device.LumpIdFromUint64(1)

	created, err := h.Put(id, lump("hello")).Get()
	require.NoError(t, err)
	assert.True(t, created)

	created, err = h.Put(id, lump("world!")).Get()
	require.NoError(t, err)
	assert.False(t, created, "second Put to the same id replaces an existing entry")

	data, err := h.Get(id).Get()
	require.NoError(t, err)
	assert.True(t, data.Ok)
	assert.Equal(t, []byte("world!"), data.Data)

	meta, err := h.Head(id).Get()
	require.NoError(t, err)
	assert.True(t, meta.Ok)
	assert.EqualValues(t, len("world!"), meta.Metadata.ApproxSize)

	removed, err := h.Delete(id).Get()
	require.NoError(t, err)
	assert.True(t, removed)

	data, err = h.Get(id).Get()
	require.NoError(t, err)
	assert.False(t, data.Ok)

	_, err = d.Stop(device.Immediate()).Get()
	require.NoError(t, err)
}

func TestDeleteRangeRemovesOnlyTheHalfOpenInterval(t *testing.T) {
	d := spawnRunning(t, device.NewDeviceBuilder(), memFactory(512))
	h := d.Handle()

	for i := uint64(0); i < 10; i++ {
		_, err := h.Put(device.LumpIdFromUint64(i), lump("x")).Get()
		require.NoError(t, err)
	}

	removed, err := h.DeleteRange(device.LumpIdFromUint64(3), device.LumpIdFromUint64(7)).Get()
	require.NoError(t, err)
	require.Len(t, removed, 4)
	for i, id := range removed {
		_, lo := id.Words()
		assert.Equal(t, uint64(3+i), lo)
	}

	remaining, err := h.List().Get()
	require.NoError(t, err)
	assert.Len(t, remaining, 6)

	_, err = d.Stop(device.Immediate()).Get()
	require.NoError(t, err)
}

func TestUsageRangeRoundsUpToBlockSize(t *testing.T) {
	d := spawnRunning(t, device.NewDeviceBuilder(), memFactory(512))
	h := d.Handle()

	_, err := h.Put(device.LumpIdFromUint64(1), lump(string(make([]byte, 100)))).Get()
	require.NoError(t, err)
	_, err = h.Put(device.LumpIdFromUint64(2), lump(string(make([]byte, 600)))).Get()
	require.NoError(t, err)

	usage, err := h.UsageRange(device.LumpIdFromUint64(0), device.LumpIdFromUint64(10)).Get()
	require.NoError(t, err)
	// 100 bytes rounds up to one 512-byte block, 600 bytes to two.
	assert.EqualValues(t, 512+1024, usage)

	_, err = d.Stop(device.Immediate()).Get()
	require.NoError(t, err)
}

// TestRefusePolicyWithZeroThresholdAndZeroDuration exercises a
// RefuseNewRequests device with busy threshold 0 and zero keep-busy
// duration: the first admission becomes busy but is exempted, so it
// succeeds. Each Put is awaited before the next is submitted, so the
// second admission sees an empty queue; with threshold 0 that length
// still counts as busy, busySince never clears, and with the exemption
// spent the second admission is refused. A subsequent prioritized
// request bypasses admission control entirely and always succeeds.
func TestRefusePolicyWithZeroThresholdAndZeroDuration(t *testing.T) {
	b := device.NewDeviceBuilder().
		WithBusyThreshold(0).
		WithMaxKeepBusyDuration(0).
		WithLongQueuePolicy(device.RefuseNewRequests(1.0)).
		WithRandSeed(1)
	d := spawnRunning(t, b, memFactory(512))
	h := d.Handle()

	_, err := h.Put(device.LumpIdFromUint64(1), lump("a")).Get()
	assert.NoError(t, err, "first admission is exempt from overload on the call that first goes busy")

	_, err = h.Put(device.LumpIdFromUint64(2), lump("b")).Get()
	assert.Error(t, err)
	assert.True(t, device.IsKind(err, device.ErrKindRequestRefused))

	_, err = h.Prioritized().Put(device.LumpIdFromUint64(3), lump("c")).Get()
	assert.NoError(t, err, "a prioritized submission always bypasses RefuseNewRequests")

	_, err = d.Stop(device.Immediate()).Get()
	require.NoError(t, err)
}

// TestRefusePolicyAdmitsFourOfFiveUnderConcurrentBacklog gates the
// storage factory so five Puts all land in the inbox before the worker
// ever starts admitting, letting the queue actually backlog. With busy
// threshold 3, admission observes the queue length *before* the command
// is pushed: the first three admissions see lengths 0, 1, 2 (all under
// threshold) and are admitted. The fourth admission observes length 3,
// crossing into busy, and that crossing observation is exempt from
// refusal — so it is admitted too. Only the fifth admission, observing
// length 4 with the exemption already spent and a zero keep-busy
// duration, is refused.
func TestRefusePolicyAdmitsFourOfFiveUnderConcurrentBacklog(t *testing.T) {
	gate := make(chan struct{})
	factory := func() (device.Storage, error) {
		<-gate
		return backend.NewMemStorage(512), nil
	}
	b := device.NewDeviceBuilder().
		WithBusyThreshold(3).
		WithMaxKeepBusyDuration(0).
		WithLongQueuePolicy(device.RefuseNewRequests(1.0)).
		WithRandSeed(2)
	d := b.Spawn(factory)
	h := d.Handle()

	futs := make([]*device.Future[bool], 5)
	for i := range futs {
		futs[i] = h.Put(device.LumpIdFromUint64(uint64(i)), lump("x"))
	}
	close(gate)

	successes, refused := 0, 0
	for _, f := range futs {
		_, err := f.Get()
		if err == nil {
			successes++
		} else {
			assert.True(t, device.IsKind(err, device.ErrKindRequestRefused))
			refused++
		}
	}
	assert.Equal(t, 4, successes)
	assert.Equal(t, 1, refused)

	_, err := d.Stop(device.Immediate()).Get()
	require.NoError(t, err)
}

// TestDropPolicyDropsTwoOfFiveUnderConcurrentBacklog mirrors the refuse
// backlog test but with a Drop policy: Drop is evaluated at dispatch
// time against the pre-pop queue length, so every admission succeeds
// and the loss shows up as individual command failures instead of
// admission-time rejection.
func TestDropPolicyDropsTwoOfFiveUnderConcurrentBacklog(t *testing.T) {
	gate := make(chan struct{})
	factory := func() (device.Storage, error) {
		<-gate
		return backend.NewMemStorage(512), nil
	}
	b := device.NewDeviceBuilder().
		WithBusyThreshold(3).
		WithMaxKeepBusyDuration(0).
		WithLongQueuePolicy(device.Drop(1.0)).
		WithRandSeed(3)
	d := b.Spawn(factory)
	h := d.Handle()

	futs := make([]*device.Future[bool], 5)
	for i := range futs {
		futs[i] = h.Put(device.LumpIdFromUint64(uint64(i)), lump("x"))
	}
	close(gate)

	successes, dropped := 0, 0
	for _, f := range futs {
		_, err := f.Get()
		if err == nil {
			successes++
		} else {
			assert.True(t, device.IsKind(err, device.ErrKindRequestDropped))
			dropped++
		}
	}
	assert.Equal(t, 3, successes)
	assert.Equal(t, 2, dropped)

	_, err := d.Stop(device.Immediate()).Get()
	require.NoError(t, err)
}

// TestStopPolicyTerminatesDeviceOnFirstOverloadedDispatch covers the
// harshest policy: the first dispatch crosses the busy threshold but is
// exempt, so it succeeds; the second dispatch observes the detector
// already busy past its exemption and, with a zero keep-busy duration,
// is judged overloaded immediately, which tears the whole device down.
func TestStopPolicyTerminatesDeviceOnFirstOverloadedDispatch(t *testing.T) {
	b := device.NewDeviceBuilder().
		WithBusyThreshold(0).
		WithMaxKeepBusyDuration(0).
		WithLongQueuePolicy(device.StopPolicy())
	d := spawnRunning(t, b, memFactory(512))
	h := d.Handle()

	_, err := h.Put(device.LumpIdFromUint64(1), lump("a")).Get()
	assert.NoError(t, err)

	_, err = h.Put(device.LumpIdFromUint64(2), lump("b")).Get()
	assert.Error(t, err)
	assert.True(t, device.IsKind(err, device.ErrKindDeviceTerminated))

	monitorErr := d.Monitor().Get()
	assert.Error(t, monitorErr, "Stop policy termination resolves the monitor with an error, not a clean stop")
	assert.Equal(t, device.StatusStopped, d.Status())
}

// TestJournalSyncGivesDurabilityAPlainPutDoesNotWaitFor shows the
// distinction between a write whose future merely resolved and one that
// requested a journal flush: only the JournalSync-modified write forces
// a sync call before its future resolves, even though both writes are
// already visible to reads immediately (the in-memory engine serves
// reads from its journal buffer before a sync moves them into the
// committed arena).
func TestJournalSyncGivesDurabilityAPlainPutDoesNotWaitFor(t *testing.T) {
	var mock *backend.MockStorage
	factory := func() (device.Storage, error) {
		mock = backend.NewMockStorage(512)
		return mock, nil
	}
	d := spawnRunning(t, device.NewDeviceBuilder(), factory)
	h := d.Handle()

	_, err := h.Put(device.LumpIdFromUint64(1), lump("unsynced")).Get()
	require.NoError(t, err)
	assert.Equal(t, 0, mock.JournalSyncCalls())

	_, err = h.JournalSync().Put(device.LumpIdFromUint64(2), lump("synced")).Get()
	require.NoError(t, err)
	assert.Equal(t, 1, mock.JournalSyncCalls())

	data, err := h.Get(device.LumpIdFromUint64(1)).Get()
	require.NoError(t, err)
	assert.True(t, data.Ok, "an unsynced write is still visible to reads")

	_, err = d.Stop(device.Immediate()).Get()
	require.NoError(t, err)
	assert.True(t, mock.IsClosed())
}

func TestStopDeadlineIsHonoredEvenWhileCommandsAreQueued(t *testing.T) {
	d := spawnRunning(t, device.NewDeviceBuilder(), memFactory(512))
	h := d.Handle()

	for i := uint64(0); i < 5; i++ {
		h.Put(device.LumpIdFromUint64(i), lump("x"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := d.Stop(device.Immediate()).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, device.StatusStopped, d.Status())

	_, err = h.Get(device.LumpIdFromUint64(0)).Get()
	assert.Error(t, err)
	assert.True(t, device.IsKind(err, device.ErrKindDeviceTerminated), "a command submitted after Stop fails instead of hanging")
}
