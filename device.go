package device

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/lumpstore/device/internal/logging"
)

// DeviceStatus is the lifecycle state of a spawned Device, advancing
// monotonically Starting -> Running -> Stopped. It never moves backward.
type DeviceStatus int32

const (
	StatusStarting DeviceStatus = iota
	StatusRunning
	StatusStopped
)

func (s DeviceStatus) String() string {
	switch s {
	case StatusStarting:
		return "Starting"
	case StatusRunning:
		return "Running"
	case StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Device is a spawned, single-writer lump storage core: a worker
// goroutine owning one Storage instance, fed by any number of cloned
// DeviceHandles. Construct one with a DeviceBuilder's Spawn method.
type Device struct {
	status  atomic.Int32
	inbox   chan *Command
	metrics *Metrics
	monitor *DeviceMonitor
	logger  *logging.Logger
}

// spawn starts the worker goroutine and returns immediately; the caller
// observes startup completion (or failure) through the returned handle's
// WaitForRunning, or through the Device's monitor for terminal errors.
func spawn(b *DeviceBuilder, factory StorageFactory) *Device {
	d := &Device{
		inbox:   make(chan *Command, 64),
		metrics: NewMetrics(),
		monitor: newDeviceMonitor(),
		logger:  b.Logger,
	}
	d.status.Store(int32(StatusStarting))

	w := newWorker(d, b, factory)
	go w.run()

	runtime.SetFinalizer(d, finalizeDevice)
	return d
}

// finalizeDevice is a GC-driven safety net: if a Device is never
// explicitly stopped, issue an immediate-deadline stop so the worker
// goroutine and its storage don't leak forever. This is NOT a
// durability guarantee — the Go garbage collector may run the
// finalizer arbitrarily late, or never before process exit. Callers
// that care about durability must call Stop and await its Future (or
// the monitor) themselves.
func finalizeDevice(d *Device) {
	if d.Status() != StatusStopped {
		d.stopInternal(Immediate())
	}
}

// Status returns the device's current lifecycle state.
func (d *Device) Status() DeviceStatus {
	return DeviceStatus(d.status.Load())
}

// Monitor returns the device's completion future, resolved when the
// worker goroutine exits.
func (d *Device) Monitor() *DeviceMonitor {
	return d.monitor
}

// Metrics returns the device's metrics registry.
func (d *Device) Metrics() *Metrics {
	return d.metrics
}

// Handle returns a fresh DeviceHandle bound to this device. Handles are
// cheap and freely cloneable: each submits Commands over the same inbox
// channel.
func (d *Device) Handle() *DeviceHandle {
	return &DeviceHandle{device: d}
}

// Stop submits a Stop command with the given deadline and returns its
// future; the caller does not block on Stop itself, but awaiting the
// returned future (or the Device's monitor) is how it observes that
// storage has actually been closed.
func (d *Device) Stop(deadline Deadline) *Future[struct{}] {
	return d.stopInternal(deadline)
}

func (d *Device) stopInternal(deadline Deadline) *Future[struct{}] {
	cmd, fut := newCommand(cmdStop, deadline, true, false, func(s Storage) (struct{}, error) {
		return struct{}{}, nil
	}, nil)
	cmd.waitForRunning = true
	d.inbox <- cmd
	return fut
}

func (d *Device) setStatus(s DeviceStatus) {
	d.status.Store(int32(s))
}

// now is a seam the worker uses for its time source; kept as a package
// function rather than a field so tests needn't thread a clock through
// every command.
func now() time.Time { return time.Now() }
