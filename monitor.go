package device

import "context"

// DeviceMonitor is a one-shot completion signal for a spawned Device,
// resolved by the worker when it exits — normally (storage closed after
// a Stop command drained) or abnormally (the storage factory failed, or
// the worker recovered a panic from a Storage method).
type DeviceMonitor struct {
	fut *Future[struct{}]
}

func newDeviceMonitor() *DeviceMonitor {
	return &DeviceMonitor{fut: newFuture[struct{}]()}
}

func (m *DeviceMonitor) resolve(err error) {
	m.fut.resolve(struct{}{}, err)
}

// Wait blocks until the worker exits or ctx is done, returning the
// worker's exit error (nil on a clean Stop-triggered shutdown).
func (m *DeviceMonitor) Wait(ctx context.Context) error {
	_, err := m.fut.Wait(ctx)
	return err
}

// Get blocks uninterruptibly until the worker exits.
func (m *DeviceMonitor) Get() error {
	_, err := m.fut.Get()
	return err
}

// Poll reports whether the worker has exited yet and, if so, with what
// error.
func (m *DeviceMonitor) Poll() (done bool, err error) {
	_, err, ok := m.fut.Poll()
	return ok, err
}
