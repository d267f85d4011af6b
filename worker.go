package device

import (
	"fmt"
	"runtime"
	"time"

	"github.com/lumpstore/device/internal/logging"
	"github.com/lumpstore/device/internal/queue"
	"golang.org/x/sys/unix"
)

// Worker is the single goroutine that owns a Storage instance exclusively
// and serializes every command against it. Nothing outside this
// goroutine ever touches w.storage.
type Worker struct {
	device  *Device
	factory StorageFactory
	storage Storage

	inbox   chan *Command
	logger  *logging.Logger
	metrics *Metrics
	policy  LongQueuePolicy

	maxQueueLen int
	cpuAffinity []int

	pq       *queue.DeadlineQueue
	detector *queue.OverloadDetector
	gate     *queue.ProbabilisticGate

	sequence uint64

	// held accumulates commands with waitForRunning set that arrive
	// before the storage factory resolves; they're replayed through
	// normal admission the instant the worker reaches Running.
	held []*Command

	draining bool
}

func newWorker(d *Device, b *DeviceBuilder, factory StorageFactory) *Worker {
	return &Worker{
		device:      d,
		factory:     factory,
		inbox:       d.inbox,
		logger:      b.Logger,
		metrics:     d.metrics,
		policy:      b.LongQueuePolicy,
		maxQueueLen: b.MaxQueueLen,
		cpuAffinity: b.CPUAffinity,
		pq:          queue.NewDeadlineQueue(),
		detector:    queue.NewOverloadDetector(b.BusyThreshold, b.MaxKeepBusyDuration),
		gate:        queue.NewProbabilisticGate(b.seed()),
	}
}

// run is the worker goroutine's entry point: start storage, replay any
// held commands, then loop draining the inbox and dispatching the
// deadline-ordered queue until a Stop command (explicit or
// policy-triggered) tears it down.
func (w *Worker) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	w.pinCPU()

	defer func() {
		if r := recover(); r != nil {
			w.shutdown(WrapError("worker", panicError{r}))
		}
	}()

	storage, err := w.factory()
	if err != nil {
		w.device.setStatus(StatusStopped)
		w.metrics.Stop()
		w.device.monitor.resolve(WrapError("spawn", err))
		return
	}
	w.storage = storage
	blockSize := w.storage.Header().BlockSize
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	w.metrics.PublishBlockSize(blockSize)
	w.device.setStatus(StatusRunning)

	for _, cmd := range w.held {
		w.admit(cmd, now())
	}
	w.held = nil

	for {
		if w.draining {
			return
		}
		if w.drainInbox() {
			w.shutdown(nil)
			return
		}
		if w.draining {
			return
		}
		if w.pq.Len() == 0 {
			// Block for the next arrival; there is nothing to dispatch.
			cmd, ok := <-w.inbox
			if !ok {
				w.shutdown(nil)
				return
			}
			w.handleArrival(cmd)
			continue
		}
		w.dispatchOne()
	}
}

// drainInbox admits every command currently waiting in the channel
// without blocking, so a backlog of arrivals doesn't starve dispatch. It
// reports true if the inbox channel was closed (which never happens in
// normal operation — shutdown always goes through an explicit Stop
// command — but is handled so a closed channel still tears the worker
// down cleanly rather than leaking it).
func (w *Worker) drainInbox() (closed bool) {
	for {
		select {
		case cmd, ok := <-w.inbox:
			if !ok {
				return true
			}
			w.handleArrival(cmd)
			if w.draining {
				return false
			}
		default:
			return false
		}
	}
}

func (w *Worker) handleArrival(cmd *Command) {
	if cmd.waitForRunning && w.device.Status() != StatusRunning {
		w.held = append(w.held, cmd)
		return
	}
	w.admit(cmd, now())
}

// admit runs admission control for one arriving command: the hard queue
// cap, then (for RefuseNewRequests only) the overload gate, then
// insertion into the deadline queue. Prioritized commands bypass every
// check.
func (w *Worker) admit(cmd *Command, t time.Time) {
	if w.draining {
		cmd.fail(WrapError(string(cmd.kind), ErrDeviceTerminated))
		return
	}
	if cmd.prioritized {
		w.push(cmd, t)
		return
	}
	if w.maxQueueLen > 0 && w.pq.Len() >= w.maxQueueLen {
		cmd.fail(WrapError(string(cmd.kind), ErrDeviceBusy))
		return
	}
	if w.policy.Kind == PolicyRefuseNewRequests {
		w.detector.Observe(w.pq.Len(), t)
		if w.detector.CheckOverload(t) && w.gate.Sample(w.policy.Ratio) {
			w.metrics.RecordRefused()
			cmd.fail(WrapError(string(cmd.kind), ErrRequestRefused))
			return
		}
	}
	w.push(cmd, t)
}

func (w *Worker) push(cmd *Command, t time.Time) {
	w.sequence++
	cmd.sequence = w.sequence
	w.pq.Push(queue.Entry{
		Deadline: toQueueDeadline(cmd.deadline),
		Sequence: cmd.sequence,
		Value:    cmd,
	})
	w.metrics.RecordQueueDepth(uint32(w.pq.Len()))
}

// dispatchOne pops the next command by (deadline, sequence) and either
// runs it, drops it, or tears the device down, depending on kind and the
// configured overload policy.
func (w *Worker) dispatchOne() {
	t := now()
	entry := w.pq.Pop()
	cmd := entry.Value.(*Command)

	if cmd.kind == cmdStop {
		w.shutdown(nil)
		cmd.dispatch(w)
		w.draining = true
		return
	}

	if !cmd.prioritized {
		w.detector.Observe(w.pq.Len()+1, t)
		switch w.policy.Kind {
		case PolicyStop:
			if w.detector.CheckOverload(t) {
				cmd.fail(WrapError(string(cmd.kind), ErrDeviceTerminated))
				w.shutdown(WrapError("worker", ErrDeviceTerminated))
				w.draining = true
				return
			}
		case PolicyDrop:
			if w.detector.CheckOverload(t) && w.gate.Sample(w.policy.Ratio) {
				w.metrics.RecordDropped()
				cmd.fail(WrapError(string(cmd.kind), ErrRequestDropped))
				return
			}
		}
	}

	start := time.Now()
	cmd.dispatch(w)
	latency := uint64(time.Since(start).Nanoseconds())
	w.metrics.RecordDispatch(cmd.kind, cmd.resultBytes, latency, cmd.resultErr)
}

// shutdown drains every remaining queued and held command with
// DeviceTerminated, flushes and closes storage, and resolves the
// device's monitor. err is the monitor's resolution error: nil for a
// clean, explicit Stop.
func (w *Worker) shutdown(err error) {
	for w.pq.Len() > 0 {
		entry := w.pq.Pop()
		if cmd, ok := entry.Value.(*Command); ok && cmd.kind != cmdStop {
			cmd.fail(WrapError(string(cmd.kind), ErrDeviceTerminated))
		}
	}
	for _, cmd := range w.held {
		cmd.fail(WrapError(string(cmd.kind), ErrDeviceTerminated))
	}
	w.held = nil

	if w.storage != nil {
		_ = w.storage.JournalSync()
		_ = w.storage.Close()
	}
	w.device.setStatus(StatusStopped)
	w.metrics.Stop()
	w.device.monitor.resolve(err)
}

// pinCPU pins the worker's OS thread to the configured CPU set.
// Best-effort: a failure here is logged, not fatal, since the device
// works correctly (just without the scheduling hint) regardless.
func (w *Worker) pinCPU() {
	if len(w.cpuAffinity) == 0 {
		return
	}
	var set unix.CPUSet
	for _, cpu := range w.cpuAffinity {
		set.Set(cpu)
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		w.logger.WithField("error", err.Error()).Warn("worker: failed to set CPU affinity")
	}
}

func toQueueDeadline(d Deadline) queue.Deadline {
	return queue.Deadline{Kind: queue.DeadlineKind(d.Kind()), At: d.Time()}
}

type panicError struct{ v any }

func (p panicError) Error() string { return fmt.Sprintf("worker: panic in storage dispatch: %v", p.v) }
