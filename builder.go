package device

import (
	"time"

	"github.com/lumpstore/device/internal/constants"
	"github.com/lumpstore/device/internal/logging"
)

// DeviceBuilder accumulates device configuration before Spawn, as a
// fluent option struct rather than a functional-options slice.
type DeviceBuilder struct {
	Logger              *logging.Logger
	BusyThreshold       int
	MaxKeepBusyDuration time.Duration
	LongQueuePolicy     LongQueuePolicy
	MaxQueueLen         int // 0 disables the hard cap
	CPUAffinity         []int
	RandSeed            uint64
	randSeedSet         bool
}

// NewDeviceBuilder returns a builder populated with the documented
// defaults: overload detection disabled, RefuseNewRequests at ratio
// 1.0, no hard queue cap, no CPU pinning.
func NewDeviceBuilder() *DeviceBuilder {
	return &DeviceBuilder{
		Logger:              logging.Default(),
		BusyThreshold:       constants.DefaultBusyThreshold,
		MaxKeepBusyDuration: constants.DefaultMaxKeepBusyDuration,
		LongQueuePolicy:     DefaultLongQueuePolicy(),
	}
}

// WithLogger overrides the builder's logger.
func (b *DeviceBuilder) WithLogger(l *logging.Logger) *DeviceBuilder {
	b.Logger = l
	return b
}

// WithBusyThreshold sets the queue length at or above which the device
// is considered busy.
func (b *DeviceBuilder) WithBusyThreshold(n int) *DeviceBuilder {
	b.BusyThreshold = n
	return b
}

// WithMaxKeepBusyDuration sets how long the queue must remain
// continuously busy before an overload reaction fires.
func (b *DeviceBuilder) WithMaxKeepBusyDuration(d time.Duration) *DeviceBuilder {
	b.MaxKeepBusyDuration = d
	return b
}

// WithLongQueuePolicy sets the overload reaction policy.
func (b *DeviceBuilder) WithLongQueuePolicy(p LongQueuePolicy) *DeviceBuilder {
	b.LongQueuePolicy = p
	return b
}

// WithMaxQueueLen sets a hard admission cap: beyond it, every
// non-prioritized submission fails with DeviceBusy regardless of policy.
// Zero (the default) disables the cap.
func (b *DeviceBuilder) WithMaxQueueLen(n int) *DeviceBuilder {
	b.MaxQueueLen = n
	return b
}

// WithCPUAffinity pins the worker's OS thread to the given CPU set.
func (b *DeviceBuilder) WithCPUAffinity(cpus []int) *DeviceBuilder {
	b.CPUAffinity = cpus
	return b
}

// WithRandSeed fixes the ProbabilisticGate's seed, for deterministic
// tests of the Refuse/Drop policies.
func (b *DeviceBuilder) WithRandSeed(seed uint64) *DeviceBuilder {
	b.RandSeed = seed
	b.randSeedSet = true
	return b
}

func (b *DeviceBuilder) seed() uint64 {
	if b.randSeedSet {
		return b.RandSeed
	}
	return uint64(time.Now().UnixNano())
}

// Spawn builds and starts a Device backed by the storage factory.
func (b *DeviceBuilder) Spawn(factory StorageFactory) *Device {
	return spawn(b, factory)
}
