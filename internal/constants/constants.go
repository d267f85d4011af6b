// Package constants centralizes the device core's tunable defaults.
package constants

import "time"

const (
	// DefaultBlockSize is the storage block size assumed when a Storage
	// implementation's Header doesn't specify one, and the size used by
	// MemStorage unless overridden.
	DefaultBlockSize = 512

	// MaxLumpSize bounds AllocateLumpData; larger requests fail with
	// InvalidInput rather than allocating an unbounded buffer.
	MaxLumpSize = 64 << 20 // 64MiB

	// DefaultBusyThreshold disables the overload detector by default:
	// a queue length can never be negative, so nothing ever reaches it.
	DefaultBusyThreshold = -1

	// DefaultRatio equals the ratio of the builder's default policy,
	// RefuseNewRequests(1.0). Ratio is a fixed policy parameter, never
	// dynamically computed from live queue state.
	DefaultRatio = 1.0
)

// DefaultMaxKeepBusyDuration is how long the queue must stay continuously
// busy before an overload reaction fires, absent an explicit override.
const DefaultMaxKeepBusyDuration = 0 * time.Second
