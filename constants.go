package device

import "github.com/lumpstore/device/internal/constants"

// Re-exported defaults, part of the public configuration surface.
const (
	DefaultBlockSize           = constants.DefaultBlockSize
	MaxLumpSize                = constants.MaxLumpSize
	DefaultBusyThreshold       = constants.DefaultBusyThreshold
	DefaultRatio               = constants.DefaultRatio
	DefaultMaxKeepBusyDuration = constants.DefaultMaxKeepBusyDuration
)
