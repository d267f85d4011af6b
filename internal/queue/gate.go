package queue

import "math/rand/v2"

// ProbabilisticGate is a Bernoulli source seeded per device, used by the
// RefuseNewRequests and Drop overload policies. It is not safe for
// concurrent use; both admission and dispatch run on the owning worker,
// so a single gate per device is always called from one goroutine.
type ProbabilisticGate struct {
	rng *rand.Rand
}

// NewProbabilisticGate seeds a gate deterministically from seed. Devices
// that don't care about reproducibility derive seed from the current
// time at construction (see device.DeviceBuilder.RandSeed).
func NewProbabilisticGate(seed uint64) *ProbabilisticGate {
	return &ProbabilisticGate{rng: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

// Sample draws once and reports true with probability ratio (clamped to
// [0,1]). A single draw per call keeps the gate cheap.
func (g *ProbabilisticGate) Sample(ratio float64) bool {
	switch {
	case ratio <= 0:
		return false
	case ratio >= 1:
		return true
	default:
		return g.rng.Float64() < ratio
	}
}
