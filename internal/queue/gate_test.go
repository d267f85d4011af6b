package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbabilisticGateClampsRatioEndpoints(t *testing.T) {
	g := NewProbabilisticGate(42)
	for i := 0; i < 50; i++ {
		assert.False(t, g.Sample(0))
		assert.False(t, g.Sample(-1))
		assert.True(t, g.Sample(1))
		assert.True(t, g.Sample(2))
	}
}

func TestProbabilisticGateIsDeterministicPerSeed(t *testing.T) {
	a := NewProbabilisticGate(7)
	b := NewProbabilisticGate(7)

	var seqA, seqB []bool
	for i := 0; i < 20; i++ {
		seqA = append(seqA, a.Sample(0.5))
		seqB = append(seqB, b.Sample(0.5))
	}
	assert.Equal(t, seqA, seqB, "same seed must reproduce the same draw sequence")
}

func TestProbabilisticGateRoughlyMatchesRatio(t *testing.T) {
	g := NewProbabilisticGate(1234)
	const n = 20000
	hits := 0
	for i := 0; i < n; i++ {
		if g.Sample(0.3) {
			hits++
		}
	}
	rate := float64(hits) / float64(n)
	assert.InDelta(t, 0.3, rate, 0.02)
}
