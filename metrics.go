package device

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets are the histogram bucket upper bounds, in nanoseconds,
// covering 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics is the per-device registry the worker publishes into and
// clients read from. It is safe for concurrent use: the worker is the
// sole writer of operation counters, but AllocateLumpData and any
// monitoring code read it from arbitrary client goroutines.
type Metrics struct {
	PutOps         atomic.Uint64
	GetOps         atomic.Uint64
	HeadOps        atomic.Uint64
	DeleteOps      atomic.Uint64
	DeleteRangeOps atomic.Uint64
	ListOps        atomic.Uint64
	ListRangeOps   atomic.Uint64
	UsageRangeOps  atomic.Uint64
	JournalSyncOps atomic.Uint64

	BytesWritten atomic.Uint64
	BytesRead    atomic.Uint64

	StorageErrors atomic.Uint64
	Refused       atomic.Uint64 // RefuseNewRequests rejections
	Dropped       atomic.Uint64 // Drop policy discards

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64

	// blockSize is published once the worker's storage factory succeeds
	// (device transitions to Running) and read by AllocateLumpData.
	// blockSizeKnown distinguishes "not yet published" from a
	// legitimately zero value.
	blockSize      atomic.Int64
	blockSizeKnown atomic.Bool
}

// NewMetrics creates an empty registry with its start time set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// PublishBlockSize records the storage's block size, making it visible
// to AllocateLumpData. Called once by the worker during Starting→Running.
func (m *Metrics) PublishBlockSize(size int) {
	m.blockSize.Store(int64(size))
	m.blockSizeKnown.Store(true)
}

// BlockSize returns the published block size, or ok=false if the device
// has never reached Running.
func (m *Metrics) BlockSize() (size int, ok bool) {
	if !m.blockSizeKnown.Load() {
		return 0, false
	}
	return int(m.blockSize.Load()), true
}

// RecordDispatch records one completed command dispatch: its kind, the
// bytes moved (0 for non-data ops), its latency, and whether it failed
// against storage (refusals/drops are recorded separately via
// RecordRefused/RecordDropped, since those never reach storage).
func (m *Metrics) RecordDispatch(kind commandKind, bytes uint64, latencyNs uint64, err error) {
	switch kind {
	case cmdPut:
		m.PutOps.Add(1)
		m.BytesWritten.Add(bytes)
	case cmdGet:
		m.GetOps.Add(1)
		m.BytesRead.Add(bytes)
	case cmdHead:
		m.HeadOps.Add(1)
	case cmdDelete:
		m.DeleteOps.Add(1)
	case cmdDeleteRange:
		m.DeleteRangeOps.Add(1)
	case cmdList:
		m.ListOps.Add(1)
	case cmdListRange:
		m.ListRangeOps.Add(1)
	case cmdUsageRange:
		m.UsageRangeOps.Add(1)
	case cmdJournalSync:
		m.JournalSyncOps.Add(1)
	}
	if err != nil && IsKind(err, ErrKindOther) {
		m.StorageErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// RecordRefused counts a RefuseNewRequests rejection.
func (m *Metrics) RecordRefused() { m.Refused.Add(1) }

// RecordDropped counts a Drop-policy discard.
func (m *Metrics) RecordDropped() { m.Dropped.Add(1) }

// RecordQueueDepth samples the current queue length for the running
// average/max tracked in a snapshot.
func (m *Metrics) RecordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)
	for {
		current := m.MaxQueueDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

// Stop marks the device as stopped for uptime accounting.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics plus derived
// statistics (IOPS, bandwidth, error rate, latency percentiles).
type MetricsSnapshot struct {
	PutOps, GetOps, HeadOps                      uint64
	DeleteOps, DeleteRangeOps                     uint64
	ListOps, ListRangeOps, UsageRangeOps          uint64
	JournalSyncOps                                uint64
	BytesWritten, BytesRead                       uint64
	StorageErrors, Refused, Dropped               uint64
	AvgQueueDepth                                 float64
	MaxQueueDepth                                 uint32
	AvgLatencyNs                                  uint64
	UptimeNs                                      uint64
	LatencyP50Ns, LatencyP99Ns, LatencyP999Ns     uint64
	LatencyHistogram                              [numLatencyBuckets]uint64
	TotalOps                                      uint64
	ErrorRate                                     float64
	IOPS                                          float64
}

// Snapshot builds a MetricsSnapshot from the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		PutOps:         m.PutOps.Load(),
		GetOps:         m.GetOps.Load(),
		HeadOps:        m.HeadOps.Load(),
		DeleteOps:      m.DeleteOps.Load(),
		DeleteRangeOps: m.DeleteRangeOps.Load(),
		ListOps:        m.ListOps.Load(),
		ListRangeOps:   m.ListRangeOps.Load(),
		UsageRangeOps:  m.UsageRangeOps.Load(),
		JournalSyncOps: m.JournalSyncOps.Load(),
		BytesWritten:   m.BytesWritten.Load(),
		BytesRead:      m.BytesRead.Load(),
		StorageErrors:  m.StorageErrors.Load(),
		Refused:        m.Refused.Load(),
		Dropped:        m.Dropped.Load(),
		MaxQueueDepth:  m.MaxQueueDepth.Load(),
	}

	snap.TotalOps = snap.PutOps + snap.GetOps + snap.HeadOps + snap.DeleteOps +
		snap.DeleteRangeOps + snap.ListOps + snap.ListRangeOps + snap.UsageRangeOps +
		snap.JournalSyncOps

	if c := m.QueueDepthCount.Load(); c > 0 {
		snap.AvgQueueDepth = float64(m.QueueDepthTotal.Load()) / float64(c)
	}

	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / opCount
	}

	start := m.StartTime.Load()
	if stop := m.StopTime.Load(); stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}
	if snap.UptimeNs > 0 {
		snap.IOPS = float64(snap.TotalOps) / (float64(snap.UptimeNs) / 1e9)
	}

	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(snap.StorageErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}
	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) by linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}
	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}
