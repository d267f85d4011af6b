package device

// PolicyKind names one of the three overload reactions a device can be
// configured with.
type PolicyKind int

const (
	// PolicyRefuseNewRequests rejects admissions probabilistically
	// while the queue is overloaded. Evaluated at enqueue time.
	PolicyRefuseNewRequests PolicyKind = iota
	// PolicyStop terminates the device the moment an overloaded queue
	// is observed at dispatch time.
	PolicyStop
	// PolicyDrop discards popped commands probabilistically while the
	// queue is overloaded. Evaluated at dispatch time.
	PolicyDrop
)

// LongQueuePolicy configures how a device reacts to sustained queue
// overload. Its zero value is a RefuseNewRequests policy with Ratio 0,
// which never actually refuses anything; use DefaultLongQueuePolicy or
// one of RefuseNewRequests/StopPolicy/Drop to get a configured policy.
type LongQueuePolicy struct {
	Kind  PolicyKind
	Ratio float64
}

// RefuseNewRequests rejects admissions with probability ratio while the
// queue is overloaded.
func RefuseNewRequests(ratio float64) LongQueuePolicy {
	return LongQueuePolicy{Kind: PolicyRefuseNewRequests, Ratio: ratio}
}

// StopPolicy terminates the device as soon as the queue is observed
// overloaded at dispatch time.
func StopPolicy() LongQueuePolicy {
	return LongQueuePolicy{Kind: PolicyStop}
}

// Drop discards popped commands with probability ratio while the queue
// is overloaded.
func Drop(ratio float64) LongQueuePolicy {
	return LongQueuePolicy{Kind: PolicyDrop, Ratio: ratio}
}

// DefaultLongQueuePolicy is RefuseNewRequests{ratio: 1.0}, the
// documented builder default.
func DefaultLongQueuePolicy() LongQueuePolicy {
	return RefuseNewRequests(1.0)
}
