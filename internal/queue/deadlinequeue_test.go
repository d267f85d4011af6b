package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadlineQueueOrdersByDeadlineThenSequence(t *testing.T) {
	q := NewDeadlineQueue()
	base := time.Now()

	q.Push(Entry{Deadline: Deadline{Kind: DeadlineInfinity}, Sequence: 1, Value: "infinity-first"})
	q.Push(Entry{Deadline: Deadline{Kind: DeadlineWithin, At: base.Add(time.Second)}, Sequence: 2, Value: "within-later"})
	q.Push(Entry{Deadline: Deadline{Kind: DeadlineImmediate}, Sequence: 3, Value: "immediate"})
	q.Push(Entry{Deadline: Deadline{Kind: DeadlineWithin, At: base}, Sequence: 4, Value: "within-earlier"})

	require.Equal(t, 4, q.Len())
	assert.Equal(t, "immediate", q.Pop().Value)
	assert.Equal(t, "within-earlier", q.Pop().Value)
	assert.Equal(t, "within-later", q.Pop().Value)
	assert.Equal(t, "infinity-first", q.Pop().Value)
	assert.Equal(t, 0, q.Len())
}

func TestDeadlineQueueTiesBreakBySequence(t *testing.T) {
	q := NewDeadlineQueue()
	q.Push(Entry{Deadline: Deadline{Kind: DeadlineInfinity}, Sequence: 5, Value: "fifth"})
	q.Push(Entry{Deadline: Deadline{Kind: DeadlineInfinity}, Sequence: 2, Value: "second"})
	q.Push(Entry{Deadline: Deadline{Kind: DeadlineInfinity}, Sequence: 3, Value: "third"})

	assert.Equal(t, "second", q.Pop().Value)
	assert.Equal(t, "third", q.Pop().Value)
	assert.Equal(t, "fifth", q.Pop().Value)
}

func TestDeadlineCompareOrdersKindsBeforeWithin(t *testing.T) {
	imm := Deadline{Kind: DeadlineImmediate}
	inf := Deadline{Kind: DeadlineInfinity}
	within := Deadline{Kind: DeadlineWithin, At: time.Now()}

	assert.Negative(t, imm.Compare(within))
	assert.Negative(t, within.Compare(inf))
	assert.Positive(t, inf.Compare(imm))
	assert.Zero(t, imm.Compare(Deadline{Kind: DeadlineImmediate}))
}
