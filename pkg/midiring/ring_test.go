package midiring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPushPopOrderPreserved(t *testing.T) {
	r := New(4)
	for i := 0; i < 3; i++ {
		require.True(t, r.Push(Event{Data1: byte(i)}))
	}
	for i := 0; i < 3; i++ {
		ev, ok := r.Pop()
		require.True(t, ok)
		require.EqualValues(t, i, ev.Data1)
	}
	_, ok := r.Pop()
	require.False(t, ok)
}

func TestPushDropsWhenFull(t *testing.T) {
	r := New(2) // capacity rounds to 2, holds 1 usable slot
	require.True(t, r.Push(Event{Data1: 1}))
	ok := r.Push(Event{Data1: 2})
	require.False(t, ok)

	ev, popped := r.Pop()
	require.True(t, popped)
	require.EqualValues(t, 1, ev.Data1)
}

func TestCapacityRoundsToPowerOfTwo(t *testing.T) {
	r := New(3)
	require.Len(t, r.buf, 4)
}

func TestLenTracksOutstandingEvents(t *testing.T) {
	r := New(8)
	require.Equal(t, 0, r.Len())
	r.Push(Event{})
	r.Push(Event{})
	require.Equal(t, 2, r.Len())
	r.Pop()
	require.Equal(t, 1, r.Len())
}

// TestRingPreservesFIFOOrderUnderRandomPushPop checks, for arbitrary
// interleavings of Push/Pop against a capacity large enough to never
// overflow, that popped events come out in the order they were pushed.
func TestRingPreservesFIFOOrderUnderRandomPushPop(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := 64
		r := New(capacity)
		var pushed, popped []byte
		ops := rapid.SliceOfN(rapid.Bool(), 1, 200).Draw(rt, "ops")

		for _, doPush := range ops {
			if doPush && len(pushed)-len(popped) < capacity-1 {
				v := byte(len(pushed))
				require.True(rt, r.Push(Event{Data1: v}))
				pushed = append(pushed, v)
			} else if ev, ok := r.Pop(); ok {
				popped = append(popped, ev.Data1)
			}
		}
		for {
			ev, ok := r.Pop()
			if !ok {
				break
			}
			popped = append(popped, ev.Data1)
		}

		require.Equal(rt, pushed, popped)
	})
}

func TestPushAttachesTimestampVerbatim(t *testing.T) {
	r := New(4)
	now := time.Now()
	r.Push(Event{At: now, Data1: 9})
	ev, ok := r.Pop()
	require.True(t, ok)
	require.True(t, ev.At.Equal(now))
}
