package dispatch

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/justyntemme/dssihost/internal/logging"
	"github.com/justyntemme/dssihost/pkg/instance"
	"github.com/justyntemme/dssihost/pkg/midiring"
	"github.com/justyntemme/dssihost/pkg/plugin"
	"github.com/justyntemme/dssihost/pkg/port"
)

func newFixture(t *testing.T) (*Dispatcher, *instance.Instance, *[]plugin.RawEvent) {
	var lastEvents []plugin.RawEvent
	c := &plugin.Capability{
		RunSynth: func(h plugin.Handle, frames int, events []plugin.RawEvent) {
			lastEvents = append([]plugin.RawEvent(nil), events...)
		},
	}
	desc := &plugin.Descriptor{
		Name: "synth",
		Ports: []plugin.PortDescriptor{
			{Index: 0, Kind: plugin.ControlInput, Hint: plugin.PortHint{BoundedBelow: true, BoundedAbove: true, Lower: 0, Upper: 127}},
			{Index: 1, Kind: plugin.AudioOutput},
		},
		Cap: c,
	}

	inst := instance.New(0, "synth-1", 0, desc)
	inst.Enter(instance.Instantiated)
	inst.Enter(instance.Active)
	inst.PortToControlIn = []int32{0, instance.NoMapping}
	inst.ControllerMap[74] = 0
	inst.FirstAudioOut = 0
	inst.AudioOutCount = 1

	buffers := &port.Buffers{
		ControlIn:           []*port.AtomicFloat32{{}},
		PortUpdated:         []*atomic.Bool{{}},
		ControlInInstance:   []*instance.Instance{inst},
		ControlInPortNumber: []int{0},
		AudioOut:            [][]float32{make([]float32, 64)},
	}

	d := New([]*instance.Instance{inst}, map[uint8]*instance.Instance{0: inst}, buffers, midiring.New(16), 48000, logging.New(false))
	return d, inst, &lastEvents
}

func TestProcessMapsControllerValueIntoControlIn(t *testing.T) {
	d, _, _ := newFixture(t)

	d.Ring.PushLockFree(midiring.Event{
		Channel: 0, Status: statusCC, Data1: 74, Data2: 127, At: time.Now().Add(-time.Millisecond),
	})

	d.Process(64)

	require.InDelta(t, 127, d.Buffers.ControlIn[0].Load(), 0.1)
	require.True(t, d.Buffers.PortUpdated[0].Load())
}

func TestProcessRoutesBankSelectToPendingFields(t *testing.T) {
	d, inst, _ := newFixture(t)

	past := time.Now().Add(-time.Millisecond)
	d.Ring.PushLockFree(midiring.Event{Channel: 0, Status: statusCC, Data1: ccBankMSB, Data2: 3, At: past})
	d.Ring.PushLockFree(midiring.Event{Channel: 0, Status: statusCC, Data1: ccBankLSB, Data2: 9, At: past})

	d.Process(64)

	require.EqualValues(t, 3, inst.PendingBankMSB)
	require.EqualValues(t, 9, inst.PendingBankLSB)
}

func TestProcessForwardsUnmappedEventsToSubBuffer(t *testing.T) {
	d, _, lastEvents := newFixture(t)

	past := time.Now().Add(-time.Millisecond)
	d.Ring.PushLockFree(midiring.Event{Channel: 0, Status: 0x90, Data1: 60, Data2: 100, At: past})

	d.Process(64)

	require.Len(t, *lastEvents, 1)
	require.Equal(t, byte(0x90), (*lastEvents)[0].Type)
	require.Equal(t, byte(60), (*lastEvents)[0].Data1)
}

func TestProcessDiscardsEventsForUnknownChannel(t *testing.T) {
	d, _, lastEvents := newFixture(t)

	past := time.Now().Add(-time.Millisecond)
	d.Ring.PushLockFree(midiring.Event{Channel: 5, Status: 0x90, Data1: 60, Data2: 100, At: past})

	d.Process(64)

	require.Empty(t, *lastEvents)
}

func TestProcessLeavesFutureEventsInRing(t *testing.T) {
	d, _, _ := newFixture(t)

	future := time.Now().Add(time.Hour)
	d.Ring.PushLockFree(midiring.Event{Channel: 0, Status: 0x90, Data1: 60, Data2: 100, At: future})

	d.Process(64)

	require.Equal(t, 1, d.Ring.Len())
}

func TestProcessZeroesOutputForInactiveInstance(t *testing.T) {
	d, inst, _ := newFixture(t)
	inst.SetInactive()
	for i := range d.Buffers.AudioOut[0] {
		d.Buffers.AudioOut[0][i] = 1
	}

	d.Process(64)

	for _, v := range d.Buffers.AudioOut[0] {
		require.Zero(t, v)
	}
}

func TestInvokeBatchesContiguousSameDescriptorInstancesWithoutAllocating(t *testing.T) {
	var gotHandles []plugin.Handle
	c := &plugin.Capability{
		RunMultipleSynths: func(handles []plugin.Handle, frames int, events [][]plugin.RawEvent) {
			gotHandles = append([]plugin.Handle(nil), handles...)
		},
	}
	desc := &plugin.Descriptor{Name: "poly", Cap: c}

	a := instance.New(0, "poly-0", 0, desc)
	a.Handle = 1
	b := instance.New(1, "poly-1", 1, desc)
	b.Handle = 2
	a.Enter(instance.Instantiated)
	a.Enter(instance.Active)
	b.Enter(instance.Instantiated)
	b.Enter(instance.Active)

	d := New([]*instance.Instance{a, b}, map[uint8]*instance.Instance{0: a, 1: b}, &port.Buffers{}, midiring.New(16), 48000, logging.New(false))

	scratch := d.batches[desc]
	require.NotNil(t, scratch)
	require.Len(t, scratch.handles, 2)

	d.invoke(64)
	require.Equal(t, []plugin.Handle{1, 2}, gotHandles)

	// invoking again must reuse the same backing arrays, not allocate new ones.
	handlesBefore := &scratch.handles[0]
	d.invoke(64)
	require.Same(t, handlesBefore, &scratch.handles[0])
}

func TestFrameOffsetClampsToBlockBounds(t *testing.T) {
	now := time.Now()
	require.EqualValues(t, 63, frameOffset(now, now, 48000, 64))
	require.EqualValues(t, 0, frameOffset(now, now.Add(-time.Second), 48000, 64))
}
