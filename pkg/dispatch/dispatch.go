// Package dispatch implements the per-block audio callback (spec.md
// §4.3–§4.6): ring draining, per-event demultiplex and controller
// mapping, pending program commit, and plugin block invocation.
package dispatch

import (
	"time"

	"github.com/justyntemme/dssihost/internal/logging"
	"github.com/justyntemme/dssihost/internal/rtcheck"
	"github.com/justyntemme/dssihost/pkg/instance"
	"github.com/justyntemme/dssihost/pkg/midiring"
	"github.com/justyntemme/dssihost/pkg/plugin"
	"github.com/justyntemme/dssihost/pkg/port"
)

const (
	ccBankMSB  = 0
	ccBankLSB  = 32
	statusCC   = 0xb0
	statusProg = 0xc0
)

// Dispatcher drives one audio block: it owns the shared ring, the port
// buffers, the ordered instance array, and the channel routing table.
type Dispatcher struct {
	Instances  []*instance.Instance
	ChannelMap map[uint8]*instance.Instance
	Buffers    *port.Buffers
	Ring       *midiring.Ring
	SampleRate float64
	Log        *logging.Logger

	// OutputPorts, if set, receives a copy of each global audio-output
	// buffer after every block's plugin calls, in AudioOut order.
	OutputPorts [][]float32

	// batches holds, per descriptor, the handles/events scratch slices
	// invoke reuses for batched run_multiple_synths calls. Sized to the
	// number of instances sharing that descriptor, since a contiguous
	// run can never exceed it — never grown or reallocated on the block
	// path.
	batches map[*plugin.Descriptor]*batchScratch
}

type batchScratch struct {
	handles []plugin.Handle
	events  [][]plugin.RawEvent
}

// New builds a Dispatcher and pre-allocates its per-descriptor batch
// scratch buffers up front, so invoke never allocates, not even on the
// first block.
func New(instances []*instance.Instance, channelMap map[uint8]*instance.Instance, buffers *port.Buffers, ring *midiring.Ring, sampleRate float64, log *logging.Logger) *Dispatcher {
	d := &Dispatcher{
		Instances:  instances,
		ChannelMap: channelMap,
		Buffers:    buffers,
		Ring:       ring,
		SampleRate: sampleRate,
		Log:        log,
		batches:    make(map[*plugin.Descriptor]*batchScratch),
	}

	counts := make(map[*plugin.Descriptor]int)
	for _, inst := range instances {
		counts[inst.Descriptor]++
	}
	for desc, n := range counts {
		d.batches[desc] = &batchScratch{
			handles: make([]plugin.Handle, n),
			events:  make([][]plugin.RawEvent, n),
		}
	}
	return d
}

// Process runs one block: drains the MIDI ring, demultiplexes events to
// instances, commits pending program changes, invokes each active
// instance's plugin, and copies audio-output buffers out. Never
// allocates on a hot path that has already warmed its per-instance event
// sub-buffers, per spec.md §5.
func (d *Dispatcher) Process(frames int) {
	rtcheck.AssertAudioThread("dispatch.Process")
	start := time.Now()

	for i := range d.Instances {
		d.Instances[i].Events = d.Instances[i].Events[:0]
	}

	d.drain(start, frames)
	d.commitPrograms()
	d.invoke(frames)
	d.copyOutputs()
}

func (d *Dispatcher) drain(start time.Time, frames int) {
	for {
		ev, ok := d.Ring.Peek()
		if !ok {
			return
		}
		if ev.At.After(start) {
			return // belongs to the next block
		}

		inst, ok := d.ChannelMap[ev.Channel]
		if ok && !inst.Inactive() && len(inst.Events) >= instance.MaxEventsPerBlock {
			return // sub-buffer full: leave the event for the next block
		}
		d.Ring.Pop()
		if !ok || inst.Inactive() {
			continue
		}

		frameOffset := frameOffset(start, ev.At, d.SampleRate, frames)
		d.demux(inst, ev, frameOffset)
	}
}

// frameOffset computes clamp(block_size - ((now-event_time)*sample_rate) - 1, 0, block_size-1).
func frameOffset(now, eventTime time.Time, sampleRate float64, blockSize int) int32 {
	elapsed := now.Sub(eventTime).Seconds()
	raw := float64(blockSize) - elapsed*sampleRate - 1
	if raw < 0 {
		raw = 0
	}
	if raw > float64(blockSize-1) {
		raw = float64(blockSize - 1)
	}
	return int32(raw)
}

func (d *Dispatcher) demux(inst *instance.Instance, ev midiring.Event, tick int32) {
	switch ev.Status {
	case statusCC:
		switch ev.Data1 {
		case ccBankMSB:
			inst.PendingBankMSB = int32(ev.Data2)
		case ccBankLSB:
			inst.PendingBankLSB = int32(ev.Data2)
		default:
			idx := inst.ControllerMap[ev.Data1]
			if idx >= 0 {
				hint := d.hintFor(int(idx))
				d.Buffers.ControlIn[idx].Store(port.MapControllerValue(ev.Data2, hint))
				d.Buffers.PortUpdated[idx].Store(true)
				return
			}
			inst.Events = append(inst.Events, plugin.RawEvent{
				Type: ev.Status, Channel: ev.Channel, Data1: ev.Data1, Data2: ev.Data2, Tick: uint32(tick),
			})
		}

	case statusProg:
		inst.PendingProgram = int32(ev.Data1)
		inst.UINeedsProgramUpdate = true

	default:
		inst.Events = append(inst.Events, plugin.RawEvent{
			Type: ev.Status, Channel: ev.Channel, Data1: ev.Data1, Data2: ev.Data2, Tick: uint32(tick),
		})
	}
}

func (d *Dispatcher) hintFor(globalControlIn int) plugin.PortHint {
	inst := d.Buffers.ControlInInstance[globalControlIn]
	portNum := d.Buffers.ControlInPortNumber[globalControlIn]
	return inst.Descriptor.Ports[portNum].Hint
}

func (d *Dispatcher) commitPrograms() {
	for _, inst := range d.Instances {
		if inst.Inactive() || !inst.HasPendingProgram() {
			continue
		}
		inst.CommitPendingProgram(inst.Descriptor.Cap)
	}
}

// invoke walks the instance array, batching contiguous runs that share a
// descriptor supporting run_multiple_synths, per spec.md §4.6.
func (d *Dispatcher) invoke(frames int) {
	i := 0
	for i < len(d.Instances) {
		inst := d.Instances[i]

		if inst.Inactive() {
			d.zeroOutputs(inst)
			i++
			continue
		}

		j := i + 1
		for j < len(d.Instances) &&
			d.Instances[j].Descriptor == inst.Descriptor &&
			!d.Instances[j].Inactive() &&
			inst.Descriptor.Cap.RunMultipleSynths != nil {
			j++
		}
		run := d.Instances[i:j]

		if len(run) > 1 {
			scratch := d.batches[inst.Descriptor]
			handles := scratch.handles[:len(run)]
			events := scratch.events[:len(run)]
			for k, ri := range run {
				handles[k] = ri.Handle
				events[k] = ri.Events
			}
			inst.Descriptor.Cap.RunMultipleSynths(handles, frames, events)
		} else if inst.Descriptor.Cap.RunSynth != nil {
			inst.Descriptor.Cap.RunSynth(inst.Handle, frames, inst.Events)
		}

		i = j
	}
}

func (d *Dispatcher) zeroOutputs(inst *instance.Instance) {
	for k := 0; k < inst.AudioOutCount; k++ {
		buf := d.Buffers.AudioOut[inst.FirstAudioOut+k]
		for n := range buf {
			buf[n] = 0
		}
	}
}

func (d *Dispatcher) copyOutputs() {
	if d.OutputPorts == nil {
		return
	}
	for i, buf := range d.Buffers.AudioOut {
		if i >= len(d.OutputPorts) {
			break
		}
		copy(d.OutputPorts[i], buf)
	}
}
