// Package port walks resolved plugin descriptors in ABI port order and
// allocates the engine's global, block-sized buffer arrays, per
// spec.md §4.2/§4.7.
package port

import (
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"github.com/justyntemme/dssihost/internal/logging"
	"github.com/justyntemme/dssihost/pkg/instance"
	"github.com/justyntemme/dssihost/pkg/plugin"
)

// AtomicFloat32 is a lock-free float32 slot. Go's atomic package has no
// float32 primitive, so the value's bits live in a plain uint32 moved
// via atomic.LoadUint32/StoreUint32; every Go-side reader and writer
// goes through Load/Store, so the OSC control handler, the dispatcher's
// controller-mapped writes, and the liaison's echo reads never race
// with each other under Go's memory model.
type AtomicFloat32 struct {
	bits uint32
}

// Load reads the current value.
func (f *AtomicFloat32) Load() float32 {
	return math.Float32frombits(atomic.LoadUint32(&f.bits))
}

// Store sets the current value.
func (f *AtomicFloat32) Store(v float32) {
	atomic.StoreUint32(&f.bits, math.Float32bits(v))
}

// ptr exposes the slot's address for connect_port. The plugin's own
// reads of this word during run() are plain, unsynchronized C reads —
// inherent to the LADSPA ABI and the same benign tearing real hosts
// accept there — but every Go-side writer goes through Store, so Go's
// own memory model is never violated between goroutines.
func (f *AtomicFloat32) ptr() unsafe.Pointer {
	return unsafe.Pointer(&f.bits)
}

// Buffers is the engine's dense, block-sized port storage: one float
// slice per audio port (indexed in wiring order, not per instance) and
// one control slot per control port, plus the cross-index maps needed
// to translate a MIDI/OSC event into a control-input write and a wired
// control-input write back into a (instance, port) pair for the liaison
// loop.
//
// ControlIn/ControlOut/PortUpdated hold individually heap-allocated
// slots (*AtomicFloat32, *float32, *atomic.Bool) rather than inline
// slice elements: connect_port hands the plugin a raw address at wiring
// time, and that address must never move even if these slices later
// grow and reallocate their own backing arrays.
type Buffers struct {
	BlockSize int

	AudioIn  [][]float32
	AudioOut [][]float32

	// ControlIn holds one current-value slot per control-input port,
	// globally indexed. Written by the audio callback (controller-mapped
	// CC demux) and by the OSC control handler; read by the plugin and by
	// the liaison goroutine (echoes).
	ControlIn  []*AtomicFloat32
	ControlOut []*float32

	// PortUpdated is set by a controller-mapped write, an OSC control
	// write, or a front-end `update`, and cleared by the liaison after it
	// forwards the value to the front-end.
	PortUpdated []*atomic.Bool

	// ControlInInstance and ControlInPortNumber let the liaison recover
	// which (instance, plugin-port) a global control-input index
	// corresponds to, for echoing values back to the front-end.
	ControlInInstance   []*instance.Instance
	ControlInPortNumber []int
}

// Wire allocates Buffers for every instance in order, connects every
// plugin port to its buffer/slot via connect_port, and populates each
// instance's PortToControlIn map and controller map entries derived from
// get_midi_controller_for_port, per spec.md §4.2.
func Wire(instances []*instance.Instance, blockSize int, sampleRate float64, log *logging.Logger) (*Buffers, error) {
	b := &Buffers{BlockSize: blockSize}

	for _, inst := range instances {
		desc := inst.Descriptor
		inst.PortToControlIn = make([]int32, len(desc.Ports))
		for i := range inst.PortToControlIn {
			inst.PortToControlIn[i] = instance.NoMapping
		}
		inst.FirstControlIn = len(b.ControlIn)
		inst.FirstAudioIn = len(b.AudioIn)
		inst.FirstAudioOut = len(b.AudioOut)

		for _, pd := range desc.Ports {
			switch pd.Kind {
			case plugin.AudioInput:
				buf := make([]float32, blockSize)
				b.AudioIn = append(b.AudioIn, buf)
				connect(desc, inst.Handle, pd.Index, buf)
				inst.AudioInCount++

			case plugin.AudioOutput:
				buf := make([]float32, blockSize)
				b.AudioOut = append(b.AudioOut, buf)
				connect(desc, inst.Handle, pd.Index, buf)
				inst.AudioOutCount++

			case plugin.ControlInput:
				idx := len(b.ControlIn)
				slot := &AtomicFloat32{}
				slot.Store(DefaultValue(pd.Hint, sampleRate))
				b.ControlIn = append(b.ControlIn, slot)
				b.PortUpdated = append(b.PortUpdated, &atomic.Bool{})
				b.ControlInInstance = append(b.ControlInInstance, inst)
				b.ControlInPortNumber = append(b.ControlInPortNumber, pd.Index)

				inst.PortToControlIn[pd.Index] = int32(idx)
				connectScalar(desc, inst.Handle, pd.Index, slot.ptr())

				switch {
				case pd.PreferredCC == 0 || pd.PreferredCC == 32:
					if log != nil {
						log.Warn("port: bank-select CC preference ignored",
							"instance", inst.Name, "port", pd.Index, "cc", pd.PreferredCC)
					}
				case pd.PreferredCC >= 0:
					inst.ControllerMap[pd.PreferredCC] = int32(idx)
				}

			case plugin.ControlOutput:
				slot := new(float32)
				b.ControlOut = append(b.ControlOut, slot)
				connectScalar(desc, inst.Handle, pd.Index, unsafe.Pointer(slot))

			default:
				return nil, fmt.Errorf("port %s[%d]: unknown port kind", desc.Name, pd.Index)
			}
		}
	}

	return b, nil
}

func connect(desc *plugin.Descriptor, h plugin.Handle, port int, buf []float32) {
	desc.Cap.ConnectPort(h, port, unsafe.Pointer(&buf[0]))
}

func connectScalar(desc *plugin.Descriptor, h plugin.Handle, port int, ptr unsafe.Pointer) {
	desc.Cap.ConnectPort(h, port, ptr)
}

// DefaultValue computes a control port's initial value from its hint,
// per spec.md §4.7, verbatim.
func DefaultValue(hint plugin.PortHint, sampleRate float64) float32 {
	lower, upper := hint.Lower, hint.Upper
	if hint.SampleRateRel {
		lower *= float32(sampleRate)
		upper *= float32(sampleRate)
	}

	switch hint.Default {
	case plugin.Default0:
		return 0
	case plugin.Default1:
		return 1
	case plugin.Default100:
		return 100
	case plugin.Default440:
		return 440
	case plugin.DefaultMinimum:
		return lower
	case plugin.DefaultMaximum:
		return upper
	case plugin.DefaultLow:
		return 0.75*lower + 0.25*upper
	case plugin.DefaultMiddle:
		return 0.5*lower + 0.5*upper
	case plugin.DefaultHigh:
		return 0.25*lower + 0.75*upper
	default:
		if hint.BoundedBelow && hint.BoundedAbove && lower <= 0 && upper >= 0 {
			return 0
		}
		if hint.BoundedBelow {
			return lower
		}
		return 0
	}
}

// MapControllerValue maps a 7-bit MIDI controller value to a
// control-input's range per the table in spec.md §4.4.
func MapControllerValue(v uint8, hint plugin.PortHint) float32 {
	switch {
	case hint.BoundedBelow && hint.BoundedAbove:
		return hint.Lower + (hint.Upper-hint.Lower)*float32(v)/127
	case hint.BoundedAbove:
		return hint.Upper - 127 + float32(v)
	case hint.BoundedBelow:
		return hint.Lower + float32(v)
	default:
		return float32(v)
	}
}
