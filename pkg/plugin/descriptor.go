// Package plugin resolves LADSPA/DSSI shared-object plugin libraries and
// exposes a capability table for the operations spec.md §6.1 requires a
// host to call: instantiate, connect_port, activate/deactivate/cleanup,
// run_synth (or the batched run_multiple_synths), select_program,
// get_program, get_midi_controller_for_port, and configure.
package plugin

import "errors"

// Errors surfaced by Registry.Resolve, per spec.md §4.1.
var (
	ErrLibraryNotFound   = errors.New("library not found on search path")
	ErrNotAPluginLibrary = errors.New("library does not export a plugin descriptor function")
	ErrLabelNotFound     = errors.New("no plugin in library matches the requested label")

	errInstantiateFailed = errors.New("plugin instantiate returned a null handle")
)

// PortKind classifies a plugin port by direction and signal type.
type PortKind int

const (
	AudioInput PortKind = iota
	AudioOutput
	ControlInput
	ControlOutput
)

// DefaultHint identifies which of the LADSPA default-value hints (if any)
// a control port declares, per spec.md §4.7.
type DefaultHint int

const (
	DefaultNone DefaultHint = iota
	DefaultMinimum
	DefaultLow
	DefaultMiddle
	DefaultHigh
	DefaultMaximum
	Default0
	Default1
	Default100
	Default440
)

// PortHint carries a control port's range and default-value metadata.
type PortHint struct {
	BoundedBelow   bool
	BoundedAbove   bool
	Lower          float32
	Upper          float32
	SampleRateRel  bool // bounds are expressed relative to the sample rate
	Default        DefaultHint
}

// PortDescriptor describes one port of a plugin, in ABI declaration order.
type PortDescriptor struct {
	Index     int
	Name      string
	Kind      PortKind
	Hint      PortHint         // meaningful only for ControlInput/ControlOutput
	PreferredCC int32          // MIDI CC suggested by get_midi_controller_for_port, -1 if none
}

// Program is one (bank, program, name) tuple from a plugin's program list.
type Program struct {
	Bank    int
	Program int
	Name    string
}

// Descriptor is a plugin's read-only identity and ABI surface, shared by
// every instance created from it. Registered once at startup, released at
// shutdown.
type Descriptor struct {
	Library string // resolved absolute path of the .so
	Label   string
	Name    string

	Ports []PortDescriptor

	Cap *Capability

	cHandle *cLADSPADescriptor
	dHandle *cDSSIDescriptor
}

// AudioInCount returns the number of audio input ports.
func (d *Descriptor) AudioInCount() int { return d.countKind(AudioInput) }

// AudioOutCount returns the number of audio output ports.
func (d *Descriptor) AudioOutCount() int { return d.countKind(AudioOutput) }

// ControlInCount returns the number of control input ports.
func (d *Descriptor) ControlInCount() int { return d.countKind(ControlInput) }

// ControlOutCount returns the number of control output ports.
func (d *Descriptor) ControlOutCount() int { return d.countKind(ControlOutput) }

func (d *Descriptor) countKind(k PortKind) int {
	n := 0
	for _, p := range d.Ports {
		if p.Kind == k {
			n++
		}
	}
	return n
}
