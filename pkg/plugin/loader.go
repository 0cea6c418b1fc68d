package plugin

import (
	"fmt"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Loader dlopen()s plugin libraries and enumerates their descriptors. It
// is the cgo-free "OS-abstracted plugin-loader module" the design notes
// call for, built on github.com/ebitengine/purego rather than cgo so the
// rest of the host stays a plain Go binary.
type Loader struct {
	opened map[string]uintptr // library path -> dlopen handle
}

// NewLoader creates an empty loader.
func NewLoader() *Loader {
	return &Loader{opened: make(map[string]uintptr)}
}

// Open dlopen()s path if it has not already been opened, ties the
// library's lifetime to the loader, and returns every descriptor it
// exports. A library with no ladspa_descriptor symbol is
// ErrNotAPluginLibrary.
func (l *Loader) Open(path string) ([]*Descriptor, error) {
	handle, ok := l.opened[path]
	if !ok {
		h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLibraryNotFound, path, err)
		}
		handle = h
		l.opened[path] = handle
	}

	var ladspaDescriptorFn func(index uint32) uintptr
	if err := registerOptional(&ladspaDescriptorFn, handle, "ladspa_descriptor"); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAPluginLibrary, path)
	}

	var dssiDescriptorFn func(index uint32) uintptr
	_ = registerOptional(&dssiDescriptorFn, handle, "dssi_descriptor") // optional; plain LADSPA is still valid

	var descs []*Descriptor
	for i := uint32(0); ; i++ {
		var ladspaPtr, dssiPtr uintptr
		if dssiDescriptorFn != nil {
			dssiPtr = dssiDescriptorFn(i)
			if dssiPtr == 0 {
				break
			}
		} else {
			ladspaPtr = ladspaDescriptorFn(i)
			if ladspaPtr == 0 {
				break
			}
		}

		var dssi *cDSSIDescriptor
		var ladspa *cLADSPADescriptor
		if dssiPtr != 0 {
			dssi = (*cDSSIDescriptor)(unsafe.Pointer(dssiPtr))
			ladspa = dssi.ladspa
		} else {
			ladspa = (*cLADSPADescriptor)(unsafe.Pointer(ladspaPtr))
		}

		descs = append(descs, translateDescriptor(path, ladspa, dssi))
	}

	if len(descs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotAPluginLibrary, path)
	}
	return descs, nil
}

// registerOptional wraps purego.RegisterLibFunc, turning its panic-on-
// missing-symbol behavior (in some purego versions, a hard error instead)
// into a returned error so a missing dssi_descriptor symbol doesn't abort
// loading a plain-LADSPA library.
func registerOptional[T any](fptr *T, handle uintptr, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("symbol %s: %v", name, r)
		}
	}()
	purego.RegisterLibFunc(fptr, handle, name)
	if any(*fptr) == nil {
		return fmt.Errorf("symbol %s not found", name)
	}
	return nil
}

func translateDescriptor(library string, ladspa *cLADSPADescriptor, dssi *cDSSIDescriptor) *Descriptor {
	d := &Descriptor{
		Library: library,
		Label:   cStringToGo(ladspa.label),
		Name:    cStringToGo(ladspa.name),
		cHandle: ladspa,
		dHandle: dssi,
	}

	portCount := int(ladspa.portCount)
	descs := unsafe.Slice(ladspa.portDescs, portCount)
	names := unsafe.Slice(ladspa.portNames, portCount)
	hints := unsafe.Slice(ladspa.portRangeHint, portCount)

	for i := 0; i < portCount; i++ {
		pd := PortDescriptor{Index: i, Name: cStringToGo(names[i]), PreferredCC: -1}

		switch {
		case descs[i]&portControl != 0 && descs[i]&portInput != 0:
			pd.Kind = ControlInput
		case descs[i]&portControl != 0 && descs[i]&portOutput != 0:
			pd.Kind = ControlOutput
		case descs[i]&portAudio != 0 && descs[i]&portInput != 0:
			pd.Kind = AudioInput
		case descs[i]&portAudio != 0 && descs[i]&portOutput != 0:
			pd.Kind = AudioOutput
		}

		if pd.Kind == ControlInput || pd.Kind == ControlOutput {
			h := hints[i]
			pd.Hint = PortHint{
				BoundedBelow:  h.descriptor&hintBoundedBelow != 0,
				BoundedAbove:  h.descriptor&hintBoundedAbove != 0,
				Lower:         h.lower,
				Upper:         h.upper,
				SampleRateRel: h.descriptor&hintSampleRate != 0,
				Default:       decodeDefaultHint(h.descriptor),
			}
		}

		d.Ports = append(d.Ports, pd)
	}

	d.Cap = buildCapability(ladspa, dssi)
	return d
}

// FillPreferredControllers calls get_midi_controller_for_port for every
// control-input port using an already-instantiated handle (the operation
// is only meaningful post-instantiation) and records the result on the
// shared Descriptor's ports. Called once per descriptor, right after its
// first instance is instantiated (before activation), per spec.md §4.2.
func (d *Descriptor) FillPreferredControllers(h Handle) {
	if d.Cap.GetMIDIControllerForPort == nil {
		return
	}
	for i := range d.Ports {
		if d.Ports[i].Kind != ControlInput {
			continue
		}
		if cc, ok := d.Cap.GetMIDIControllerForPort(h, d.Ports[i].Index); ok {
			d.Ports[i].PreferredCC = cc
		}
	}
}

func decodeDefaultHint(d cPortRangeHintDescriptor) DefaultHint {
	switch d & hintDefaultMask {
	case hintDefaultMinimum:
		return DefaultMinimum
	case hintDefaultLow:
		return DefaultLow
	case hintDefaultMiddle:
		return DefaultMiddle
	case hintDefaultHigh:
		return DefaultHigh
	case hintDefaultMaximum:
		return DefaultMaximum
	case hintDefault0:
		return Default0
	case hintDefault1:
		return Default1
	case hintDefault100:
		return Default100
	case hintDefault440:
		return Default440
	default:
		return DefaultNone
	}
}
