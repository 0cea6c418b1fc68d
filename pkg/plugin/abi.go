package plugin

import "unsafe"

// The structs below mirror the memory layout of the LADSPA/DSSI C ABI
// (ladspa.h's LADSPA_Descriptor, dssi.h's DSSI_Descriptor and
// DSSI_Program_Descriptor) field for field, in declaration order, so that
// a uintptr returned from the plugin library's descriptor-enumeration
// function can be reinterpreted directly as one of these without cgo.
// This is the Go-native equivalent of the design note's "OS-abstracted
// plugin-loader module": purego gives us Dlopen/Dlsym/RegisterLibFunc
// without a cgo compile step, and we do the struct-shape part ourselves
// since these two ABI structs are fixed and small.

// cPortDescriptor is a LADSPA_PortDescriptor bitmask.
type cPortDescriptor uint32

const (
	portInput   cPortDescriptor = 1 << 0
	portOutput  cPortDescriptor = 1 << 1
	portControl cPortDescriptor = 1 << 2
	portAudio   cPortDescriptor = 1 << 3
)

// cPortRangeHintDescriptor is a LADSPA_PortRangeHintDescriptor bitmask.
type cPortRangeHintDescriptor uint32

const (
	hintBoundedBelow cPortRangeHintDescriptor = 1 << 0
	hintBoundedAbove cPortRangeHintDescriptor = 1 << 1
	hintToggled      cPortRangeHintDescriptor = 1 << 2
	hintSampleRate   cPortRangeHintDescriptor = 1 << 3
	hintLogarithmic  cPortRangeHintDescriptor = 1 << 4
	hintInteger      cPortRangeHintDescriptor = 1 << 5

	hintDefaultMask    cPortRangeHintDescriptor = 0x3C0
	hintDefaultNone    cPortRangeHintDescriptor = 0x000
	hintDefaultMinimum cPortRangeHintDescriptor = 0x040
	hintDefaultLow     cPortRangeHintDescriptor = 0x080
	hintDefaultMiddle  cPortRangeHintDescriptor = 0x0C0
	hintDefaultHigh    cPortRangeHintDescriptor = 0x100
	hintDefaultMaximum cPortRangeHintDescriptor = 0x140
	hintDefault0       cPortRangeHintDescriptor = 0x200
	hintDefault1       cPortRangeHintDescriptor = 0x240
	hintDefault100     cPortRangeHintDescriptor = 0x280
	hintDefault440     cPortRangeHintDescriptor = 0x2C0
)

// cPortRangeHint mirrors LADSPA_PortRangeHint.
type cPortRangeHint struct {
	descriptor cPortRangeHintDescriptor
	lower      float32
	upper      float32
}

// cLADSPADescriptor mirrors LADSPA_Descriptor.
type cLADSPADescriptor struct {
	uniqueID      uint64 // C `unsigned long`, widened; only low 32 bits used
	label         *byte
	properties    uint32
	name          *byte
	maker         *byte
	copyright     *byte
	portCount     uint64 // C `unsigned long`
	portDescs     *cPortDescriptor
	portNames     **byte
	portRangeHint *cPortRangeHint
	implementationData uintptr

	instantiate  uintptr
	connectPort  uintptr
	activate     uintptr
	run          uintptr
	runAdding    uintptr
	setRunAdding uintptr
	deactivate   uintptr
	cleanup      uintptr
}

// cDSSIProgram mirrors DSSI_Program_Descriptor.
type cDSSIProgram struct {
	bank    uint32
	program uint32
	name    *byte
}

// cDSSIDescriptor mirrors DSSI_Descriptor.
type cDSSIDescriptor struct {
	apiVersion int32
	_          [4]byte // padding to the next 8-byte-aligned field
	ladspa     *cLADSPADescriptor

	configure                  uintptr
	getProgram                 uintptr
	selectProgram              uintptr
	getMIDIControllerForPort   uintptr
	runSynth                   uintptr
	runSynthAdding             uintptr
	runMultipleSynths          uintptr
	runMultipleSynthsAdding    uintptr
}

func cStringToGo(p *byte) string {
	if p == nil {
		return ""
	}
	n := 0
	for {
		b := *(*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(p)) + uintptr(n)))
		if b == 0 {
			break
		}
		n++
	}
	return unsafe.String(p, n)
}
