package plugin

import (
	"unsafe"

	"github.com/ebitengine/purego"
)

// Handle is an opaque plugin-side instance handle (LADSPA_Handle).
type Handle uintptr

// RawEvent is the ABI-compatible subset of ALSA's snd_seq_event_t that
// DSSI's run_synth/run_multiple_synths actually reads: the event type,
// channel-scoped union fields (note/velocity, CC number/value, or program
// number), and the within-block frame offset ("tick", computed per
// spec.md §4.3). The plugin ABI never needs the full sequencer event
// (connection/queue/timestamp bookkeeping), so only this slice of it is
// mirrored here.
type RawEvent struct {
	Type    uint8
	Channel uint8
	Data1   uint8 // note number, CC number, or program number
	Data2   uint8 // velocity or CC value; unused for program change
	Tick    uint32
}

// Capability is the host's view of a plugin's callable operations — the
// "capability table enumerating exactly the operations in §6.1, with
// nulls modeled as Option-typed fields" the design notes call for. Each
// field is either a populated function value or nil.
type Capability struct {
	Instantiate              func(sampleRate float64) (Handle, error)
	ConnectPort              func(h Handle, port int, buf unsafe.Pointer)
	Activate                 func(h Handle)
	Deactivate               func(h Handle)
	Cleanup                  func(h Handle)
	RunSynth                 func(h Handle, frames int, events []RawEvent)
	RunMultipleSynths        func(handles []Handle, frames int, events [][]RawEvent)
	SelectProgram            func(h Handle, bank, program int)
	GetProgram               func(h Handle, index int) (Program, bool)
	GetMIDIControllerForPort func(h Handle, port int) (cc int32, hasCC bool)
	Configure                func(h Handle, key, value string) (message string)
}

// buildCapability wires the raw uintptr function pointers pulled from the
// LADSPA/DSSI descriptor structs into Go closures that call through
// purego.SyscallN, the cgo-free "call an arbitrary C function pointer"
// primitive.
func buildCapability(ladspa *cLADSPADescriptor, dssi *cDSSIDescriptor) *Capability {
	cap := &Capability{}

	cap.Instantiate = func(sampleRate float64) (Handle, error) {
		r, _, _ := purego.SyscallN(ladspa.instantiate,
			uintptr(unsafe.Pointer(ladspa)),
			uintptr(uint64(sampleRate)))
		if r == 0 {
			return 0, errInstantiateFailed
		}
		return Handle(r), nil
	}

	cap.ConnectPort = func(h Handle, port int, buf unsafe.Pointer) {
		purego.SyscallN(ladspa.connectPort, uintptr(h), uintptr(port), uintptr(buf))
	}

	if ladspa.activate != 0 {
		cap.Activate = func(h Handle) { purego.SyscallN(ladspa.activate, uintptr(h)) }
	}
	if ladspa.deactivate != 0 {
		cap.Deactivate = func(h Handle) { purego.SyscallN(ladspa.deactivate, uintptr(h)) }
	}
	if ladspa.cleanup != 0 {
		cap.Cleanup = func(h Handle) { purego.SyscallN(ladspa.cleanup, uintptr(h)) }
	}

	if dssi != nil {
		if dssi.runSynth != 0 {
			cap.RunSynth = func(h Handle, frames int, events []RawEvent) {
				var evPtr uintptr
				if len(events) > 0 {
					evPtr = uintptr(unsafe.Pointer(&events[0]))
				}
				purego.SyscallN(dssi.runSynth, uintptr(h), uintptr(frames), evPtr, uintptr(len(events)))
			}
		}
		if dssi.runMultipleSynths != 0 {
			// ptrs/evPtrs/counts are reused across calls, growing only
			// when a larger batch than any seen so far arrives, so the
			// steady-state block call never allocates.
			var ptrs, evPtrs, counts []uintptr
			cap.RunMultipleSynths = func(handles []Handle, frames int, events [][]RawEvent) {
				if len(handles) == 0 {
					return
				}
				n := len(handles)
				if len(ptrs) < n {
					ptrs = make([]uintptr, n)
					evPtrs = make([]uintptr, n)
					counts = make([]uintptr, n)
				} else {
					ptrs = ptrs[:n]
					evPtrs = evPtrs[:n]
					counts = counts[:n]
				}
				for i := range handles {
					ptrs[i] = uintptr(handles[i])
					evPtrs[i] = 0
					if len(events[i]) > 0 {
						evPtrs[i] = uintptr(unsafe.Pointer(&events[i][0]))
					}
					counts[i] = uintptr(len(events[i]))
				}
				purego.SyscallN(dssi.runMultipleSynths,
					uintptr(n),
					uintptr(unsafe.Pointer(&ptrs[0])),
					uintptr(frames),
					uintptr(unsafe.Pointer(&evPtrs[0])),
					uintptr(unsafe.Pointer(&counts[0])))
			}
		}
		if dssi.selectProgram != 0 {
			cap.SelectProgram = func(h Handle, bank, program int) {
				purego.SyscallN(dssi.selectProgram, uintptr(h), uintptr(bank), uintptr(program))
			}
		}
		if dssi.getProgram != 0 {
			cap.GetProgram = func(h Handle, index int) (Program, bool) {
				r, _, _ := purego.SyscallN(dssi.getProgram, uintptr(h), uintptr(index))
				if r == 0 {
					return Program{}, false
				}
				p := (*cDSSIProgram)(unsafe.Pointer(r))
				return Program{Bank: int(p.bank), Program: int(p.program), Name: cStringToGo(p.name)}, true
			}
		}
		if dssi.getMIDIControllerForPort != 0 {
			cap.GetMIDIControllerForPort = func(h Handle, port int) (int32, bool) {
				r, _, _ := purego.SyscallN(dssi.getMIDIControllerForPort, uintptr(h), uintptr(port))
				tagged := int32(r)
				const ccFlag = 0x20000000
				if tagged&ccFlag == 0 {
					return 0, false
				}
				return tagged &^ ccFlag, true
			}
		}
		if dssi.configure != 0 {
			cap.Configure = func(h Handle, key, value string) string {
				ck := cString(key)
				cv := cString(value)
				r, _, _ := purego.SyscallN(dssi.configure, uintptr(h), uintptr(unsafe.Pointer(ck)), uintptr(unsafe.Pointer(cv)))
				if r == 0 {
					return ""
				}
				return cStringToGo((*byte)(unsafe.Pointer(r)))
			}
		}
	}

	return cap
}

func cString(s string) *byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return &b[0]
}
