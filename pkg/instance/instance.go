package instance

import (
	"sync/atomic"

	"github.com/justyntemme/dssihost/pkg/plugin"
)

// NoMapping is the "unmapped"/"no pending" sentinel used throughout the
// controller map and program state, per spec.md §3.
const NoMapping = -1

// MaxEventsPerBlock bounds a per-instance event sub-buffer; the dispatcher
// stops draining into an instance once its sub-buffer is full, per
// spec.md §4.3's consumer contract.
const MaxEventsPerBlock = 256

// Instance is an activated plugin handle bound to one MIDI channel and to
// its slice of the engine's global port arrays. Exclusively owned by the
// engine: touched by the audio callback (block calls, event buffer,
// port_updated flags) and by the OSC/liaison goroutines (control writes,
// pending program fields), never by more than one of those at the same
// byte per spec.md §5's field classification.
type Instance struct {
	Index       int
	Name        string
	Channel     uint8
	Descriptor  *plugin.Descriptor
	Handle      plugin.Handle

	state State

	// ControllerMap maps MIDI CC number (0-127) to this instance's global
	// control-input index, NoMapping if unassigned.
	ControllerMap [128]int32

	// PortToControlIn maps a plugin port index to its global control-input
	// index, NoMapping for non-control ports. Fixed after wiring.
	PortToControlIn []int32

	// FirstControlIn is this instance's offset into the engine's global
	// control-input arrays.
	FirstControlIn int

	// FirstAudioIn/FirstAudioOut and their counts locate this instance's
	// slice of the engine's flat global audio buffer arrays, set once by
	// pkg/port.Wire.
	FirstAudioIn  int
	AudioInCount  int
	FirstAudioOut int
	AudioOutCount int

	// Program state. All signed; -1 means "no pending value".
	CurrentBank    int32
	CurrentProgram int32
	PendingBankMSB int32
	PendingBankLSB int32
	PendingProgram int32

	Programs []plugin.Program

	// Front-end liaison state.
	FrontEndAddr      string
	ControlPath       string
	ProgramPath       string
	ShowPath          string
	UIInitialShowSent bool
	UINeedsProgramUpdate bool

	// Events is the per-block sub-buffer the dispatcher demultiplexes
	// channel-scoped events into (everything except bank-select,
	// program-change and controller-mapped CC events) before the plugin's
	// block call. Reused across blocks; truncated to 0 length, never
	// reallocated, to keep the audio callback allocation-free.
	Events []plugin.RawEvent

	inactive atomic.Bool
}

// New creates an Instance bound to channel, in the Uninstantiated state.
func New(index int, name string, channel uint8, desc *plugin.Descriptor) *Instance {
	inst := &Instance{
		Index:      index,
		Name:       name,
		Channel:    channel,
		Descriptor: desc,
		Events:     make([]plugin.RawEvent, 0, MaxEventsPerBlock),

		CurrentBank:    0,
		CurrentProgram: 0,
		PendingBankMSB: NoMapping,
		PendingBankLSB: NoMapping,
		PendingProgram: NoMapping,
	}
	for i := range inst.ControllerMap {
		inst.ControllerMap[i] = NoMapping
	}
	return inst
}

// Inactive reports whether the instance should be skipped by the block
// driver. Readable without synchronization hazards from the audio thread
// (atomic.Bool); written by the OSC `exiting` handler via SetInactive.
func (i *Instance) Inactive() bool { return i.inactive.Load() }

// SetInactive marks the instance inactive. It does not change the
// lifecycle State; callers move the state machine with Enter.
func (i *Instance) SetInactive() {
	i.inactive.Store(true)
}

// HasPendingProgram reports whether a program change is queued for
// commit on the next block boundary, per spec.md §4.5.
func (i *Instance) HasPendingProgram() bool {
	return i.PendingProgram >= 0
}

// CommitPendingProgram computes the new bank from whichever of MSB/LSB
// were actually sent (preserving the other half of the prior bank, per
// the documented open-question decision — see DESIGN.md), calls
// select_program if the plugin supports it, and clears the pending
// fields. Must only be called immediately before block invocation.
func (i *Instance) CommitPendingProgram(c *plugin.Capability) {
	if !i.HasPendingProgram() {
		return
	}

	msb := i.PendingBankMSB
	lsb := i.PendingBankLSB
	if msb < 0 {
		msb = i.CurrentBank / 128
	}
	if lsb < 0 {
		lsb = i.CurrentBank % 128
	}
	bank := msb*128 + lsb
	program := i.PendingProgram

	if c.SelectProgram != nil {
		c.SelectProgram(i.Handle, int(bank), int(program))
	}

	i.CurrentBank = bank
	i.CurrentProgram = program
	i.PendingBankMSB = NoMapping
	i.PendingBankLSB = NoMapping
	i.PendingProgram = NoMapping
	i.UINeedsProgramUpdate = true
}

// RebuildPrograms re-queries the plugin's program list via get_program,
// called after activation and after any configure() call, since
// configure invalidates program metadata (spec.md §4.8, confirmed by the
// original jack-dssi-host's osc_configure_handler).
func (i *Instance) RebuildPrograms(c *plugin.Capability) {
	if c.GetProgram == nil {
		i.Programs = nil
		return
	}
	var programs []plugin.Program
	for idx := 0; ; idx++ {
		p, ok := c.GetProgram(i.Handle, idx)
		if !ok {
			break
		}
		programs = append(programs, p)
	}
	i.Programs = programs
}
