// Package midisource is the host's MIDI sequencer collaborator (spec.md
// §6.3): a pollable source of raw channel events, backed by
// gitlab.com/gomidi/midi/v2's rtmididrv driver.
package midisource

import (
	"context"
	"errors"
)

// Event is a raw, undecoded channel-scoped MIDI event as read from the
// sequencer, mirroring midiring.Event's byte layout without importing
// pkg/midiring (the reader goroutine converts one into the other).
type Event struct {
	Channel uint8
	Status  byte
	Data1   byte
	Data2   byte
}

// ErrClosed is returned by Poll once the source has been closed.
var ErrClosed = errors.New("midisource: closed")

// Source is anything the engine can poll for incoming MIDI traffic: the
// default rtmididrv-backed implementation, or a fake used in tests.
type Source interface {
	// Poll blocks until an event is available, ctx is cancelled, or the
	// source is closed.
	Poll(ctx context.Context) (Event, error)

	// FD returns a pollable file descriptor backing the source, if the
	// platform driver exposes one. Not all drivers do.
	FD() (uintptr, bool)

	// EncodeRaw decodes 4 raw bytes (the OSC `midi` method's wire
	// payload) into an Event, per spec.md §4.8.
	EncodeRaw(b [4]byte) (Event, bool)

	// Close releases the underlying MIDI port.
	Close() error
}

// EncodeRaw decodes a (status, data1, data2, pad) quadruple the way
// every Source implementation does; a free function so fakes in tests
// don't need to duplicate it.
func EncodeRaw(b [4]byte) (Event, bool) {
	status := b[0]
	if status < 0x80 {
		return Event{}, false
	}
	return Event{
		Channel: status & 0x0f,
		Status:  status & 0xf0,
		Data1:   b[1],
		Data2:   b[2],
	}, true
}

// NormalizeNoteOn turns a velocity-0 NoteOn into a NoteOff, per spec.md
// §4.3's producer contract and §4.8's `midi` handler contract.
func NormalizeNoteOn(ev Event) Event {
	const noteOn = 0x90
	const noteOff = 0x80
	if ev.Status == noteOn && ev.Data2 == 0 {
		ev.Status = noteOff
	}
	return ev
}
