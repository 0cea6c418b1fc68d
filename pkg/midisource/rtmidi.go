package midisource

import (
	"context"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// RTMIDISource wraps a gomidi/v2 input port opened via the rtmididrv
// driver. midi.ListenTo is callback-driven, so incoming events are
// funneled through a buffered channel to present the blocking Poll
// interface the reader goroutine expects.
type RTMIDISource struct {
	in     drivers.In
	stop   func()
	events chan Event
	closed chan struct{}
}

// eventQueueDepth bounds the bridge channel between ListenTo's callback
// and Poll; overflow is dropped rather than blocking the driver's
// delivery goroutine.
const eventQueueDepth = 256

// OpenFirstInput opens the first available MIDI input port reported by
// the driver. Returns an error if no input port is connected.
func OpenFirstInput() (*RTMIDISource, error) {
	ins := midi.GetInPorts()
	if len(ins) == 0 {
		return nil, fmt.Errorf("midisource: no MIDI input ports available")
	}
	return OpenInput(ins[0])
}

// OpenInput opens a specific input port.
func OpenInput(in drivers.In) (*RTMIDISource, error) {
	s := &RTMIDISource{
		in:     in,
		events: make(chan Event, eventQueueDepth),
		closed: make(chan struct{}),
	}

	stop, err := midi.ListenTo(in, s.onMessage, midi.UseSysEx())
	if err != nil {
		return nil, fmt.Errorf("midisource: listen: %w", err)
	}
	s.stop = stop
	return s, nil
}

func (s *RTMIDISource) onMessage(msg midi.Message, _ int32) {
	raw := msg.Bytes()
	if len(raw) < 1 || raw[0] < 0x80 {
		return
	}
	ev := Event{Channel: raw[0] & 0x0f, Status: raw[0] & 0xf0}
	if len(raw) > 1 {
		ev.Data1 = raw[1]
	}
	if len(raw) > 2 {
		ev.Data2 = raw[2]
	}

	select {
	case s.events <- ev:
	default:
		// Bridge channel full; the producer contract's ring overflow
		// handling covers real backpressure, this channel is only a
		// callback-to-blocking-read adapter.
	}
}

// Poll implements Source.
func (s *RTMIDISource) Poll(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.closed:
		return Event{}, ErrClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// FD implements Source. rtmididrv does not expose a pollable descriptor
// on every platform backend, so this always reports false.
func (s *RTMIDISource) FD() (uintptr, bool) { return 0, false }

// EncodeRaw implements Source.
func (s *RTMIDISource) EncodeRaw(b [4]byte) (Event, bool) { return EncodeRaw(b) }

// Close implements Source.
func (s *RTMIDISource) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
		close(s.closed)
	}
	if s.stop != nil {
		s.stop()
	}
	if s.in != nil {
		return s.in.Close()
	}
	return nil
}
