package midisource

import "context"

// DefaultFakeDepth is used by callers that don't care about a fake
// source's queue depth (e.g. the CLI's OSC-only fallback).
const DefaultFakeDepth = 64

// FakeSource is an in-memory Source for tests: Push queues an event for
// the next Poll to return.
type FakeSource struct {
	events chan Event
	closed chan struct{}
}

// NewFake creates a FakeSource with the given buffer depth.
func NewFake(depth int) *FakeSource {
	return &FakeSource{
		events: make(chan Event, depth),
		closed: make(chan struct{}),
	}
}

// Push enqueues ev for a future Poll call.
func (f *FakeSource) Push(ev Event) {
	select {
	case f.events <- ev:
	default:
	}
}

// Poll implements Source.
func (f *FakeSource) Poll(ctx context.Context) (Event, error) {
	select {
	case ev := <-f.events:
		return ev, nil
	case <-f.closed:
		return Event{}, ErrClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// FD implements Source.
func (f *FakeSource) FD() (uintptr, bool) { return 0, false }

// EncodeRaw implements Source.
func (f *FakeSource) EncodeRaw(b [4]byte) (Event, bool) { return EncodeRaw(b) }

// Close implements Source.
func (f *FakeSource) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}
