// Package audioserver is the host's audio server collaborator (spec.md
// §6.3): the thing that calls the block-processing callback on its own
// real-time thread and exposes named audio ports. The default
// implementation in pkg/audioserver/jackserver wraps
// github.com/xthexder/go-jack; pkg/audioserver/fakeserver drives the
// same interface from a ticking goroutine, for tests and for running
// without a JACK server.
package audioserver

// Port is a registered audio port; its buffer is retrieved fresh each
// block via Buffer, mirroring the JACK port-buffer-per-callback model.
type Port interface {
	Name() string
	Buffer() []float32
}

// Server is the audio backend collaborator. SetProcessCallback must be
// called before Activate; the callback runs on the server's real-time
// thread and must not allocate or block, per spec.md §5.
type Server interface {
	SampleRate() float64
	BlockSize() int

	RegisterPort(name string, out bool) (Port, error)

	SetProcessCallback(cb func(frames int))

	Activate() error
	Close() error
}
