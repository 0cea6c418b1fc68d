//go:build jack
// +build jack

// Package jackserver implements audioserver.Server on top of JACK via
// github.com/xthexder/go-jack, grounded on GeoffreyPlitt-gosfzplayer's
// jackPlayer.go client-open/port-register/process-callback shape.
package jackserver

import (
	"fmt"
	"sync"

	jack "github.com/xthexder/go-jack"

	"github.com/justyntemme/dssihost/pkg/audioserver"
)

type port struct {
	jp   *jack.Port
	name string
	out  bool
	buf  []float32 // refreshed each block by Server.process
}

func (p *port) Name() string { return p.name }

// Buffer returns this block's JACK-owned port buffer. Only meaningful
// from inside the process callback; calling it any other time returns
// whatever the last block left behind.
func (p *port) Buffer() []float32 { return p.buf }

// Server wraps a single JACK client with one process callback.
type Server struct {
	client *jack.Client

	mu    sync.Mutex
	ports []*port
	cb    func(frames int)
}

// Open opens a JACK client under the given name, failing rather than
// auto-starting a server (jack.NoStartServer), matching the pack's
// go-jack usage.
func Open(name string) (*Server, error) {
	client, status := jack.ClientOpen(name, jack.NoStartServer)
	if status != 0 {
		return nil, fmt.Errorf("jackserver: open %q: status %d", name, status)
	}
	s := &Server{client: client}
	client.SetProcessCallback(s.process)
	return s, nil
}

func (s *Server) SampleRate() float64 { return float64(s.client.GetSampleRate()) }
func (s *Server) BlockSize() int      { return int(s.client.GetBufferSize()) }

// RegisterPort registers a named JACK audio port.
func (s *Server) RegisterPort(name string, out bool) (audioserver.Port, error) {
	dir := jack.PortIsInput
	if out {
		dir = jack.PortIsOutput
	}
	jp := s.client.PortRegister(name, jack.DEFAULT_AUDIO_TYPE, dir, 0)
	if jp == nil {
		return nil, fmt.Errorf("jackserver: register port %q", name)
	}
	p := &port{jp: jp, name: name, out: out}
	s.mu.Lock()
	s.ports = append(s.ports, p)
	s.mu.Unlock()
	return p, nil
}

// SetProcessCallback implements audioserver.Server.
func (s *Server) SetProcessCallback(cb func(frames int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = cb
}

func (s *Server) process(nframes uint32) int {
	s.mu.Lock()
	cb := s.cb
	ports := s.ports
	s.mu.Unlock()

	for _, p := range ports {
		p.buf = p.jp.GetBuffer(nframes)
	}
	if cb != nil {
		cb(int(nframes))
	}
	return 0
}

// Activate starts JACK's real-time processing thread.
func (s *Server) Activate() error {
	if code := s.client.Activate(); code != 0 {
		return fmt.Errorf("jackserver: activate: status %d", code)
	}
	return nil
}

// Close deactivates and closes the JACK client.
func (s *Server) Close() error {
	s.client.Deactivate()
	if code := s.client.Close(); code != 0 {
		return fmt.Errorf("jackserver: close: status %d", code)
	}
	return nil
}
