// Package fakeserver implements audioserver.Server with a ticking
// goroutine instead of a real JACK connection, for tests and for
// running the host with no audio server available.
package fakeserver

import (
	"sync"
	"time"

	"github.com/justyntemme/dssihost/pkg/audioserver"
)

type port struct {
	name string
	buf  []float32
}

func (p *port) Name() string      { return p.name }
func (p *port) Buffer() []float32 { return p.buf }

// Server is a fixed sample-rate/block-size fake: Activate starts a
// goroutine that invokes the registered callback once per block period.
type Server struct {
	sampleRate float64
	blockSize  int
	period     time.Duration

	mu    sync.Mutex
	ports []*port
	cb    func(frames int)

	stop chan struct{}
	done chan struct{}
}

// New creates a fake server at the given sample rate and block size.
func New(sampleRate float64, blockSize int) *Server {
	return &Server{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		period:     time.Duration(float64(blockSize) / sampleRate * float64(time.Second)),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (s *Server) SampleRate() float64 { return s.sampleRate }
func (s *Server) BlockSize() int      { return s.blockSize }

// RegisterPort allocates a block-sized buffer backing the named port.
func (s *Server) RegisterPort(name string, _ bool) (audioserver.Port, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &port{name: name, buf: make([]float32, s.blockSize)}
	s.ports = append(s.ports, p)
	return p, nil
}

// SetProcessCallback implements audioserver.Server.
func (s *Server) SetProcessCallback(cb func(frames int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cb = cb
}

// Activate starts the ticking goroutine.
func (s *Server) Activate() error {
	go s.run()
	return nil
}

func (s *Server) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			cb := s.cb
			s.mu.Unlock()
			if cb != nil {
				cb(s.blockSize)
			}
		}
	}
}

// Close stops the ticking goroutine and waits for it to exit.
func (s *Server) Close() error {
	close(s.stop)
	<-s.done
	return nil
}

// Tick invokes the registered callback once, synchronously, for tests
// that want deterministic block timing instead of the real ticker.
func (s *Server) Tick() {
	s.mu.Lock()
	cb := s.cb
	s.mu.Unlock()
	if cb != nil {
		cb(s.blockSize)
	}
}
