// Package shutdown converts termination signals into a cooperative exit
// that deactivates and releases each plugin instance in order, per
// spec.md §4.10/§7 ("Shutdown and signal coordinator").
package shutdown

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/justyntemme/dssihost/internal/logging"
	"github.com/justyntemme/dssihost/pkg/instance"
)

// Coordinator owns the exit flag and the ordered teardown sequence:
// disconnect the audio server, deactivate and release each instance.
type Coordinator struct {
	exiting atomic.Bool

	mu        sync.Mutex
	instances []*instance.Instance
	closers   []func() error

	log *logging.Logger
}

// New creates a Coordinator.
func New(log *logging.Logger) *Coordinator {
	return &Coordinator{log: log}
}

// Watch registers OS signal handling (SIGINT, SIGTERM) that calls
// Shutdown once. Returns a stop func to unregister.
func (c *Coordinator) Watch() (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			c.log.Info("received termination signal", "signal", sig)
			c.Shutdown()
		case <-done:
		}
	}()
	return func() {
		close(done)
		signal.Stop(ch)
	}
}

// RegisterInstances records the instance table to tear down on Shutdown.
func (c *Coordinator) RegisterInstances(instances []*instance.Instance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances = instances
}

// RegisterCloser adds a teardown step (audio server disconnect, OSC
// server close, liaison stop, ...) run before instance teardown.
func (c *Coordinator) RegisterCloser(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, fn)
}

// Exiting reports whether shutdown has started.
func (c *Coordinator) Exiting() bool { return c.exiting.Load() }

// Shutdown runs the teardown sequence exactly once: closers first (in
// registration order), then each non-released instance is deactivated
// and cleaned up.
func (c *Coordinator) Shutdown() {
	if !c.exiting.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	closers := append([]func() error(nil), c.closers...)
	instances := append([]*instance.Instance(nil), c.instances...)
	c.mu.Unlock()

	for _, fn := range closers {
		if err := fn(); err != nil {
			c.log.Warn("shutdown: closer failed", "err", err)
		}
	}

	for _, inst := range instances {
		c.teardown(inst)
	}
}

func (c *Coordinator) teardown(inst *instance.Instance) {
	if inst.State() == instance.Released {
		return
	}

	capTable := inst.Descriptor.Cap
	if inst.State() == instance.Active {
		if capTable.Deactivate != nil {
			capTable.Deactivate(inst.Handle)
		}
		if err := inst.Enter(instance.Inactive); err != nil {
			c.log.Warn("shutdown: state transition", "instance", inst.Name, "err", err)
		}
	}

	if capTable.Cleanup != nil {
		capTable.Cleanup(inst.Handle)
	}
	if err := inst.Enter(instance.Released); err != nil {
		c.log.Warn("shutdown: state transition", "instance", inst.Name, "err", err)
	}
}

// AllInactive reports whether every registered instance is inactive,
// used to trigger shutdown from the OSC `exiting` handler once the last
// instance signals exit.
func (c *Coordinator) AllInactive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, inst := range c.instances {
		if !inst.Inactive() {
			return false
		}
	}
	return len(c.instances) > 0
}
