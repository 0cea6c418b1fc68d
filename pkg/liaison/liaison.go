// Package liaison runs the front-end liaison loop (spec.md §4.9), off
// the audio path: a ticker-driven poller that forwards program and
// control-value changes to each instance's GUI front-end over OSC, plus
// front-end process lifecycle (launch, process-group shutdown signal).
package liaison

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/justyntemme/dssihost/internal/logging"
	"github.com/justyntemme/dssihost/pkg/instance"
	"github.com/justyntemme/dssihost/pkg/plugin"
	"github.com/justyntemme/dssihost/pkg/port"
)

// DefaultRate is the liaison loop's default poll period (50 Hz).
const DefaultRate = time.Second / 50

// Loop owns the ticker and, for each instance with a registered
// front-end address, an osc.Client used to forward updates.
type Loop struct {
	instances []*instance.Instance
	buffers   *port.Buffers
	rate      time.Duration
	log       *logging.Logger

	clients map[string]*osc.Client // instance name -> client

	stop chan struct{}
	done chan struct{}
}

// New creates a Loop polling at rate (DefaultRate if zero).
func New(instances []*instance.Instance, buffers *port.Buffers, rate time.Duration, log *logging.Logger) *Loop {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Loop{
		instances: instances,
		buffers:   buffers,
		rate:      rate,
		log:       log,
		clients:   make(map[string]*osc.Client),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the poll loop in its own goroutine.
func (l *Loop) Start() {
	go l.run()
}

// Stop halts the poll loop and waits for it to exit.
func (l *Loop) Stop() {
	close(l.stop)
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)
	ticker := time.NewTicker(l.rate)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *Loop) tick() {
	for _, inst := range l.instances {
		if inst.FrontEndAddr == "" {
			continue
		}
		if inst.UINeedsProgramUpdate && !inst.HasPendingProgram() {
			l.sendProgram(inst)
			inst.UINeedsProgramUpdate = false
		}
	}

	for i, updated := range l.buffers.PortUpdated {
		if !updated.Load() {
			continue
		}
		inst := l.buffers.ControlInInstance[i]
		if inst.FrontEndAddr == "" {
			updated.Store(false)
			continue
		}
		l.sendControl(inst, l.buffers.ControlInPortNumber[i], l.buffers.ControlIn[i].Load())
		updated.Store(false)
	}
}

func (l *Loop) clientFor(inst *instance.Instance) (*osc.Client, error) {
	if c, ok := l.clients[inst.Name]; ok {
		return c, nil
	}
	host, portNum, err := splitAddr(inst.FrontEndAddr)
	if err != nil {
		return nil, err
	}
	c := osc.NewClient(host, portNum)
	l.clients[inst.Name] = c
	return c, nil
}

func (l *Loop) sendProgram(inst *instance.Instance) {
	c, err := l.clientFor(inst)
	if err != nil {
		l.log.Warn("liaison: bad front-end address", "instance", inst.Name, "err", err)
		return
	}
	msg := osc.NewMessage(inst.ProgramPath)
	msg.Append(int32(inst.CurrentBank))
	msg.Append(int32(inst.CurrentProgram))
	if err := c.Send(msg); err != nil {
		l.log.Warn("liaison: send program failed", "instance", inst.Name, "err", err)
	}
}

func (l *Loop) sendControl(inst *instance.Instance, portNum int, value float32) {
	c, err := l.clientFor(inst)
	if err != nil {
		l.log.Warn("liaison: bad front-end address", "instance", inst.Name, "err", err)
		return
	}
	msg := osc.NewMessage(inst.ControlPath)
	msg.Append(int32(portNum))
	msg.Append(value)
	if err := c.Send(msg); err != nil {
		l.log.Warn("liaison: send control failed", "instance", inst.Name, "err", err)
	}
}

// SendInitialShow sends the one-time `show` directive after the first
// `update` call, per spec.md §4.8.
func (l *Loop) SendInitialShow(inst *instance.Instance) {
	if inst.UIInitialShowSent {
		return
	}
	c, err := l.clientFor(inst)
	if err != nil {
		l.log.Warn("liaison: bad front-end address", "instance", inst.Name, "err", err)
		return
	}
	if err := c.Send(osc.NewMessage(inst.ShowPath)); err != nil {
		l.log.Warn("liaison: send show failed", "instance", inst.Name, "err", err)
		return
	}
	inst.UIInitialShowSent = true
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := splitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("liaison: %w", err)
	}
	var portNum int
	if _, err := fmt.Sscanf(portStr, "%d", &portNum); err != nil {
		return "", 0, fmt.Errorf("liaison: bad port in %q: %w", addr, err)
	}
	return host, portNum, nil
}

func splitHostPort(addr string) (string, string, error) {
	trimmed := strings.TrimPrefix(addr, "osc.udp://")
	trimmed = strings.TrimPrefix(trimmed, "osc.tcp://")
	trimmed = strings.TrimRight(trimmed, "/")
	idx := strings.LastIndex(trimmed, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("no port in address %q", addr)
	}
	return trimmed[:idx], trimmed[idx+1:], nil
}

// Launch searches <dir-of-library>/<library>/ (the library's file name
// without ".so") for executable regular files whose names begin with
// the plugin label, and runs the first
// match with arguments (oscURL, libraryName, label, instanceTag), in
// its own process group so SignalAll can stop it cleanly. It retries
// the directory scan until timeout elapses, since a front-end bundle
// installed alongside the plugin library can still be mid-write when
// the host starts.
func Launch(libPath string, spec plugin.Spec, oscURL, instanceTag string, timeout time.Duration) (*os.Process, error) {
	dir := filepath.Join(plugin.LibraryDir(libPath), strings.TrimSuffix(filepath.Base(libPath), ".so"))

	deadline := time.Now().Add(timeout)
	var exe string
	var lastErr error
	for {
		exe, lastErr = findFrontEnd(dir, spec.Label)
		if exe != "" || time.Now().After(deadline) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if exe == "" {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, fmt.Errorf("liaison: no front-end found in %s for label %q", dir, spec.Label)
	}

	cmd := exec.Command(exe, oscURL, spec.Library, spec.Label, instanceTag)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("liaison: start %s: %w", exe, err)
	}
	return cmd.Process, nil
}

func findFrontEnd(dir, label string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("liaison: front-end dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), label) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Mode()&0o111 == 0 {
			continue
		}
		return filepath.Join(dir, e.Name()), nil
	}
	return "", nil
}

// SignalAll delivers sig to proc's entire process group, for a clean
// front-end shutdown.
func SignalAll(proc *os.Process, sig os.Signal) error {
	n, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("liaison: unsupported signal type %T", sig)
	}
	return syscall.Kill(-proc.Pid, n)
}
