// Package engine wires the registry, instance table, port buffers,
// dispatcher, OSC control plane, liaison loop, and audio server into one
// running host, per spec.md §2's dependency-ordered component list.
package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/justyntemme/dssihost/internal/config"
	"github.com/justyntemme/dssihost/internal/errs"
	"github.com/justyntemme/dssihost/internal/logging"
	"github.com/justyntemme/dssihost/internal/rtcheck"
	"github.com/justyntemme/dssihost/internal/shutdown"
	"github.com/justyntemme/dssihost/pkg/audioserver"
	"github.com/justyntemme/dssihost/pkg/dispatch"
	"github.com/justyntemme/dssihost/pkg/instance"
	"github.com/justyntemme/dssihost/pkg/liaison"
	"github.com/justyntemme/dssihost/pkg/midiring"
	"github.com/justyntemme/dssihost/pkg/midisource"
	"github.com/justyntemme/dssihost/pkg/osc"
	"github.com/justyntemme/dssihost/pkg/plugin"
	"github.com/justyntemme/dssihost/pkg/port"
)

// MaxChannels bounds the channel -> instance map, per spec.md §3.
const MaxChannels = 16

// Engine is the single owned value tying every collaborator together.
type Engine struct {
	Log *logging.Logger

	registry   *plugin.Registry
	instances  []*instance.Instance
	buffers    *port.Buffers
	ring       *midiring.Ring
	dispatcher *dispatch.Dispatcher

	audioSrv audioserver.Server
	midiSrc  midisource.Source
	oscDisp  *osc.Dispatcher
	liaison  *liaison.Loop
	coord    *shutdown.Coordinator

	inPorts   []audioserver.Port
	outPorts  []audioserver.Port
	frontEnds []*os.Process

	markAudioThreadOnce sync.Once
}

// New builds (but does not activate) an Engine from a parsed Config,
// resolving every plugin spec, wiring port buffers, and constructing the
// dispatcher, OSC dispatcher, and liaison loop.
func New(cfg *config.Config, audioSrv audioserver.Server, midiSrc midisource.Source, log *logging.Logger) (*Engine, error) {
	e := &Engine{
		Log:      log,
		registry: plugin.NewRegistry(cfg.SearchPath),
		ring:     midiring.New(cfg.RingCapacity),
		audioSrv: audioSrv,
		midiSrc:  midiSrc,
		coord:    shutdown.New(log),
	}

	if err := e.buildInstances(cfg.Specs); err != nil {
		return nil, err
	}
	if err := e.activateInstances(audioSrv.SampleRate()); err != nil {
		return nil, err
	}
	if err := e.wirePorts(audioSrv); err != nil {
		return nil, err
	}

	e.dispatcher = dispatch.New(e.instances, channelMap(e.instances), e.buffers, e.ring, audioSrv.SampleRate(), log)

	e.oscDisp = osc.New(cfg.OSCAddr, &osc.Handlers{
		Buffers:     e.buffers,
		Ring:        e.ring,
		Log:         log,
		OnExiting:   e.onExiting,
		OnConfigure: e.onConfigure,
		OnUpdate:    e.onUpdate,
	}, log)
	for _, inst := range e.instances {
		if err := e.oscDisp.Register(inst); err != nil {
			return nil, err
		}
	}

	e.liaison = liaison.New(e.instances, e.buffers, liaison.DefaultRate, log)
	e.coord.RegisterInstances(e.instances)

	e.launchFrontEnds(cfg.OSCAddr, cfg.FrontEndLaunchTimeout)
	e.coord.RegisterCloser(e.signalFrontEnds)

	return e, nil
}

// launchFrontEnds starts a GUI front-end process per instance, per
// spec.md §6.5/§7's liaison ownership of front-end lifecycle. A plugin
// with no front-end directory is the common case, not an error: it is
// logged at debug level and the instance simply runs headless.
func (e *Engine) launchFrontEnds(oscAddr string, timeout time.Duration) {
	oscURL := fmt.Sprintf("osc.udp://%s/", oscAddr)
	for _, inst := range e.instances {
		desc := inst.Descriptor
		spec := plugin.Spec{Library: desc.Library, Label: desc.Label, Repetition: 1}
		proc, err := liaison.Launch(desc.Library, spec, oscURL, inst.Name, timeout)
		if err != nil {
			e.Log.Debug("no front-end launched", "instance", inst.Name, "err", err)
			continue
		}
		e.frontEnds = append(e.frontEnds, proc)
	}
}

// signalFrontEnds delivers SIGHUP to every launched front-end's process
// group.
func (e *Engine) signalFrontEnds() error {
	for _, proc := range e.frontEnds {
		if err := liaison.SignalAll(proc, syscall.SIGHUP); err != nil {
			e.Log.Warn("front-end signal failed", "pid", proc.Pid, "err", err)
		}
	}
	return nil
}

func (e *Engine) buildInstances(specs []plugin.Spec) error {
	channel := uint8(0)
	byDescriptor := make(map[*plugin.Descriptor][]*instance.Instance)

	for _, spec := range specs {
		desc, err := e.registry.Resolve(spec)
		if err != nil {
			return err
		}
		for r := 0; r < spec.Repetition; r++ {
			if int(channel) >= MaxChannels {
				return errs.Wrapf(errs.Config, "engine.buildInstances", "too many instances: channel capacity %d exceeded", MaxChannels)
			}
			name := fmt.Sprintf("%s-%d", desc.Label, channel)
			inst := instance.New(len(e.instances), name, channel, desc)
			e.instances = append(e.instances, inst)
			byDescriptor[desc] = append(byDescriptor[desc], inst)
			channel++
		}
	}

	// Stable-sort so instances sharing a plugin are contiguous, enabling
	// the dispatcher's batched run_multiple_synths optimization.
	e.instances = reorderContiguousByDescriptor(e.instances, byDescriptor)
	return nil
}

// reorderContiguousByDescriptor groups instances so every run sharing a
// descriptor is contiguous, preserving each group's original relative
// order (stable), per spec.md §4.1.
func reorderContiguousByDescriptor(instances []*instance.Instance, byDescriptor map[*plugin.Descriptor][]*instance.Instance) []*instance.Instance {
	seen := make(map[*plugin.Descriptor]bool)
	out := make([]*instance.Instance, 0, len(instances))
	for _, inst := range instances {
		if seen[inst.Descriptor] {
			continue
		}
		seen[inst.Descriptor] = true
		out = append(out, byDescriptor[inst.Descriptor]...)
	}
	return out
}

func (e *Engine) activateInstances(sampleRate float64) error {
	filledPreferred := make(map[*plugin.Descriptor]bool)

	for _, inst := range e.instances {
		h, err := inst.Descriptor.Cap.Instantiate(sampleRate)
		if err != nil {
			return errs.Wrapf(errs.PluginRuntime, "engine.activateInstances", "instantiate %s: %v", inst.Descriptor.Name, err)
		}
		inst.Handle = h
		if err := inst.Enter(instance.Instantiated); err != nil {
			return errs.New(errs.PluginRuntime, "engine.activateInstances", err)
		}

		if !filledPreferred[inst.Descriptor] {
			inst.Descriptor.FillPreferredControllers(h)
			filledPreferred[inst.Descriptor] = true
		}
	}
	return nil
}

func (e *Engine) wirePorts(audioSrv audioserver.Server) error {
	buffers, err := port.Wire(e.instances, audioSrv.BlockSize(), audioSrv.SampleRate(), e.Log)
	if err != nil {
		return errs.New(errs.Resource, "engine.wirePorts", err)
	}
	e.buffers = buffers

	for i := range buffers.AudioIn {
		p, err := audioSrv.RegisterPort(fmt.Sprintf("in_%d", i), false)
		if err != nil {
			return errs.New(errs.Resource, "engine.wirePorts", err)
		}
		e.inPorts = append(e.inPorts, p)
	}
	for i := range buffers.AudioOut {
		p, err := audioSrv.RegisterPort(fmt.Sprintf("out_%d", i), true)
		if err != nil {
			return errs.New(errs.Resource, "engine.wirePorts", err)
		}
		e.outPorts = append(e.outPorts, p)
	}

	for _, inst := range e.instances {
		if capTable := inst.Descriptor.Cap; capTable.Activate != nil {
			capTable.Activate(inst.Handle)
		}
		if err := inst.Enter(instance.Active); err != nil {
			return errs.New(errs.PluginRuntime, "engine.wirePorts", err)
		}
		inst.RebuildPrograms(inst.Descriptor.Cap)
	}
	return nil
}

func channelMap(instances []*instance.Instance) map[uint8]*instance.Instance {
	m := make(map[uint8]*instance.Instance, len(instances))
	for _, inst := range instances {
		m[inst.Channel] = inst
	}
	return m
}

// Run activates the audio server and blocks serving the MIDI reader
// loop and the OSC dispatcher until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.audioSrv.SetProcessCallback(e.process)
	e.coord.RegisterCloser(e.audioSrv.Close)
	e.coord.RegisterCloser(e.oscDisp.Close)

	go e.readMIDI(ctx)
	go func() {
		if err := e.oscDisp.ListenAndServe(); err != nil {
			e.Log.Warn("osc dispatcher stopped", "err", err)
		}
	}()
	e.liaison.Start()
	e.coord.RegisterCloser(func() error { e.liaison.Stop(); return nil })

	if err := e.audioSrv.Activate(); err != nil {
		return errs.New(errs.Resource, "engine.Run", err)
	}

	<-ctx.Done()
	e.coord.Shutdown()
	return nil
}

func (e *Engine) process(frames int) {
	if e.coord.Exiting() {
		return
	}
	e.markAudioThreadOnce.Do(rtcheck.MarkAudioThread)

	for i, p := range e.inPorts {
		if i >= len(e.buffers.AudioIn) {
			break
		}
		copy(e.buffers.AudioIn[i], p.Buffer())
	}

	e.dispatcher.Process(frames)

	for i, p := range e.outPorts {
		if i >= len(e.buffers.AudioOut) {
			break
		}
		copy(p.Buffer(), e.buffers.AudioOut[i])
	}
}

func (e *Engine) readMIDI(ctx context.Context) {
	rtcheck.AssertNotAudioThread("engine.readMIDI")
	for {
		ev, err := e.midiSrc.Poll(ctx)
		if err != nil {
			return
		}
		midiEv := midisource.NormalizeNoteOn(ev)
		pushEvent := midiring.Event{
			Channel: midiEv.Channel,
			Status:  midiEv.Status,
			Data1:   midiEv.Data1,
			Data2:   midiEv.Data2,
			At:      time.Now(),
		}
		if !e.ring.PushLockFree(pushEvent) {
			e.Log.Warn("midi ring full, event dropped")
		}
	}
}

func (e *Engine) onExiting(inst *instance.Instance) {
	if capTable := inst.Descriptor.Cap; capTable.Deactivate != nil {
		capTable.Deactivate(inst.Handle)
	}
	_ = inst.Enter(instance.Inactive)
	if e.coord.AllInactive() {
		e.Log.Info("all instances exited, shutting down")
		e.coord.Shutdown()
	}
}

func (e *Engine) onConfigure(inst *instance.Instance, key, value string) {
	if capTable := inst.Descriptor.Cap; capTable.Configure != nil {
		if msg := capTable.Configure(inst.Handle, key, value); msg != "" {
			e.Log.Warn("plugin configure message", "instance", inst.Name, "message", msg)
		}
	}
	inst.RebuildPrograms(inst.Descriptor.Cap)
}

func (e *Engine) onUpdate(inst *instance.Instance, addr string) {
	inst.FrontEndAddr = addr
	inst.ControlPath = fmt.Sprintf("/dssi/%s/control", inst.Name)
	inst.ProgramPath = fmt.Sprintf("/dssi/%s/program", inst.Name)
	inst.ShowPath = fmt.Sprintf("/dssi/%s/show", inst.Name)

	for i, in := range e.buffers.ControlInInstance {
		if in != inst {
			continue
		}
		e.buffers.PortUpdated[i].Store(true)
	}
	e.liaison.SendInitialShow(inst)
}
