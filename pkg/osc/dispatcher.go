// Package osc implements the OSC control plane (spec.md §4.8) on top of
// github.com/hypebeast/go-osc, grounded on fjammes-midi2osc's client
// usage and schollz-221e's message construction.
package osc

import (
	"fmt"
	"net"
	"time"

	"github.com/hypebeast/go-osc/osc"

	"github.com/justyntemme/dssihost/internal/errs"
	"github.com/justyntemme/dssihost/internal/logging"
	"github.com/justyntemme/dssihost/pkg/instance"
	"github.com/justyntemme/dssihost/pkg/midiring"
	"github.com/justyntemme/dssihost/pkg/port"
)

// Handlers is the shared state the per-instance OSC methods act on: the
// control-input buffers, the MIDI ring (for the `midi` method), and the
// logger used for the warnings spec.md §4.8 calls for.
type Handlers struct {
	Buffers *port.Buffers
	Ring    *midiring.Ring
	Log     *logging.Logger

	// OnExiting is invoked after an instance is marked inactive; the
	// engine uses it to deactivate the plugin and check for full
	// shutdown.
	OnExiting func(inst *instance.Instance)

	// OnConfigure is invoked after a configure() call so the engine can
	// rebuild the instance's program list (configure invalidates program
	// metadata, confirmed against the original jack-dssi-host).
	OnConfigure func(inst *instance.Instance, key, value string)

	// OnUpdate is invoked on every `update` call for an instance so the
	// engine can store the front-end address, echo current control
	// values, and send the one-time `show` directive.
	OnUpdate func(inst *instance.Instance, addr string)
}

// Dispatcher owns one osc.Server, registering exact-path handlers per
// instance (`/dssi/<name>/<method>`) since go-osc routes by exact address
// pattern rather than wildcard. Messages to any other path are not
// handled and not logged. Outgoing messages to front-ends are sent by
// pkg/liaison, not by the Dispatcher.
type Dispatcher struct {
	addr       string
	server     *osc.Server
	dispatcher *osc.StandardDispatcher
	conn       net.PacketConn
	handlers   *Handlers
	log        *logging.Logger
}

// New creates a Dispatcher bound to a UDP address (e.g. "localhost:9000").
func New(addr string, h *Handlers, log *logging.Logger) *Dispatcher {
	d := osc.NewStandardDispatcher()
	return &Dispatcher{
		addr:       addr,
		server:     &osc.Server{Addr: addr, Dispatcher: d},
		dispatcher: d,
		handlers:   h,
		log:        log,
	}
}

// Register binds all six method handlers for one instance, per spec.md
// §4.8's path scheme.
func (d *Dispatcher) Register(inst *instance.Instance) error {
	base := fmt.Sprintf("/dssi/%s", inst.Name)

	bindings := map[string]osc.HandlerFunc{
		base + "/control":   d.controlHandler(inst),
		base + "/midi":      d.midiHandler(inst),
		base + "/program":   d.programHandler(inst),
		base + "/configure": d.configureHandler(inst),
		base + "/update":    d.updateHandler(inst),
		base + "/exiting":   d.exitingHandler(inst),
	}

	for path, fn := range bindings {
		if err := d.dispatcher.AddMsgHandler(path, fn); err != nil {
			return errs.Wrapf(errs.Config, "osc.Register", "path %s: %v", path, err)
		}
	}
	return nil
}

// ListenAndServe opens the UDP socket and blocks serving OSC traffic
// until Close is called. go-osc's Server.Serve takes an already-open
// net.PacketConn, which is what lets Close interrupt it cleanly.
func (d *Dispatcher) ListenAndServe() error {
	conn, err := net.ListenPacket("udp", d.addr)
	if err != nil {
		return errs.Wrapf(errs.Config, "osc.ListenAndServe", "listen %s: %v", d.addr, err)
	}
	d.conn = conn
	return d.server.Serve(conn)
}

// Close stops the OSC server by closing its socket.
func (d *Dispatcher) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// controlHandler implements `/dssi/<name>/control (int port, float value)`:
// set the control-input slot directly, bypassing MIDI mapping.
func (d *Dispatcher) controlHandler(inst *instance.Instance) osc.HandlerFunc {
	return func(msg *osc.Message) {
		if len(msg.Arguments) != 2 {
			d.log.Warn("control: wrong argument count", "instance", inst.Name)
			return
		}
		portNum, ok := asInt(msg.Arguments[0])
		value, ok2 := asFloat(msg.Arguments[1])
		if !ok || !ok2 {
			d.log.Warn("control: bad argument types", "instance", inst.Name)
			return
		}
		if portNum < 0 || portNum >= len(inst.PortToControlIn) {
			d.log.Warn("control: port out of range", "instance", inst.Name, "port", portNum)
			return
		}
		idx := inst.PortToControlIn[portNum]
		if idx < 0 {
			d.log.Warn("control: not a control-input port", "instance", inst.Name, "port", portNum)
			return
		}
		d.handlers.Buffers.ControlIn[idx].Store(value)
		d.handlers.Buffers.PortUpdated[idx].Store(true)
	}
}

// midiHandler implements `/dssi/<name>/midi (4 raw bytes)`: decode,
// override channel, normalize, reject bank-select/program-change, push.
func (d *Dispatcher) midiHandler(inst *instance.Instance) osc.HandlerFunc {
	return func(msg *osc.Message) {
		if len(msg.Arguments) != 1 {
			d.log.Warn("midi: wrong argument count", "instance", inst.Name)
			return
		}
		raw, ok := msg.Arguments[0].([]byte)
		if !ok || len(raw) != 4 {
			d.log.Warn("midi: expected 4 raw bytes", "instance", inst.Name)
			return
		}

		status := raw[0] &^ 0x0f
		data1, data2 := raw[1], raw[2]

		if status == 0xb0 && (data1 == 0 || data1 == 32) {
			d.log.Warn("midi: bank-select CC rejected, use /program", "instance", inst.Name)
			return
		}
		if status == 0xc0 {
			d.log.Warn("midi: program-change rejected, use /program", "instance", inst.Name)
			return
		}

		if status == 0x90 && data2 == 0 {
			status = 0x80
		}

		ev := midiring.Event{
			Channel: inst.Channel,
			Status:  status,
			Data1:   data1,
			Data2:   data2,
			At:      time.Now(),
		}
		if !d.handlers.Ring.PushLocked(ev) {
			d.log.Warn("midi: ring full, event dropped", "instance", inst.Name)
		}
	}
}

// programHandler implements `/dssi/<name>/program (int bank, int program)`.
func (d *Dispatcher) programHandler(inst *instance.Instance) osc.HandlerFunc {
	return func(msg *osc.Message) {
		if len(msg.Arguments) != 2 {
			d.log.Warn("program: wrong argument count", "instance", inst.Name)
			return
		}
		bank, ok := asInt(msg.Arguments[0])
		program, ok2 := asInt(msg.Arguments[1])
		if !ok || !ok2 {
			d.log.Warn("program: bad argument types", "instance", inst.Name)
			return
		}
		if !programKnown(inst, bank, program) {
			d.log.Warn("program: unrecognized bank/program, forwarding anyway", "instance", inst.Name, "bank", bank, "program", program)
		}
		inst.PendingBankMSB = int32(bank / 128)
		inst.PendingBankLSB = int32(bank % 128)
		inst.PendingProgram = int32(program)
	}
}

// configureHandler implements `/dssi/<name>/configure (string key, string value)`.
func (d *Dispatcher) configureHandler(inst *instance.Instance) osc.HandlerFunc {
	return func(msg *osc.Message) {
		if len(msg.Arguments) != 2 {
			d.log.Warn("configure: wrong argument count", "instance", inst.Name)
			return
		}
		key, ok := msg.Arguments[0].(string)
		value, ok2 := msg.Arguments[1].(string)
		if !ok || !ok2 {
			d.log.Warn("configure: bad argument types", "instance", inst.Name)
			return
		}
		if d.handlers.OnConfigure != nil {
			d.handlers.OnConfigure(inst, key, value)
		}
	}
}

// updateHandler implements `/dssi/<name>/update (string back-address-url)`.
func (d *Dispatcher) updateHandler(inst *instance.Instance) osc.HandlerFunc {
	return func(msg *osc.Message) {
		if len(msg.Arguments) != 1 {
			d.log.Warn("update: wrong argument count", "instance", inst.Name)
			return
		}
		addr, ok := msg.Arguments[0].(string)
		if !ok {
			d.log.Warn("update: bad argument type", "instance", inst.Name)
			return
		}
		if d.handlers.OnUpdate != nil {
			d.handlers.OnUpdate(inst, addr)
		}
	}
}

// exitingHandler implements `/dssi/<name>/exiting ()`.
func (d *Dispatcher) exitingHandler(inst *instance.Instance) osc.HandlerFunc {
	return func(msg *osc.Message) {
		inst.SetInactive()
		if d.handlers.OnExiting != nil {
			d.handlers.OnExiting(inst)
		}
	}
}

func programKnown(inst *instance.Instance, bank, program int) bool {
	for _, p := range inst.Programs {
		if p.Bank == bank && p.Program == program {
			return true
		}
	}
	return false
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

func asFloat(v interface{}) (float32, bool) {
	switch n := v.(type) {
	case float32:
		return n, true
	case float64:
		return float32(n), true
	default:
		return 0, false
	}
}
