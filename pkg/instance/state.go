// Package instance implements the instance table: fixed-capacity,
// exclusively engine-owned plugin instances bound one-to-one to a MIDI
// channel, per spec.md §3/§4.10.
package instance

import "fmt"

// State is a point in an instance's lifecycle:
// Uninstantiated -> Instantiated -> Active -> Inactive -> Released.
// Only Active allows block calls; SelectProgram, Configure, and direct
// port writes are only valid from Active.
type State int

const (
	Uninstantiated State = iota
	Instantiated
	Active
	Inactive
	Released
)

func (s State) String() string {
	switch s {
	case Uninstantiated:
		return "uninstantiated"
	case Instantiated:
		return "instantiated"
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

var validTransitions = map[State][]State{
	Uninstantiated: {Instantiated},
	Instantiated:   {Active, Released},
	Active:         {Inactive},
	Inactive:       {Released},
	Released:       {},
}

// Enter transitions to next, returning an error if the transition isn't
// legal from the current state.
func (i *Instance) Enter(next State) error {
	for _, ok := range validTransitions[i.state] {
		if ok == next {
			i.state = next
			return nil
		}
	}
	return fmt.Errorf("instance %s: illegal transition %s -> %s", i.Name, i.state, next)
}

// State returns the instance's current lifecycle state.
func (i *Instance) State() State { return i.state }
