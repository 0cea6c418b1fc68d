package shutdown

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/justyntemme/dssihost/internal/logging"
	"github.com/justyntemme/dssihost/pkg/instance"
	"github.com/justyntemme/dssihost/pkg/plugin"
)

func newActiveInstance(t *testing.T) (*instance.Instance, *int, *int) {
	deactivated := 0
	cleaned := 0
	c := &plugin.Capability{
		Deactivate: func(h plugin.Handle) { deactivated++ },
		Cleanup:    func(h plugin.Handle) { cleaned++ },
	}
	desc := &plugin.Descriptor{Name: "synth", Cap: c}
	inst := instance.New(0, "synth-1", 0, desc)
	require.NoError(t, inst.Enter(instance.Instantiated))
	require.NoError(t, inst.Enter(instance.Active))
	return inst, &deactivated, &cleaned
}

func TestShutdownDeactivatesAndReleasesActiveInstance(t *testing.T) {
	inst, deactivated, cleaned := newActiveInstance(t)
	co := New(logging.New(false))
	co.RegisterInstances([]*instance.Instance{inst})

	co.Shutdown()

	require.Equal(t, 1, *deactivated)
	require.Equal(t, 1, *cleaned)
	require.Equal(t, instance.Released, inst.State())
}

func TestShutdownRunsClosersBeforeInstanceTeardown(t *testing.T) {
	inst, _, _ := newActiveInstance(t)
	co := New(logging.New(false))
	co.RegisterInstances([]*instance.Instance{inst})

	var order []string
	co.RegisterCloser(func() error {
		order = append(order, "closer")
		require.NotEqual(t, instance.Released, inst.State())
		return nil
	})

	co.Shutdown()

	require.Equal(t, []string{"closer"}, order)
	require.Equal(t, instance.Released, inst.State())
}

func TestShutdownIsIdempotent(t *testing.T) {
	inst, deactivated, _ := newActiveInstance(t)
	co := New(logging.New(false))
	co.RegisterInstances([]*instance.Instance{inst})

	co.Shutdown()
	co.Shutdown()

	require.Equal(t, 1, *deactivated)
}

func TestShutdownToleratesFailingCloser(t *testing.T) {
	inst, _, _ := newActiveInstance(t)
	co := New(logging.New(false))
	co.RegisterInstances([]*instance.Instance{inst})
	co.RegisterCloser(func() error { return errors.New("boom") })

	require.NotPanics(t, func() { co.Shutdown() })
	require.Equal(t, instance.Released, inst.State())
}

func TestAllInactiveRequiresEveryInstanceInactive(t *testing.T) {
	inst1, _, _ := newActiveInstance(t)
	inst2, _, _ := newActiveInstance(t)
	co := New(logging.New(false))
	co.RegisterInstances([]*instance.Instance{inst1, inst2})

	require.False(t, co.AllInactive())

	inst1.SetInactive()
	require.False(t, co.AllInactive())

	inst2.SetInactive()
	require.True(t, co.AllInactive())
}

func TestAllInactiveFalseWithNoInstances(t *testing.T) {
	co := New(logging.New(false))
	require.False(t, co.AllInactive())
}
