package instance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/justyntemme/dssihost/pkg/plugin"
)

func TestNewInitializesSentinels(t *testing.T) {
	inst := New(0, "synth-1", 0, &plugin.Descriptor{Name: "Synth"})

	require.Equal(t, Uninstantiated, inst.State())
	require.EqualValues(t, NoMapping, inst.PendingBankMSB)
	require.EqualValues(t, NoMapping, inst.PendingBankLSB)
	require.EqualValues(t, NoMapping, inst.PendingProgram)
	for _, cc := range inst.ControllerMap {
		require.EqualValues(t, NoMapping, cc)
	}
	require.False(t, inst.HasPendingProgram())
	require.False(t, inst.Inactive())
}

func TestStateTransitions(t *testing.T) {
	inst := New(0, "synth-1", 0, &plugin.Descriptor{})

	require.NoError(t, inst.Enter(Instantiated))
	require.NoError(t, inst.Enter(Active))
	require.NoError(t, inst.Enter(Inactive))
	require.NoError(t, inst.Enter(Released))

	err := inst.Enter(Active)
	require.Error(t, err)
	require.Contains(t, err.Error(), "illegal transition")
}

func TestIllegalSkipTransitionRejected(t *testing.T) {
	inst := New(0, "synth-1", 0, &plugin.Descriptor{})
	err := inst.Enter(Active)
	require.Error(t, err)
}

func TestCommitPendingProgramPreservesUnsetBankHalf(t *testing.T) {
	inst := New(0, "synth-1", 0, &plugin.Descriptor{})
	inst.CurrentBank = 5*128 + 3 // msb=5, lsb=3

	// Only LSB changes; MSB half of the bank should be preserved.
	inst.PendingBankLSB = 9
	inst.PendingProgram = 2

	c := &plugin.Capability{}
	inst.CommitPendingProgram(c)

	require.EqualValues(t, 5*128+9, inst.CurrentBank)
	require.EqualValues(t, 2, inst.CurrentProgram)
	require.False(t, inst.HasPendingProgram())
	require.True(t, inst.UINeedsProgramUpdate)
}

func TestCommitPendingProgramNoopWithoutPendingProgram(t *testing.T) {
	inst := New(0, "synth-1", 0, &plugin.Descriptor{})
	inst.CurrentBank = 42
	inst.CurrentProgram = 7

	inst.CommitPendingProgram(&plugin.Capability{})

	require.EqualValues(t, 42, inst.CurrentBank)
	require.EqualValues(t, 7, inst.CurrentProgram)
}

func TestRebuildProgramsWithoutGetProgramClearsList(t *testing.T) {
	inst := New(0, "synth-1", 0, &plugin.Descriptor{})
	inst.Programs = []plugin.Program{{Bank: 0, Program: 0, Name: "stale"}}

	inst.RebuildPrograms(&plugin.Capability{})

	require.Nil(t, inst.Programs)
}

func TestRebuildProgramsStopsAtFirstMiss(t *testing.T) {
	inst := New(0, "synth-1", 0, &plugin.Descriptor{})

	calls := 0
	c := &plugin.Capability{
		GetProgram: func(h plugin.Handle, index int) (plugin.Program, bool) {
			calls++
			if index >= 2 {
				return plugin.Program{}, false
			}
			return plugin.Program{Bank: 0, Program: index, Name: "p"}, true
		},
	}

	inst.RebuildPrograms(c)

	require.Len(t, inst.Programs, 2)
	require.Equal(t, 3, calls)
}
