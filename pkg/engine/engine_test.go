package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/justyntemme/dssihost/pkg/instance"
	"github.com/justyntemme/dssihost/pkg/plugin"
)

func TestReorderContiguousByDescriptorGroupsSharedDescriptors(t *testing.T) {
	descA := &plugin.Descriptor{Name: "a"}
	descB := &plugin.Descriptor{Name: "b"}

	a0 := instance.New(0, "a-0", 0, descA)
	b0 := instance.New(1, "b-0", 1, descB)
	a1 := instance.New(2, "a-1", 2, descA)

	byDescriptor := map[*plugin.Descriptor][]*instance.Instance{
		descA: {a0, a1},
		descB: {b0},
	}

	out := reorderContiguousByDescriptor([]*instance.Instance{a0, b0, a1}, byDescriptor)

	require.Equal(t, []*instance.Instance{a0, a1, b0}, out)
}

func TestReorderContiguousByDescriptorPreservesSingleGroupOrder(t *testing.T) {
	desc := &plugin.Descriptor{Name: "only"}
	i0 := instance.New(0, "only-0", 0, desc)
	i1 := instance.New(1, "only-1", 1, desc)

	byDescriptor := map[*plugin.Descriptor][]*instance.Instance{desc: {i0, i1}}
	out := reorderContiguousByDescriptor([]*instance.Instance{i0, i1}, byDescriptor)

	require.Equal(t, []*instance.Instance{i0, i1}, out)
}

func TestChannelMapIndexesByChannel(t *testing.T) {
	desc := &plugin.Descriptor{Name: "synth"}
	i0 := instance.New(0, "synth-0", 0, desc)
	i1 := instance.New(1, "synth-1", 3, desc)

	m := channelMap([]*instance.Instance{i0, i1})

	require.Same(t, i0, m[0])
	require.Same(t, i1, m[3])
	require.Len(t, m, 2)
}
