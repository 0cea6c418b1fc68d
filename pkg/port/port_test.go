package port

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/justyntemme/dssihost/pkg/plugin"
)

func TestDefaultValueFixedConstants(t *testing.T) {
	require.EqualValues(t, 0, DefaultValue(plugin.PortHint{Default: plugin.Default0}, 44100))
	require.EqualValues(t, 1, DefaultValue(plugin.PortHint{Default: plugin.Default1}, 44100))
	require.EqualValues(t, 100, DefaultValue(plugin.PortHint{Default: plugin.Default100}, 44100))
	require.EqualValues(t, 440, DefaultValue(plugin.PortHint{Default: plugin.Default440}, 44100))
}

func TestDefaultValueScaledInterpolations(t *testing.T) {
	hint := plugin.PortHint{BoundedBelow: true, BoundedAbove: true, Lower: 0, Upper: 100}

	hint.Default = plugin.DefaultLow
	require.InDelta(t, 25, DefaultValue(hint, 44100), 0.001)

	hint.Default = plugin.DefaultMiddle
	require.InDelta(t, 50, DefaultValue(hint, 44100), 0.001)

	hint.Default = plugin.DefaultHigh
	require.InDelta(t, 75, DefaultValue(hint, 44100), 0.001)
}

func TestDefaultValueSampleRateRelative(t *testing.T) {
	hint := plugin.PortHint{
		BoundedAbove:  true,
		Upper:         0.5,
		SampleRateRel: true,
		Default:       plugin.DefaultMaximum,
	}
	require.InDelta(t, 22050, DefaultValue(hint, 44100), 0.001)
}

func TestDefaultValueNoHintSpanningZero(t *testing.T) {
	hint := plugin.PortHint{BoundedBelow: true, BoundedAbove: true, Lower: -1, Upper: 1}
	require.EqualValues(t, 0, DefaultValue(hint, 44100))
}

func TestDefaultValueNoHintBoundedBelowOnly(t *testing.T) {
	hint := plugin.PortHint{BoundedBelow: true, Lower: 5}
	require.EqualValues(t, 5, DefaultValue(hint, 44100))
}

func TestMapControllerValueBoundedBothSides(t *testing.T) {
	hint := plugin.PortHint{BoundedBelow: true, BoundedAbove: true, Lower: 0, Upper: 127}
	require.InDelta(t, 0, MapControllerValue(0, hint), 0.01)
	require.InDelta(t, 127, MapControllerValue(127, hint), 0.01)
	require.InDelta(t, 63.5, MapControllerValue(63, hint), 1)
}

func TestMapControllerValueBoundedAboveOnly(t *testing.T) {
	hint := plugin.PortHint{BoundedAbove: true, Upper: 200}
	require.InDelta(t, 200-127+10, MapControllerValue(10, hint), 0.01)
}

func TestMapControllerValueBoundedBelowOnly(t *testing.T) {
	hint := plugin.PortHint{BoundedBelow: true, Lower: 10}
	require.InDelta(t, 20, MapControllerValue(10, hint), 0.01)
}

func TestMapControllerValueUnbounded(t *testing.T) {
	require.InDelta(t, 64, MapControllerValue(64, plugin.PortHint{}), 0.01)
}

func TestAtomicFloat32RoundTripsThroughBits(t *testing.T) {
	var f AtomicFloat32
	f.Store(-3.5)
	require.InDelta(t, -3.5, f.Load(), 0.0001)

	f.Store(0)
	require.Zero(t, f.Load())
}

func TestAtomicFloat32ConcurrentStoresNeverTear(t *testing.T) {
	var f AtomicFloat32
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			f.Store(1.5)
		}
	}()
	for i := 0; i < 1000; i++ {
		f.Store(2.5)
	}
	<-done

	v := f.Load()
	require.True(t, v == 1.5 || v == 2.5)
}
