package midisource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeRawRejectsNonStatusByte(t *testing.T) {
	_, ok := EncodeRaw([4]byte{0x10, 0, 0, 0})
	require.False(t, ok)
}

func TestEncodeRawDecodesNoteOn(t *testing.T) {
	ev, ok := EncodeRaw([4]byte{0x91, 60, 100, 0})
	require.True(t, ok)
	require.Equal(t, uint8(1), ev.Channel)
	require.Equal(t, byte(0x90), ev.Status)
	require.Equal(t, byte(60), ev.Data1)
	require.Equal(t, byte(100), ev.Data2)
}

func TestNormalizeNoteOnZeroVelocityBecomesNoteOff(t *testing.T) {
	ev := NormalizeNoteOn(Event{Status: 0x90, Data1: 60, Data2: 0})
	require.Equal(t, byte(0x80), ev.Status)
}

func TestNormalizeNoteOnNonZeroVelocityUnchanged(t *testing.T) {
	ev := NormalizeNoteOn(Event{Status: 0x90, Data1: 60, Data2: 64})
	require.Equal(t, byte(0x90), ev.Status)
}

func TestFakeSourcePollReturnsPushedEvent(t *testing.T) {
	f := NewFake(4)
	f.Push(Event{Channel: 2, Status: 0x90, Data1: 1, Data2: 2})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev, err := f.Poll(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, ev.Channel)
}

func TestFakeSourcePollRespectsContextCancellation(t *testing.T) {
	f := NewFake(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Poll(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFakeSourcePollReturnsErrClosedAfterClose(t *testing.T) {
	f := NewFake(1)
	require.NoError(t, f.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := f.Poll(ctx)
	require.ErrorIs(t, err, ErrClosed)
}
