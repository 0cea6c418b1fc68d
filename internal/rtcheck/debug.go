//go:build debug

package rtcheck

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

var audioGoroutineID atomic.Uint64

func markAudioThread() {
	audioGoroutineID.Store(goroutineID())
}

func assertAudioThread(operation string) {
	if want := audioGoroutineID.Load(); want != 0 && want != goroutineID() {
		panic(fmt.Sprintf("rtcheck: %s called off the audio thread", operation))
	}
}

func assertNotAudioThread(operation string) {
	if want := audioGoroutineID.Load(); want != 0 && want == goroutineID() {
		panic(fmt.Sprintf("rtcheck: %s must not be called from the audio thread", operation))
	}
}

// goroutineID extracts the numeric goroutine ID from a stack trace. It is
// a debug-only convenience, never used on the real-time path in release
// builds.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	id := uint64(0)
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
