// Package rtcheck asserts which goroutine is allowed to touch which data,
// catching accidental audio-thread blocking or non-audio-thread mutation
// of audio-path state during development.
//
// The debug/release split mirrors the teacher's pkg/thread package: in a
// `-tags debug` build the assertions panic on violation; in a normal build
// they compile away to nothing so the real-time path pays no cost.
package rtcheck

// MarkAudioThread records the calling goroutine as the audio callback's
// thread. Call once, from inside the process callback (the engine does so
// on the first block).
func MarkAudioThread() { markAudioThread() }

// AssertAudioThread panics (debug builds only) if the caller is not the
// goroutine that called MarkAudioThread.
func AssertAudioThread(operation string) { assertAudioThread(operation) }

// AssertNotAudioThread panics (debug builds only) if the caller is the
// audio thread; used on the MIDI reader and OSC goroutines' slow paths
// to make sure a blocking call never crept onto the audio thread.
func AssertNotAudioThread(operation string) { assertNotAudioThread(operation) }
