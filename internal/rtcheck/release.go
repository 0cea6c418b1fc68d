//go:build !debug

package rtcheck

func markAudioThread()                       {}
func assertAudioThread(operation string)     {}
func assertNotAudioThread(operation string)  {}
