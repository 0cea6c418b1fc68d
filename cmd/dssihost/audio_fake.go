//go:build !jack

package main

import (
	"github.com/justyntemme/dssihost/pkg/audioserver"
	"github.com/justyntemme/dssihost/pkg/audioserver/fakeserver"
)

// defaultSampleRate and defaultBlockSize stand in for what a real JACK
// connection would report, when the host is built without the jack tag.
const (
	defaultSampleRate = 48000.0
	defaultBlockSize  = 1024
)

func newAudioServer(clientName string) (audioserver.Server, error) {
	return fakeserver.New(defaultSampleRate, defaultBlockSize), nil
}
