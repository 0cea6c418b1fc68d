//go:build jack

package main

import (
	"github.com/justyntemme/dssihost/pkg/audioserver"
	"github.com/justyntemme/dssihost/pkg/audioserver/jackserver"
)

func newAudioServer(clientName string) (audioserver.Server, error) {
	return jackserver.Open(clientName)
}
