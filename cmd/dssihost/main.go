// Command dssihost is a command-line DSSI/LADSPA synth plugin host: it
// loads one or more plugin libraries, wires their ports and MIDI
// channels, and drives them from a real-time audio server while exposing
// an OSC control plane for front-end GUIs. See SPEC_FULL.md for the full
// component breakdown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/justyntemme/dssihost/internal/config"
	"github.com/justyntemme/dssihost/internal/errs"
	"github.com/justyntemme/dssihost/internal/logging"
	"github.com/justyntemme/dssihost/pkg/engine"
	"github.com/justyntemme/dssihost/pkg/midisource"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dssihost: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	binaryName := os.Args[0]
	cfg, err := config.Parse(binaryName, os.Args[1:])
	if err != nil {
		return err
	}

	log := logging.New(cfg.Verbose)

	audioSrv, err := newAudioServer(clientName(binaryName))
	if err != nil {
		return errs.New(errs.Resource, "main.run", err)
	}

	midiSrc, err := openMIDISource(log)
	if err != nil {
		return errs.New(errs.Resource, "main.run", err)
	}

	eng, err := engine.New(cfg, audioSrv, midiSrc, log)
	if err != nil {
		// Fatal error classes must never reach Activate(); engine.New
		// returns before any instance is activated on a real error.
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received termination signal", "signal", sig)
		cancel()
	}()

	log.Info("dssihost starting", "instances", len(cfg.Specs), "osc-addr", cfg.OSCAddr)
	return eng.Run(ctx)
}

func clientName(binaryName string) string {
	return "dssihost-" + filepath.Base(binaryName)
}

func openMIDISource(log *logging.Logger) (midisource.Source, error) {
	src, err := midisource.OpenFirstInput()
	if err != nil {
		log.Warn("no MIDI input available, running with OSC-only control", "err", err)
		return midisource.NewFake(midisource.DefaultFakeDepth), nil
	}
	return src, nil
}
