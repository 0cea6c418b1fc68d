// Package config parses the host's command-line surface, spec.md §6.4: a
// positional grammar of plugin specifications (not expressible with
// flag/pflag's long-option model) plus pflag for the conventional flags
// (-v/--verbose, --osc-addr, --path, --config), matching the pack's
// common CLI pattern of leaning on spf13/pflag for conventional flags.
package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/justyntemme/dssihost/internal/errs"
	"github.com/justyntemme/dssihost/pkg/plugin"
)

// Config is the parsed command line, optionally overlaid with settings
// from a --config YAML file for the fields with no natural flag form.
type Config struct {
	Specs      []plugin.Spec
	Verbose    bool
	OSCAddr    string
	SearchPath string

	RingCapacity          int
	FrontEndLaunchTimeout time.Duration
}

// DefaultOSCAddr is used when the engine doesn't override it.
const DefaultOSCAddr = "localhost:9000"

// Parse interprets args (normally os.Args[1:]) per spec.md §6.4: each
// positional token is a library spec, optionally prefixed `-<N>` to set
// the next library's repetition count, optionally suffixed `:label`.
// binaryName is argv[0]; its base name is used for the single-library
// special case.
func Parse(binaryName string, args []string) (*Config, error) {
	fs := flag.NewFlagSet("dssihost", flag.ContinueOnError)
	verbose := fs.BoolP("verbose", "v", false, "enable verbose logging")
	oscAddr := fs.String("osc-addr", DefaultOSCAddr, "OSC listen address")
	searchPath := fs.String("path", "", "colon-separated plugin search path")
	configFile := fs.String("config", "", "optional YAML file overriding ring capacity and front-end launch timeout")

	if err := fs.Parse(args); err != nil {
		return nil, errs.Wrapf(errs.Config, "config.Parse", "%v", err)
	}

	cfg := &Config{
		Verbose:               *verbose,
		OSCAddr:               *oscAddr,
		SearchPath:            *searchPath,
		RingCapacity:          DefaultRingCapacity,
		FrontEndLaunchTimeout: DefaultFrontEndLaunchTimeout,
	}
	if err := loadFile(*configFile, cfg); err != nil {
		return nil, err
	}

	positional := fs.Args()
	if len(positional) == 0 {
		if spec, ok := singleLibrarySpec(binaryName); ok {
			cfg.Specs = []plugin.Spec{spec}
			return cfg, nil
		}
		return nil, errs.Wrapf(errs.Config, "config.Parse", "no plugin specifications given")
	}

	specs, err := parseSpecs(positional)
	if err != nil {
		return nil, err
	}
	cfg.Specs = specs
	return cfg, nil
}

func parseSpecs(tokens []string) ([]plugin.Spec, error) {
	var specs []plugin.Spec
	repetition := 1

	for _, tok := range tokens {
		if strings.HasPrefix(tok, "-") && len(tok) > 1 {
			n, err := strconv.Atoi(tok[1:])
			if err != nil || n <= 0 {
				return nil, errs.Wrapf(errs.Config, "config.parseSpecs", "invalid repetition count %q", tok)
			}
			repetition = n
			continue
		}

		library, label := tok, ""
		if idx := strings.LastIndex(tok, ":"); idx >= 0 {
			library, label = tok[:idx], tok[idx+1:]
		}

		specs = append(specs, plugin.Spec{Library: library, Label: label, Repetition: repetition})
		repetition = 1
	}

	if len(specs) == 0 {
		return nil, errs.Wrapf(errs.Config, "config.parseSpecs", "no plugin specifications given")
	}
	return specs, nil
}

// singleLibrarySpec implements §6.4's special case: when argv[0]'s base
// name differs from "dssihost", treat the invocation as running that one
// library. Whether the library resolves is not checked here; a name that
// does not resolve fails later, in the registry.
func singleLibrarySpec(binaryName string) (plugin.Spec, bool) {
	base := filepath.Base(binaryName)
	if base == "" || base == "dssihost" {
		return plugin.Spec{}, false
	}
	return plugin.Spec{Library: base, Repetition: 1}, true
}
