package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSearchPath is consulted when the engine-supplied search path
// (the --path command-line flag) is empty, per spec.md §4.1.
var DefaultSearchPath = []string{
	"/usr/local/lib/dssi",
	"/usr/lib/dssi",
	defaultUserPath(),
}

func defaultUserPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".dssi")
}

// Registry resolves plugin Specs to Descriptors, deduplicating opened
// libraries and the descriptors extracted from them.
type Registry struct {
	loader      *Loader
	searchPath  []string
	descriptors map[string][]*Descriptor // library path -> its descriptors
}

// NewRegistry builds a Registry. searchPathEnv is the colon-separated
// value of the engine-supplied search variable (may be empty, in which
// case DefaultSearchPath is used).
func NewRegistry(searchPathEnv string) *Registry {
	var path []string
	if searchPathEnv != "" {
		path = strings.Split(searchPathEnv, ":")
	} else {
		path = DefaultSearchPath
	}
	return &Registry{
		loader:      NewLoader(),
		searchPath:  path,
		descriptors: make(map[string][]*Descriptor),
	}
}

// Resolve locates and returns the Descriptor matching spec.Library and
// spec.Label, loading the library if it has not been loaded already. An
// absolute library path bypasses the search path.
func (r *Registry) Resolve(spec Spec) (*Descriptor, error) {
	libPath, err := r.findLibrary(spec.Library)
	if err != nil {
		return nil, err
	}

	descs, ok := r.descriptors[libPath]
	if !ok {
		descs, err = r.loader.Open(libPath)
		if err != nil {
			return nil, err
		}
		r.descriptors[libPath] = descs
	}

	if spec.Label == "" {
		return descs[0], nil
	}
	for _, d := range descs {
		if d.Label == spec.Label {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s:%s", ErrLabelNotFound, spec.Library, spec.Label)
}

// findLibrary resolves a library name to a path: absolute paths are used
// verbatim (after existence check); every other name, including a
// relative one carrying a directory, is joined to each entry of the
// search path in turn.
func (r *Registry) findLibrary(name string) (string, error) {
	candidate := name
	if !strings.HasSuffix(candidate, ".so") {
		candidate += ".so"
	}

	if filepath.IsAbs(candidate) {
		if _, err := os.Stat(candidate); err != nil {
			return "", fmt.Errorf("%w: %s", ErrLibraryNotFound, candidate)
		}
		return candidate, nil
	}

	for _, dir := range r.searchPath {
		if dir == "" {
			continue
		}
		full := filepath.Join(dir, candidate)
		if _, err := os.Stat(full); err == nil {
			return full, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrLibraryNotFound, name)
}

// LibraryDir returns the directory a resolved library path lives in,
// used by §6.5's front-end search (<dir-of-foo>/foo/).
func LibraryDir(libPath string) string {
	return filepath.Dir(libPath)
}
