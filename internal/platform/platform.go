// Package platform implements spec.md component F's registry: a map from
// system name to the Backend that seeds builtins for it, mirroring
// cmd_local/compile/main.go's archInits map from GOARCH to Init(*gc.Arch).
// The concrete backends live in the mos6502, gameboy, and spc700
// subpackages; each registers itself here from an init function, exactly
// as cmd_local/compile/internal/{arch}/galign.go's Init functions are
// wired into archInits by hand in main.go - except here registration is
// self-service via init(), since a CLI with three backends linked in
// doesn't need main.go's single hand-maintained table to stay in sync with
// the import list.
package platform

import (
	"fmt"
	"sort"
	"sync"

	"github.com/anvil-lang/anvil/internal/builtins"
)

// Backend is re-exported so callers only need to import this package to
// both register a backend and look one up, even though the interface
// itself is declared in internal/builtins (to avoid an import cycle: this
// package imports internal/builtins, not the other way around).
type Backend = builtins.Backend

var (
	mu       sync.Mutex
	registry = map[string]Backend{}
)

// Register adds backend under name, for use from a backend package's
// init() function. It panics on a duplicate name, since that can only mean
// two backend packages were built with the same system name - a build-time
// programming error, not a runtime condition a caller can recover from.
func Register(name string, backend Backend) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("platform: backend %q already registered", name))
	}
	registry[name] = backend
}

// Lookup returns the backend registered under name, or ok=false if none
// was (spec.md §6 CLI surface: "`-m NAME` / `--system=NAME`: platform
// selector").
func Lookup(name string) (Backend, bool) {
	mu.Lock()
	defer mu.Unlock()
	b, ok := registry[name]
	return b, ok
}

// Names returns every registered system name, sorted, for `--help` output
// and error messages listing valid choices.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// InferFromExtension maps an output file extension to a system name, for
// spec.md §6's "`-m NAME`... if omitted, inferred from output extension."
func InferFromExtension(ext string) (string, bool) {
	switch ext {
	case ".nes":
		return "nes", true
	case ".gb", ".gbc":
		return "gameboy", true
	case ".spc":
		return "spc700", true
	case ".sms":
		return "sms", true
	default:
		return "", false
	}
}
