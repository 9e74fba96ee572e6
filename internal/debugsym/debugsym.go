// Package debugsym implements spec.md component J: given the definition
// table and output layout, emit a symbol-map file for external debuggers.
//
// Grounded on `cmd_local/buildid/buildid.go`'s read/hash/rewrite pipeline,
// generalized from "find and replace a build-ID note in an object file" to
// "emit a symbol table keyed by resolved addresses, fingerprinted against
// the image it describes".
package debugsym

import (
	"fmt"
	"io"
	"sort"

	"github.com/anvil-lang/anvil/internal/fingerprint"
	"github.com/anvil-lang/anvil/internal/sym"
)

// Format selects the on-disk symbol-map syntax Write emits, chosen by the
// `-s/--symbol-format` flag (spec.md §6).
type Format int

const (
	// FormatPlain is "name = $addr" lines, one per placed definition.
	FormatPlain Format = iota
	// FormatFCEUX is "bank:address name" lines (hex, the absolute address
	// masked to 16 bits), the layout consumed
	// by the FCEUX/Mesen NES debugger family's .nl/.sym loaders.
	FormatFCEUX
)

// FormatByName resolves a `-s` flag value to a Format.
func FormatByName(name string) (Format, bool) {
	switch name {
	case "plain":
		return FormatPlain, true
	case "fceux":
		return FormatFCEUX, true
	default:
		return 0, false
	}
}

// entry is one exported symbol: a placed function or variable.
type entry struct {
	name   string
	bank   string
	offset int64
	addr   int64
}

// Write emits a symbol map for every function/var/bank definition in defs
// that has a resolved address, sorted by absolute address for a stable,
// diffable file (spec.md §8 property 7's determinism requirement extends
// to debug output, not just the ROM image). image is hashed with
// internal/fingerprint and recorded in a header comment so a symbol file
// can be checked against the ROM it was generated alongside.
func Write(w io.Writer, format Format, defs []*sym.Definition, image []byte) error {
	entries := collect(defs)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].addr != entries[j].addr {
			return entries[i].addr < entries[j].addr
		}
		return entries[i].name < entries[j].name
	})

	if _, err := fmt.Fprintf(w, "# anvil symbol map, image %s\n", fingerprint.HashToString(image)); err != nil {
		return err
	}
	for _, e := range entries {
		var err error
		switch format {
		case FormatFCEUX:
			_, err = fmt.Fprintf(w, "%02X:%04X %s\n", bankIndexPlaceholder, e.addr&0xFFFF, e.name)
		default:
			_, err = fmt.Fprintf(w, "%s = $%04X\n", e.name, e.addr)
		}
		if err != nil {
			return fmt.Errorf("debugsym: writing %q: %w", e.name, err)
		}
	}
	return nil
}

// bankIndexPlaceholder is the bank index written in every FCEUX line. It is
// always 0: Write is not given the PRG bank order that internal/container
// builds, and cmd/anvilc/main.go passes none.
const bankIndexPlaceholder = 0

func collect(defs []*sym.Definition) []entry {
	var out []entry
	for _, d := range defs {
		if d.Address == nil || d.Address.Absolute == nil {
			continue
		}
		bankName := ""
		if d.Address.Bank != nil {
			bankName = d.Address.Bank.Name
		}
		rel := int64(0)
		if d.Address.Relative != nil {
			rel = *d.Address.Relative
		}
		out = append(out, entry{
			name:   qualifiedName(d),
			bank:   bankName,
			offset: rel,
			addr:   *d.Address.Absolute,
		})
	}
	return out
}

// qualifiedName returns the definition's unqualified name. No namespace
// prefix is added, so two functions named `update` in different namespaces
// appear under the same name in the symbol file.
func qualifiedName(d *sym.Definition) string {
	name := d.Name.Text()
	// Parent scopes do not carry their own name back-reference (spec.md's
	// Scope has no owning Definition pointer, only the reverse), so the
	// flat name is emitted as-is; namespace-qualified symbol names are a
	// cosmetic nicety this minimal exporter does not attempt.
	return name
}
