package debugsym

import (
	"bytes"
	"strings"
	"testing"

	"github.com/anvil-lang/anvil/internal/bank"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/sym"
)

func placedDef(table *intern.Table, name string, addr int64) *sym.Definition {
	a := addr
	return &sym.Definition{
		Kind:    sym.KindFunc,
		Name:    table.Intern(name),
		Address: &bank.Address{Absolute: &a},
	}
}

func TestFormatByName(t *testing.T) {
	if f, ok := FormatByName("plain"); !ok || f != FormatPlain {
		t.Fatalf("expected plain -> FormatPlain, got %v, %v", f, ok)
	}
	if f, ok := FormatByName("fceux"); !ok || f != FormatFCEUX {
		t.Fatalf("expected fceux -> FormatFCEUX, got %v, %v", f, ok)
	}
	if _, ok := FormatByName("bogus"); ok {
		t.Fatalf("expected an unknown format name to fail")
	}
}

func TestWritePlainSortsByAddress(t *testing.T) {
	table := intern.NewTable()
	defs := []*sym.Definition{
		placedDef(table, "late", 0x9000),
		placedDef(table, "early", 0x8000),
	}
	var buf bytes.Buffer
	if err := Write(&buf, FormatPlain, defs, []byte{0x01, 0x02}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected a header line plus two entries, got %d: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "# anvil symbol map, image ") {
		t.Fatalf("expected a fingerprint header, got %q", lines[0])
	}
	if lines[1] != "early = $8000" {
		t.Fatalf("expected the lower address first, got %q", lines[1])
	}
	if lines[2] != "late = $9000" {
		t.Fatalf("expected the higher address second, got %q", lines[2])
	}
}

func TestWriteSkipsUnplacedDefinitions(t *testing.T) {
	table := intern.NewTable()
	unplaced := &sym.Definition{Kind: sym.KindFunc, Name: table.Intern("unplaced")}
	defs := []*sym.Definition{unplaced, placedDef(table, "placed", 0x8000)}
	var buf bytes.Buffer
	if err := Write(&buf, FormatPlain, defs, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if strings.Contains(buf.String(), "unplaced") {
		t.Fatalf("expected an unplaced definition to be omitted, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "placed = $8000") {
		t.Fatalf("expected the placed definition to appear, got %q", buf.String())
	}
}

func TestWriteFCEUXFormat(t *testing.T) {
	table := intern.NewTable()
	defs := []*sym.Definition{placedDef(table, "reset", 0x8000)}
	var buf bytes.Buffer
	if err := Write(&buf, FormatFCEUX, defs, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(buf.String(), "00:8000 reset\n") {
		t.Fatalf("expected an FCEUX-style bank:offset line, got %q", buf.String())
	}
}

func TestWriteFingerprintMatchesImage(t *testing.T) {
	table := intern.NewTable()
	defs := []*sym.Definition{placedDef(table, "reset", 0x8000)}
	image := []byte{0xA9, 0x05}

	var buf1, buf2 bytes.Buffer
	if err := Write(&buf1, FormatPlain, defs, image); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := Write(&buf2, FormatPlain, defs, []byte{0xFF}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	header1 := strings.SplitN(buf1.String(), "\n", 2)[0]
	header2 := strings.SplitN(buf2.String(), "\n", 2)[0]
	if header1 == header2 {
		t.Fatalf("expected symbol files for different images to carry different fingerprints")
	}
}
