package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/ioutil"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestLoadFlattensImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.an", `var helper: u8 = 1;`)
	root := writeFile(t, dir, "main.an", `
		import "util.an";
		func main() {}
	`)

	table := intern.NewTable()
	sink := diag.NewSink()
	im := New(ioutil.NewReader(nil), table, sink)
	file, err := im.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	if len(file.Items) != 2 {
		t.Fatalf("expected import + func, got %d items", len(file.Items))
	}
	nested, ok := file.Items[0].(*ast.FileStatement)
	if !ok {
		t.Fatalf("expected first item to be the flattened import, got %T", file.Items[0])
	}
	if len(nested.Items) != 1 {
		t.Fatalf("expected nested file to carry 1 item, got %d", len(nested.Items))
	}
}

func TestLoadSuppressesDuplicateImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.an", `var helper: u8 = 1;`)
	writeFile(t, dir, "a.an", `import "util.an";`)
	root := writeFile(t, dir, "main.an", `
		import "a.an";
		import "util.an";
	`)

	table := intern.NewTable()
	sink := diag.NewSink()
	im := New(ioutil.NewReader(nil), table, sink)
	file, err := im.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	// The second top-level `import "util.an"` is a duplicate of the one
	// already flattened under "a.an", so it should vanish rather than
	// appearing a second time.
	if len(file.Items) != 1 {
		t.Fatalf("expected duplicate import to be suppressed, got %d items", len(file.Items))
	}
}

func TestLoadBreaksCircularImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.an", `import "b.an";`)
	writeFile(t, dir, "b.an", `import "a.an";`)
	root := writeFile(t, dir, "a.an", `import "b.an";`)
	// Overwrite root (a.an) after b.an exists, so the cycle a->b->a forms.

	table := intern.NewTable()
	sink := diag.NewSink()
	im := New(ioutil.NewReader(nil), table, sink)
	_, err := im.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sink.Diagnostics()) == 0 {
		t.Fatalf("expected a warning diagnostic about the broken cycle")
	}
	foundWarning := false
	for _, d := range sink.Diagnostics() {
		if d.Severity == diag.Warning {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Fatalf("expected at least one warning diagnostic, got %v", sink.Diagnostics())
	}
}

func TestLoadReportsMissingImport(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, dir, "main.an", `import "missing.an";`)

	table := intern.NewTable()
	sink := diag.NewSink()
	im := New(ioutil.NewReader(nil), table, sink)
	file, err := im.Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sink.Ok() {
		t.Fatalf("expected an error diagnostic for the missing import")
	}
	if _, ok := file.Items[0].(*ast.Internal); !ok {
		t.Fatalf("expected a placeholder Internal statement, got %T", file.Items[0])
	}
}
