package compiler

import (
	"testing"

	"github.com/anvil-lang/anvil/internal/builtins"
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/parser"
	"github.com/anvil-lang/anvil/internal/platform/gameboy"
	"github.com/anvil-lang/anvil/internal/platform/mos6502"
)

// compileSrc parses and compiles src end to end against backend, returning
// the resulting Program and whether every phase succeeded.
func compileSrc(t *testing.T, backend builtins.Backend, src string) (*Program, *diag.Sink) {
	t.Helper()
	table := intern.NewTable()
	sink := diag.NewSink()
	root := parser.Parse(table, sink, "test.an", "test.an", src)
	if !sink.Ok() {
		t.Fatalf("unexpected parse diagnostics: %v", sink.Diagnostics())
	}
	prog, _ := Compile(Config{Table: table, Sink: sink, Backend: backend}, root)
	return prog, sink
}

// TestCompileRegisterAssign is spec.md §8 scenario 1 run through the real
// pipeline (parse, declare, reduce, layout, emit) instead of a hand-built
// pattern.Registry.Select call, exercising operand.go's resolution of a
// source-level register identifier all the way down to the backend's
// namespaced pattern.Reg tag.
func TestCompileRegisterAssign(t *testing.T) {
	src := `
		bank code: rom @ 0x8000, 0x8000;
		in code {
			func main() {
				a = 5;
			}
		}
	`
	prog, sink := compileSrc(t, mos6502.New(), src)
	if !sink.Ok() {
		t.Fatalf("unexpected compile diagnostics: %v", sink.Diagnostics())
	}
	b := prog.BankByName["code"]
	if b == nil {
		t.Fatalf("expected bank %q in program", "code")
	}
	out := b.Bytes()
	if len(out) < 2 || out[0] != 0xA9 || out[1] != 0x05 {
		t.Fatalf("expected A9 05 at start of bank, got % X", out)
	}
}

// TestCompileNearBranchBackward is spec.md §8 scenario 2: a while loop's
// backedge (an unconditional goto back to the loop's top) must resolve to
// gameboy's 2-byte near JR through selectBranchAndEmit's relative-first
// candidate, not its 3-byte far JP, when the body is well within range.
func TestCompileNearBranchBackward(t *testing.T) {
	src := `
		bank code: rom @ 0x0150, 0x4000;
		in code {
			func main() {
				while a == 0 {
					a = 1;
				}
			}
		}
	`
	prog, sink := compileSrc(t, gameboy.New(), src)
	if !sink.Ok() {
		t.Fatalf("unexpected compile diagnostics: %v", sink.Diagnostics())
	}
	out := prog.BankByName["code"].Bytes()
	if len(out) < 2 {
		t.Fatalf("expected emitted bytes")
	}
	last2 := out[len(out)-2:]
	if last2[0] != 0x18 { // JR
		t.Fatalf("expected the backedge to end in a 2-byte near JR, got % X", out)
	}
}

// TestCompileExplicitLongForcesFarBranch exercises the parser's `long`
// distance hint: the same condition, compiled once with the default hint
// and once with `long`, must differ by exactly the one extra byte a far
// encoding costs over a near one, proving the hint actually reaches
// selectBranchAndEmit rather than being silently dropped.
func TestCompileExplicitLongForcesFarBranch(t *testing.T) {
	program := func(distance string) string {
		return `
			bank code: rom @ 0x0150, 0x4000;
			in code {
				func main() {
					if ` + distance + ` a == 0 {
						a = 1;
					}
				}
			}
		`
	}
	nearProg, sink := compileSrc(t, gameboy.New(), program(""))
	if !sink.Ok() {
		t.Fatalf("unexpected compile diagnostics: %v", sink.Diagnostics())
	}
	farProg, sink := compileSrc(t, gameboy.New(), program("long"))
	if !sink.Ok() {
		t.Fatalf("unexpected compile diagnostics: %v", sink.Diagnostics())
	}
	nearLen := len(nearProg.BankByName["code"].Bytes())
	farLen := len(farProg.BankByName["code"].Bytes())
	if farLen != nearLen+1 {
		t.Fatalf("expected `long` to widen the branch by exactly 1 byte, got near=%d far=%d", nearLen, farLen)
	}
}

// TestCompileExplicitShortOutOfRange exercises the parser's `short`
// distance hint forcing a hard error, rather than a silent widen to the far
// encoding, when the requested near branch cannot reach its target.
// Gameboy registers a far alternative for conditional branches, so the
// default hint over the same body must still succeed by widening; only the
// explicit `short` request turns the same out-of-range target into an
// error, proving the hint reaches selectBranchAndEmit's hard-error path.
func TestCompileExplicitShortOutOfRange(t *testing.T) {
	var body string
	for i := 0; i < 200; i++ {
		body += "a = 1;\n"
	}
	program := func(distance string) string {
		return `
			bank code: rom @ 0x0150, 0x4000;
			in code {
				func main() {
					while ` + distance + ` a == 0 {
						` + body + `
					}
				}
			}
		`
	}

	if _, sink := compileSrc(t, gameboy.New(), program("")); !sink.Ok() {
		t.Fatalf("expected the default-hint, out-of-range loop to widen to a far branch and succeed, got: %v", sink.Diagnostics())
	}

	_, sink := compileSrc(t, gameboy.New(), program("short"))
	if sink.Ok() {
		t.Fatalf("expected a short-branch-out-of-range diagnostic, got none")
	}
	found := false
	for _, d := range sink.Diagnostics() {
		if d.Severity == diag.Error {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected at least one error diagnostic, got: %v", sink.Diagnostics())
	}
}

// TestCompileUndeclaredVarOutsideBank matches declare.go's diagnostic for a
// var declared outside any `in bank` block.
func TestCompileUndeclaredVarOutsideBank(t *testing.T) {
	src := `var x: u8;`
	_, sink := compileSrc(t, mos6502.New(), src)
	if sink.Ok() {
		t.Fatalf("expected a diagnostic for a var declared outside any bank")
	}
}
