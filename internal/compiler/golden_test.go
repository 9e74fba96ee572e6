package compiler

import (
	"testing"

	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/platform/gameboy"
	"github.com/anvil-lang/anvil/internal/platform/mos6502"
)

// TestImmediateLoad is end-to-end scenario 1: `a = 5;` on mos6502 emits
// A9 05 with no diagnostics.
func TestImmediateLoad(t *testing.T) {
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
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	out := prog.BankByName["code"].Bytes()
	if len(out) != 2 || out[0] != 0xA9 || out[1] != 0x05 {
		t.Fatalf("expected A9 05, got % X", out)
	}
}

// TestNearBranchBackward is end-to-end scenario 2: a label loop whose body
// increments a and jumps back to its own top, based at 0x0150 on the
// gameboy backend, emits `3C 18 FD` (INC A; JR -3) with no diagnostics.
func TestNearBranchBackward(t *testing.T) {
	src := `
		bank code: rom @ 0x0150, 0x4000;
		in code {
			func main() {
				label top:
				a = a + 1;
				goto top;
			}
		}
	`
	prog, sink := compileSrc(t, gameboy.New(), src)
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	out := prog.BankByName["code"].Bytes()
	want := []byte{0x3C, 0x18, 0xFD}
	if len(out) != len(want) {
		t.Fatalf("expected % X, got % X", want, out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected % X, got % X", want, out)
		}
	}
}

// TestGotoAutoWidensWithWarning is SPEC_FULL.md's distance-hint
// auto-widening diagnostic: an un-annotated `goto` whose target the near
// JR form can't reach falls back to gameboy's far JP form, and reports the
// fallback as a single suppressible Warning (not an Error, and not silence)
// naming the representable range it had to widen past.
func TestGotoAutoWidensWithWarning(t *testing.T) {
	var body string
	for i := 0; i < 200; i++ {
		body += "a = a + 1;\n"
	}
	src := `
		bank code: rom @ 0x0150, 0x4000;
		in code {
			func main() {
				label top:
				` + body + `
				goto top;
			}
		}
	`
	prog, sink := compileSrc(t, gameboy.New(), src)
	if !sink.Ok() {
		t.Fatalf("unexpected error diagnostics: %v", sink.Diagnostics())
	}
	var warnings []diag.Diagnostic
	for _, d := range sink.Diagnostics() {
		if d.Severity == diag.Warning {
			warnings = append(warnings, *d)
		}
	}
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning diagnostic, got %d: %v", len(warnings), sink.Diagnostics())
	}
	out := prog.BankByName["code"].Bytes()
	if out[len(out)-3] != 0xC3 {
		t.Fatalf("expected the widened goto to use JP (C3), got % X at tail", out[len(out)-3:])
	}
}

// TestPCRelativeOutOfRange is end-to-end scenario 3: a conditional branch
// whose target is far enough behind that mos6502's only (relative,
// -128..127) encoding cannot reach it fails with exactly one error naming
// the representable range, rather than silently truncating the
// displacement or emitting a second diagnostic per retry.
func TestPCRelativeOutOfRange(t *testing.T) {
	var body string
	for i := 0; i < 200; i++ {
		body += "a = 1;\n"
	}
	src := `
		bank code: rom @ 0x8000, 0x8000;
		in code {
			func main() {
				if short a == 0 {
					` + body + `
				}
			}
		}
	`
	_, sink := compileSrc(t, mos6502.New(), src)
	if sink.Ok() {
		t.Fatalf("expected an out-of-range diagnostic, got none")
	}
	var errs []diag.Diagnostic
	for _, d := range sink.Diagnostics() {
		if d.Severity == diag.Error {
			errs = append(errs, *d)
		}
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error diagnostic, got %d: %v", len(errs), errs)
	}
}

// TestSpecializationSelection is end-to-end scenario 4: against a registry
// holding both a general `ld a, imm8` (IntegerRange 0..255) and a
// `ld a, 0` specialization, `a = 0;` must select the 0-specialized
// encoding rather than failing the "two primaries compare as equal"
// registry invariant (spec.md §8 invariant 2): both encode the same bytes
// here, so a successful, unambiguous compile is itself the proof the
// narrower pattern won the specialization-DAG tie-break over its superset.
func TestSpecializationSelection(t *testing.T) {
	src := `
		bank code: rom @ 0x8000, 0x8000;
		in code {
			func main() {
				a = 0;
			}
		}
	`
	prog, sink := compileSrc(t, mos6502.New(), src)
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	out := prog.BankByName["code"].Bytes()
	if len(out) != 2 || out[0] != 0xA9 || out[1] != 0x00 {
		t.Fatalf("expected A9 00, got % X", out)
	}
}

// TestIndexCommutativity is end-to-end scenario 5: on the 6502
// `absolute,x` pattern, `table[x]` and `x[table]` must produce identical
// bytes, proving IndexPattern's scale-1 commutativity branch (not just an
// author convention about argument order) is what the registry matches on.
func TestIndexCommutativity(t *testing.T) {
	forward := `
		bank code: rom @ 0x8000, 0x8000;
		bank table: rom @ 0x9000, 0x100;
		in code {
			func main() {
				a = table[x];
			}
		}
	`
	reverse := `
		bank code: rom @ 0x8000, 0x8000;
		bank table: rom @ 0x9000, 0x100;
		in code {
			func main() {
				a = x[table];
			}
		}
	`
	p1, sink1 := compileSrc(t, mos6502.New(), forward)
	if !sink1.Ok() {
		t.Fatalf("unexpected diagnostics (table[x]): %v", sink1.Diagnostics())
	}
	p2, sink2 := compileSrc(t, mos6502.New(), reverse)
	if !sink2.Ok() {
		t.Fatalf("unexpected diagnostics (x[table]): %v", sink2.Diagnostics())
	}
	out1 := p1.BankByName["code"].Bytes()
	out2 := p2.BankByName["code"].Bytes()
	if len(out1) != len(out2) {
		t.Fatalf("expected identical lengths, got %d vs %d", len(out1), len(out2))
	}
	for i := range out1 {
		if out1[i] != out2[i] {
			t.Fatalf("expected identical bytes, got % X vs % X", out1, out2)
		}
	}
}

// TestInlineForUnroll is end-to-end scenario 6: `inline for i in 0..3`
// unrolls into three store-immediate instructions with immediate
// destinations 0x2000, 0x2001, 0x2002 and immediate values 0, 1, 2 (each
// lowered through mos6502's composite LDA-then-STA encoding for storing an
// immediate to an absolute address).
func TestInlineForUnroll(t *testing.T) {
	src := `
		bank code: rom @ 0x8000, 0x8000;
		in code {
			func main() {
				inline for i in 0..3 {
					*(0x2000 + i) = i as u8;
				}
			}
		}
	`
	prog, sink := compileSrc(t, mos6502.New(), src)
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	out := prog.BankByName["code"].Bytes()
	want := []byte{
		0xA9, 0x00, 0x8D, 0x00, 0x20,
		0xA9, 0x01, 0x8D, 0x01, 0x20,
		0xA9, 0x02, 0x8D, 0x02, 0x20,
	}
	if len(out) != len(want) {
		t.Fatalf("expected % X, got % X", want, out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected % X, got % X", want, out)
		}
	}
}
