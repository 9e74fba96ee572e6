package gameboy

import (
	"testing"

	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/builtins"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/pattern"
)

// TestNearBranchBackward is spec.md §8 scenario 2: `label top: a = a + 1;
// goto top;` with the program bank based at 0x0150 emits `3C 18 FD` (inc a;
// jr -3).
func TestNearBranchBackward(t *testing.T) {
	table := intern.NewTable()
	b := builtins.New(table, nil)
	if err := b.Init(New()); err != nil {
		t.Fatalf("init: %v", err)
	}

	incType := builtins.InstructionType{Kind: builtins.VerbBinary, Binary: ast.BAdd}
	incInstr, incCaptures, err := b.Patterns.Select(incType, []pattern.Operand{
		pattern.RegisterOperand{Reg: regA},
		pattern.IntegerOperand{Value: 1},
	})
	if err != nil {
		t.Fatalf("select inc: %v", err)
	}
	incBytes := incInstr.Encoding.WriteBytes(incCaptures, nil)
	if len(incBytes) != 1 || incBytes[0] != 0x3C {
		t.Fatalf("expected 3C, got % X", incBytes)
	}

	gotoType := builtins.InstructionType{Kind: builtins.VerbJump, Jump: ast.BranchGoto}
	// label `top` is right after the 1-byte INC A; the JR instruction is 2
	// bytes, so the backward displacement to `top` from the byte after JR
	// is -(1+2) = -3.
	jumpInstr, jumpCaptures, err := b.Patterns.Select(gotoType, []pattern.Operand{
		pattern.IntegerOperand{Value: -3},
	})
	if err != nil {
		t.Fatalf("select goto: %v", err)
	}
	jumpBytes := jumpInstr.Encoding.WriteBytes(jumpCaptures, nil)
	if len(jumpBytes) != 2 || jumpBytes[0] != 0x18 || jumpBytes[1] != 0xFD {
		t.Fatalf("expected 18 FD, got % X", jumpBytes)
	}

	full := append(append([]byte{}, incBytes...), jumpBytes...)
	if string(full) != string([]byte{0x3C, 0x18, 0xFD}) {
		t.Fatalf("expected 3C 18 FD, got % X", full)
	}
}
