package mos6502

import (
	"testing"

	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/builtins"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/pattern"
)

func newBuiltins(t *testing.T) (*builtins.Builtins, *Backend) {
	t.Helper()
	table := intern.NewTable()
	b := builtins.New(table, nil)
	backend := New()
	if err := b.Init(backend); err != nil {
		t.Fatalf("init backend: %v", err)
	}
	return b, backend
}

// TestImmediateLoad is spec.md §8 scenario 1: `a = 5;` -> `A9 05`.
func TestImmediateLoad(t *testing.T) {
	b, _ := newBuiltins(t)
	assignA := builtins.InstructionType{Kind: builtins.VerbAssign}
	operands := []pattern.Operand{
		pattern.RegisterOperand{Reg: regA},
		pattern.IntegerOperand{Value: 5},
	}
	instr, captures, err := b.Patterns.Select(assignA, operands)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	out := instr.Encoding.WriteBytes(captures, nil)
	if len(out) != 2 || out[0] != 0xA9 || out[1] != 0x05 {
		t.Fatalf("expected A9 05, got % X", out)
	}
}

// TestSpecializationSelection is spec.md §8 scenario 4: registry contains
// `ld a, imm8` and `ld a, 0`; requesting a=0 must pick the 0-specialized
// encoding.
func TestSpecializationSelection(t *testing.T) {
	b, _ := newBuiltins(t)
	assignA := builtins.InstructionType{Kind: builtins.VerbAssign}

	instr, _, err := b.Patterns.Select(assignA, []pattern.Operand{
		pattern.RegisterOperand{Reg: regA},
		pattern.IntegerOperand{Value: 0},
	})
	if err != nil {
		t.Fatalf("select a=0: %v", err)
	}
	out := instr.Encoding.WriteBytes(nil, nil)
	if len(out) != 2 || out[0] != 0xA9 || out[1] != 0x00 {
		t.Fatalf("expected the 0-specialized A9 00, got % X", out)
	}

	instrGeneral, captures, err := b.Patterns.Select(assignA, []pattern.Operand{
		pattern.RegisterOperand{Reg: regA},
		pattern.IntegerOperand{Value: 42},
	})
	if err != nil {
		t.Fatalf("select a=42: %v", err)
	}
	out2 := instrGeneral.Encoding.WriteBytes(captures, nil)
	if len(out2) != 2 || out2[0] != 0xA9 || out2[1] != 42 {
		t.Fatalf("expected A9 2A for the general form, got % X", out2)
	}
}

// TestIndexCommutativity is spec.md §8 scenario 5: `array[x]` and `x[array]`
// must select the same instruction and produce identical bytes.
func TestIndexCommutativity(t *testing.T) {
	b, _ := newBuiltins(t)
	assignA := builtins.InstructionType{Kind: builtins.VerbAssign}

	arrayThenX := []pattern.Operand{
		pattern.RegisterOperand{Reg: regA},
		pattern.IndexOperand{
			Base:      pattern.IntegerOperand{Value: 0x2000},
			Subscript: pattern.RegisterOperand{Reg: regX},
			Scale:     1,
			Size:      1,
		},
	}
	xThenArray := []pattern.Operand{
		pattern.RegisterOperand{Reg: regA},
		pattern.IndexOperand{
			Base:      pattern.RegisterOperand{Reg: regX},
			Subscript: pattern.IntegerOperand{Value: 0x2000},
			Scale:     1,
			Size:      1,
		},
	}

	i1, c1, err := b.Patterns.Select(assignA, arrayThenX)
	if err != nil {
		t.Fatalf("select array[x]: %v", err)
	}
	i2, c2, err := b.Patterns.Select(assignA, xThenArray)
	if err != nil {
		t.Fatalf("select x[array]: %v", err)
	}
	if i1 != i2 {
		t.Fatalf("expected both orderings to select the same instruction")
	}
	b1 := i1.Encoding.WriteBytes(c1, nil)
	b2 := i2.Encoding.WriteBytes(c2, nil)
	if string(b1) != string(b2) {
		t.Fatalf("expected identical bytes, got % X vs % X", b1, b2)
	}
	if len(b1) != 3 || b1[0] != 0xBD || b1[1] != 0x00 || b1[2] != 0x20 {
		t.Fatalf("expected BD 00 20, got % X", b1)
	}
}

// TestUnsignedGreaterThanOracle exercises spec.md §4.E's worked example:
// unsigned `>` lowers to a cmp plus two branch conditions ANDed together.
func TestUnsignedGreaterThanOracle(t *testing.T) {
	_, backend := newBuiltins(t)
	plan, ok := backend.TestAndBranch(ast.BGt, false, pattern.RegisterOperand{Reg: regA}, pattern.IntegerOperand{Value: 10})
	if !ok {
		t.Fatalf("expected unsigned > to be handled by the oracle")
	}
	if len(plan.Conditions) != 2 {
		t.Fatalf("expected two branch conditions, got %d", len(plan.Conditions))
	}
}
