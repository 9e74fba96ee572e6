// Package gameboy implements the Game Boy (Sharp SM83) platform backend
// (spec.md §4.F).
package gameboy

import (
	"math"

	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/builtins"
	"github.com/anvil-lang/anvil/internal/pattern"
	"github.com/anvil-lang/anvil/internal/platform"
	"github.com/anvil-lang/anvil/internal/sym"
)

func init() {
	platform.Register("gameboy", New())
}

var (
	regA  = pattern.Reg{Name: "gameboy.a"}
	regB  = pattern.Reg{Name: "gameboy.b"}
	regC  = pattern.Reg{Name: "gameboy.c"}
	flagZ = pattern.Reg{Name: "gameboy.z"}
	flagC = pattern.Reg{Name: "gameboy.c_flag"}
)

// Backend is the Game Boy platform backend.
type Backend struct {
	cmpDef  *sym.Definition
	pointer *sym.Definition
}

func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "gameboy" }

func (b *Backend) PointerSizedType() *sym.Definition    { return b.pointer }
func (b *Backend) FarPointerSizedType() *sym.Definition { return b.pointer }
func (b *Backend) ZeroFlag() pattern.Reg                { return flagZ }

// PlaceholderValue is 0x7F, matching mos6502's reasoning: it is a valid
// one-byte JR displacement so it never makes the size-only pass pick a
// short encoding that the resolved pass then has to widen.
func (b *Backend) PlaceholderValue() int64 { return 0x7F }

func (b *Backend) ConfigKeys() []string { return []string{"mbc", "ram-size"} }

func (b *Backend) ReserveDefinitions(bi *builtins.Builtins) error {
	table := bi.Table
	bi.DeclareRegister(table, "a", regA)
	bi.DeclareRegister(table, "b", regB)
	bi.DeclareRegister(table, "c", regC)
	bi.DeclareRegister(table, "zero", flagZ)
	bi.DeclareRegister(table, "carry", flagC)

	b.pointer = bi.IntegerTypes["u16"]
	b.cmpDef = bi.DeclareIntrinsic(table, "cmp", []ast.Param{{}, {}}, false)
	bi.DeclareIntrinsic(table, "nop", nil, false)
	bi.DeclareIntrinsic(table, "halt", nil, false)
	bi.DeclareIntrinsic(table, "push", []ast.Param{{}}, false)
	bi.DeclareIntrinsic(table, "pop", nil, true)

	reg := bi.Patterns
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	// a = imm8 -> LD A,d8 (3E nn).
	must(reg.Insert(&pattern.Instruction[builtins.InstructionType]{
		Type: builtins.InstructionType{Kind: builtins.VerbAssign},
		Signature: &pattern.Signature{Operands: []pattern.OperandPattern{
			pattern.RegisterPattern{Reg: regA},
			pattern.Capture{Inner: pattern.IntegerRange{Min: 0, Max: 255}},
		}},
		Encoding: &pattern.Encoding{
			ComputeSize: func(c []pattern.Operand) int { return 2 },
			WriteBytes: func(c []pattern.Operand, out []byte) []byte {
				return append(out, 0x3E, byte(c[0].(pattern.IntegerOperand).Value))
			},
		},
	}))

	// a = a + 1 -> INC A (3C), the spec.md §8 scenario 2 specialization;
	// a = a + imm8 -> ADD A,d8 (C6 nn) general form.
	must(reg.Insert(&pattern.Instruction[builtins.InstructionType]{
		Type: builtins.InstructionType{Kind: builtins.VerbBinary, Binary: ast.BAdd},
		Signature: &pattern.Signature{Operands: []pattern.OperandPattern{
			pattern.RegisterPattern{Reg: regA},
			pattern.Capture{Inner: pattern.IntegerRange{Min: math.MinInt32, Max: 255}},
		}},
		Encoding: &pattern.Encoding{
			ComputeSize: func(c []pattern.Operand) int { return 2 },
			WriteBytes: func(c []pattern.Operand, out []byte) []byte {
				return append(out, 0xC6, byte(c[0].(pattern.IntegerOperand).Value))
			},
		},
	}))
	must(reg.Insert(&pattern.Instruction[builtins.InstructionType]{
		Type: builtins.InstructionType{Kind: builtins.VerbBinary, Binary: ast.BAdd},
		Signature: &pattern.Signature{Operands: []pattern.OperandPattern{
			pattern.RegisterPattern{Reg: regA},
			pattern.IntegerPattern{Value: 1},
		}},
		Encoding: &pattern.Encoding{
			ComputeSize: func(c []pattern.Operand) int { return 1 },
			WriteBytes: func(c []pattern.Operand, out []byte) []byte {
				return append(out, 0x3C)
			},
		},
	}))

	// cmp a, imm8 -> CP d8 (FE nn).
	must(reg.Insert(&pattern.Instruction[builtins.InstructionType]{
		Type: builtins.InstructionType{Kind: builtins.VerbVoidIntrinsic, Intrinsic: b.cmpDef},
		Signature: &pattern.Signature{Operands: []pattern.OperandPattern{
			pattern.RegisterPattern{Reg: regA},
			pattern.Capture{Inner: pattern.IntegerRange{Min: 0, Max: 255}},
		}},
		Encoding: &pattern.Encoding{
			ComputeSize: func(c []pattern.Operand) int { return 2 },
			WriteBytes: func(c []pattern.Operand, out []byte) []byte {
				return append(out, 0xFE, byte(c[0].(pattern.IntegerOperand).Value))
			},
		},
	}))

	registerConditionalBranch(reg, must, ast.BEq, 0x28, 0xCA)
	registerConditionalBranch(reg, must, ast.BNe, 0x20, 0xC2)
	registerConditionalBranch(reg, must, ast.BLt, 0x38, 0xDA) // JR C / JP C: carry set means A < M (unsigned)
	registerConditionalBranch(reg, must, ast.BGe, 0x30, 0xD2) // JR NC / JP NC

	// goto: near JR (18 dd, displacement -128..127) specializes far JP
	// (C3 lo hi, any absolute address), exercising spec.md §9's goto
	// distance-hint monotonicity requirement (near size 2 <= far size 3).
	must(reg.Insert(&pattern.Instruction[builtins.InstructionType]{
		Type: builtins.InstructionType{Kind: builtins.VerbJump, Jump: ast.BranchGoto},
		Signature: &pattern.Signature{Operands: []pattern.OperandPattern{
			pattern.Capture{Inner: pattern.IntegerAtLeast{Min: math.MinInt64}},
		}},
		Encoding: &pattern.Encoding{
			ComputeSize: func(c []pattern.Operand) int { return 3 },
			WriteBytes: func(c []pattern.Operand, out []byte) []byte {
				addr := c[0].(pattern.IntegerOperand).Value
				return append(out, 0xC3, byte(addr), byte(addr>>8))
			},
		},
	}))
	must(reg.Insert(&pattern.Instruction[builtins.InstructionType]{
		Type: builtins.InstructionType{Kind: builtins.VerbJump, Jump: ast.BranchGoto},
		Signature: &pattern.Signature{Operands: []pattern.OperandPattern{
			pattern.Capture{Inner: pattern.IntegerRange{Min: -128, Max: 127}},
		}},
		Encoding: &pattern.Encoding{
			ComputeSize: func(c []pattern.Operand) int { return 2 },
			WriteBytes: func(c []pattern.Operand, out []byte) []byte {
				return append(out, 0x18, byte(int8(c[0].(pattern.IntegerOperand).Value)))
			},
		},
	}))

	return nil
}

func registerConditionalBranch(reg *pattern.Registry[builtins.InstructionType], must func(error), op ast.BinaryKind, jrOpcode, jpOpcode byte) {
	must(reg.Insert(&pattern.Instruction[builtins.InstructionType]{
		Type: builtins.InstructionType{Kind: builtins.VerbBranch, Binary: op},
		Signature: &pattern.Signature{Operands: []pattern.OperandPattern{
			pattern.Capture{Inner: pattern.IntegerAtLeast{Min: math.MinInt64}},
		}},
		Encoding: &pattern.Encoding{
			ComputeSize: func(c []pattern.Operand) int { return 3 },
			WriteBytes: func(c []pattern.Operand, out []byte) []byte {
				addr := c[0].(pattern.IntegerOperand).Value
				return append(out, jpOpcode, byte(addr), byte(addr>>8))
			},
		},
		Clobbers: []pattern.Reg{flagZ, flagC},
	}))
	must(reg.Insert(&pattern.Instruction[builtins.InstructionType]{
		Type: builtins.InstructionType{Kind: builtins.VerbBranch, Binary: op},
		Signature: &pattern.Signature{Operands: []pattern.OperandPattern{
			pattern.Capture{Inner: pattern.IntegerRange{Min: -128, Max: 127}},
		}},
		Encoding: &pattern.Encoding{
			ComputeSize: func(c []pattern.Operand) int { return 2 },
			WriteBytes: func(c []pattern.Operand, out []byte) []byte {
				return append(out, jrOpcode, byte(int8(c[0].(pattern.IntegerOperand).Value)))
			},
		},
		Clobbers: []pattern.Reg{flagZ, flagC},
	}))
}

func (b *Backend) TestAndBranch(op ast.BinaryKind, signed bool, left, right pattern.Operand) (builtins.BranchPlan, bool) {
	if signed {
		return builtins.BranchPlan{}, false
	}
	cmp := builtins.InstructionType{Kind: builtins.VerbVoidIntrinsic, Intrinsic: b.cmpDef}
	switch op {
	case ast.BEq, ast.BNe, ast.BLt, ast.BGe:
		return builtins.BranchPlan{
			CompareType:     cmp,
			CompareOperands: []pattern.Operand{left, right},
			Conditions:      []builtins.BranchCondition{{Verb: builtins.InstructionType{Kind: builtins.VerbBranch, Binary: op}}},
		}, true
	default:
		return builtins.BranchPlan{}, false
	}
}
