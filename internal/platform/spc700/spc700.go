// Package spc700 implements the SPC-700 (SNES audio co-processor)
// platform backend (spec.md §4.F).
package spc700

import (
	"math"

	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/builtins"
	"github.com/anvil-lang/anvil/internal/pattern"
	"github.com/anvil-lang/anvil/internal/platform"
	"github.com/anvil-lang/anvil/internal/sym"
)

func init() {
	platform.Register("spc700", New())
}

var (
	regA  = pattern.Reg{Name: "spc700.a"}
	regX  = pattern.Reg{Name: "spc700.x"}
	regY  = pattern.Reg{Name: "spc700.y"}
	flagZ = pattern.Reg{Name: "spc700.z"}
	flagC = pattern.Reg{Name: "spc700.c"}
)

// Backend is the SPC-700 platform backend.
type Backend struct {
	cmpDef  *sym.Definition
	pointer *sym.Definition
}

func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "spc700" }

func (b *Backend) PointerSizedType() *sym.Definition    { return b.pointer }
func (b *Backend) FarPointerSizedType() *sym.Definition { return b.pointer }
func (b *Backend) ZeroFlag() pattern.Reg                { return flagZ }
func (b *Backend) PlaceholderValue() int64              { return 0x7F }
func (b *Backend) ConfigKeys() []string                 { return []string{"sample-rate"} }

func (b *Backend) ReserveDefinitions(bi *builtins.Builtins) error {
	table := bi.Table
	bi.DeclareRegister(table, "a", regA)
	bi.DeclareRegister(table, "x", regX)
	bi.DeclareRegister(table, "y", regY)
	bi.DeclareRegister(table, "zero", flagZ)
	bi.DeclareRegister(table, "carry", flagC)

	b.pointer = bi.IntegerTypes["u16"]
	b.cmpDef = bi.DeclareIntrinsic(table, "cmp", []ast.Param{{}, {}}, false)
	bi.DeclareIntrinsic(table, "nop", nil, false)
	bi.DeclareIntrinsic(table, "halt", nil, false) // SLEEP/STOP on real hardware
	bi.DeclareIntrinsic(table, "push", []ast.Param{{}}, false)
	bi.DeclareIntrinsic(table, "pop", nil, true)

	reg := bi.Patterns
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	// a = imm8 -> MOV A,#imm (E8 nn).
	must(reg.Insert(&pattern.Instruction[builtins.InstructionType]{
		Type: builtins.InstructionType{Kind: builtins.VerbAssign},
		Signature: &pattern.Signature{Operands: []pattern.OperandPattern{
			pattern.RegisterPattern{Reg: regA},
			pattern.Capture{Inner: pattern.IntegerRange{Min: 0, Max: 255}},
		}},
		Encoding: &pattern.Encoding{
			ComputeSize: func(c []pattern.Operand) int { return 2 },
			WriteBytes: func(c []pattern.Operand, out []byte) []byte {
				return append(out, 0xE8, byte(c[0].(pattern.IntegerOperand).Value))
			},
		},
	}))

	// a = a + 1 -> INC A (BC); a = a + imm8 -> ADC A,#imm (88 nn).
	must(reg.Insert(&pattern.Instruction[builtins.InstructionType]{
		Type: builtins.InstructionType{Kind: builtins.VerbBinary, Binary: ast.BAdd},
		Signature: &pattern.Signature{Operands: []pattern.OperandPattern{
			pattern.RegisterPattern{Reg: regA},
			pattern.Capture{Inner: pattern.IntegerRange{Min: math.MinInt32, Max: 255}},
		}},
		Encoding: &pattern.Encoding{
			ComputeSize: func(c []pattern.Operand) int { return 2 },
			WriteBytes: func(c []pattern.Operand, out []byte) []byte {
				return append(out, 0x88, byte(c[0].(pattern.IntegerOperand).Value))
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
				return append(out, 0xBC)
			},
		},
	}))

	// cmp a, imm8 -> CMP A,#imm (68 nn).
	must(reg.Insert(&pattern.Instruction[builtins.InstructionType]{
		Type: builtins.InstructionType{Kind: builtins.VerbVoidIntrinsic, Intrinsic: b.cmpDef},
		Signature: &pattern.Signature{Operands: []pattern.OperandPattern{
			pattern.RegisterPattern{Reg: regA},
			pattern.Capture{Inner: pattern.IntegerRange{Min: 0, Max: 255}},
		}},
		Encoding: &pattern.Encoding{
			ComputeSize: func(c []pattern.Operand) int { return 2 },
			WriteBytes: func(c []pattern.Operand, out []byte) []byte {
				return append(out, 0x68, byte(c[0].(pattern.IntegerOperand).Value))
			},
		},
	}))

	registerBranch(reg, must, ast.BEq, 0xF0) // BEQ
	registerBranch(reg, must, ast.BNe, 0xD0) // BNE
	registerBranch(reg, must, ast.BLt, 0x90) // BCC
	registerBranch(reg, must, ast.BGe, 0xB0) // BCS

	// goto target -> JMP !abs (5F lo hi); SPC-700 has no relative
	// unconditional jump, so only one (unconditional) form is registered.
	must(reg.Insert(&pattern.Instruction[builtins.InstructionType]{
		Type: builtins.InstructionType{Kind: builtins.VerbJump, Jump: ast.BranchGoto},
		Signature: &pattern.Signature{Operands: []pattern.OperandPattern{
			pattern.Capture{Inner: pattern.IntegerAtLeast{Min: math.MinInt64}},
		}},
		Encoding: &pattern.Encoding{
			ComputeSize: func(c []pattern.Operand) int { return 3 },
			WriteBytes: func(c []pattern.Operand, out []byte) []byte {
				addr := c[0].(pattern.IntegerOperand).Value
				return append(out, 0x5F, byte(addr), byte(addr>>8))
			},
		},
	}))

	return nil
}

func registerBranch(reg *pattern.Registry[builtins.InstructionType], must func(error), op ast.BinaryKind, opcode byte) {
	must(reg.Insert(&pattern.Instruction[builtins.InstructionType]{
		Type: builtins.InstructionType{Kind: builtins.VerbBranch, Binary: op},
		Signature: &pattern.Signature{Operands: []pattern.OperandPattern{
			pattern.Capture{Inner: pattern.IntegerRange{Min: -128, Max: 127}},
		}},
		Encoding: &pattern.Encoding{
			ComputeSize: func(c []pattern.Operand) int { return 2 },
			WriteBytes: func(c []pattern.Operand, out []byte) []byte {
				return append(out, opcode, byte(int8(c[0].(pattern.IntegerOperand).Value)))
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
