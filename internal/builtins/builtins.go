// Package builtins implements spec.md component D: the built-in scope
// seeded with primitive types, marker types, the `__has`/`__get`
// compile-time-define macros, and the instruction/pattern/encoding
// catalogues that the active platform backend populates.
//
// Grounded on cmd_local/compile/main.go's archInits dispatch table: that
// table picks one backend's Init(*gc.Arch) by GOARCH and lets it fill in
// function-pointer fields on a shared struct before compilation proceeds.
// Builtins.Init plays the same role for a system name, calling the chosen
// Backend's ReserveDefinitions(*Builtins) to do the filling-in.
package builtins

import (
	"fmt"

	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/pattern"
	"github.com/anvil-lang/anvil/internal/sym"
)

// VerbKind discriminates an InstructionType's payload (spec.md §3
// "InstructionType: the semantic verb").
type VerbKind int

const (
	VerbBinary VerbKind = iota
	VerbUnary
	VerbBranch
	VerbAssign
	VerbLoadIntrinsic
	VerbVoidIntrinsic
	// VerbJump is an unconditional control transfer: goto/call/return and
	// their far/irq/nmi variants, keyed by ast.BranchKind.
	VerbJump
)

// InstructionType is the comparable key every Instruction is registered
// under, used directly as the pattern.Registry type parameter. Binary/Unary
// carry the ast operator kind; Branch carries the comparison operator kind
// that a conditional control-transfer tests; Jump carries the control-
// transfer kind for unconditional branches; the two Intrinsic verbs carry
// the intrinsic's *sym.Definition, so two intrinsics of the same name in
// different namespaces are distinguished by definition-pointer identity as
// spec.md §3 requires ("distinguished by the intrinsic definition
// pointer").
type InstructionType struct {
	Kind      VerbKind
	Binary    ast.BinaryKind
	Unary     ast.UnaryKind
	Jump      ast.BranchKind
	Signed    bool
	Intrinsic *sym.Definition
}

func (t InstructionType) String() string {
	switch t.Kind {
	case VerbBinary:
		return fmt.Sprintf("binary(%d,signed=%v)", t.Binary, t.Signed)
	case VerbUnary:
		return fmt.Sprintf("unary(%d)", t.Unary)
	case VerbBranch:
		return fmt.Sprintf("branch(%d,signed=%v)", t.Binary, t.Signed)
	case VerbAssign:
		return "assign"
	case VerbJump:
		return fmt.Sprintf("jump(%d)", t.Jump)
	case VerbLoadIntrinsic, VerbVoidIntrinsic:
		if t.Intrinsic != nil {
			return "intrinsic:" + t.Intrinsic.Name.Text()
		}
		return "intrinsic"
	default:
		return "instructiontype"
	}
}

// BranchCondition is one conditional-branch instruction type the test-and-
// branch oracle asks the core to emit.
type BranchCondition struct {
	Verb InstructionType
}

// BranchPlan is the oracle's answer for one comparison: an optional compare
// instruction to emit first, followed by one or more branch conditions
// that must ALL hold for control to transfer (spec.md §4.E's example:
// unsigned `>` lowers to a `cmp` plus branch-if-not-zero AND
// branch-if-carry-set).
type BranchPlan struct {
	CompareType     InstructionType
	CompareOperands []pattern.Operand
	Conditions      []BranchCondition
}

// Backend is the contract each platform backend (internal/platform/...)
// satisfies (spec.md §4.F). Builtins depends only on this interface, not on
// internal/platform, so internal/platform can depend on internal/builtins
// without a cycle.
type Backend interface {
	Name() string
	// ReserveDefinitions registers this backend's registers, flags,
	// intrinsics, operand patterns, encodings, and instructions into b.
	ReserveDefinitions(b *Builtins) error
	PointerSizedType() *sym.Definition
	FarPointerSizedType() *sym.Definition
	ZeroFlag() pattern.Reg
	// PlaceholderValue is used for not-yet-resolved integer captures
	// during a size-only pass; it must encode to the same byte count
	// under both short and long branch variants (spec.md §4.F pitfall).
	PlaceholderValue() int64
	// TestAndBranch is the oracle of spec.md §4.E: given a comparison and
	// its two operands, it returns how to realize `if left OP right` as
	// machine instructions, or ok=false if it has no lowering for this
	// comparison (the core then reports an error; there is no generic
	// cmp+branch fallback).
	TestAndBranch(op ast.BinaryKind, signed bool, left, right pattern.Operand) (plan BranchPlan, ok bool)
	// ConfigKeys lists the `config` directive keys this backend
	// recognizes, for the parser/compiler to validate against.
	ConfigKeys() []string
}

// Builtins is the built-in scope plus every catalogue a platform backend
// populates (spec.md §3 "Builtins").
type Builtins struct {
	Scope   *sym.Scope
	Table   *intern.Table // the run's interning table; a backend's ReserveDefinitions must intern register/intrinsic names through this, not a table of its own, or they silently fail to resolve against parsed source identifiers
	Defines map[intern.String]ast.Expr

	// Patterns is shared by every backend; InstructionType values
	// registered by different backends never collide because a Registry
	// is only ever queried for instructions the active backend
	// registered (internal/compiler selects one backend per run).
	Patterns *pattern.Registry[InstructionType]

	IntegerTypes map[string]*sym.Definition
	Bool         *sym.Definition
	IExprMarker  *sym.Definition
	LetMarker    *sym.Definition
	RangeMarker  *sym.Definition
	TypeofMarker *sym.Definition

	Backend Backend
}

var integerSpecs = []struct {
	name     string
	signed   bool
	bitWidth int
}{
	{"u8", false, 8}, {"u16", false, 16}, {"u24", false, 24}, {"u32", false, 32}, {"u64", false, 64},
	{"i8", true, 8}, {"i16", true, 16}, {"i24", true, 24}, {"i32", true, 32}, {"i64", true, 64},
}

// New creates the built-in scope and populates the primitive types, marker
// types, and `__has`/`__get` macros (spec.md §4.D), but does not yet invoke
// a backend.
func New(table *intern.Table, defines map[intern.String]ast.Expr) *Builtins {
	b := &Builtins{
		Scope:        sym.NewScope(nil, "builtin"),
		Table:        table,
		Defines:      defines,
		Patterns:     pattern.NewRegistry[InstructionType](),
		IntegerTypes: make(map[string]*sym.Definition),
	}
	if b.Defines == nil {
		b.Defines = make(map[intern.String]ast.Expr)
	}

	for _, spec := range integerSpecs {
		min, max := integerRange(spec.signed, spec.bitWidth)
		def := &sym.Definition{
			Kind: sym.KindBuiltinInteger,
			Name: table.Intern(spec.name),
			Integer: &sym.IntegerInfo{
				Signed:   spec.signed,
				BitWidth: spec.bitWidth,
				Min:      min,
				Max:      max,
			},
		}
		def.Parent = b.Scope
		b.Scope.Declare(def.Name, def, sym.RedeclForbidden)
		b.IntegerTypes[spec.name] = def
	}

	b.Bool = b.declareMarker(table, "bool", sym.KindBuiltinBool)
	b.IExprMarker = b.declareMarker(table, "iexpr", sym.KindBuiltinLet)
	b.LetMarker = b.declareMarker(table, "let", sym.KindBuiltinLet)
	b.RangeMarker = b.declareMarker(table, "range", sym.KindBuiltinRange)
	b.TypeofMarker = b.declareMarker(table, "typeof", sym.KindBuiltinTypeof)

	b.declareDefineMacro(table, "__has", 1)
	b.declareDefineMacro(table, "__get", 2)

	return b
}

func (b *Builtins) declareMarker(table *intern.Table, name string, kind sym.Kind) *sym.Definition {
	def := &sym.Definition{Kind: kind, Name: table.Intern(name), Parent: b.Scope}
	b.Scope.Declare(def.Name, def, sym.RedeclForbidden)
	return def
}

// declareDefineMacro registers `__has`/`__get` as KindLet definitions whose
// Value is nil: internal/compiler recognizes these two names specially
// during constant reduction (spec.md §4.D) rather than expanding them like
// an ordinary `let` macro, since their body consults Defines rather than
// substituting into an expression tree.
func (b *Builtins) declareDefineMacro(table *intern.Table, name string, arity int) {
	params := make([]ast.Param, arity)
	def := &sym.Definition{Kind: sym.KindLet, Name: table.Intern(name), Parent: b.Scope, Params: params}
	b.Scope.Declare(def.Name, def, sym.RedeclForbidden)
}

// Init runs backend's reserveDefinitions entry point, seeding b's registers,
// intrinsics, patterns, encodings, and instructions (spec.md §4.D, §4.F).
func (b *Builtins) Init(backend Backend) error {
	b.Backend = backend
	return backend.ReserveDefinitions(b)
}

// DeclareRegister inserts name as a KindBuiltinRegister definition in the
// builtin scope and returns it, for a backend's reserveDefinitions to call
// per physical register (spec.md §4.F step 1). tag is the pattern.Reg.Name
// the backend's instructions were registered under (e.g. "mos6502.a"):
// source identifiers are bare ("a") and shared across backends, so
// operand.go needs this namespaced tag, not name, to build a matching
// pattern.RegisterOperand.
func (b *Builtins) DeclareRegister(table *intern.Table, name string, tag pattern.Reg) *sym.Definition {
	def := &sym.Definition{Kind: sym.KindBuiltinRegister, Name: table.Intern(name), Parent: b.Scope, RegisterTag: tag.Name}
	b.Scope.Declare(def.Name, def, sym.RedeclForbidden)
	return def
}

// DeclareIntrinsic inserts name as a KindBuiltinLoadIntrinsic (load=true) or
// KindBuiltinVoidIntrinsic (load=false) definition, for a backend's
// reserveDefinitions to call per platform-specific intrinsic (`push`,
// `pop`, `cmp`, `bit`, `nop`, `halt`, ...).
func (b *Builtins) DeclareIntrinsic(table *intern.Table, name string, params []ast.Param, load bool) *sym.Definition {
	kind := sym.KindBuiltinVoidIntrinsic
	if load {
		kind = sym.KindBuiltinLoadIntrinsic
	}
	def := &sym.Definition{Kind: kind, Name: table.Intern(name), Parent: b.Scope, Params: params}
	b.Scope.Declare(def.Name, def, sym.RedeclForbidden)
	return def
}

func integerRange(signed bool, bitWidth int) (min, max int64) {
	if bitWidth >= 64 {
		if signed {
			return -(1 << 63), (1 << 63) - 1
		}
		// u64's max (2^64-1) does not fit an int64; Min/Max here only
		// bound the fast-path check used before falling back to the
		// 128-bit Hi/Lo representation (internal/compiler's constant
		// folder does the exact range check for u64/i64 edge literals).
		return 0, -1
	}
	if signed {
		return -(1 << (bitWidth - 1)), (1 << (bitWidth - 1)) - 1
	}
	return 0, (1 << bitWidth) - 1
}
