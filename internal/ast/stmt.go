package ast

import (
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/intern"
)

// Statement is any statement node (spec.md §3).
type Statement interface {
	Pos() diag.Pos
	stmtNode()
}

type stmtBase struct {
	pos diag.Pos
}

func (b *stmtBase) Pos() diag.Pos     { return b.pos }
func (b *stmtBase) SetPos(p diag.Pos) { b.pos = p }
func (*stmtBase) stmtNode()       {}

// DistanceHint selects a short/long encoding family for a branch.
type DistanceHint int

const (
	DistanceDefault DistanceHint = iota
	DistanceShort
	DistanceLong
)

// Attribute is one `#[name(args)]` attribute.
type Attribute struct {
	Name intern.String
	Args []Expr
}

// Attributed wraps an inner statement with a list of attributes.
type Attributed struct {
	stmtBase
	Attrs []Attribute
	Inner Statement
}

// BankDecl declares a named memory bank (spec.md component G).
type BankDecl struct {
	stmtBase
	Name     intern.String
	Kind     intern.String // "ram"/"rom"/"data"/"chr"/"wram"...
	Base     Expr          // optional
	Capacity Expr
}

// Block is `{ ... }`.
type Block struct {
	stmtBase
	Statements []Statement
}

// BranchKind is the verb of a Branch statement.
type BranchKind int

const (
	BranchBreak BranchKind = iota
	BranchContinue
	BranchGoto
	BranchReturn
	BranchIrqReturn
	BranchNmiReturn
	BranchCall
	BranchFarGoto
	BranchFarReturn
	BranchFarCall
)

// Branch is break/continue/goto/return/irqreturn/nmireturn/call/fargoto/
// farreturn/farcall, each with an optional condition, destination, return
// value, and distance hint (spec.md §3).
type Branch struct {
	stmtBase
	Kind        BranchKind
	Condition   Expr
	Destination Expr
	ReturnValue Expr
	Distance    DistanceHint
}

// ConfigDirective is `config { key: value, ... }`.
type ConfigDirective struct {
	stmtBase
	Entries map[string]Expr
	Order   []string
}

// DoWhile is `do { body } while cond`.
type DoWhile struct {
	stmtBase
	Body      Statement
	Condition Expr
}

// EnumMember is one member of an EnumDecl.
type EnumMember struct {
	Name  intern.String
	Value Expr // optional; nil means auto-increment (see DESIGN.md)
}

// EnumDecl declares `enum Name : T { members }`.
type EnumDecl struct {
	stmtBase
	Name       intern.String
	Underlying TypeExpr // optional; nil means inferred
	Members    []EnumMember
}

// ExprStatement is a bare expression used as a statement.
type ExprStatement struct {
	stmtBase
	Value Expr
}

// ForStatement is `for counter in sequence { body }`.
type ForStatement struct {
	stmtBase
	Counter  intern.String
	Sequence Expr
	Body     Statement
	Distance DistanceHint
}

// FileStatement is a parsed translation unit: top-level items plus the
// original/expanded path pair used by import flattening.
type FileStatement struct {
	stmtBase
	Items    []Statement
	Original string
	Expanded string
}

// Param is one formal parameter of a FuncDecl or a parameterized LetDecl.
type Param struct {
	Name intern.String
	Type TypeExpr // nil for a `let` macro parameter (untyped substitution)
}

// FuncDecl is `[inline] [far] func name(params) -> ret { body }`.
type FuncDecl struct {
	stmtBase
	Inline bool
	Far    bool
	Name   intern.String
	Params []Param
	Return TypeExpr
	Body   Statement
}

// IfStatement is `if cond { then } else { else }`.
type IfStatement struct {
	stmtBase
	Condition Expr
	Then      Statement
	Else      Statement // optional
	Distance  DistanceHint
}

// InStatement is `in bankPath { ... }` / `in bankPath(dest) { ... }`.
type InStatement struct {
	stmtBase
	BankPath []intern.String
	Dest     Expr // optional
	Body     Statement
}

// InlineFor is `inline for name in sequence { body }`, always unrolled at
// compile time.
type InlineFor struct {
	stmtBase
	Name     intern.String
	Sequence Expr
	Body     Statement
}

// ImportRef is `import "path"`.
type ImportRef struct {
	stmtBase
	Path string
}

// Internal is a synthetic declaration produced during lowering (e.g. a
// hidden temporary or label), not written by the user.
type Internal struct {
	stmtBase
	Tag string
}

// LabelDecl is `[far] label name:`.
type LabelDecl struct {
	stmtBase
	Far  bool
	Name intern.String
}

// LetDecl is a compile-time constant or macro: `let name(params) = value`.
type LetDecl struct {
	stmtBase
	Name   intern.String
	Params []Param // empty for a plain constant
	Value  Expr
}

// Namespace is `namespace name { ... }`.
type Namespace struct {
	stmtBase
	Name  intern.String
	Items []Statement
}

// StructField is one member of a StructDecl.
type StructField struct {
	Name  intern.String
	Type  TypeExpr
	Align Expr // optional, supplemented per original_source/ (see SPEC_FULL.md §4)
}

// StructDecl is `struct|union Name { fields }`.
type StructDecl struct {
	stmtBase
	Name   intern.String
	Union  bool
	Fields []StructField
}

// TypeAlias is `typealias Name = T`.
type TypeAlias struct {
	stmtBase
	Name intern.String
	Type TypeExpr
}

// VarDecl is `var [writeonly] names[@addr] : T = init`.
type VarDecl struct {
	stmtBase
	Writeonly bool
	Names     []intern.String
	Addresses []Expr // parallel to Names; nil entries mean "unassigned"
	Type      TypeExpr
	Init      Expr // optional
	Extern    bool
}

// WhileStatement is `while cond { body }`.
type WhileStatement struct {
	stmtBase
	Condition Expr
	Body      Statement
	Distance  DistanceHint
}
