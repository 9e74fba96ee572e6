// Package ast implements the immutable AST of spec.md component B:
// expressions, statements, and type expressions, each a closed tagged
// variant with a source location and (on expressions) an optional
// post-analysis annotation. Per spec.md §9's re-architecture note, the
// hand-rolled tagged-union-with-raw-children shape of the original is
// replaced by one Go struct per variant behind a marker interface, with
// owned children stored by value and non-owning references (into
// internal/sym definitions) kept as plain pointers.
package ast

import (
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/intern"
)

// EvalClass is where an expression's value becomes available. The lattice
// is Unknown < CompileTime < LinkTime < RunTime (spec.md §3).
type EvalClass int

const (
	Unknown EvalClass = iota
	CompileTime
	LinkTime
	RunTime
)

func (c EvalClass) Max(o EvalClass) EvalClass {
	if o > c {
		return o
	}
	return c
}

func (c EvalClass) String() string {
	switch c {
	case CompileTime:
		return "compile-time"
	case LinkTime:
		return "link-time"
	case RunTime:
		return "run-time"
	default:
		return "unknown"
	}
}

// Qualifiers is a bitset of expression/type qualifiers.
type Qualifiers uint8

const (
	QualConst Qualifiers = 1 << iota
	QualWriteonly
	QualFar
)

func (q Qualifiers) Has(f Qualifiers) bool { return q&f != 0 }

// Info is the optional post-analysis annotation attached to an Expr once
// the type & constant reduction pass (internal/compiler) has run. Once set
// it is never mutated again (spec.md §3 invariant).
type Info struct {
	Class EvalClass
	Type  TypeExpr
	Quals Qualifiers
}

// Def is the minimal view of internal/sym.Definition that internal/ast
// needs, avoiding an import cycle between ast and sym (sym.Definition
// embeds *ast statements, so ast cannot import sym back).
type Def interface {
	DefName() intern.String
}

// Expr is any expression node.
type Expr interface {
	Pos() diag.Pos
	Info() *Info
	SetInfo(Info)
	exprNode()
}

type exprBase struct {
	pos  diag.Pos
	info *Info
}

func (b *exprBase) Pos() diag.Pos     { return b.pos }
func (b *exprBase) SetPos(p diag.Pos) { b.pos = p }
func (b *exprBase) Info() *Info {
	if b.info == nil {
		b.info = &Info{}
	}
	return b.info
}
func (b *exprBase) SetInfo(i Info) { b.info = &i }
func (*exprBase) exprNode()        {}

// IntLiteral is a 128-bit signed integer literal (spec.md uses 128-bit
// signed arithmetic for constant folding; represented here as hi:lo halves
// since the standard library has no native int128).
type IntLiteral struct {
	exprBase
	Hi, Lo uint64 // two's-complement 128-bit value, Hi holds the sign
	Suffix string // "", "u8", "i16", ...
}

// BoolLiteral is `true`/`false`.
type BoolLiteral struct {
	exprBase
	Value bool
}

// StringLiteral is a quoted string literal.
type StringLiteral struct {
	exprBase
	Value string
}

// UnresolvedIdent is a dotted/colon identifier before name resolution.
type UnresolvedIdent struct {
	exprBase
	Pieces []intern.String
}

// ResolvedIdent is an identifier after successful name resolution.
type ResolvedIdent struct {
	exprBase
	Def    Def
	Pieces []intern.String // original pieces, kept for diagnostics/clone
}

// BinaryKind is the operator of a BinaryOp.
type BinaryKind int

const (
	BAdd BinaryKind = iota
	BSub
	BMul
	BDiv
	BMod
	BShl
	BShr
	BRol
	BRor
	BAnd
	BOr
	BXor
	BEq
	BNe
	BLt
	BLe
	BGt
	BGe
	BLogAnd
	BLogOr
)

// BinaryOp is a two-child binary operator expression.
type BinaryOp struct {
	exprBase
	Kind        BinaryKind
	Left, Right Expr
}

// AssignKind is the operator of an Assign: plain `=` or a compound
// assignment that also names the binary operator applied before storing.
type AssignKind int

const (
	AssignPlain AssignKind = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
	AssignMod
	AssignShl
	AssignShr
	AssignAnd
	AssignOr
	AssignXor
)

// Assign is `target = value` or `target OP= value`, used as an
// ExprStatement's Value for both plain and compound assignment statements.
type Assign struct {
	exprBase
	Kind   AssignKind
	Target Expr
	Value  Expr
}

// UnaryKind is the operator of a UnaryOp.
type UnaryKind int

const (
	UNeg UnaryKind = iota
	UNot
	UBitNot
	UPreInc
	UPreDec
	UPostInc
	UPostDec
	UDeref
)

// UnaryOp is a single-child unary operator expression.
type UnaryOp struct {
	exprBase
	Kind  UnaryKind
	Inner Expr
}

// Index is `base[subscript]`.
type Index struct {
	exprBase
	Base, Subscript Expr
}

// BitIndex is `value $ n`: extracts bit n of value.
type BitIndex struct {
	exprBase
	Value, Bit Expr
}

// FieldAccess is `base.field`.
type FieldAccess struct {
	exprBase
	Base  Expr
	Field intern.String
}

// Call is a function call, with an `inline?` flag for compile-time
// expansion (spec.md §3).
type Call struct {
	exprBase
	Callee Expr
	Args   []Expr
	Inline bool
}

// Cast is `expr as T`.
type Cast struct {
	exprBase
	Value Expr
	Type  TypeExpr
}

// OffsetOf is `offsetof(T, field)`.
type OffsetOf struct {
	exprBase
	Type  TypeExpr
	Field intern.String
}

// TypeOfExpr is `typeof(expr)` used as a value-producing expression.
type TypeOfExpr struct {
	exprBase
	Value Expr
}

// SizeQueryKind distinguishes sizeof from alignof.
type SizeQueryKind int

const (
	SizeOf SizeQueryKind = iota
	AlignOf
)

// SizeQuery is `sizeof(T)` / `alignof(T)`.
type SizeQuery struct {
	exprBase
	Kind SizeQueryKind
	Type TypeExpr
}

// Range is `start..end by step`; any of the three may be nil.
type Range struct {
	exprBase
	Start, End, Step Expr
}

// ArrayLiteral is `[a, b, c]`.
type ArrayLiteral struct {
	exprBase
	Elements []Expr
}

// ArrayPadLiteral is `[value; count]`.
type ArrayPadLiteral struct {
	exprBase
	Value Expr
	Count Expr
}

// ArrayComprehension is `[body for name in sequence]`.
type ArrayComprehension struct {
	exprBase
	Body     Expr
	Name     intern.String
	Sequence Expr
}

// TupleLiteral is `(a, b, c)`.
type TupleLiteral struct {
	exprBase
	Elements []Expr
}

// StructFieldInit is one `name: value` pair of a StructLiteral.
type StructFieldInit struct {
	Name  intern.String
	Value Expr
}

// StructLiteral is `T{ name: value, ... }`.
type StructLiteral struct {
	exprBase
	Type   TypeExpr
	Fields []StructFieldInit
}

// SideEffectBlock is `{ stmt...; result }` used as an expression.
type SideEffectBlock struct {
	exprBase
	Statements []Statement
	Result     Expr
}

// Embed is `embed "path"`: the file's bytes as an array-literal-producing
// expression (spec.md §6; supplemented per original_source/, see DESIGN.md).
type Embed struct {
	exprBase
	Path string
}

// Clone returns a deep copy of e with a new source location and a reset
// annotation, supporting macro-like expansion of `let` constants and
// compile-time `inline for` (spec.md §4.B).
func Clone(e Expr, newPos diag.Pos) Expr {
	if e == nil {
		return nil
	}
	switch v := e.(type) {
	case *IntLiteral:
		n := *v
		n.pos, n.info = newPos, nil
		return &n
	case *BoolLiteral:
		n := *v
		n.pos, n.info = newPos, nil
		return &n
	case *StringLiteral:
		n := *v
		n.pos, n.info = newPos, nil
		return &n
	case *UnresolvedIdent:
		n := *v
		n.pos, n.info = newPos, nil
		n.Pieces = append([]intern.String(nil), v.Pieces...)
		return &n
	case *ResolvedIdent:
		n := *v
		n.pos, n.info = newPos, nil
		return &n
	case *BinaryOp:
		n := *v
		n.pos, n.info = newPos, nil
		n.Left, n.Right = Clone(v.Left, newPos), Clone(v.Right, newPos)
		return &n
	case *UnaryOp:
		n := *v
		n.pos, n.info = newPos, nil
		n.Inner = Clone(v.Inner, newPos)
		return &n
	case *Index:
		n := *v
		n.pos, n.info = newPos, nil
		n.Base, n.Subscript = Clone(v.Base, newPos), Clone(v.Subscript, newPos)
		return &n
	case *BitIndex:
		n := *v
		n.pos, n.info = newPos, nil
		n.Value, n.Bit = Clone(v.Value, newPos), Clone(v.Bit, newPos)
		return &n
	case *FieldAccess:
		n := *v
		n.pos, n.info = newPos, nil
		n.Base = Clone(v.Base, newPos)
		return &n
	case *Call:
		n := *v
		n.pos, n.info = newPos, nil
		n.Callee = Clone(v.Callee, newPos)
		n.Args = cloneSlice(v.Args, newPos)
		return &n
	case *Cast:
		n := *v
		n.pos, n.info = newPos, nil
		n.Value = Clone(v.Value, newPos)
		return &n
	case *OffsetOf:
		n := *v
		n.pos, n.info = newPos, nil
		return &n
	case *TypeOfExpr:
		n := *v
		n.pos, n.info = newPos, nil
		n.Value = Clone(v.Value, newPos)
		return &n
	case *SizeQuery:
		n := *v
		n.pos, n.info = newPos, nil
		return &n
	case *Range:
		n := *v
		n.pos, n.info = newPos, nil
		n.Start, n.End, n.Step = Clone(v.Start, newPos), Clone(v.End, newPos), Clone(v.Step, newPos)
		return &n
	case *ArrayLiteral:
		n := *v
		n.pos, n.info = newPos, nil
		n.Elements = cloneSlice(v.Elements, newPos)
		return &n
	case *ArrayPadLiteral:
		n := *v
		n.pos, n.info = newPos, nil
		n.Value, n.Count = Clone(v.Value, newPos), Clone(v.Count, newPos)
		return &n
	case *ArrayComprehension:
		n := *v
		n.pos, n.info = newPos, nil
		n.Body, n.Sequence = Clone(v.Body, newPos), Clone(v.Sequence, newPos)
		return &n
	case *TupleLiteral:
		n := *v
		n.pos, n.info = newPos, nil
		n.Elements = cloneSlice(v.Elements, newPos)
		return &n
	case *StructLiteral:
		n := *v
		n.pos, n.info = newPos, nil
		n.Fields = append([]StructFieldInit(nil), v.Fields...)
		for i := range n.Fields {
			n.Fields[i].Value = Clone(n.Fields[i].Value, newPos)
		}
		return &n
	case *SideEffectBlock:
		n := *v
		n.pos, n.info = newPos, nil
		n.Result = Clone(v.Result, newPos)
		return &n
	case *Embed:
		n := *v
		n.pos, n.info = newPos, nil
		return &n
	default:
		return e
	}
}

func cloneSlice(es []Expr, pos diag.Pos) []Expr {
	if es == nil {
		return nil
	}
	out := make([]Expr, len(es))
	for i, e := range es {
		out[i] = Clone(e, pos)
	}
	return out
}

// As attempts to view e as *T, the AST's "try get as variant X" accessor
// (spec.md §4.B).
func As[T any](e Expr) (T, bool) {
	v, ok := e.(T)
	return v, ok
}
