// Package sym implements the symbol table and definition graph of spec.md
// component C: nested scopes with parent links, and definitions as a
// tagged union over namespace, bank, function, variable, constant-let,
// struct, enum, type alias, builtin register, builtin type, and builtin
// intrinsic.
//
// Per spec.md §9's design note on the definition/scope back-edge cycle,
// Scope and Definition are two separate, explicitly-linked node kinds
// (rather than one recursive value) so that a Definition's ParentScope
// back-reference and a Scope's member Definitions forward-reference do not
// require a forward-declared type, matching the "two arenas with stable
// non-owning keys" remedy spec.md suggests — here the "stable keys" are
// ordinary Go pointers, since internal/sym owns both arenas for the whole
// run (spec.md §5: AST/symbol-table lifetimes are trivially covered by the
// single-threaded compiler core).
package sym

import (
	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/bank"
	"github.com/anvil-lang/anvil/internal/intern"
)

// Kind discriminates a Definition's variant.
type Kind int

const (
	KindBuiltinBool Kind = iota
	KindBuiltinInteger
	KindBuiltinRange
	KindBuiltinIntrinsic
	KindBuiltinTypeof
	KindBuiltinLet
	KindBuiltinLoadIntrinsic
	KindBuiltinVoidIntrinsic
	KindBuiltinRegister
	KindBuiltinBankType
	KindBank
	KindEnum
	KindEnumMember
	KindFunc
	KindLet
	KindNamespace
	KindStruct
	KindStructMember
	KindTypeAlias
	KindVar
)

func (k Kind) String() string {
	switch k {
	case KindBuiltinBool:
		return "builtin bool"
	case KindBuiltinInteger:
		return "builtin integer type"
	case KindBuiltinRange:
		return "builtin range type"
	case KindBuiltinIntrinsic:
		return "builtin intrinsic"
	case KindBuiltinTypeof:
		return "builtin typeof"
	case KindBuiltinLet:
		return "builtin let"
	case KindBuiltinLoadIntrinsic:
		return "builtin load intrinsic"
	case KindBuiltinVoidIntrinsic:
		return "builtin void intrinsic"
	case KindBuiltinRegister:
		return "register"
	case KindBuiltinBankType:
		return "builtin bank type"
	case KindBank:
		return "bank"
	case KindEnum:
		return "enum"
	case KindEnumMember:
		return "enum member"
	case KindFunc:
		return "function"
	case KindLet:
		return "constant"
	case KindNamespace:
		return "namespace"
	case KindStruct:
		return "struct"
	case KindStructMember:
		return "struct member"
	case KindTypeAlias:
		return "type alias"
	case KindVar:
		return "variable"
	default:
		return "definition"
	}
}

// IntegerInfo describes a builtin integer type's range and size.
type IntegerInfo struct {
	Signed   bool
	BitWidth int
	Min, Max int64 // representable as int64; 128-bit literals are checked
	// against these at the edges (u64/i64 use Min/Max sentinels, see
	// internal/compiler's constant folder for the 128-bit path).
}

// Definition is a tagged-union node: every variant embeds Base and the
// Kind field selects which optional payload is meaningful. This mirrors
// spec.md §3's "Definition" variant list while keeping a single concrete
// Go type so internal/ast's Def interface (just DefName) is trivially
// satisfied without per-variant wrapper types.
type Definition struct {
	Kind Kind
	Name intern.String
	Decl ast.Statement // back-reference to the declaring statement
	Parent *Scope       // set once by the scope pass, then never changed

	// Payload fields, meaningful per Kind:
	Integer   *IntegerInfo     // KindBuiltinInteger
	Type      ast.TypeExpr     // KindTypeAlias, KindVar, KindStructMember (field type), KindFunc (return)
	Params    []ast.Param      // KindFunc, KindLet (macro), KindBuiltinIntrinsic
	Value     ast.Expr         // KindLet (constant value / macro body), KindEnumMember
	Members   *Scope           // KindNamespace, KindStruct, KindEnum: child scope for qualified lookup
	Bank      *bank.Bank       // KindBank
	Address   *bank.Address    // KindFunc, KindVar, KindBank: assigned after layout
	Alias     *Definition      // KindTypeAlias: resolved target, filled in by internal/sym's alias resolver
	EnumUnderlying *Definition // KindEnum: resolved underlying integer type
	StructSize, StructAlign int64 // KindStruct
	Union     bool             // KindStruct: true if declared with `union`
	Offset    int64            // KindStructMember: byte offset within its struct, set by internal/types layout
	ExplicitAlign int64        // KindStructMember: `#[align(n)]`, 0 if unspecified
	RegisterTag string         // KindBuiltinRegister: the backend-namespaced pattern.Reg.Name this source identifier resolves to; distinct from Name because two backends may both call a register "a"
}

// DefName implements ast.Def.
func (d *Definition) DefName() intern.String { return d.Name }

// ResolveAlias follows a chain of type aliases to its final target,
// reporting ok=false if the chain is self-referential (supplemented per
// original_source/, see SPEC_FULL.md §4: the original's typealias recursion
// guard).
func ResolveAlias(d *Definition) (final *Definition, ok bool) {
	seen := map[*Definition]bool{}
	cur := d
	for cur != nil && cur.Kind == KindTypeAlias {
		if seen[cur] {
			return cur, false
		}
		seen[cur] = true
		cur = cur.Alias
	}
	if cur == nil {
		return d, false
	}
	return cur, true
}
