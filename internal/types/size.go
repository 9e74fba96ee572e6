// Package types computes byte size, alignment, and struct member offsets
// over internal/ast.TypeExpr trees once name resolution has run. It is the
// "offsetof/sizeof/alignof" half of spec.md §4.H's type & constant reduction
// pass, split out of internal/compiler because both the constant folder and
// internal/compiler's layout pass (for a var's storage size) need it.
//
// Grounded on cmd_local/compile/internal/types/utils.go's definition-identity
// helpers, generalized from "is this the same *types.Type" to "how many
// bytes does this TypeExpr occupy" - the same struct (a thin helper package
// wrapping a handful of pure functions over an already-resolved type graph).
package types

import (
	"fmt"

	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/sym"
)

// PointerSizes supplies the byte width of a near and far pointer, which
// depend on the active platform backend (spec.md §4.F) rather than being a
// fixed constant of the type system itself.
type PointerSizes struct {
	Near int64
	Far  int64
}

// ConstIntFunc evaluates an already-reduced compile-time array-count
// expression to an int64, used for ArrayType.Count. internal/compiler
// supplies its constant folder's result accessor here to avoid an import
// cycle (internal/compiler depends on internal/types, not the reverse).
type ConstIntFunc func(e ast.Expr) (int64, bool)

// seenSet tracks typealias definitions already unwound on the current
// sizeof/alignof walk, so `typealias A = A` (and longer chains) fail with
// the original's recursion-guard diagnostic (SPEC_FULL.md §4) instead of
// recursing forever - including when the cycle passes through an
// aggregate type (`typealias A = [A; 4]`), which a definition-to-
// definition-only chain walk such as sym.ResolveAlias cannot see through.
type seenSet map[*sym.Definition]bool

// Sizeof returns t's size in bytes.
func Sizeof(t ast.TypeExpr, ptr PointerSizes, constInt ConstIntFunc) (int64, error) {
	return sizeofT(t, ptr, constInt, seenSet{})
}

func sizeofT(t ast.TypeExpr, ptr PointerSizes, constInt ConstIntFunc, seen seenSet) (int64, error) {
	switch tv := t.(type) {
	case *ast.ResolvedTypeIdent:
		def, ok := tv.Def.(*sym.Definition)
		if !ok || def == nil {
			return 0, fmt.Errorf("types: unresolved type identifier")
		}
		return sizeofDef(def, ptr, constInt, seen)
	case *ast.ArrayType:
		elemSize, err := sizeofT(tv.Element, ptr, constInt, seen)
		if err != nil {
			return 0, err
		}
		if tv.Count == nil {
			return 0, fmt.Errorf("types: sizeof an unsized array type")
		}
		n, ok := constInt(tv.Count)
		if !ok {
			return 0, fmt.Errorf("types: array count is not a compile-time constant")
		}
		return elemSize * n, nil
	case *ast.PointerType:
		if tv.Quals.Has(ast.QualFar) {
			return ptr.Far, nil
		}
		return ptr.Near, nil
	case *ast.TupleType:
		var total int64
		for _, e := range tv.Elements {
			s, err := sizeofT(e, ptr, constInt, seen)
			if err != nil {
				return 0, err
			}
			total += s
		}
		return total, nil
	default:
		return 0, fmt.Errorf("types: type has no size")
	}
}

func sizeofDef(def *sym.Definition, ptr PointerSizes, constInt ConstIntFunc, seen seenSet) (int64, error) {
	switch def.Kind {
	case sym.KindBuiltinInteger:
		return int64((def.Integer.BitWidth + 7) / 8), nil
	case sym.KindBuiltinBool:
		return 1, nil
	case sym.KindStruct:
		if def.StructSize == 0 && len(def.Members.All()) > 0 {
			if err := ComputeStructLayout(def, ptr, constInt); err != nil {
				return 0, err
			}
		}
		return def.StructSize, nil
	case sym.KindEnum:
		if def.EnumUnderlying != nil {
			return sizeofDef(def.EnumUnderlying, ptr, constInt, seen)
		}
		return 1, nil
	case sym.KindTypeAlias:
		if seen[def] {
			return 0, fmt.Errorf("types: typealias %q refers to itself", def.Name.Text())
		}
		seen[def] = true
		return sizeofT(def.Type, ptr, constInt, seen)
	default:
		return 0, fmt.Errorf("types: %s has no size", def.Kind)
	}
}

// Alignof returns t's required alignment in bytes, conservatively equal to
// its size for primitives and to the maximum member alignment for structs
// (no over-aligned vector types exist in this language).
func Alignof(t ast.TypeExpr, ptr PointerSizes, constInt ConstIntFunc) (int64, error) {
	return alignofT(t, ptr, constInt, seenSet{})
}

func alignofT(t ast.TypeExpr, ptr PointerSizes, constInt ConstIntFunc, seen seenSet) (int64, error) {
	switch tv := t.(type) {
	case *ast.ResolvedTypeIdent:
		def, ok := tv.Def.(*sym.Definition)
		if !ok || def == nil {
			return 0, fmt.Errorf("types: unresolved type identifier")
		}
		switch def.Kind {
		case sym.KindStruct:
			if def.StructAlign == 0 && len(def.Members.All()) > 0 {
				if err := ComputeStructLayout(def, ptr, constInt); err != nil {
					return 0, err
				}
			}
			if def.StructAlign == 0 {
				return 1, nil
			}
			return def.StructAlign, nil
		case sym.KindTypeAlias:
			if seen[def] {
				return 0, fmt.Errorf("types: typealias %q refers to itself", def.Name.Text())
			}
			seen[def] = true
			return alignofT(def.Type, ptr, constInt, seen)
		}
	case *ast.ArrayType:
		return alignofT(tv.Element, ptr, constInt, seen)
	}
	return sizeofT(t, ptr, constInt, seen)
}

func roundUp(offset, align int64) int64 {
	if align <= 1 {
		return offset
	}
	return (offset + align - 1) / align * align
}

// ComputeStructLayout assigns Offset to every KindStructMember definition
// under def.Members, honoring an explicit `#[align(n)]` override per
// SPEC_FULL.md §4's "struct/union layout with explicit alignment and
// bit-packing" supplement. Union members all start at offset 0. Sets
// def.StructSize/def.StructAlign on success.
func ComputeStructLayout(def *sym.Definition, ptr PointerSizes, constInt ConstIntFunc) error {
	var offset, maxAlign int64
	for _, m := range def.Members.All() {
		if m.Kind != sym.KindStructMember {
			continue
		}
		size, err := Sizeof(m.Type, ptr, constInt)
		if err != nil {
			return fmt.Errorf("struct %q member %q: %w", def.Name.Text(), m.Name.Text(), err)
		}
		align, err := Alignof(m.Type, ptr, constInt)
		if err != nil {
			return fmt.Errorf("struct %q member %q: %w", def.Name.Text(), m.Name.Text(), err)
		}
		if m.ExplicitAlign != 0 {
			align = m.ExplicitAlign
		}
		if align > maxAlign {
			maxAlign = align
		}
		if def.Union {
			m.Offset = 0
			if size > offset {
				offset = size
			}
			continue
		}
		start := roundUp(offset, align)
		m.Offset = start
		offset = start + size
	}
	if maxAlign == 0 {
		maxAlign = 1
	}
	def.StructSize = roundUp(offset, maxAlign)
	def.StructAlign = maxAlign
	return nil
}

// Offsetof returns the byte offset of field within struct type t.
func Offsetof(t ast.TypeExpr, field string, ptr PointerSizes, constInt ConstIntFunc) (int64, error) {
	rt, ok := t.(*ast.ResolvedTypeIdent)
	if !ok {
		return 0, fmt.Errorf("types: offsetof requires a struct type")
	}
	def, ok := rt.Def.(*sym.Definition)
	if !ok || def == nil || def.Kind != sym.KindStruct {
		return 0, fmt.Errorf("types: offsetof requires a struct type")
	}
	if def.StructSize == 0 && len(def.Members.All()) > 0 {
		if err := ComputeStructLayout(def, ptr, constInt); err != nil {
			return 0, err
		}
	}
	for _, m := range def.Members.All() {
		if m.Kind == sym.KindStructMember && m.Name.Text() == field {
			return m.Offset, nil
		}
	}
	return 0, fmt.Errorf("types: struct %q has no field %q", def.Name.Text(), field)
}
