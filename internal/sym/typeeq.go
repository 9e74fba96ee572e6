package sym

import "github.com/anvil-lang/anvil/internal/ast"

// TypeEqual implements TypeExpression structural equality with
// definition-pointer equality for named types (spec.md §3). Two
// ResolvedTypeIdent nodes are equal iff they name the same Definition
// after following type-alias chains.
func TypeEqual(a, b ast.TypeExpr) bool {
	a = underlyingNamed(a)
	b = underlyingNamed(b)
	switch av := a.(type) {
	case *ast.ResolvedTypeIdent:
		bv, ok := b.(*ast.ResolvedTypeIdent)
		return ok && av.Def == bv.Def
	case *ast.ArrayType:
		bv, ok := b.(*ast.ArrayType)
		return ok && TypeEqual(av.Element, bv.Element) && sameCount(av.Count, bv.Count)
	case *ast.PointerType:
		bv, ok := b.(*ast.PointerType)
		return ok && av.Quals == bv.Quals && TypeEqual(av.Element, bv.Element)
	case *ast.TupleType:
		bv, ok := b.(*ast.TupleType)
		if !ok || len(av.Elements) != len(bv.Elements) {
			return false
		}
		for i := range av.Elements {
			if !TypeEqual(av.Elements[i], bv.Elements[i]) {
				return false
			}
		}
		return true
	case *ast.FuncType:
		bv, ok := b.(*ast.FuncType)
		if !ok || len(av.Params) != len(bv.Params) {
			return false
		}
		for i := range av.Params {
			if !TypeEqual(av.Params[i], bv.Params[i]) {
				return false
			}
		}
		return TypeEqual(av.Return, bv.Return)
	default:
		return false
	}
}

// underlyingNamed follows a ResolvedTypeIdent through any type-alias chain
// to its final definition's type, so aliases compare equal to their target.
func underlyingNamed(t ast.TypeExpr) ast.TypeExpr {
	rt, ok := t.(*ast.ResolvedTypeIdent)
	if !ok {
		return t
	}
	def, ok := rt.Def.(*Definition)
	if !ok {
		return t
	}
	if def.Kind != KindTypeAlias {
		return t
	}
	final, ok := ResolveAlias(def)
	if !ok {
		return t
	}
	return &ast.ResolvedTypeIdent{Def: final}
}

func sameCount(a, b ast.Expr) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ai, aok := a.(*ast.IntLiteral)
	bi, bok := b.(*ast.IntLiteral)
	if aok && bok {
		return ai.Hi == bi.Hi && ai.Lo == bi.Lo
	}
	return a == b
}

// DefinitionOf extracts the *Definition behind a resolved TypeExpr or Expr,
// or nil if t does not name a resolved definition.
func DefinitionOf(d ast.Def) *Definition {
	if d == nil {
		return nil
	}
	def, _ := d.(*Definition)
	return def
}
