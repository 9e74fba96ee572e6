package ast

import "github.com/anvil-lang/anvil/internal/intern"

// TypeExpr is any type-expression node (spec.md §3 "TypeExpression").
// Structural equality is definition-pointer equality for named types,
// implemented by internal/sym since comparing resolved identities needs the
// Definition type ast deliberately does not import (see ast.go's Def).
type TypeExpr interface {
	typeNode()
}

// ResolvedTypeIdent names a type via a resolved definition.
type ResolvedTypeIdent struct {
	Def Def
}

func (*ResolvedTypeIdent) typeNode() {}

// UnresolvedTypeIdent names a type before resolution.
type UnresolvedTypeIdent struct {
	Pieces []intern.String
}

func (*UnresolvedTypeIdent) typeNode() {}

// ArrayType is `[T; count]` or `[T]` (count nil means unsized / inferred).
type ArrayType struct {
	Element TypeExpr
	Count   Expr
}

func (*ArrayType) typeNode() {}

// PointerType is `*T`/`*const T`/`*writeonly T`/`*far T`.
type PointerType struct {
	Element TypeExpr
	Quals   Qualifiers
}

func (*PointerType) typeNode() {}

// TupleType is `(T0, T1, ...)`.
type TupleType struct {
	Elements []TypeExpr
}

func (*TupleType) typeNode() {}

// FuncType is `func(T0, T1) -> R`.
type FuncType struct {
	Params []TypeExpr
	Return TypeExpr
}

func (*FuncType) typeNode() {}

// TypeOfType is `typeof(expr)` used in type position.
type TypeOfType struct {
	Value Expr
}

func (*TypeOfType) typeNode() {}
