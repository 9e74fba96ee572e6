package compiler

import (
	"math/big"

	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/int128"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/sym"
)

// reduceExpr resolves identifiers, expands let-macros and the `__has`/
// `__get` compile-time-define forms, and folds constant subtrees, writing
// an ast.Info onto every node it touches (spec.md §4.H's type & constant
// reduction pass, restricted to the evaluation-class/constant-folding
// surface those six end-to-end scenarios exercise; it does not implement a
// full structural type checker - see DESIGN.md).
func (c *Compiler) reduceExpr(e ast.Expr, scope *sym.Scope) ast.Expr {
	if e == nil {
		return nil
	}
	switch v := e.(type) {
	case *ast.IntLiteral:
		v.SetInfo(ast.Info{Class: ast.CompileTime})
		return v

	case *ast.BoolLiteral:
		v.SetInfo(ast.Info{Class: ast.CompileTime, Type: &ast.ResolvedTypeIdent{Def: c.bi.Bool}})
		return v

	case *ast.StringLiteral:
		v.SetInfo(ast.Info{Class: ast.CompileTime})
		return v

	case *ast.Embed:
		v.SetInfo(ast.Info{Class: ast.CompileTime})
		return v

	case *ast.UnresolvedIdent:
		return c.reduceIdent(v.Pieces, v.Pos(), scope)

	case *ast.ResolvedIdent:
		return c.reduceResolvedIdent(v, scope)

	case *ast.BinaryOp:
		v.Left = c.reduceExpr(v.Left, scope)
		v.Right = c.reduceExpr(v.Right, scope)
		if folded := c.foldBinary(v); folded != nil {
			return folded
		}
		v.SetInfo(ast.Info{Class: v.Left.Info().Class.Max(v.Right.Info().Class)})
		return v

	case *ast.UnaryOp:
		v.Inner = c.reduceExpr(v.Inner, scope)
		if folded := c.foldUnary(v); folded != nil {
			return folded
		}
		class := ast.RunTime
		if v.Kind == ast.UNeg || v.Kind == ast.UNot || v.Kind == ast.UBitNot {
			class = v.Inner.Info().Class
		}
		v.SetInfo(ast.Info{Class: class})
		return v

	case *ast.Assign:
		v.Target = c.reduceExpr(v.Target, scope)
		v.Value = c.reduceExpr(v.Value, scope)
		v.SetInfo(ast.Info{Class: ast.RunTime})
		return v

	case *ast.Index:
		v.Base = c.reduceExpr(v.Base, scope)
		v.Subscript = c.reduceExpr(v.Subscript, scope)
		v.SetInfo(ast.Info{Class: ast.RunTime})
		return v

	case *ast.BitIndex:
		v.Value = c.reduceExpr(v.Value, scope)
		v.Bit = c.reduceExpr(v.Bit, scope)
		v.SetInfo(ast.Info{Class: v.Value.Info().Class.Max(v.Bit.Info().Class)})
		return v

	case *ast.FieldAccess:
		v.Base = c.reduceExpr(v.Base, scope)
		v.SetInfo(ast.Info{Class: ast.RunTime})
		return v

	case *ast.Call:
		return c.reduceCall(v, scope)

	case *ast.Cast:
		v.Value = c.reduceExpr(v.Value, scope)
		v.Type = c.reduceType(v.Type, scope)
		v.SetInfo(ast.Info{Class: v.Value.Info().Class, Type: v.Type})
		return v

	case *ast.OffsetOf:
		v.Type = c.reduceType(v.Type, scope)
		v.SetInfo(ast.Info{Class: ast.CompileTime})
		return v

	case *ast.TypeOfExpr:
		v.Value = c.reduceExpr(v.Value, scope)
		v.SetInfo(ast.Info{Class: ast.CompileTime})
		return v

	case *ast.SizeQuery:
		v.Type = c.reduceType(v.Type, scope)
		v.SetInfo(ast.Info{Class: ast.CompileTime})
		return v

	case *ast.Range:
		class := ast.CompileTime
		if v.Start != nil {
			v.Start = c.reduceExpr(v.Start, scope)
			class = class.Max(v.Start.Info().Class)
		}
		if v.End != nil {
			v.End = c.reduceExpr(v.End, scope)
			class = class.Max(v.End.Info().Class)
		}
		if v.Step != nil {
			v.Step = c.reduceExpr(v.Step, scope)
			class = class.Max(v.Step.Info().Class)
		}
		v.SetInfo(ast.Info{Class: class})
		return v

	case *ast.ArrayLiteral:
		class := ast.CompileTime
		for i := range v.Elements {
			v.Elements[i] = c.reduceExpr(v.Elements[i], scope)
			class = class.Max(v.Elements[i].Info().Class)
		}
		v.SetInfo(ast.Info{Class: class})
		return v

	case *ast.ArrayPadLiteral:
		v.Value = c.reduceExpr(v.Value, scope)
		v.Count = c.reduceExpr(v.Count, scope)
		v.SetInfo(ast.Info{Class: v.Value.Info().Class.Max(v.Count.Info().Class)})
		return v

	case *ast.ArrayComprehension:
		v.Sequence = c.reduceExpr(v.Sequence, scope)
		// v.Body references v.Name once per unrolled element; like inline
		// for, it is reduced per-instance during lowering, not here.
		v.SetInfo(ast.Info{Class: ast.CompileTime})
		return v

	case *ast.TupleLiteral:
		class := ast.CompileTime
		for i := range v.Elements {
			v.Elements[i] = c.reduceExpr(v.Elements[i], scope)
			class = class.Max(v.Elements[i].Info().Class)
		}
		v.SetInfo(ast.Info{Class: class})
		return v

	case *ast.StructLiteral:
		v.Type = c.reduceType(v.Type, scope)
		class := ast.CompileTime
		for i := range v.Fields {
			v.Fields[i].Value = c.reduceExpr(v.Fields[i].Value, scope)
			class = class.Max(v.Fields[i].Value.Info().Class)
		}
		v.SetInfo(ast.Info{Class: class, Type: v.Type})
		return v

	case *ast.SideEffectBlock:
		for _, st := range v.Statements {
			c.reduceStmt(st, scope)
		}
		v.Result = c.reduceExpr(v.Result, scope)
		v.SetInfo(ast.Info{Class: ast.RunTime})
		return v

	default:
		return e
	}
}

// reduceIdent resolves pieces against scope, inlining let-constants and
// enum members, and wrapping anything else as a ResolvedIdent.
func (c *Compiler) reduceIdent(pieces []intern.String, pos diag.Pos, scope *sym.Scope) ast.Expr {
	def := c.resolveQualified(pieces, scope, pos)
	if def == nil {
		c.errorf(pos, "undeclared identifier %q", joinPieces(pieces))
		lit := &ast.UnresolvedIdent{Pieces: pieces}
		lit.SetInfo(ast.Info{Class: ast.Unknown})
		return lit
	}
	return c.identFromDef(def, pieces, pos, scope)
}

func (c *Compiler) reduceResolvedIdent(v *ast.ResolvedIdent, scope *sym.Scope) ast.Expr {
	def, ok := v.Def.(*sym.Definition)
	if !ok {
		v.SetInfo(ast.Info{Class: ast.Unknown})
		return v
	}
	return c.identFromDef(def, v.Pieces, v.Pos(), scope)
}

func (c *Compiler) identFromDef(def *sym.Definition, pieces []intern.String, pos diag.Pos, scope *sym.Scope) ast.Expr {
	switch def.Kind {
	case sym.KindLet:
		if len(def.Params) > 0 {
			c.errorf(pos, "%q is a macro and requires arguments", def.Name.Text())
			id := &ast.ResolvedIdent{Def: def, Pieces: pieces}
			id.SetInfo(ast.Info{Class: ast.Unknown})
			return id
		}
		return c.reduceLetValue(def, pos, scope)

	case sym.KindEnumMember:
		if lit, ok := def.Value.(*ast.IntLiteral); ok {
			return ast.Clone(lit, pos)
		}
		c.errorf(pos, "enum member %q used before its enum finished reducing", def.Name.Text())
		id := &ast.ResolvedIdent{Def: def, Pieces: pieces}
		id.SetInfo(ast.Info{Class: ast.Unknown})
		return id

	case sym.KindBank:
		id := &ast.ResolvedIdent{Def: def, Pieces: pieces}
		id.SetInfo(ast.Info{Class: ast.LinkTime})
		return id

	case sym.KindVar, sym.KindBuiltinRegister:
		id := &ast.ResolvedIdent{Def: def, Pieces: pieces}
		id.SetInfo(ast.Info{Class: ast.RunTime, Type: def.Type})
		return id

	case sym.KindFunc:
		id := &ast.ResolvedIdent{Def: def, Pieces: pieces}
		id.SetInfo(ast.Info{Class: ast.LinkTime})
		return id

	default:
		id := &ast.ResolvedIdent{Def: def, Pieces: pieces}
		id.SetInfo(ast.Info{Class: ast.Unknown})
		return id
	}
}

// reduceLetValue inlines a plain (non-macro) let constant's value, guarding
// against a self-referential definition (`let x = x`).
func (c *Compiler) reduceLetValue(def *sym.Definition, pos diag.Pos, scope *sym.Scope) ast.Expr {
	if c.letInProgress[def] {
		c.errorf(pos, "let %q refers to itself", def.Name.Text())
		lit := &ast.BoolLiteral{Value: false}
		lit.SetInfo(ast.Info{Class: ast.CompileTime})
		return lit
	}
	c.letInProgress[def] = true
	reduced := c.reduceExpr(ast.Clone(def.Value, pos), def.Parent)
	delete(c.letInProgress, def)
	def.Value = reduced
	return ast.Clone(reduced, pos)
}

func (c *Compiler) reduceCall(v *ast.Call, scope *sym.Scope) ast.Expr {
	pieces, isIdent := identPieces(v.Callee)
	if isIdent {
		if def := c.resolveQualified(pieces, scope, v.Pos()); def != nil && def.Kind == sym.KindLet {
			switch def.Name.Text() {
			case "__has":
				return c.reduceHas(v, scope)
			case "__get":
				return c.reduceGet(v, scope)
			}
			if len(def.Params) > 0 {
				return c.reduceMacroCall(def, v, scope)
			}
		}
	}
	v.Callee = c.reduceExpr(v.Callee, scope)
	for i := range v.Args {
		v.Args[i] = c.reduceExpr(v.Args[i], scope)
	}
	v.SetInfo(ast.Info{Class: ast.RunTime})
	return v
}

func identPieces(e ast.Expr) ([]intern.String, bool) {
	switch v := e.(type) {
	case *ast.UnresolvedIdent:
		return v.Pieces, true
	case *ast.ResolvedIdent:
		return v.Pieces, true
	default:
		return nil, false
	}
}

// reduceHas implements `__has(name)`: true iff name is a key in the
// builtins' define map, c.bi.Defines (spec.md §4.D).
func (c *Compiler) reduceHas(v *ast.Call, scope *sym.Scope) ast.Expr {
	name, ok := c.defineKeyArg(v, 0, scope)
	result := &ast.BoolLiteral{}
	if ok {
		_, result.Value = c.bi.Defines[name]
	}
	result.SetInfo(ast.Info{Class: ast.CompileTime})
	return result
}

// reduceGet implements `__get(name, fallback)`: the define's value if
// present, else the (reduced) fallback expression.
func (c *Compiler) reduceGet(v *ast.Call, scope *sym.Scope) ast.Expr {
	if len(v.Args) != 2 {
		c.errorf(v.Pos(), "__get requires exactly 2 arguments")
		lit := &ast.BoolLiteral{}
		lit.SetInfo(ast.Info{Class: ast.CompileTime})
		return lit
	}
	name, ok := c.defineKeyArg(v, 0, scope)
	if ok {
		if val, found := c.bi.Defines[name]; found {
			return c.reduceExpr(ast.Clone(val, v.Pos()), scope)
		}
	}
	return c.reduceExpr(v.Args[1], scope)
}

func (c *Compiler) defineKeyArg(v *ast.Call, idx int, scope *sym.Scope) (intern.String, bool) {
	if idx >= len(v.Args) {
		c.errorf(v.Pos(), "missing define-name argument")
		return intern.String{}, false
	}
	switch a := v.Args[idx].(type) {
	case *ast.UnresolvedIdent:
		if len(a.Pieces) == 1 {
			return a.Pieces[0], true
		}
	case *ast.StringLiteral:
		return c.table.Intern(a.Value), true
	}
	c.errorf(v.Pos(), "define-name argument must be a bare identifier or string literal")
	return intern.String{}, false
}

// reduceMacroCall substitutes def's formal parameters with v.Args (each
// reduced in the caller's scope) into a clone of def.Value, then reduces
// the result, implementing `let` macros as textual, call-site-scoped
// substitution (spec.md §4.D: "a let with formal parameters is a compile-
// time macro; substitution occurs at each use").
func (c *Compiler) reduceMacroCall(def *sym.Definition, v *ast.Call, scope *sym.Scope) ast.Expr {
	if len(v.Args) != len(def.Params) {
		c.errorf(v.Pos(), "macro %q expects %d argument(s), got %d", def.Name.Text(), len(def.Params), len(v.Args))
		lit := &ast.BoolLiteral{}
		lit.SetInfo(ast.Info{Class: ast.CompileTime})
		return lit
	}
	bind := make(map[intern.String]ast.Expr, len(v.Args))
	for i, p := range def.Params {
		bind[p.Name] = c.reduceExpr(v.Args[i], scope)
	}
	body := substitute(def.Value, v.Pos(), bind)
	return c.reduceExpr(body, def.Parent)
}

// foldBinary constant-folds v if both operands are already-reduced
// compile-time literals, returning nil if folding does not apply (a
// runtime operand, or an operator this folder does not evaluate - notably
// BRol/BRor, whose result depends on an operand bit-width the constant
// folder does not track; those are left for the active backend's test-and-
// branch/instruction selection to realize as a runtime rotate).
func (c *Compiler) foldBinary(v *ast.BinaryOp) ast.Expr {
	if v.Left.Info().Class != ast.CompileTime || v.Right.Info().Class != ast.CompileTime {
		return nil
	}
	if isComparison(v.Kind) {
		li, lok := v.Left.(*ast.IntLiteral)
		ri, rok := v.Right.(*ast.IntLiteral)
		if !lok || !rok {
			return nil
		}
		cmp := int128.Cmp(int128.Value{Hi: li.Hi, Lo: li.Lo}, int128.Value{Hi: ri.Hi, Lo: ri.Lo})
		var result bool
		switch v.Kind {
		case ast.BEq:
			result = cmp == 0
		case ast.BNe:
			result = cmp != 0
		case ast.BLt:
			result = cmp < 0
		case ast.BLe:
			result = cmp <= 0
		case ast.BGt:
			result = cmp > 0
		case ast.BGe:
			result = cmp >= 0
		}
		lit := &ast.BoolLiteral{Value: result}
		lit.SetInfo(ast.Info{Class: ast.CompileTime})
		return lit
	}
	if v.Kind == ast.BLogAnd || v.Kind == ast.BLogOr {
		lb, lok := v.Left.(*ast.BoolLiteral)
		rb, rok := v.Right.(*ast.BoolLiteral)
		if !lok || !rok {
			return nil
		}
		var result bool
		if v.Kind == ast.BLogAnd {
			result = lb.Value && rb.Value
		} else {
			result = lb.Value || rb.Value
		}
		lit := &ast.BoolLiteral{Value: result}
		lit.SetInfo(ast.Info{Class: ast.CompileTime})
		return lit
	}
	if v.Kind == ast.BRol || v.Kind == ast.BRor {
		return nil
	}
	li, lok := v.Left.(*ast.IntLiteral)
	ri, rok := v.Right.(*ast.IntLiteral)
	if !lok || !rok {
		return nil
	}
	a := int128.Value{Hi: li.Hi, Lo: li.Lo}
	b := int128.Value{Hi: ri.Hi, Lo: ri.Lo}
	result, ok := foldArith(v.Kind, a, b)
	if !ok {
		c.errorf(v.Pos(), "constant expression overflows 128 bits or divides by zero")
		return nil
	}
	lit := &ast.IntLiteral{Hi: result.Hi, Lo: result.Lo}
	lit.SetInfo(ast.Info{Class: ast.CompileTime})
	return lit
}

func isComparison(k ast.BinaryKind) bool {
	switch k {
	case ast.BEq, ast.BNe, ast.BLt, ast.BLe, ast.BGt, ast.BGe:
		return true
	default:
		return false
	}
}

func foldArith(k ast.BinaryKind, a, b int128.Value) (int128.Value, bool) {
	switch k {
	case ast.BAdd:
		return int128.Add(a, b)
	case ast.BSub:
		return int128.Sub(a, b)
	case ast.BMul:
		return int128.Mul(a, b)
	case ast.BDiv:
		return int128.Div(a, b)
	case ast.BMod:
		return int128.Mod(a, b)
	case ast.BShl:
		n, ok := b.FitsInt64()
		if !ok || n < 0 {
			return int128.Value{}, false
		}
		return int128.Shl(a, uint(n))
	case ast.BShr:
		n, ok := b.FitsInt64()
		if !ok || n < 0 {
			return int128.Value{}, false
		}
		return int128.Shr(a, uint(n)), true
	case ast.BAnd:
		return bitwise(a, b, (*big.Int).And)
	case ast.BOr:
		return bitwise(a, b, (*big.Int).Or)
	case ast.BXor:
		return bitwise(a, b, (*big.Int).Xor)
	default:
		return int128.Value{}, false
	}
}

func bitwise(a, b int128.Value, op func(z, x, y *big.Int) *big.Int) (int128.Value, bool) {
	return int128.FromBig(op(new(big.Int), a.Big(), b.Big()))
}

func (c *Compiler) foldUnary(v *ast.UnaryOp) ast.Expr {
	if v.Inner.Info().Class != ast.CompileTime {
		return nil
	}
	switch v.Kind {
	case ast.UNot:
		b, ok := v.Inner.(*ast.BoolLiteral)
		if !ok {
			return nil
		}
		lit := &ast.BoolLiteral{Value: !b.Value}
		lit.SetInfo(ast.Info{Class: ast.CompileTime})
		return lit
	case ast.UNeg, ast.UBitNot:
		li, ok := v.Inner.(*ast.IntLiteral)
		if !ok {
			return nil
		}
		a := int128.Value{Hi: li.Hi, Lo: li.Lo}
		var result int128.Value
		var fok bool
		if v.Kind == ast.UNeg {
			result, fok = int128.Sub(int128.Value{}, a)
		} else {
			result, fok = bitwise(a, int128.FromInt64(-1), (*big.Int).Xor)
		}
		if !fok {
			c.errorf(v.Pos(), "constant expression overflows 128 bits")
			return nil
		}
		lit := &ast.IntLiteral{Hi: result.Hi, Lo: result.Lo}
		lit.SetInfo(ast.Info{Class: ast.CompileTime})
		return lit
	default:
		return nil
	}
}

// substitute deep-copies e, replacing every single-piece UnresolvedIdent
// whose name is a key of bind with (a fresh clone of) the bound expression.
// It mirrors ast.Clone's traversal, since macro substitution is structurally
// the same "deep copy with a per-node rewrite" operation Clone performs for
// plain relocation.
func substitute(e ast.Expr, pos diag.Pos, bind map[intern.String]ast.Expr) ast.Expr {
	if e == nil {
		return nil
	}
	if id, ok := e.(*ast.UnresolvedIdent); ok && len(id.Pieces) == 1 {
		if val, ok := bind[id.Pieces[0]]; ok {
			return ast.Clone(val, pos)
		}
	}
	switch v := e.(type) {
	case *ast.BinaryOp:
		n := *v
		n.Left, n.Right = substitute(v.Left, pos, bind), substitute(v.Right, pos, bind)
		n.SetPos(pos)
		return &n
	case *ast.UnaryOp:
		n := *v
		n.Inner = substitute(v.Inner, pos, bind)
		n.SetPos(pos)
		return &n
	case *ast.Index:
		n := *v
		n.Base, n.Subscript = substitute(v.Base, pos, bind), substitute(v.Subscript, pos, bind)
		n.SetPos(pos)
		return &n
	case *ast.BitIndex:
		n := *v
		n.Value, n.Bit = substitute(v.Value, pos, bind), substitute(v.Bit, pos, bind)
		n.SetPos(pos)
		return &n
	case *ast.FieldAccess:
		n := *v
		n.Base = substitute(v.Base, pos, bind)
		n.SetPos(pos)
		return &n
	case *ast.Call:
		n := *v
		n.Callee = substitute(v.Callee, pos, bind)
		n.Args = substituteSlice(v.Args, pos, bind)
		n.SetPos(pos)
		return &n
	case *ast.Cast:
		n := *v
		n.Value = substitute(v.Value, pos, bind)
		n.SetPos(pos)
		return &n
	case *ast.Assign:
		n := *v
		n.Target, n.Value = substitute(v.Target, pos, bind), substitute(v.Value, pos, bind)
		n.SetPos(pos)
		return &n
	case *ast.Range:
		n := *v
		n.Start, n.End, n.Step = substitute(v.Start, pos, bind), substitute(v.End, pos, bind), substitute(v.Step, pos, bind)
		n.SetPos(pos)
		return &n
	case *ast.ArrayLiteral:
		n := *v
		n.Elements = substituteSlice(v.Elements, pos, bind)
		n.SetPos(pos)
		return &n
	case *ast.ArrayPadLiteral:
		n := *v
		n.Value, n.Count = substitute(v.Value, pos, bind), substitute(v.Count, pos, bind)
		n.SetPos(pos)
		return &n
	case *ast.TupleLiteral:
		n := *v
		n.Elements = substituteSlice(v.Elements, pos, bind)
		n.SetPos(pos)
		return &n
	case *ast.StructLiteral:
		n := *v
		n.Fields = append([]ast.StructFieldInit(nil), v.Fields...)
		for i := range n.Fields {
			n.Fields[i].Value = substitute(n.Fields[i].Value, pos, bind)
		}
		n.SetPos(pos)
		return &n
	default:
		return ast.Clone(e, pos)
	}
}

func substituteSlice(es []ast.Expr, pos diag.Pos, bind map[intern.String]ast.Expr) []ast.Expr {
	if es == nil {
		return nil
	}
	out := make([]ast.Expr, len(es))
	for i, e := range es {
		out[i] = substitute(e, pos, bind)
	}
	return out
}
