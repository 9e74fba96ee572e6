package compiler

import (
	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/bank"
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/int128"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/sym"
	"github.com/anvil-lang/anvil/internal/types"
)

// reducePass resolves every identifier and type name declared in
// declarePass, folds compile-time constant expressions, expands `let`
// macros, finalizes enum underlying types and
// auto-incremented member values, computes struct layouts, and assigns the
// config directive its final folded values (spec.md §4.H phase 3).
func (c *Compiler) reducePass(root *ast.FileStatement) bool {
	sink := diag.NewSink()
	prevSink := c.sink
	c.sink = sink

	// Banks first: every `in bank` reference and var placement below needs
	// a real bank.Bank with its folded capacity already in hand.
	fileScope := c.scopeOf[root]
	for _, def := range c.bankDefs {
		c.reduceBankDecl(def, fileScope)
	}

	c.reduceItems(root.Items, fileScope)

	validKeys := c.backend.ConfigKeys()
	for k, raw := range c.config {
		c.config[k] = c.reduceExpr(raw, fileScope)
		if !configKeyKnown(k, validKeys) {
			c.sink.Report(diag.Error, raw.Pos(), "config: unknown key %q for backend %q", k, c.backend.Name())
		}
	}

	c.sink = prevSink
	c.sink.Merge(sink)
	return sink.Ok()
}

// configKeyKnown reports whether k is one of the backend's recognized
// `config` directive keys (spec.md §4.H phase 3's per-platform validation).
func configKeyKnown(k string, valid []string) bool {
	for _, v := range valid {
		if v == k {
			return true
		}
	}
	return false
}

func (c *Compiler) reduceBankDecl(def *sym.Definition, scope *sym.Scope) {
	decl, ok := def.Decl.(*ast.BankDecl)
	if !ok {
		return
	}
	kind, _ := bankKindFromText(decl.Kind.Text())
	var base *int64
	if decl.Base != nil {
		decl.Base = c.reduceExpr(decl.Base, scope)
		if n, ok := c.asConstInt(decl.Base); ok {
			base = &n
		} else {
			c.errorf(decl.Pos(), "bank %q base is not a compile-time integer", decl.Name.Text())
		}
	}
	decl.Capacity = c.reduceExpr(decl.Capacity, scope)
	capacity, ok := c.asConstInt(decl.Capacity)
	if !ok {
		c.errorf(decl.Pos(), "bank %q capacity is not a compile-time integer", decl.Name.Text())
		capacity = 0
	}
	b := bank.New(decl.Name.Text(), kind, base, capacity)
	def.Bank = b
	c.banks = append(c.banks, b)
	c.bankByName[decl.Name.Text()] = b

	// A bank used as an expression (e.g. `table[x]`) means its own base
	// address, offset zero; set this now rather than through placeOne
	// since a bank, unlike a var or func, is never itself placed inside
	// another bank's buffer.
	zero := int64(0)
	addr := &bank.Address{Bank: b, Relative: &zero}
	if base != nil {
		abs := *base
		addr.Absolute = &abs
	}
	def.Address = addr
}

func (c *Compiler) reduceItems(items []ast.Statement, scope *sym.Scope) {
	for _, item := range items {
		c.reduceStmt(item, scope)
	}
}

func (c *Compiler) reduceStmt(stmt ast.Statement, scope *sym.Scope) {
	switch s := stmt.(type) {
	case *ast.Attributed:
		for i := range s.Attrs {
			for j := range s.Attrs[i].Args {
				s.Attrs[i].Args[j] = c.reduceExpr(s.Attrs[i].Args[j], scope)
			}
		}
		c.reduceStmt(s.Inner, scope)

	case *ast.Namespace:
		c.reduceItems(s.Items, c.scopeOf[s])

	case *ast.BankDecl:
		// handled up front by reduceBankDecl

	case *ast.InStatement:
		c.reduceStmt(s.Body, scope)

	case *ast.VarDecl:
		if s.Type != nil {
			s.Type = c.reduceType(s.Type, scope)
		}
		if s.Init != nil {
			s.Init = c.reduceExpr(s.Init, scope)
		}
		for i := range s.Addresses {
			if s.Addresses[i] != nil {
				s.Addresses[i] = c.reduceExpr(s.Addresses[i], scope)
			}
		}
		for i, name := range s.Names {
			def := scope.LookupLocal(name)
			if def != nil {
				def.Type = s.Type
				_ = i
			}
		}

	case *ast.LetDecl:
		// Reduced lazily on first reference (reduceLetValue); see reduceIdent.

	case *ast.FuncDecl:
		def := scope.LookupLocal(s.Name)
		for i := range s.Params {
			if s.Params[i].Type != nil {
				s.Params[i].Type = c.reduceType(s.Params[i].Type, scope)
			}
		}
		if s.Return != nil {
			s.Return = c.reduceType(s.Return, scope)
		}
		if def != nil {
			def.Type = s.Return
		}
		if s.Body != nil {
			c.reduceStmt(s.Body, c.scopeOf[s.Body])
		}

	case *ast.StructDecl:
		c.reduceStructDecl(s, scope)

	case *ast.EnumDecl:
		c.reduceEnumDecl(s, scope)

	case *ast.TypeAlias:
		def := scope.LookupLocal(s.Name)
		s.Type = c.reduceType(s.Type, scope)
		if def != nil {
			def.Type = s.Type
		}

	case *ast.Block:
		c.reduceItems(s.Statements, c.scopeOf[s])

	case *ast.IfStatement:
		s.Condition = c.reduceExpr(s.Condition, scope)
		c.reduceStmt(s.Then, scope)
		if s.Else != nil {
			c.reduceStmt(s.Else, scope)
		}

	case *ast.WhileStatement:
		s.Condition = c.reduceExpr(s.Condition, scope)
		c.reduceStmt(s.Body, scope)

	case *ast.DoWhile:
		c.reduceStmt(s.Body, scope)
		s.Condition = c.reduceExpr(s.Condition, scope)

	case *ast.ForStatement:
		s.Sequence = c.reduceExpr(s.Sequence, c.scopeOf[s].Parent)
		c.reduceStmt(s.Body, c.scopeOf[s])

	case *ast.InlineFor:
		s.Sequence = c.reduceExpr(s.Sequence, c.scopeOf[s].Parent)
		if s.Sequence.Info().Class != ast.CompileTime {
			c.errorf(s.Pos(), "inline for sequence must be a compile-time constant")
			return
		}
		// The body is only reduced once per unrolled instance during
		// lowering (lower.go), since each instance substitutes a different
		// value for s.Name; reducing the template here would resolve s.Name
		// to nothing (it names no runtime storage).

	case *ast.ConfigDirective:
		for k, v := range s.Entries {
			s.Entries[k] = c.reduceExpr(v, scope)
		}

	case *ast.ExprStatement:
		s.Value = c.reduceExpr(s.Value, scope)

	case *ast.Branch:
		if s.Condition != nil {
			s.Condition = c.reduceExpr(s.Condition, scope)
		}
		// goto/fargoto target a label, which is not a sym.Definition (see
		// declarePass's LabelDecl case); Destination stays a bare
		// UnresolvedIdent, matched by name against the enclosing function's
		// labels during lowering. Every other branch kind targets a
		// function and resolves normally.
		if s.Destination != nil && s.Kind != ast.BranchGoto && s.Kind != ast.BranchFarGoto {
			s.Destination = c.reduceExpr(s.Destination, scope)
		}
		if s.ReturnValue != nil {
			s.ReturnValue = c.reduceExpr(s.ReturnValue, scope)
		}

	case *ast.LabelDecl, *ast.Internal, *ast.ImportRef:
		// Nothing to reduce.
	}
}

func (c *Compiler) reduceStructDecl(s *ast.StructDecl, scope *sym.Scope) {
	def := scope.LookupLocal(s.Name)
	if def == nil {
		return
	}
	for i := range s.Fields {
		s.Fields[i].Type = c.reduceType(s.Fields[i].Type, def.Members)
		fdef := def.Members.LookupLocal(s.Fields[i].Name)
		if fdef == nil {
			continue
		}
		fdef.Type = s.Fields[i].Type
		if raw, ok := c.fieldAlignExpr[fdef]; ok {
			reduced := c.reduceExpr(raw, scope)
			if n, ok := c.asConstInt(reduced); ok {
				fdef.ExplicitAlign = n
			} else {
				c.errorf(s.Pos(), "struct %q field %q: #[align(n)] is not a compile-time integer", s.Name.Text(), fdef.Name.Text())
			}
		}
	}
	if err := types.ComputeStructLayout(def, c.ptr, c.constIntFunc()); err != nil {
		c.errorf(s.Pos(), "%v", err)
	}
}

func (c *Compiler) reduceEnumDecl(s *ast.EnumDecl, scope *sym.Scope) {
	def := scope.LookupLocal(s.Name)
	if def == nil {
		return
	}
	if raw, ok := c.enumUnderlyingX[def]; ok {
		t := c.reduceType(raw, scope)
		if rt, ok := t.(*ast.ResolvedTypeIdent); ok {
			if ud, ok := rt.Def.(*sym.Definition); ok && ud.Kind == sym.KindBuiltinInteger {
				def.EnumUnderlying = ud
			} else {
				c.errorf(s.Pos(), "enum %q underlying type must be an integer type", s.Name.Text())
			}
		}
	} else {
		// No underlying type given: the enum always uses u8; member values
		// are not checked against its range.
		def.EnumUnderlying = c.bi.IntegerTypes["u8"]
	}

	next := int128.Value{}
	one := int128.FromInt64(1)
	for _, m := range s.Members {
		mdef := def.Members.LookupLocal(m.Name)
		if mdef == nil {
			continue
		}
		var v int128.Value
		if m.Value != nil {
			reduced := c.reduceExpr(m.Value, scope)
			lit, ok := reduced.(*ast.IntLiteral)
			if !ok {
				c.errorf(s.Pos(), "enum %q member %q value is not a compile-time integer", s.Name.Text(), m.Name.Text())
				continue
			}
			v = int128.Value{Hi: lit.Hi, Lo: lit.Lo}
		} else {
			v = next
		}
		mdef.Value = &ast.IntLiteral{Hi: v.Hi, Lo: v.Lo}
		mdef.Value.SetInfo(ast.Info{Class: ast.CompileTime})
		if sum, ok := int128.Add(v, one); ok {
			next = sum
		}
	}
}

// reduceType resolves an UnresolvedTypeIdent against scope and recurses
// through every compound type shape; ResolvedTypeIdent passes through
// unchanged so reduceType is idempotent.
func (c *Compiler) reduceType(t ast.TypeExpr, scope *sym.Scope) ast.TypeExpr {
	switch tv := t.(type) {
	case nil:
		return nil
	case *ast.UnresolvedTypeIdent:
		def := c.resolveQualified(tv.Pieces, scope, diag.Pos{})
		if def == nil {
			c.errorf(diag.Pos{}, "undeclared type %q", joinPieces(tv.Pieces))
			return t
		}
		return &ast.ResolvedTypeIdent{Def: def}
	case *ast.ResolvedTypeIdent:
		return tv
	case *ast.ArrayType:
		tv.Element = c.reduceType(tv.Element, scope)
		if tv.Count != nil {
			tv.Count = c.reduceExpr(tv.Count, scope)
		}
		return tv
	case *ast.PointerType:
		tv.Element = c.reduceType(tv.Element, scope)
		return tv
	case *ast.TupleType:
		for i := range tv.Elements {
			tv.Elements[i] = c.reduceType(tv.Elements[i], scope)
		}
		return tv
	case *ast.FuncType:
		for i := range tv.Params {
			tv.Params[i] = c.reduceType(tv.Params[i], scope)
		}
		tv.Return = c.reduceType(tv.Return, scope)
		return tv
	case *ast.TypeOfType:
		tv.Value = c.reduceExpr(tv.Value, scope)
		return tv
	default:
		return t
	}
}

func (c *Compiler) resolveQualified(pieces []intern.String, scope *sym.Scope, pos diag.Pos) *sym.Definition {
	if len(pieces) == 0 {
		return nil
	}
	def := scope.Lookup(pieces[0])
	if def == nil {
		return nil
	}
	for _, piece := range pieces[1:] {
		if def.Members == nil {
			return nil
		}
		def = def.Members.LookupLocal(piece)
		if def == nil {
			return nil
		}
	}
	return def
}

func joinPieces(pieces []intern.String) string {
	out := ""
	for i, p := range pieces {
		if i > 0 {
			out += "::"
		}
		out += p.Text()
	}
	return out
}
