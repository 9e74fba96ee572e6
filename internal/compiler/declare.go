package compiler

import (
	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/bank"
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/sym"
)

// declarePass walks root and every statement it contains, building the
// scope tree and entering one sym.Definition per declaration (spec.md
// §4.C). It never resolves a type or folds a constant; that is reduce.go's
// job, once every name this pass might reference already exists.
func (c *Compiler) declarePass(root *ast.FileStatement) bool {
	sink := diag.NewSink()
	prevSink := c.sink
	c.sink = sink

	fileScope := sym.NewScope(c.bi.Scope, "file")
	c.scopeOf[root] = fileScope
	c.declareItems(root.Items, fileScope, nil)

	c.sink = prevSink
	c.sink.Merge(sink)
	return sink.Ok()
}

func (c *Compiler) declareItems(items []ast.Statement, scope *sym.Scope, bankCtx *sym.Definition) {
	for _, item := range items {
		c.declareStmt(item, scope, bankCtx)
	}
}

// declareStmt enters stmt's definitions into scope. bankCtx is the
// definition of the enclosing `in bank { ... }` target, nil at file/
// namespace scope. It is the bank's *sym.Definition rather than its
// *bank.Bank because the real bank.Bank isn't constructed until reducePass
// has folded the bank's capacity (see reduceBankDecl) - declarePass runs
// first and only has the bank's name bound to a definition so far.
func (c *Compiler) declareStmt(stmt ast.Statement, scope *sym.Scope, bankCtx *sym.Definition) {
	switch s := stmt.(type) {
	case *ast.Attributed:
		c.declareStmt(s.Inner, scope, bankCtx)

	case *ast.Namespace:
		def := &sym.Definition{Kind: sym.KindNamespace, Name: s.Name, Decl: s, Parent: scope}
		child := sym.NewScope(scope, "namespace")
		def.Members = child
		c.scopeOf[s] = child
		if _, ok := scope.Declare(s.Name, def, sym.RedeclForbidden); !ok {
			c.errorf(s.Pos(), "namespace %q redeclared", s.Name.Text())
			return
		}
		c.declareItems(s.Items, child, bankCtx)

	case *ast.BankDecl:
		if _, ok := bankKindFromText(s.Kind.Text()); !ok {
			c.errorf(s.Pos(), "unknown bank kind %q", s.Kind.Text())
			return
		}
		def := &sym.Definition{Kind: sym.KindBank, Name: s.Name, Decl: s, Parent: scope}
		if _, ok := scope.Declare(s.Name, def, sym.RedeclForbidden); !ok {
			c.errorf(s.Pos(), "bank %q redeclared", s.Name.Text())
			return
		}
		// The real bank.Bank is constructed in reducePass once Base/Capacity
		// have been constant-folded; bank.New needs the final capacity to
		// size its output buffer up front.
		c.bankDefs = append(c.bankDefs, def)

	case *ast.InStatement:
		b := c.resolveBankPath(s.BankPath, scope, s.Pos())
		if b == nil {
			return
		}
		c.declareStmt(s.Body, scope, b)

	case *ast.VarDecl:
		if bankCtx == nil && !s.Extern {
			c.errorf(s.Pos(), "var %q declared outside any `in bank` block", firstName(s.Names))
		}
		for i, name := range s.Names {
			def := &sym.Definition{Kind: sym.KindVar, Name: name, Decl: s, Parent: scope, Type: s.Type}
			mode := sym.RedeclForbidden
			if s.Extern {
				mode = sym.RedeclExternVariant
			}
			if _, ok := scope.Declare(name, def, mode); !ok {
				c.errorf(s.Pos(), "%q redeclared", name.Text())
				continue
			}
			c.varIndex[def] = i
			c.allDefs = append(c.allDefs, def)
			if bankCtx != nil {
				c.targetBank(def, bankCtx)
				c.bankItems[bankCtx] = append(c.bankItems[bankCtx], def)
			}
		}

	case *ast.LetDecl:
		def := &sym.Definition{Kind: sym.KindLet, Name: s.Name, Decl: s, Parent: scope, Params: s.Params, Value: s.Value}
		if _, ok := scope.Declare(s.Name, def, sym.RedeclForbidden); !ok {
			c.errorf(s.Pos(), "%q redeclared", s.Name.Text())
		}

	case *ast.FuncDecl:
		def := &sym.Definition{Kind: sym.KindFunc, Name: s.Name, Decl: s, Parent: scope, Params: s.Params, Type: s.Return}
		if _, ok := scope.Declare(s.Name, def, sym.RedeclForbidden); !ok {
			c.errorf(s.Pos(), "function %q redeclared", s.Name.Text())
			return
		}
		c.allDefs = append(c.allDefs, def)
		if bankCtx != nil {
			c.targetBank(def, bankCtx)
			c.bankItems[bankCtx] = append(c.bankItems[bankCtx], def)
		}
		if s.Body != nil {
			body := sym.NewScope(scope, "func")
			c.scopeOf[s.Body] = body
			for _, p := range s.Params {
				pdef := &sym.Definition{Kind: sym.KindVar, Name: p.Name, Decl: s, Parent: body, Type: p.Type}
				body.Declare(p.Name, pdef, sym.RedeclForbidden)
			}
			c.declareStmt(s.Body, body, bankCtx)
		}

	case *ast.StructDecl:
		def := &sym.Definition{Kind: sym.KindStruct, Name: s.Name, Decl: s, Parent: scope, Union: s.Union}
		child := sym.NewScope(scope, "struct")
		def.Members = child
		if _, ok := scope.Declare(s.Name, def, sym.RedeclForbidden); !ok {
			c.errorf(s.Pos(), "struct %q redeclared", s.Name.Text())
			return
		}
		for _, f := range s.Fields {
			fdef := &sym.Definition{Kind: sym.KindStructMember, Name: f.Name, Decl: s, Parent: child, Type: f.Type}
			if _, ok := child.Declare(f.Name, fdef, sym.RedeclForbidden); !ok {
				c.errorf(s.Pos(), "struct %q field %q redeclared", s.Name.Text(), f.Name.Text())
				continue
			}
			if f.Align != nil {
				c.fieldAlignExpr[fdef] = f.Align
			}
		}

	case *ast.EnumDecl:
		def := &sym.Definition{Kind: sym.KindEnum, Name: s.Name, Decl: s, Parent: scope}
		child := sym.NewScope(scope, "enum")
		def.Members = child
		if _, ok := scope.Declare(s.Name, def, sym.RedeclForbidden); !ok {
			c.errorf(s.Pos(), "enum %q redeclared", s.Name.Text())
			return
		}
		if s.Underlying != nil {
			c.enumUnderlyingX[def] = s.Underlying
		}
		for _, m := range s.Members {
			mdef := &sym.Definition{Kind: sym.KindEnumMember, Name: m.Name, Decl: s, Parent: child, Value: m.Value}
			if _, ok := child.Declare(m.Name, mdef, sym.RedeclForbidden); !ok {
				c.errorf(s.Pos(), "enum %q member %q redeclared", s.Name.Text(), m.Name.Text())
			}
		}

	case *ast.TypeAlias:
		def := &sym.Definition{Kind: sym.KindTypeAlias, Name: s.Name, Decl: s, Parent: scope, Type: s.Type}
		if _, ok := scope.Declare(s.Name, def, sym.RedeclForbidden); !ok {
			c.errorf(s.Pos(), "type %q redeclared", s.Name.Text())
		}

	case *ast.Block:
		child := sym.NewScope(scope, "block")
		c.scopeOf[s] = child
		c.declareItems(s.Statements, child, bankCtx)

	case *ast.IfStatement:
		c.declareStmt(s.Then, scope, bankCtx)
		if s.Else != nil {
			c.declareStmt(s.Else, scope, bankCtx)
		}

	case *ast.WhileStatement:
		c.declareStmt(s.Body, scope, bankCtx)

	case *ast.DoWhile:
		c.declareStmt(s.Body, scope, bankCtx)

	case *ast.ForStatement:
		child := sym.NewScope(scope, "for")
		c.scopeOf[s] = child
		cdef := &sym.Definition{Kind: sym.KindVar, Name: s.Counter, Decl: s, Parent: child}
		child.Declare(s.Counter, cdef, sym.RedeclForbidden)
		c.declareStmt(s.Body, child, bankCtx)

	case *ast.InlineFor:
		child := sym.NewScope(scope, "for")
		c.scopeOf[s] = child
		cdef := &sym.Definition{Kind: sym.KindLet, Name: s.Name, Decl: s, Parent: child}
		child.Declare(s.Name, cdef, sym.RedeclForbidden)
		c.declareStmt(s.Body, child, bankCtx)

	case *ast.ConfigDirective:
		for _, k := range s.Order {
			c.config[k] = s.Entries[k]
			c.configOrder = append(c.configOrder, k)
		}

	case *ast.LabelDecl:
		// Labels resolve to code offsets during lowering, not through the
		// symbol table (spec.md's Definition variant list has no label
		// kind); see lower.go's per-function label scan.

	case *ast.ExprStatement, *ast.Branch, *ast.Internal, *ast.ImportRef:
		// Nothing to declare.
	}
}

func (c *Compiler) targetBank(def *sym.Definition, bankDef *sym.Definition) {
	if c.bankTargets == nil {
		c.bankTargets = map[*sym.Definition]*sym.Definition{}
	}
	c.bankTargets[def] = bankDef
}

// resolveBankPath resolves an `in a::b::c` path against scope, walking
// through namespace member scopes for every piece but the last, which must
// name a KindBank definition. It returns the bank's definition rather than
// its bank.Bank, which doesn't exist yet during declarePass.
func (c *Compiler) resolveBankPath(path []intern.String, scope *sym.Scope, pos diag.Pos) *sym.Definition {
	if len(path) == 0 {
		return nil
	}
	def := scope.Lookup(path[0])
	if def == nil {
		c.errorf(pos, "undeclared name %q", path[0].Text())
		return nil
	}
	for _, piece := range path[1:] {
		if def.Members == nil {
			c.errorf(pos, "%q is not a namespace", def.Name.Text())
			return nil
		}
		next := def.Members.LookupLocal(piece)
		if next == nil {
			c.errorf(pos, "%q has no member %q", def.Name.Text(), piece.Text())
			return nil
		}
		def = next
	}
	if def.Kind != sym.KindBank {
		c.errorf(pos, "%q is not a bank", def.Name.Text())
		return nil
	}
	return def
}

func firstName(names []intern.String) string {
	if len(names) == 0 {
		return ""
	}
	return names[0].Text()
}

func bankKindFromText(text string) (bank.Kind, bool) {
	switch text {
	case "ram":
		return bank.KindUninitializedRAM, true
	case "wram", "sram":
		return bank.KindInitializedRAM, true
	case "rom", "prg":
		return bank.KindProgramROM, true
	case "data":
		return bank.KindDataROM, true
	case "chr":
		return bank.KindCharacterROM, true
	default:
		return 0, false
	}
}
