// Package parser is the recursive-descent parser external collaborator of
// spec.md §1: it turns internal/lexer's token stream into an
// internal/ast.FileStatement. Grounded on cmd_local/asm/internal/lex together
// with cmd_local/asm/main.go's driver for the "scan, then hand-written
// recursive descent, no parser-generator" idiom - no pack example reaches
// for a parser-combinator library, so this is built the same hand-rolled
// way the teacher's own assembler parser is.
package parser

import (
	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/lexer"
	"github.com/anvil-lang/anvil/internal/token"
)

// Parser parses one translation unit's token stream.
type Parser struct {
	table    *intern.Table
	sink     *diag.Sink
	original string
	expanded string

	toks []token.Token
	pos  int

	// noStructLit disables the `Ident{...}` struct-literal postfix while
	// parsing an if/while/for condition or sequence, so the `{` that opens
	// the statement's body isn't swallowed as a literal (same ambiguity Go
	// and Rust resolve the same way for composite literals in conditions).
	noStructLit bool
}

// Parse lexes and parses src (from path original/expanded), returning the
// resulting FileStatement. Parse errors are reported to sink and do not
// panic; Parse does its best to keep recovering so that a single invocation
// surfaces as many syntax problems as possible, per spec.md §7.
func Parse(table *intern.Table, sink *diag.Sink, original, expanded, src string) *ast.FileStatement {
	lx := lexer.New(original, src, sink)
	p := &Parser{
		table:    table,
		sink:     sink,
		original: original,
		expanded: expanded,
		toks:     lx.Tokens(),
	}
	items := p.parseItemsUntil(token.EOF)
	f := &ast.FileStatement{Items: items, Original: original, Expanded: expanded}
	f.SetPos(diag.Pos{Original: original, Expanded: expanded, Line: 1})
	return f
}

// positioner is implemented by every ast.Statement and ast.Expr via their
// embedded stmtBase/exprBase, letting setPos work generically over both.
type positioner interface{ SetPos(diag.Pos) }

func setPos[T positioner](s T, pos diag.Pos) T {
	s.SetPos(pos)
	return s
}

func (p *Parser) pos_() diag.Pos {
	return diag.Pos{Original: p.original, Expanded: p.expanded, Line: p.cur().Line}
}

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekKind(n int) token.Kind {
	i := p.pos + n
	if i >= len(p.toks) {
		return token.EOF
	}
	return p.toks[i].Kind
}

func (p *Parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *Parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) errorf(format string, args ...interface{}) {
	p.sink.Report(diag.Error, p.pos_(), format, args...)
}

// expect consumes a token of kind k, reporting a syntax error naming the
// expected kind if the current token doesn't match (spec.md §7 "Syntactic:
// unexpected token with an expected-set").
func (p *Parser) expect(k token.Kind) token.Token {
	if p.cur().Kind != k {
		p.errorf("expected %s, found %s", k, p.cur().Kind)
		return token.Token{Kind: k}
	}
	return p.advance()
}

func (p *Parser) accept(k token.Kind) bool {
	if p.cur().Kind == k {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) intern(s string) intern.String { return p.table.Intern(s) }

func (p *Parser) parseItemsUntil(end token.Kind) []ast.Statement {
	var items []ast.Statement
	for !p.at(end) && !p.at(token.EOF) {
		before := p.pos
		s := p.parseStatement()
		if s != nil {
			items = append(items, s)
		}
		if p.pos == before {
			p.advance() // guarantee forward progress on unrecoverable input
		}
	}
	return items
}

func (p *Parser) parseStatement() ast.Statement {
	if p.at(token.Hash) {
		return p.parseAttributed()
	}
	switch p.cur().Kind {
	case token.KwImport:
		return p.parseImport()
	case token.KwNamespace:
		return p.parseNamespace()
	case token.KwBank:
		return p.parseBank()
	case token.KwVar:
		return p.parseVar(false)
	case token.KwConst:
		p.advance()
		return p.parseVar(true)
	case token.KwLet:
		return p.parseLet()
	case token.KwFar:
		if p.peekKind(1) == token.KwLabel {
			return p.parseLabel()
		}
		return p.parseFunc()
	case token.KwFunc:
		return p.parseFunc()
	case token.KwInline:
		switch p.peekKind(1) {
		case token.KwFor:
			return p.parseInlineFor()
		case token.KwFunc:
			return p.parseFunc()
		default:
			return p.parseExprStatement()
		}
	case token.KwStruct, token.KwUnion:
		return p.parseStruct()
	case token.KwEnum:
		return p.parseEnum()
	case token.KwTypealias:
		return p.parseTypeAlias()
	case token.KwLabel:
		return p.parseLabel()
	case token.KwIn:
		return p.parseIn()
	case token.KwConfig:
		return p.parseConfig()
	case token.KwIf:
		return p.parseIf()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwDo:
		return p.parseDoWhile()
	case token.KwFor:
		return p.parseFor()
	case token.LBrace:
		return p.parseBlock()
	case token.KwBreak:
		return p.parseSimpleBranch(ast.BranchBreak)
	case token.KwContinue:
		return p.parseSimpleBranch(ast.BranchContinue)
	case token.KwGoto:
		return p.parseBranchWithDest(ast.BranchGoto)
	case token.KwReturn:
		return p.parseReturn()
	case token.KwIrqreturn:
		return p.parseSimpleBranch(ast.BranchIrqReturn)
	case token.KwNmireturn:
		return p.parseSimpleBranch(ast.BranchNmiReturn)
	case token.Semicolon:
		p.advance()
		return nil
	default:
		return p.parseExprStatement()
	}
}

func (p *Parser) parseAttributed() ast.Statement {
	pos := p.pos_()
	var attrs []ast.Attribute
	for p.accept(token.Hash) {
		p.expect(token.LBracket)
		name := p.expect(token.Ident)
		var args []ast.Expr
		if p.accept(token.LParen) {
			for !p.at(token.RParen) && !p.at(token.EOF) {
				args = append(args, p.parseExpr())
				if !p.accept(token.Comma) {
					break
				}
			}
			p.expect(token.RParen)
		}
		p.expect(token.RBracket)
		attrs = append(attrs, ast.Attribute{Name: p.intern(name.Text), Args: args})
	}
	inner := p.parseStatement()
	return setPos(&ast.Attributed{Attrs: attrs, Inner: inner}, pos)
}

func (p *Parser) parseImport() ast.Statement {
	pos := p.pos_()
	p.advance()
	path := p.expect(token.String)
	p.accept(token.Semicolon)
	return setPos(&ast.ImportRef{Path: path.Text}, pos)
}

func (p *Parser) parseNamespace() ast.Statement {
	pos := p.pos_()
	p.advance()
	name := p.expect(token.Ident)
	p.expect(token.LBrace)
	items := p.parseItemsUntil(token.RBrace)
	p.expect(token.RBrace)
	return setPos(&ast.Namespace{Name: p.intern(name.Text), Items: items}, pos)
}

func (p *Parser) parseBank() ast.Statement {
	pos := p.pos_()
	p.advance()
	name := p.expect(token.Ident)
	p.expect(token.Colon)
	kind := p.expect(token.Ident)
	var base, capacity ast.Expr
	if p.accept(token.At) {
		base = p.parseExpr()
	}
	if p.accept(token.Comma) {
		capacity = p.parseExpr()
	}
	p.accept(token.Semicolon)
	return setPos(&ast.BankDecl{Name: p.intern(name.Text), Kind: p.intern(kind.Text), Base: base, Capacity: capacity}, pos)
}

func (p *Parser) parseVar(isConst bool) ast.Statement {
	pos := p.pos_()
	p.advance()
	writeonly := !isConst && p.accept(token.KwWriteonly)
	var names []intern.String
	names = append(names, p.intern(p.expect(token.Ident).Text))
	for p.accept(token.Comma) {
		names = append(names, p.intern(p.expect(token.Ident).Text))
	}
	var addr ast.Expr
	if p.accept(token.At) {
		addr = p.parseExpr()
	}
	var typ ast.TypeExpr
	if p.accept(token.Colon) {
		typ = p.parseType()
	}
	var init ast.Expr
	if p.accept(token.Assign) {
		init = p.parseExpr()
	} else if typ == nil {
		p.errorf("var declaration needs a type or an initializer")
	}
	addrs := make([]ast.Expr, len(names))
	if addr != nil {
		addrs[0] = addr
	}
	p.accept(token.Semicolon)
	decl := &ast.VarDecl{Writeonly: writeonly, Names: names, Addresses: addrs, Type: typ, Init: init}
	return setPos(decl, pos)
}

func (p *Parser) parseLet() ast.Statement {
	pos := p.pos_()
	p.advance()
	name := p.expect(token.Ident)
	var params []ast.Param
	if p.accept(token.LParen) {
		for !p.at(token.RParen) && !p.at(token.EOF) {
			pn := p.expect(token.Ident)
			params = append(params, ast.Param{Name: p.intern(pn.Text)})
			if !p.accept(token.Comma) {
				break
			}
		}
		p.expect(token.RParen)
	}
	p.expect(token.Assign)
	value := p.parseExpr()
	p.accept(token.Semicolon)
	return setPos(&ast.LetDecl{Name: p.intern(name.Text), Params: params, Value: value}, pos)
}

func (p *Parser) parseFunc() ast.Statement {
	pos := p.pos_()
	inline := p.accept(token.KwInline)
	far := p.accept(token.KwFar)
	p.expect(token.KwFunc)
	name := p.expect(token.Ident)
	p.expect(token.LParen)
	var params []ast.Param
	for !p.at(token.RParen) && !p.at(token.EOF) {
		pn := p.expect(token.Ident)
		p.expect(token.Colon)
		pt := p.parseType()
		params = append(params, ast.Param{Name: p.intern(pn.Text), Type: pt})
		if !p.accept(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	var ret ast.TypeExpr
	if p.accept(token.Arrow) {
		ret = p.parseType()
	}
	body := p.parseBlock()
	return setPos(&ast.FuncDecl{Inline: inline, Far: far, Name: p.intern(name.Text), Params: params, Return: ret, Body: body}, pos)
}

func (p *Parser) parseStruct() ast.Statement {
	pos := p.pos_()
	union := p.cur().Kind == token.KwUnion
	p.advance()
	name := p.expect(token.Ident)
	p.expect(token.LBrace)
	var fields []ast.StructField
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		var align ast.Expr
		if p.accept(token.Hash) {
			p.expect(token.LBracket)
			p.expect(token.Ident) // "align"
			p.expect(token.LParen)
			align = p.parseExpr()
			p.expect(token.RParen)
			p.expect(token.RBracket)
		}
		fn := p.expect(token.Ident)
		p.expect(token.Colon)
		ft := p.parseType()
		fields = append(fields, ast.StructField{Name: p.intern(fn.Text), Type: ft, Align: align})
		if !p.accept(token.Comma) {
			p.accept(token.Semicolon)
		}
	}
	p.expect(token.RBrace)
	return setPos(&ast.StructDecl{Name: p.intern(name.Text), Union: union, Fields: fields}, pos)
}

func (p *Parser) parseEnum() ast.Statement {
	pos := p.pos_()
	p.advance()
	name := p.expect(token.Ident)
	var underlying ast.TypeExpr
	if p.accept(token.Colon) {
		underlying = p.parseType()
	}
	p.expect(token.LBrace)
	var members []ast.EnumMember
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		mn := p.expect(token.Ident)
		var val ast.Expr
		if p.accept(token.Assign) {
			val = p.parseExpr()
		}
		members = append(members, ast.EnumMember{Name: p.intern(mn.Text), Value: val})
		if !p.accept(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace)
	return setPos(&ast.EnumDecl{Name: p.intern(name.Text), Underlying: underlying, Members: members}, pos)
}

func (p *Parser) parseTypeAlias() ast.Statement {
	pos := p.pos_()
	p.advance()
	name := p.expect(token.Ident)
	p.expect(token.Assign)
	typ := p.parseType()
	p.accept(token.Semicolon)
	return setPos(&ast.TypeAlias{Name: p.intern(name.Text), Type: typ}, pos)
}

func (p *Parser) parseLabel() ast.Statement {
	pos := p.pos_()
	far := p.accept(token.KwFar)
	p.expect(token.KwLabel)
	name := p.expect(token.Ident)
	p.expect(token.Colon)
	return setPos(&ast.LabelDecl{Far: far, Name: p.intern(name.Text)}, pos)
}

func (p *Parser) parseIn() ast.Statement {
	pos := p.pos_()
	p.advance()
	var path []intern.String
	path = append(path, p.intern(p.expect(token.Ident).Text))
	for p.accept(token.ColonColon) {
		path = append(path, p.intern(p.expect(token.Ident).Text))
	}
	var dest ast.Expr
	if p.accept(token.LParen) {
		dest = p.parseExpr()
		p.expect(token.RParen)
	}
	body := p.parseBlock()
	return setPos(&ast.InStatement{BankPath: path, Dest: dest, Body: body}, pos)
}

func (p *Parser) parseConfig() ast.Statement {
	pos := p.pos_()
	p.advance()
	p.expect(token.LBrace)
	entries := map[string]ast.Expr{}
	var order []string
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		key := p.expect(token.Ident)
		p.expect(token.Colon)
		val := p.parseExpr()
		entries[key.Text] = val
		order = append(order, key.Text)
		if !p.accept(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace)
	p.accept(token.Semicolon)
	return setPos(&ast.ConfigDirective{Entries: entries, Order: order}, pos)
}

func (p *Parser) parseBlock() ast.Statement {
	pos := p.pos_()
	p.expect(token.LBrace)
	items := p.parseItemsUntil(token.RBrace)
	p.expect(token.RBrace)
	return setPos(&ast.Block{Statements: items}, pos)
}

func (p *Parser) parseDistance() ast.DistanceHint {
	if p.at(token.Ident) {
		switch p.cur().Text {
		case "short":
			p.advance()
			return ast.DistanceShort
		case "long":
			p.advance()
			return ast.DistanceLong
		}
	}
	return ast.DistanceDefault
}

// noLiteralExpr parses one expression with struct literals disabled, for use
// in if/while/for positions that are immediately followed by a `{` body.
func (p *Parser) noLiteralExpr() ast.Expr {
	saved := p.noStructLit
	p.noStructLit = true
	e := p.parseExpr()
	p.noStructLit = saved
	return e
}

func (p *Parser) parseIf() ast.Statement {
	pos := p.pos_()
	p.advance()
	dist := p.parseDistance()
	cond := p.noLiteralExpr()
	then := p.parseBlock()
	var els ast.Statement
	if p.accept(token.KwElse) {
		if p.at(token.KwIf) {
			els = p.parseIf()
		} else {
			els = p.parseBlock()
		}
	}
	return setPos(&ast.IfStatement{Condition: cond, Then: then, Else: els, Distance: dist}, pos)
}

func (p *Parser) parseWhile() ast.Statement {
	pos := p.pos_()
	p.advance()
	dist := p.parseDistance()
	cond := p.noLiteralExpr()
	body := p.parseBlock()
	return setPos(&ast.WhileStatement{Condition: cond, Body: body, Distance: dist}, pos)
}

func (p *Parser) parseDoWhile() ast.Statement {
	pos := p.pos_()
	p.advance()
	body := p.parseBlock()
	p.expect(token.KwWhile)
	cond := p.parseExpr()
	p.accept(token.Semicolon)
	return setPos(&ast.DoWhile{Body: body, Condition: cond}, pos)
}

func (p *Parser) parseFor() ast.Statement {
	pos := p.pos_()
	p.advance()
	dist := p.parseDistance()
	counter := p.expect(token.Ident)
	p.expect(token.KwIn)
	seq := p.noLiteralExpr()
	body := p.parseBlock()
	return setPos(&ast.ForStatement{Counter: p.intern(counter.Text), Sequence: seq, Body: body, Distance: dist}, pos)
}

func (p *Parser) parseInlineFor() ast.Statement {
	pos := p.pos_()
	p.advance() // 'inline'
	p.expect(token.KwFor)
	name := p.expect(token.Ident)
	p.expect(token.KwIn)
	seq := p.noLiteralExpr()
	body := p.parseBlock()
	return setPos(&ast.InlineFor{Name: p.intern(name.Text), Sequence: seq, Body: body}, pos)
}

func (p *Parser) parseSimpleBranch(kind ast.BranchKind) ast.Statement {
	pos := p.pos_()
	p.advance()
	var cond ast.Expr
	if p.accept(token.KwIf) {
		cond = p.parseExpr()
	}
	p.accept(token.Semicolon)
	return setPos(&ast.Branch{Kind: kind, Condition: cond}, pos)
}

func (p *Parser) parseBranchWithDest(kind ast.BranchKind) ast.Statement {
	pos := p.pos_()
	p.advance()
	dest := p.parseExpr()
	var cond ast.Expr
	if p.accept(token.KwIf) {
		cond = p.parseExpr()
	}
	p.accept(token.Semicolon)
	return setPos(&ast.Branch{Kind: kind, Destination: dest, Condition: cond}, pos)
}

func (p *Parser) parseReturn() ast.Statement {
	pos := p.pos_()
	p.advance()
	var val ast.Expr
	if !p.at(token.Semicolon) && !p.at(token.KwIf) {
		val = p.parseExpr()
	}
	var cond ast.Expr
	if p.accept(token.KwIf) {
		cond = p.parseExpr()
	}
	p.accept(token.Semicolon)
	return setPos(&ast.Branch{Kind: ast.BranchReturn, ReturnValue: val, Condition: cond}, pos)
}

func (p *Parser) parseExprStatement() ast.Statement {
	pos := p.pos_()
	e := p.parseExpr()
	if k, ok := assignKind(p.cur().Kind); ok {
		p.advance()
		rhs := p.parseExpr()
		e = setPos(&ast.Assign{Kind: k, Target: e, Value: rhs}, e.Pos())
	}
	p.accept(token.Semicolon)
	return setPos(&ast.ExprStatement{Value: e}, pos)
}

func assignKind(k token.Kind) (ast.AssignKind, bool) {
	switch k {
	case token.Assign:
		return ast.AssignPlain, true
	case token.PlusEq:
		return ast.AssignAdd, true
	case token.MinusEq:
		return ast.AssignSub, true
	case token.StarEq:
		return ast.AssignMul, true
	case token.SlashEq:
		return ast.AssignDiv, true
	case token.PercentEq:
		return ast.AssignMod, true
	case token.ShlEq:
		return ast.AssignShl, true
	case token.ShrEq:
		return ast.AssignShr, true
	case token.AmpEq:
		return ast.AssignAnd, true
	case token.PipeEq:
		return ast.AssignOr, true
	case token.CaretEq:
		return ast.AssignXor, true
	default:
		return 0, false
	}
}

// ---- Types ----

func (p *Parser) parseType() ast.TypeExpr {
	switch p.cur().Kind {
	case token.Star:
		p.advance()
		var q ast.Qualifiers
		for {
			switch {
			case p.at(token.KwConst):
				p.advance()
				q |= ast.QualConst
			case p.at(token.KwWriteonly):
				p.advance()
				q |= ast.QualWriteonly
			case p.at(token.KwFar):
				p.advance()
				q |= ast.QualFar
			default:
				elem := p.parseType()
				return &ast.PointerType{Element: elem, Quals: q}
			}
		}
	case token.LBracket:
		p.advance()
		elem := p.parseType()
		var count ast.Expr
		if p.accept(token.Semicolon) {
			count = p.parseExpr()
		}
		p.expect(token.RBracket)
		return &ast.ArrayType{Element: elem, Count: count}
	case token.LParen:
		p.advance()
		var elems []ast.TypeExpr
		for !p.at(token.RParen) && !p.at(token.EOF) {
			elems = append(elems, p.parseType())
			if !p.accept(token.Comma) {
				break
			}
		}
		p.expect(token.RParen)
		return &ast.TupleType{Elements: elems}
	case token.KwFunc:
		p.advance()
		p.expect(token.LParen)
		var params []ast.TypeExpr
		for !p.at(token.RParen) && !p.at(token.EOF) {
			params = append(params, p.parseType())
			if !p.accept(token.Comma) {
				break
			}
		}
		p.expect(token.RParen)
		var ret ast.TypeExpr
		if p.accept(token.Arrow) {
			ret = p.parseType()
		}
		return &ast.FuncType{Params: params, Return: ret}
	case token.KwTypeof:
		p.advance()
		p.expect(token.LParen)
		e := p.parseExpr()
		p.expect(token.RParen)
		return &ast.TypeOfType{Value: e}
	default:
		pieces := []intern.String{p.intern(p.expect(token.Ident).Text)}
		for p.accept(token.ColonColon) {
			pieces = append(pieces, p.intern(p.expect(token.Ident).Text))
		}
		return &ast.UnresolvedTypeIdent{Pieces: pieces}
	}
}

// ---- Expressions: precedence climbing ----

func (p *Parser) parseExpr() ast.Expr { return p.parseBinary(0) }

var binPrec = map[token.Kind]int{
	token.OrOr:   1,
	token.AndAnd: 2,
	token.Eq:     3, token.Ne: 3, token.Lt: 3, token.Le: 3, token.Gt: 3, token.Ge: 3,
	token.Pipe:  4,
	token.Caret: 5,
	token.Amp:   6,
	token.Shl:   7, token.Shr: 7, token.Rol: 7, token.Ror: 7,
	token.Plus: 8, token.Minus: 8,
	token.Star: 9, token.Slash: 9, token.Percent: 9,
}

var binKind = map[token.Kind]ast.BinaryKind{
	token.OrOr: ast.BLogOr, token.AndAnd: ast.BLogAnd,
	token.Eq: ast.BEq, token.Ne: ast.BNe, token.Lt: ast.BLt, token.Le: ast.BLe, token.Gt: ast.BGt, token.Ge: ast.BGe,
	token.Pipe: ast.BOr, token.Caret: ast.BXor, token.Amp: ast.BAnd,
	token.Shl: ast.BShl, token.Shr: ast.BShr, token.Rol: ast.BRol, token.Ror: ast.BRor,
	token.Plus: ast.BAdd, token.Minus: ast.BSub,
	token.Star: ast.BMul, token.Slash: ast.BDiv, token.Percent: ast.BMod,
}

func (p *Parser) parseBinary(minPrec int) ast.Expr {
	left := p.parseRange()
	for {
		prec, ok := binPrec[p.cur().Kind]
		if !ok || prec < minPrec {
			return left
		}
		pos := p.pos_()
		opKind := p.cur().Kind
		p.advance()
		right := p.parseBinary(prec + 1)
		left = setPos(&ast.BinaryOp{Kind: binKind[opKind], Left: left, Right: right}, pos)
	}
}

// parseRange handles `a..b by c` between the comparison grid and unary,
// matching spec.md §3's Range literal (start/end/step, any absent).
func (p *Parser) parseRange() ast.Expr {
	pos := p.pos_()
	var start ast.Expr
	if !p.at(token.DotDot) {
		start = p.parseUnary()
	}
	if !p.accept(token.DotDot) {
		return start
	}
	var end ast.Expr
	if !isRangeEndStop(p.cur().Kind) {
		end = p.parseUnary()
	}
	var step ast.Expr
	if p.accept(token.KwBy) {
		step = p.parseUnary()
	}
	return setPos(&ast.Range{Start: start, End: end, Step: step}, pos)
}

func isRangeEndStop(k token.Kind) bool {
	switch k {
	case token.RParen, token.RBracket, token.RBrace, token.Comma, token.Semicolon, token.LBrace, token.KwBy, token.EOF:
		return true
	default:
		return false
	}
}

func (p *Parser) parseUnary() ast.Expr {
	pos := p.pos_()
	switch p.cur().Kind {
	case token.Minus:
		p.advance()
		return setPos(&ast.UnaryOp{Kind: ast.UNeg, Inner: p.parseUnary()}, pos)
	case token.Bang:
		p.advance()
		return setPos(&ast.UnaryOp{Kind: ast.UNot, Inner: p.parseUnary()}, pos)
	case token.Tilde:
		p.advance()
		return setPos(&ast.UnaryOp{Kind: ast.UBitNot, Inner: p.parseUnary()}, pos)
	case token.Inc:
		p.advance()
		return setPos(&ast.UnaryOp{Kind: ast.UPreInc, Inner: p.parseUnary()}, pos)
	case token.Dec:
		p.advance()
		return setPos(&ast.UnaryOp{Kind: ast.UPreDec, Inner: p.parseUnary()}, pos)
	case token.Star:
		p.advance()
		return setPos(&ast.UnaryOp{Kind: ast.UDeref, Inner: p.parseUnary()}, pos)
	case token.KwInline:
		p.advance()
		inner := p.parseUnary()
		if call, ok := inner.(*ast.Call); ok {
			call.Inline = true
			return call
		}
		p.errorf("inline must prefix a call expression")
		return inner
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() ast.Expr {
	e := p.parsePrimary()
	for {
		pos := p.pos_()
		switch p.cur().Kind {
		case token.LParen:
			p.advance()
			var args []ast.Expr
			for !p.at(token.RParen) && !p.at(token.EOF) {
				args = append(args, p.parseExpr())
				if !p.accept(token.Comma) {
					break
				}
			}
			p.expect(token.RParen)
			e = setPos(&ast.Call{Callee: e, Args: args}, pos)
		case token.LBracket:
			p.advance()
			idx := p.parseExpr()
			p.expect(token.RBracket)
			e = setPos(&ast.Index{Base: e, Subscript: idx}, pos)
		case token.Dot:
			p.advance()
			field := p.expect(token.Ident)
			e = setPos(&ast.FieldAccess{Base: e, Field: p.intern(field.Text)}, pos)
		case token.ColonColon:
			p.advance()
			field := p.expect(token.Ident)
			e = setPos(&ast.FieldAccess{Base: e, Field: p.intern(field.Text)}, pos)
		case token.Dollar:
			p.advance()
			bit := p.parseUnary()
			e = setPos(&ast.BitIndex{Value: e, Bit: bit}, pos)
		case token.KwAs:
			p.advance()
			t := p.parseType()
			e = setPos(&ast.Cast{Value: e, Type: t}, pos)
		case token.Inc:
			p.advance()
			e = setPos(&ast.UnaryOp{Kind: ast.UPostInc, Inner: e}, pos)
		case token.Dec:
			p.advance()
			e = setPos(&ast.UnaryOp{Kind: ast.UPostDec, Inner: e}, pos)
		case token.LBrace:
			if ident, ok := e.(*ast.UnresolvedIdent); ok && !p.noStructLit {
				e = p.parseStructLiteral(ident, pos)
				continue
			}
			return e
		default:
			return e
		}
	}
}

// parseStructLiteral handles `Type{ name: value, ... }`. It is only reached
// from parsePostfix when the base is a bare identifier immediately followed
// by `{`, so it never swallows the block of an `if`/`while` condition.
func (p *Parser) parseStructLiteral(ident *ast.UnresolvedIdent, pos diag.Pos) ast.Expr {
	p.advance() // '{'
	var fields []ast.StructFieldInit
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		name := p.expect(token.Ident)
		p.expect(token.Colon)
		val := p.parseExpr()
		fields = append(fields, ast.StructFieldInit{Name: p.intern(name.Text), Value: val})
		if !p.accept(token.Comma) {
			break
		}
	}
	p.expect(token.RBrace)
	return setPos(&ast.StructLiteral{Type: &ast.UnresolvedTypeIdent{Pieces: ident.Pieces}, Fields: fields}, pos)
}

func (p *Parser) parsePrimary() ast.Expr {
	pos := p.pos_()
	switch p.cur().Kind {
	case token.Int:
		return p.parseIntLiteral()
	case token.KwTrue:
		p.advance()
		return setPos(&ast.BoolLiteral{Value: true}, pos)
	case token.KwFalse:
		p.advance()
		return setPos(&ast.BoolLiteral{Value: false}, pos)
	case token.String:
		t := p.advance()
		return setPos(&ast.StringLiteral{Value: t.Text}, pos)
	case token.Char:
		t := p.advance()
		return setPos(&ast.IntLiteral{Lo: uint64(t.Text[0])}, pos)
	case token.Ident:
		pieces := []intern.String{p.intern(p.advance().Text)}
		for p.accept(token.ColonColon) {
			pieces = append(pieces, p.intern(p.expect(token.Ident).Text))
		}
		return setPos(&ast.UnresolvedIdent{Pieces: pieces}, pos)
	case token.LParen:
		p.advance()
		first := p.parseExpr()
		if p.accept(token.Comma) {
			elems := []ast.Expr{first}
			for !p.at(token.RParen) && !p.at(token.EOF) {
				elems = append(elems, p.parseExpr())
				if !p.accept(token.Comma) {
					break
				}
			}
			p.expect(token.RParen)
			return setPos(&ast.TupleLiteral{Elements: elems}, pos)
		}
		p.expect(token.RParen)
		return first
	case token.LBracket:
		return p.parseArrayLiteral()
	case token.LBrace:
		return p.parseSideEffectBlock()
	case token.KwSizeof:
		p.advance()
		p.expect(token.LParen)
		t := p.parseType()
		p.expect(token.RParen)
		return setPos(&ast.SizeQuery{Kind: ast.SizeOf, Type: t}, pos)
	case token.KwAlignof:
		p.advance()
		p.expect(token.LParen)
		t := p.parseType()
		p.expect(token.RParen)
		return setPos(&ast.SizeQuery{Kind: ast.AlignOf, Type: t}, pos)
	case token.KwOffsetof:
		p.advance()
		p.expect(token.LParen)
		t := p.parseType()
		p.expect(token.Comma)
		field := p.expect(token.Ident)
		p.expect(token.RParen)
		return setPos(&ast.OffsetOf{Type: t, Field: p.intern(field.Text)}, pos)
	case token.KwTypeof:
		p.advance()
		p.expect(token.LParen)
		e := p.parseExpr()
		p.expect(token.RParen)
		return setPos(&ast.TypeOfExpr{Value: e}, pos)
	case token.KwEmbed:
		p.advance()
		p.expect(token.LParen)
		path := p.expect(token.String)
		p.expect(token.RParen)
		return setPos(&ast.Embed{Path: path.Text}, pos)
	default:
		p.errorf("unexpected token %s in expression", p.cur().Kind)
		p.advance()
		return setPos(&ast.IntLiteral{}, pos)
	}
}

func (p *Parser) parseArrayLiteral() ast.Expr {
	pos := p.pos_()
	p.advance() // '['
	if p.accept(token.RBracket) {
		return setPos(&ast.ArrayLiteral{}, pos)
	}
	first := p.parseExpr()
	switch {
	case p.accept(token.Semicolon):
		count := p.parseExpr()
		p.expect(token.RBracket)
		return setPos(&ast.ArrayPadLiteral{Value: first, Count: count}, pos)
	case p.at(token.KwFor):
		p.advance()
		name := p.expect(token.Ident)
		p.expect(token.KwIn)
		seq := p.parseExpr()
		p.expect(token.RBracket)
		return setPos(&ast.ArrayComprehension{Body: first, Name: p.intern(name.Text), Sequence: seq}, pos)
	default:
		elems := []ast.Expr{first}
		for p.accept(token.Comma) {
			if p.at(token.RBracket) {
				break
			}
			elems = append(elems, p.parseExpr())
		}
		p.expect(token.RBracket)
		return setPos(&ast.ArrayLiteral{Elements: elems}, pos)
	}
}

func (p *Parser) parseSideEffectBlock() ast.Expr {
	pos := p.pos_()
	p.advance() // '{'
	var stmts []ast.Statement
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		// The last statement, if it's a bare expression with no trailing
		// semicolon, is the block's result.
		if isExprStart(p.cur().Kind) {
			save := p.pos
			e := p.parseExpr()
			if p.at(token.RBrace) {
				return setPos(&ast.SideEffectBlock{Statements: stmts, Result: e}, pos)
			}
			p.pos = save
		}
		before := p.pos
		s := p.parseStatement()
		if s != nil {
			stmts = append(stmts, s)
		}
		if p.pos == before {
			p.advance()
		}
	}
	p.expect(token.RBrace)
	return setPos(&ast.SideEffectBlock{Statements: stmts}, pos)
}

func isExprStart(k token.Kind) bool {
	switch k {
	case token.Ident, token.Int, token.String, token.Char, token.KwTrue, token.KwFalse,
		token.LParen, token.LBracket, token.Minus, token.Bang, token.Tilde, token.Star,
		token.KwSizeof, token.KwAlignof, token.KwOffsetof, token.KwTypeof, token.KwEmbed:
		return true
	default:
		return false
	}
}

func (p *Parser) parseIntLiteral() ast.Expr {
	pos := p.pos_()
	t := p.advance()
	val, suffix := splitSuffix(t.Text)
	n, ok := parseIntText(val)
	if !ok {
		p.errorf("bad numeric literal %q", t.Text)
	}
	return setPos(&ast.IntLiteral{Lo: n, Suffix: suffix}, pos)
}

// splitSuffix separates a numeric literal's digits from an optional uN/iN
// width suffix (e.g. "255u8" -> "255", "u8").
func splitSuffix(text string) (digits, suffix string) {
	for i := len(text) - 1; i >= 0; i-- {
		c := text[i]
		if c >= '0' && c <= '9' {
			continue
		}
		if c == 'u' || c == 'i' {
			return text[:i], text[i:]
		}
		break
	}
	return text, ""
}

func parseIntText(text string) (uint64, bool) {
	var n uint64
	switch {
	case len(text) > 2 && (text[:2] == "0x" || text[:2] == "0X"):
		for _, c := range text[2:] {
			if c == '_' {
				continue
			}
			d, ok := hexDigit(byte(c))
			if !ok {
				return n, false
			}
			n = n*16 + uint64(d)
		}
	case len(text) > 2 && (text[:2] == "0b" || text[:2] == "0B"):
		for _, c := range text[2:] {
			if c == '_' {
				continue
			}
			if c != '0' && c != '1' {
				return n, false
			}
			n = n*2 + uint64(c-'0')
		}
	default:
		if text == "" {
			return 0, false
		}
		for _, c := range text {
			if c == '_' {
				continue
			}
			if c < '0' || c > '9' {
				return n, false
			}
			n = n*10 + uint64(c-'0')
		}
	}
	return n, true
}

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}
