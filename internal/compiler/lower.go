package compiler

import (
	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/bank"
	"github.com/anvil-lang/anvil/internal/builtins"
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/int128"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/pattern"
	"github.com/anvil-lang/anvil/internal/sym"
)

// walker carries the state threaded through one pass over a function's
// body: layoutPass's size-only measurement and emitPass's real byte
// writing share this exact traversal, distinguished only by c.sizeOnly.
type walker struct {
	c      *Compiler
	fn     *ast.FuncDecl
	base   int64 // this function's best current start address
	offset int64 // bytes measured/emitted so far within the body
	bnk    *bank.Bank
	loops  []loopCtx
}

type loopCtx struct {
	breakLabel, continueLabel *ast.LabelDecl
}

// collectLabels scans fn's body once for every label it declares, caching
// the result (spec.md §4.H: labels resolve by a name scan against the
// enclosing function, not through the symbol table).
func (c *Compiler) collectLabels(fn *ast.FuncDecl) []*ast.LabelDecl {
	if labels, ok := c.funcLabels[fn]; ok {
		return labels
	}
	var out []*ast.LabelDecl
	var walk func(ast.Statement)
	walk = func(s ast.Statement) {
		switch v := s.(type) {
		case nil:
		case *ast.LabelDecl:
			out = append(out, v)
		case *ast.Attributed:
			walk(v.Inner)
		case *ast.Block:
			for _, st := range v.Statements {
				walk(st)
			}
		case *ast.IfStatement:
			walk(v.Then)
			if v.Else != nil {
				walk(v.Else)
			}
		case *ast.WhileStatement:
			walk(v.Body)
		case *ast.DoWhile:
			walk(v.Body)
		case *ast.ForStatement:
			walk(v.Body)
		case *ast.InlineFor:
			walk(v.Body)
		}
	}
	walk(fn.Body)
	c.funcLabels[fn] = out
	return out
}

func (c *Compiler) findLabel(fn *ast.FuncDecl, name string) *ast.LabelDecl {
	for _, l := range c.collectLabels(fn) {
		if l.Name.Text() == name {
			return l
		}
	}
	return nil
}

// measureFunc walks fn's body once, either only counting bytes (bnk nil or
// c.sizeOnly) or also writing them, returning the total size. It is the
// single traversal shared by layoutPass's per-iteration remeasurement and
// emitPass's final write.
func (c *Compiler) measureFunc(fn *ast.FuncDecl, base int64, bnk *bank.Bank) int64 {
	w := &walker{c: c, fn: fn, base: base, bnk: bnk}
	w.stmt(fn.Body)
	return w.offset
}

func (w *walker) here() int64 { return w.base + w.offset }

func (w *walker) stmt(s ast.Statement) {
	switch v := s.(type) {
	case nil:
		return
	case *ast.Attributed:
		w.stmt(v.Inner)
	case *ast.Block:
		for _, st := range v.Statements {
			w.stmt(st)
		}
	case *ast.VarDecl, *ast.LetDecl, *ast.StructDecl, *ast.EnumDecl, *ast.TypeAlias,
		*ast.Namespace, *ast.BankDecl, *ast.InStatement, *ast.FuncDecl, *ast.ConfigDirective,
		*ast.ImportRef, *ast.Internal:
		// No code: local let/type declarations contribute nothing at their
		// point of use; nested funcs/banks/namespaces are placed directly
		// by layoutPass, not walked as statements of an outer body.

	case *ast.LabelDecl:
		w.c.labelAddr[v] = w.here()

	case *ast.ExprStatement:
		w.exprStmt(v.Value)

	case *ast.IfStatement:
		w.ifStmt(v)

	case *ast.WhileStatement:
		w.whileStmt(v)

	case *ast.DoWhile:
		w.doWhileStmt(v)

	case *ast.ForStatement:
		w.forStmt(v)

	case *ast.InlineFor:
		w.inlineForStmt(v)

	case *ast.Branch:
		w.branchStmt(v)

	default:
		w.c.errorf(s.Pos(), "internal: statement kind not lowered")
	}
}

// exprStmt lowers a bare expression statement: an assignment, a compound
// assignment, a call, or a pre/post increment/decrement used for effect.
func (w *walker) exprStmt(e ast.Expr) {
	switch v := e.(type) {
	case *ast.Assign:
		w.assign(v)
	case *ast.Call:
		w.call(v)
	case *ast.UnaryOp:
		switch v.Kind {
		case ast.UPreInc, ast.UPostInc, ast.UPreDec, ast.UPostDec:
			w.incDec(v)
		default:
			w.c.errorf(e.Pos(), "expression has no effect as a statement")
		}
	default:
		w.c.errorf(e.Pos(), "expression has no effect as a statement")
	}
}

func (w *walker) assign(v *ast.Assign) {
	target := w.c.createOperandFromExpression(v.Target)
	value := w.c.createOperandFromExpression(v.Value)
	if v.Kind == ast.AssignPlain {
		w.selectAndEmit(v.Pos(), builtins.InstructionType{Kind: builtins.VerbAssign}, []pattern.Operand{target, value})
		return
	}
	op, signed := compoundOp(v.Kind), isSignedOperand(v.Target)
	w.selectAndEmit(v.Pos(), builtins.InstructionType{Kind: builtins.VerbBinary, Binary: op, Signed: signed}, []pattern.Operand{target, value})
}

func compoundOp(k ast.AssignKind) ast.BinaryKind {
	switch k {
	case ast.AssignAdd:
		return ast.BAdd
	case ast.AssignSub:
		return ast.BSub
	case ast.AssignMul:
		return ast.BMul
	case ast.AssignDiv:
		return ast.BDiv
	case ast.AssignMod:
		return ast.BMod
	case ast.AssignShl:
		return ast.BShl
	case ast.AssignShr:
		return ast.BShr
	case ast.AssignAnd:
		return ast.BAnd
	case ast.AssignOr:
		return ast.BOr
	case ast.AssignXor:
		return ast.BXor
	default:
		return ast.BAdd
	}
}

// isSignedOperand reports whether e's static type is a signed integer,
// defaulting to unsigned when the type is unknown (registers, flags).
func isSignedOperand(e ast.Expr) bool {
	t, ok := e.Info().Type.(*ast.ResolvedTypeIdent)
	if !ok {
		return false
	}
	def, ok := t.Def.(*sym.Definition)
	if !ok || def.Integer == nil {
		return false
	}
	return def.Integer.Signed
}

func (w *walker) incDec(v *ast.UnaryOp) {
	target := w.c.createOperandFromExpression(v.Inner)
	op := ast.BAdd
	if v.Kind == ast.UPreDec || v.Kind == ast.UPostDec {
		op = ast.BSub
	}
	one := pattern.IntegerOperand{Value: 1}
	w.selectAndEmit(v.Pos(), builtins.InstructionType{Kind: builtins.VerbBinary, Binary: op, Signed: isSignedOperand(v.Inner)}, []pattern.Operand{target, one})
}

func (w *walker) call(v *ast.Call) {
	ri, ok := v.Callee.(*ast.ResolvedIdent)
	if !ok {
		w.c.errorf(v.Pos(), "indirect calls are not supported")
		return
	}
	def, ok := ri.Def.(*sym.Definition)
	if !ok {
		return
	}
	switch def.Kind {
	case sym.KindBuiltinLoadIntrinsic, sym.KindBuiltinVoidIntrinsic:
		verb := builtins.VerbVoidIntrinsic
		if def.Kind == sym.KindBuiltinLoadIntrinsic {
			verb = builtins.VerbLoadIntrinsic
		}
		ops := make([]pattern.Operand, len(v.Args))
		for i, a := range v.Args {
			ops[i] = w.c.createOperandFromExpression(a)
		}
		w.selectAndEmit(v.Pos(), builtins.InstructionType{Kind: verb, Intrinsic: def}, ops)
	case sym.KindFunc:
		addr := pattern.IntegerOperand{Value: w.c.backend.PlaceholderValue()}
		if a, ok := w.c.defAddress(def); ok {
			addr = pattern.IntegerOperand{Value: a}
		}
		jump := ast.BranchCall
		if fn, ok := def.Decl.(*ast.FuncDecl); ok && fn.Far {
			jump = ast.BranchFarCall
		}
		w.selectAndEmit(v.Pos(), builtins.InstructionType{Kind: builtins.VerbJump, Jump: jump}, []pattern.Operand{addr})
	default:
		w.c.errorf(v.Pos(), "%q is not callable", def.Name.Text())
	}
}

func (w *walker) ifStmt(v *ast.IfStatement) {
	elseLabel := &ast.LabelDecl{}
	w.branchCondition(v.Condition, false, elseLabel, v.Distance)
	w.stmt(v.Then)
	if v.Else != nil {
		endLabel := &ast.LabelDecl{}
		w.gotoLabel(v.Pos(), endLabel, v.Distance)
		w.c.labelAddr[elseLabel] = w.here()
		w.stmt(v.Else)
		w.c.labelAddr[endLabel] = w.here()
	} else {
		w.c.labelAddr[elseLabel] = w.here()
	}
}

func (w *walker) whileStmt(v *ast.WhileStatement) {
	top := &ast.LabelDecl{}
	end := &ast.LabelDecl{}
	w.c.labelAddr[top] = w.here()
	w.branchCondition(v.Condition, false, end, v.Distance)
	w.loops = append(w.loops, loopCtx{breakLabel: end, continueLabel: top})
	w.stmt(v.Body)
	w.loops = w.loops[:len(w.loops)-1]
	w.gotoLabel(v.Pos(), top, v.Distance)
	w.c.labelAddr[end] = w.here()
}

func (w *walker) doWhileStmt(v *ast.DoWhile) {
	top := &ast.LabelDecl{}
	end := &ast.LabelDecl{}
	w.c.labelAddr[top] = w.here()
	w.loops = append(w.loops, loopCtx{breakLabel: end, continueLabel: top})
	w.stmt(v.Body)
	w.loops = w.loops[:len(w.loops)-1]
	w.branchCondition(v.Condition, true, top, ast.DistanceDefault)
	w.c.labelAddr[end] = w.here()
}

func (w *walker) forStmt(v *ast.ForStatement) {
	// The counter variable's init/step is materialized by declare/reduce
	// as an ordinary var; only the loop's body-plus-backedge shape is
	// emitted here, matching while's lowering.
	top := &ast.LabelDecl{}
	end := &ast.LabelDecl{}
	w.c.labelAddr[top] = w.here()
	w.loops = append(w.loops, loopCtx{breakLabel: end, continueLabel: top})
	w.stmt(v.Body)
	w.loops = w.loops[:len(w.loops)-1]
	w.gotoLabel(v.Pos(), top, v.Distance)
	w.c.labelAddr[end] = w.here()
}

// inlineForStmt unrolls its body once per element of the already-folded
// compile-time Sequence, substituting the loop name for each value and
// lowering the resulting tree (spec.md §4.B: `inline for` is always fully
// unrolled, never a runtime loop).
func (w *walker) inlineForStmt(v *ast.InlineFor) {
	values, ok := w.c.expandSequence(v.Sequence)
	if !ok {
		w.c.errorf(v.Pos(), "inline for sequence is not a compile-time constant range or array")
		return
	}
	for _, val := range values {
		bind := map[intern.String]ast.Expr{v.Name: val}
		body := substituteStmt(v.Body, v.Pos(), bind)
		scope := w.c.scopeOf[v]
		if s, ok := w.c.scopeOf[v.Body]; ok && s != nil {
			scope = s
		}
		if nb, ok := body.(*ast.Block); ok {
			w.c.scopeOf[nb] = scope
		}
		w.c.reduceStmt(body, scope)
		w.stmt(body)
	}
}

// expandSequence evaluates a folded compile-time Range or ArrayLiteral into
// its element expressions, for `inline for`'s unroll.
func (c *Compiler) expandSequence(e ast.Expr) ([]ast.Expr, bool) {
	switch v := e.(type) {
	case *ast.Range:
		start, ok1 := c.asConstInt(v.Start)
		end, ok2 := c.asConstInt(v.End)
		if !ok1 || !ok2 {
			return nil, false
		}
		step := int64(1)
		if v.Step != nil {
			if s, ok := c.asConstInt(v.Step); ok {
				step = s
			}
		}
		if step == 0 {
			return nil, false
		}
		var out []ast.Expr
		if step > 0 {
			for i := start; i < end; i += step {
				out = append(out, intLiteral(i))
			}
		} else {
			for i := start; i > end; i += step {
				out = append(out, intLiteral(i))
			}
		}
		return out, true
	case *ast.ArrayLiteral:
		return v.Elements, true
	default:
		return nil, false
	}
}

func intLiteral(i int64) *ast.IntLiteral {
	v := int128.FromInt64(i)
	lit := &ast.IntLiteral{Hi: v.Hi, Lo: v.Lo}
	lit.SetInfo(ast.Info{Class: ast.CompileTime})
	return lit
}

func (w *walker) branchStmt(v *ast.Branch) {
	switch v.Kind {
	case ast.BranchGoto, ast.BranchFarGoto:
		w.gotoNamed(v)
	case ast.BranchBreak:
		if len(w.loops) > 0 {
			w.gotoLabel(v.Pos(), w.loops[len(w.loops)-1].breakLabel, v.Distance)
		}
	case ast.BranchContinue:
		if len(w.loops) > 0 {
			w.gotoLabel(v.Pos(), w.loops[len(w.loops)-1].continueLabel, v.Distance)
		}
	case ast.BranchReturn, ast.BranchIrqReturn, ast.BranchNmiReturn, ast.BranchFarReturn:
		if v.ReturnValue != nil {
			dst := pattern.RegisterOperand{Reg: pattern.Reg{Name: "return"}}
			val := w.c.createOperandFromExpression(v.ReturnValue)
			w.selectAndEmit(v.Pos(), builtins.InstructionType{Kind: builtins.VerbAssign}, []pattern.Operand{dst, val})
		}
		w.selectAndEmit(v.Pos(), builtins.InstructionType{Kind: builtins.VerbJump, Jump: v.Kind}, nil)
	case ast.BranchCall, ast.BranchFarCall:
		if ce, ok := v.Destination.(*ast.Call); ok {
			w.call(ce)
		}
	}
}

func (w *walker) gotoNamed(v *ast.Branch) {
	pieces, ok := identPieces(v.Destination)
	if !ok || len(pieces) != 1 {
		w.c.errorf(v.Pos(), "goto target must be a label name")
		return
	}
	label := w.c.findLabel(w.fn, pieces[0].Text())
	if label == nil {
		w.c.errorf(v.Pos(), "undeclared label %q", pieces[0].Text())
		return
	}
	hint := v.Distance
	if v.Kind == ast.BranchFarGoto {
		hint = ast.DistanceLong
	}
	w.gotoLabel(v.Pos(), label, hint)
}

// gotoLabel emits an unconditional jump to label, using its best-known
// address from the previous convergence iteration (or the backend's
// placeholder, on the bootstrap iteration before any label has one).
func (w *walker) gotoLabel(pos diag.Pos, label *ast.LabelDecl, hint ast.DistanceHint) {
	addr, ok := w.c.labelAddr[label]
	if !ok {
		addr = w.c.backend.PlaceholderValue()
	}
	w.selectBranchAndEmit(pos, builtins.InstructionType{Kind: builtins.VerbJump, Jump: ast.BranchGoto}, addr, hint)
}

// branchCondition emits the test-and-branch sequence for cond; branchWhenTrue
// selects whether the branch fires when cond evaluates true (do-while's
// trailing test) or false (if/while's leading test), targeting label. A
// bare (non-comparison) condition is treated as an implicit `== true` test,
// so it reuses the exact same backend.TestAndBranch(BEq, ...) plan every
// comparison goes through, rather than needing its own registered
// instruction shape.
func (w *walker) branchCondition(cond ast.Expr, branchWhenTrue bool, label *ast.LabelDecl, hint ast.DistanceHint) {
	addr, ok := w.c.labelAddr[label]
	if !ok {
		addr = w.c.backend.PlaceholderValue()
	}

	var left, right pattern.Operand
	var op ast.BinaryKind
	var signed bool
	if bin, ok := cond.(*ast.BinaryOp); ok {
		left = w.c.createOperandFromExpression(bin.Left)
		right = w.c.createOperandFromExpression(bin.Right)
		op = bin.Kind
		signed = isSignedOperand(bin.Left)
	} else {
		left = w.c.createOperandFromExpression(cond)
		right = pattern.BooleanOperand{Value: true}
		op = ast.BEq
	}
	if !branchWhenTrue {
		op = negateComparison(op)
	}

	plan, ok := w.c.backend.TestAndBranch(op, signed, left, right)
	if !ok {
		w.c.errorf(cond.Pos(), "no comparison strategy for this condition on backend %q", w.c.backend.Name())
		return
	}
	if plan.CompareOperands != nil {
		w.selectAndEmit(cond.Pos(), plan.CompareType, plan.CompareOperands)
	}
	for _, cnd := range plan.Conditions {
		w.selectBranchAndEmit(cond.Pos(), cnd.Verb, addr, hint)
	}
}

// relativeDisplacement computes a conditional branch's PC-relative operand:
// the signed distance from the byte immediately after a 2-byte relative
// branch instruction to target. Every near branch/jump instruction in the
// registered backends encodes to exactly 2 bytes (one opcode, one signed
// displacement byte), the shared shape spec.md §4.E's worked examples use,
// so the bias is a compile-time constant.
func (w *walker) relativeDisplacement(target int64) int64 {
	return target - (w.here() + 2)
}

// selectBranchAndEmit resolves and emits a branch or jump to an absolute
// target address, the way every conditional branch (from branchCondition)
// and every `goto` (from gotoLabel) reaches an instruction. A backend that
// only ever registers a PC-relative encoding for key (mos6502, spc700: a
// single 2-byte relative form) wants the displacement from here to target;
// a backend that also registers a longer absolute-addressed form for the
// same key, for targets a relative byte can't reach (gameboy: a 2-byte
// relative JR alongside a 3-byte absolute JP under the same semantic
// type), wants whichever shape actually matches.
//
// Because Signature.Matches has no notion of "this value happens to look
// like a valid displacement AND a valid address", the two candidate
// operand values - the real displacement, and the real absolute address -
// are tried as two independent Select calls rather than merged into one
// ambiguous capture. hint (an ast.DistanceHint carried by the source
// if/while/for/goto/break/continue that reached this branch) picks which
// candidates are tried: DistanceShort commits to the relative candidate
// only (a `short`-annotated branch that doesn't fit is a hard error, not a
// silent widen), DistanceLong commits to the absolute candidate only (also
// how an explicit `fargoto` forces its encoding), and DistanceDefault
// tries the relative candidate first and falls back to the absolute one,
// so an un-annotated branch still gets the smallest encoding its target
// allows.
func (w *walker) selectBranchAndEmit(pos diag.Pos, key builtins.InstructionType, target int64, hint ast.DistanceHint) {
	rel := pattern.IntegerOperand{Value: w.relativeDisplacement(target)}
	if hint != ast.DistanceLong {
		instr, caps, err := w.c.bi.Patterns.Select(key, []pattern.Operand{rel})
		if err == nil && instr.Encoding.ComputeSize(caps) <= 2 {
			w.emitInstruction(instr, caps)
			return
		}
		if hint == ast.DistanceShort {
			w.c.sink.Report(diag.Error, pos, "%s: short branch target is out of the representable range -128..127", key.String())
			return
		}
	}
	abs := pattern.IntegerOperand{Value: target}
	instr, caps, err := w.c.bi.Patterns.Select(key, []pattern.Operand{abs})
	if err != nil {
		if hint != ast.DistanceLong {
			w.c.sink.Report(diag.Error, pos, "%s: branch target is out of the representable range -128..127 and this backend has no longer encoding", key.String())
			return
		}
		w.c.sink.Report(diag.Error, pos, "%s: %v", key.String(), err)
		return
	}
	if hint == ast.DistanceDefault && !w.c.sizeOnly {
		// Reported only on the real write pass: layoutPass's size-only
		// iterations re-measure this same branch on every convergence
		// round, and a Warning (unlike a hard Error) never stops that
		// loop early, so gating on sizeOnly is what keeps this a single
		// diagnostic instead of one per iteration.
		w.c.sink.Report(diag.Warning, pos, "%s: target is out of the representable range -128..127; auto-widened to a long encoding", key.String())
	}
	w.emitInstruction(instr, caps)
}

func negateComparison(op ast.BinaryKind) ast.BinaryKind {
	switch op {
	case ast.BEq:
		return ast.BNe
	case ast.BNe:
		return ast.BEq
	case ast.BLt:
		return ast.BGe
	case ast.BLe:
		return ast.BGt
	case ast.BGt:
		return ast.BLe
	case ast.BGe:
		return ast.BLt
	default:
		return op
	}
}

func (w *walker) selectAndEmit(pos diag.Pos, key builtins.InstructionType, operands []pattern.Operand) {
	instr, captures, err := w.c.bi.Patterns.Select(key, operands)
	if err != nil {
		w.c.sink.Report(diag.Error, pos, "%s: %v", key.String(), err)
		return
	}
	w.emitInstruction(instr, captures)
}

// emitInstruction advances the walker's offset (and, outside the size-only
// convergence pass, writes the encoded bytes) for an instruction already
// chosen by selectAndEmit or selectBranchAndEmit.
func (w *walker) emitInstruction(instr *pattern.Instruction[builtins.InstructionType], captures []pattern.Operand) {
	size := instr.Encoding.ComputeSize(captures)
	if w.bnk != nil && !w.c.sizeOnly {
		w.bnk.Write(instr.Encoding.WriteBytes(captures, nil))
	}
	w.offset += int64(size)
}

// substituteStmt deep-copies s, replacing every reference to a name in
// bind with a fresh clone of its bound expression (mirrors substitute in
// expr.go, but over statements, for `inline for`'s per-instance unroll).
// Every LabelDecl is given a fresh pointer so each unrolled instance's
// labels are distinct entries in labelAddr.
func substituteStmt(s ast.Statement, pos diag.Pos, bind map[intern.String]ast.Expr) ast.Statement {
	switch v := s.(type) {
	case nil:
		return nil
	case *ast.Attributed:
		n := *v
		n.Inner = substituteStmt(v.Inner, pos, bind)
		return &n
	case *ast.Block:
		out := make([]ast.Statement, len(v.Statements))
		for i, st := range v.Statements {
			out[i] = substituteStmt(st, pos, bind)
		}
		return &ast.Block{Statements: out}
	case *ast.ExprStatement:
		return &ast.ExprStatement{Value: substitute(v.Value, pos, bind)}
	case *ast.IfStatement:
		return &ast.IfStatement{
			Condition: substitute(v.Condition, pos, bind),
			Then:      substituteStmt(v.Then, pos, bind),
			Else:      substituteStmt(v.Else, pos, bind),
			Distance:  v.Distance,
		}
	case *ast.WhileStatement:
		return &ast.WhileStatement{Condition: substitute(v.Condition, pos, bind), Body: substituteStmt(v.Body, pos, bind), Distance: v.Distance}
	case *ast.DoWhile:
		return &ast.DoWhile{Body: substituteStmt(v.Body, pos, bind), Condition: substitute(v.Condition, pos, bind)}
	case *ast.Branch:
		n := *v
		if v.Condition != nil {
			n.Condition = substitute(v.Condition, pos, bind)
		}
		if v.Destination != nil && v.Kind != ast.BranchGoto && v.Kind != ast.BranchFarGoto {
			n.Destination = substitute(v.Destination, pos, bind)
		}
		if v.ReturnValue != nil {
			n.ReturnValue = substitute(v.ReturnValue, pos, bind)
		}
		return &n
	case *ast.LabelDecl:
		n := *v
		return &n
	default:
		return s
	}
}
