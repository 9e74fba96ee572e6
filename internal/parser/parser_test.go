package parser

import (
	"testing"

	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/intern"
)

func parse(t *testing.T, src string) (*ast.FileStatement, *diag.Sink) {
	t.Helper()
	table := intern.NewTable()
	sink := diag.NewSink()
	f := Parse(table, sink, "test.an", "test.an", src)
	return f, sink
}

func TestParseVarDecl(t *testing.T) {
	f, sink := parse(t, `var x: u8 = 1;`)
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	if len(f.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(f.Items))
	}
	v, ok := f.Items[0].(*ast.VarDecl)
	if !ok {
		t.Fatalf("expected *ast.VarDecl, got %T", f.Items[0])
	}
	if len(v.Names) != 1 || v.Names[0].Text() != "x" {
		t.Fatalf("unexpected names: %v", v.Names)
	}
	if v.Init == nil {
		t.Fatalf("expected initializer")
	}
}

func TestParseVarWithAddress(t *testing.T) {
	f, sink := parse(t, `var ppu_ctrl @ 0x2000 : u8;`)
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	v := f.Items[0].(*ast.VarDecl)
	if v.Addresses[0] == nil {
		t.Fatalf("expected an address expression")
	}
	lit, ok := v.Addresses[0].(*ast.IntLiteral)
	if !ok || lit.Lo != 0x2000 {
		t.Fatalf("expected address literal 0x2000, got %#v", v.Addresses[0])
	}
}

func TestParseBankDecl(t *testing.T) {
	f, sink := parse(t, `bank zp: ram @ 0x00, 0x100;`)
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	b := f.Items[0].(*ast.BankDecl)
	if b.Name.Text() != "zp" || b.Kind.Text() != "ram" {
		t.Fatalf("unexpected bank decl: %#v", b)
	}
	if b.Base == nil || b.Capacity == nil {
		t.Fatalf("expected base and capacity expressions")
	}
}

func TestParseFuncAndIf(t *testing.T) {
	f, sink := parse(t, `
		func main() {
			if x == 1 {
				y = 2;
			} else {
				y = 3;
			}
		}
	`)
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	fn := f.Items[0].(*ast.FuncDecl)
	if fn.Name.Text() != "main" {
		t.Fatalf("unexpected func name: %s", fn.Name.Text())
	}
	block := fn.Body.(*ast.Block)
	if len(block.Statements) != 1 {
		t.Fatalf("expected 1 statement in body, got %d", len(block.Statements))
	}
	ifs, ok := block.Statements[0].(*ast.IfStatement)
	if !ok {
		t.Fatalf("expected *ast.IfStatement, got %T", block.Statements[0])
	}
	if ifs.Else == nil {
		t.Fatalf("expected else branch")
	}
}

func TestParseWhileAndBranches(t *testing.T) {
	f, sink := parse(t, `
		func loop() {
			while running {
				i = i + 1;
				break if i == 10;
			}
			return;
		}
	`)
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	fn := f.Items[0].(*ast.FuncDecl)
	block := fn.Body.(*ast.Block)
	if len(block.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(block.Statements))
	}
	ws, ok := block.Statements[0].(*ast.WhileStatement)
	if !ok {
		t.Fatalf("expected *ast.WhileStatement, got %T", block.Statements[0])
	}
	wbody := ws.Body.(*ast.Block)
	brk, ok := wbody.Statements[1].(*ast.Branch)
	if !ok || brk.Kind != ast.BranchBreak || brk.Condition == nil {
		t.Fatalf("expected conditional break, got %#v", wbody.Statements[1])
	}
	ret, ok := block.Statements[1].(*ast.Branch)
	if !ok || ret.Kind != ast.BranchReturn {
		t.Fatalf("expected return branch, got %#v", block.Statements[1])
	}
}

func TestParseStructAndEnum(t *testing.T) {
	f, sink := parse(t, `
		struct Point {
			x: u8,
			y: u8,
		}
		enum Color: u8 {
			Red,
			Green = 5,
			Blue,
		}
	`)
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	sd := f.Items[0].(*ast.StructDecl)
	if len(sd.Fields) != 2 || sd.Union {
		t.Fatalf("unexpected struct decl: %#v", sd)
	}
	ed := f.Items[1].(*ast.EnumDecl)
	if len(ed.Members) != 3 || ed.Members[1].Value == nil {
		t.Fatalf("unexpected enum decl: %#v", ed)
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	f, sink := parse(t, `let x = 1 + 2 * 3;`)
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	decl := f.Items[0].(*ast.LetDecl)
	bin, ok := decl.Value.(*ast.BinaryOp)
	if !ok || bin.Kind != ast.BAdd {
		t.Fatalf("expected top-level add, got %#v", decl.Value)
	}
	rhs, ok := bin.Right.(*ast.BinaryOp)
	if !ok || rhs.Kind != ast.BMul {
		t.Fatalf("expected multiply to bind tighter, got %#v", bin.Right)
	}
}

func TestParseArrayAndStructLiteral(t *testing.T) {
	f, sink := parse(t, `
		let arr = [1, 2, 3];
		let pad = [0; 16];
		let p = Point{ x: 1, y: 2 };
	`)
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	arr := f.Items[0].(*ast.LetDecl).Value.(*ast.ArrayLiteral)
	if len(arr.Elements) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(arr.Elements))
	}
	pad := f.Items[1].(*ast.LetDecl).Value.(*ast.ArrayPadLiteral)
	if pad.Count == nil {
		t.Fatalf("expected pad count")
	}
	sl := f.Items[2].(*ast.LetDecl).Value.(*ast.StructLiteral)
	if len(sl.Fields) != 2 {
		t.Fatalf("expected 2 struct literal fields, got %d", len(sl.Fields))
	}
}

func TestParseInlineForAndImport(t *testing.T) {
	f, sink := parse(t, `
		import "common.an";
		inline for i in 0..4 {
			nop();
		}
	`)
	if !sink.Ok() {
		t.Fatalf("unexpected diagnostics: %v", sink.Diagnostics())
	}
	imp, ok := f.Items[0].(*ast.ImportRef)
	if !ok || imp.Path != "common.an" {
		t.Fatalf("unexpected import: %#v", f.Items[0])
	}
	ifor, ok := f.Items[1].(*ast.InlineFor)
	if !ok {
		t.Fatalf("expected *ast.InlineFor, got %T", f.Items[1])
	}
	rng, ok := ifor.Sequence.(*ast.Range)
	if !ok || rng.Start == nil || rng.End == nil {
		t.Fatalf("expected bounded range, got %#v", ifor.Sequence)
	}
}

func TestParseSyntaxErrorRecovers(t *testing.T) {
	f, sink := parse(t, `
		var a: u8 = ;
		var b: u8 = 2;
	`)
	if sink.Ok() {
		t.Fatalf("expected a diagnostic for the missing initializer expression")
	}
	if len(f.Items) != 2 {
		t.Fatalf("expected parser to recover and still find both declarations, got %d", len(f.Items))
	}
}
