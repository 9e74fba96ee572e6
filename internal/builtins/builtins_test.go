package builtins

import (
	"testing"

	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/pattern"
)

func TestNewSeedsPrimitiveTypes(t *testing.T) {
	table := intern.NewTable()
	b := New(table, nil)

	for _, name := range []string{"u8", "u16", "u24", "u32", "u64", "i8", "i16", "i24", "i32", "i64"} {
		def := b.Scope.LookupLocal(table.Intern(name))
		if def == nil {
			t.Fatalf("expected builtin scope to declare %q", name)
		}
		if def.Integer == nil {
			t.Fatalf("expected %q to carry IntegerInfo", name)
		}
	}

	u8 := b.IntegerTypes["u8"]
	if u8.Integer.Min != 0 || u8.Integer.Max != 255 {
		t.Fatalf("expected u8 range [0,255], got [%d,%d]", u8.Integer.Min, u8.Integer.Max)
	}
	i8 := b.IntegerTypes["i8"]
	if i8.Integer.Min != -128 || i8.Integer.Max != 127 {
		t.Fatalf("expected i8 range [-128,127], got [%d,%d]", i8.Integer.Min, i8.Integer.Max)
	}

	for _, name := range []string{"bool", "iexpr", "let", "range", "typeof"} {
		if b.Scope.LookupLocal(table.Intern(name)) == nil {
			t.Fatalf("expected builtin scope to declare marker type %q", name)
		}
	}
}

func TestNewSeedsDefineMacros(t *testing.T) {
	table := intern.NewTable()
	b := New(table, nil)

	has := b.Scope.LookupLocal(table.Intern("__has"))
	if has == nil || len(has.Params) != 1 {
		t.Fatalf("expected __has/1 in builtin scope, got %#v", has)
	}
	get := b.Scope.LookupLocal(table.Intern("__get"))
	if get == nil || len(get.Params) != 2 {
		t.Fatalf("expected __get/2 in builtin scope, got %#v", get)
	}
}

func TestDeclareRegisterAndIntrinsic(t *testing.T) {
	table := intern.NewTable()
	b := New(table, nil)

	reg := b.DeclareRegister(table, "a", pattern.Reg{Name: "test.a"})
	if reg == nil || reg.Name.Text() != "a" {
		t.Fatalf("expected register 'a' to be declared")
	}
	if reg.RegisterTag != "test.a" {
		t.Fatalf("expected register tag %q, got %q", "test.a", reg.RegisterTag)
	}

	intr := b.DeclareIntrinsic(table, "halt", nil, false)
	if intr == nil {
		t.Fatalf("expected intrinsic to be declared")
	}
	if intr.Kind.String() != "builtin void intrinsic" {
		t.Fatalf("expected void intrinsic kind, got %v", intr.Kind)
	}

	load := b.DeclareIntrinsic(table, "peek", nil, true)
	if load.Kind.String() != "builtin load intrinsic" {
		t.Fatalf("expected load intrinsic kind, got %v", load.Kind)
	}
}
