// Package compiler implements spec.md component H, the compiler core: the
// phase driver (declaration pass, type & constant reduction, address
// assignment, code emission) and the statement lowering that consumes
// component E (internal/pattern) and component F (internal/platform)
// through their interfaces.
//
// Phase 1 of spec.md §4.H ("import resolution") is implemented by
// internal/importer, an external collaborator per spec.md §1; cmd/anvilc
// runs it before handing the flattened root internal/ast.FileStatement to
// Compile, so Compile itself begins at phase 2 (declaration pass).
//
// Grounded on spec.md §4.H; phase-sequencing idiom follows
// `cmd_local/asm/main.go`'s linear "parse -> (on success) flush/emit"
// driver and `cmd_local/go/internal/mvs.BuildList`'s "iterate until the
// graph stops changing" convergence shape, used here for the branch-width
// convergence loop (spec.md §8 property 6).
package compiler

import (
	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/bank"
	"github.com/anvil-lang/anvil/internal/builtins"
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/int128"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/ioutil"
	"github.com/anvil-lang/anvil/internal/profile"
	"github.com/anvil-lang/anvil/internal/sym"
	"github.com/anvil-lang/anvil/internal/types"
)

// Config carries the handful of inputs Compile needs beyond the parsed
// tree itself.
type Config struct {
	Table    *intern.Table
	Sink     *diag.Sink
	Backend  builtins.Backend
	Defines  map[intern.String]ast.Expr
	Reader   *ioutil.Reader // optional; needed only if the source uses `embed "path"`
	Profiler *profile.Recorder
}

// Program is everything a caller (cmd/anvilc, internal/container,
// internal/debugsym) needs once Compile succeeds.
type Program struct {
	Banks      []*bank.Bank       // declaration order
	BankByName map[string]*bank.Bank
	Defs       []*sym.Definition // every placed (func/var/bank) definition, for debugsym
	Config     map[string]ast.Expr
	ConfigOrder []string
}

// Compiler holds the state threaded through every phase of one compilation.
type Compiler struct {
	table   *intern.Table
	sink    *diag.Sink
	bi      *builtins.Builtins
	backend builtins.Backend
	reader  *ioutil.Reader
	prof    *profile.Recorder
	ptr     types.PointerSizes

	banks      []*bank.Bank
	bankDefs   []*sym.Definition
	bankByName map[string]*bank.Bank
	// bankItems is keyed by a bank's *sym.Definition rather than its
	// *bank.Bank: declarePass populates this before reducePass has
	// constructed any bank.Bank (bank.New needs a folded capacity).
	bankItems map[*sym.Definition][]*sym.Definition // declaration order, per bank

	scopeOf map[ast.Statement]*sym.Scope // statements that introduce a scope

	varIndex        map[*sym.Definition]int      // index of this def's name within its VarDecl.Names
	fieldAlignExpr  map[*sym.Definition]ast.Expr // raw #[align(n)] expr, nil if none
	enumUnderlyingX map[*sym.Definition]ast.Expr // raw `enum E : T` expr, nil if inferred
	bankTargets     map[*sym.Definition]*sym.Definition // the bank def a var/func was declared under

	config      map[string]ast.Expr
	configOrder []string

	allDefs []*sym.Definition // every func/var/bank def, in declaration order

	letInProgress map[*sym.Definition]bool // recursion guard for let-constant self-reference

	// sizeOnly, when true, tells the operand constructor to substitute
	// backend.PlaceholderValue() for any integer whose address is not yet
	// resolved (spec.md §4.H's size-only codegen pass).
	sizeOnly bool

	// labelAddr carries each label's best-known absolute (or bank-relative,
	// if the bank has no fixed base) address across layoutPass's
	// convergence iterations; emitPass reads the final values.
	labelAddr map[*ast.LabelDecl]int64
	// funcLabels caches one function body's label declarations, collected
	// once by scanning its statement tree (spec.md §4.H: labels are
	// resolved by scan, not through the symbol table).
	funcLabels map[*ast.FuncDecl][]*ast.LabelDecl
}

// Compile runs phases 2-5 of spec.md §4.H over root, returning the
// resulting Program and whether every phase succeeded. Each phase uses its
// own diag.Sink-backed pass (spec.md §7: "every pass accumulates errors...
// a pass returns success iff no error... Later passes are skipped if
// earlier ones failed").
func Compile(cfg Config, root *ast.FileStatement) (*Program, bool) {
	c := &Compiler{
		table:           cfg.Table,
		sink:            cfg.Sink,
		backend:         cfg.Backend,
		reader:          cfg.Reader,
		prof:            cfg.Profiler,
		bankByName:      map[string]*bank.Bank{},
		bankItems:       map[*sym.Definition][]*sym.Definition{},
		scopeOf:         map[ast.Statement]*sym.Scope{},
		varIndex:        map[*sym.Definition]int{},
		fieldAlignExpr:  map[*sym.Definition]ast.Expr{},
		enumUnderlyingX: map[*sym.Definition]ast.Expr{},
		config:          map[string]ast.Expr{},
		letInProgress:   map[*sym.Definition]bool{},
		labelAddr:       map[*ast.LabelDecl]int64{},
		funcLabels:      map[*ast.FuncDecl][]*ast.LabelDecl{},
	}

	c.bi = builtins.New(cfg.Table, cfg.Defines)
	if err := c.bi.Init(cfg.Backend); err != nil {
		c.sink.Report(diag.Fatal, diag.Pos{}, "initializing backend %q: %v", cfg.Backend.Name(), err)
		return nil, false
	}
	c.backend = c.bi.Backend
	c.ptr = types.PointerSizes{Near: sizeofDef(c.backend.PointerSizedType()), Far: sizeofDef(c.backend.FarPointerSizedType())}

	phase := func(name string, fn func() bool) bool {
		if c.prof != nil {
			stop := c.prof.Phase(name)
			defer stop()
		}
		return fn()
	}

	if !phase("declare", func() bool { return c.declarePass(root) }) {
		return nil, false
	}
	if !phase("reduce", func() bool { return c.reducePass(root) }) {
		return nil, false
	}
	if !phase("layout", func() bool { return c.layoutPass() }) {
		return nil, false
	}
	if !phase("emit", func() bool { return c.emitPass() }) {
		return nil, false
	}

	return &Program{
		Banks:       c.banks,
		BankByName:  c.bankByName,
		Defs:        c.allDefs,
		Config:      c.config,
		ConfigOrder: c.configOrder,
	}, true
}

// sizeofDef returns a builtin integer/pointer type definition's byte size,
// used only for the two fixed pointer-sized-type queries the active
// backend supplies directly (not a general sizeof - that's internal/types,
// used once real TypeExpr trees exist).
func sizeofDef(def *sym.Definition) int64 {
	if def == nil || def.Integer == nil {
		return 0
	}
	return int64((def.Integer.BitWidth + 7) / 8)
}

func (c *Compiler) errorf(pos diag.Pos, format string, args ...interface{}) {
	c.sink.Report(diag.Error, pos, format, args...)
}

func (c *Compiler) constIntFunc() types.ConstIntFunc {
	return func(e ast.Expr) (int64, bool) {
		return c.asConstInt(e)
	}
}

// asConstInt narrows a reduced integer literal to an int64, used for array
// counts and similar small compile-time quantities that internal/types'
// ConstIntFunc callback needs. e must already have been through the
// constant folder (reduce.go), so a non-literal here means folding failed
// upstream and a diagnostic was already reported.
func (c *Compiler) asConstInt(e ast.Expr) (int64, bool) {
	lit, ok := e.(*ast.IntLiteral)
	if !ok {
		return 0, false
	}
	return int128.Value{Hi: lit.Hi, Lo: lit.Lo}.FitsInt64()
}
