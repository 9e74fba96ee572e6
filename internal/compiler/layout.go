package compiler

import (
	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/bank"
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/sym"
	"github.com/anvil-lang/anvil/internal/types"
)

// maxLayoutIterations bounds the short/long branch convergence loop
// (spec.md §8 property 6, §9 Open Question 3): a diagnostic, not a panic,
// is the answer if a program's branches genuinely oscillate forever.
const maxLayoutIterations = 8

// layoutPass assigns every var/func its bank-relative (and, for
// fixed-base banks, absolute) address, re-placing everything from scratch
// each iteration until every function's encoded size stabilizes (spec.md
// §4.H phase 4). The bootstrap iteration has no resolved addresses yet, so
// operand.go's operandForDef falls back to the active backend's
// PlaceholderValue for every forward (and, on iteration 0, every)
// reference; each subsequent iteration measures against the previous
// iteration's real addresses, which is what lets a branch's distance
// converge onto a stable short-or-long encoding choice.
func (c *Compiler) layoutPass() bool {
	sink := diag.NewSink()
	prevSink := c.sink
	c.sink = sink
	c.sizeOnly = true

	prevSizes := map[*sym.Definition]int64{}
	stable := false
	for iter := 0; iter < maxLayoutIterations; iter++ {
		for _, bankDef := range c.bankDefs {
			bankDef.Bank.Reset()
		}
		curSizes := map[*sym.Definition]int64{}
		for _, bankDef := range c.bankDefs {
			b := bankDef.Bank
			for _, def := range c.bankItems[bankDef] {
				c.placeOne(b, def, curSizes)
			}
		}
		if !sink.Ok() {
			// A hard diagnostic (e.g. a short-branch target out of range)
			// means this program can never converge; stop now instead of
			// re-running placeOne for the remaining iterations and
			// reporting the same error once per iteration.
			stable = true
			break
		}
		if iter > 0 && sameSizes(prevSizes, curSizes) {
			stable = true
			break
		}
		prevSizes = curSizes
	}
	if !stable {
		c.errorf(diag.Pos{}, "branch layout did not converge after %d iterations", maxLayoutIterations)
	}

	c.sink = prevSink
	c.sink.Merge(sink)
	return sink.Ok()
}

func sameSizes(a, b map[*sym.Definition]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func (c *Compiler) placeOne(b *bank.Bank, def *sym.Definition, sizes map[*sym.Definition]int64) {
	switch def.Kind {
	case sym.KindVar:
		c.placeVar(b, def)
	case sym.KindFunc:
		c.placeFunc(b, def, sizes)
	}
}

func (c *Compiler) placeVar(b *bank.Bank, def *sym.Definition) {
	size, err := types.Sizeof(def.Type, c.ptr, c.constIntFunc())
	if err != nil {
		c.errorf(def.Decl.Pos(), "variable %q: %v", def.Name.Text(), err)
		return
	}
	if size <= 0 {
		size = 1
	}

	decl, _ := def.Decl.(*ast.VarDecl)
	if decl != nil {
		if idx, ok := c.varIndex[def]; ok && idx < len(decl.Addresses) && decl.Addresses[idx] != nil {
			off, ok := c.asConstInt(decl.Addresses[idx])
			if !ok {
				c.errorf(decl.Pos(), "variable %q: explicit address is not a compile-time integer", def.Name.Text())
				return
			}
			addr, err := b.PlaceFixed(off, size)
			if err != nil {
				c.errorf(decl.Pos(), "%v", err)
				return
			}
			def.Address = addr
			return
		}
	}

	addr, err := b.Place(size)
	if err != nil {
		c.errorf(def.Decl.Pos(), "%v", err)
		return
	}
	def.Address = addr
}

func (c *Compiler) placeFunc(b *bank.Bank, def *sym.Definition, sizes map[*sym.Definition]int64) {
	fn, ok := def.Decl.(*ast.FuncDecl)
	if !ok || fn.Body == nil {
		return
	}
	base := b.Position()
	if b.Base != nil {
		base += *b.Base
	}
	size := c.measureFunc(fn, base, nil)
	sizes[def] = size

	addr, err := b.Place(size)
	if err != nil {
		c.errorf(fn.Pos(), "function %q: %v", def.Name.Text(), err)
		return
	}
	def.Address = addr
}
