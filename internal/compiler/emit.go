package compiler

import (
	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/bank"
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/int128"
	"github.com/anvil-lang/anvil/internal/sym"
	"github.com/anvil-lang/anvil/internal/types"
)

// emitPass writes every function and initialized variable's final bytes
// into its bank's buffer, reusing layoutPass's exact addresses (spec.md
// §4.H phase 5). It does not re-run the convergence loop: by the time
// layoutPass returns, every bank has already been placed at its final,
// stable positions, so one more walk in "real write" mode (c.sizeOnly
// false, a live *bank.Bank passed to measureFunc) is enough.
func (c *Compiler) emitPass() bool {
	sink := diag.NewSink()
	prevSink := c.sink
	c.sink = sink
	c.sizeOnly = false

	for _, bankDef := range c.bankDefs {
		b := bankDef.Bank
		if !b.Kind.ContributesBytes() {
			continue
		}
		for _, def := range c.bankItems[bankDef] {
			switch def.Kind {
			case sym.KindFunc:
				c.emitFunc(b, def)
			case sym.KindVar:
				c.emitVar(b, def)
			}
		}
	}

	c.sink = prevSink
	c.sink.Merge(sink)
	return sink.Ok()
}

func (c *Compiler) emitFunc(b *bank.Bank, def *sym.Definition) {
	fn, ok := def.Decl.(*ast.FuncDecl)
	if !ok || fn.Body == nil || def.Address == nil || def.Address.Relative == nil {
		return
	}
	base := *def.Address.Relative
	if def.Address.Absolute != nil {
		base = *def.Address.Absolute
	}
	c.measureFunc(fn, base, b)
}

// emitVar writes an initialized variable's constant-folded Init value as
// raw bytes; a variable with no initializer still reserves its placed byte
// range as zeros, since bank.Write tracks position sequentially and later
// vars' addresses (already handed out by layoutPass) assume it did.
func (c *Compiler) emitVar(b *bank.Bank, def *sym.Definition) {
	size, err := types.Sizeof(def.Type, c.ptr, c.constIntFunc())
	if err != nil || size <= 0 {
		size = 1
	}
	decl, ok := def.Decl.(*ast.VarDecl)
	if !ok || decl.Init == nil {
		b.Write(make([]byte, size))
		return
	}
	data, ok := c.encodeConstant(decl.Init, size)
	if !ok {
		c.errorf(decl.Pos(), "variable %q: initializer is not a compile-time constant", def.Name.Text())
		b.Write(make([]byte, size))
		return
	}
	b.Write(data)
}

// encodeConstant renders a folded constant expression as size little-
// endian bytes, the byte order every backend spec.md targets (6502-family,
// SPC-700, Z80) shares.
func (c *Compiler) encodeConstant(e ast.Expr, size int64) ([]byte, bool) {
	switch v := e.(type) {
	case *ast.IntLiteral:
		val := int128.Value{Hi: v.Hi, Lo: v.Lo}
		out := make([]byte, size)
		for i := int64(0); i < size && i < 8; i++ {
			out[i] = byte(val.Lo >> (8 * uint(i)))
		}
		for i := int64(8); i < size && i < 16; i++ {
			out[i] = byte(val.Hi >> (8 * uint(i-8)))
		}
		return out, true

	case *ast.BoolLiteral:
		out := make([]byte, size)
		if v.Value {
			out[0] = 1
		}
		return out, true

	case *ast.ArrayLiteral:
		if len(v.Elements) == 0 {
			return make([]byte, size), true
		}
		elemSize := size / int64(len(v.Elements))
		out := make([]byte, 0, size)
		for _, el := range v.Elements {
			eb, ok := c.encodeConstant(el, elemSize)
			if !ok {
				return nil, false
			}
			out = append(out, eb...)
		}
		return out, true

	case *ast.ArrayPadLiteral:
		n, ok := c.asConstInt(v.Count)
		if !ok {
			return nil, false
		}
		elemSize := size
		if n > 0 {
			elemSize = size / n
		}
		one, ok := c.encodeConstant(v.Value, elemSize)
		if !ok {
			return nil, false
		}
		out := make([]byte, 0, size)
		for i := int64(0); i < n; i++ {
			out = append(out, one...)
		}
		return out, true

	case *ast.StringLiteral:
		data := []byte(v.Value)
		if int64(len(data)) < size {
			data = append(data, make([]byte, size-int64(len(data)))...)
		}
		return data, true

	case *ast.Embed:
		if c.reader == nil {
			return nil, false
		}
		data, err := c.reader.ReadFile(v.Path)
		if err != nil {
			return nil, false
		}
		bytes := []byte(data)
		if int64(len(bytes)) < size {
			bytes = append(bytes, make([]byte, size-int64(len(bytes)))...)
		}
		return bytes, true

	default:
		return nil, false
	}
}
