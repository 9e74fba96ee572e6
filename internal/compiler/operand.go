package compiler

import (
	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/pattern"
	"github.com/anvil-lang/anvil/internal/sym"
	"github.com/anvil-lang/anvil/internal/types"
)

// createOperandFromExpression lowers a reduced Expr into the concrete
// pattern.Operand tree a backend's instruction signatures match against
// (spec.md §4.E). Any reference whose address is not yet known (because
// layoutPass hasn't placed it yet, or because this is the placeholder
// bootstrap pass) is represented with the active backend's
// PlaceholderValue, which is guaranteed to encode to the same byte count
// under every candidate instruction so the size-only pass never lies about
// how many bytes a not-yet-resolved branch will occupy.
func (c *Compiler) createOperandFromExpression(e ast.Expr) pattern.Operand {
	switch v := e.(type) {
	case *ast.IntLiteral:
		n, ok := c.asConstInt(v)
		if !ok {
			c.errorf(v.Pos(), "integer literal does not fit a machine operand")
		}
		return pattern.IntegerOperand{Value: n}

	case *ast.BoolLiteral:
		return pattern.BooleanOperand{Value: v.Value}

	case *ast.ResolvedIdent:
		return c.operandForDef(v)

	case *ast.UnaryOp:
		if v.Kind == ast.UDeref {
			return pattern.DereferenceOperand{Inner: c.createOperandFromExpression(v.Inner), Size: c.sizeOfExpr(v.Inner)}
		}
		return c.createOperandFromExpression(v.Inner)

	case *ast.Index:
		size := c.sizeOfExpr(v)
		return pattern.IndexOperand{
			Base:      c.createOperandFromExpression(v.Base),
			Subscript: c.createOperandFromExpression(v.Subscript),
			Scale:     size,
			Size:      size,
		}

	case *ast.BitIndex:
		return pattern.BitIndexOperand{
			Value:     c.createOperandFromExpression(v.Value),
			Subscript: c.createOperandFromExpression(v.Bit),
		}

	case *ast.Cast:
		return c.createOperandFromExpression(v.Value)

	default:
		c.errorf(e.Pos(), "expression cannot be used as an instruction operand")
		return pattern.IntegerOperand{Value: 0}
	}
}

func (c *Compiler) operandForDef(v *ast.ResolvedIdent) pattern.Operand {
	def, ok := v.Def.(*sym.Definition)
	if !ok {
		return pattern.IntegerOperand{Value: c.backend.PlaceholderValue()}
	}
	switch def.Kind {
	case sym.KindBuiltinRegister:
		return pattern.RegisterOperand{Reg: pattern.Reg{Name: def.RegisterTag}}
	case sym.KindVar, sym.KindFunc, sym.KindBank:
		if addr, ok := c.defAddress(def); ok {
			return pattern.IntegerOperand{Value: addr}
		}
		return pattern.IntegerOperand{Value: c.backend.PlaceholderValue()}
	default:
		return pattern.IntegerOperand{Value: c.backend.PlaceholderValue()}
	}
}

// defAddress narrows def's placed Address to a single integer: the
// absolute address if the owning bank has a fixed base, otherwise the
// bank-relative offset (a documented simplification - see DESIGN.md - for
// banks with no declared base, where only intra-bank distances matter).
func (c *Compiler) defAddress(def *sym.Definition) (int64, bool) {
	if def.Address == nil {
		return 0, false
	}
	if def.Address.Absolute != nil {
		return *def.Address.Absolute, true
	}
	if def.Address.Relative != nil {
		return *def.Address.Relative, true
	}
	return 0, false
}

func (c *Compiler) sizeOfExpr(e ast.Expr) int {
	t := e.Info().Type
	if t == nil {
		return 1
	}
	n, err := types.Sizeof(t, c.ptr, c.constIntFunc())
	if err != nil || n <= 0 {
		return 1
	}
	return int(n)
}
