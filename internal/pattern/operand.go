// Package pattern implements spec.md component E, the instruction-pattern
// engine: the operand/pattern tree language, matches/isSubsetOf/extract,
// and a generic registry that maintains a specialization DAG per semantic
// operation and selects the best match at lookup. The package is
// deliberately generic (type-parameterized on the semantic-operation key)
// so every CPU backend (internal/platform/mos6502, .../gameboy, .../spc700)
// shares one mechanism, per spec.md §2's description of component E as "a
// generic mechanism by which each CPU backend registers a catalogue."
package pattern

// Reg identifies a concrete machine register. Two Regs are the same
// register iff Name is equal; each backend mints Regs with package-unique
// names, making Name equality equivalent to the "definition pointer
// equality" spec.md §4.E specifies for register operands.
type Reg struct {
	Name string
}

// Operand is a concrete operand tree (spec.md §3 "InstructionOperand").
type Operand interface {
	operandNode()
}

// RegisterOperand names a concrete register.
type RegisterOperand struct{ Reg Reg }

func (RegisterOperand) operandNode() {}

// IntegerOperand is a concrete 128-bit-range integer value, represented as
// int64 here: instruction operands are opcodes/immediates/displacements,
// which always fit int64 even though spec.md's expression literals are
// 128-bit (internal/compiler narrows before constructing an Operand).
type IntegerOperand struct{ Value int64 }

func (IntegerOperand) operandNode() {}

// BooleanOperand is a concrete boolean value.
type BooleanOperand struct{ Value bool }

func (BooleanOperand) operandNode() {}

// DereferenceOperand is `*(ptr)`, with an explicit byte size and whether it
// is a far (bank-crossing) dereference.
type DereferenceOperand struct {
	Far   bool
	Inner Operand
	Size  int
}

func (DereferenceOperand) operandNode() {}

// IndexOperand is `base[subscript]`, normalized to an explicit scale and
// byte size.
type IndexOperand struct {
	Far            bool
	Base, Subscript Operand
	Scale          int
	Size           int
}

func (IndexOperand) operandNode() {}

// BitIndexOperand is `value $ subscript`: extracts one bit.
type BitIndexOperand struct{ Value, Subscript Operand }

func (BitIndexOperand) operandNode() {}

// UnaryOperand is an addressing-mode unary combinator (e.g. post-increment)
// distinguished by Kind, a backend-chosen tag string.
type UnaryOperand struct {
	Kind  string
	Inner Operand
}

func (UnaryOperand) operandNode() {}

// BinaryOperand is an addressing-mode binary combinator (e.g. `base+disp`
// before it is recognized as an Index), distinguished by Kind.
type BinaryOperand struct {
	Kind        string
	Left, Right Operand
}

func (BinaryOperand) operandNode() {}

// ---- Patterns ----

// OperandPattern is a pattern over Operand trees (spec.md §3
// "InstructionOperandPattern"): it mirrors Operand's shapes and adds
// Capture, IntegerRange, and IntegerAtLeast.
type OperandPattern interface {
	operandPatternNode()
}

type RegisterPattern struct{ Reg Reg }

func (RegisterPattern) operandPatternNode() {}

type IntegerPattern struct{ Value int64 }

func (IntegerPattern) operandPatternNode() {}

type BooleanPattern struct{ Value bool }

func (BooleanPattern) operandPatternNode() {}

type DereferencePattern struct {
	Far   bool
	Inner OperandPattern
	Size  int
}

func (DereferencePattern) operandPatternNode() {}

type IndexPattern struct {
	Far             bool
	Base, Subscript OperandPattern
	Scale           int
	Size            int
}

func (IndexPattern) operandPatternNode() {}

type BitIndexPattern struct{ Value, Subscript OperandPattern }

func (BitIndexPattern) operandPatternNode() {}

type UnaryPattern struct {
	Kind  string
	Inner OperandPattern
}

func (UnaryPattern) operandPatternNode() {}

type BinaryPattern struct {
	Kind        string
	Left, Right OperandPattern
}

func (BinaryPattern) operandPatternNode() {}

// IntegerRange matches any integer operand v with min<=v<=max.
type IntegerRange struct{ Min, Max int64 }

func (IntegerRange) operandPatternNode() {}

// IntegerAtLeast matches any integer operand v with v>=Min.
type IntegerAtLeast struct{ Min int64 }

func (IntegerAtLeast) operandPatternNode() {}

// Capture wraps a pattern so its matched operand (or sub-operand) is
// recorded by Extract.
type Capture struct{ Inner OperandPattern }

func (Capture) operandPatternNode() {}

// Matches reports whether pattern accepts operand (spec.md §4.E).
func Matches(p OperandPattern, o Operand) bool {
	switch pv := p.(type) {
	case Capture:
		return Matches(pv.Inner, o)
	case RegisterPattern:
		ov, ok := o.(RegisterOperand)
		return ok && ov.Reg == pv.Reg
	case IntegerPattern:
		ov, ok := o.(IntegerOperand)
		return ok && ov.Value == pv.Value
	case IntegerRange:
		ov, ok := o.(IntegerOperand)
		return ok && ov.Value >= pv.Min && ov.Value <= pv.Max
	case IntegerAtLeast:
		ov, ok := o.(IntegerOperand)
		return ok && ov.Value >= pv.Min
	case BooleanPattern:
		ov, ok := o.(BooleanOperand)
		return ok && ov.Value == pv.Value
	case DereferencePattern:
		ov, ok := o.(DereferenceOperand)
		return ok && ov.Far == pv.Far && ov.Size == pv.Size && Matches(pv.Inner, ov.Inner)
	case IndexPattern:
		ov, ok := o.(IndexOperand)
		if !ok || ov.Far != pv.Far || ov.Size != pv.Size || ov.Scale != pv.Scale {
			return false
		}
		if Matches(pv.Base, ov.Base) && Matches(pv.Subscript, ov.Subscript) {
			return true
		}
		// Commutativity of a[i] vs i[a] when the scale is 1.
		if pv.Scale == 1 && Matches(pv.Base, ov.Subscript) && Matches(pv.Subscript, ov.Base) {
			return true
		}
		return false
	case BitIndexPattern:
		ov, ok := o.(BitIndexOperand)
		return ok && Matches(pv.Value, ov.Value) && Matches(pv.Subscript, ov.Subscript)
	case UnaryPattern:
		ov, ok := o.(UnaryOperand)
		return ok && ov.Kind == pv.Kind && Matches(pv.Inner, ov.Inner)
	case BinaryPattern:
		ov, ok := o.(BinaryOperand)
		return ok && ov.Kind == pv.Kind && Matches(pv.Left, ov.Left) && Matches(pv.Right, ov.Right)
	default:
		return false
	}
}

// IsSubsetOf reports whether every concrete operand accepted by p is also
// accepted by other (spec.md §4.E).
func IsSubsetOf(p, other OperandPattern) bool {
	if cp, ok := p.(Capture); ok {
		return IsSubsetOf(cp.Inner, other)
	}
	if co, ok := other.(Capture); ok {
		return IsSubsetOf(p, co.Inner)
	}

	switch pv := p.(type) {
	case RegisterPattern:
		ov, ok := other.(RegisterPattern)
		return ok && ov.Reg == pv.Reg
	case BooleanPattern:
		ov, ok := other.(BooleanPattern)
		return ok && ov.Value == pv.Value
	case IntegerPattern:
		switch ov := other.(type) {
		case IntegerPattern:
			return ov.Value == pv.Value
		case IntegerRange:
			return ov.Min <= pv.Value && pv.Value <= ov.Max
		case IntegerAtLeast:
			return pv.Value >= ov.Min
		default:
			return false
		}
	case IntegerRange:
		switch ov := other.(type) {
		case IntegerRange:
			return ov.Min <= pv.Min && pv.Max <= ov.Max
		case IntegerAtLeast:
			return pv.Min >= ov.Min
		default:
			return false
		}
	case IntegerAtLeast:
		ov, ok := other.(IntegerAtLeast)
		return ok && pv.Min >= ov.Min
	case DereferencePattern:
		ov, ok := other.(DereferencePattern)
		return ok && pv.Far == ov.Far && pv.Size == ov.Size && IsSubsetOf(pv.Inner, ov.Inner)
	case IndexPattern:
		ov, ok := other.(IndexPattern)
		return ok && pv.Far == ov.Far && pv.Size == ov.Size && pv.Scale == ov.Scale &&
			IsSubsetOf(pv.Base, ov.Base) && IsSubsetOf(pv.Subscript, ov.Subscript)
	case BitIndexPattern:
		ov, ok := other.(BitIndexPattern)
		return ok && IsSubsetOf(pv.Value, ov.Value) && IsSubsetOf(pv.Subscript, ov.Subscript)
	case UnaryPattern:
		ov, ok := other.(UnaryPattern)
		return ok && pv.Kind == ov.Kind && IsSubsetOf(pv.Inner, ov.Inner)
	case BinaryPattern:
		ov, ok := other.(BinaryPattern)
		return ok && pv.Kind == ov.Kind && IsSubsetOf(pv.Left, ov.Left) && IsSubsetOf(pv.Right, ov.Right)
	default:
		return false
	}
}

// Extract matches pattern against operand and, on success, appends a
// pointer to the concrete operand (or sub-operand) bound to each Capture
// node, in left-to-right pattern order. For an Index pattern with scale 1
// matched via the commuted form, the captures are appended in the order
// corresponding to the commuted positions, which is observable and must be
// preserved (spec.md §4.E, §8 boundary behaviour).
func Extract(p OperandPattern, o Operand, captures *[]Operand) bool {
	switch pv := p.(type) {
	case Capture:
		if !Extract(pv.Inner, o, captures) {
			return false
		}
		*captures = append(*captures, o)
		return true
	case IndexPattern:
		ov, ok := o.(IndexOperand)
		if !ok || ov.Far != pv.Far || ov.Size != pv.Size || ov.Scale != pv.Scale {
			return false
		}
		if Matches(pv.Base, ov.Base) && Matches(pv.Subscript, ov.Subscript) {
			if !Extract(pv.Base, ov.Base, captures) {
				return false
			}
			return Extract(pv.Subscript, ov.Subscript, captures)
		}
		if pv.Scale == 1 && Matches(pv.Base, ov.Subscript) && Matches(pv.Subscript, ov.Base) {
			if !Extract(pv.Base, ov.Subscript, captures) {
				return false
			}
			return Extract(pv.Subscript, ov.Base, captures)
		}
		return false
	case DereferencePattern:
		ov, ok := o.(DereferenceOperand)
		if !ok || ov.Far != pv.Far || ov.Size != pv.Size {
			return false
		}
		return Extract(pv.Inner, ov.Inner, captures)
	case BitIndexPattern:
		ov, ok := o.(BitIndexOperand)
		if !ok {
			return false
		}
		if !Extract(pv.Value, ov.Value, captures) {
			return false
		}
		return Extract(pv.Subscript, ov.Subscript, captures)
	case UnaryPattern:
		ov, ok := o.(UnaryOperand)
		if !ok || ov.Kind != pv.Kind {
			return false
		}
		return Extract(pv.Inner, ov.Inner, captures)
	case BinaryPattern:
		ov, ok := o.(BinaryOperand)
		if !ok || ov.Kind != pv.Kind {
			return false
		}
		if !Extract(pv.Left, ov.Left, captures) {
			return false
		}
		return Extract(pv.Right, ov.Right, captures)
	default:
		return Matches(p, o)
	}
}

// CaptureCount returns the number of Capture nodes in p, used by tests that
// check spec.md §8 property 4 (`extract ⇒ len(captures) >= CaptureCount`).
func CaptureCount(p OperandPattern) int {
	n := 0
	if _, ok := p.(Capture); ok {
		n++
	}
	switch pv := p.(type) {
	case Capture:
		n += CaptureCount(pv.Inner)
	case DereferencePattern:
		n += CaptureCount(pv.Inner)
	case IndexPattern:
		n += CaptureCount(pv.Base) + CaptureCount(pv.Subscript)
	case BitIndexPattern:
		n += CaptureCount(pv.Value) + CaptureCount(pv.Subscript)
	case UnaryPattern:
		n += CaptureCount(pv.Inner)
	case BinaryPattern:
		n += CaptureCount(pv.Left) + CaptureCount(pv.Right)
	}
	return n
}
