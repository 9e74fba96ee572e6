package pattern

import "testing"

func regA() Reg { return Reg{Name: "a"} }
func regX() Reg { return Reg{Name: "x"} }

func TestMatchesRegisterExact(t *testing.T) {
	p := RegisterPattern{Reg: regA()}
	if !Matches(p, RegisterOperand{Reg: regA()}) {
		t.Fatalf("expected register pattern to match identical register")
	}
	if Matches(p, RegisterOperand{Reg: regX()}) {
		t.Fatalf("expected register pattern to reject a different register")
	}
}

func TestMatchesIntegerRange(t *testing.T) {
	p := IntegerRange{Min: 0, Max: 255}
	if !Matches(p, IntegerOperand{Value: 0}) || !Matches(p, IntegerOperand{Value: 255}) {
		t.Fatalf("expected range bounds to match inclusively")
	}
	if Matches(p, IntegerOperand{Value: 256}) {
		t.Fatalf("expected out-of-range value to be rejected")
	}
}

func TestIndexCommutesAtScaleOne(t *testing.T) {
	p := IndexPattern{
		Base:      Capture{Inner: RegisterPattern{Reg: regA()}},
		Subscript: Capture{Inner: IntegerRange{Min: 0, Max: 255}},
		Scale:     1,
		Size:      1,
	}
	// base and subscript swapped in the concrete operand.
	o := IndexOperand{
		Base:      IntegerOperand{Value: 10},
		Subscript: RegisterOperand{Reg: regA()},
		Scale:     1,
		Size:      1,
	}
	if !Matches(p, o) {
		t.Fatalf("expected scale-1 index to match commuted operands")
	}
	var caps []Operand
	if !Extract(p, o, &caps) {
		t.Fatalf("expected extract to succeed on commuted match")
	}
	if len(caps) != 2 {
		t.Fatalf("expected 2 captures, got %d", len(caps))
	}
	if _, ok := caps[0].(RegisterOperand); !ok {
		t.Fatalf("expected first capture (pattern's Base slot) to bind the register operand that matched it, got %#v", caps[0])
	}
	if iv, ok := caps[1].(IntegerOperand); !ok || iv.Value != 10 {
		t.Fatalf("expected second capture (pattern's Subscript slot) to bind the integer operand, got %#v", caps[1])
	}
}

func TestIndexDoesNotCommuteAtOtherScales(t *testing.T) {
	p := IndexPattern{
		Base:      RegisterPattern{Reg: regA()},
		Subscript: IntegerRange{Min: 0, Max: 255},
		Scale:     2,
		Size:      1,
	}
	o := IndexOperand{
		Base:      IntegerOperand{Value: 10},
		Subscript: RegisterOperand{Reg: regA()},
		Scale:     2,
		Size:      1,
	}
	if Matches(p, o) {
		t.Fatalf("expected scale-2 index to require exact operand order")
	}
}

func TestIsSubsetOfIntegerRanges(t *testing.T) {
	narrow := IntegerRange{Min: 0, Max: 10}
	wide := IntegerRange{Min: 0, Max: 255}
	if !IsSubsetOf(narrow, wide) {
		t.Fatalf("expected [0,10] to be a subset of [0,255]")
	}
	if IsSubsetOf(wide, narrow) {
		t.Fatalf("expected [0,255] not to be a subset of [0,10]")
	}
}

func TestRegistrySelectsMostSpecific(t *testing.T) {
	r := NewRegistry[string]()
	general := &Instruction[string]{
		Type:      "assign",
		Signature: &Signature{Operands: []OperandPattern{RegisterPattern{Reg: regA()}, IntegerRange{Min: 0, Max: 255}}},
		Encoding: &Encoding{
			ComputeSize: func(c []Operand) int { return 2 },
			WriteBytes:  func(c []Operand, out []byte) []byte { return append(out, 0xA9, byte(c[1].(IntegerOperand).Value)) },
		},
	}
	specific := &Instruction[string]{
		Type:      "assign",
		Signature: &Signature{Operands: []OperandPattern{RegisterPattern{Reg: regA()}, IntegerPattern{Value: 0}}},
		Encoding: &Encoding{
			ComputeSize: func(c []Operand) int { return 1 },
			WriteBytes:  func(c []Operand, out []byte) []byte { return append(out, 0x4A) },
		},
	}
	if err := r.Insert(general); err != nil {
		t.Fatalf("insert general: %v", err)
	}
	if err := r.Insert(specific); err != nil {
		t.Fatalf("insert specific: %v", err)
	}

	instr, _, err := r.Select("assign", []Operand{RegisterOperand{Reg: regA()}, IntegerOperand{Value: 0}})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if instr != specific {
		t.Fatalf("expected the more specific instruction to win when both match")
	}

	instr2, _, err := r.Select("assign", []Operand{RegisterOperand{Reg: regA()}, IntegerOperand{Value: 5}})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if instr2 != general {
		t.Fatalf("expected the general instruction to be chosen when the specific one doesn't match")
	}
}

func TestRegistryRejectsEquivalentSignatures(t *testing.T) {
	r := NewRegistry[string]()
	sig := func() *Signature {
		return &Signature{Operands: []OperandPattern{IntegerRange{Min: 0, Max: 10}}}
	}
	a := &Instruction[string]{Type: "op", Signature: sig(), Encoding: &Encoding{
		ComputeSize: func(c []Operand) int { return 1 },
		WriteBytes:  func(c []Operand, out []byte) []byte { return append(out, 0) },
	}}
	b := &Instruction[string]{Type: "op", Signature: sig(), Encoding: a.Encoding}
	if err := r.Insert(a); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := r.Insert(b); err != ErrEquivalentSignatures {
		t.Fatalf("expected ErrEquivalentSignatures, got %v", err)
	}
}

func TestRegistryNoMatch(t *testing.T) {
	r := NewRegistry[string]()
	if err := r.Insert(&Instruction[string]{
		Type:      "op",
		Signature: &Signature{Operands: []OperandPattern{RegisterPattern{Reg: regA()}}},
		Encoding: &Encoding{
			ComputeSize: func(c []Operand) int { return 1 },
			WriteBytes:  func(c []Operand, out []byte) []byte { return append(out, 0) },
		},
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, _, err := r.Select("op", []Operand{RegisterOperand{Reg: regX()}}); err != ErrNoMatch {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}
