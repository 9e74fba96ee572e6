package int128

import "testing"

// TestArithmeticIdentities checks spec.md §8 property 5.
func TestArithmeticIdentities(t *testing.T) {
	a := FromInt64(123456789)
	b := FromInt64(987)

	sum, ok := Add(a, b)
	if !ok {
		t.Fatalf("a+b overflowed unexpectedly")
	}
	back, ok := Sub(sum, b)
	if !ok || Cmp(back, a) != 0 {
		t.Fatalf("(a+b)-b != a")
	}

	prod, ok := Mul(a, b)
	if !ok {
		t.Fatalf("a*b overflowed unexpectedly")
	}
	quot, ok := Div(prod, b)
	if !ok || Cmp(quot, a) != 0 {
		t.Fatalf("(a*b)/b != a")
	}

	q, ok1 := Div(a, b)
	r, ok2 := Mod(a, b)
	if !ok1 || !ok2 {
		t.Fatalf("div/mod failed unexpectedly")
	}
	recombined, _ := Add(func() Value { v, _ := Mul(q, b); return v }(), r)
	if Cmp(recombined, a) != 0 {
		t.Fatalf("a/b*b + a%%b != a")
	}
}

func TestShiftEquivalence(t *testing.T) {
	a := FromInt64(7)
	shifted, ok := Shl(a, 4)
	if !ok {
		t.Fatalf("shift overflowed unexpectedly")
	}
	mult, ok := Mul(a, FromInt64(16))
	if !ok || Cmp(shifted, mult) != 0 {
		t.Fatalf("a<<4 != a*16")
	}
}

func TestOverflowDetected(t *testing.T) {
	maxI128, ok := FromBig(maxValue)
	if !ok {
		t.Fatalf("maxValue should fit")
	}
	if _, ok := Add(maxI128, FromInt64(1)); ok {
		t.Fatalf("expected overflow adding 1 to MaxInt128")
	}
}

func TestDivideByZero(t *testing.T) {
	if _, ok := Div(FromInt64(1), FromInt64(0)); ok {
		t.Fatalf("expected division by zero to fail")
	}
	if _, ok := Mod(FromInt64(1), FromInt64(0)); ok {
		t.Fatalf("expected modulo by zero to fail")
	}
}
