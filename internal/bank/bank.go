// Package bank implements spec.md component G: named memory banks with a
// kind, base address, capacity, byte buffer, and current position, plus
// the Address type used to track placement before and after layout.
package bank

import "fmt"

// Kind classifies what a bank holds.
type Kind int

const (
	// KindUninitializedRAM contributes no bytes to the output image but
	// does occupy address space (spec.md §6: "Banks of RAM kind
	// contribute no bytes but contribute to address maps.").
	KindUninitializedRAM Kind = iota
	KindInitializedRAM
	KindDataROM
	KindProgramROM
	KindCharacterROM
)

func (k Kind) String() string {
	switch k {
	case KindUninitializedRAM:
		return "ram"
	case KindInitializedRAM:
		return "initialized ram"
	case KindDataROM:
		return "rom data"
	case KindProgramROM:
		return "rom program"
	case KindCharacterROM:
		return "rom chr"
	default:
		return "bank"
	}
}

// ContributesBytes reports whether this bank kind is written to the output
// image (ROM kinds) as opposed to only reserving address space (RAM kinds).
func (k Kind) ContributesBytes() bool {
	return k == KindDataROM || k == KindProgramROM || k == KindCharacterROM
}

// Bank is one named memory region.
type Bank struct {
	Name     string
	Kind     Kind
	Base     *int64 // optional explicit base address
	Capacity int64

	buffer []byte
	pos    int64 // current relative position, monotonically non-decreasing

	// Placed records, in declaration order, every Address handed out by
	// Place, so the address-assignment pass (internal/compiler) can walk
	// a bank's contents in the order spec.md §4.H prescribes.
	Placed []*Address
}

// New returns an empty bank with the given capacity.
func New(name string, kind Kind, base *int64, capacity int64) *Bank {
	b := &Bank{Name: name, Kind: kind, Base: base, Capacity: capacity}
	if kind.ContributesBytes() {
		b.buffer = make([]byte, 0, capacity)
	}
	return b
}

// Address is a placement: an optional bank, an optional position relative
// to that bank, and an optional absolute position. All three may be nil
// mid-pass; layout resolves them (spec.md §3 "Address").
type Address struct {
	Bank     *Bank
	Relative *int64
	Absolute *int64
}

func i64(v int64) *int64 { return &v }

// Place reserves size bytes at the bank's current position and returns the
// Address describing that placement, advancing the position. It reports an
// error if doing so would exceed the bank's capacity (spec.md §7 "Layout:
// bank overflow").
func (b *Bank) Place(size int64) (*Address, error) {
	if b.pos+size > b.Capacity {
		return nil, fmt.Errorf("bank %q overflow: placing %d bytes at offset %d exceeds capacity %d", b.Name, size, b.pos, b.Capacity)
	}
	rel := b.pos
	a := &Address{Bank: b, Relative: i64(rel)}
	if b.Base != nil {
		a.Absolute = i64(*b.Base + rel)
	}
	b.pos += size
	b.Placed = append(b.Placed, a)
	return a, nil
}

// PlaceFixed reserves size bytes at an explicit relative offset (used for
// `var x @ addr`), reporting overlap against anything already placed at or
// after that offset within [offset, offset+size).
func (b *Bank) PlaceFixed(offset, size int64) (*Address, error) {
	if offset+size > b.Capacity {
		return nil, fmt.Errorf("bank %q overflow: fixed placement at %d of %d bytes exceeds capacity %d", b.Name, offset, size, b.Capacity)
	}
	for _, p := range b.Placed {
		if p.Relative == nil {
			continue
		}
		if overlaps(*p.Relative, placedSize(p), offset, size) {
			return nil, fmt.Errorf("bank %q: fixed address %d overlaps existing placement at %d", b.Name, offset, *p.Relative)
		}
	}
	a := &Address{Bank: b, Relative: i64(offset)}
	if b.Base != nil {
		a.Absolute = i64(*b.Base + offset)
	}
	if offset+size > b.pos {
		b.pos = offset + size
	}
	b.Placed = append(b.Placed, a)
	return a, nil
}

func placedSize(a *Address) int64 { return 1 } // conservative; callers track real sizes

func overlaps(aStart, aSize, bStart, bSize int64) bool {
	return aStart < bStart+bSize && bStart < aStart+aSize
}

// Position returns the bank's current relative write position.
func (b *Bank) Position() int64 { return b.pos }

// Reset rewinds a bank to empty, used between iterations of the address-
// assignment pass's short/long branch convergence loop (spec.md §8
// property 6): each iteration re-places every item from scratch with the
// previous iteration's resolved addresses available for distance decisions.
func (b *Bank) Reset() {
	b.pos = 0
	b.Placed = nil
	if b.Kind.ContributesBytes() {
		b.buffer = b.buffer[:0]
	}
}

// Write appends bytes at the bank's current position (component H's
// emission phase). It panics if called on a bank kind that contributes no
// bytes; callers must check ContributesBytes first.
func (b *Bank) Write(data []byte) {
	if !b.Kind.ContributesBytes() {
		panic("bank: Write on a non-byte-contributing bank kind")
	}
	b.buffer = append(b.buffer, data...)
}

// Bytes returns the bank's accumulated output bytes.
func (b *Bank) Bytes() []byte { return b.buffer }

// Resolve fills in a's Absolute field once its Bank has a known Base,
// called by layout once every bank's base address is fixed.
func (a *Address) Resolve() bool {
	if a.Absolute != nil {
		return true
	}
	if a.Bank == nil || a.Bank.Base == nil || a.Relative == nil {
		return false
	}
	a.Absolute = i64(*a.Bank.Base + *a.Relative)
	return true
}
