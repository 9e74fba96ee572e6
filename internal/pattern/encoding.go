package pattern

// Encoding is the pure-function pair that turns a matched operand capture
// list into machine bytes (spec.md §3 "InstructionEncoding"): ComputeSize
// must agree with len(WriteBytes(captures)) for every captures list
// Signature.Extract can produce, which internal/compiler's two-pass address
// assignment relies on (size-only pass, then emission pass).
type Encoding struct {
	// ComputeSize returns the number of bytes WriteBytes will emit for the
	// given captures, without allocating them. Backends call this during
	// the size-only convergence pass (spec.md §4.H) before every operand's
	// final address is known, so it must not require resolved addresses it
	// doesn't have yet - callers pass placeholder values (see
	// internal/platform's Backend.PlaceholderValue) for not-yet-resolved
	// integer captures.
	ComputeSize func(captures []Operand) int

	// WriteBytes appends the instruction's encoded bytes to out and
	// returns the result.
	WriteBytes func(captures []Operand, out []byte) []byte
}

// Size is a convenience wrapper that returns ComputeSize(captures); it does
// not call WriteBytes or check the pairing invariant.
func (e Encoding) Size(captures []Operand) int {
	return e.ComputeSize(captures)
}
