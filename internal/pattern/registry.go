package pattern

import "errors"

// ErrEquivalentSignatures is returned by Registry.Insert when two
// instructions of the same type have signatures that are mutual subsets of
// each other (each accepts exactly the same operand lists as the other).
// spec.md §9 Open Question 1 resolves this as a hard registration-time
// error rather than a silent "last one wins" or "first one wins" rule,
// since either fallback would make instruction selection depend on backend
// registration order, which is hard to audit to a the instant it would
// pick an unintended variant.
var ErrEquivalentSignatures = errors.New("pattern: equivalent instruction signatures")

// ErrNoMatch is returned by Select when no registered instruction's
// signature accepts the given operand list.
var ErrNoMatch = errors.New("pattern: no instruction matches operands")

// ErrAmbiguousMatch is returned by Select when more than one maximally
// specific instruction matches the given operand list. This can only
// happen when two signatures overlap (both accept some shared operand
// list) without either being a subset of the other - e.g. IntegerRange(0,
// 10) and IntegerRange(5, 15) both accept 7. Insert's equivalence check
// cannot catch this case because neither signature is a subset of the
// other; it surfaces only when a concrete operand list actually falls in
// the overlap.
var ErrAmbiguousMatch = errors.New("pattern: ambiguous instruction match")

// Instruction is one catalogue entry: a semantic Type (the operation this
// instruction implements, e.g. "assign u8", a BinaryKind, or a specific
// intrinsic definition - any comparable value the backend chooses), the
// operand Signature it requires, and the Encoding that turns a match into
// bytes (spec.md §3 "Instruction").
type Instruction[K comparable] struct {
	Type      K
	Signature *Signature
	Encoding  *Encoding
	// Clobbers lists registers/flags this instruction overwrites as a side
	// effect beyond its stated operands, consulted by internal/compiler
	// when deciding whether a flag set by one statement is still live for
	// a following branch (the "test-and-branch fusion" oracle).
	Clobbers []Reg
}

type node[K comparable] struct {
	instr    *Instruction[K]
	parents  []*node[K]
	children []*node[K]
}

// Registry holds every Instruction registered for a backend, indexed by
// semantic type K, maintaining a specialization DAG per type: an edge from
// n to m means n's signature is a strict superset of m's, so m should be
// preferred whenever both match (spec.md §3 "InstructionRegistry", §4.E).
type Registry[K comparable] struct {
	nodes map[K][]*node[K]
}

// NewRegistry returns an empty Registry.
func NewRegistry[K comparable]() *Registry[K] {
	return &Registry[K]{nodes: make(map[K][]*node[K])}
}

// Insert adds instr to the registry, wiring it into the specialization DAG
// for its Type. It returns ErrEquivalentSignatures if an already-registered
// instruction of the same type accepts exactly the same operand lists.
func (r *Registry[K]) Insert(instr *Instruction[K]) error {
	existing := r.nodes[instr.Type]
	for _, n := range existing {
		if instr.Signature.IsSubsetOf(n.instr.Signature) && n.instr.Signature.IsSubsetOf(instr.Signature) {
			return ErrEquivalentSignatures
		}
	}
	nn := &node[K]{instr: instr}
	for _, n := range existing {
		switch {
		case instr.Signature.IsSubsetOf(n.instr.Signature):
			nn.parents = append(nn.parents, n)
			n.children = append(n.children, nn)
		case n.instr.Signature.IsSubsetOf(instr.Signature):
			n.parents = append(n.parents, nn)
			nn.children = append(nn.children, n)
		}
	}
	r.nodes[instr.Type] = append(existing, nn)
	return nil
}

// Select finds the most specific instruction of type key whose signature
// accepts operands, and returns it along with the captures its signature's
// Capture nodes bind (spec.md §4.E "selectInstruction"). Among every
// matching instruction, the one whose signature is a strict subset of all
// other matches' wins; if no single match dominates every other match,
// Select returns ErrAmbiguousMatch.
func (r *Registry[K]) Select(key K, operands []Operand) (*Instruction[K], []Operand, error) {
	var matched []*node[K]
	for _, n := range r.nodes[key] {
		if n.instr.Signature.Matches(operands) {
			matched = append(matched, n)
		}
	}
	if len(matched) == 0 {
		return nil, nil, ErrNoMatch
	}
	var best []*node[K]
	for _, m := range matched {
		dominated := false
		for _, other := range matched {
			if other == m {
				continue
			}
			if other.instr.Signature.IsSubsetOf(m.instr.Signature) && !m.instr.Signature.IsSubsetOf(other.instr.Signature) {
				dominated = true
				break
			}
		}
		if !dominated {
			best = append(best, m)
		}
	}
	if len(best) != 1 {
		return nil, nil, ErrAmbiguousMatch
	}
	caps, ok := best[0].instr.Signature.Extract(operands)
	if !ok {
		return nil, nil, ErrNoMatch
	}
	return best[0].instr, caps, nil
}

// All returns every instruction registered under key, in insertion order,
// for callers (tests, diagnostics) that need the raw catalogue rather than
// a single selection.
func (r *Registry[K]) All(key K) []*Instruction[K] {
	nodes := r.nodes[key]
	out := make([]*Instruction[K], len(nodes))
	for i, n := range nodes {
		out[i] = n.instr
	}
	return out
}

// Types returns every semantic type key that has at least one registered
// instruction.
func (r *Registry[K]) Types() []K {
	out := make([]K, 0, len(r.nodes))
	for k := range r.nodes {
		out = append(out, k)
	}
	return out
}
