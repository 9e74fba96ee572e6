package sym

import "github.com/anvil-lang/anvil/internal/intern"

// Scope is one nesting level of the symbol table: a mapping from name to
// the set of definitions bound to it (spec.md §3 "SymbolTable") plus a
// parent pointer forming a tree. namespace/struct/enum/func/block/
// inline-for/for each introduce a child Scope (spec.md §4.C).
type Scope struct {
	Parent  *Scope
	Kind    string // "file", "namespace", "struct", "enum", "func", "block", "for", "builtin"
	members map[intern.String][]*Definition
	order   []intern.String
}

// NewScope returns an empty scope with the given parent (nil for the
// builtin scope, the outermost parent of the root file's scope per
// spec.md §4.C).
func NewScope(parent *Scope, kind string) *Scope {
	return &Scope{Parent: parent, Kind: kind, members: make(map[intern.String][]*Definition)}
}

// RedeclKind controls whether Declare treats a name collision as an error.
type RedeclKind int

const (
	// RedeclForbidden is the default: any existing binding is an error.
	RedeclForbidden RedeclKind = iota
	// RedeclExternVariant permits exactly one `extern` declaration plus
	// one defining declaration of the same var (spec.md §4.C).
	RedeclExternVariant
)

// Declare binds name to def in s. It reports ok=false if name is already
// bound in this scope and mode does not permit the collision (spec.md
// §4.C: "Redeclaration in the same scope is an error except where variants
// are explicitly permitted").
func (s *Scope) Declare(name intern.String, def *Definition, mode RedeclKind) (existing *Definition, ok bool) {
	prior := s.members[name]
	if len(prior) > 0 {
		if mode != RedeclExternVariant || len(prior) >= 2 {
			return prior[0], false
		}
	}
	if len(prior) == 0 {
		s.order = append(s.order, name)
	}
	s.members[name] = append(prior, def)
	return nil, true
}

// Lookup resolves name starting in s and walking up through Parent, as
// spec.md §4.C describes for unqualified names. It returns the innermost
// binding, or nil if none is found.
func (s *Scope) Lookup(name intern.String) *Definition {
	for cur := s; cur != nil; cur = cur.Parent {
		if defs, ok := cur.members[name]; ok && len(defs) > 0 {
			return defs[len(defs)-1]
		}
	}
	return nil
}

// LookupLocal resolves name only within s, without walking to Parent; used
// for qualified lookups through a namespace/struct/enum's member scope.
func (s *Scope) LookupLocal(name intern.String) *Definition {
	if defs, ok := s.members[name]; ok && len(defs) > 0 {
		return defs[len(defs)-1]
	}
	return nil
}

// Names returns every name declared directly in s, in declaration order.
func (s *Scope) Names() []intern.String {
	return s.order
}

// All returns every Definition declared directly in s, in declaration
// order, flattening any extern/definition pairs.
func (s *Scope) All() []*Definition {
	var out []*Definition
	for _, n := range s.order {
		out = append(out, s.members[n]...)
	}
	return out
}
