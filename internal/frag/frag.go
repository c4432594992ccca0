// Package frag implements the hash-consed formal-term algebra the proof
// kernel relies on: fragments with de Bruijn bound variables, hole
// indices for macro/template substitution, and structural sharing via
// interning (spec §4.I).
package frag

import (
	"github.com/dragonhatcher/watson/internal/arena"
	"github.com/dragonhatcher/watson/internal/syntax"
)

// Handle is an interned Fragment reference.
type Handle = arena.Handle

// HeadKind discriminates a Fragment's head, per the data model.
type HeadKind int

const (
	HeadRuleApplication HeadKind = iota
	HeadVar
	HeadVarHole
	HeadHole
	HeadTemplateRef
)

// Frag is one hash-consed node. Every node carries the three flags
// (HasHole, HasVarHole, HasTemplate) computed once at construction and
// never mutated afterward (testable property 3).
type Frag struct {
	Cat         syntax.FCatID
	Head        HeadKind
	Rule        syntax.FRuleID // meaningful for HeadRuleApplication
	Index       int            // deBruijn n / hole index / template index
	Children    []Handle       // rule-application children, or template args
	HasHole     bool
	HasVarHole  bool
	HasTemplate bool
}

// Store is the interning arena plus the FRule binder-arity lookups needed
// to track enclosing-binder counts while traversing fragments.
type Store struct {
	arena *arena.Arena[Frag]
	rules *syntax.Registry
}

// NewStore builds an empty Store over rules's Formal-Syntax Rules.
func NewStore(rules *syntax.Registry) *Store {
	eq := func(a, b Frag) bool {
		if a.Cat != b.Cat || a.Head != b.Head || a.Rule != b.Rule || a.Index != b.Index {
			return false
		}
		if len(a.Children) != len(b.Children) {
			return false
		}
		for i := range a.Children {
			if a.Children[i] != b.Children[i] {
				return false
			}
		}
		return true
	}
	return &Store{arena: arena.New(eq), rules: rules}
}

// Get dereferences a Handle.
func (s *Store) Get(h Handle) Frag { return s.arena.Get(h) }

func fingerprint(f Frag) arena.Fingerprint {
	e := arena.NewEncoder().Byte(byte(f.Head)).Int(int(f.Cat)).Int(int(f.Rule)).Int(f.Index).Int(len(f.Children))
	for _, c := range f.Children {
		e.Handle(c)
	}
	return arena.Sum(e.Bytes())
}

func (s *Store) intern(cat syntax.FCatID, head HeadKind, rule syntax.FRuleID, index int, children []Handle) Handle {
	hasHole := head == HeadHole
	hasVarHole := head == HeadVarHole
	hasTemplate := head == HeadTemplateRef
	for _, c := range children {
		cf := s.Get(c)
		hasHole = hasHole || cf.HasHole
		hasVarHole = hasVarHole || cf.HasVarHole
		hasTemplate = hasTemplate || cf.HasTemplate
	}
	kids := append([]Handle{}, children...)
	f := Frag{Cat: cat, Head: head, Rule: rule, Index: index, Children: kids, HasHole: hasHole, HasVarHole: hasVarHole, HasTemplate: hasTemplate}
	return s.arena.Intern(fingerprint(f), f)
}

// RuleApplication interns a RuleApplication(rule) node. children must
// satisfy invariant 1: one per category-child position of rule, each of
// the expected category.
func (s *Store) RuleApplication(cat syntax.FCatID, rule syntax.FRuleID, children []Handle) Handle {
	return s.intern(cat, HeadRuleApplication, rule, 0, children)
}

// Var interns a reference to the n-th enclosing binder.
func (s *Store) Var(cat syntax.FCatID, n int) Handle {
	return s.intern(cat, HeadVar, 0, n, nil)
}

// VarHole interns a placeholder for a free binder injected by a template.
func (s *Store) VarHole(cat syntax.FCatID, index int) Handle {
	return s.intern(cat, HeadVarHole, 0, index, nil)
}

// Hole interns a placeholder filled by template instantiation or macro
// capture.
func (s *Store) Hole(cat syntax.FCatID, index int) Handle {
	return s.intern(cat, HeadHole, 0, index, nil)
}

// TemplateRef interns a reference to theorem-level template i with args.
func (s *Store) TemplateRef(cat syntax.FCatID, index int, args []Handle) Handle {
	return s.intern(cat, HeadTemplateRef, 0, index, args)
}

// SubstituteTemplates computes frag[t_0...t_{n-1}]: every TemplateRef(i,
// args) is replaced by t_i with its holes filled by the (recursively
// substituted) args. Returns frag unchanged, by handle, when
// !frag.HasTemplate (spec §4.I).
func (s *Store) SubstituteTemplates(h Handle, templates []Handle) Handle {
	f := s.Get(h)
	if !f.HasTemplate {
		return h
	}
	if f.Head == HeadTemplateRef {
		args := make([]Handle, len(f.Children))
		for i, c := range f.Children {
			args[i] = s.SubstituteTemplates(c, templates)
		}
		return s.FillHoles(templates[f.Index], args)
	}
	newChildren := make([]Handle, len(f.Children))
	changed := false
	for i, c := range f.Children {
		nc := s.SubstituteTemplates(c, templates)
		newChildren[i] = nc
		if nc != c {
			changed = true
		}
	}
	if !changed {
		return h
	}
	return s.intern(f.Cat, f.Head, f.Rule, f.Index, newChildren)
}

// FillHoles computes frag{c_0...c_{m-1}}: every Hole(i) is replaced by
// c_i, de-Bruijn-shifted by however many binders enclose that Hole's
// position within frag — a filler is built relative to the context where
// it was supplied, so planting it under frag's own binders must push any
// free Var it carries out past them to keep referring to what it did
// before (spec §4.I, "de Bruijn shift... used when a template fills
// under binders in the target context"). Traverses only when
// frag.HasHole.
func (s *Store) FillHoles(h Handle, fillers []Handle) Handle {
	return s.fillHoles(h, fillers, 0)
}

func (s *Store) fillHoles(h Handle, fillers []Handle, depth int) Handle {
	f := s.Get(h)
	if !f.HasHole {
		return h
	}
	if f.Head == HeadHole {
		if depth == 0 {
			return fillers[f.Index]
		}
		return s.ShiftVars(fillers[f.Index], depth, 0)
	}
	newChildren := make([]Handle, len(f.Children))
	changed := false
	for i, c := range f.Children {
		childDepth := depth
		if f.Head == HeadRuleApplication {
			childDepth += s.childCutoffDelta(f.Rule, i)
		}
		nc := s.fillHoles(c, fillers, childDepth)
		newChildren[i] = nc
		if nc != c {
			changed = true
		}
	}
	if !changed {
		return h
	}
	return s.intern(f.Cat, f.Head, f.Rule, f.Index, newChildren)
}

// childCutoffDelta returns how many additional binders enclose child i of
// a RuleApplication of rule.
func (s *Store) childCutoffDelta(rule syntax.FRuleID, childPos int) int {
	r := s.rules.Rule(rule)
	idx := r.ChildIndices()
	if childPos < 0 || childPos >= len(idx) {
		return 0
	}
	return r.ChildBinderCount(idx[childPos])
}

// ShiftVars adds k to every Var(n) with n >= cutoff, threading the cutoff
// up by each RuleApplication child's binder arity as it descends — used
// when a template fills under binders in the target context (spec §4.I).
func (s *Store) ShiftVars(h Handle, k, cutoff int) Handle {
	f := s.Get(h)
	switch f.Head {
	case HeadVar:
		if f.Index < cutoff {
			return h
		}
		return s.intern(f.Cat, HeadVar, 0, f.Index+k, nil)
	case HeadRuleApplication:
		newChildren := make([]Handle, len(f.Children))
		changed := false
		for i, c := range f.Children {
			nc := s.ShiftVars(c, k, cutoff+s.childCutoffDelta(f.Rule, i))
			newChildren[i] = nc
			if nc != c {
				changed = true
			}
		}
		if !changed {
			return h
		}
		return s.intern(f.Cat, f.Head, f.Rule, f.Index, newChildren)
	default:
		if len(f.Children) == 0 {
			return h
		}
		newChildren := make([]Handle, len(f.Children))
		changed := false
		for i, c := range f.Children {
			nc := s.ShiftVars(c, k, cutoff)
			newChildren[i] = nc
			if nc != c {
				changed = true
			}
		}
		if !changed {
			return h
		}
		return s.intern(f.Cat, f.Head, f.Rule, f.Index, newChildren)
	}
}

// IsClosed walks h with an enclosing-binder counter and reports whether no
// free Var or VarHole surfaces at the root (data model invariant 2,
// glossary "Safe fragment").
func (s *Store) IsClosed(h Handle) bool {
	return s.closed(h, 0)
}

func (s *Store) closed(h Handle, enclosing int) bool {
	f := s.Get(h)
	switch f.Head {
	case HeadVar:
		return f.Index < enclosing
	case HeadVarHole:
		return false
	case HeadRuleApplication:
		for i, c := range f.Children {
			if !s.closed(c, enclosing+s.childCutoffDelta(f.Rule, i)) {
				return false
			}
		}
		return true
	default:
		for _, c := range f.Children {
			if !s.closed(c, enclosing) {
				return false
			}
		}
		return true
	}
}
