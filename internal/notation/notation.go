// Package notation holds named surface-syntax patterns bound to formal
// categories, and the lexically-scoped Scope the elaborator threads
// through fragment parsing (spec §4, data model "Notation"/"Scope").
package notation

import (
	"fmt"
	"strings"

	"github.com/dragonhatcher/watson/internal/frag"
	"github.com/dragonhatcher/watson/internal/parsestate"
	"github.com/dragonhatcher/watson/internal/syntax"
)

// PartKind discriminates a Notation's pattern parts.
type PartKind int

const (
	PartLiteral PartKind = iota
	PartKeyword
	PartNameHole
	PartChild
	PartBinder
)

// Part is one element of a Notation pattern.
type Part struct {
	Kind PartKind
	Text string        // literal/keyword spelling
	Cat  syntax.FCatID // expected category, for PartChild
	// Args names the indices (within the owning Notation's Parts) of the
	// PartBinder positions this PartChild sees, per spec's "arguments
	// name the binding positions this child sees".
	Args []int
}

// NotationID identifies a registered Notation.
type NotationID int

// Signature is a Notation's output category plus the category of each
// PartChild hole, in order — used for type-compatibility checks when
// macros or templates reuse a notation's shape.
type Signature struct {
	OutputCat syntax.FCatID
	HoleCats  []syntax.FCatID
}

// Notation is a named pattern producing a presentation of a formal term.
type Notation struct {
	ID        NotationID
	Name      string
	OutputCat syntax.FCatID
	Parts     []Part
	Prec      int
	Assoc     parsestate.Assoc
	Signature Signature
	ParseRule parsestate.RuleID
}

// nameHoleCount returns how many PartNameHole/PartBinder positions (the
// "name-hole count" of invariant 4) a Notation's pattern declares.
func (n Notation) nameHoleCount() int {
	c := 0
	for _, p := range n.Parts {
		if p.Kind == PartNameHole || p.Kind == PartBinder {
			c++
		}
	}
	return c
}

// Registry holds every declared Notation.
type Registry struct {
	syn       *syntax.Registry
	notations []Notation
	byName    map[string]NotationID
	byRule    map[parsestate.RuleID]NotationID
}

// NewRegistry builds an empty notation Registry over syn.
func NewRegistry(syn *syntax.Registry) *Registry {
	return &Registry{syn: syn, byName: make(map[string]NotationID), byRule: make(map[parsestate.RuleID]NotationID)}
}

// ErrDuplicateNotation is returned for a notation name already declared.
type ErrDuplicateNotation struct{ Name string }

func (e *ErrDuplicateNotation) Error() string { return fmt.Sprintf("notation %q already declared", e.Name) }

// Declare registers a Notation and derives/registers the parser rules for
// the fragment (spec §4.H `notation` dispatch). Binders in notations
// produce parse rules accepting a Name in place of a sub-fragment at
// PartBinder positions.
func (r *Registry) Declare(name string, outputCat syntax.FCatID, parts []Part, prec int, assoc parsestate.Assoc) (NotationID, error) {
	if _, ok := r.byName[name]; ok {
		return 0, &ErrDuplicateNotation{Name: name}
	}
	ps := r.syn.ParseState()
	outCat := r.syn.Category(outputCat)

	pparts := make([]parsestate.Part, 0, len(parts))
	fparts := make([]syntax.FPart, 0, len(parts))
	var holeCats []syntax.FCatID
	for _, p := range parts {
		switch p.Kind {
		case PartLiteral:
			pparts = append(pparts, parsestate.Part{Kind: parsestate.PartLiteral, Text: p.Text})
			fparts = append(fparts, syntax.FPart{Kind: syntax.FPartLiteral, Literal: p.Text})
		case PartKeyword:
			pparts = append(pparts, parsestate.Part{Kind: parsestate.PartKeyword, Text: p.Text})
			fparts = append(fparts, syntax.FPart{Kind: syntax.FPartLiteral, Literal: p.Text})
		case PartNameHole, PartBinder:
			pparts = append(pparts, parsestate.Part{Kind: parsestate.PartName})
			fparts = append(fparts, syntax.FPart{Kind: syntax.FPartBinder, BinderName: p.Text})
		case PartChild:
			pparts = append(pparts, parsestate.Part{Kind: parsestate.PartCatRef, Cat: r.syn.Category(p.Cat).ParseCat})
			fparts = append(fparts, syntax.FPart{Kind: syntax.FPartChild, Cat: p.Cat})
			holeCats = append(holeCats, p.Cat)
		}
	}
	ruleID := ps.AddRule(outCat.ParseCat, name, pparts, prec, assoc, parsestate.SourceNotation)
	r.syn.DeclareShadowRule(outputCat, fparts, ruleID)

	id := NotationID(len(r.notations))
	n := Notation{
		ID: id, Name: name, OutputCat: outputCat, Parts: parts, Prec: prec, Assoc: assoc,
		Signature: Signature{OutputCat: outputCat, HoleCats: holeCats},
		ParseRule: ruleID,
	}
	r.notations = append(r.notations, n)
	r.byName[name] = id
	r.byRule[ruleID] = id
	return id, nil
}

// ByName looks up a declared Notation.
func (r *Registry) ByName(name string) (NotationID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Notation dereferences a NotationID.
func (r *Registry) Notation(id NotationID) Notation { return r.notations[id] }

// NotationFor reports which Notation a mirrored parsestate.RuleID
// corresponds to, if ruleID was produced by Declare.
func (r *Registry) NotationFor(ruleID parsestate.RuleID) (NotationID, bool) {
	id, ok := r.byRule[ruleID]
	return id, ok
}

// Binding is the result of instantiating a notation's name-holes: a
// pattern identifier plus an ordered list of names, interned as a scope
// key (data model "Notation Binding").
type Binding struct {
	Notation NotationID
	Names    []string
}

// ErrBadBinding reports invariant 4's violation: a binding's name count
// must equal its notation's name-hole count.
type ErrBadBinding struct {
	Notation string
	Want     int
	Got      int
}

func (e *ErrBadBinding) Error() string {
	return fmt.Sprintf("notation %q expects %d bound name(s), got %d", e.Notation, e.Want, e.Got)
}

// NewBinding validates and builds a Binding for notation id with names.
func (r *Registry) NewBinding(id NotationID, names []string) (Binding, error) {
	n := r.notations[id]
	if want := n.nameHoleCount(); want != len(names) {
		return Binding{}, &ErrBadBinding{Notation: n.Name, Want: want, Got: len(names)}
	}
	return Binding{Notation: id, Names: append([]string{}, names...)}, nil
}

// Key returns a stable, comparable representation of a Binding, used as
// the Scope's map key.
func (b Binding) Key() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", b.Notation)
	for _, n := range b.Names {
		sb.WriteByte(0)
		sb.WriteString(n)
	}
	return sb.String()
}

// Entry is one Scope slot: either a resolved Fragment or a hole reference
// awaiting template instantiation.
type Entry struct {
	IsHole    bool
	Frag      frag.Handle
	HoleIndex int
}

// Scope is a persistent map from Binding key to a stack of Entries (most
// recent shadows earlier ones), passed immutably down the elaborator
// (spec data model "Scope").
type Scope struct {
	parent *Scope
	key    string
	entry  Entry
}

// Empty is the scope with no bindings.
var Empty *Scope

// Push returns a new Scope extending s with key -> entry, shadowing any
// earlier entry for the same key. s itself is unmodified, so callers that
// keep a reference to s see the binding disappear once they stop using the
// child scope — the persistence the elaborator's recursion relies on.
func (s *Scope) Push(key string, entry Entry) *Scope {
	return &Scope{parent: s, key: key, entry: entry}
}

// Lookup finds the most recently pushed entry for key, if any.
func (s *Scope) Lookup(key string) (Entry, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if cur.key == key {
			return cur.entry, true
		}
	}
	return Entry{}, false
}
