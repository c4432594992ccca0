// Package parser implements the extensible, ambiguity-tolerant CFG parser:
// given the current parsestate.State, it produces a packed parse forest
// for a requested category at a position, exploring every rule
// derivation (spec §4.D).
package parser

import (
	"github.com/dragonhatcher/watson/internal/arena"
	"github.com/dragonhatcher/watson/internal/parsestate"
	"github.com/dragonhatcher/watson/internal/source"
)

// AtomKind mirrors parsestate.AtomKind but carries the matched token's
// content, not just its class.
type AtomKind = parsestate.AtomKind

// Atom is a single matched terminal token.
type Atom struct {
	Kind AtomKind
	Text string
	// FullSpan includes leading trivia (whitespace/comments); ContentSpan
	// does not (spec §4.D).
	FullSpan    source.Span
	ContentSpan source.Span
}

// Child is one part of a matched Possibility: either a terminal Atom or a
// reference to another forest Node (never a specific derivation of it —
// ambiguity within the child stays packed in the referenced Node).
type Child struct {
	IsAtom bool
	Atom   Atom
	Node   arena.Handle
}

// Possibility is one way a Node's span can be derived: the Rule used and
// its matched children, one per part.
type Possibility struct {
	Rule     parsestate.RuleID
	Children []Child
}

// Node is one entry of the packed parse forest: a span, a category, and
// every possibility that derives that category over that exact span.
type Node struct {
	Cat           parsestate.CatID
	Span          source.Span
	Possibilities []Possibility
}

// Forest holds every Node built during a parse run.
type Forest struct {
	arena *arena.Arena[Node]
}

func newForest() *Forest {
	return &Forest{arena: arena.New(func(a, b Node) bool { return false })}
}

// Node dereferences a forest handle.
func (f *Forest) Node(h arena.Handle) Node { return f.arena.Get(h) }

func (f *Forest) add(n Node) arena.Handle { return f.arena.Append(n) }

// AddReduced appends a new Node built from already-packed possibilities —
// used by package macro while rewriting the forest during
// reduce-to-builtin, which produces fresh packings rather than ones
// discovered by the parser's own memoized recursion.
func (f *Forest) AddReduced(cat parsestate.CatID, span source.Span, poss []Possibility) arena.Handle {
	return f.add(Node{Cat: cat, Span: span, Possibilities: poss})
}
