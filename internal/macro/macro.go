// Package macro implements tree-to-tree rewrite rules over the parse
// forest: registration mirrors a macro as a parser rule, and
// Reduce-to-builtin expands every macro possibility in a forest node
// until only non-macro possibilities remain (spec §4.G).
package macro

import (
	"fmt"

	"github.com/dragonhatcher/watson/internal/arena"
	"github.com/dragonhatcher/watson/internal/parser"
	"github.com/dragonhatcher/watson/internal/parsestate"
)

// PartKind discriminates a macro pattern's parts.
type PartKind int

const (
	PartLiteral PartKind = iota
	PartKeyword
	PartSub
	// PartBinding is a named capture, `$x: kind`.
	PartBinding
)

// Part is one element of a macro's pattern.
type Part struct {
	Kind PartKind
	Text string // literal/keyword spelling
	Cat  parsestate.CatID
	Bind string // capture name, for PartBinding
}

// ReplPart is one node of a macro's replacement template: either a
// concrete rule application (with children built recursively) or a
// reference to a captured binding.
type ReplPart struct {
	IsBindingRef bool
	Bind         string // for a binding reference

	// For a concrete node:
	Rule     parsestate.RuleID
	Cat      parsestate.CatID
	Children []ReplPart
}

// MacroID identifies a registered macro.
type MacroID int

// Macro is (name, output category, pattern, replacement template), spec
// §4.G.
type Macro struct {
	ID          MacroID
	Name        string
	OutputCat   parsestate.CatID
	Pattern     []Part
	Replacement ReplPart
	ParseRule   parsestate.RuleID
}

// Registry holds declared macros, keyed by the parser rule registration
// mirrors them as (so the Expander can recognize a macro possibility while
// walking the forest).
type Registry struct {
	ps      *parsestate.State
	byRule  map[parsestate.RuleID]Macro
	byName  map[string]MacroID
	ordered []Macro
}

// NewRegistry builds an empty macro Registry over ps.
func NewRegistry(ps *parsestate.State) *Registry {
	return &Registry{ps: ps, byRule: make(map[parsestate.RuleID]Macro), byName: make(map[string]MacroID)}
}

// ErrDuplicateMacro is returned for a macro name already declared.
type ErrDuplicateMacro struct{ Name string }

func (e *ErrDuplicateMacro) Error() string { return fmt.Sprintf("macro %q already declared", e.Name) }

// Declare registers a macro: its pattern becomes a parser rule (source =
// macro) on OutputCat, so the parser naturally produces derivations using
// it alongside non-macro derivations (spec §4.G "Registration").
func (r *Registry) Declare(name string, outputCat parsestate.CatID, pattern []Part, repl ReplPart) (MacroID, error) {
	if _, ok := r.byName[name]; ok {
		return 0, &ErrDuplicateMacro{Name: name}
	}
	pparts := make([]parsestate.Part, 0, len(pattern))
	for _, p := range pattern {
		switch p.Kind {
		case PartLiteral:
			pparts = append(pparts, parsestate.Part{Kind: parsestate.PartLiteral, Text: p.Text})
		case PartKeyword:
			pparts = append(pparts, parsestate.Part{Kind: parsestate.PartKeyword, Text: p.Text})
		case PartSub, PartBinding:
			pparts = append(pparts, parsestate.Part{Kind: parsestate.PartCatRef, Cat: p.Cat})
		}
	}
	ruleID := r.ps.AddRule(outputCat, name, pparts, 0, parsestate.AssocNone, parsestate.SourceMacro)

	id := MacroID(len(r.ordered))
	m := Macro{ID: id, Name: name, OutputCat: outputCat, Pattern: pattern, Replacement: repl, ParseRule: ruleID}
	r.ordered = append(r.ordered, m)
	r.byName[name] = id
	r.byRule[ruleID] = m
	return id, nil
}

// ByName looks up a declared macro.
func (r *Registry) ByName(name string) (MacroID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Macro dereferences a MacroID.
func (r *Registry) Macro(id MacroID) Macro { return r.ordered[id] }

// ErrDivergence reports macro-expansion non-termination (spec §4.G,
// testable property 8): a macro's replacement re-derives its own pattern
// through the same binding.
type ErrDivergence struct{ Node arena.Handle }

func (e *ErrDivergence) Error() string { return "infinite macro recursion" }

// ErrAmbiguousReplacement reports that every possibility of a macro's
// replacement (or of the node being reduced) was pruned — spec §4.G
// "Disambiguating a macro's replacement".
type ErrAmbiguousReplacement struct{ Node arena.Handle }

func (e *ErrAmbiguousReplacement) Error() string {
	return "ambiguous macro replacement: no possibility survives category checking"
}

// ErrUndefinedBinding reports a replacement binding reference with no
// matching capture.
type ErrUndefinedBinding struct{ Name string }

func (e *ErrUndefinedBinding) Error() string { return fmt.Sprintf("undefined macro binding %q", e.Name) }

type capture struct {
	node arena.Handle
	cat  parsestate.CatID
}

// Expander runs Reduce-to-builtin over a Forest built against ps.
type Expander struct {
	ps         *parsestate.State
	forest     *parser.Forest
	macros     map[parsestate.RuleID]Macro
	memo       map[arena.Handle]arena.Handle
	inProgress map[arena.Handle]bool
}

// NewExpander builds an Expander for forest, recognizing macros from reg.
func NewExpander(ps *parsestate.State, forest *parser.Forest, reg *Registry) *Expander {
	return &Expander{
		ps:         ps,
		forest:     forest,
		macros:     reg.byRule,
		memo:       make(map[arena.Handle]arena.Handle),
		inProgress: make(map[arena.Handle]bool),
	}
}

// Reduce expands h until every possibility of the result is non-macro,
// fix-point-iterating through nested macro uses (spec §4.G).
func (ex *Expander) Reduce(h arena.Handle) (arena.Handle, error) {
	if v, ok := ex.memo[h]; ok {
		return v, nil
	}
	if ex.inProgress[h] {
		return arena.Invalid, &ErrDivergence{Node: h}
	}
	ex.inProgress[h] = true
	defer delete(ex.inProgress, h)

	node := ex.forest.Node(h)
	var newPoss []parser.Possibility

	for _, poss := range node.Possibilities {
		reducedChildren := make([]parser.Child, len(poss.Children))
		ok := true
		for i, c := range poss.Children {
			if c.IsAtom {
				reducedChildren[i] = c
				continue
			}
			rc, err := ex.Reduce(c.Node)
			if err != nil {
				return arena.Invalid, err
			}
			reducedChildren[i] = parser.Child{Node: rc}
		}
		if !ok {
			continue
		}

		if m, isMacro := ex.macros[poss.Rule]; isMacro {
			bindings := map[string]capture{}
			for i, p := range m.Pattern {
				if p.Kind == PartBinding {
					bindings[p.Bind] = capture{node: reducedChildren[i].Node, cat: p.Cat}
				}
			}
			substituted, err := ex.substitute(m.Replacement, bindings, m.OutputCat)
			if err != nil {
				// This possibility is pruned, not a hard failure, unless
				// it is the only one (checked after the loop).
				continue
			}
			rc, err := ex.Reduce(substituted)
			if err != nil {
				return arena.Invalid, err
			}
			newPoss = append(newPoss, ex.forest.Node(rc).Possibilities...)
			continue
		}

		newPoss = append(newPoss, parser.Possibility{Rule: poss.Rule, Children: reducedChildren})
	}

	if len(newPoss) == 0 {
		return arena.Invalid, &ErrAmbiguousReplacement{Node: h}
	}
	out := ex.forest.AddReduced(node.Cat, node.Span, newPoss)
	ex.memo[h] = out
	return out, nil
}

// substitute builds the forest subtree for a replacement template,
// swapping binding references for their captured forest nodes. expectCat
// is the category the template position must produce; a binding reference
// whose capture's category does not match is inadmissible and the call
// fails so the caller can prune that possibility (spec §4.G
// "Disambiguating a macro's replacement").
func (ex *Expander) substitute(t ReplPart, bindings map[string]capture, expectCat parsestate.CatID) (arena.Handle, error) {
	if t.IsBindingRef {
		c, ok := bindings[t.Bind]
		if !ok {
			return arena.Invalid, &ErrUndefinedBinding{Name: t.Bind}
		}
		if c.cat != expectCat {
			return arena.Invalid, &ErrAmbiguousReplacement{}
		}
		return c.node, nil
	}
	rule := ex.ps.Rule(t.Rule)
	children := make([]parser.Child, 0, len(rule.Parts))
	ci := 0
	for _, p := range rule.Parts {
		if p.Kind != parsestate.PartCatRef {
			children = append(children, parser.Child{IsAtom: true, Atom: parser.Atom{Kind: atomKindFor(p.Kind), Text: p.Text}})
			continue
		}
		if ci >= len(t.Children) {
			return arena.Invalid, &ErrAmbiguousReplacement{}
		}
		sub := t.Children[ci]
		ci++
		h, err := ex.substitute(sub, bindings, p.Cat)
		if err != nil {
			return arena.Invalid, err
		}
		children = append(children, parser.Child{Node: h})
	}
	return ex.forest.AddReduced(rule.Cat, parser.Node{}.Span, []parser.Possibility{{Rule: t.Rule, Children: children}}), nil
}

func atomKindFor(pk parsestate.PartKind) parsestate.AtomKind {
	switch pk {
	case parsestate.PartLiteral:
		return parsestate.AtomLiteral
	case parsestate.PartKeyword:
		return parsestate.AtomKeyword
	case parsestate.PartName:
		return parsestate.AtomName
	case parsestate.PartNumber:
		return parsestate.AtomNumber
	case parsestate.PartString:
		return parsestate.AtomString
	}
	return parsestate.AtomName
}
