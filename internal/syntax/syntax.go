// Package syntax holds user-declared Formal-Syntax Categories and their
// production Rules — the object language's own grammar, as opposed to the
// meta-grammar parsestate/parser operate over (spec §4, data model "Rule").
package syntax

import (
	"fmt"

	"github.com/dragonhatcher/watson/internal/parsestate"
)

// FCatID identifies a Formal-Syntax Category.
type FCatID int

// FCat is a user-declared category, or the built-in `sentence`.
type FCat struct {
	ID       FCatID
	Name     string
	Builtin  bool
	ParseCat parsestate.CatID // the induced parser Category
}

// FPartKind discriminates a Formal-Syntax Rule's parts.
type FPartKind int

const (
	// FPartChild is a subterm of a named category.
	FPartChild FPartKind = iota
	// FPartBinder introduces a bound name visible to later FPartChild and
	// FPartVar parts in the same rule.
	FPartBinder
	// FPartVar is an occurrence of a name bound by an earlier FPartBinder
	// in the same rule.
	FPartVar
	// FPartLiteral is fixed concrete syntax carried by the rule (mirrored
	// into the induced parser rule, but contributing no fragment child).
	FPartLiteral
)

// FPart is one element of a Formal-Syntax Rule's pattern.
type FPart struct {
	Kind FPartKind
	// Cat is the expected category for FPartChild.
	Cat FCatID
	// BinderName is the declared name for FPartBinder, used only for
	// error messages and the notation-binding machinery in package notation.
	BinderName string
	// RefersTo is the index (within Parts) of the FPartBinder this
	// FPartVar occurrence refers back to.
	RefersTo int
	// Literal is the fixed spelling for FPartLiteral.
	Literal string
}

// FRule is a named, category-typed production over the formal syntax.
type FRule struct {
	ID    FRuleID
	Name  string
	Cat   FCatID
	Parts []FPart
	Prec  int
	Assoc parsestate.Assoc
	// ParseRule is the mirrored parser rule registered for this FRule.
	ParseRule parsestate.RuleID
}

// FRuleID identifies a registered FRule.
type FRuleID int

// ChildBinderCount returns how many FPartBinder parts precede parts[idx] in
// rule r — the number of binders enclosing that child when elaborated into
// a Fragment (data model invariant: "Var(k) ... valid only if k < b +
// enclosing binders").
func (r FRule) ChildBinderCount(idx int) int {
	n := 0
	for i := 0; i < idx && i < len(r.Parts); i++ {
		if r.Parts[i].Kind == FPartBinder {
			n++
		}
	}
	return n
}

// ChildIndices returns the indices, in Parts, of every FPartChild or
// FPartVar — the positions that produce one Fragment child each, in
// order. A variable occurrence produces a Var fragment just as a child
// position produces whatever its sub-parse elaborates to.
func (r FRule) ChildIndices() []int {
	var out []int
	for i, p := range r.Parts {
		if p.Kind == FPartChild || p.Kind == FPartVar {
			out = append(out, i)
		}
	}
	return out
}

// Registry holds every declared FCat and FRule, plus the parsestate.State
// they mirror into.
type Registry struct {
	ps *parsestate.State

	cats       []FCat
	catByName  map[string]FCatID
	rules      []FRule
	ruleByName map[string]FRuleID

	// ruleOfParse and embedOfParse let callers holding only a parser
	// possibility's parsestate.RuleID (as produced by package parser) recover
	// which FRule or which embedded FCat it mirrors.
	ruleOfParse  map[parsestate.RuleID]FRuleID
	embedOfParse map[parsestate.RuleID]FCatID

	// AnyFragCat is the generic "any fragment" category templates are
	// embeddable into, per spec §4.H ("syntax_category" dispatch).
	AnyFragCat FCatID
	anyParseCat parsestate.CatID
}

// ErrDuplicate is returned for a category or rule name already declared.
type ErrDuplicate struct{ Kind, Name string }

func (e *ErrDuplicate) Error() string { return fmt.Sprintf("%s %q already declared", e.Kind, e.Name) }

// NewRegistry creates a Registry over ps, registering the built-in
// `sentence` category (embeddable in any-fragment, like every category
// DeclareCategory adds) and the generic any-fragment category.
func NewRegistry(ps *parsestate.State) (*Registry, error) {
	r := &Registry{
		ps: ps, catByName: make(map[string]FCatID), ruleByName: make(map[string]FRuleID),
		ruleOfParse: make(map[parsestate.RuleID]FRuleID), embedOfParse: make(map[parsestate.RuleID]FCatID),
	}

	anyParseCat, err := ps.AddCategory("any-fragment", true)
	if err != nil {
		return nil, err
	}
	r.anyParseCat = anyParseCat

	sentenceID, err := r.declareCategory("sentence", true)
	if err != nil {
		return nil, err
	}
	embedRuleID := ps.AddRule(anyParseCat, "embed:sentence", []parsestate.Part{
		{Kind: parsestate.PartCatRef, Cat: r.cats[sentenceID].ParseCat},
	}, 0, parsestate.AssocNone, parsestate.SourceBuiltin)
	r.embedOfParse[embedRuleID] = sentenceID

	anyID, err := r.declareCategory("any-fragment", true)
	if err != nil {
		return nil, err
	}
	r.AnyFragCat = anyID
	return r, nil
}

func (r *Registry) declareCategory(name string, builtin bool) (FCatID, error) {
	if _, ok := r.catByName[name]; ok {
		return 0, &ErrDuplicate{Kind: "syntax category", Name: name}
	}
	var parseCat parsestate.CatID
	if name == "any-fragment" {
		parseCat = r.anyParseCat
	} else {
		pc, err := r.ps.AddCategory(name, builtin)
		if err != nil {
			return 0, err
		}
		parseCat = pc
	}
	id := FCatID(len(r.cats))
	r.cats = append(r.cats, FCat{ID: id, Name: name, Builtin: builtin, ParseCat: parseCat})
	r.catByName[name] = id
	return id, nil
}

// DeclareCategory registers a new user-declared Formal-Syntax Category and
// induces a parse Category for it. Also registers the "embeddable in
// any-fragment" rule named by spec §4.H's `syntax_category` dispatch: any
// fragment of the new category can be used wherever "any-fragment" is
// expected.
func (r *Registry) DeclareCategory(name string) (FCatID, error) {
	id, err := r.declareCategory(name, false)
	if err != nil {
		return 0, err
	}
	cat := r.cats[id]
	embedRuleID := r.ps.AddRule(r.anyParseCat, "embed:"+name, []parsestate.Part{
		{Kind: parsestate.PartCatRef, Cat: cat.ParseCat},
	}, 0, parsestate.AssocNone, parsestate.SourceBuiltin)
	r.embedOfParse[embedRuleID] = id
	return id, nil
}

// EmbedCategoryFor reports the FCat a `syntax_category`-induced embedding
// rule (parsestate.SourceBuiltin) injects into any-fragment, if ruleID is
// one.
func (r *Registry) EmbedCategoryFor(ruleID parsestate.RuleID) (FCatID, bool) {
	id, ok := r.embedOfParse[ruleID]
	return id, ok
}

// FormalRuleFor reports the FRule a mirrored parsestate.RuleID corresponds
// to, if ruleID was produced by DeclareRule.
func (r *Registry) FormalRuleFor(ruleID parsestate.RuleID) (FRuleID, bool) {
	id, ok := r.ruleOfParse[ruleID]
	return id, ok
}

// CategoryByName looks up a declared Formal-Syntax Category.
func (r *Registry) CategoryByName(name string) (FCatID, bool) {
	id, ok := r.catByName[name]
	return id, ok
}

// Category dereferences an FCatID.
func (r *Registry) Category(id FCatID) FCat { return r.cats[id] }

// DeclareRule registers a named Formal-Syntax Rule and mirrors it as a
// parser Rule on the rule's category (spec §4.H `syntax` dispatch).
func (r *Registry) DeclareRule(name string, cat FCatID, parts []FPart, prec int, assoc parsestate.Assoc) (FRuleID, error) {
	if _, ok := r.ruleByName[name]; ok {
		return 0, &ErrDuplicate{Kind: "formal rule", Name: name}
	}
	if err := r.checkWellFormed(cat, parts); err != nil {
		return 0, err
	}

	pparts := make([]parsestate.Part, 0, len(parts))
	for _, fp := range parts {
		switch fp.Kind {
		case FPartChild:
			pparts = append(pparts, parsestate.Part{Kind: parsestate.PartCatRef, Cat: r.cats[fp.Cat].ParseCat})
		case FPartBinder:
			pparts = append(pparts, parsestate.Part{Kind: parsestate.PartName})
		case FPartVar:
			pparts = append(pparts, parsestate.Part{Kind: parsestate.PartName})
		case FPartLiteral:
			pparts = append(pparts, parsestate.Part{Kind: parsestate.PartLiteral, Text: fp.Literal})
		}
	}
	parseRuleID := r.ps.AddRule(r.cats[cat].ParseCat, name, pparts, prec, assoc, parsestate.SourceFormalRule)

	id := FRuleID(len(r.rules))
	r.rules = append(r.rules, FRule{ID: id, Name: name, Cat: cat, Parts: parts, Prec: prec, Assoc: assoc, ParseRule: parseRuleID})
	r.ruleByName[name] = id
	r.ruleOfParse[parseRuleID] = id
	return id, nil
}

// ErrMalformedRule reports a binder/variable well-formedness violation
// (data model invariant: "binding/variable cat references are well-formed").
type ErrMalformedRule struct{ Detail string }

func (e *ErrMalformedRule) Error() string { return "malformed formal rule: " + e.Detail }

func (r *Registry) checkWellFormed(cat FCatID, parts []FPart) error {
	if int(cat) < 0 || int(cat) >= len(r.cats) {
		return &ErrMalformedRule{Detail: "unknown category"}
	}
	binders := 0
	for i, p := range parts {
		switch p.Kind {
		case FPartChild:
			if int(p.Cat) < 0 || int(p.Cat) >= len(r.cats) {
				return &ErrMalformedRule{Detail: fmt.Sprintf("part %d references unknown category", i)}
			}
		case FPartBinder:
			binders++
		case FPartVar:
			if p.RefersTo < 0 || p.RefersTo >= i || parts[p.RefersTo].Kind != FPartBinder {
				return &ErrMalformedRule{Detail: fmt.Sprintf("part %d does not refer to a preceding binder", i)}
			}
		}
	}
	return nil
}

// DeclareShadowRule registers an FRule for a pattern whose parser rule was
// already mirrored elsewhere (package notation mirrors its own patterns
// directly, since a Notation also carries presentation-only metadata an
// FRule doesn't). This gives fragment elaboration one uniform lookup
// (FormalRuleFor) regardless of whether a parser rule came from `syntax`
// or `notation` — a notation's fragment shape is structurally identical to
// a formal rule's.
func (r *Registry) DeclareShadowRule(cat FCatID, parts []FPart, parseRuleID parsestate.RuleID) FRuleID {
	id := FRuleID(len(r.rules))
	r.rules = append(r.rules, FRule{ID: id, Cat: cat, Parts: parts, ParseRule: parseRuleID})
	r.ruleOfParse[parseRuleID] = id
	return id
}

// RuleByName looks up a declared Formal-Syntax Rule.
func (r *Registry) RuleByName(name string) (FRuleID, bool) {
	id, ok := r.ruleByName[name]
	return id, ok
}

// Rule dereferences an FRuleID.
func (r *Registry) Rule(id FRuleID) FRule { return r.rules[id] }

// ParseState returns the underlying parsestate.State, for components that
// need to add derived rules directly (notation, macro).
func (r *Registry) ParseState() *parsestate.State { return r.ps }
