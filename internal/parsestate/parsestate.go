// Package parsestate is the registry of syntactic categories and production
// rules the parser consumes. Its rule set grows during elaboration; every
// addition recomputes nullability and FIRST sets eagerly (spec §4.C,
// Design Notes: "hash-consing across mutations in elaboration").
package parsestate

import "fmt"

// CatID identifies a syntactic Category within one State.
type CatID int

// Category is a named entry in the parser's start-symbol space. Every
// Formal-Syntax Category (internal/syntax) induces exactly one Category
// here; two categories (sentence, any-fragment) are
// built in.
type Category struct {
	ID      CatID
	Name    string
	Builtin bool
}

// Assoc is a rule's associativity.
type Assoc int

const (
	AssocNone Assoc = iota
	AssocLeft
	AssocRight
)

// RuleSource tags where a Rule came from, per the data model.
type RuleSource int

const (
	SourceBuiltin RuleSource = iota
	SourceFormalRule
	SourceNotation
	SourceMacro
)

// PartKind discriminates a Rule's parts.
type PartKind int

const (
	PartLiteral PartKind = iota
	PartKeyword
	PartName
	PartNumber
	PartString
	PartCatRef
)

// Part is one element of a Rule's pattern.
type Part struct {
	Kind PartKind
	// Text is the fixed spelling for Literal/Keyword parts.
	Text string
	// Cat is the referenced category for PartCatRef.
	Cat CatID
	// TemplateArg marks a PartCatRef as a template-argument position.
	TemplateArg bool
}

// RuleID identifies a registered Rule.
type RuleID int

// Rule is one production: a pattern plus precedence/associativity and a
// provenance tag.
type Rule struct {
	ID     RuleID
	Cat    CatID
	Name   string
	Parts  []Part
	Prec   int
	Assoc  Assoc
	Source RuleSource
}

// AtomKind mirrors PartKind for the terminal alphabet used by FIRST sets.
type AtomKind int

const (
	AtomLiteral AtomKind = iota
	AtomKeyword
	AtomName
	AtomNumber
	AtomString
)

// Atom is a FIRST-set element: a terminal kind plus, for Literal/Keyword,
// its fixed spelling. Name/Number/String atoms have an empty Text and
// stand for "any token of this lexical class".
type Atom struct {
	Kind AtomKind
	Text string
}

// State is the mutable registry of categories and rules, with cached
// nullable/FIRST sets recomputed after every mutation.
type State struct {
	cats     []Category
	catByName map[string]CatID
	rulesOf  map[CatID][]RuleID
	rules    []Rule

	nullable map[CatID]bool
	first    map[CatID]map[Atom]bool
	// reserved holds keyword spellings currently reserved anywhere in the
	// grammar; a Name atom must not coincide with one of these (spec §4.D).
	reserved map[string]bool
}

// New returns an empty registry.
func New() *State {
	s := &State{
		catByName: make(map[string]CatID),
		rulesOf:   make(map[CatID][]RuleID),
		nullable:  make(map[CatID]bool),
		first:     make(map[CatID]map[Atom]bool),
		reserved:  make(map[string]bool),
	}
	return s
}

// ErrDuplicateCategory is returned by AddCategory for a name already
// registered.
type ErrDuplicateCategory struct{ Name string }

func (e *ErrDuplicateCategory) Error() string {
	return fmt.Sprintf("category %q already declared", e.Name)
}

// AddCategory registers a new category, builtin or user-declared.
func (s *State) AddCategory(name string, builtin bool) (CatID, error) {
	if _, ok := s.catByName[name]; ok {
		return 0, &ErrDuplicateCategory{Name: name}
	}
	id := CatID(len(s.cats))
	s.cats = append(s.cats, Category{ID: id, Name: name, Builtin: builtin})
	s.catByName[name] = id
	s.nullable[id] = false
	s.first[id] = make(map[Atom]bool)
	return id, nil
}

// CategoryByName looks up a category by its declared name.
func (s *State) CategoryByName(name string) (CatID, bool) {
	id, ok := s.catByName[name]
	return id, ok
}

// Category returns the Category record for id.
func (s *State) Category(id CatID) Category { return s.cats[id] }

// Categories returns every registered category.
func (s *State) Categories() []Category { return s.cats }

// AddRule registers a rule for cat and recomputes nullable/FIRST sets.
// Elaboration of a command is atomic with respect to the parse state
// (spec §5): callers that need "all or none" semantics across several
// rules should batch them with AddRules.
func (s *State) AddRule(cat CatID, name string, parts []Part, prec int, assoc Assoc, src RuleSource) RuleID {
	id := RuleID(len(s.rules))
	r := Rule{ID: id, Cat: cat, Name: name, Parts: parts, Prec: prec, Assoc: assoc, Source: src}
	s.rules = append(s.rules, r)
	s.rulesOf[cat] = append(s.rulesOf[cat], id)
	for _, p := range parts {
		if p.Kind == PartKeyword {
			s.reserved[p.Text] = true
		}
	}
	s.recompute()
	return id
}

// AddRules registers several rules as one batch, recomputing fixed points
// once at the end.
func (s *State) AddRules(cat CatID, specs []struct {
	Name   string
	Parts  []Part
	Prec   int
	Assoc  Assoc
	Source RuleSource
}) []RuleID {
	ids := make([]RuleID, 0, len(specs))
	for _, sp := range specs {
		id := RuleID(len(s.rules))
		r := Rule{ID: id, Cat: cat, Name: sp.Name, Parts: sp.Parts, Prec: sp.Prec, Assoc: sp.Assoc, Source: sp.Source}
		s.rules = append(s.rules, r)
		s.rulesOf[cat] = append(s.rulesOf[cat], id)
		for _, p := range sp.Parts {
			if p.Kind == PartKeyword {
				s.reserved[p.Text] = true
			}
		}
		ids = append(ids, id)
	}
	s.recompute()
	return ids
}

// RulesFor returns every rule registered for cat.
func (s *State) RulesFor(cat CatID) []Rule {
	out := make([]Rule, 0, len(s.rulesOf[cat]))
	for _, id := range s.rulesOf[cat] {
		out = append(out, s.rules[id])
	}
	return out
}

// Rule dereferences a RuleID.
func (s *State) Rule(id RuleID) Rule { return s.rules[id] }

// IsReservedKeyword reports whether spelling is reserved as a keyword
// anywhere in the current grammar (used by the lexer/parser to decide
// whether a Name atom may match a given lexeme).
func (s *State) IsReservedKeyword(spelling string) bool { return s.reserved[spelling] }

// Nullable reports whether cat can derive the empty string.
func (s *State) Nullable(cat CatID) bool { return s.nullable[cat] }

// First returns the (advisory, upper-bound) FIRST set for cat.
func (s *State) First(cat CatID) map[Atom]bool { return s.first[cat] }

// recompute is the least-fixed-point pass over nullable/FIRST, rerun in
// full after every rule addition. Rule counts per module are small enough
// (spec Design Notes) that this is not worth making incremental.
func (s *State) recompute() {
	for id := range s.cats {
		cid := CatID(id)
		if _, ok := s.nullable[cid]; !ok {
			s.nullable[cid] = false
		}
		if _, ok := s.first[cid]; !ok {
			s.first[cid] = make(map[Atom]bool)
		}
	}
	changed := true
	for changed {
		changed = false
		for _, r := range s.rules {
			if s.ruleNullable(r) && !s.nullable[r.Cat] {
				s.nullable[r.Cat] = true
				changed = true
			}
			added := s.ruleFirstInto(r, s.first[r.Cat])
			if added {
				changed = true
			}
		}
	}
}

func (s *State) ruleNullable(r Rule) bool {
	for _, p := range r.Parts {
		if p.Kind == PartCatRef {
			if !s.nullable[p.Cat] {
				return false
			}
			continue
		}
		// Literal/Keyword/Name/Number/String parts always consume a token.
		return false
	}
	return true
}

func (s *State) ruleFirstInto(r Rule, into map[Atom]bool) bool {
	changed := false
	for _, p := range r.Parts {
		switch p.Kind {
		case PartLiteral:
			if !into[Atom{AtomLiteral, p.Text}] {
				into[Atom{AtomLiteral, p.Text}] = true
				changed = true
			}
			return changed
		case PartKeyword:
			if !into[Atom{AtomKeyword, p.Text}] {
				into[Atom{AtomKeyword, p.Text}] = true
				changed = true
			}
			return changed
		case PartName:
			if !into[Atom{AtomName, ""}] {
				into[Atom{AtomName, ""}] = true
				changed = true
			}
			return changed
		case PartNumber:
			if !into[Atom{AtomNumber, ""}] {
				into[Atom{AtomNumber, ""}] = true
				changed = true
			}
			return changed
		case PartString:
			if !into[Atom{AtomString, ""}] {
				into[Atom{AtomString, ""}] = true
				changed = true
			}
			return changed
		case PartCatRef:
			for a := range s.first[p.Cat] {
				if !into[a] {
					into[a] = true
					changed = true
				}
			}
			if !s.nullable[p.Cat] {
				return changed
			}
			// nullable prefix: continue to the next part
		}
	}
	return changed
}
