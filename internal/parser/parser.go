package parser

import (
	"fmt"

	"github.com/dragonhatcher/watson/internal/arena"
	"github.com/dragonhatcher/watson/internal/parsestate"
	"github.com/dragonhatcher/watson/internal/source"
)

type memoKey struct {
	cat parsestate.CatID
	pos int
}

// Parser runs the extensible CFG parser over one source's text against a
// parsestate.State snapshot. A Parser is built fresh for each top-level
// parse attempt, because the rule set may have grown since the previous
// command was elaborated (spec §4.D: "the parser may be invoked repeatedly
// on a source").
type Parser struct {
	state  *parsestate.State
	text   string
	srcName string
	forest *Forest

	memo       map[memoKey]map[int]arena.Handle
	inProgress map[memoKey]bool

	// maxPos tracks the farthest position any atom successfully matched,
	// for "longest successful prefix" failure reporting.
	maxPos int
}

// New builds a Parser for srcName's text under state.
func New(state *parsestate.State, srcName, text string) *Parser {
	return &Parser{
		state:      state,
		text:       text,
		srcName:    srcName,
		forest:     newForest(),
		memo:       make(map[memoKey]map[int]arena.Handle),
		inProgress: make(map[memoKey]bool),
	}
}

// Forest returns the forest built so far.
func (p *Parser) Forest() *Forest { return p.forest }

// Failure describes a parse failure: no derivation of the requested
// category at the starting position, plus the farthest position reached
// by any partial derivation (spec §4.D failure mode).
type Failure struct {
	Cat      parsestate.CatID
	Start    int
	LongestOK int
}

func (f *Failure) Error() string {
	return fmt.Sprintf("no derivation at byte %d (longest successful prefix: byte %d)", f.Start, f.LongestOK)
}

// ParseAt attempts to derive category cat starting at pos, preferring the
// derivation that consumes the most input (the usual shape for a
// self-terminating command grammar, where alternative shorter derivations
// are partial matches rather than genuine ambiguity). It returns the
// packed Node covering the chosen span and the position just past it.
//
// Every possibility for that exact (cat, pos, end) triple is preserved in
// the returned Node — ambiguity among complete derivations is not resolved
// here, only the choice of how much input this call consumes is.
func (p *Parser) ParseAt(cat parsestate.CatID, pos int) (arena.Handle, int, error) {
	ends := p.parseCat(cat, pos)
	if len(ends) == 0 {
		return arena.Invalid, pos, &Failure{Cat: cat, Start: pos, LongestOK: p.maxPos}
	}
	best := -1
	for end := range ends {
		if end > best {
			best = end
		}
	}
	return ends[best], best, nil
}

// parseCat returns, for every reachable end position, the packed forest
// node for (cat, pos, end). Results are memoized per (cat, pos); a node is
// therefore built exactly once and shared by every caller that reaches it,
// satisfying "identical packings are shared" (spec §4.D).
func (p *Parser) parseCat(cat parsestate.CatID, pos int) map[int]arena.Handle {
	key := memoKey{cat, pos}
	if v, ok := p.memo[key]; ok {
		return v
	}
	if p.inProgress[key] {
		// Direct left recursion through this exact (cat,pos) pair: report
		// no derivation through this path rather than looping forever.
		return nil
	}
	p.inProgress[key] = true

	byEnd := make(map[int][]Possibility)
	for _, r := range p.state.RulesFor(cat) {
		for end, children := range p.matchParts(r.Parts, 0, pos, nil) {
			byEnd[end] = append(byEnd[end], Possibility{Rule: r.ID, Children: children})
		}
	}

	delete(p.inProgress, key)

	out := make(map[int]arena.Handle, len(byEnd))
	for end, poss := range byEnd {
		h := p.forest.add(Node{
			Cat:           cat,
			Span:          source.Span{Source: p.srcName, StartByte: pos, EndByte: end},
			Possibilities: poss,
		})
		out[end] = h
	}
	p.memo[key] = out
	return out
}

// matchParts tries to match parts[idx:] starting at pos, given the
// children accumulated for parts[:idx] in acc, returning every reachable
// end position with its full children list.
func (p *Parser) matchParts(parts []parsestate.Part, idx, pos int, acc []Child) map[int][]Child {
	if idx == len(parts) {
		out := make([]Child, len(acc))
		copy(out, acc)
		return map[int][]Child{pos: out}
	}
	part := parts[idx]
	start := skipTrivia(p.text, pos)

	if part.Kind == parsestate.PartCatRef {
		subs := p.parseCat(part.Cat, start)
		result := map[int][]Child{}
		for end, node := range subs {
			next := append(append([]Child{}, acc...), Child{Node: node})
			for e, c := range p.matchParts(parts, idx+1, end, next) {
				result[e] = c
			}
		}
		return result
	}

	end, atom, ok := p.scanAtom(part, start)
	if !ok {
		return nil
	}
	if end > p.maxPos {
		p.maxPos = end
	}
	atom.FullSpan.StartByte = pos
	next := append(append([]Child{}, acc...), Child{IsAtom: true, Atom: atom})
	return p.matchParts(parts, idx+1, end, next)
}

func (p *Parser) scanAtom(part parsestate.Part, start int) (int, Atom, bool) {
	switch part.Kind {
	case parsestate.PartLiteral:
		end, ok := scanLiteral(p.text, start, part.Text)
		if !ok {
			return start, Atom{}, false
		}
		return end, p.atom(parsestate.AtomLiteral, part.Text, start, end), true
	case parsestate.PartKeyword:
		end := scanIdent(p.text, start)
		if end == start || p.text[start:end] != part.Text {
			return start, Atom{}, false
		}
		return end, p.atom(parsestate.AtomKeyword, part.Text, start, end), true
	case parsestate.PartName:
		end := scanIdent(p.text, start)
		if end == start {
			return start, Atom{}, false
		}
		lexeme := p.text[start:end]
		if p.state.IsReservedKeyword(lexeme) {
			return start, Atom{}, false
		}
		return end, p.atom(parsestate.AtomName, lexeme, start, end), true
	case parsestate.PartNumber:
		end := scanNumber(p.text, start)
		if end == start {
			return start, Atom{}, false
		}
		return end, p.atom(parsestate.AtomNumber, p.text[start:end], start, end), true
	case parsestate.PartString:
		end, ok := scanString(p.text, start)
		if !ok {
			return start, Atom{}, false
		}
		return end, p.atom(parsestate.AtomString, p.text[start:end], start, end), true
	}
	return start, Atom{}, false
}

func (p *Parser) atom(kind AtomKind, text string, start, end int) Atom {
	return Atom{
		Kind:        kind,
		Text:        text,
		ContentSpan: source.Span{Source: p.srcName, StartByte: start, EndByte: end},
		FullSpan:    source.Span{Source: p.srcName, StartByte: start, EndByte: end},
	}
}
