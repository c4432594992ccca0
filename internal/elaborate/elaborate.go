// Package elaborate drives the fixed seven-command meta-grammar: it turns
// one module's command stream into growth of the shared parsestate/syntax/
// notation/macro registries, and into elaborated Fragments for each
// theorem's hypotheses, conclusion, and tactic template arguments (spec
// §4.H).
package elaborate

import (
	"fmt"
	"strings"

	"github.com/dragonhatcher/watson/internal/arena"
	"github.com/dragonhatcher/watson/internal/diagnostics"
	"github.com/dragonhatcher/watson/internal/frag"
	"github.com/dragonhatcher/watson/internal/macro"
	"github.com/dragonhatcher/watson/internal/notation"
	"github.com/dragonhatcher/watson/internal/parser"
	"github.com/dragonhatcher/watson/internal/parsestate"
	"github.com/dragonhatcher/watson/internal/source"
	"github.com/dragonhatcher/watson/internal/syntax"
)

// TacticSpec is a scanned proof tactic: either `todo`, or `by <theorem>
// [arg]...` with each bracketed argument already elaborated to a Fragment
// against the universal any-fragment category — the kernel reconciles each
// against the target theorem's declared template categories when it
// actually applies it (spec §4.J, kernel safety checks).
type TacticSpec struct {
	IsTodo       bool
	TheoremName  string
	TemplateArgs []frag.Handle
	Span         source.Span
}

// Theorem is a fully elaborated axiom or theorem declaration, ready for
// the kernel/orchestrator to check.
type Theorem struct {
	Name          string
	IsAxiom       bool
	TemplateCats  []syntax.FCatID
	TemplateNames []string
	Hyps          []frag.Handle
	Conclusion    frag.Handle
	Tactic        TacticSpec
	Span          source.Span
}

// elabCtx carries the per-declaration state fragment elaboration needs:
// the forest being walked, and which parsestate rules (if any) stand for
// this declaration's own template parameters.
type elabCtx struct {
	forest         *parser.Forest
	templateRuleOf map[parsestate.RuleID]int
}

// Elaborator holds every registry a module's commands mutate, plus the
// theorems accumulated so far.
type Elaborator struct {
	Cache *source.Cache
	PS    *parsestate.State
	Syn   *syntax.Registry
	Not   *notation.Registry
	Mac   *macro.Registry
	Store *frag.Store
	Diags *diagnostics.Manager

	Theorems map[string]*Theorem
	Order    []string

	sentenceCat syntax.FCatID
}

// NewElaborator builds an Elaborator with a fresh, empty grammar.
func NewElaborator(cache *source.Cache) (*Elaborator, error) {
	ps := parsestate.New()
	syn, err := syntax.NewRegistry(ps)
	if err != nil {
		return nil, err
	}
	sentenceCat, _ := syn.CategoryByName("sentence")
	return &Elaborator{
		Cache:       cache,
		PS:          ps,
		Syn:         syn,
		Not:         notation.NewRegistry(syn),
		Mac:         macro.NewRegistry(ps),
		Store:       frag.NewStore(syn),
		Diags:       diagnostics.NewManager(),
		Theorems:    make(map[string]*Theorem),
		sentenceCat: sentenceCat,
	}, nil
}

// ElaborateSource scans and dispatches every command in the named,
// already-loaded source, reporting diagnostics for failures rather than
// aborting. It returns the logical names of modules pulled in by `module`
// commands, for the caller (package orchestrator) to load and schedule.
func (e *Elaborator) ElaborateSource(srcName string) []string {
	src, ok := e.Cache.Get(srcName)
	if !ok {
		e.Diags.Errorf(diagnostics.KindIO, "module %q not loaded", srcName)
		return nil
	}
	text := src.Text
	var imports []string
	pos := 0
	for {
		start := skipTrivia(text, pos)
		if start >= len(text) {
			return imports
		}
		cmd, next, err := NextCommand(srcName, text, pos)
		if err != nil {
			e.Diags.ErrorAt(diagnostics.KindParse, mkspan(srcName, start, start), "%s", err.Error())
			// Resume at the next token from which a whole command scans.
			pos = peekTok(text, start).End
			for skipTrivia(text, pos) < len(text) {
				if _, _, err := NextCommand(srcName, text, pos); err == nil {
					break
				}
				pos = peekTok(text, pos).End
			}
			continue
		}
		pos = next
		switch cmd.Kind {
		case CmdModule:
			imports = append(imports, cmd.Module)
		case CmdSyntaxCategory:
			e.handleSyntaxCategory(cmd)
		case CmdSyntax:
			e.handleSyntax(cmd)
		case CmdNotation:
			e.handleNotation(cmd)
		case CmdMacro:
			e.handleMacro(srcName, cmd)
		case CmdAxiom, CmdTheorem:
			e.handleTheorem(srcName, cmd)
		}
	}
}

func (e *Elaborator) handleSyntaxCategory(cmd Command) {
	if id, ok := e.Syn.CategoryByName(cmd.SyntaxCategory); ok {
		// Declaring the built-in `sentence` category is accepted and
		// registers nothing new.
		if e.Syn.Category(id).Builtin {
			e.Diags.TrackKnownName(cmd.SyntaxCategory)
			return
		}
		e.Diags.ErrorAt(diagnostics.KindModule, cmd.Span, "syntax category %q already declared", cmd.SyntaxCategory)
		return
	}
	if _, err := e.Syn.DeclareCategory(cmd.SyntaxCategory); err != nil {
		e.Diags.ErrorAt(diagnostics.KindModule, cmd.Span, "%s", err.Error())
		return
	}
	e.Diags.TrackKnownName(cmd.SyntaxCategory)
}

func (e *Elaborator) resolveFCat(name string, sp source.Span) (syntax.FCatID, bool) {
	id, ok := e.Syn.CategoryByName(name)
	if !ok {
		e.Diags.UnknownName(sp, "syntax category", name)
		return 0, false
	}
	return id, true
}

func (e *Elaborator) handleSyntax(cmd Command) {
	cat, ok := e.resolveFCat(cmd.RuleCat, cmd.Span)
	if !ok {
		return
	}
	nameIdx := map[string]int{}
	fparts := make([]syntax.FPart, 0, len(cmd.RuleParts))
	for i, p := range cmd.RuleParts {
		switch p.Kind {
		case "literal", "keyword":
			fparts = append(fparts, syntax.FPart{Kind: syntax.FPartLiteral, Literal: p.Text})
		case "cat":
			pcat, ok := e.resolveFCat(p.CatName, cmd.Span)
			if !ok {
				return
			}
			if len(p.Args) > 0 {
				e.Diags.ErrorAt(diagnostics.KindShape, cmd.Span, "syntax rule %q: %q(%s) names binder arguments, which a formal-syntax rule child cannot see — use a notation instead, or drop the arguments", cmd.RuleName, p.CatName, strings.Join(p.Args, ", "))
				return
			}
			fparts = append(fparts, syntax.FPart{Kind: syntax.FPartChild, Cat: pcat})
		case "binder":
			nameIdx[p.BinderName] = i
			fparts = append(fparts, syntax.FPart{Kind: syntax.FPartBinder, BinderName: p.BinderName})
		case "var":
			refIdx, ok := nameIdx[p.RefersTo]
			if !ok {
				e.Diags.ErrorAt(diagnostics.KindShape, cmd.Span, "variable %q has no preceding binder", p.RefersTo)
				return
			}
			fparts = append(fparts, syntax.FPart{Kind: syntax.FPartVar, RefersTo: refIdx})
		}
	}
	if _, err := e.Syn.DeclareRule(cmd.RuleName, cat, fparts, cmd.RulePrec, cmd.RuleAssoc); err != nil {
		e.Diags.ErrorAt(diagnostics.KindModule, cmd.Span, "%s", err.Error())
		return
	}
	e.Diags.TrackKnownName(cmd.RuleName)
}

func (e *Elaborator) handleNotation(cmd Command) {
	outCat, ok := e.resolveFCat(cmd.RuleCat, cmd.Span)
	if !ok {
		return
	}
	parts := make([]notation.Part, 0, len(cmd.RuleParts))
	for _, p := range cmd.RuleParts {
		switch p.Kind {
		case "literal":
			parts = append(parts, notation.Part{Kind: notation.PartLiteral, Text: p.Text})
		case "keyword":
			parts = append(parts, notation.Part{Kind: notation.PartKeyword, Text: p.Text})
		case "binder":
			parts = append(parts, notation.Part{Kind: notation.PartBinder, Text: p.BinderName})
		case "cat":
			pcat, ok := e.resolveFCat(p.CatName, cmd.Span)
			if !ok {
				return
			}
			if len(p.Args) > 0 {
				e.Diags.ErrorAt(diagnostics.KindShape, cmd.Span, "notation %q: %q(%s) would bind those names inside this child's elaboration, which is not supported — declare %q without binder arguments", cmd.RuleName, p.CatName, strings.Join(p.Args, ", "), cmd.RuleName)
				return
			}
			parts = append(parts, notation.Part{Kind: notation.PartChild, Cat: pcat})
		case "var":
			e.Diags.ErrorAt(diagnostics.KindShape, cmd.Span, "variable references are not allowed in a notation pattern")
			return
		}
	}
	if _, err := e.Not.Declare(cmd.RuleName, outCat, parts, cmd.RulePrec, cmd.RuleAssoc); err != nil {
		e.Diags.ErrorAt(diagnostics.KindModule, cmd.Span, "%s", err.Error())
		return
	}
	e.Diags.TrackKnownName(cmd.RuleName)
}

func (e *Elaborator) lookupRule(name string) (parsestate.RuleID, bool) {
	if id, ok := e.Syn.RuleByName(name); ok {
		return e.Syn.Rule(id).ParseRule, true
	}
	if id, ok := e.Not.ByName(name); ok {
		return e.Not.Notation(id).ParseRule, true
	}
	return 0, false
}

func (e *Elaborator) handleMacro(srcName string, cmd Command) {
	capture := map[string]bool{}
	mparts := make([]macro.Part, 0, len(cmd.MacroPattern))
	for _, p := range cmd.MacroPattern {
		switch p.Kind {
		case "literal":
			mparts = append(mparts, macro.Part{Kind: macro.PartLiteral, Text: p.Text})
		case "keyword":
			mparts = append(mparts, macro.Part{Kind: macro.PartKeyword, Text: p.Text})
		case "sub":
			pcat, ok := e.resolveFCat(p.CatName, cmd.Span)
			if !ok {
				return
			}
			mparts = append(mparts, macro.Part{Kind: macro.PartSub, Cat: e.Syn.Category(pcat).ParseCat})
		case "bind":
			pcat, ok := e.resolveFCat(p.CatName, cmd.Span)
			if !ok {
				return
			}
			capture[p.Bind] = true
			mparts = append(mparts, macro.Part{Kind: macro.PartBinding, Cat: e.Syn.Category(pcat).ParseCat, Bind: p.Bind})
		}
	}
	repl, outputCat, err := e.buildReplacement(srcName, cmd.MacroReplSpan, capture)
	if err != nil {
		e.Diags.ErrorAt(diagnostics.KindName, cmd.MacroReplSpan, "%s", err.Error())
		return
	}
	if _, err := e.Mac.Declare(cmd.MacroName, outputCat, mparts, repl); err != nil {
		e.Diags.ErrorAt(diagnostics.KindModule, cmd.Span, "%s", err.Error())
		return
	}
	e.Diags.TrackKnownName(cmd.MacroName)
}

// buildReplacement scans a macro's replacement template, resolving each
// head identifier to a registered rule/notation by name and recursing
// exactly as many sub-expressions as that rule's arity demands; a bare
// identifier matching a pattern capture is a binding reference instead
// (spec §4.G, "replacement template").
func (e *Elaborator) buildReplacement(srcName string, span source.Span, captures map[string]bool) (macro.ReplPart, parsestate.CatID, error) {
	src, ok := e.Cache.Get(srcName)
	if !ok {
		return macro.ReplPart{}, 0, fmt.Errorf("module %q not loaded", srcName)
	}
	text := src.Text
	repl, _, err := e.parseReplExpr(text, span.StartByte, captures)
	if err != nil {
		return macro.ReplPart{}, 0, err
	}
	if repl.IsBindingRef {
		return macro.ReplPart{}, 0, fmt.Errorf("macro replacement cannot be a bare binding reference")
	}
	return repl, repl.Cat, nil
}

func (e *Elaborator) parseReplExpr(text string, pos int, captures map[string]bool) (macro.ReplPart, int, error) {
	tok := peekTok(text, pos)
	if tok.Kind != TokIdent {
		return macro.ReplPart{}, pos, fmt.Errorf("expected an identifier in macro replacement at byte %d", tok.Pos)
	}
	pos = tok.End
	if captures[tok.Text] {
		return macro.ReplPart{IsBindingRef: true, Bind: tok.Text}, pos, nil
	}
	ruleID, ok := e.lookupRule(tok.Text)
	if !ok {
		return macro.ReplPart{}, pos, fmt.Errorf("unknown name %q in macro replacement", tok.Text)
	}
	rule := e.PS.Rule(ruleID)
	nChildren := 0
	for _, p := range rule.Parts {
		if p.Kind == parsestate.PartCatRef {
			nChildren++
		}
	}
	hasParens := false
	if p := peekTok(text, pos); p.Text == "(" {
		hasParens = true
		pos = p.End
	}
	children := make([]macro.ReplPart, 0, nChildren)
	for i := 0; i < nChildren; i++ {
		if hasParens && i > 0 {
			if c := peekTok(text, pos); c.Text == "," {
				pos = c.End
			}
		}
		child, np, err := e.parseReplExpr(text, pos, captures)
		if err != nil {
			return macro.ReplPart{}, pos, err
		}
		children = append(children, child)
		pos = np
	}
	if hasParens {
		if c := peekTok(text, pos); c.Text == ")" {
			pos = c.End
		}
	}
	return macro.ReplPart{Rule: ruleID, Cat: rule.Cat, Children: children}, pos, nil
}

func (e *Elaborator) handleTheorem(srcName string, cmd Command) {
	if _, exists := e.Theorems[cmd.TheoremName]; exists {
		e.Diags.ErrorAt(diagnostics.KindModule, cmd.Span, "theorem %q already declared", cmd.TheoremName)
		return
	}
	templateCats := make([]syntax.FCatID, len(cmd.Templates))
	templateNames := make([]string, len(cmd.Templates))
	ruleOf := map[parsestate.RuleID]int{}
	for i, t := range cmd.Templates {
		cid, ok := e.resolveFCat(t.Cat, cmd.Span)
		if !ok {
			return
		}
		templateCats[i] = cid
		templateNames[i] = t.Name
		parseCat := e.Syn.Category(cid).ParseCat
		ruleID := e.PS.AddRule(parseCat, "$template:"+t.Name, []parsestate.Part{
			{Kind: parsestate.PartKeyword, Text: t.Name},
		}, 0, parsestate.AssocNone, parsestate.SourceBuiltin)
		ruleOf[ruleID] = i
	}
	ctx := &elabCtx{templateRuleOf: ruleOf}

	var hyps []frag.Handle
	for _, h := range cmd.Hyps {
		fh, err := e.elaborateExpr(srcName, h.Span, e.sentenceCat, ctx)
		if err != nil {
			e.Diags.ErrorAt(diagnostics.KindParse, h.Span, "%s", err.Error())
			return
		}
		hyps = append(hyps, fh)
	}
	concl, err := e.elaborateExpr(srcName, cmd.Conclusion.Span, e.sentenceCat, ctx)
	if err != nil {
		e.Diags.ErrorAt(diagnostics.KindParse, cmd.Conclusion.Span, "%s", err.Error())
		return
	}

	th := &Theorem{
		Name: cmd.TheoremName, IsAxiom: cmd.IsAxiom,
		TemplateCats: templateCats, TemplateNames: templateNames,
		Hyps: hyps, Conclusion: concl, Span: cmd.Span,
	}
	if !cmd.IsAxiom {
		tac, err := e.scanTactic(srcName, cmd.Tactic.Span, ctx)
		if err != nil {
			e.Diags.ErrorAt(diagnostics.KindParse, cmd.Tactic.Span, "%s", err.Error())
			return
		}
		th.Tactic = tac
	}
	e.Theorems[cmd.TheoremName] = th
	e.Order = append(e.Order, cmd.TheoremName)
	e.Diags.TrackKnownName(cmd.TheoremName)
}

func (e *Elaborator) scanTactic(srcName string, span source.Span, ctx *elabCtx) (TacticSpec, error) {
	src, ok := e.Cache.Get(srcName)
	if !ok {
		return TacticSpec{}, fmt.Errorf("module %q not loaded", srcName)
	}
	text := src.Text
	pos := span.StartByte
	kw := peekTok(text, pos)
	if kw.Text == "todo" {
		return TacticSpec{IsTodo: true, Span: span}, nil
	}
	if kw.Text != "by" {
		return TacticSpec{}, fmt.Errorf("expected 'todo' or 'by', found %q", kw.Text)
	}
	pos = kw.End
	nameTok := peekTok(text, pos)
	pos = nameTok.End
	var args []frag.Handle
	for {
		p := peekTok(text, pos)
		if p.Text != "[" {
			break
		}
		pos = p.End
		aStart := pos
		aEnd := findExprEnd(text, pos, map[string]bool{"]": true})
		fh, err := e.elaborateExpr(srcName, mkspan(srcName, aStart, aEnd), e.Syn.AnyFragCat, ctx)
		if err != nil {
			return TacticSpec{}, err
		}
		args = append(args, fh)
		pos = aEnd
		if c := peekTok(text, pos); c.Text == "]" {
			pos = c.End
		}
	}
	return TacticSpec{TheoremName: nameTok.Text, TemplateArgs: args, Span: span}, nil
}

// elaborateExpr parses text at span against cat's induced parser category,
// reduces its forest through every registered macro, and elaborates the
// single (possibly still locally ambiguous) result into a Fragment.
func (e *Elaborator) elaborateExpr(srcName string, span source.Span, cat syntax.FCatID, ctx *elabCtx) (frag.Handle, error) {
	src, ok := e.Cache.Get(srcName)
	if !ok {
		return arena.Invalid, fmt.Errorf("module %q not loaded", srcName)
	}
	text := src.Text
	parseCat := e.Syn.Category(cat).ParseCat
	p := parser.New(e.PS, srcName, text)
	h, end, err := p.ParseAt(parseCat, span.StartByte)
	if err != nil {
		return arena.Invalid, err
	}
	if trimmed := skipTrivia(text, end); trimmed != span.EndByte {
		return arena.Invalid, fmt.Errorf("unexpected trailing content at byte %d", end)
	}
	expander := macro.NewExpander(e.PS, p.Forest(), e.Mac)
	reduced, err := expander.Reduce(h)
	if err != nil {
		return arena.Invalid, err
	}
	c2 := *ctx
	c2.forest = p.Forest()
	return e.elaborateFragment(reduced, cat, &c2)
}

func (e *Elaborator) elaborateFragment(h arena.Handle, expectCat syntax.FCatID, ctx *elabCtx) (frag.Handle, error) {
	node := ctx.forest.Node(h)
	chosen, err := e.disambiguate(node.Possibilities, ctx)
	if err != nil {
		return arena.Invalid, err
	}
	ruleID := chosen.Rule

	if idx, ok := ctx.templateRuleOf[ruleID]; ok {
		return e.Store.TemplateRef(expectCat, idx, nil), nil
	}
	if embedCat, ok := e.Syn.EmbedCategoryFor(ruleID); ok {
		return e.elaborateFragment(chosen.Children[0].Node, embedCat, ctx)
	}
	if frID, ok := e.Syn.FormalRuleFor(ruleID); ok {
		return e.elaborateFormalApplication(e.Syn.Rule(frID), chosen, ctx)
	}
	return arena.Invalid, fmt.Errorf("no fragment-building rule registered for parser rule %d", ruleID)
}

func (e *Elaborator) elaborateFormalApplication(fr syntax.FRule, poss parser.Possibility, ctx *elabCtx) (frag.Handle, error) {
	var children []frag.Handle
	for i, fp := range fr.Parts {
		switch fp.Kind {
		case syntax.FPartChild:
			ch, err := e.elaborateFragment(poss.Children[i].Node, fp.Cat, ctx)
			if err != nil {
				return arena.Invalid, err
			}
			children = append(children, ch)
		case syntax.FPartVar:
			atomText := poss.Children[i].Atom.Text
			refBinder := fr.Parts[fp.RefersTo]
			if atomText != refBinder.BinderName {
				return arena.Invalid, fmt.Errorf("variable %q does not refer to bound name %q", atomText, refBinder.BinderName)
			}
			k := 0
			for j := fp.RefersTo + 1; j < i; j++ {
				if fr.Parts[j].Kind == syntax.FPartBinder {
					k++
				}
			}
			children = append(children, e.Store.Var(e.Syn.AnyFragCat, k))
		}
	}
	return e.Store.RuleApplication(fr.Cat, fr.ID, children), nil
}

// disambiguate resolves one surviving ambiguity among a node's
// possibilities, per the open question "which derivation wins": a
// possibility using this declaration's own template rule always wins
// (templates shadow anything coincidentally sharing their spelling);
// otherwise the possibility with the strictly highest rule precedence
// wins; a tie is a genuine ambiguity error.
func (e *Elaborator) disambiguate(poss []parser.Possibility, ctx *elabCtx) (parser.Possibility, error) {
	if len(poss) == 0 {
		return parser.Possibility{}, fmt.Errorf("no derivation")
	}
	if len(poss) == 1 {
		return poss[0], nil
	}
	for _, p := range poss {
		if _, ok := ctx.templateRuleOf[p.Rule]; ok {
			return p, nil
		}
	}
	bestPrec := -1
	var best []parser.Possibility
	for _, p := range poss {
		prec := e.PS.Rule(p.Rule).Prec
		switch {
		case prec > bestPrec:
			bestPrec = prec
			best = []parser.Possibility{p}
		case prec == bestPrec:
			best = append(best, p)
		}
	}
	if len(best) != 1 {
		return parser.Possibility{}, fmt.Errorf("ambiguous parse: %d derivations tie at precedence %d", len(best), bestPrec)
	}
	return best[0], nil
}
